package commands

import (
	"context"

	"go.uber.org/zap"

	"github.com/munconf/portfolio-allotment/internal/config"
	"github.com/munconf/portfolio-allotment/pkg/core/allocator"
	"github.com/munconf/portfolio-allotment/pkg/core/services"
	"github.com/munconf/portfolio-allotment/pkg/db"
)

// AppContext holds the application dependencies shared across all commands
type AppContext struct {
	Cfg      *config.Config
	Engine   *allocator.Engine
	Mailer   services.Emailer
	Database db.Database
	Logger   *zap.Logger
	Ctx      context.Context
	Env      string
}
