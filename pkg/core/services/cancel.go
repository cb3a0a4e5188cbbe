package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/munconf/portfolio-allotment/internal/config"
	"github.com/munconf/portfolio-allotment/pkg/core/allocator"
	"github.com/munconf/portfolio-allotment/pkg/db"
)

// CancelStore defines the database operations needed to cancel an allocation
type CancelStore interface {
	GetRegistration(ctx context.Context, id string) (*db.Registration, error)
	GetClaims(ctx context.Context) ([]db.PortfolioClaim, error)
	DeleteClaim(ctx context.Context, registrationID string) error
	ReleaseAllottedClaim(ctx context.Context, registrationID string) error
}

// CancellationResult represents the result of cancelling an allocation
type CancellationResult struct {
	Registration *db.Registration
	Released     allocator.Claim
	FailedEmail  *FailedEmail
}

// CancelAllocation returns a registration to pending and reopens its portfolio.
// Confirmed allocations are only released when force is set.
func CancelAllocation(
	ctx context.Context,
	store CancelStore,
	engine *allocator.Engine,
	mailer Emailer,
	cfg *config.Config,
	logger *zap.Logger,
	registrationID string,
	force bool,
) (*CancellationResult, error) {
	logger.Debug("Starting cancelAllocation", zap.String("registration_id", registrationID), zap.Bool("force", force))

	reg, err := store.GetRegistration(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch registration: %w", err)
	}

	tracker, err := loadTracker(ctx, store, engine, logger)
	if err != nil {
		return nil, err
	}

	released, err := tracker.Cancel(reg.ID, allocator.CancelOptions{AllowConfirmed: force})
	if err != nil {
		return nil, fmt.Errorf("failed to cancel %s: %w", reg.ID, err)
	}

	if force {
		err = store.DeleteClaim(ctx, reg.ID)
	} else {
		err = store.ReleaseAllottedClaim(ctx, reg.ID)
	}
	if errors.Is(err, db.ErrClaimConfirmed) {
		return nil, fmt.Errorf("failed to cancel %s: %w", reg.ID, allocator.ErrConfirmedCancel)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to release claim: %w", err)
	}
	reg.Claim = nil

	logger.Info("Allocation cancelled",
		zap.String("registration_id", reg.ID),
		zap.String("portfolio", released.Key.String()),
		zap.String("previous_status", string(released.Status)))

	subject, body := releasedEmail(cfg, reg, released, "the allotment was cancelled by the organising team")
	return &CancellationResult{
		Registration: reg,
		Released:     released,
		FailedEmail:  notify(mailer, reg, subject, body, logger),
	}, nil
}
