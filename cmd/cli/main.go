package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/munconf/portfolio-allotment/cmd/cli/commands"
	"github.com/munconf/portfolio-allotment/internal/config"
	"github.com/munconf/portfolio-allotment/pkg/clients/gmailclient"
	"github.com/munconf/portfolio-allotment/pkg/core/allocator"
	"github.com/munconf/portfolio-allotment/pkg/core/catalog"
	"github.com/munconf/portfolio-allotment/pkg/core/services"
	"github.com/munconf/portfolio-allotment/pkg/db"
	"github.com/munconf/portfolio-allotment/pkg/postgres"
	"github.com/munconf/portfolio-allotment/pkg/sqlite"
	"github.com/munconf/portfolio-allotment/pkg/utils"
	"github.com/munconf/portfolio-allotment/pkg/utils/logging"
)

var (
	env     string
	verbose bool
	app     = &commands.AppContext{}
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "cli",
		Short: "MUN portfolio allotment CLI - register delegates and allot portfolios",
		Long:  `A CLI tool for registering MUN delegates, allotting portfolios by experience and tier, and tracking payment confirmation.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			closeApp()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&env, "env", "e", "", "Environment (required: test, prod, etc.)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug output to the console")
	rootCmd.MarkPersistentFlagRequired("env")

	rootCmd.AddCommand(commands.RegisterCmd(app))
	rootCmd.AddCommand(commands.AllocateCmd(app))
	rootCmd.AddCommand(commands.AllocatePendingCmd(app))
	rootCmd.AddCommand(commands.ConfirmCmd(app))
	rootCmd.AddCommand(commands.CancelCmd(app))
	rootCmd.AddCommand(commands.SendRemindersCmd(app))
	rootCmd.AddCommand(commands.SweepExpiredCmd(app))
	rootCmd.AddCommand(commands.ListRegistrationsCmd(app))
	rootCmd.AddCommand(commands.StatisticsCmd(app))
	rootCmd.AddCommand(commands.LeaderboardCmd(app))
	rootCmd.AddCommand(commands.CheckEligibilityCmd(app))
	rootCmd.AddCommand(commands.CatalogCmd(app))
	rootCmd.AddCommand(commands.ServeCmd(app))
	rootCmd.AddCommand(commands.InteractiveCmd(app))
	rootCmd.AddCommand(logoutCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initApp sets up logger, config, engine, database and mailer
func initApp() error {
	var err error
	app.Ctx = context.Background()
	app.Env = env

	app.Logger, err = logging.NewLogger(logging.Options{Env: env, Verbose: verbose})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	app.Logger.Info("Starting application", zap.String("environment", env))

	// Load configuration
	app.Logger.Debug("Loading configuration")
	app.Cfg, err = config.LoadWithEnv(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	app.Logger.Debug("Configuration loaded successfully", zap.String("conference", app.Cfg.ConferenceName))

	// Load the embedded portfolio catalog
	app.Engine = allocator.NewEngine(catalog.Default())
	app.Logger.Debug("Catalog loaded", zap.Int("portfolios", len(app.Engine.Catalog().Entries())))

	// Connect to the database
	app.Database, err = openDatabase(app.Ctx, app.Cfg, app.Logger)
	if err != nil {
		return err
	}

	// Initialize the mailer
	app.Mailer, err = newMailer(app.Ctx, app.Cfg, env, app.Logger)
	if err != nil {
		return err
	}

	return nil
}

func closeApp() {
	if app.Database != nil {
		if err := app.Database.Close(); err != nil && app.Logger != nil {
			app.Logger.Warn("Failed to close database", zap.Error(err))
		}
	}
	if app.Logger != nil {
		app.Logger.Sync()
	}
}

// openDatabase connects to the configured backend and prepares its schema
func openDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger) (db.Database, error) {
	logger.Info("Connecting to database", zap.String("driver", cfg.Database.Driver))

	switch cfg.Database.Driver {
	case config.DriverPostgres:
		pg, err := postgres.NewDB(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		if err := pg.RunMigrations(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Debug("Postgres migrations applied")
		return pg, nil

	case config.DriverSQLite:
		lite, err := sqlite.NewDB(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		logger.Debug("SQLite database opened", zap.String("path", cfg.Database.DSN))
		return lite, nil
	}

	return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
}

// newMailer returns a Gmail client, or a logging mailer when noEmail is set
func newMailer(ctx context.Context, cfg *config.Config, env string, logger *zap.Logger) (services.Emailer, error) {
	if cfg.NoEmail {
		logger.Info("noEmail set - emails will be logged, not sent")
		return services.LogEmailer{Logger: logger}, nil
	}

	logger.Debug("Loading OAuth client configuration")
	oauthCfg, err := config.LoadOAuthClientWithEnv(env)
	if err != nil {
		return nil, fmt.Errorf("failed to load OAuth client config: %w", err)
	}

	oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth config: %w", err)
	}

	token, err := utils.GetTokenWithFlow(ctx, oauthConfig, env, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth token: %w", err)
	}

	logger.Info("Initializing gmail client")
	client, err := gmailclient.NewClient(ctx, oauthCfg, token, gmailclient.Options{
		UserID: cfg.GmailUserID,
		Sender: cfg.GmailSender,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail client: %w", err)
	}
	logger.Debug("Gmail client initialized successfully")

	return client, nil
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete the stored Gmail OAuth token for this environment",
		Args:  cobra.NoArgs,
		// No config or database needed
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		PersistentPostRun: func(cmd *cobra.Command, args []string) {},
		RunE: func(cmd *cobra.Command, args []string) error {
			utils.ClearToken()
			if err := utils.DeleteTokenFile(env); err != nil {
				return err
			}
			fmt.Printf("\n✓ Stored token for %s deleted\n\n", env)
			return nil
		},
	}
}
