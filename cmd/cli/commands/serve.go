package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/munconf/portfolio-allotment/pkg/core/services"
	"github.com/munconf/portfolio-allotment/pkg/scheduler"
)

const (
	sweepJobName     = "sweepExpired"
	remindersJobName = "sendReminders"
)

// ServeCmd creates the serve command
func ServeCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the expiry sweep (and optionally payment reminders) on a schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			remindersSpec, _ := cmd.Flags().GetString("reminders")
			runNow, _ := cmd.Flags().GetBool("run-now")

			sched := scheduler.New(nil, app.Logger)
			if err := registerJobs(sched, app, remindersSpec); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(app.Ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if runNow {
				sched.RunNow(sweepJobName, sweepJob(app))
			}

			sched.Start()
			defer sched.Stop()

			fmt.Printf("\n✓ Scheduler running (press Ctrl+C to stop)\n\n")
			for _, name := range []string{sweepJobName, remindersJobName} {
				if next, ok := sched.Next(name); ok {
					fmt.Printf("  %-15s next run %s\n", name, next.Format("2006-01-02 15:04:05 MST"))
				}
			}
			fmt.Println()

			<-ctx.Done()
			app.Logger.Info("Shutting down scheduler")
			fmt.Println("👋 Stopping scheduler...")

			return nil
		},
	}

	cmd.Flags().String("reminders", "", "Cron spec for payment reminders (disabled when empty)")
	cmd.Flags().Bool("run-now", false, "Run the expiry sweep once before starting the schedule")

	return cmd
}

func registerJobs(sched *scheduler.Scheduler, app *AppContext, remindersSpec string) error {
	if err := sched.Add(sweepJobName, app.Cfg.SweepSchedule, sweepJob(app)); err != nil {
		return err
	}

	if remindersSpec == "" {
		return nil
	}
	return sched.Add(remindersJobName, remindersSpec, remindersJob(app))
}

func sweepJob(app *AppContext) scheduler.Job {
	return func(ctx context.Context) error {
		result, err := runSweep(ctx, app)
		if err != nil {
			return err
		}
		app.Logger.Info("Scheduled sweep completed",
			zap.Int("released", len(result.Released)),
			zap.Int("skipped", len(result.Skipped)),
			zap.Int("failed_emails", len(result.FailedEmails)))
		return nil
	}
}

func remindersJob(app *AppContext) scheduler.Job {
	return func(ctx context.Context) error {
		sent, failed, err := services.SendPaymentReminders(ctx, app.Database, app.Mailer, app.Cfg, app.Logger, services.DefaultReminderConcurrency)
		if err != nil {
			return err
		}
		app.Logger.Info("Scheduled reminders completed",
			zap.Int("sent", len(sent)),
			zap.Int("failed", len(failed)))
		return nil
	}
}
