package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/munconf/portfolio-allotment/internal/config"
	"github.com/munconf/portfolio-allotment/pkg/db"
)

// DefaultReminderConcurrency is the number of reminder emails sent in parallel
const DefaultReminderConcurrency = 4

// ReminderSent represents a delegate who was successfully sent a reminder
type ReminderSent struct {
	RegistrationID string
	Name           string
	Email          string
	Portfolio      string
}

// RemindersStore defines the database operations needed for sending payment reminders
type RemindersStore interface {
	GetRegistrations(ctx context.Context) ([]db.Registration, error)
}

// SendPaymentReminders emails every allotted (unpaid) delegate.
// Confirmed and pending delegates are skipped. Individual send failures are collected,
// and an error is returned only if every send failed or the context was cancelled.
func SendPaymentReminders(
	ctx context.Context,
	store RemindersStore,
	mailer Emailer,
	cfg *config.Config,
	logger *zap.Logger,
	concurrency int,
) ([]ReminderSent, []FailedEmail, error) {
	logger.Debug("Starting sendPaymentReminders", zap.Int("concurrency", concurrency))
	if concurrency <= 0 {
		concurrency = DefaultReminderConcurrency
	}

	registrations, err := store.GetRegistrations(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch registrations: %w", err)
	}

	var unpaid []db.Registration
	for _, reg := range registrations {
		if reg.Status() == db.StatusAllotted {
			unpaid = append(unpaid, reg)
		}
	}
	logger.Info("Found delegates awaiting payment", zap.Int("count", len(unpaid)))

	if len(unpaid) == 0 {
		return []ReminderSent{}, []FailedEmail{}, nil
	}

	var (
		mu     sync.Mutex
		sent   = []ReminderSent{}
		failed = []FailedEmail{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i := range unpaid {
		reg := &unpaid[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			deadline := reg.Claim.AllottedAt.Add(cfg.ConfirmationWindowDuration())
			subject, body := reminderEmail(cfg, reg, deadline)
			failure := notify(mailer, reg, subject, body, logger)

			mu.Lock()
			defer mu.Unlock()
			if failure != nil {
				failed = append(failed, *failure)
				return nil
			}
			sent = append(sent, ReminderSent{
				RegistrationID: reg.ID,
				Name:           reg.Name,
				Email:          reg.Email,
				Portfolio:      claimKey(*reg.Claim).String(),
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, fmt.Errorf("reminders interrupted: %w", err)
	}

	if len(failed) == len(unpaid) {
		return nil, failed, fmt.Errorf("all %d reminder email send attempts failed", len(failed))
	}

	logger.Debug("Send payment reminders completed",
		zap.Int("reminders_sent", len(sent)),
		zap.Int("reminders_failed", len(failed)))

	return sent, failed, nil
}
