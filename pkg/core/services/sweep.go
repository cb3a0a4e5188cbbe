package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/munconf/portfolio-allotment/internal/config"
	"github.com/munconf/portfolio-allotment/pkg/core/allocator"
	"github.com/munconf/portfolio-allotment/pkg/db"
)

// SweepStore defines the database operations needed to release expired allotments
type SweepStore interface {
	GetRegistrations(ctx context.Context) ([]db.Registration, error)
	GetClaims(ctx context.Context) ([]db.PortfolioClaim, error)
	ReleaseAllottedClaim(ctx context.Context, registrationID string) error
}

// ReleasedAllotment is an allotment released for non-payment
type ReleasedAllotment struct {
	Registration *db.Registration
	Claim        allocator.Claim
}

// SweepResult represents the result of an expiry sweep
type SweepResult struct {
	Cutoff   time.Time
	Released []ReleasedAllotment

	// Skipped lists registrations confirmed or cancelled while the sweep ran
	Skipped []string

	FailedEmails []FailedEmail
}

// SweepExpired releases every allotted portfolio whose confirmation window has
// passed. Confirmed portfolios are never released.
func SweepExpired(
	ctx context.Context,
	store SweepStore,
	engine *allocator.Engine,
	mailer Emailer,
	cfg *config.Config,
	logger *zap.Logger,
) (*SweepResult, error) {
	result := &SweepResult{Cutoff: engine.Now().Add(-cfg.ConfirmationWindowDuration())}
	logger.Debug("Starting sweepExpired", zap.Time("cutoff", result.Cutoff))

	tracker, err := loadTracker(ctx, store, engine, logger)
	if err != nil {
		return nil, err
	}

	expired := tracker.ReleaseExpired(result.Cutoff)
	if len(expired) == 0 {
		logger.Debug("No expired allotments")
		return result, nil
	}

	registrations, err := store.GetRegistrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch registrations: %w", err)
	}
	byID := make(map[string]*db.Registration, len(registrations))
	for i := range registrations {
		byID[registrations[i].ID] = &registrations[i]
	}

	for _, claim := range expired {
		err := store.ReleaseAllottedClaim(ctx, claim.DelegateID)
		if errors.Is(err, db.ErrClaimConfirmed) || errors.Is(err, db.ErrNotFound) {
			logger.Info("Allotment changed during sweep, skipping",
				zap.String("registration_id", claim.DelegateID),
				zap.Error(err))
			result.Skipped = append(result.Skipped, claim.DelegateID)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to release claim for %s: %w", claim.DelegateID, err)
		}

		logger.Info("Expired allotment released",
			zap.String("registration_id", claim.DelegateID),
			zap.String("portfolio", claim.Key.String()),
			zap.Time("allotted_at", claim.AllottedAt))

		reg, ok := byID[claim.DelegateID]
		if !ok {
			logger.Warn("Released claim has no registration", zap.String("registration_id", claim.DelegateID))
			continue
		}
		reg.Claim = nil
		result.Released = append(result.Released, ReleasedAllotment{Registration: reg, Claim: claim})

		subject, body := releasedEmail(cfg, reg, claim, "payment was not received within the confirmation window")
		if failed := notify(mailer, reg, subject, body, logger); failed != nil {
			result.FailedEmails = append(result.FailedEmails, *failed)
		}
	}

	logger.Debug("Sweep completed",
		zap.Int("released", len(result.Released)),
		zap.Int("skipped", len(result.Skipped)))

	return result, nil
}
