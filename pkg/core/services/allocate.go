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

// ClaimWriter defines the store operations needed to persist an allocation
type ClaimWriter interface {
	GetClaims(ctx context.Context) ([]db.PortfolioClaim, error)
	InsertClaim(ctx context.Context, claim *db.PortfolioClaim) error
}

// AllocationStore defines the database operations needed for on-demand allocation
type AllocationStore interface {
	ClaimWriter
	GetRegistration(ctx context.Context, id string) (*db.Registration, error)
	GetRegistrations(ctx context.Context) ([]db.Registration, error)
}

// AllocationResult represents the result of allocating one registration
type AllocationResult struct {
	Registration *db.Registration
	Outcome      *allocator.Outcome
	FailedEmail  *FailedEmail
}

// AllocatePendingResult represents the result of allocating every pending registration
type AllocatePendingResult struct {
	Allotted     []AllocationResult
	Unallocated  []AllocationResult
	Limits       allocator.Limits
	SkippedByCap int
	FailedEmails []FailedEmail
}

// allocate runs the engine against a fresh snapshot of the persisted claims and
// stores the chosen claim. Losing the store's race for a portfolio re-runs the
// engine with a new snapshot, up to maxClaimAttempts times.
func allocate(ctx context.Context, store ClaimWriter, engine *allocator.Engine, reg *db.Registration, logger *zap.Logger) (*allocator.Outcome, error) {
	delegate := toDelegate(reg, logger)
	prefs := toPreferences(reg.Preferences)

	for attempt := 1; attempt <= maxClaimAttempts; attempt++ {
		tracker, err := loadTracker(ctx, store, engine, logger)
		if err != nil {
			return nil, err
		}

		outcome, err := engine.Allocate(delegate, prefs, tracker)
		if err != nil {
			return nil, fmt.Errorf("failed to allocate %s: %w", reg.ID, err)
		}
		if !outcome.Allocated() {
			logger.Debug("No eligible portfolio available", zap.String("registration_id", reg.ID))
			return outcome, nil
		}

		claim := toDBClaim(outcome.Allocation)
		err = store.InsertClaim(ctx, claim)
		if err == nil {
			logger.Info("Portfolio allotted",
				zap.String("registration_id", reg.ID),
				zap.String("portfolio", outcome.Allocation.Key.String()),
				zap.Int("score", outcome.Allocation.Score),
				zap.Int("preference_rank", outcome.Allocation.PreferenceRank))
			reg.Claim = claim
			return outcome, nil
		}

		if errors.Is(err, db.ErrAlreadyClaimed) {
			return nil, fmt.Errorf("%w: %s", allocator.ErrAlreadyAllocated, reg.ID)
		}
		if !errors.Is(err, db.ErrPortfolioTaken) {
			return nil, fmt.Errorf("failed to store claim: %w", err)
		}

		logger.Warn("Lost claim race, retrying with fresh claims",
			zap.String("registration_id", reg.ID),
			zap.String("portfolio", outcome.Allocation.Key.String()),
			zap.Int("attempt", attempt))
	}

	return nil, fmt.Errorf("failed to claim a portfolio for %s after %d attempts: %w", reg.ID, maxClaimAttempts, db.ErrPortfolioTaken)
}

// AllocateRegistration allocates a portfolio to one pending registration, subject to the admission cap
func AllocateRegistration(
	ctx context.Context,
	store AllocationStore,
	engine *allocator.Engine,
	mailer Emailer,
	cfg *config.Config,
	logger *zap.Logger,
	registrationID string,
) (*AllocationResult, error) {
	logger.Debug("Starting allocateRegistration", zap.String("registration_id", registrationID))

	reg, err := store.GetRegistration(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch registration: %w", err)
	}
	if reg.Claim != nil {
		return nil, fmt.Errorf("%w: %s holds %s / %s", allocator.ErrAlreadyAllocated, reg.ID, reg.Claim.Committee, reg.Claim.Portfolio)
	}

	registrations, err := store.GetRegistrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch registrations: %w", err)
	}
	limits := admissionLimits(registrations, cfg)
	if !limits.CanAllot {
		return nil, fmt.Errorf("%w: %d of %d registrations allotted", ErrCapacityExceeded, limits.Allotted, limits.TotalRegistrations)
	}

	outcome, err := allocate(ctx, store, engine, reg, logger)
	if err != nil {
		return nil, err
	}

	result := &AllocationResult{Registration: reg, Outcome: outcome}
	if outcome.Allocated() {
		deadline := reg.Claim.AllottedAt.Add(cfg.ConfirmationWindowDuration())
		subject, body := allottedEmail(cfg, reg, outcome.Warnings(), deadline)
		result.FailedEmail = notify(mailer, reg, subject, body, logger)
	}

	return result, nil
}

// AllocatePending allocates pending registrations in arrival order until the admission cap is reached
func AllocatePending(
	ctx context.Context,
	store AllocationStore,
	engine *allocator.Engine,
	mailer Emailer,
	cfg *config.Config,
	logger *zap.Logger,
) (*AllocatePendingResult, error) {
	logger.Debug("Starting allocatePending")

	registrations, err := store.GetRegistrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch registrations: %w", err)
	}

	var pending []db.Registration
	for _, reg := range registrations {
		if reg.Claim == nil {
			pending = append(pending, reg)
		}
	}
	logger.Info("Found pending registrations", zap.Int("count", len(pending)))

	allotted, confirmed := countStatuses(registrations)
	result := &AllocatePendingResult{}

	for i := range pending {
		reg := &pending[i]

		result.Limits = allocator.CheckLimits(len(registrations), allotted, confirmed, caps(cfg))
		if !result.Limits.CanAllot {
			result.SkippedByCap = len(pending) - i
			logger.Info("Admission cap reached",
				zap.Int("allotted", allotted),
				zap.Int("total", len(registrations)),
				zap.Int("skipped", result.SkippedByCap))
			break
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}

		outcome, err := allocate(ctx, store, engine, reg, logger)
		if errors.Is(err, allocator.ErrAlreadyAllocated) {
			// Allocated concurrently since the registrations were read
			logger.Debug("Registration allocated elsewhere", zap.String("registration_id", reg.ID))
			continue
		}
		if err != nil {
			return nil, err
		}

		entry := AllocationResult{Registration: reg, Outcome: outcome}
		if !outcome.Allocated() {
			result.Unallocated = append(result.Unallocated, entry)
			continue
		}

		allotted++
		deadline := reg.Claim.AllottedAt.Add(cfg.ConfirmationWindowDuration())
		subject, body := allottedEmail(cfg, reg, outcome.Warnings(), deadline)
		if failed := notify(mailer, reg, subject, body, logger); failed != nil {
			entry.FailedEmail = failed
			result.FailedEmails = append(result.FailedEmails, *failed)
		}
		result.Allotted = append(result.Allotted, entry)
	}

	result.Limits = allocator.CheckLimits(len(registrations), allotted, confirmed, caps(cfg))

	logger.Debug("Allocate pending completed",
		zap.Int("allotted", len(result.Allotted)),
		zap.Int("unallocated", len(result.Unallocated)),
		zap.Int("skipped_by_cap", result.SkippedByCap))

	return result, nil
}
