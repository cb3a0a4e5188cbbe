package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/munconf/portfolio-allotment/pkg/core/allocator"
	"github.com/munconf/portfolio-allotment/pkg/core/catalog"
	"github.com/munconf/portfolio-allotment/pkg/db"
)

// EligibilityStore defines the database operations needed to check eligibility
type EligibilityStore interface {
	GetRegistration(ctx context.Context, id string) (*db.Registration, error)
	GetClaims(ctx context.Context) ([]db.PortfolioClaim, error)
}

// EligibilityCheck is a registration's standing against one portfolio
type EligibilityCheck struct {
	Registration *db.Registration
	Key          catalog.PortfolioKey
	InCatalog    bool
	Eligibility  allocator.EligibilityResult

	// Score is the allocation score as a first preference
	Score allocator.ScoreResult

	Status allocator.ClaimStatus
	Holder string
}

// CheckEligibility reports whether a registration qualifies for a portfolio and how it would score
func CheckEligibility(
	ctx context.Context,
	store EligibilityStore,
	engine *allocator.Engine,
	logger *zap.Logger,
	registrationID string,
	committee, subgroup, portfolio string,
) (*EligibilityCheck, error) {
	logger.Debug("Starting checkEligibility",
		zap.String("registration_id", registrationID),
		zap.String("committee", committee),
		zap.String("subgroup", subgroup),
		zap.String("portfolio", portfolio))

	reg, err := store.GetRegistration(ctx, registrationID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch registration: %w", err)
	}
	delegate := toDelegate(reg, logger)

	check := &EligibilityCheck{
		Registration: reg,
		Key:          catalog.PortfolioKey{Committee: committee, Subgroup: subgroup, Name: portfolio},
		Status:       allocator.ClaimOpen,
	}

	entry, ok := engine.Catalog().Resolve(committee, subgroup, portfolio)
	if !ok {
		check.Eligibility = engine.CheckEligibilityFor(check.Key, delegate)
		check.Score = engine.ScoreAllocationFor(check.Key, delegate, 1)
		return check, nil
	}

	check.Key = entry.Key
	check.InCatalog = true
	check.Eligibility = engine.CheckEligibilityFor(entry.Key, delegate)
	check.Score = engine.ScoreAllocationFor(entry.Key, delegate, 1)

	tracker, err := loadTracker(ctx, store, engine, logger)
	if err != nil {
		return nil, err
	}
	check.Status = tracker.Status(entry.Key)
	for _, c := range tracker.Claims() {
		if c.Key == entry.Key {
			check.Holder = c.DelegateID
			break
		}
	}

	return check, nil
}
