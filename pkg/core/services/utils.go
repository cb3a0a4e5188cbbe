package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/munconf/portfolio-allotment/internal/config"
	"github.com/munconf/portfolio-allotment/pkg/core/allocator"
	"github.com/munconf/portfolio-allotment/pkg/core/catalog"
	"github.com/munconf/portfolio-allotment/pkg/db"
)

var (
	// ErrCapacityExceeded is returned when the allotted share of registrations has reached its cap
	ErrCapacityExceeded = errors.New("allocation capacity reached")

	// ErrInvalidPaymentCode is returned when a payment code does not match the registration
	ErrInvalidPaymentCode = errors.New("invalid payment code")
)

// maxClaimAttempts bounds how often allocation is re-run after losing a claim race in the store
const maxClaimAttempts = 3

// PaymentCodePrefix prefixes generated payment codes
const PaymentCodePrefix = "PAY"

// ClaimReader is the read side of the claim store shared by most services
type ClaimReader interface {
	GetClaims(ctx context.Context) ([]db.PortfolioClaim, error)
}

// newCode returns prefix-XXXXXXXX using the first eight hex digits of a random UUID
func newCode(prefix string) string {
	return prefix + "-" + strings.ToUpper(uuid.NewString()[:8])
}

// toDelegate converts a stored registration into the engine's view of a delegate.
// An unrecognised experience band scores as BandUnknown.
func toDelegate(reg *db.Registration, logger *zap.Logger) allocator.Delegate {
	band, err := allocator.ParseExperienceBand(reg.ExperienceBand)
	if err != nil {
		logger.Warn("Unrecognised experience band, scoring as unknown",
			zap.String("registration_id", reg.ID),
			zap.String("experience_band", reg.ExperienceBand))
		band = allocator.BandUnknown
	}

	return allocator.Delegate{
		ID:                   reg.ID,
		Name:                 reg.Name,
		Email:                reg.Email,
		Phone:                reg.Phone,
		Institution:          reg.Institution,
		Class:                reg.Class,
		Experience:           band,
		BestDelegateAwards:   reg.BestDelegateAwards,
		SpecialMentionAwards: reg.SpecialMentionAwards,
		VerbalMentionAwards:  reg.VerbalMentionAwards,
		Participations:       reg.Participations,
	}
}

func toPreferences(prefs []db.Preference) []allocator.Preference {
	out := make([]allocator.Preference, 0, len(prefs))
	for _, p := range prefs {
		out = append(out, allocator.Preference{
			Rank:      p.Rank,
			Committee: p.Committee,
			Subgroup:  p.Subgroup,
			Portfolio: p.Portfolio,
		})
	}
	return out
}

func claimKey(c db.PortfolioClaim) catalog.PortfolioKey {
	return catalog.PortfolioKey{Committee: c.Committee, Subgroup: c.Subgroup, Name: c.Portfolio}
}

func toTrackerClaim(c db.PortfolioClaim) (allocator.Claim, error) {
	status, err := allocator.ParseClaimStatus(c.Status)
	if err != nil {
		return allocator.Claim{}, err
	}

	claim := allocator.Claim{
		Key:            claimKey(c),
		Status:         status,
		DelegateID:     c.RegistrationID,
		Tier:           catalog.Tier(c.Tier),
		Score:          c.Score,
		PreferenceRank: c.PreferenceRank,
		AllottedAt:     c.AllottedAt,
	}
	if c.ConfirmedAt != nil {
		claim.ConfirmedAt = *c.ConfirmedAt
	}
	return claim, nil
}

func toDBClaim(a *allocator.Allocation) *db.PortfolioClaim {
	return &db.PortfolioClaim{
		Committee:      a.Key.Committee,
		Subgroup:       a.Key.Subgroup,
		Portfolio:      a.Key.Name,
		RegistrationID: a.DelegateID,
		Status:         db.ClaimStatusAllotted,
		Tier:           int(a.Tier),
		Score:          a.Score,
		PreferenceRank: a.PreferenceRank,
		AllottedAt:     a.AllottedAt,
	}
}

// loadTracker builds a tracker holding every persisted claim. Claims on
// portfolios no longer in the catalog are skipped with a warning.
func loadTracker(ctx context.Context, store ClaimReader, engine *allocator.Engine, logger *zap.Logger) (*allocator.Tracker, error) {
	claims, err := store.GetClaims(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch claims: %w", err)
	}

	cat := engine.Catalog()
	restored := make([]allocator.Claim, 0, len(claims))
	for _, c := range claims {
		if _, ok := cat.Lookup(claimKey(c)); !ok {
			logger.Warn("Skipping claim on portfolio not in catalog",
				zap.String("registration_id", c.RegistrationID),
				zap.String("portfolio", claimKey(c).String()))
			continue
		}
		claim, err := toTrackerClaim(c)
		if err != nil {
			return nil, fmt.Errorf("failed to read claim for %s: %w", c.RegistrationID, err)
		}
		restored = append(restored, claim)
	}

	tracker := allocator.NewTracker(cat)
	if err := tracker.Restore(restored); err != nil {
		return nil, fmt.Errorf("failed to restore claims: %w", err)
	}

	logger.Debug("Tracker loaded", zap.Int("claims", len(restored)))
	return tracker, nil
}

// countStatuses returns the number of allotted and confirmed registrations
func countStatuses(registrations []db.Registration) (allotted, confirmed int) {
	for _, reg := range registrations {
		switch reg.Status() {
		case db.StatusAllotted:
			allotted++
		case db.StatusConfirmed:
			confirmed++
		}
	}
	return allotted, confirmed
}

// admissionLimits applies the configured caps to the current registrations
func admissionLimits(registrations []db.Registration, cfg *config.Config) allocator.Limits {
	allotted, confirmed := countStatuses(registrations)
	return allocator.CheckLimits(len(registrations), allotted, confirmed, caps(cfg))
}

func caps(cfg *config.Config) allocator.Caps {
	if cfg == nil {
		return allocator.DefaultCaps
	}
	return allocator.Caps{
		AllottedPercent:  cfg.Admission.AllottedPercent,
		ConfirmedPercent: cfg.Admission.ConfirmedPercent,
	}
}
