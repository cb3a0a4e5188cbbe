package allocator

import "github.com/munconf/portfolio-allotment/pkg/core/catalog"

// EligibilityResult is the verdict of checking a delegate against a portfolio's tier
type EligibilityResult struct {
	Tier       catalog.Tier
	IsEligible bool

	RequiredExperience    int
	RequiredBestDelegates int

	UserExperience    int
	UserBestDelegates int
	UserPoints        int

	// Multiplier is the committee difficulty multiplier
	Multiplier float64

	// Points is the tier's base point value
	Points int
}

// CheckEligibility classifies the portfolio within the committee and checks the
// delegate against that tier's thresholds. Unknown portfolios fall through to tier5.
func (e *Engine) CheckEligibility(portfolio, committee string, d Delegate) EligibilityResult {
	return e.evaluate(e.catalog.Classify(committee, portfolio), committee, d)
}

// CheckEligibilityFor checks a subgroup-qualified key. A key with a subgroup that
// does not match a catalog entry is treated as an unknown portfolio.
func (e *Engine) CheckEligibilityFor(key catalog.PortfolioKey, d Delegate) EligibilityResult {
	if key.Subgroup == "" {
		return e.CheckEligibility(key.Name, key.Committee, d)
	}
	if entry, ok := e.catalog.Lookup(key); ok {
		return e.evaluate(entry.Tier, key.Committee, d)
	}
	return e.evaluate(catalog.Tier5, key.Committee, d)
}

func (e *Engine) evaluate(tier catalog.Tier, committee string, d Delegate) EligibilityResult {
	info := tier.Info()
	if !tier.Valid() {
		tier = catalog.Tier5
	}

	userExperience := d.Experience.LowerBound()
	userBest := nonNegative(d.BestDelegateAwards)

	return EligibilityResult{
		Tier:                  tier,
		IsEligible:            userExperience >= info.MinExperience && userBest >= info.MinBestDelegates,
		RequiredExperience:    info.MinExperience,
		RequiredBestDelegates: info.MinBestDelegates,
		UserExperience:        userExperience,
		UserBestDelegates:     userBest,
		UserPoints:            ComputeExperiencePoints(d),
		Multiplier:            e.catalog.Multiplier(committee),
		Points:                info.Points,
	}
}
