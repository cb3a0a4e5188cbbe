package allocator

import (
	"fmt"
	"math"

	"github.com/munconf/portfolio-allotment/pkg/core/catalog"
)

const (
	// RankPenaltyPercent is the score reduction per preference rank below first
	RankPenaltyPercent = 15

	// ExperienceBonusFactor weights the delegate's experience points in the score
	ExperienceBonusFactor = 0.5
)

// ScoreResult is the comparable score of a delegate for a portfolio at a preference rank
type ScoreResult struct {
	Score    int
	Eligible bool

	// Reason is set when the delegate is not eligible
	Reason string

	Eligibility EligibilityResult
}

// ScoreAllocation scores a portfolio for the delegate at the given preference rank.
// Ranks outside 1..MaxPreferences are clamped.
func (e *Engine) ScoreAllocation(portfolio, committee string, d Delegate, rank int) ScoreResult {
	return scoreFrom(e.CheckEligibility(portfolio, committee, d), rank)
}

// ScoreAllocationFor scores a subgroup-qualified key
func (e *Engine) ScoreAllocationFor(key catalog.PortfolioKey, d Delegate, rank int) ScoreResult {
	return scoreFrom(e.CheckEligibilityFor(key, d), rank)
}

func scoreFrom(el EligibilityResult, rank int) ScoreResult {
	if !el.IsEligible {
		return ScoreResult{
			Score:       0,
			Eligible:    false,
			Reason:      IneligibleReason(el.RequiredExperience, el.RequiredBestDelegates),
			Eligibility: el,
		}
	}

	rank = min(max(rank, 1), MaxPreferences)
	rankFactor := float64(100-(rank-1)*RankPenaltyPercent) / 100

	score := float64(el.Points)*el.Multiplier*rankFactor + float64(el.UserPoints)*ExperienceBonusFactor

	return ScoreResult{
		Score:       int(math.Round(score)),
		Eligible:    true,
		Eligibility: el,
	}
}

// IneligibleReason describes a tier's thresholds for a delegate who does not meet them
func IneligibleReason(minExperience, minBestDelegates int) string {
	return fmt.Sprintf("Requires %d+ MUNs and %d+ Best Delegates", minExperience, minBestDelegates)
}
