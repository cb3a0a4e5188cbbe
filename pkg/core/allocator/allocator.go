package allocator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/munconf/portfolio-allotment/pkg/core/catalog"
)

// candidate is an eligible, open portfolio the delegate nominated
type candidate struct {
	evaluation int
	entry      catalog.Entry
	rank       int
	score      ScoreResult
}

// Allocate evaluates every preference and claims the best eligible open portfolio.
//
// Candidates are ordered by score (highest first), then preference rank (lowest
// first), then catalog declaration order. When the best candidate is claimed
// concurrently the next one is tried. A nil Outcome.Allocation means no eligible
// portfolio was available; the tracker is unchanged in that case.
func (e *Engine) Allocate(d Delegate, prefs []Preference, t *Tracker) (*Outcome, error) {
	if held, ok := t.Holder(d.ID); ok {
		return nil, fmt.Errorf("%w: %s holds %s", ErrAlreadyAllocated, d.ID, held.Key)
	}

	outcome := &Outcome{}
	var candidates []candidate

	for _, pref := range normalisePreferences(prefs) {
		ev := Evaluation{Preference: pref, Key: pref.Key()}

		entry, ok := e.catalog.Resolve(pref.Committee, pref.Subgroup, pref.Portfolio)
		if !ok {
			// Unknown portfolios still get a verdict but cannot be claimed
			ev.Score = e.ScoreAllocationFor(pref.Key(), d, pref.Rank)
			outcome.Evaluations = append(outcome.Evaluations, ev)
			continue
		}

		ev.Key = entry.Key
		ev.InCatalog = true
		ev.Available = t.Status(entry.Key) == ClaimOpen
		ev.Score = scoreFrom(e.evaluate(entry.Tier, entry.Key.Committee, d), pref.Rank)
		outcome.Evaluations = append(outcome.Evaluations, ev)

		if ev.Available && ev.Score.Eligible {
			candidates = append(candidates, candidate{
				evaluation: len(outcome.Evaluations) - 1,
				entry:      entry,
				rank:       pref.Rank,
				score:      ev.Score,
			})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.score.Score != b.score.Score {
			return a.score.Score > b.score.Score
		}
		if a.rank != b.rank {
			return a.rank < b.rank
		}
		return a.entry.Order < b.entry.Order
	})

	for _, c := range candidates {
		claim, err := t.Claim(c.entry.Key, ClaimRequest{
			DelegateID:     d.ID,
			Tier:           c.score.Eligibility.Tier,
			Score:          c.score.Score,
			PreferenceRank: c.rank,
			At:             e.now(),
		})
		if errors.Is(err, ErrPortfolioTaken) {
			outcome.Evaluations[c.evaluation].Available = false
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to claim %s: %w", c.entry.Key, err)
		}

		outcome.Allocation = &Allocation{
			Key:            claim.Key,
			Tier:           claim.Tier,
			Score:          claim.Score,
			PreferenceRank: claim.PreferenceRank,
			DelegateID:     claim.DelegateID,
			AllottedAt:     claim.AllottedAt,
		}
		break
	}

	return outcome, nil
}

// normalisePreferences orders preferences by rank and drops repeated portfolios,
// keeping the best-ranked nomination
func normalisePreferences(prefs []Preference) []Preference {
	sorted := make([]Preference, len(prefs))
	copy(sorted, prefs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Rank < sorted[j].Rank
	})

	seen := make(map[catalog.PortfolioKey]bool)
	out := make([]Preference, 0, len(sorted))
	for _, p := range sorted {
		if p.Committee == "" || p.Portfolio == "" {
			continue
		}
		if seen[p.Key()] {
			continue
		}
		seen[p.Key()] = true
		out = append(out, p)
	}
	return out
}
