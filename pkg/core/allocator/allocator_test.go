package allocator

import (
	"fmt"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/munconf/portfolio-allotment/pkg/core/catalog"
)

func TestAllocate_ClaimsEligiblePortfolio(t *testing.T) {
	engine := newTestEngine()
	tracker := NewTracker(engine.Catalog())
	d := newDelegate("a", Band11To20, 4)

	outcome, err := engine.Allocate(d, []Preference{pref(1, "UNSC", "Japan")}, tracker)
	require.NoError(t, err)
	require.True(t, outcome.Allocated())

	alloc := outcome.Allocation
	assert.Equal(t, catalog.PortfolioKey{Committee: "UNSC", Name: "Japan"}, alloc.Key)
	assert.Equal(t, catalog.Tier2, alloc.Tier)
	assert.Equal(t, 148, alloc.Score)
	assert.Equal(t, 1, alloc.PreferenceRank)
	assert.Equal(t, "a", alloc.DelegateID)
	assert.Equal(t, fixedNow, alloc.AllottedAt)

	assert.Equal(t, ClaimAllotted, tracker.Status(alloc.Key))
	assert.Empty(t, outcome.Warnings())
}

func TestAllocate_IneligibleFirstChoiceFallsThrough(t *testing.T) {
	engine := newTestEngine()
	tracker := NewTracker(engine.Catalog())
	d := newDelegate("a", Band0, 0)

	outcome, err := engine.Allocate(d, []Preference{
		pref(1, "UNSC", "United States (P5)"),
		pref(2, "UNGA", "Bhutan"),
	}, tracker)
	require.NoError(t, err)
	require.True(t, outcome.Allocated())

	assert.Equal(t, "Bhutan", outcome.Allocation.Key.Name)
	assert.Equal(t, 2, outcome.Allocation.PreferenceRank)

	require.Len(t, outcome.Evaluations, 2)
	assert.False(t, outcome.Evaluations[0].Score.Eligible)
	assert.Contains(t, outcome.Evaluations[0].Reason(), "10+ MUNs")

	warnings := outcome.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "Preference 1")
	assert.Contains(t, warnings[0], "5+ Best Delegates")
}

func TestAllocate_AllIneligibleLeavesTrackerUnchanged(t *testing.T) {
	engine := newTestEngine()
	tracker := NewTracker(engine.Catalog())
	before := tracker.Counts()
	d := newDelegate("a", Band0, 0)

	outcome, err := engine.Allocate(d, []Preference{
		pref(1, "UNSC", "United States (P5)"),
		pref(2, "UNGA", "India"),
		pref(3, "UNGA", "Kenya"),
	}, tracker)
	require.NoError(t, err)

	assert.False(t, outcome.Allocated())
	assert.Len(t, outcome.Evaluations, 3)
	assert.Len(t, outcome.Warnings(), 3)
	assert.Equal(t, before, tracker.Counts())
	_, holds := tracker.Holder("a")
	assert.False(t, holds)
}

func TestAllocate_SecondDelegateSkipsTakenPortfolio(t *testing.T) {
	engine := newTestEngine()
	tracker := NewTracker(engine.Catalog())

	first := newDelegate("first", Band11To20, 5)
	second := newDelegate("second", Band11To20, 5)
	third := newDelegate("third", Band11To20, 5)

	outcome, err := engine.Allocate(first, []Preference{pref(1, "UNGA", "India")}, tracker)
	require.NoError(t, err)
	require.True(t, outcome.Allocated())
	assert.Equal(t, "India", outcome.Allocation.Key.Name)

	// Falls through to its next preference
	outcome, err = engine.Allocate(second, []Preference{
		pref(1, "UNGA", "India"),
		pref(2, "UNGA", "Germany"),
	}, tracker)
	require.NoError(t, err)
	require.True(t, outcome.Allocated())
	assert.Equal(t, "Germany", outcome.Allocation.Key.Name)
	assert.False(t, outcome.Evaluations[0].Available)
	assert.Equal(t, "portfolio already taken", outcome.Evaluations[0].Reason())

	// No other preference, no allocation
	outcome, err = engine.Allocate(third, []Preference{pref(1, "UNGA", "India")}, tracker)
	require.NoError(t, err)
	assert.False(t, outcome.Allocated())

	claim, ok := tracker.Holder("first")
	require.True(t, ok)
	assert.Equal(t, "India", claim.Key.Name)
}

func TestAllocate_HigherScoringLowerRankWins(t *testing.T) {
	engine := newTestEngine()
	tracker := NewTracker(engine.Catalog())
	d := newDelegate("a", Band11To20, 4)

	outcome, err := engine.Allocate(d, []Preference{
		pref(1, "UNGA", "Kenya"), // tier5: round(15 + 35) = 50
		pref(2, "UNSC", "Japan"), // tier2: round(75*1.5*0.85 + 35) = 131
	}, tracker)
	require.NoError(t, err)
	require.True(t, outcome.Allocated())

	assert.Equal(t, catalog.PortfolioKey{Committee: "UNSC", Name: "Japan"}, outcome.Allocation.Key)
	assert.Equal(t, 131, outcome.Allocation.Score)
	assert.Equal(t, 2, outcome.Allocation.PreferenceRank)
	assert.Equal(t, ClaimOpen, tracker.Status(catalog.PortfolioKey{Committee: "UNGA", Name: "Kenya"}))
}

func TestAllocate_EqualScoreTieBreaks(t *testing.T) {
	cat := loadTestCatalog(t, `
committees:
  - code: ALPHA
    name: Alpha
    multiplier: 1.18
    portfolios:
      unranked: [A1, A2]
  - code: BETA
    name: Beta
    portfolios:
      unranked: [B1, B2]
`)
	engine := NewEngine(cat)
	d := newDelegate("a", Band1, 0)

	t.Run("lower rank wins over catalog order", func(t *testing.T) {
		tracker := NewTracker(cat)

		// rank 1: round(15*1.0 + 2.5) = 18; rank 2: round(15*1.18*0.85 + 2.5) = 18
		outcome, err := engine.Allocate(d, []Preference{
			pref(1, "BETA", "B1"),
			pref(2, "ALPHA", "A1"),
		}, tracker)
		require.NoError(t, err)
		require.True(t, outcome.Allocated())
		assert.Equal(t, outcome.Evaluations[0].Score.Score, outcome.Evaluations[1].Score.Score)
		assert.Equal(t, "B1", outcome.Allocation.Key.Name)
	})

	t.Run("catalog order breaks equal rank", func(t *testing.T) {
		tracker := NewTracker(cat)

		outcome, err := engine.Allocate(d, []Preference{
			pref(1, "BETA", "B2"),
			pref(1, "BETA", "B1"),
		}, tracker)
		require.NoError(t, err)
		require.True(t, outcome.Allocated())
		assert.Equal(t, "B1", outcome.Allocation.Key.Name)
	})
}

func TestAllocate_UnknownPortfolioIsNeverClaimed(t *testing.T) {
	engine := newTestEngine()
	tracker := NewTracker(engine.Catalog())
	d := newDelegate("a", Band5, 2)

	outcome, err := engine.Allocate(d, []Preference{pref(1, "UNGA", "Atlantis")}, tracker)
	require.NoError(t, err)

	assert.False(t, outcome.Allocated())
	require.Len(t, outcome.Evaluations, 1)
	ev := outcome.Evaluations[0]
	assert.False(t, ev.InCatalog)
	assert.True(t, ev.Score.Eligible, "unknown portfolios still get a tier5 verdict")
	assert.Equal(t, catalog.Tier5, ev.Score.Eligibility.Tier)
	assert.Equal(t, "portfolio not in catalog", ev.Reason())
}

func TestAllocate_SubgroupPreference(t *testing.T) {
	engine := newTestEngine()
	tracker := NewTracker(engine.Catalog())
	d := newDelegate("a", Band30Plus, 6)

	outcome, err := engine.Allocate(d, []Preference{
		{Rank: 1, Committee: "MOM", Subgroup: "Auror Office", Portfolio: "Harry Potter - Head Auror"},
	}, tracker)
	require.NoError(t, err)
	require.True(t, outcome.Allocated())

	assert.Equal(t, catalog.PortfolioKey{
		Committee: "MOM",
		Subgroup:  "Auror Office",
		Name:      "Harry Potter - Head Auror",
	}, outcome.Allocation.Key)
	assert.Equal(t, catalog.Tier1, outcome.Allocation.Tier)
}

func TestAllocate_DuplicatePreferencesKeepBestRank(t *testing.T) {
	engine := newTestEngine()
	tracker := NewTracker(engine.Catalog())
	d := newDelegate("a", Band11To20, 4)

	outcome, err := engine.Allocate(d, []Preference{
		pref(3, "UNSC", "Japan"),
		pref(1, "UNSC", "Japan"),
	}, tracker)
	require.NoError(t, err)
	require.True(t, outcome.Allocated())

	assert.Len(t, outcome.Evaluations, 1)
	assert.Equal(t, 1, outcome.Allocation.PreferenceRank)
}

func TestAllocate_DelegateAlreadyAllocated(t *testing.T) {
	engine := newTestEngine()
	tracker := NewTracker(engine.Catalog())
	d := newDelegate("a", Band11To20, 4)

	_, err := engine.Allocate(d, []Preference{pref(1, "UNSC", "Japan")}, tracker)
	require.NoError(t, err)

	_, err = engine.Allocate(d, []Preference{pref(1, "UNSC", "Germany")}, tracker)
	assert.ErrorIs(t, err, ErrAlreadyAllocated)
	assert.Equal(t, ClaimOpen, tracker.Status(catalog.PortfolioKey{Committee: "UNSC", Name: "Germany"}))
}

func TestAllocate_NoPreferences(t *testing.T) {
	engine := newTestEngine()
	tracker := NewTracker(engine.Catalog())

	outcome, err := engine.Allocate(newDelegate("a", Band5, 0), nil, tracker)
	require.NoError(t, err)
	assert.False(t, outcome.Allocated())
	assert.Empty(t, outcome.Evaluations)
}

func TestAllocate_CancelledPortfolioCanBeReclaimed(t *testing.T) {
	engine := newTestEngine()
	tracker := NewTracker(engine.Catalog())
	india := []Preference{pref(1, "UNGA", "India")}

	_, err := engine.Allocate(newDelegate("first", Band30Plus, 5), india, tracker)
	require.NoError(t, err)

	outcome, err := engine.Allocate(newDelegate("second", Band30Plus, 5), india, tracker)
	require.NoError(t, err)
	assert.False(t, outcome.Allocated())

	released, err := tracker.Cancel("first", CancelOptions{})
	require.NoError(t, err)
	assert.Equal(t, "India", released.Key.Name)

	outcome, err = engine.Allocate(newDelegate("second", Band30Plus, 5), india, tracker)
	require.NoError(t, err)
	require.True(t, outcome.Allocated())
	assert.Equal(t, "second", outcome.Allocation.DelegateID)
}

func TestAllocate_ConcurrentAttemptsNeverDoubleClaim(t *testing.T) {
	engine := newTestEngine()
	tracker := NewTracker(engine.Catalog())

	prefs := []Preference{
		pref(1, "UNGA", "India"),
		pref(2, "UNGA", "China"),
		pref(3, "UNGA", "Russia"),
	}

	const delegates = 40
	var wg sync.WaitGroup
	results := make([]*Outcome, delegates)
	errs := make([]error, delegates)

	for i := 0; i < delegates; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d := newDelegate(fmt.Sprintf("d%02d", i), Band30Plus, 6)
			results[i], errs[i] = engine.Allocate(d, prefs, tracker)
		}(i)
	}
	wg.Wait()

	claimedBy := make(map[catalog.PortfolioKey]string)
	for i, outcome := range results {
		require.NoError(t, errs[i])
		if !outcome.Allocated() {
			continue
		}
		key := outcome.Allocation.Key
		prev, dup := claimedBy[key]
		assert.False(t, dup, "%s claimed by both %s and %s", key, prev, outcome.Allocation.DelegateID)
		claimedBy[key] = outcome.Allocation.DelegateID
	}

	assert.Len(t, claimedBy, 3)
	assert.Equal(t, 3, tracker.Counts().Allotted)
}

func TestAllocate_Properties(t *testing.T) {
	cat := catalog.Default()
	engine := NewEngine(cat)
	entries := cat.Entries()

	var gated []catalog.Entry
	for _, entry := range entries {
		if entry.Tier == catalog.Tier1 || entry.Tier == catalog.Tier2 {
			gated = append(gated, entry)
		}
	}

	toPref := func(rank int, entry catalog.Entry) Preference {
		return Preference{Rank: rank, Committee: entry.Key.Committee, Subgroup: entry.Key.Subgroup, Portfolio: entry.Key.Name}
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("first-timers never receive gated portfolios", prop.ForAll(
		func(a, b, c int) bool {
			tracker := NewTracker(cat)
			outcome, err := engine.Allocate(newDelegate("x", Band0, 0), []Preference{
				toPref(1, gated[a]), toPref(2, gated[b]), toPref(3, gated[c]),
			}, tracker)
			return err == nil && !outcome.Allocated() && tracker.Counts().Allotted == 0
		},
		gen.IntRange(0, len(gated)-1), gen.IntRange(0, len(gated)-1), gen.IntRange(0, len(gated)-1),
	))

	properties.Property("sequential allocation never claims a portfolio twice", prop.ForAll(
		func(picks []int, bands []int) bool {
			tracker := NewTracker(cat)
			all := ExperienceBands()
			claimed := make(map[catalog.PortfolioKey]bool)

			for i := 0; i+2 < len(picks); i += 3 {
				d := newDelegate(fmt.Sprintf("d%d", i), all[bands[i%len(bands)]], i%7)
				outcome, err := engine.Allocate(d, []Preference{
					toPref(1, entries[picks[i]]), toPref(2, entries[picks[i+1]]), toPref(3, entries[picks[i+2]]),
				}, tracker)
				if err != nil {
					return false
				}
				if !outcome.Allocated() {
					continue
				}
				if claimed[outcome.Allocation.Key] {
					return false
				}
				claimed[outcome.Allocation.Key] = true
			}
			return tracker.Counts().Allotted == len(claimed)
		},
		gen.SliceOfN(60, gen.IntRange(0, len(entries)-1)),
		gen.SliceOfN(20, gen.IntRange(0, len(ExperienceBands())-1)),
	))

	properties.Property("allocated portfolio is an eligible nominated one", prop.ForAll(
		func(a, b, c, band, best int) bool {
			tracker := NewTracker(cat)
			d := newDelegate("x", ExperienceBands()[band], best)
			outcome, err := engine.Allocate(d, []Preference{
				toPref(1, entries[a]), toPref(2, entries[b]), toPref(3, entries[c]),
			}, tracker)
			if err != nil {
				return false
			}
			if !outcome.Allocated() {
				for _, ev := range outcome.Evaluations {
					if ev.Score.Eligible {
						return false
					}
				}
				return true
			}
			for _, ev := range outcome.Evaluations {
				if ev.Key == outcome.Allocation.Key {
					return ev.Score.Eligible && ev.Score.Score == outcome.Allocation.Score
				}
			}
			return false
		},
		gen.IntRange(0, len(entries)-1), gen.IntRange(0, len(entries)-1), gen.IntRange(0, len(entries)-1),
		gen.IntRange(0, len(ExperienceBands())-1), gen.IntRange(0, 8),
	))

	properties.TestingRun(t)
}
