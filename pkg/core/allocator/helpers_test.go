package allocator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/munconf/portfolio-allotment/pkg/core/catalog"
)

var fixedNow = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return NewEngine(catalog.Default(), WithClock(func() time.Time { return fixedNow }))
}

func newDelegate(id string, band ExperienceBand, bestDelegates int) Delegate {
	return Delegate{
		ID:                 id,
		Name:               "Delegate " + id,
		Email:              id + "@example.com",
		Experience:         band,
		BestDelegateAwards: bestDelegates,
	}
}

func pref(rank int, committee, portfolio string) Preference {
	return Preference{Rank: rank, Committee: committee, Portfolio: portfolio}
}

func loadTestCatalog(t *testing.T, doc string) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.Load([]byte(doc))
	require.NoError(t, err)
	return cat
}
