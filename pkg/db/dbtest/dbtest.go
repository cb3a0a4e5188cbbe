// Package dbtest holds behaviour tests shared by every db.Database implementation
package dbtest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/munconf/portfolio-allotment/pkg/db"
)

// NewDatabase returns an empty database for one test
type NewDatabase func(t *testing.T) db.Database

var base = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

// Registration builds a registration record for tests
func Registration(id string, registeredAt time.Time) *db.Registration {
	return &db.Registration{
		ID:                 id,
		Name:               "Delegate " + id,
		Email:              id + "@example.com",
		Phone:              "0123456789",
		Institution:        "Springfield High",
		Class:              "11",
		ExperienceBand:     "6-10",
		BestDelegateAwards: 2,
		Participations:     7,
		Preferences: []db.Preference{
			{Rank: 1, Committee: "UNSC", Portfolio: "Japan"},
			{Rank: 2, Committee: "MOM", Subgroup: "Auror Office", Portfolio: "Ron Weasley - Auror"},
		},
		PaymentCode:  "PAY-" + id,
		RegisteredAt: registeredAt,
	}
}

// Claim builds an allotted claim for tests
func Claim(registrationID, committee, portfolio string, at time.Time) *db.PortfolioClaim {
	return &db.PortfolioClaim{
		Committee:      committee,
		Portfolio:      portfolio,
		RegistrationID: registrationID,
		Status:         db.ClaimStatusAllotted,
		Tier:           2,
		Score:          120,
		PreferenceRank: 1,
		AllottedAt:     at,
	}
}

// Run exercises the full db.Database contract
func Run(t *testing.T, newDB NewDatabase) {
	t.Run("registration round trip", func(t *testing.T) { testRegistrationRoundTrip(t, newDB(t)) })
	t.Run("duplicate email", func(t *testing.T) { testDuplicateEmail(t, newDB(t)) })
	t.Run("not found", func(t *testing.T) { testNotFound(t, newDB(t)) })
	t.Run("arrival order", func(t *testing.T) { testArrivalOrder(t, newDB(t)) })
	t.Run("claim lifecycle", func(t *testing.T) { testClaimLifecycle(t, newDB(t)) })
	t.Run("claim conflicts", func(t *testing.T) { testClaimConflicts(t, newDB(t)) })
	t.Run("release allotted claim", func(t *testing.T) { testReleaseAllottedClaim(t, newDB(t)) })
	t.Run("concurrent claims", func(t *testing.T) { testConcurrentClaims(t, newDB(t)) })
}

func testRegistrationRoundTrip(t *testing.T, store db.Database) {
	ctx := context.Background()
	reg := Registration("REG-1", base)
	require.NoError(t, store.InsertRegistration(ctx, reg))

	got, err := store.GetRegistration(ctx, "REG-1")
	require.NoError(t, err)
	assert.Equal(t, reg.Name, got.Name)
	assert.Equal(t, reg.Email, got.Email)
	assert.Equal(t, reg.ExperienceBand, got.ExperienceBand)
	assert.Equal(t, reg.BestDelegateAwards, got.BestDelegateAwards)
	assert.Equal(t, reg.Participations, got.Participations)
	assert.Equal(t, reg.Preferences, got.Preferences)
	assert.Equal(t, reg.PaymentCode, got.PaymentCode)
	assert.True(t, reg.RegisteredAt.Equal(got.RegisteredAt))
	assert.Nil(t, got.Claim)
	assert.Equal(t, db.StatusPending, got.Status())

	byEmail, err := store.GetRegistrationByEmail(ctx, reg.Email)
	require.NoError(t, err)
	assert.Equal(t, "REG-1", byEmail.ID)
}

func testDuplicateEmail(t *testing.T, store db.Database) {
	ctx := context.Background()
	require.NoError(t, store.InsertRegistration(ctx, Registration("REG-1", base)))

	dup := Registration("REG-2", base)
	dup.Email = "REG-1@example.com"
	err := store.InsertRegistration(ctx, dup)
	assert.ErrorIs(t, err, db.ErrDuplicateEmail)
}

func testNotFound(t *testing.T, store db.Database) {
	ctx := context.Background()

	_, err := store.GetRegistration(ctx, "REG-missing")
	assert.ErrorIs(t, err, db.ErrNotFound)

	_, err = store.GetRegistrationByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, db.ErrNotFound)

	assert.ErrorIs(t, store.ConfirmClaim(ctx, "REG-missing", base), db.ErrNotFound)
	assert.ErrorIs(t, store.DeleteClaim(ctx, "REG-missing"), db.ErrNotFound)
	assert.ErrorIs(t, store.ReleaseAllottedClaim(ctx, "REG-missing"), db.ErrNotFound)
}

func testArrivalOrder(t *testing.T, store db.Database) {
	ctx := context.Background()
	require.NoError(t, store.InsertRegistration(ctx, Registration("REG-C", base.Add(2*time.Minute))))
	require.NoError(t, store.InsertRegistration(ctx, Registration("REG-A", base)))
	require.NoError(t, store.InsertRegistration(ctx, Registration("REG-B", base.Add(time.Minute))))

	regs, err := store.GetRegistrations(ctx)
	require.NoError(t, err)
	require.Len(t, regs, 3)
	assert.Equal(t, []string{"REG-A", "REG-B", "REG-C"}, []string{regs[0].ID, regs[1].ID, regs[2].ID})
}

func testClaimLifecycle(t *testing.T, store db.Database) {
	ctx := context.Background()
	require.NoError(t, store.InsertRegistration(ctx, Registration("REG-1", base)))

	claim := Claim("REG-1", "MOM", "Ron Weasley - Auror", base.Add(time.Minute))
	claim.Subgroup = "Auror Office"
	require.NoError(t, store.InsertClaim(ctx, claim))

	reg, err := store.GetRegistration(ctx, "REG-1")
	require.NoError(t, err)
	require.NotNil(t, reg.Claim)
	assert.Equal(t, db.StatusAllotted, reg.Status())
	assert.Equal(t, "Auror Office", reg.Claim.Subgroup)
	assert.Equal(t, 120, reg.Claim.Score)
	assert.Nil(t, reg.Claim.ConfirmedAt)

	confirmedAt := base.Add(time.Hour)
	require.NoError(t, store.ConfirmClaim(ctx, "REG-1", confirmedAt))
	// Confirming again keeps the first timestamp
	require.NoError(t, store.ConfirmClaim(ctx, "REG-1", base.Add(2*time.Hour)))

	claims, err := store.GetClaims(ctx)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, db.ClaimStatusConfirmed, claims[0].Status)
	require.NotNil(t, claims[0].ConfirmedAt)
	assert.True(t, confirmedAt.Equal(*claims[0].ConfirmedAt))

	require.NoError(t, store.DeleteClaim(ctx, "REG-1"))
	claims, err = store.GetClaims(ctx)
	require.NoError(t, err)
	assert.Empty(t, claims)

	reg, err = store.GetRegistration(ctx, "REG-1")
	require.NoError(t, err)
	assert.Equal(t, db.StatusPending, reg.Status())
}

func testClaimConflicts(t *testing.T, store db.Database) {
	ctx := context.Background()
	require.NoError(t, store.InsertRegistration(ctx, Registration("REG-1", base)))
	require.NoError(t, store.InsertRegistration(ctx, Registration("REG-2", base)))

	require.NoError(t, store.InsertClaim(ctx, Claim("REG-1", "UNGA", "India", base)))

	err := store.InsertClaim(ctx, Claim("REG-2", "UNGA", "India", base))
	assert.ErrorIs(t, err, db.ErrPortfolioTaken)

	err = store.InsertClaim(ctx, Claim("REG-1", "UNGA", "China", base))
	assert.ErrorIs(t, err, db.ErrAlreadyClaimed)

	// Same name in another committee is a different portfolio
	require.NoError(t, store.InsertClaim(ctx, Claim("REG-2", "UNHRC", "India", base)))
}

func testReleaseAllottedClaim(t *testing.T, store db.Database) {
	ctx := context.Background()
	require.NoError(t, store.InsertRegistration(ctx, Registration("REG-1", base)))
	require.NoError(t, store.InsertRegistration(ctx, Registration("REG-2", base)))
	require.NoError(t, store.InsertClaim(ctx, Claim("REG-1", "UNGA", "India", base)))
	require.NoError(t, store.InsertClaim(ctx, Claim("REG-2", "UNGA", "China", base)))
	require.NoError(t, store.ConfirmClaim(ctx, "REG-2", base.Add(time.Hour)))

	require.NoError(t, store.ReleaseAllottedClaim(ctx, "REG-1"))
	assert.ErrorIs(t, store.ReleaseAllottedClaim(ctx, "REG-2"), db.ErrClaimConfirmed)

	claims, err := store.GetClaims(ctx)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.Equal(t, "REG-2", claims[0].RegistrationID)

	// The released portfolio can be claimed again
	require.NoError(t, store.InsertClaim(ctx, Claim("REG-1", "UNGA", "India", base.Add(time.Minute))))
}

func testConcurrentClaims(t *testing.T, store db.Database) {
	ctx := context.Background()
	const contenders = 8
	for i := 0; i < contenders; i++ {
		require.NoError(t, store.InsertRegistration(ctx, Registration(fmt.Sprintf("REG-%d", i), base)))
	}

	var wg sync.WaitGroup
	errs := make([]error, contenders)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.InsertClaim(ctx, Claim(fmt.Sprintf("REG-%d", i), "UNSC", "Japan", base))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.ErrorIs(t, err, db.ErrPortfolioTaken)
	}
	assert.Equal(t, 1, winners)

	claims, err := store.GetClaims(ctx)
	require.NoError(t, err)
	assert.Len(t, claims, 1)
}
