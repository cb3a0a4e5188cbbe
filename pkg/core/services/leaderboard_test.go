package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/munconf/portfolio-allotment/pkg/core/catalog"
	"github.com/munconf/portfolio-allotment/pkg/db"
)

func newLeaderboardStore() *mockStore {
	return &mockStore{
		registrations: []db.Registration{
			newRegistration("R1", "r1@example.com", "11-20", 3),
			newRegistration("R2", "r2@example.com", "30+", 0),
			newRegistration("R3", "r3@example.com", "30+", 10),
			newRegistration("R4", "r4@example.com", "11-20", 3),
		},
		claims: []db.PortfolioClaim{
			allottedClaim("R1", "UNSC", "Japan", catalog.Tier2, fixedNow),
			confirmedClaim("R2", "UNGA", "Kenya", catalog.Tier3, fixedNow),
			allottedClaim("R4", "UNGA", "Chad", catalog.Tier5, fixedNow),
		},
	}
}

func TestGetLeaderboard_RanksByPointsThenArrival(t *testing.T) {
	entries, err := GetLeaderboard(context.Background(), newLeaderboardStore(), zap.NewNop(), 0)
	require.NoError(t, err)

	// R3 is pending and excluded
	require.Len(t, entries, 3)

	assert.Equal(t, LeaderboardEntry{
		Position:       1,
		RegistrationID: "R2",
		Name:           "Delegate R2",
		Institution:    "Test School",
		Points:         100,
		Portfolio:      "UNGA / Kenya",
		Status:         db.StatusConfirmed,
	}, entries[0])

	assert.Equal(t, "R1", entries[1].RegistrationID)
	assert.Equal(t, 65, entries[1].Points)
	assert.Equal(t, 2, entries[1].Position)
	assert.Equal(t, "R4", entries[2].RegistrationID)
	assert.Equal(t, 65, entries[2].Points)
	assert.Equal(t, db.StatusAllotted, entries[2].Status)
}

func TestGetLeaderboard_Limit(t *testing.T) {
	entries, err := GetLeaderboard(context.Background(), newLeaderboardStore(), zap.NewNop(), 2)
	require.NoError(t, err)

	require.Len(t, entries, 2)
	assert.Equal(t, "R2", entries[0].RegistrationID)
	assert.Equal(t, "R1", entries[1].RegistrationID)
}

func TestGetLeaderboard_UnknownBandScoresAwardsOnly(t *testing.T) {
	reg := newRegistration("R1", "r1@example.com", "lots", 2)
	reg.SpecialMentionAwards = 1
	store := &mockStore{
		registrations: []db.Registration{reg},
		claims:        []db.PortfolioClaim{allottedClaim("R1", "UNSC", "Japan", catalog.Tier2, fixedNow)},
	}

	entries, err := GetLeaderboard(context.Background(), store, zap.NewNop(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 13, entries[0].Points)
}
