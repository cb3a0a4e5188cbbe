package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/munconf/portfolio-allotment/pkg/core/allocator"
	"github.com/munconf/portfolio-allotment/pkg/core/catalog"
	"github.com/munconf/portfolio-allotment/pkg/db"
)

func TestGetStatistics(t *testing.T) {
	store := &mockStore{
		registrations: []db.Registration{
			newRegistration("R1", "r1@example.com", "11-20", 3),
			newRegistration("R2", "r2@example.com", "11-20", 3),
			newRegistration("R3", "r3@example.com", "11-20", 3),
			newRegistration("R4", "r4@example.com", "11-20", 3),
		},
		claims: []db.PortfolioClaim{
			allottedClaim("R1", "UNSC", "Japan", catalog.Tier2, fixedNow),
			confirmedClaim("R2", "UNGA", "Kenya", catalog.Tier3, fixedNow),
		},
	}
	store.claims[1].Score = 80
	cfg := newTestConfig()
	cfg.Admission.AllottedPercent = 25
	cfg.Admission.ConfirmedPercent = 10

	stats, err := GetStatistics(context.Background(), store, newTestEngine(t), cfg, zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 4, stats.Limits.TotalRegistrations)
	assert.Equal(t, 25.0, stats.Limits.AllottedPercentage)
	assert.False(t, stats.Limits.CanAllot)
	assert.True(t, stats.Limits.ConfirmedCapReached)

	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 1, stats.Allotted)
	assert.Equal(t, 1, stats.Confirmed)
	assert.Equal(t, allocator.Counts{Open: 5, Allotted: 1, Confirmed: 1}, stats.Portfolios)

	assert.Equal(t, []TierStat{
		{Tier: catalog.Tier2, Count: 1, AverageScore: 50},
		{Tier: catalog.Tier3, Count: 1, AverageScore: 80},
	}, stats.TierDistribution)

	require.Len(t, stats.Committees, 2)
	assert.Equal(t, CommitteeStat{Code: "UNSC", Name: "Security Council", Total: 5, Allotted: 1}, stats.Committees[0])
	assert.Equal(t, 4, stats.Committees[0].Open())
	assert.Equal(t, CommitteeStat{Code: "UNGA", Name: "General Assembly", Total: 2, Confirmed: 1}, stats.Committees[1])
	assert.Equal(t, 1, stats.Committees[1].Open())
}

func TestGetStatistics_Empty(t *testing.T) {
	stats, err := GetStatistics(context.Background(), &mockStore{}, newTestEngine(t), newTestConfig(), zap.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Limits.TotalRegistrations)
	assert.False(t, stats.Limits.CanAllot)
	assert.Equal(t, 7, stats.Portfolios.Open)
	assert.Empty(t, stats.TierDistribution)
}

func TestGetStatistics_StoreError(t *testing.T) {
	store := &mockStore{getRegistrationsErr: assert.AnError}

	_, err := GetStatistics(context.Background(), store, newTestEngine(t), newTestConfig(), zap.NewNop())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}
