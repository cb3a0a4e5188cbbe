package services

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/munconf/portfolio-allotment/pkg/core/allocator"
	"github.com/munconf/portfolio-allotment/pkg/db"
)

// DefaultLeaderboardLimit is the number of delegates shown when no limit is given
const DefaultLeaderboardLimit = 50

// LeaderboardStore defines the database operations needed for the leaderboard
type LeaderboardStore interface {
	GetRegistrations(ctx context.Context) ([]db.Registration, error)
}

// LeaderboardEntry is one allotted or confirmed delegate ranked by experience points
type LeaderboardEntry struct {
	Position       int
	RegistrationID string
	Name           string
	Institution    string
	Points         int
	Portfolio      string
	Status         string
}

// GetLeaderboard ranks allotted and confirmed delegates by experience points.
// Equal points keep arrival order.
func GetLeaderboard(ctx context.Context, store LeaderboardStore, logger *zap.Logger, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	logger.Debug("Starting getLeaderboard", zap.Int("limit", limit))

	registrations, err := store.GetRegistrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch registrations: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(registrations))
	for i := range registrations {
		reg := &registrations[i]
		if reg.Claim == nil {
			continue
		}
		entries = append(entries, LeaderboardEntry{
			RegistrationID: reg.ID,
			Name:           reg.Name,
			Institution:    reg.Institution,
			Points:         allocator.ComputeExperiencePoints(toDelegate(reg, logger)),
			Portfolio:      claimKey(*reg.Claim).String(),
			Status:         reg.Status(),
		})
	}

	// Registrations arrive in arrival order, so a stable sort keeps it for ties
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Points > entries[j].Points
	})

	if len(entries) > limit {
		entries = entries[:limit]
	}
	for i := range entries {
		entries[i].Position = i + 1
	}

	return entries, nil
}
