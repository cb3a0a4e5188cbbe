package services

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/munconf/portfolio-allotment/internal/config"
	"github.com/munconf/portfolio-allotment/pkg/core/allocator"
	"github.com/munconf/portfolio-allotment/pkg/core/catalog"
	"github.com/munconf/portfolio-allotment/pkg/db"
)

// StatisticsStore defines the database operations needed for statistics
type StatisticsStore interface {
	GetRegistrations(ctx context.Context) ([]db.Registration, error)
	GetClaims(ctx context.Context) ([]db.PortfolioClaim, error)
}

// TierStat is the number of claimed portfolios in a tier and their average score
type TierStat struct {
	Tier         catalog.Tier
	Count        int
	AverageScore float64
}

// CommitteeStat is the claim state of one committee's inventory
type CommitteeStat struct {
	Code      string
	Name      string
	Total     int
	Allotted  int
	Confirmed int
}

// Open returns the number of unclaimed portfolios
func (c CommitteeStat) Open() int {
	return c.Total - c.Allotted - c.Confirmed
}

// Statistics summarises registrations and the portfolio inventory
type Statistics struct {
	Limits allocator.Limits

	Pending   int
	Allotted  int
	Confirmed int

	Portfolios       allocator.Counts
	TierDistribution []TierStat
	Committees       []CommitteeStat
}

// GetStatistics computes admission limits, status counts, tier distribution and committee fill
func GetStatistics(
	ctx context.Context,
	store StatisticsStore,
	engine *allocator.Engine,
	cfg *config.Config,
	logger *zap.Logger,
) (*Statistics, error) {
	logger.Debug("Starting getStatistics")

	registrations, err := store.GetRegistrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch registrations: %w", err)
	}

	tracker, err := loadTracker(ctx, store, engine, logger)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{
		Limits:     admissionLimits(registrations, cfg),
		Portfolios: tracker.Counts(),
	}
	stats.Allotted, stats.Confirmed = countStatuses(registrations)
	stats.Pending = len(registrations) - stats.Allotted - stats.Confirmed

	claims := tracker.Claims()
	stats.TierDistribution = tierDistribution(claims)
	stats.Committees = committeeStats(engine.Catalog(), claims)

	logger.Debug("Statistics computed",
		zap.Int("registrations", len(registrations)),
		zap.Int("claims", len(claims)))

	return stats, nil
}

func tierDistribution(claims []allocator.Claim) []TierStat {
	totals := make(map[catalog.Tier]*TierStat)
	scores := make(map[catalog.Tier]int)
	for _, c := range claims {
		stat, ok := totals[c.Tier]
		if !ok {
			stat = &TierStat{Tier: c.Tier}
			totals[c.Tier] = stat
		}
		stat.Count++
		scores[c.Tier] += c.Score
	}

	out := make([]TierStat, 0, len(totals))
	for tier, stat := range totals {
		stat.AverageScore = float64(scores[tier]) / float64(stat.Count)
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Tier < out[j].Tier })
	return out
}

func committeeStats(cat *catalog.Catalog, claims []allocator.Claim) []CommitteeStat {
	committees := cat.Committees()
	index := make(map[string]int, len(committees))
	out := make([]CommitteeStat, len(committees))
	for i, c := range committees {
		out[i] = CommitteeStat{Code: c.Code, Name: c.Name}
		index[c.Code] = i
	}

	for _, e := range cat.Entries() {
		out[index[e.Key.Committee]].Total++
	}
	for _, c := range claims {
		i, ok := index[c.Key.Committee]
		if !ok {
			continue
		}
		switch c.Status {
		case allocator.ClaimAllotted:
			out[i].Allotted++
		case allocator.ClaimConfirmed:
			out[i].Confirmed++
		}
	}
	return out
}
