package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/munconf/portfolio-allotment/pkg/core/allocator"
	"github.com/munconf/portfolio-allotment/pkg/core/catalog"
)

// PortfolioView is one catalog portfolio with its live claim state
type PortfolioView struct {
	Entry  catalog.Entry
	Status allocator.ClaimStatus
	Holder string
}

// CommitteeView is a committee with its portfolios in catalog order
type CommitteeView struct {
	Committee  catalog.Committee
	Portfolios []PortfolioView
}

// GetCatalogView lists every committee and portfolio with its claim status
func GetCatalogView(ctx context.Context, store ClaimReader, engine *allocator.Engine, logger *zap.Logger) ([]CommitteeView, error) {
	tracker, err := loadTracker(ctx, store, engine, logger)
	if err != nil {
		return nil, err
	}

	holders := make(map[catalog.PortfolioKey]string)
	for _, c := range tracker.Claims() {
		holders[c.Key] = c.DelegateID
	}

	cat := engine.Catalog()
	committees := cat.Committees()
	views := make([]CommitteeView, len(committees))
	index := make(map[string]int, len(committees))
	for i, c := range committees {
		views[i] = CommitteeView{Committee: c}
		index[c.Code] = i
	}

	for _, e := range cat.Entries() {
		i := index[e.Key.Committee]
		views[i].Portfolios = append(views[i].Portfolios, PortfolioView{
			Entry:  e,
			Status: tracker.Status(e.Key),
			Holder: holders[e.Key],
		})
	}

	return views, nil
}
