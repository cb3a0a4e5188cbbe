package allocator

import (
	"errors"
	"time"

	"github.com/munconf/portfolio-allotment/pkg/core/catalog"
)

var (
	// ErrPortfolioTaken is returned when claiming a portfolio that is not open
	ErrPortfolioTaken = errors.New("portfolio no longer available")

	// ErrAlreadyAllocated is returned when the delegate already holds a portfolio
	ErrAlreadyAllocated = errors.New("delegate already holds a portfolio")

	// ErrNotAllocated is returned when confirming or cancelling a delegate without a portfolio
	ErrNotAllocated = errors.New("delegate holds no portfolio")

	// ErrConfirmedCancel is returned when cancelling a confirmed allocation without override
	ErrConfirmedCancel = errors.New("cannot cancel a confirmed allocation")

	// ErrUnknownPortfolio is returned when claiming a portfolio that is not in the catalog
	ErrUnknownPortfolio = errors.New("portfolio not in catalog")
)

// Engine scores delegates against the catalog and selects allocations.
// It holds no claim state; claims live in a Tracker supplied by the caller.
type Engine struct {
	catalog *catalog.Catalog
	now     func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithClock overrides the clock used to timestamp allocations
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// NewEngine creates an engine over the given catalog
func NewEngine(cat *catalog.Catalog, opts ...Option) *Engine {
	e := &Engine{
		catalog: cat,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Catalog returns the catalog the engine scores against
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Now returns the engine's current time
func (e *Engine) Now() time.Time {
	return e.now()
}
