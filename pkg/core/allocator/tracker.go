package allocator

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/munconf/portfolio-allotment/pkg/core/catalog"
)

// Tracker holds the claim state of every catalog portfolio.
// All methods are safe for concurrent use; check-then-claim happens under one lock.
type Tracker struct {
	mu      sync.Mutex
	catalog *catalog.Catalog

	// claims holds non-open portfolios only
	claims map[catalog.PortfolioKey]*Claim

	// byDelegate maps a delegate ID to the portfolio it holds
	byDelegate map[string]catalog.PortfolioKey
}

// ClaimRequest describes a claim to record
type ClaimRequest struct {
	DelegateID     string
	Tier           catalog.Tier
	Score          int
	PreferenceRank int
	At             time.Time
}

// ConfirmResult reports what Confirm did
type ConfirmResult int

const (
	ConfirmConfirmed ConfirmResult = iota
	ConfirmAlreadyConfirmed
)

func (r ConfirmResult) String() string {
	if r == ConfirmAlreadyConfirmed {
		return "already confirmed"
	}
	return "confirmed"
}

// CancelOptions controls Cancel
type CancelOptions struct {
	// AllowConfirmed permits releasing a confirmed portfolio
	AllowConfirmed bool
}

// Counts is the number of portfolios in each state
type Counts struct {
	Open      int
	Allotted  int
	Confirmed int
}

// NewTracker creates a tracker with every catalog portfolio open
func NewTracker(cat *catalog.Catalog) *Tracker {
	return &Tracker{
		catalog:    cat,
		claims:     make(map[catalog.PortfolioKey]*Claim),
		byDelegate: make(map[string]catalog.PortfolioKey),
	}
}

// Restore loads previously persisted claims into the tracker
func (t *Tracker) Restore(claims []Claim) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, c := range claims {
		if c.Status == ClaimOpen {
			continue
		}
		if err := t.checkClaimable(c.Key, c.DelegateID); err != nil {
			return fmt.Errorf("failed to restore claim on %s: %w", c.Key, err)
		}
		claim := c
		t.claims[c.Key] = &claim
		t.byDelegate[c.DelegateID] = c.Key
	}
	return nil
}

// Status returns the state of the portfolio.
// Keys absent from the catalog report ClaimOpen but can never be claimed.
func (t *Tracker) Status(key catalog.PortfolioKey) ClaimStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	if c, ok := t.claims[key]; ok {
		return c.Status
	}
	return ClaimOpen
}

// Holder returns the claim held by the delegate, if any
func (t *Tracker) Holder(delegateID string) (Claim, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key, ok := t.byDelegate[delegateID]
	if !ok {
		return Claim{}, false
	}
	return *t.claims[key], true
}

// Claim marks an open portfolio as allotted to the delegate
func (t *Tracker) Claim(key catalog.PortfolioKey, req ClaimRequest) (Claim, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkClaimable(key, req.DelegateID); err != nil {
		return Claim{}, err
	}

	claim := &Claim{
		Key:            key,
		Status:         ClaimAllotted,
		DelegateID:     req.DelegateID,
		Tier:           req.Tier,
		Score:          req.Score,
		PreferenceRank: req.PreferenceRank,
		AllottedAt:     req.At,
	}
	t.claims[key] = claim
	t.byDelegate[req.DelegateID] = key

	return *claim, nil
}

func (t *Tracker) checkClaimable(key catalog.PortfolioKey, delegateID string) error {
	if _, ok := t.catalog.Lookup(key); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPortfolio, key)
	}
	if existing, ok := t.claims[key]; ok {
		return fmt.Errorf("%w: %s is %s by %s", ErrPortfolioTaken, key, existing.Status, existing.DelegateID)
	}
	if held, ok := t.byDelegate[delegateID]; ok {
		return fmt.Errorf("%w: %s holds %s", ErrAlreadyAllocated, delegateID, held)
	}
	return nil
}

// Confirm moves the delegate's claim from allotted to confirmed.
// Confirming an already confirmed claim changes nothing.
func (t *Tracker) Confirm(delegateID string, at time.Time) (ConfirmResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key, ok := t.byDelegate[delegateID]
	if !ok {
		return ConfirmConfirmed, fmt.Errorf("%w: %s", ErrNotAllocated, delegateID)
	}

	claim := t.claims[key]
	if claim.Status == ClaimConfirmed {
		return ConfirmAlreadyConfirmed, nil
	}

	claim.Status = ClaimConfirmed
	claim.ConfirmedAt = at
	return ConfirmConfirmed, nil
}

// Cancel releases the delegate's portfolio and returns the released claim
func (t *Tracker) Cancel(delegateID string, opts CancelOptions) (Claim, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key, ok := t.byDelegate[delegateID]
	if !ok {
		return Claim{}, fmt.Errorf("%w: %s", ErrNotAllocated, delegateID)
	}

	claim := t.claims[key]
	if claim.Status == ClaimConfirmed && !opts.AllowConfirmed {
		return Claim{}, fmt.Errorf("%w: %s", ErrConfirmedCancel, key)
	}

	delete(t.claims, key)
	delete(t.byDelegate, delegateID)
	return *claim, nil
}

// ReleaseExpired releases every allotted claim made before cutoff.
// Confirmed claims are never released.
func (t *Tracker) ReleaseExpired(cutoff time.Time) []Claim {
	t.mu.Lock()
	defer t.mu.Unlock()

	var released []Claim
	for key, claim := range t.claims {
		if claim.Status != ClaimAllotted || !claim.AllottedAt.Before(cutoff) {
			continue
		}
		released = append(released, *claim)
		delete(t.claims, key)
		delete(t.byDelegate, claim.DelegateID)
	}

	t.sortClaims(released)
	return released
}

// Counts returns the number of portfolios in each state
func (t *Tracker) Counts() Counts {
	t.mu.Lock()
	defer t.mu.Unlock()

	var counts Counts
	for _, claim := range t.claims {
		switch claim.Status {
		case ClaimAllotted:
			counts.Allotted++
		case ClaimConfirmed:
			counts.Confirmed++
		}
	}
	counts.Open = len(t.catalog.Entries()) - counts.Allotted - counts.Confirmed
	return counts
}

// Claims returns every non-open claim in catalog order
func (t *Tracker) Claims() []Claim {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Claim, 0, len(t.claims))
	for _, claim := range t.claims {
		out = append(out, *claim)
	}
	t.sortClaims(out)
	return out
}

func (t *Tracker) sortClaims(claims []Claim) {
	order := func(key catalog.PortfolioKey) int {
		entry, _ := t.catalog.Lookup(key)
		return entry.Order
	}
	sort.Slice(claims, func(i, j int) bool {
		return order(claims[i].Key) < order(claims[j].Key)
	})
}
