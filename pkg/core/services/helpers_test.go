package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/munconf/portfolio-allotment/internal/config"
	"github.com/munconf/portfolio-allotment/pkg/core/allocator"
	"github.com/munconf/portfolio-allotment/pkg/core/catalog"
	"github.com/munconf/portfolio-allotment/pkg/db"
)

var fixedNow = time.Date(2025, 11, 1, 12, 0, 0, 0, time.UTC)

const testCatalog = `
committees:
  - code: UNSC
    name: Security Council
    multiplier: 1.5
    portfolios:
      tier1: [United States]
      tier2: [Japan]
      tier4: [Guyana]
      unranked: [Greece]
      tier6: [Somalia]
  - code: UNGA
    name: General Assembly
    portfolios:
      tier3: [Kenya]
      unranked: [Chad]
`

func newTestEngine(t *testing.T) *allocator.Engine {
	t.Helper()
	cat, err := catalog.Load([]byte(testCatalog))
	require.NoError(t, err)
	return allocator.NewEngine(cat, allocator.WithClock(func() time.Time { return fixedNow }))
}

func newTestConfig() *config.Config {
	return &config.Config{
		ConferenceName:     "Test MUN",
		RegistrationPrefix: "REG",
		Admission: config.AdmissionConfig{
			AllottedPercent:  100,
			ConfirmedPercent: 100,
		},
		ConfirmationWindow: "48h",
		RegistrationFee:    1500,
	}
}

func newRegistration(id, email, band string, bestDelegates int, prefs ...db.Preference) db.Registration {
	return db.Registration{
		ID:                 id,
		Name:               "Delegate " + id,
		Email:              email,
		Institution:        "Test School",
		ExperienceBand:     band,
		BestDelegateAwards: bestDelegates,
		Preferences:        prefs,
		PaymentCode:        "PAY-" + id,
		RegisteredAt:       fixedNow.Add(-time.Hour),
	}
}

func dbPref(rank int, committee, portfolio string) db.Preference {
	return db.Preference{Rank: rank, Committee: committee, Portfolio: portfolio}
}

func allottedClaim(regID, committee, portfolio string, tier catalog.Tier, at time.Time) db.PortfolioClaim {
	return db.PortfolioClaim{
		Committee:      committee,
		Portfolio:      portfolio,
		RegistrationID: regID,
		Status:         db.ClaimStatusAllotted,
		Tier:           int(tier),
		Score:          50,
		PreferenceRank: 1,
		AllottedAt:     at,
	}
}

func confirmedClaim(regID, committee, portfolio string, tier catalog.Tier, at time.Time) db.PortfolioClaim {
	c := allottedClaim(regID, committee, portfolio, tier, at)
	c.Status = db.ClaimStatusConfirmed
	confirmed := at.Add(time.Hour)
	c.ConfirmedAt = &confirmed
	return c
}

// mockStore is an in-memory store with the uniqueness rules of the real schema
type mockStore struct {
	mu            sync.Mutex
	registrations []db.Registration
	claims        []db.PortfolioClaim

	getRegistrationsErr error
	getClaimsErr        error
	insertClaimErr      error

	// beforeInsertClaim runs before a claim is stored, e.g. to simulate a concurrent writer
	beforeInsertClaim func(m *mockStore, claim *db.PortfolioClaim)

	insertClaimCalls int
	confirmCalls     int
	deleteCalls      int
	releaseCalls     int
	releaseOverride  map[string]error
}

func (m *mockStore) claimFor(registrationID string) *db.PortfolioClaim {
	for i := range m.claims {
		if m.claims[i].RegistrationID == registrationID {
			c := m.claims[i]
			return &c
		}
	}
	return nil
}

func (m *mockStore) withClaim(reg db.Registration) db.Registration {
	reg.Claim = m.claimFor(reg.ID)
	return reg
}

func (m *mockStore) InsertRegistration(ctx context.Context, reg *db.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.registrations {
		if r.Email == reg.Email {
			return db.ErrDuplicateEmail
		}
	}
	stored := *reg
	stored.Claim = nil
	m.registrations = append(m.registrations, stored)
	return nil
}

func (m *mockStore) GetRegistrations(ctx context.Context) ([]db.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getRegistrationsErr != nil {
		return nil, m.getRegistrationsErr
	}
	out := make([]db.Registration, len(m.registrations))
	for i, r := range m.registrations {
		out[i] = m.withClaim(r)
	}
	return out, nil
}

func (m *mockStore) GetRegistration(ctx context.Context, id string) (*db.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.registrations {
		if r.ID == id {
			reg := m.withClaim(r)
			return &reg, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *mockStore) GetRegistrationByEmail(ctx context.Context, email string) (*db.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range m.registrations {
		if r.Email == email {
			reg := m.withClaim(r)
			return &reg, nil
		}
	}
	return nil, db.ErrNotFound
}

func (m *mockStore) GetClaims(ctx context.Context) ([]db.PortfolioClaim, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.getClaimsErr != nil {
		return nil, m.getClaimsErr
	}
	out := make([]db.PortfolioClaim, len(m.claims))
	copy(out, m.claims)
	return out, nil
}

func (m *mockStore) InsertClaim(ctx context.Context, claim *db.PortfolioClaim) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.insertClaimCalls++
	if m.beforeInsertClaim != nil {
		m.beforeInsertClaim(m, claim)
	}
	if m.insertClaimErr != nil {
		return m.insertClaimErr
	}
	for _, c := range m.claims {
		if c.Committee == claim.Committee && c.Subgroup == claim.Subgroup && c.Portfolio == claim.Portfolio {
			return db.ErrPortfolioTaken
		}
		if c.RegistrationID == claim.RegistrationID {
			return db.ErrAlreadyClaimed
		}
	}
	m.claims = append(m.claims, *claim)
	return nil
}

func (m *mockStore) ConfirmClaim(ctx context.Context, registrationID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.confirmCalls++
	for i := range m.claims {
		if m.claims[i].RegistrationID != registrationID {
			continue
		}
		if m.claims[i].Status != db.ClaimStatusConfirmed {
			m.claims[i].Status = db.ClaimStatusConfirmed
			confirmed := at
			m.claims[i].ConfirmedAt = &confirmed
		}
		return nil
	}
	return db.ErrNotFound
}

func (m *mockStore) DeleteClaim(ctx context.Context, registrationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.deleteCalls++
	for i := range m.claims {
		if m.claims[i].RegistrationID == registrationID {
			m.claims = append(m.claims[:i], m.claims[i+1:]...)
			return nil
		}
	}
	return db.ErrNotFound
}

func (m *mockStore) ReleaseAllottedClaim(ctx context.Context, registrationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.releaseCalls++
	if err, ok := m.releaseOverride[registrationID]; ok {
		return err
	}
	for i := range m.claims {
		if m.claims[i].RegistrationID != registrationID {
			continue
		}
		if m.claims[i].Status == db.ClaimStatusConfirmed {
			return db.ErrClaimConfirmed
		}
		m.claims = append(m.claims[:i], m.claims[i+1:]...)
		return nil
	}
	return db.ErrNotFound
}

type sentEmail struct {
	To      string
	Subject string
	Body    string
}

// mockEmailer records sent emails and fails for the listed addresses
type mockEmailer struct {
	mu      sync.Mutex
	sent    []sentEmail
	failFor map[string]bool
}

func (m *mockEmailer) SendEmail(to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failFor[to] {
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, sentEmail{To: to, Subject: subject, Body: body})
	return nil
}

func (m *mockEmailer) sentTo(to string) []sentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []sentEmail
	for _, e := range m.sent {
		if e.To == to {
			out = append(out, e)
		}
	}
	return out
}
