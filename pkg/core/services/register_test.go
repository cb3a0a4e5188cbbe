package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/munconf/portfolio-allotment/pkg/core/catalog"
	"github.com/munconf/portfolio-allotment/pkg/db"
)

func validRequest() *RegistrationRequest {
	return &RegistrationRequest{
		Name:               "Ada Lovelace",
		Email:              "ada@example.com",
		Institution:        "Analytical School",
		Experience:         "11-20",
		BestDelegateAwards: 3,
		Preferences: []PreferenceRequest{
			{Rank: 1, Committee: "UNSC", Portfolio: "Japan"},
			{Rank: 2, Committee: "UNGA", Portfolio: "Kenya"},
		},
	}
}

func TestRegisterDelegate_AllotsFirstChoice(t *testing.T) {
	store := &mockStore{}
	mailer := &mockEmailer{}

	result, err := RegisterDelegate(context.Background(), store, newTestEngine(t), mailer, newTestConfig(), zap.NewNop(), validRequest())
	require.NoError(t, err)

	reg := result.Registration
	assert.True(t, strings.HasPrefix(reg.ID, "REG-"))
	assert.True(t, strings.HasPrefix(reg.PaymentCode, PaymentCodePrefix+"-"))
	assert.Equal(t, fixedNow, reg.RegisteredAt)
	assert.False(t, result.Waitlisted)
	assert.Empty(t, result.Warnings)
	assert.Nil(t, result.FailedEmail)
	assert.Equal(t, 1, result.Limits.TotalRegistrations)

	require.True(t, result.Outcome.Allocated())
	require.NotNil(t, reg.Claim)
	assert.Equal(t, "Japan", reg.Claim.Portfolio)
	assert.Equal(t, int(catalog.Tier2), reg.Claim.Tier)
	assert.Equal(t, 145, reg.Claim.Score)
	assert.Equal(t, db.StatusAllotted, reg.Status())

	require.Len(t, store.claims, 1)
	assert.Equal(t, reg.ID, store.claims[0].RegistrationID)

	emails := mailer.sentTo("ada@example.com")
	require.Len(t, emails, 1)
	assert.Contains(t, emails[0].Subject, "Portfolio allotted")
	assert.Contains(t, emails[0].Body, reg.PaymentCode)
	assert.Contains(t, emails[0].Body, "UNSC / Japan")
	assert.Contains(t, emails[0].Body, "1,500")
}

func TestRegisterDelegate_NormalisesEmail(t *testing.T) {
	store := &mockStore{}
	req := validRequest()
	req.Email = "  Ada@Example.COM "

	result, err := RegisterDelegate(context.Background(), store, newTestEngine(t), &mockEmailer{}, newTestConfig(), zap.NewNop(), req)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", result.Registration.Email)
	assert.Equal(t, "ada@example.com", store.registrations[0].Email)
}

func TestRegistrationRequest_Validate_TrimsEmailBeforeChecking(t *testing.T) {
	req := validRequest()
	req.Email = "\tAda@Example.COM  "

	require.NoError(t, req.Validate())
	assert.Equal(t, "ada@example.com", req.Email)
}

func TestRegisterDelegate_WaitlistedWhenCapReached(t *testing.T) {
	existing := newRegistration("R1", "first@example.com", "11-20", 3, dbPref(1, "UNSC", "Guyana"))
	store := &mockStore{
		registrations: []db.Registration{existing},
		claims:        []db.PortfolioClaim{allottedClaim("R1", "UNSC", "Guyana", catalog.Tier4, fixedNow)},
	}
	mailer := &mockEmailer{}
	cfg := newTestConfig()
	cfg.Admission.AllottedPercent = 25

	result, err := RegisterDelegate(context.Background(), store, newTestEngine(t), mailer, cfg, zap.NewNop(), validRequest())
	require.NoError(t, err)

	assert.True(t, result.Waitlisted)
	assert.Nil(t, result.Outcome)
	assert.Nil(t, result.Registration.Claim)
	assert.False(t, result.Limits.CanAllot)
	assert.Equal(t, 2, result.Limits.TotalRegistrations)
	assert.Equal(t, 0, store.insertClaimCalls)
	assert.Len(t, store.registrations, 2)

	emails := mailer.sentTo("ada@example.com")
	require.Len(t, emails, 1)
	assert.Contains(t, emails[0].Subject, "Registration received")
	assert.Contains(t, emails[0].Body, "waitlist")
}

func TestRegisterDelegate_NoEligiblePreferenceStaysPending(t *testing.T) {
	store := &mockStore{}
	mailer := &mockEmailer{}
	req := validRequest()
	req.Experience = "0"
	req.BestDelegateAwards = 0
	req.Preferences = []PreferenceRequest{{Rank: 1, Committee: "UNSC", Portfolio: "United States"}}

	result, err := RegisterDelegate(context.Background(), store, newTestEngine(t), mailer, newTestConfig(), zap.NewNop(), req)
	require.NoError(t, err)

	assert.False(t, result.Outcome.Allocated())
	assert.Equal(t, db.StatusPending, result.Registration.Status())
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "Requires 10+ MUNs and 5+ Best Delegates")
	assert.Len(t, store.registrations, 1)
	assert.Empty(t, store.claims)

	emails := mailer.sentTo("ada@example.com")
	require.Len(t, emails, 1)
	assert.Contains(t, emails[0].Subject, "Registration received")
	assert.Contains(t, emails[0].Body, "Preference 1")
}

func TestRegisterDelegate_DuplicateEmail(t *testing.T) {
	store := &mockStore{
		registrations: []db.Registration{newRegistration("R1", "ada@example.com", "1", 0)},
	}
	req := validRequest()
	req.Email = "ADA@example.com"

	_, err := RegisterDelegate(context.Background(), store, newTestEngine(t), &mockEmailer{}, newTestConfig(), zap.NewNop(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, db.ErrDuplicateEmail)
	assert.Contains(t, err.Error(), "R1")
	assert.Len(t, store.registrations, 1)
}

func TestRegisterDelegate_EmailFailureIsReported(t *testing.T) {
	store := &mockStore{}
	mailer := &mockEmailer{failFor: map[string]bool{"ada@example.com": true}}

	result, err := RegisterDelegate(context.Background(), store, newTestEngine(t), mailer, newTestConfig(), zap.NewNop(), validRequest())
	require.NoError(t, err)

	require.NotNil(t, result.FailedEmail)
	assert.Equal(t, result.Registration.ID, result.FailedEmail.RegistrationID)
	assert.Contains(t, result.FailedEmail.Error, "smtp unavailable")
	assert.Equal(t, db.StatusAllotted, result.Registration.Status())
}

func TestRegisterDelegate_StoreError(t *testing.T) {
	store := &mockStore{getRegistrationsErr: assert.AnError}

	_, err := RegisterDelegate(context.Background(), store, newTestEngine(t), &mockEmailer{}, newTestConfig(), zap.NewNop(), validRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestRegistrationRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(r *RegistrationRequest)
		wantErr string
	}{
		{
			name:   "valid",
			modify: func(r *RegistrationRequest) {},
		},
		{
			name:    "missing name",
			modify:  func(r *RegistrationRequest) { r.Name = "" },
			wantErr: "Name",
		},
		{
			name:    "invalid email",
			modify:  func(r *RegistrationRequest) { r.Email = "not-an-email" },
			wantErr: "Email",
		},
		{
			name:    "unknown experience band",
			modify:  func(r *RegistrationRequest) { r.Experience = "lots" },
			wantErr: "Experience",
		},
		{
			name:    "negative awards",
			modify:  func(r *RegistrationRequest) { r.BestDelegateAwards = -1 },
			wantErr: "BestDelegateAwards",
		},
		{
			name:    "no preferences",
			modify:  func(r *RegistrationRequest) { r.Preferences = nil },
			wantErr: "Preferences",
		},
		{
			name: "too many preferences",
			modify: func(r *RegistrationRequest) {
				r.Preferences = append(r.Preferences,
					PreferenceRequest{Rank: 3, Committee: "UNGA", Portfolio: "Chad"},
					PreferenceRequest{Rank: 3, Committee: "UNSC", Portfolio: "Greece"})
			},
			wantErr: "Preferences",
		},
		{
			name:    "rank out of range",
			modify:  func(r *RegistrationRequest) { r.Preferences[1].Rank = 4 },
			wantErr: "Rank",
		},
		{
			name:    "duplicate rank",
			modify:  func(r *RegistrationRequest) { r.Preferences[1].Rank = 1 },
			wantErr: "rank 1 given more than once",
		},
		{
			name:    "missing first preference",
			modify:  func(r *RegistrationRequest) { r.Preferences[0].Rank = 3 },
			wantErr: "first preference is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.modify(req)

			err := req.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRegistrationRequest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registration.yaml")
	data := `name: Grace Hopper
email: grace@example.com
institution: Navy School
experience: "6-10"
bestDelegateAwards: 2
preferences:
  - rank: 1
    committee: UNGA
    portfolio: Kenya
  - rank: 2
    committee: MOM
    subgroup: Auror Office
    portfolio: Harry Potter - Head Auror
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	req, err := LoadRegistrationRequest(path)
	require.NoError(t, err)
	require.NoError(t, req.Validate())

	assert.Equal(t, "Grace Hopper", req.Name)
	assert.Equal(t, "6-10", req.Experience)
	assert.Equal(t, 2, req.BestDelegateAwards)
	require.Len(t, req.Preferences, 2)
	assert.Equal(t, "Auror Office", req.Preferences[1].Subgroup)
}

func TestLoadRegistrationRequest_Errors(t *testing.T) {
	_, err := LoadRegistrationRequest(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read registration file")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: [unterminated"), 0o600))
	_, err = LoadRegistrationRequest(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse registration file")
}
