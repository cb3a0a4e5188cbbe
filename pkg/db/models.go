package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned when a registration does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicateEmail is returned when a registration with the same email already exists
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrPortfolioTaken is returned when another registration already holds the portfolio
	ErrPortfolioTaken = errors.New("portfolio already claimed")

	// ErrAlreadyClaimed is returned when the registration already holds a portfolio
	ErrAlreadyClaimed = errors.New("registration already holds a portfolio")

	// ErrClaimConfirmed is returned when releasing an allotted claim finds it confirmed
	ErrClaimConfirmed = errors.New("claim is confirmed")
)

// Claim statuses as persisted
const (
	ClaimStatusAllotted  = "allotted"
	ClaimStatusConfirmed = "confirmed"
)

// Registration statuses derived from the claim
const (
	StatusPending   = "pending"
	StatusAllotted  = "allotted"
	StatusConfirmed = "confirmed"
)

// Registration is a delegate's submitted registration
type Registration struct {
	ID          string
	Name        string
	Email       string
	Phone       string
	Institution string
	Class       string

	// ExperienceBand is the band label, e.g. "6-10"
	ExperienceBand string

	BestDelegateAwards   int
	SpecialMentionAwards int
	VerbalMentionAwards  int
	Participations       int

	Preferences  []Preference
	PaymentCode  string
	RegisteredAt time.Time

	// Claim is the portfolio held by the registration, nil while pending
	Claim *PortfolioClaim
}

// Status returns pending, allotted or confirmed
func (r Registration) Status() string {
	if r.Claim == nil {
		return StatusPending
	}
	return r.Claim.Status
}

// Preference is a ranked portfolio nomination
type Preference struct {
	Rank      int    `json:"rank"`
	Committee string `json:"committee"`
	Subgroup  string `json:"subgroup,omitempty"`
	Portfolio string `json:"portfolio"`
}

// PortfolioClaim is a row of the portfolio_claim table.
// A portfolio without a row is open.
type PortfolioClaim struct {
	Committee string
	Subgroup  string
	Portfolio string

	RegistrationID string
	Status         string
	Tier           int
	Score          int
	PreferenceRank int
	AllottedAt     time.Time

	// ConfirmedAt is nil until the claim is confirmed
	ConfirmedAt *time.Time
}

// EncodePreferences serialises preferences for storage in a JSON column
func EncodePreferences(prefs []Preference) ([]byte, error) {
	if prefs == nil {
		prefs = []Preference{}
	}
	data, err := json.Marshal(prefs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preferences: %w", err)
	}
	return data, nil
}

// DecodePreferences parses preferences stored by EncodePreferences
func DecodePreferences(data []byte) ([]Preference, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var prefs []Preference
	if err := json.Unmarshal(data, &prefs); err != nil {
		return nil, fmt.Errorf("failed to decode preferences: %w", err)
	}
	return prefs, nil
}
