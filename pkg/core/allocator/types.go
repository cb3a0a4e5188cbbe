package allocator

import (
	"fmt"
	"time"

	"github.com/munconf/portfolio-allotment/pkg/core/catalog"
)

// MaxPreferences is the number of ranked preferences a delegate may nominate
const MaxPreferences = 3

// Delegate is the part of a registration the engine reads
type Delegate struct {
	ID          string
	Name        string
	Email       string
	Phone       string
	Institution string
	Class       string

	// Experience is the self-reported conference count band
	Experience ExperienceBand

	BestDelegateAwards   int
	SpecialMentionAwards int
	VerbalMentionAwards  int
	Participations       int
}

// Preference is a delegate's nomination of a portfolio at a given rank
type Preference struct {
	// Rank is 1 (first choice) to MaxPreferences
	Rank int

	Committee string

	// Subgroup is the department or party for committees divided into subgroups
	Subgroup string

	Portfolio string
}

// Key returns the portfolio key as written by the delegate
func (p Preference) Key() catalog.PortfolioKey {
	return catalog.PortfolioKey{Committee: p.Committee, Subgroup: p.Subgroup, Name: p.Portfolio}
}

// ClaimStatus is the state of a portfolio
type ClaimStatus string

const (
	ClaimOpen      ClaimStatus = "open"
	ClaimAllotted  ClaimStatus = "allotted"
	ClaimConfirmed ClaimStatus = "confirmed"
)

// ParseClaimStatus parses a persisted claim status
func ParseClaimStatus(s string) (ClaimStatus, error) {
	switch ClaimStatus(s) {
	case ClaimOpen, ClaimAllotted, ClaimConfirmed:
		return ClaimStatus(s), nil
	}
	return "", fmt.Errorf("invalid claim status %q", s)
}

// DelegateStatus is the allocation status of a delegate
type DelegateStatus string

const (
	DelegatePending   DelegateStatus = "pending"
	DelegateAllotted  DelegateStatus = "allotted"
	DelegateConfirmed DelegateStatus = "confirmed"
)

// Claim records which delegate holds a portfolio
type Claim struct {
	Key            catalog.PortfolioKey
	Status         ClaimStatus
	DelegateID     string
	Tier           catalog.Tier
	Score          int
	PreferenceRank int
	AllottedAt     time.Time

	// ConfirmedAt is zero until the claim is confirmed
	ConfirmedAt time.Time
}

// DelegateStatus maps the claim status onto the delegate lifecycle
func (c Claim) DelegateStatus() DelegateStatus {
	switch c.Status {
	case ClaimAllotted:
		return DelegateAllotted
	case ClaimConfirmed:
		return DelegateConfirmed
	}
	return DelegatePending
}

// Allocation is the portfolio chosen for one delegate
type Allocation struct {
	Key            catalog.PortfolioKey
	Tier           catalog.Tier
	Score          int
	PreferenceRank int
	DelegateID     string
	AllottedAt     time.Time
}

// Evaluation is the verdict for one nominated portfolio
type Evaluation struct {
	Preference Preference

	// Key is the resolved catalog key (the preference key when not in the catalog)
	Key catalog.PortfolioKey

	InCatalog bool

	// Available is false when the portfolio was already claimed
	Available bool

	Score ScoreResult
}

// Reason explains why the portfolio could not be allocated, or is empty
func (e Evaluation) Reason() string {
	switch {
	case !e.InCatalog:
		return "portfolio not in catalog"
	case !e.Score.Eligible:
		return e.Score.Reason
	case !e.Available:
		return "portfolio already taken"
	}
	return ""
}

// Outcome is the result of an allocation attempt
type Outcome struct {
	// Allocation is nil when no eligible, available portfolio was found
	Allocation *Allocation

	// Evaluations holds the verdict of every preference, in rank order
	Evaluations []Evaluation
}

// Allocated reports whether a portfolio was claimed
func (o *Outcome) Allocated() bool {
	return o != nil && o.Allocation != nil
}

// Warnings lists the preferences the delegate is not eligible for
func (o *Outcome) Warnings() []string {
	if o == nil {
		return nil
	}
	var warnings []string
	for _, ev := range o.Evaluations {
		if ev.InCatalog && ev.Score.Eligible {
			continue
		}
		warnings = append(warnings, fmt.Sprintf("Preference %d (%s): %s", ev.Preference.Rank, ev.Key, ev.Reason()))
	}
	return warnings
}
