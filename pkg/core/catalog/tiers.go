package catalog

import "fmt"

// Tier is a portfolio prestige class. Tier1 is the most prestigious, Tier6 the least.
type Tier int

const (
	// TierUnset marks a catalog entry with no explicit tier (resolves to Tier5)
	TierUnset Tier = iota
	Tier1
	Tier2
	Tier3
	Tier4
	Tier5
	Tier6
)

// TierInfo holds the point value and eligibility thresholds of a tier
type TierInfo struct {
	Points           int
	MinExperience    int
	MinBestDelegates int
	Label            string
}

var tierInfo = map[Tier]TierInfo{
	Tier1: {Points: 100, MinExperience: 10, MinBestDelegates: 5, Label: "Most Prestigious"},
	Tier2: {Points: 75, MinExperience: 7, MinBestDelegates: 3, Label: "Highly Prestigious"},
	Tier3: {Points: 50, MinExperience: 5, MinBestDelegates: 2, Label: "Prestigious"},
	Tier4: {Points: 30, MinExperience: 3, MinBestDelegates: 1, Label: "Intermediate"},
	Tier5: {Points: 15, MinExperience: 1, MinBestDelegates: 0, Label: "Entry Level"},
	Tier6: {Points: 10, MinExperience: 0, MinBestDelegates: 0, Label: "Beginner"},
}

// GatedTiers are the tiers searched, in order, when classifying a portfolio
var GatedTiers = []Tier{Tier1, Tier2, Tier3, Tier4}

// Info returns the point value and thresholds for the tier.
// TierUnset and out-of-range values report Tier5's info.
func (t Tier) Info() TierInfo {
	if info, ok := tierInfo[t]; ok {
		return info
	}
	return tierInfo[Tier5]
}

// Valid reports whether t is one of Tier1..Tier6
func (t Tier) Valid() bool {
	return t >= Tier1 && t <= Tier6
}

// String returns the tier identifier, e.g. "tier2"
func (t Tier) String() string {
	if !t.Valid() {
		return Tier5.String()
	}
	return fmt.Sprintf("tier%d", int(t))
}

// ParseTier parses identifiers of the form "tier3"
func ParseTier(s string) (Tier, error) {
	var n int
	if _, err := fmt.Sscanf(s, "tier%d", &n); err != nil {
		return TierUnset, fmt.Errorf("invalid tier %q", s)
	}
	t := Tier(n)
	if !t.Valid() {
		return TierUnset, fmt.Errorf("invalid tier %q", s)
	}
	return t, nil
}
