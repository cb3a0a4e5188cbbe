package allocator

// Caps are the admission ceilings as percentages of total registrations
type Caps struct {
	// AllottedPercent blocks further allocation once reached
	AllottedPercent float64

	// ConfirmedPercent is reported but does not block allocation
	ConfirmedPercent float64
}

// DefaultCaps are the standard admission ceilings
var DefaultCaps = Caps{AllottedPercent: 25, ConfirmedPercent: 10}

// Limits is the admission state derived from registration counts
type Limits struct {
	TotalRegistrations int
	Allotted           int
	Confirmed          int

	AllottedPercentage  float64
	ConfirmedPercentage float64

	// AllottedLimit and ConfirmedLimit are the caps expressed as delegate counts
	AllottedLimit  int
	ConfirmedLimit int

	RemainingAllotments int

	// CanAllot is false once the allotted share reaches the cap, or when there are no registrations
	CanAllot bool

	ConfirmedCapReached bool
}

// CheckLimits computes the admission state for the given counts
func CheckLimits(total, allotted, confirmed int, caps Caps) Limits {
	l := Limits{
		TotalRegistrations: total,
		Allotted:           allotted,
		Confirmed:          confirmed,
	}
	if total <= 0 {
		return l
	}

	l.AllottedPercentage = float64(allotted) / float64(total) * 100
	l.ConfirmedPercentage = float64(confirmed) / float64(total) * 100
	l.AllottedLimit = int(float64(total) * caps.AllottedPercent / 100)
	l.ConfirmedLimit = int(float64(total) * caps.ConfirmedPercent / 100)
	l.RemainingAllotments = max(0, l.AllottedLimit-allotted)
	l.CanAllot = l.AllottedPercentage < caps.AllottedPercent
	l.ConfirmedCapReached = l.ConfirmedPercentage >= caps.ConfirmedPercent

	return l
}
