package allocator

import (
	"fmt"
	"strings"
)

// ExperienceBand is the self-reported number of conferences attended, as an ordinal band
type ExperienceBand int

const (
	// BandUnknown is used when the band could not be determined; it scores as zero experience
	BandUnknown ExperienceBand = iota
	Band0
	Band1
	Band2
	Band3
	Band4
	Band5
	Band6To10
	Band11To20
	Band21To30
	Band30Plus
)

type bandInfo struct {
	label      string
	lowerBound int
	points     int
}

var bands = map[ExperienceBand]bandInfo{
	Band0:      {label: "0", lowerBound: 0, points: 0},
	Band1:      {label: "1", lowerBound: 1, points: 5},
	Band2:      {label: "2", lowerBound: 2, points: 10},
	Band3:      {label: "3", lowerBound: 3, points: 15},
	Band4:      {label: "4", lowerBound: 4, points: 20},
	Band5:      {label: "5", lowerBound: 5, points: 25},
	Band6To10:  {label: "6-10", lowerBound: 6, points: 35},
	Band11To20: {label: "11-20", lowerBound: 11, points: 50},
	Band21To30: {label: "21-30", lowerBound: 21, points: 70},
	Band30Plus: {label: "30+", lowerBound: 30, points: 100},
}

// ExperienceBands returns every known band from least to most experienced
func ExperienceBands() []ExperienceBand {
	return []ExperienceBand{Band0, Band1, Band2, Band3, Band4, Band5, Band6To10, Band11To20, Band21To30, Band30Plus}
}

// ParseExperienceBand parses a band label such as "0", "6-10" or "30+".
// This is the validation point for registration intake; the engine itself never parses bands.
func ParseExperienceBand(s string) (ExperienceBand, error) {
	label := strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	for band, info := range bands {
		if info.label == label {
			return band, nil
		}
	}
	return BandUnknown, fmt.Errorf("invalid experience band %q", s)
}

// Valid reports whether b is one of the known bands
func (b ExperienceBand) Valid() bool {
	_, ok := bands[b]
	return ok
}

// LowerBound returns the minimum number of conferences the band represents (0 for unknown)
func (b ExperienceBand) LowerBound() int {
	return bands[b].lowerBound
}

// Points returns the experience points awarded for the band (0 for unknown)
func (b ExperienceBand) Points() int {
	return bands[b].points
}

func (b ExperienceBand) String() string {
	if info, ok := bands[b]; ok {
		return info.label
	}
	return "unknown"
}
