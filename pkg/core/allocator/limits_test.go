package allocator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckLimits(t *testing.T) {
	tests := []struct {
		name          string
		total         int
		allotted      int
		confirmed     int
		wantCanAllot  bool
		wantLimit     int
		wantRemaining int
	}{
		{name: "no registrations", total: 0, wantCanAllot: false},
		{name: "first registration", total: 1, wantCanAllot: true, wantLimit: 0},
		{name: "below cap", total: 20, allotted: 4, wantCanAllot: true, wantLimit: 5, wantRemaining: 1},
		{name: "at cap", total: 20, allotted: 5, wantCanAllot: false, wantLimit: 5},
		{name: "over cap", total: 20, allotted: 7, wantCanAllot: false, wantLimit: 5},
		{name: "confirmed do not count", total: 20, allotted: 2, confirmed: 10, wantCanAllot: true, wantLimit: 5, wantRemaining: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limits := CheckLimits(tt.total, tt.allotted, tt.confirmed, DefaultCaps)
			assert.Equal(t, tt.wantCanAllot, limits.CanAllot)
			assert.Equal(t, tt.wantLimit, limits.AllottedLimit)
			assert.Equal(t, tt.wantRemaining, limits.RemainingAllotments)
		})
	}
}

func TestCheckLimits_Percentages(t *testing.T) {
	limits := CheckLimits(40, 6, 4, DefaultCaps)

	assert.InDelta(t, 15.0, limits.AllottedPercentage, 0.001)
	assert.InDelta(t, 10.0, limits.ConfirmedPercentage, 0.001)
	assert.Equal(t, 10, limits.AllottedLimit)
	assert.Equal(t, 4, limits.ConfirmedLimit)
	assert.True(t, limits.ConfirmedCapReached)
	assert.True(t, limits.CanAllot, "confirmed cap is reporting only")
}

func TestCheckLimits_CustomCaps(t *testing.T) {
	limits := CheckLimits(4, 3, 0, Caps{AllottedPercent: 100, ConfirmedPercent: 100})

	assert.True(t, limits.CanAllot)
	assert.Equal(t, 4, limits.AllottedLimit)
	assert.Equal(t, 1, limits.RemainingAllotments)
}
