package revenue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthlyRevenueUsesBillingWeeks(t *testing.T) {
	assert.Equal(t, 3464.0, MonthlyRevenue(40, 20))
	assert.Equal(t, 4330.0, MonthlyRevenue(40, 25))
}

func TestRepriceIsIdempotentOverStoredHours(t *testing.T) {
	stored := 40.0
	for i := 0; i < 3; i++ {
		b := Reprice(stored, 25)
		assert.Equal(t, 4330.0, b.MonthlyRevenue)
		assert.Equal(t, 40.0, b.WeeklyHours)
		stored = b.WeeklyHours
	}
}

func TestCalculateDefaultsToFortyHours(t *testing.T) {
	b := Calculate("whenever they call us", 20)
	assert.False(t, b.FromSchedule)
	assert.Equal(t, DefaultWeeklyHours, b.WeeklyHours)
	assert.Equal(t, 3464.0, b.MonthlyRevenue)
	assert.Equal(t, 800.0, b.WeeklyRevenue)
}

func TestParseSchedule(t *testing.T) {
	tests := []struct {
		in    string
		hours float64
	}{
		{"Mon-Fri 8 hours, weekends 12 hours", 64},
		{"24/7", 168},
		{"weekdays 6pm-6am", 60},
		{"5 days 10 hrs", 50},
		{"Saturday and Sunday 10 hours", 20},
		{"8 hours a day", 40},
		{"daily 18:00-06:00", 84},
		{"Monday through Friday 9am to 5pm; Saturday 4 hours", 44},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			s, ok := ParseSchedule(tt.in)
			require.True(t, ok)
			assert.InDelta(t, tt.hours, s.WeeklyHours(), 0.001)
		})
	}
}

func TestParseScheduleRejectsNoise(t *testing.T) {
	for _, in := range []string{"", "on call", "as needed"} {
		_, ok := ParseSchedule(in)
		assert.False(t, ok, in)
	}
}

func TestCalculateFromSchedule(t *testing.T) {
	b := Calculate("Mon-Fri 8 hours, weekends 12 hours", 20)
	assert.True(t, b.FromSchedule)
	assert.Equal(t, 64.0, b.WeeklyHours)
	assert.Equal(t, MonthlyRevenue(64, 20), b.MonthlyRevenue)
}
