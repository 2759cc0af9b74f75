package scheduler

import (
	"testing"
	"time"

	"outbound-dialer/internal/campaigns"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsWithinCallWindow(t *testing.T) {
	day := func(h, m, s int) time.Time { return time.Date(2023, 11, 14, h, m, s, 0, time.UTC) }

	tests := []struct {
		name       string
		start, end string
		now        time.Time
		want       bool
	}{
		{"before start", "09:00", "17:00", day(8, 59, 0), false},
		{"at start", "09:00", "17:00", day(9, 0, 0), true},
		{"midday", "09:00", "17:00", day(12, 30, 0), true},
		{"at end", "09:00", "17:00", day(17, 0, 0), true},
		{"just after end", "09:00", "17:00", day(17, 0, 1), false},
		{"single digit hour", "9:00", "17:00", day(9, 30, 0), true},
		{"crossing midnight late", "22:00", "06:00", day(23, 0, 0), false},
		{"crossing midnight early", "22:00", "06:00", day(5, 0, 0), false},
		{"bad start", "nine", "17:00", day(12, 0, 0), false},
		{"bad end", "09:00", "25:00", day(12, 0, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsWithinCallWindow(tt.start, tt.end, tt.now))
		})
	}
}

func TestWithinWindow_UsesCampaignTimezone(t *testing.T) {
	c := campaigns.Campaign{CallWindowStart: "09:00", CallWindowEnd: "17:00", Timezone: "America/New_York"}

	// 14:30 UTC is 09:30 in New York during standard time.
	now := time.Date(2023, 11, 14, 14, 30, 0, 0, time.UTC)
	assert.True(t, WithinWindow(c, now))

	// 10:00 UTC is 05:00 in New York.
	assert.False(t, WithinWindow(c, time.Date(2023, 11, 14, 10, 0, 0, 0, time.UTC)))

	c.Timezone = "Mars/Olympus"
	assert.False(t, WithinWindow(c, now), "unknown timezone never matches")
}

func TestWithinWindow_ActiveDays(t *testing.T) {
	c := campaigns.Campaign{CallWindowStart: "09:00", CallWindowEnd: "17:00", Timezone: "UTC", ActiveDays: []int{1, 2, 3, 4, 5}}

	tuesday := time.Date(2023, 11, 14, 10, 0, 0, 0, time.UTC)
	saturday := time.Date(2023, 11, 18, 10, 0, 0, 0, time.UTC)
	assert.True(t, WithinWindow(c, tuesday))
	assert.False(t, WithinWindow(c, saturday))
}

func TestLocalMidnight(t *testing.T) {
	c := campaigns.Campaign{Timezone: "America/New_York"}
	// 03:00 UTC on the 15th is still the 14th in New York.
	got := localMidnight(c, time.Date(2023, 11, 15, 3, 0, 0, 0, time.UTC))
	require.Equal(t, time.Date(2023, 11, 14, 5, 0, 0, 0, time.UTC), got.UTC())
}

func TestNextWindowStart_SkipsInactiveDays(t *testing.T) {
	c := campaigns.Campaign{CallWindowStart: "09:00", CallWindowEnd: "17:00", Timezone: "UTC", ActiveDays: []int{1, 2, 3, 4, 5}}

	friday := time.Date(2023, 11, 17, 18, 0, 0, 0, time.UTC)
	next, ok := nextWindowStart(c, friday)
	require.True(t, ok)
	assert.Equal(t, time.Date(2023, 11, 20, 9, 0, 0, 0, time.UTC), next)

	c.ActiveDays = nil
	next, ok = nextWindowStart(c, friday)
	require.True(t, ok)
	assert.Equal(t, time.Date(2023, 11, 18, 9, 0, 0, 0, time.UTC), next)

	c.CallWindowStart = "bad"
	_, ok = nextWindowStart(c, friday)
	assert.False(t, ok)
}
