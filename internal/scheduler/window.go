package scheduler

import (
	"time"

	"outbound-dialer/internal/campaigns"
)

// parseClock reads an "HH:MM" time of day.
func parseClock(s string) (hour, minute int, ok bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, 0, false
	}
	return t.Hour(), t.Minute(), true
}

func atClock(day time.Time, hour, minute int) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, hour, minute, 0, 0, day.Location())
}

// IsWithinCallWindow reports whether now falls in [start, end] on now's own
// calendar day, both bounds inclusive. Bounds are "HH:MM" in now's location.
//
// Windows that cross midnight (end before start) match nothing.
func IsWithinCallWindow(start, end string, now time.Time) bool {
	sh, sm, ok := parseClock(start)
	if !ok {
		return false
	}
	eh, em, ok := parseClock(end)
	if !ok {
		return false
	}
	from := atClock(now, sh, sm)
	to := atClock(now, eh, em)
	if to.Before(from) {
		return false
	}
	return !now.Before(from) && !now.After(to)
}

// campaignLocation resolves the campaign timezone; an empty zone is UTC.
func campaignLocation(c campaigns.Campaign) (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

// WithinWindow applies the campaign's window, timezone and active days to now.
// An unknown timezone never matches.
func WithinWindow(c campaigns.Campaign, now time.Time) bool {
	loc, err := campaignLocation(c)
	if err != nil {
		return false
	}
	local := now.In(loc)
	if !c.ActiveOn(local.Weekday()) {
		return false
	}
	return IsWithinCallWindow(c.CallWindowStart, c.CallWindowEnd, local)
}

// localMidnight is the start of the campaign's current calendar day. Unknown
// timezones fall back to UTC so the daily count stays bounded.
func localMidnight(c campaigns.Campaign, now time.Time) time.Time {
	loc, err := campaignLocation(c)
	if err != nil {
		loc = time.UTC
	}
	return atClock(now.In(loc), 0, 0)
}

// nextWindowStart is the window start on the first active day after now's
// local day, also when today's window has not opened yet.
func nextWindowStart(c campaigns.Campaign, now time.Time) (time.Time, bool) {
	h, m, ok := parseClock(c.CallWindowStart)
	if !ok {
		return time.Time{}, false
	}
	loc, err := campaignLocation(c)
	if err != nil {
		loc = time.UTC
	}
	day := atClock(now.In(loc), 0, 0).AddDate(0, 0, 1)
	for i := 0; i < 7 && !c.ActiveOn(day.Weekday()); i++ {
		day = day.AddDate(0, 0, 1)
	}
	return atClock(day, h, m), true
}
