package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// Regular US equity session, exchange-local.
const (
	RegularOpenMinute  = 9*60 + 30
	RegularCloseMinute = 16 * 60
)

type MarketStatus string

const (
	StatusPremarket MarketStatus = "PREMARKET"
	StatusOpen      MarketStatus = "OPEN"
	StatusClosed    MarketStatus = "CLOSED"
)

// ClockWindow is an inclusive minute-of-day range in one location.
type ClockWindow struct {
	Start    int // minutes since midnight
	End      int
	Location *time.Location
}

// ParseClock turns "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// NewClockWindow parses both bounds. loc must not be nil.
func NewClockWindow(start, end string, loc *time.Location) (ClockWindow, error) {
	if loc == nil {
		return ClockWindow{}, fmt.Errorf("clock window needs a location")
	}
	s, err := ParseClock(start)
	if err != nil {
		return ClockWindow{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return ClockWindow{}, err
	}
	if s > e {
		return ClockWindow{}, fmt.Errorf("window start %s is after end %s", start, end)
	}
	return ClockWindow{Start: s, End: e, Location: loc}, nil
}

// Contains reports whether t, converted to the window's location, falls on
// or between the bounds. Seconds are ignored, so 09:29:59 is inside 04:00-09:29.
func (w ClockWindow) Contains(t time.Time) bool {
	local := t.In(w.Location)
	minute := local.Hour()*60 + local.Minute()
	return minute >= w.Start && minute <= w.End
}

// CheckMarketStatus classifies now against the premarket window and the
// regular session, weekends being closed.
func CheckMarketStatus(now time.Time, premarket ClockWindow) MarketStatus {
	local := now.In(premarket.Location)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return StatusClosed
	}
	if premarket.Contains(now) {
		return StatusPremarket
	}
	minute := local.Hour()*60 + local.Minute()
	if minute >= RegularOpenMinute && minute < RegularCloseMinute {
		return StatusOpen
	}
	return StatusClosed
}

// SessionDate is midnight of t's calendar day in loc.
func SessionDate(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}
