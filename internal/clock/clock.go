package clock

import (
	"fmt"
	"math"
	"time"
)

// DayFormat is the canonical calendar-day layout (YYYY-MM-DD).
const DayFormat = "2006-01-02"

// Never is returned by DaysBetween when there is no previous timestamp.
// Callers treat it like any gap of two or more days.
const Never = math.MaxInt32

// Clock converts wall-clock time into canonical calendar days.
// The location is fixed when the clock is built so that "today" does not
// move if the host timezone changes mid-session.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

// New returns a clock for loc. A nil now defaults to time.Now.
func New(loc *time.Location, now func() time.Time) *Clock {
	if loc == nil {
		loc = time.Local
	}
	if now == nil {
		now = time.Now
	}
	return &Clock{loc: loc, now: now}
}

// LoadLocation resolves an IANA timezone name. Empty or "Local" maps to the
// host's local timezone.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" || timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return loc, nil
}

// Location returns the clock's timezone.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the current instant in the clock's location.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Today returns the current canonical calendar day.
func (c *Clock) Today() string {
	return c.Now().Format(DayFormat)
}

// Day returns the canonical calendar day t falls on in the clock's location.
func (c *Clock) Day(t time.Time) string {
	return t.In(c.loc).Format(DayFormat)
}

// Yesterday returns the current instant moved back one calendar day.
func (c *Clock) Yesterday() time.Time {
	return c.Now().AddDate(0, 0, -1)
}

// ParseDay parses a canonical day string as local midnight.
func (c *Clock) ParseDay(day string) (time.Time, error) {
	t, err := time.Parse(DayFormat, day)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day %q: %w", day, err)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc), nil
}

// DaysBetween counts the calendar-day boundaries crossed between the local
// day of a and day: 0 for the same day, 1 for consecutive days. A nil a
// yields Never. An unparseable day also yields Never.
func (c *Clock) DaysBetween(a *time.Time, day string) int {
	if a == nil {
		return Never
	}
	to, err := c.ParseDay(day)
	if err != nil {
		return Never
	}
	from := a.In(c.loc)
	from = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, c.loc)

	// Date arithmetic at noon UTC sidesteps DST-shortened days.
	fromNoon := time.Date(from.Year(), from.Month(), from.Day(), 12, 0, 0, 0, time.UTC)
	toNoon := time.Date(to.Year(), to.Month(), to.Day(), 12, 0, 0, 0, time.UTC)
	return int(toNoon.Sub(fromNoon).Hours() / 24)
}

// DaysSince is DaysBetween measured against today.
func (c *Clock) DaysSince(a *time.Time) int {
	return c.DaysBetween(a, c.Today())
}
