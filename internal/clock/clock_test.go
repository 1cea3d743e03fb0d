package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixed(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestTodayUsesClockLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 2025-03-10 20:00 UTC is already 2025-03-11 in Tokyo.
	now := time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, "2025-03-10", New(time.UTC, fixed(now)).Today())
	assert.Equal(t, "2025-03-11", New(tokyo, fixed(now)).Today())
}

func TestDaysBetween(t *testing.T) {
	c := New(time.UTC, fixed(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)))

	sameDayLate := time.Date(2025, 3, 10, 23, 59, 0, 0, time.UTC)
	yesterdayLate := time.Date(2025, 3, 9, 23, 59, 0, 0, time.UTC)
	threeDaysAgo := time.Date(2025, 3, 7, 0, 1, 0, 0, time.UTC)

	assert.Equal(t, 0, c.DaysBetween(&sameDayLate, "2025-03-10"))
	assert.Equal(t, 1, c.DaysBetween(&yesterdayLate, "2025-03-10"))
	assert.Equal(t, 3, c.DaysBetween(&threeDaysAgo, "2025-03-10"))
	assert.Equal(t, Never, c.DaysBetween(nil, "2025-03-10"))
	assert.Equal(t, Never, c.DaysBetween(&sameDayLate, "not-a-day"))
}

func TestDaysBetweenAcrossDST(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	c := New(ny, nil)

	// 2025-03-09 is a 23 hour day in New York.
	before := time.Date(2025, 3, 8, 22, 0, 0, 0, ny)
	assert.Equal(t, 2, c.DaysBetween(&before, "2025-03-10"))
}

func TestLoadLocation(t *testing.T) {
	loc, err := LoadLocation("")
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	_, err = LoadLocation("Mars/Olympus")
	assert.Error(t, err)
}
