package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 2024-01-17 is a Wednesday.
var wednesday = time.Date(2024, 1, 17, 15, 30, 0, 0, time.UTC)

func TestWindowConstructors(t *testing.T) {
	cases := []struct {
		name       string
		window     PeriodWindow
		start, end time.Time
	}{
		{"hour", HourWindow(wednesday), time.Date(2024, 1, 17, 15, 0, 0, 0, time.UTC), time.Date(2024, 1, 17, 16, 0, 0, 0, time.UTC)},
		{"day", DayWindow(wednesday), time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC)},
		{"week", WeekWindow(wednesday), time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 22, 0, 0, 0, 0, time.UTC)},
		{"month", MonthWindow(wednesday), time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)},
		{"trailing", TrailingWindow(wednesday, 7), time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.start, tc.window.Start)
			assert.Equal(t, tc.end, tc.window.End)
			require.NoError(t, tc.window.Validate())
		})
	}
}

func TestWindowValidate(t *testing.T) {
	w := PeriodWindow{Start: wednesday, End: wednesday}
	assert.ErrorIs(t, w.Validate(), ErrInvalidWindow)
	w.End = wednesday.Add(-time.Hour)
	assert.ErrorIs(t, w.Validate(), ErrInvalidWindow)
}

func TestWindowContainsIsHalfOpen(t *testing.T) {
	w := DayWindow(wednesday)
	assert.True(t, w.Contains(w.Start))
	assert.True(t, w.Contains(w.End.Add(-time.Nanosecond)))
	assert.False(t, w.Contains(w.End))
	assert.False(t, w.Contains(w.Start.Add(-time.Nanosecond)))
}

func TestWindowDays(t *testing.T) {
	days := WeekWindow(wednesday).Days()
	require.Len(t, days, 7)
	assert.Equal(t, time.Monday, days[0].Start.Weekday())
	assert.Equal(t, days[6].End, WeekWindow(wednesday).End)

	partial := PeriodWindow{Start: wednesday, End: wednesday.AddDate(0, 0, 1)}
	days = partial.Days()
	require.Len(t, days, 2)
	assert.Equal(t, wednesday, days[0].Start)
	assert.Equal(t, time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC), days[0].End)
	assert.Equal(t, partial.End, days[1].End)

	assert.Nil(t, PeriodWindow{}.Days())
}

func TestWeekdayIndex(t *testing.T) {
	assert.Equal(t, 0, WeekdayIndex(time.Monday))
	assert.Equal(t, 6, WeekdayIndex(time.Sunday))
}

func TestParseGranularity(t *testing.T) {
	g, err := ParseGranularity("week")
	require.NoError(t, err)
	assert.Equal(t, Week, g)
	_, err = ParseGranularity("year")
	assert.Error(t, err)
}
