package models

import (
	"fmt"
	"time"
)

type Granularity int

const (
	Hour Granularity = iota + 1
	Day
	Week
	Month
)

func (g Granularity) String() string {
	switch g {
	case Hour:
		return "hour"
	case Day:
		return "day"
	case Week:
		return "week"
	case Month:
		return "month"
	default:
		return fmt.Sprintf("granularity(%d)", int(g))
	}
}

func ParseGranularity(s string) (Granularity, error) {
	for _, g := range []Granularity{Hour, Day, Week, Month} {
		if g.String() == s {
			return g, nil
		}
	}
	return 0, fmt.Errorf("unknown period %q", s)
}

// PeriodWindow is the half-open range [Start, End).
type PeriodWindow struct {
	Start       time.Time   `json:"start"`
	End         time.Time   `json:"end"`
	Granularity Granularity `json:"granularity"`
}

func (w PeriodWindow) Validate() error {
	if !w.Start.Before(w.End) {
		return fmt.Errorf("%w (start=%s end=%s)", ErrInvalidWindow,
			w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	return nil
}

func (w PeriodWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func HourWindow(t time.Time) PeriodWindow {
	start := t.Truncate(time.Hour)
	return PeriodWindow{Start: start, End: start.Add(time.Hour), Granularity: Hour}
}

// DayWindow covers the calendar day of t in t's location.
func DayWindow(t time.Time) PeriodWindow {
	start := startOfDay(t)
	return PeriodWindow{Start: start, End: start.AddDate(0, 0, 1), Granularity: Day}
}

// WeekWindow covers the Monday-based calendar week containing t.
func WeekWindow(t time.Time) PeriodWindow {
	start := startOfDay(t)
	start = start.AddDate(0, 0, -WeekdayIndex(start.Weekday()))
	return PeriodWindow{Start: start, End: start.AddDate(0, 0, 7), Granularity: Week}
}

func MonthWindow(t time.Time) PeriodWindow {
	y, m, _ := t.Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
	return PeriodWindow{Start: start, End: start.AddDate(0, 1, 0), Granularity: Month}
}

// TrailingWindow covers the given number of whole days ending with the day
// containing now.
func TrailingWindow(now time.Time, days int) PeriodWindow {
	if days < 1 {
		days = 1
	}
	end := startOfDay(now).AddDate(0, 0, 1)
	g := Day
	switch {
	case days > 7:
		g = Month
	case days > 1:
		g = Week
	}
	return PeriodWindow{Start: end.AddDate(0, 0, -days), End: end, Granularity: g}
}

// Days splits the window into consecutive day windows. The first and last
// windows are clipped to the window bounds.
func (w PeriodWindow) Days() []PeriodWindow {
	if w.Validate() != nil {
		return nil
	}
	var days []PeriodWindow
	for cur := w.Start; cur.Before(w.End); {
		next := startOfDay(cur).AddDate(0, 0, 1)
		if next.After(w.End) {
			next = w.End
		}
		days = append(days, PeriodWindow{Start: cur, End: next, Granularity: Day})
		cur = next
	}
	return days
}

// WeekdayIndex maps time.Weekday to a Monday-first index (Mon=0 .. Sun=6).
func WeekdayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}
