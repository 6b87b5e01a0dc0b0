package schedule

import (
	"fmt"
	"time"
)

// Week identifies a calendar week by its stable id and the date of its Monday.
type Week struct {
	ID     string
	Monday time.Time
}

// WeekOf returns the week containing t. The id is the ISO 8601 week string,
// e.g. "2025-W10".
func WeekOf(t time.Time) Week {
	year, week := t.ISOWeek()

	monday := t
	for monday.Weekday() != time.Monday {
		monday = monday.AddDate(0, 0, -1)
	}
	monday = time.Date(monday.Year(), monday.Month(), monday.Day(), 0, 0, 0, 0, t.Location())

	return Week{
		ID:     fmt.Sprintf("%d-W%02d", year, week),
		Monday: monday,
	}
}

// DayDate returns the calendar date of the given weekday (0 = Monday).
func (w Week) DayDate(dayNum int) time.Time {
	return w.Monday.AddDate(0, 0, dayNum)
}
