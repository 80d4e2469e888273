// Package timeweek maps timestamps to the canonical Monday-Sunday week
// buckets that key every aggregate in the system.
package timeweek

import (
	"fmt"
	"time"
)

// dateFormat is the wire format for week boundary dates. The full week ID
// "YYYY-MM-DD_YYYY-MM-DD" is consumed by downstream reporting and must not
// change.
const dateFormat = "2006-01-02"

// Week is one Monday-Sunday bucket within an enumerated range.
type Week struct {
	ID      string    `json:"id"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Ordinal int       `json:"ordinal"`
}

// WeekRangeOf returns the Monday 00:00:00.000 at or before t and the
// following Sunday 23:59:59.999, in t's location.
func WeekRangeOf(t time.Time) (start, end time.Time) {
	// Monday=1 ... Sunday=7.
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	start = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location()).
		AddDate(0, 0, -(weekday - 1))
	end = start.AddDate(0, 0, 7).Add(-time.Millisecond)
	return start, end
}

// WeekIDOf returns the canonical "YYYY-MM-DD_YYYY-MM-DD" week ID for t.
// Deterministic and total: any two timestamps inside the same Monday-Sunday
// span yield an identical string.
func WeekIDOf(t time.Time) string {
	start, end := WeekRangeOf(t)
	return fmt.Sprintf("%s_%s", start.Format(dateFormat), end.Format(dateFormat))
}

// MonthKeyOf returns the "YYYY-MM" calendar month key for t.
func MonthKeyOf(t time.Time) string {
	return t.Format("2006-01")
}

// WeeksBetween enumerates every week bucket touching [start, end] in order,
// with ordinals starting at 0. Used to pre-create empty buckets for a
// historical range so time series have no gaps. Returns nil when end is
// before start.
func WeeksBetween(start, end time.Time) []Week {
	if end.Before(start) {
		return nil
	}

	var weeks []Week
	cursor, _ := WeekRangeOf(start)
	for i := 0; !cursor.After(end); i++ {
		ws := cursor
		we := ws.AddDate(0, 0, 7).Add(-time.Millisecond)
		weeks = append(weeks, Week{
			ID:      fmt.Sprintf("%s_%s", ws.Format(dateFormat), we.Format(dateFormat)),
			Start:   ws,
			End:     we,
			Ordinal: i,
		})
		cursor = ws.AddDate(0, 0, 7)
	}
	return weeks
}
