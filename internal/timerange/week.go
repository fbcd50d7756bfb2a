package timerange

import "time"

// WeekStart returns midnight of the Monday of t's week, in t's location.
func WeekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
}

// At returns the instant on date's calendar day at the given time of day.
func At(date time.Time, tod TimeOfDay) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, tod.Hour(), tod.Minute(), 0, 0, date.Location())
}

// WeekOf returns the Monday of t's week as a UTC calendar date. It is the
// form sessions are keyed and stored by.
func WeekOf(t time.Time) time.Time {
	ws := WeekStart(t)
	return time.Date(ws.Year(), ws.Month(), ws.Day(), 0, 0, 0, 0, time.UTC)
}
