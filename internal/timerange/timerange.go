// Package timerange provides time-of-day parsing and time window arithmetic
// for booking ranges. A range may end at 00:00, which means end of day.
package timerange

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay is the end-of-day sentinel used when a range ends at 00:00.
const MinutesPerDay = 24 * 60

// ErrInvalidFormat is returned when a time string is not H, HH, H:MM or
// HH:MM.
var ErrInvalidFormat = errors.New("invalid time format")

// TimeOfDay is a wall-clock time within a single day, stored as minutes
// since midnight in [0, 1440).
type TimeOfDay int

// New builds a TimeOfDay from an hour and minute. Hour 24 wraps to midnight.
func New(hour, minute int) TimeOfDay {
	if hour == 24 {
		hour = 0
	}
	return TimeOfDay(hour*60 + minute)
}

// Parse parses a time in H:MM or HH:MM form, or a bare hour meaning minute
// 0. Surrounding whitespace around either component is ignored. Hour 24 is
// accepted and normalized to 00.
func Parse(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) > 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}

	hourStr := strings.TrimSpace(parts[0])
	minStr := "00"
	if len(parts) == 2 {
		minStr = strings.TrimSpace(parts[1])
	}
	if len(hourStr) < 1 || len(hourStr) > 2 || len(minStr) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	if !isDigits(hourStr) || !isDigits(minStr) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}

	hour, _ := strconv.Atoi(hourStr)
	minute, _ := strconv.Atoi(minStr)
	if hour > 24 || minute > 59 {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidFormat, s)
	}

	return New(hour, minute), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Hour returns the hour component.
func (t TimeOfDay) Hour() int { return int(t) / 60 }

// Minute returns the minute component.
func (t TimeOfDay) Minute() int { return int(t) % 60 }

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int { return int(t) }

// EndMinutes returns minutes since midnight treating 00:00 as 24:00.
func (t TimeOfDay) EndMinutes() int {
	if t == 0 {
		return MinutesPerDay
	}
	return int(t)
}

// String formats the time as HH:MM.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// fromMinutes converts minutes back to a TimeOfDay; 1440 maps to 00:00.
func fromMinutes(m int) TimeOfDay {
	if m >= MinutesPerDay {
		return 0
	}
	return TimeOfDay(m)
}

// Range is a half-open window [From, To) within one day.
type Range struct {
	From TimeOfDay
	To   TimeOfDay
}

// ParseRange parses "HH:MM-HH:MM", where either end may also be a bare
// hour. It checks the format only; use Valid for ordering.
func ParseRange(s string) (Range, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Range{}, fmt.Errorf("%w: %q", ErrInvalidFormat, s)
	}
	f, err := Parse(from)
	if err != nil {
		return Range{}, err
	}
	t, err := Parse(to)
	if err != nil {
		return Range{}, err
	}
	return Range{From: f, To: t}, nil
}

// IsValidRange reports whether to is strictly after from, with to == 00:00
// meaning end of day.
func IsValidRange(from, to TimeOfDay) bool {
	return to.EndMinutes() > from.Minutes()
}

// Valid reports whether the range is non-empty.
func (r Range) Valid() bool {
	return IsValidRange(r.From, r.To)
}

// DurationMinutes returns the length of the range in minutes, or 0 if invalid.
func (r Range) DurationMinutes() int {
	if !r.Valid() {
		return 0
	}
	return r.To.EndMinutes() - r.From.Minutes()
}

// String formats the range as HH:MM-HH:MM.
func (r Range) String() string {
	return r.From.String() + "-" + r.To.String()
}

// IntersectAll returns the common window of all ranges:
// [max(from), min(to)) with 00:00 ends counted as 24:00.
// It returns false when ranges is empty or the window is empty.
func IntersectAll(ranges []Range) (Range, bool) {
	if len(ranges) == 0 {
		return Range{}, false
	}

	latestStart := 0
	earliestEnd := MinutesPerDay
	for _, r := range ranges {
		if r.From.Minutes() > latestStart {
			latestStart = r.From.Minutes()
		}
		if r.To.EndMinutes() < earliestEnd {
			earliestEnd = r.To.EndMinutes()
		}
	}

	if latestStart >= earliestEnd {
		return Range{}, false
	}
	return Range{From: fromMinutes(latestStart), To: fromMinutes(earliestEnd)}, true
}
