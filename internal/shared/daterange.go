package shared

import (
	"errors"
	"time"
)

// Range kinds accepted by reporting endpoints.
const (
	RangeToday  = "today"
	RangeWeek   = "week"
	RangeMonth  = "month"
	RangeAll    = "all"
	RangeCustom = "custom"
)

// ErrInvalidRange indicates an unknown range kind or a malformed custom range.
var ErrInvalidRange = errors.New("invalid date range")

// DateRange bounds a report query. A zero From or To means unbounded on that
// side, which is how RangeAll is represented.
type DateRange struct {
	Kind string
	From time.Time
	To   time.Time
}

// ResolveRange turns a range kind plus optional custom bounds into concrete
// boundaries relative to now. Week starts on Monday; month on the 1st.
func ResolveRange(kind string, from, to time.Time, now time.Time) (DateRange, error) {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch kind {
	case RangeToday:
		return DateRange{Kind: kind, From: day, To: day.AddDate(0, 0, 1)}, nil
	case RangeWeek:
		offset := (int(day.Weekday()) + 6) % 7
		start := day.AddDate(0, 0, -offset)
		return DateRange{Kind: kind, From: start, To: start.AddDate(0, 0, 7)}, nil
	case RangeMonth:
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return DateRange{Kind: kind, From: start, To: start.AddDate(0, 1, 0)}, nil
	case RangeAll:
		return DateRange{Kind: kind}, nil
	case RangeCustom:
		if from.IsZero() {
			return DateRange{}, ErrInvalidRange
		}
		if to.IsZero() {
			to = from.AddDate(0, 0, 1)
		}
		if to.Before(from) {
			return DateRange{}, ErrInvalidRange
		}
		return DateRange{Kind: kind, From: from, To: to}, nil
	}
	return DateRange{}, ErrInvalidRange
}

// Contains reports whether t falls inside the range. From is inclusive,
// To exclusive.
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && !t.Before(r.To) {
		return false
	}
	return true
}
