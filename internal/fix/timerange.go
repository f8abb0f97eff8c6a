package fix

import "time"

// TimeOfDay is a wall-clock time of day, independent of date, used to
// describe the boundaries of a TimeRange.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

// sinceMidnight returns d's offset from the start of its day.
func sinceMidnight(t TimeOfDay) time.Duration {
	return time.Duration(t.Hour)*time.Hour +
		time.Duration(t.Minute)*time.Minute +
		time.Duration(t.Second)*time.Second
}

// TimeRange is a recurring daily (optionally weekday-restricted) window
// predicate used to gate when a session is allowed to be active (C2).
// A zero TimeRange (Start == End) is treated as "always in range" —
// matching the quickfix convention that an unconfigured session-time
// window never forces a reset.
type TimeRange struct {
	Start    TimeOfDay
	End      TimeOfDay
	Weekdays []time.Weekday // nil/empty means every day
	Location *time.Location // nil means UTC
}

// AlwaysInRange is the zero-value TimeRange: every instant is in range.
var AlwaysInRange = TimeRange{}

func (r TimeRange) loc() *time.Location {
	if r.Location != nil {
		return r.Location
	}
	return time.UTC
}

func (r TimeRange) isUnset() bool {
	return r.Start == TimeOfDay{} && r.End == TimeOfDay{} && len(r.Weekdays) == 0
}

func (r TimeRange) allowsWeekday(wd time.Weekday) bool {
	if len(r.Weekdays) == 0 {
		return true
	}
	for _, allowed := range r.Weekdays {
		if allowed == wd {
			return true
		}
	}
	return false
}

// IsInRange reports whether now falls inside the window.
//
// The window is [Start, End) of each permitted day in r.Location. When
// End < Start the window wraps past midnight (e.g. 22:00-06:00); the
// weekday test in that case is applied to the day the window *starts* on.
func (r TimeRange) IsInRange(now time.Time) bool {
	if r.isUnset() {
		return true
	}

	local := now.In(r.loc())
	offset := time.Duration(local.Hour())*time.Hour +
		time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second

	start := sinceMidnight(r.Start)
	end := sinceMidnight(r.End)

	if start == end {
		// Degenerate equal-but-configured window: open all day, subject
		// only to the weekday mask.
		return r.allowsWeekday(local.Weekday())
	}

	if start < end {
		if offset < start || offset >= end {
			return false
		}
		return r.allowsWeekday(local.Weekday())
	}

	// Wraps midnight: in range if offset is in [start, 24h) on the
	// starting day, or [0, end) on the following day — which belongs to
	// the starting day's weekday mask.
	if offset >= start {
		return r.allowsWeekday(local.Weekday())
	}
	if offset < end {
		return r.allowsWeekday(local.Add(-24 * time.Hour).Weekday())
	}
	return false
}

// IsInSameRange reports whether a and b fall within the same occurrence
// of the window — i.e. no window boundary was crossed between them. This
// is used to detect session-time rollovers: when a session's creationTime
// and the current tick's now land in different occurrences of the
// window, the session must reset (§4.1 Timer tick).
func (r TimeRange) IsInSameRange(a, b time.Time) bool {
	if r.isUnset() {
		return true
	}
	if !r.IsInRange(a) || !r.IsInRange(b) {
		return false
	}

	// A coarse day-granularity check is insufficient near a
	// midnight-wrapping window, so compare the "window start instant"
	// each timestamp belongs to.
	startA := r.windowStartBefore(a)
	startB := r.windowStartBefore(b)
	return startA.Equal(startB)
}

// windowStartBefore returns the start instant of the window occurrence
// containing t, assuming IsInRange(t) is true.
func (r TimeRange) windowStartBefore(t time.Time) time.Time {
	local := t.In(r.loc())
	start := sinceMidnight(r.Start)
	end := sinceMidnight(r.End)

	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	offset := local.Sub(midnight)

	if start <= end || offset >= start {
		return midnight.Add(start)
	}
	// offset < end: the occurrence started the previous day.
	return midnight.Add(-24 * time.Hour).Add(start)
}
