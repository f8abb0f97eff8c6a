package fix_test

import (
	"testing"
	"time"

	"fixengine/internal/fix"
)

func TestTimeRangeAlwaysInRange(t *testing.T) {
	var r fix.TimeRange
	if !r.IsInRange(time.Now()) {
		t.Fatal("zero-value TimeRange must always be in range")
	}
}

func TestTimeRangeSimpleWindow(t *testing.T) {
	r := fix.TimeRange{
		Start: fix.TimeOfDay{Hour: 9},
		End:   fix.TimeOfDay{Hour: 17},
	}

	inside := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	beforeOpen := time.Date(2026, 7, 31, 8, 59, 59, 0, time.UTC)
	atClose := time.Date(2026, 7, 31, 17, 0, 0, 0, time.UTC)

	if !r.IsInRange(inside) {
		t.Error("expected 12:00 to be inside 09:00-17:00")
	}
	if r.IsInRange(beforeOpen) {
		t.Error("expected 08:59:59 to be outside 09:00-17:00")
	}
	if r.IsInRange(atClose) {
		t.Error("window end is exclusive; 17:00:00 must be outside")
	}
}

func TestTimeRangeWrapsMidnight(t *testing.T) {
	r := fix.TimeRange{
		Start: fix.TimeOfDay{Hour: 22},
		End:   fix.TimeOfDay{Hour: 6},
	}

	lateNight := time.Date(2026, 7, 31, 23, 0, 0, 0, time.UTC)
	earlyMorning := time.Date(2026, 7, 31, 3, 0, 0, 0, time.UTC)
	midday := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)

	if !r.IsInRange(lateNight) {
		t.Error("expected 23:00 to be inside 22:00-06:00")
	}
	if !r.IsInRange(earlyMorning) {
		t.Error("expected 03:00 to be inside 22:00-06:00")
	}
	if r.IsInRange(midday) {
		t.Error("expected 12:00 to be outside 22:00-06:00")
	}
}

func TestTimeRangeWeekdayMask(t *testing.T) {
	r := fix.TimeRange{
		Start:    fix.TimeOfDay{Hour: 0},
		End:      fix.TimeOfDay{Hour: 23, Minute: 59, Second: 59},
		Weekdays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
	}

	friday := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	saturday := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	if !r.IsInRange(friday) {
		t.Error("expected Friday to be allowed")
	}
	if r.IsInRange(saturday) {
		t.Error("expected Saturday to be disallowed")
	}
}

func TestTimeRangeIsInSameRange(t *testing.T) {
	r := fix.TimeRange{
		Start: fix.TimeOfDay{Hour: 0},
		End:   fix.TimeOfDay{Hour: 23, Minute: 59, Second: 59},
	}

	day1 := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	day1Later := time.Date(2026, 7, 31, 20, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)

	if !r.IsInSameRange(day1, day1Later) {
		t.Error("expected two instants on the same day to share an occurrence")
	}
	if r.IsInSameRange(day1, day2) {
		t.Error("expected instants on different days to be different occurrences")
	}
}

func TestTimeRangeIsInSameRangeWrapping(t *testing.T) {
	r := fix.TimeRange{
		Start: fix.TimeOfDay{Hour: 22},
		End:   fix.TimeOfDay{Hour: 6},
	}

	beforeMidnight := time.Date(2026, 7, 31, 23, 0, 0, 0, time.UTC)
	afterMidnight := time.Date(2026, 8, 1, 3, 0, 0, 0, time.UTC)
	nextEvening := time.Date(2026, 8, 1, 23, 0, 0, 0, time.UTC)

	if !r.IsInSameRange(beforeMidnight, afterMidnight) {
		t.Error("expected 23:00 and the following 03:00 to be the same occurrence")
	}
	if r.IsInSameRange(beforeMidnight, nextEvening) {
		t.Error("expected occurrences a full day apart to differ")
	}
}
