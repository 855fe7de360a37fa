package position

import (
	"testing"
	"time"
)

func TestDayCounterIncrementsWithinDay(t *testing.T) {
	now := time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC)
	d := NewDayCounter(now)

	for i := 0; i < 3; i++ {
		d.Increment(now.Add(time.Duration(i) * time.Hour))
	}
	if got := d.Count(now.Add(5 * time.Hour)); got != 3 {
		t.Errorf("count = %d, want 3", got)
	}
}

func TestDayCounterResetsAtUTCMidnight(t *testing.T) {
	before := time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC)
	d := NewDayCounter(before)
	d.Increment(before)
	d.Increment(before)

	after := time.Date(2024, 3, 11, 0, 1, 0, 0, time.UTC)
	if got := d.Count(after); got != 0 {
		t.Errorf("count after rollover = %d, want 0", got)
	}
}

func TestDayCounterRollReportsOnce(t *testing.T) {
	day1 := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	d := NewDayCounter(day1)
	d.Increment(day1)
	d.Increment(day1)

	if _, rolled := d.Roll(day1.Add(time.Hour)); rolled {
		t.Error("rolled within the same day")
	}

	day2 := time.Date(2024, 3, 11, 0, 0, 5, 0, time.UTC)
	prev, rolled := d.Roll(day2)
	if !rolled {
		t.Fatal("rollover not detected")
	}
	if prev != 2 {
		t.Errorf("previous count = %d, want 2", prev)
	}
	// Only the first observer of the new day gets the rollover.
	if _, rolled := d.Roll(day2.Add(time.Minute)); rolled {
		t.Error("rollover reported twice")
	}
}

func TestDayCounterUsesUTCDay(t *testing.T) {
	// 23:00 in UTC-5 is 04:00 UTC the next day.
	loc := time.FixedZone("EST", -5*3600)
	d := NewDayCounter(time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC))
	d.Increment(time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC))

	local := time.Date(2024, 3, 10, 23, 0, 0, 0, loc)
	if got := d.Count(local); got != 0 {
		t.Errorf("count = %d, want 0 after UTC rollover", got)
	}
}
