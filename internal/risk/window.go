package risk

import (
	"fmt"
	"time"
)

// Window is a [start,end) trading window in UTC minutes-of-day. A window
// with start > end wraps around midnight: 22:00-02:00 admits 23:30 and
// 01:15 but not 12:00. A disabled window admits everything.
type Window struct {
	enabled     bool
	startMinute int
	endMinute   int
}

// NewWindow parses "HH:MM" start and end times into a Window. When enabled
// is false the bounds are ignored and Active always returns true.
func NewWindow(enabled bool, start, end string) (Window, error) {
	if !enabled {
		return Window{}, nil
	}
	s, err := parseMinuteOfDay(start)
	if err != nil {
		return Window{}, fmt.Errorf("risk: window start: %w", err)
	}
	e, err := parseMinuteOfDay(end)
	if err != nil {
		return Window{}, fmt.Errorf("risk: window end: %w", err)
	}
	if s == e {
		return Window{}, fmt.Errorf("risk: window start and end are both %s; use enabled=false for an always-open window", start)
	}
	return Window{enabled: true, startMinute: s, endMinute: e}, nil
}

// Active reports whether now (converted to UTC) falls inside the window.
func (w Window) Active(now time.Time) bool {
	if !w.enabled {
		return true
	}
	utc := now.UTC()
	m := utc.Hour()*60 + utc.Minute()
	if w.startMinute < w.endMinute {
		return m >= w.startMinute && m < w.endMinute
	}
	// Wrap-around: [start,24h) or [0,end).
	return m >= w.startMinute || m < w.endMinute
}

func parseMinuteOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("parse %q as HH:MM: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}
