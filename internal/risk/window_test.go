package risk

import (
	"testing"
	"time"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 14, hour, minute, 0, 0, time.UTC)
}

func TestWindow_Disabled(t *testing.T) {
	w, err := NewWindow(false, "", "")
	if err != nil {
		t.Fatalf("NewWindow disabled: %v", err)
	}
	if !w.Active(at(3, 0)) || !w.Active(at(23, 59)) {
		t.Error("disabled window should always be active")
	}
}

func TestWindow_Normal(t *testing.T) {
	w, err := NewWindow(true, "09:30", "16:00")
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}

	cases := []struct {
		h, m   int
		active bool
	}{
		{9, 29, false},
		{9, 30, true}, // inclusive start
		{12, 0, true},
		{15, 59, true},
		{16, 0, false}, // exclusive end
		{23, 0, false},
	}
	for _, tc := range cases {
		if got := w.Active(at(tc.h, tc.m)); got != tc.active {
			t.Errorf("%02d:%02d: active = %v, want %v", tc.h, tc.m, got, tc.active)
		}
	}
}

func TestWindow_WrapsMidnight(t *testing.T) {
	w, err := NewWindow(true, "22:00", "02:00")
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}

	cases := []struct {
		h, m   int
		active bool
	}{
		{21, 59, false},
		{22, 0, true},
		{23, 30, true},
		{0, 0, true},
		{1, 15, true},
		{1, 59, true},
		{2, 0, false},
		{12, 0, false},
	}
	for _, tc := range cases {
		if got := w.Active(at(tc.h, tc.m)); got != tc.active {
			t.Errorf("%02d:%02d: active = %v, want %v", tc.h, tc.m, got, tc.active)
		}
	}
}

func TestWindow_NonUTCInput(t *testing.T) {
	w, err := NewWindow(true, "09:00", "17:00")
	if err != nil {
		t.Fatalf("NewWindow: %v", err)
	}
	// 05:00 in UTC-5 is 10:00 UTC, inside the window.
	loc := time.FixedZone("UTC-5", -5*3600)
	if !w.Active(time.Date(2026, 3, 14, 5, 0, 0, 0, loc)) {
		t.Error("window comparison must convert to UTC first")
	}
}

func TestWindow_RejectsBadConfig(t *testing.T) {
	if _, err := NewWindow(true, "9am", "17:00"); err == nil {
		t.Error("expected error for unparseable start")
	}
	if _, err := NewWindow(true, "09:00", "09:00"); err == nil {
		t.Error("expected error for zero-width window")
	}
}
