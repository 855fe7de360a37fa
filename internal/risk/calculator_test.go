package risk

import (
	"math"
	"testing"

	"github.com/voltrade/revbot/internal/domain"
)

func mustParams(t *testing.T, riskPct, lev, tpPct, slPct float64) Params {
	t.Helper()
	p, err := NewParams(riskPct, lev, tpPct, slPct)
	if err != nil {
		t.Fatalf("NewParams(%v, %v, %v, %v): %v", riskPct, lev, tpPct, slPct, err)
	}
	return p
}

func TestNewParams_RejectsInvalidConfig(t *testing.T) {
	cases := []struct {
		name                   string
		riskPct, lev, tp, sl   float64
	}{
		{"zero risk", 0, 10, 0.8, 0.3},
		{"negative risk", -1, 10, 0.8, 0.3},
		{"risk over 100", 101, 10, 0.8, 0.3},
		{"leverage below 1", 2.5, 0.5, 0.8, 0.3},
		{"zero tp", 2.5, 10, 0, 0.3},
		{"zero sl", 2.5, 10, 0.8, 0},
	}
	for _, tc := range cases {
		if _, err := NewParams(tc.riskPct, tc.lev, tc.tp, tc.sl); err == nil {
			t.Errorf("%s: expected error, got nil", tc.name)
		}
	}
}

func TestSizeFor_Formula(t *testing.T) {
	p := mustParams(t, 2.5, 20, 0.8, 0.3)

	size, err := p.SizeFor(1000)
	if err != nil {
		t.Fatalf("SizeFor(1000): %v", err)
	}
	if size != 500 {
		t.Errorf("balance=1000 risk=2.5%% lev=20: expected size 500, got %v", size)
	}

	// Always positive for positive balance.
	for _, b := range []float64{0.01, 5, 123.45, 1e9} {
		s, err := p.SizeFor(b)
		if err != nil {
			t.Errorf("SizeFor(%v): %v", b, err)
		}
		if s <= 0 {
			t.Errorf("SizeFor(%v) = %v, expected positive", b, s)
		}
		want := b * 2.5 / 100 * 20
		if math.Abs(s-want) > 1e-9 {
			t.Errorf("SizeFor(%v) = %v, want %v", b, s, want)
		}
	}
}

func TestSizeFor_RejectsNonPositiveBalance(t *testing.T) {
	p := mustParams(t, 2.5, 20, 0.8, 0.3)
	for _, b := range []float64{0, -10} {
		if _, err := p.SizeFor(b); err == nil {
			t.Errorf("SizeFor(%v): expected error, got nil", b)
		}
	}
}

func TestPricesFor_Ordering(t *testing.T) {
	p := mustParams(t, 2.5, 20, 0.8, 0.3)

	for _, entry := range []float64{0.5, 100, 50000} {
		tp, sl, err := p.PricesFor(domain.SideLong, entry)
		if err != nil {
			t.Fatalf("PricesFor(LONG, %v): %v", entry, err)
		}
		if !(tp > entry && entry > sl) {
			t.Errorf("LONG entry=%v: expected tp > entry > sl, got tp=%v sl=%v", entry, tp, sl)
		}

		tp, sl, err = p.PricesFor(domain.SideShort, entry)
		if err != nil {
			t.Fatalf("PricesFor(SHORT, %v): %v", entry, err)
		}
		if !(sl > entry && entry > tp) {
			t.Errorf("SHORT entry=%v: expected sl > entry > tp, got tp=%v sl=%v", entry, tp, sl)
		}
	}
}

func TestPricesFor_ShortSqueezeScenario(t *testing.T) {
	// Defaults: TP 0.8%, SL 0.3%. A squeeze at 50000 shorts with
	// tp=49600 and sl=50150.
	p := mustParams(t, 2.5, 20, 0.8, 0.3)

	tp, sl, err := p.PricesFor(domain.SignalShortSqueeze.Side(), 50000)
	if err != nil {
		t.Fatalf("PricesFor: %v", err)
	}
	if math.Abs(tp-49600) > 1e-6 {
		t.Errorf("tp = %v, want 49600", tp)
	}
	if math.Abs(sl-50150) > 1e-6 {
		t.Errorf("sl = %v, want 50150", sl)
	}
}

func TestPricesFor_RejectsInvalidEntry(t *testing.T) {
	p := mustParams(t, 2.5, 20, 0.8, 0.3)
	for _, entry := range []float64{0, -50000} {
		if _, _, err := p.PricesFor(domain.SideLong, entry); err == nil {
			t.Errorf("PricesFor(LONG, %v): expected error, got nil", entry)
		}
	}
}
