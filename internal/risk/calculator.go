// Package risk holds the pure sizing and gating math of the trading core:
// position sizing from account balance, protective price levels, and the
// UTC trading window. Nothing in this package performs I/O.
package risk

import (
	"fmt"

	"github.com/voltrade/revbot/internal/domain"
)

// Params are the validated risk parameters. Construct via NewParams so
// invalid configuration is rejected at startup, not per trade.
type Params struct {
	RiskPercent float64 // percent of balance risked per trade, (0,100]
	Leverage    float64 // >= 1
	TPPercent   float64 // take-profit distance from entry, > 0
	SLPercent   float64 // stop-loss distance from entry, > 0
}

// NewParams validates and returns the risk parameters.
func NewParams(riskPercent, leverage, tpPercent, slPercent float64) (Params, error) {
	if riskPercent <= 0 || riskPercent > 100 {
		return Params{}, fmt.Errorf("risk: risk_percent must be in (0,100], got %v", riskPercent)
	}
	if leverage < 1 {
		return Params{}, fmt.Errorf("risk: leverage must be >= 1, got %v", leverage)
	}
	if tpPercent <= 0 {
		return Params{}, fmt.Errorf("risk: tp_percent must be > 0, got %v", tpPercent)
	}
	if slPercent <= 0 {
		return Params{}, fmt.Errorf("risk: sl_percent must be > 0, got %v", slPercent)
	}
	return Params{
		RiskPercent: riskPercent,
		Leverage:    leverage,
		TPPercent:   tpPercent,
		SLPercent:   slPercent,
	}, nil
}

// SizeFor returns the position notional for the given available balance:
// balance * risk% / 100 * leverage. The balance must be positive.
func (p Params) SizeFor(balance float64) (float64, error) {
	if balance <= 0 {
		return 0, fmt.Errorf("risk: balance must be > 0, got %v: %w", balance, domain.ErrInsufficientBalance)
	}
	return balance * p.RiskPercent / 100 * p.Leverage, nil
}

// PricesFor computes the take-profit and stop-loss levels for a position
// entered at entryPrice. For a LONG the TP sits above entry and the SL
// below; for a SHORT the reverse.
func (p Params) PricesFor(side domain.PositionSide, entryPrice float64) (tp, sl float64, err error) {
	if entryPrice <= 0 {
		return 0, 0, fmt.Errorf("risk: entry price %v: %w", entryPrice, domain.ErrInvalidPrice)
	}
	if side == domain.SideLong {
		tp = entryPrice * (1 + p.TPPercent/100)
		sl = entryPrice * (1 - p.SLPercent/100)
	} else {
		tp = entryPrice * (1 - p.TPPercent/100)
		sl = entryPrice * (1 + p.SLPercent/100)
	}
	return tp, sl, nil
}
