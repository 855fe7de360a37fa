package domain

import "errors"

var (
	// ErrAdmissionRejected marks a signal dropped by an admission gate
	// (whitelist, window, daily cap, open-position cap). Silent drop; not
	// an operator-facing failure.
	ErrAdmissionRejected = errors.New("signal rejected by admission gate")

	// ErrInsufficientBalance aborts a signal when the available balance is
	// unknown or below the configured minimum.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrOrderRejected is returned when the exchange refuses an order.
	ErrOrderRejected = errors.New("order rejected")

	// ErrProtectiveOrderFailed marks exhausted TP/SL placement retries. The
	// position stays open and unprotected; this is surfaced as an alert.
	ErrProtectiveOrderFailed = errors.New("protective order placement failed")

	// ErrStoreInvariant marks a collaborator contract breach inside the
	// position store (duplicate entry ID, removal outside CLOSING).
	ErrStoreInvariant = errors.New("position store invariant violation")

	// ErrInvalidPrice is returned for non-positive entry prices.
	ErrInvalidPrice = errors.New("invalid price")

	ErrNotFound     = errors.New("not found")
	ErrLockHeld     = errors.New("lock already held")
	ErrUnauthorized = errors.New("unauthorized")
	ErrRateLimited  = errors.New("rate limited")
)
