package domain

import "errors"

var (
	// ErrInvoiceNotFound is returned when the chain has no invoice for an id.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrInsufficientLiquidity is returned when the operating wallet cannot
	// cover a fund movement. The custody record stays held.
	ErrInsufficientLiquidity = errors.New("insufficient liquidity")

	// ErrCustodyConflict is returned when a custody transition loses a
	// compare-and-set race (record already terminal).
	ErrCustodyConflict = errors.New("custody record already transitioned")

	// ErrCursorRegression is returned when an Advance would move a cursor
	// backwards.
	ErrCursorRegression = errors.New("cursor regression rejected")
)
