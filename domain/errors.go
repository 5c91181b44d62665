package domain

import "errors"

var (
	ErrInvalidNumberFormat = errors.New("invalid number format")
	// ErrInvalidSignature will throw for malformed or partially present signatures
	ErrInvalidSignature = errors.New("Invalid signature")

	// ErrNoContractCode will throw when binding to an address without deployed code
	ErrNoContractCode = errors.New("no contract code at given address")
	// ErrNonSplittingPartialBid will throw for a partial-quantity bid against a
	// non-splitting auction manager
	ErrNonSplittingPartialBid = errors.New("partial bid on non-splitting auction manager")
	// ErrReceiptTimeout will throw when a submitted transaction produced no
	// receipt within the configured window; the operation may be retried
	ErrReceiptTimeout = errors.New("timed out waiting for transaction receipt")
)
