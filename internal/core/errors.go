package core

import "errors"

var (
	// ErrDuplicateOrderID is returned when a LIMIT submission's id already
	// rests in this book. Treated as a caller-contract violation: rejected
	// at the boundary rather than assuming unique input.
	ErrDuplicateOrderID = errors.New("core: order id already resting in book")

	// ErrNonFinitePrice is returned for a LIMIT submission whose price is
	// NaN or +/-Inf. Market orders ignore price and are never rejected for it.
	ErrNonFinitePrice = errors.New("core: non-finite limit price")
)
