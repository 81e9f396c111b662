package repositories

import "github.com/pkg/errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint (user email) is violated.
	ErrDuplicate = errors.New("duplicate record")
	// ErrInsufficientStock is returned by a conditional stock decrement whose guard failed.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidQuantity is returned when a stock change is not a positive quantity.
	ErrInvalidQuantity = errors.New("quantity must be positive")
	// ErrStatusConflict is returned when an order's status changed before the update landed.
	ErrStatusConflict = errors.New("order status changed concurrently")
)
