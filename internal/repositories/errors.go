package repositories

import "errors"

// ErrOrderNotFound is returned when an order lookup matches no document.
var ErrOrderNotFound = errors.New("order not found")
