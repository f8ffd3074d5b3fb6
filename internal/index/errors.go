package index

import "errors"

// ErrDimensionMismatch indicates a query or add vector whose length does
// not match the index dimension. Never silently coerced.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")
