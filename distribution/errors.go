package distribution

import "errors"

// ErrInvalidInput aborts a whole run. No commitment is built from a batch
// that produced it.
var ErrInvalidInput = errors.New("invalid distribution input")
