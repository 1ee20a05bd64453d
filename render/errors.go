package render

import (
	"errors"
	"fmt"
)

// ErrReceiptNotFound means the off-screen mount never produced a receipt
// within the wait bound, so there was nothing to rasterize.
var ErrReceiptNotFound = errors.New("receipt not found")

// RasterError wraps a failure of the rasterizer itself.
type RasterError struct {
	Err error
}

func (e *RasterError) Error() string {
	return fmt.Sprintf("rasterize receipt: %v", e.Err)
}

func (e *RasterError) Unwrap() error {
	return e.Err
}
