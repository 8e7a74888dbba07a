package reactive

import "errors"

// ErrReadOnly is returned when writing a Computed that has no setter.
var ErrReadOnly = errors.New("reactive: computed value is read-only")

// ErrFlushLoop is returned by Flush when handlers keep scheduling each other
// past the configured round limit.
var ErrFlushLoop = errors.New("reactive: flush did not settle")
