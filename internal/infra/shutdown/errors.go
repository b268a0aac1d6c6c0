package shutdown

import "errors"

// ErrTerminationRequested is returned when the termination file exists before startup.
var ErrTerminationRequested = errors.New("termination requested")
