package health

import "errors"

// ErrCheckTimeout is reported when a check outlives its timeout.
var ErrCheckTimeout = errors.New("health check timeout")
