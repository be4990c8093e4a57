package cache

import "errors"

// ErrUnavailable is returned by operations that need Redis when none is configured.
var ErrUnavailable = errors.New("cache: redis unavailable")
