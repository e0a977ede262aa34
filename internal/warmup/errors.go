package warmup

import "errors"

// Sentinel errors for invalid state transitions. These are operator errors
// that surface as 4xx at the API layer; admission denials are decisions,
// not errors.
var (
	ErrAlreadyWarming = errors.New("warmup is already running")
	ErrNotWarming     = errors.New("warmup is not running")
	ErrNotPaused      = errors.New("warmup is not paused")
	ErrDayOutOfRange  = errors.New("warmup day must be between 1 and 30")
	ErrBadSendCount   = errors.New("send count must be positive")
)
