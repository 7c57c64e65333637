package daemon

import "codeberg.org/mutker/psud/internal/errors"

const (
	ErrInvalidInterval = errors.ErrorCode("daemon_invalid_interval")
	ErrSeedFailed      = errors.ErrorCode("daemon_seed_failed")
)
