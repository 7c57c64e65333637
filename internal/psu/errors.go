package psu

import "codeberg.org/mutker/psud/internal/errors"

const (
	ErrPollFailed       = errors.ErrorCode("psu_poll_failed")
	ErrPublishFailed    = errors.ErrorCode("psu_publish_failed")
	ErrInvalidThreshold = errors.ErrorCode("psu_invalid_threshold")
)
