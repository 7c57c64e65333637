package budget

import "codeberg.org/mutker/psud/internal/errors"

const (
	ErrPublishFailed = errors.ErrorCode("budget_publish_failed")
)
