package hwapi

import "codeberg.org/mutker/psud/internal/errors"

const (
	// ErrNotSupported marks an operation the platform does not implement.
	// It is an expected condition, never a failure.
	ErrNotSupported = errors.ErrorCode("hwapi_not_supported")

	// Platform discovery errors
	ErrNoPlatform  = errors.ErrorCode("hwapi_no_platform")
	ErrBadManifest = errors.ErrorCode("hwapi_bad_manifest")

	// Attribute access errors
	ErrReadFailed  = errors.ErrorCode("hwapi_read_failed")
	ErrWriteFailed = errors.ErrorCode("hwapi_write_failed")
	ErrBadReading  = errors.ErrorCode("hwapi_bad_reading")
)

// IsNotSupported reports whether err signals an unimplemented capability.
func IsNotSupported(err error) bool {
	return errors.HasCode(err, ErrNotSupported)
}

// IsNoPlatform reports whether err signals that no usable hardware
// capability source was found at startup.
func IsNoPlatform(err error) bool {
	return errors.HasCode(err, ErrNoPlatform)
}
