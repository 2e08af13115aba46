package journal

import "errors"

var (
	// ErrDeviceIDRequired is returned when an entry or query has no device id.
	ErrDeviceIDRequired = errors.New("journal: device id is required")

	// ErrInvalidOutcome is returned when an entry outcome is not ok or failed.
	ErrInvalidOutcome = errors.New("journal: invalid outcome")

	// ErrInvalidRetention is returned when Prune is called with a non-positive duration.
	ErrInvalidRetention = errors.New("journal: retention must be positive")
)
