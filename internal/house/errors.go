package house

import "errors"

// Domain-specific errors for the coordinator.
var (
	// ErrVendorRequired is returned when no vendor session is supplied.
	ErrVendorRequired = errors.New("house: vendor session is required")

	// ErrBusRequired is returned when no bus client is supplied.
	ErrBusRequired = errors.New("house: bus client is required")

	// ErrUnknownDevice is returned for lookups of ids not in the registry.
	ErrUnknownDevice = errors.New("house: unknown device")

	// ErrInvalidTopic is returned when a topic carries no device id.
	ErrInvalidTopic = errors.New("house: topic has no device segment")
)
