package hikumo

import "errors"

// Errors returned by the vendor session. Use errors.Is() to check for them.
var (
	// ErrRequestFailed is returned when a call still fails after its retry budget.
	ErrRequestFailed = errors.New("hikumo: request failed")

	// ErrLoginFailed is returned when the login endpoint rejects the credentials
	// or cannot be reached.
	ErrLoginFailed = errors.New("hikumo: login failed")

	// ErrInvalidProxy is returned by NewSession for an unparseable proxy URL.
	ErrInvalidProxy = errors.New("hikumo: invalid proxy url")
)
