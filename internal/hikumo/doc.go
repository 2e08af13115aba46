// Package hikumo is the client for the Hi-Kumo (Overkiz) enduser cloud API.
//
// Three endpoints are used:
//
//	POST {api_url}/login       form-encoded userId / userPassword, sets the session cookie
//	GET  {api_url}/setup       gateways and devices with definitions and live states
//	POST {api_url}/exec/apply  globalControl command envelope
//
// The cloud is flaky and rate-sensitive. Calls are paced by a token bucket,
// retried a small fixed number of times after re-login, and degrade to an
// empty result instead of an error the bridge has to act on.
package hikumo
