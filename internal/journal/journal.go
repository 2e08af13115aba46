package journal

import (
	"context"
	"time"
)

// Outcome values for Entry.Outcome.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

const (
	defaultRecentLimit = 20
	maxRecentLimit     = 200
)

// Entry is one upstream push attempt.
type Entry struct {
	// ID is "cmd-" plus a uuid prefix. Assigned by Record when empty.
	ID string `json:"id"`

	DeviceID  string `json:"device_id"`
	DeviceURL string `json:"device_url"`

	// Parameters are the positional globalControl parameters that were sent.
	Parameters []any `json:"parameters"`

	Outcome  string        `json:"outcome"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`

	// CreatedAt is stored in UTC with millisecond precision.
	CreatedAt time.Time `json:"created_at"`
}

// Repository stores and retrieves push journal entries.
//
// Implementations must be safe for concurrent use.
type Repository interface {
	// Record appends an entry. ID and CreatedAt are filled in when empty.
	Record(ctx context.Context, entry Entry) error

	// Recent returns up to limit entries for a device, newest first.
	// limit <= 0 means the default (20); limits above 200 are clamped.
	Recent(ctx context.Context, deviceID string, limit int) ([]Entry, error)

	// Prune deletes entries older than olderThan and reports how many were removed.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultRecentLimit
	}
	if limit > maxRecentLimit {
		return maxRecentLimit
	}
	return limit
}
