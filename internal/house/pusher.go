package house

import (
	"context"
	"time"

	"github.com/nerrad567/hikumo-bridge/internal/hikumo"
	"github.com/nerrad567/hikumo-bridge/internal/journal"
)

// journalTimeout bounds the journal write after a push.
const journalTimeout = 2 * time.Second

// pusher sends coalesced device commands through the vendor session and
// records each attempt.
type pusher struct {
	vendor  Vendor
	journal journal.Repository // optional
	metrics *Metrics           // optional
	logger  Logger
}

// Push implements climate.Pusher.
func (p *pusher) Push(ctx context.Context, deviceID string, req hikumo.ApplyRequest) error {
	start := time.Now()
	err := p.vendor.ExecApply(ctx, req)
	elapsed := time.Since(start)

	p.metrics.observePush(err)
	if err == nil {
		p.logger.Info("Command pushed", "device_id", deviceID, "duration", elapsed)
	}

	if p.journal != nil {
		p.record(ctx, deviceID, req, elapsed, err)
	}
	return err
}

func (p *pusher) record(ctx context.Context, deviceID string, req hikumo.ApplyRequest, elapsed time.Duration, pushErr error) {
	entry := journal.Entry{
		DeviceID: deviceID,
		Outcome:  journal.OutcomeOK,
		Duration: elapsed,
	}
	if len(req.Actions) > 0 {
		entry.DeviceURL = req.Actions[0].DeviceURL
		if len(req.Actions[0].Commands) > 0 {
			entry.Parameters = req.Actions[0].Commands[0].Parameters
		}
	}
	if pushErr != nil {
		entry.Outcome = journal.OutcomeFailed
		entry.Error = pushErr.Error()
	}

	// The journal outlives a cancelled push context.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()

	if err := p.journal.Record(writeCtx, entry); err != nil {
		p.logger.Warn("Failed to journal command", "device_id", deviceID, "error", err)
	}
}
