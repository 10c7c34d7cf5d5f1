// Package progress defines the optional notification sink the pipeline
// reports through. A nil sink is valid and turns every event into a no-op;
// sink failures are never allowed to affect pipeline correctness.
package progress

import (
	"context"

	"go.uber.org/zap"
)

// Status is the coarse pipeline stage an event reports.
type Status string

const (
	StatusParsing     Status = "parsing"
	StatusResearching Status = "researching"
	StatusProcessing  Status = "processing"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// Event is one progress notification.
type Event struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
	Result  any    `json:"result,omitempty"`
}

// Sink receives progress events. Implementations must be safe for
// concurrent use and must not block on slow consumers longer than ctx allows.
type Sink interface {
	Notify(ctx context.Context, ev Event)
}

// Notify sends ev to sink if one is configured.
func Notify(ctx context.Context, sink Sink, ev Event) {
	if sink == nil {
		return
	}
	sink.Notify(ctx, ev)
}

// ZapSink logs progress events through the global zap logger.
type ZapSink struct{}

func (ZapSink) Notify(_ context.Context, ev Event) {
	zap.L().Info("progress",
		zap.String("status", string(ev.Status)),
		zap.String("message", ev.Message),
	)
}

// Multi fans events out to several sinks.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, ev Event) {
	for _, s := range m {
		if s != nil {
			s.Notify(ctx, ev)
		}
	}
}
