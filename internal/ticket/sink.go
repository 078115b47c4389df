// Package ticket defines the contract boundary to an external ticketing
// system and ships two reference sinks: a log sink and a sqlite sink. The
// core depends only on the Sink interface.
package ticket

import (
	"context"

	"agentdir/internal/agent"
)

// Sink accepts activity records. Delivery is at-least-once; implementations
// must be idempotent on (timestamp, kind, agent id, source path). Failures
// are logged by the reporter, never raised to the core.
type Sink interface {
	PostActivity(ctx context.Context, rec *agent.ActivityRecord) error
}

// FuncSink adapts a function to the Sink interface. Handy in tests.
type FuncSink func(ctx context.Context, rec *agent.ActivityRecord) error

// PostActivity implements Sink.
func (f FuncSink) PostActivity(ctx context.Context, rec *agent.ActivityRecord) error {
	return f(ctx, rec)
}
