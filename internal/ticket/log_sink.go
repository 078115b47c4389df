package ticket

import (
	"context"

	"github.com/rs/zerolog"

	"agentdir/internal/agent"
)

// LogSink writes activity records to a structured logger. It is the default
// sink when no ticketing backend is configured.
type LogSink struct {
	log zerolog.Logger
}

// NewLogSink creates a log-backed sink.
func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

// PostActivity implements Sink. Logging the same record twice is harmless,
// which satisfies the idempotence requirement.
func (s *LogSink) PostActivity(_ context.Context, rec *agent.ActivityRecord) error {
	evt := s.log.Info().
		Str("record_id", rec.ID).
		Time("ts", rec.Timestamp).
		Str("kind", string(rec.Kind))
	if rec.AgentID != "" {
		evt = evt.Str("agent_id", rec.AgentID)
	}
	if rec.SourcePath != "" {
		evt = evt.Str("source_path", rec.SourcePath)
	}
	if rec.ViewGeneration != 0 {
		evt = evt.Int64("generation", rec.ViewGeneration)
	}
	for k, v := range rec.Details {
		evt = evt.Str(k, v)
	}
	evt.Msg("activity")
	return nil
}
