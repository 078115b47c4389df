// Package core is the single entry point the PM orchestrator depends on.
// It wires the walker, scanner, cache, registry, selector, reporter, and
// tracker together and enforces the facade lifecycle.
package core

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"agentdir/internal/agent"
	"agentdir/internal/config"
	"agentdir/internal/promptcache"
	"agentdir/internal/registry"
	"agentdir/internal/reporter"
	"agentdir/internal/scanner"
	"agentdir/internal/selector"
	"agentdir/internal/ticket"
	"agentdir/internal/tracker"
	"agentdir/internal/walker"
	"agentdir/pkg/logger"
)

// State is the facade lifecycle state.
type State int32

const (
	StateNew State = iota
	StateRunning
	StateStopped
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Default operation deadlines, applied when the caller's context has none.
const (
	DefaultListDeadline   = 5 * time.Second
	DefaultLoadDeadline   = 2 * time.Second
	DefaultSelectDeadline = 500 * time.Millisecond
)

// Stats is the facade's observable state.
type Stats struct {
	State          string            `json:"state"`
	ViewGeneration int64             `json:"view_generation"`
	Cache          promptcache.Stats `json:"cache"`
	QueueDepth     int               `json:"queue_depth"`
	RecordsSent    uint64            `json:"records_sent"`
}

// Core is the facade. Construct one per process with New; it owns the
// registry, cache, tracker, and reporter exclusively.
type Core struct {
	opts  *config.Options
	log   zerolog.Logger
	state atomic.Int32

	cache *promptcache.Cache
	reg   *registry.Registry
	sel   *selector.Selector
	rep   *reporter.Reporter
	trk   *tracker.Tracker
}

// New wires a core from options and a ticket sink. A nil sink falls back to
// the log sink.
func New(opts *config.Options, sink ticket.Sink) *Core {
	if sink == nil {
		sink = ticket.NewLogSink(logger.Component("ticket"))
	}

	c := &Core{opts: opts, log: logger.Component("core")}
	c.cache = promptcache.New(opts.CacheByteCap, opts.CacheTTL(), logger.Component("cache"))
	c.rep = reporter.New(sink, opts.ReporterQueueCap, logger.Component("reporter"))

	w := walker.New(opts, c.rep, logger.Component("walker"))
	s := scanner.New(opts, logger.Component("scanner"))
	c.reg = registry.New(w, s, c.cache, c.rep, logger.Component("registry"))
	c.sel = selector.New(opts.SelectorWeights, c.rep, logger.Component("selector"))
	c.trk = tracker.New(c.cache, c.reg, c.rep, opts, logger.Component("tracker"))
	return c
}

// Start transitions NEW -> RUNNING: launches the reporter, builds the
// initial view for root, and begins modification tracking. A stopped core
// cannot be restarted.
func (c *Core) Start(root string) error {
	if !c.state.CompareAndSwap(int32(StateNew), int32(StateRunning)) {
		switch State(c.state.Load()) {
		case StateRunning:
			return nil
		default:
			return fmt.Errorf("%w: re-initialize a fresh core", agent.ErrStopped)
		}
	}

	c.rep.Start()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultListDeadline)
	defer cancel()
	if _, err := c.reg.ListAgents(ctx, root); err != nil {
		c.log.Error().Err(err).Str("root", root).Msg("initial discovery failed")
		c.shutdown()
		return err
	}

	if err := c.trk.Start(); err != nil {
		c.log.Error().Err(err).Msg("tracker start failed")
		c.shutdown()
		return err
	}

	c.log.Info().Str("root", root).Msg("core started")
	return nil
}

// Stop transitions to STOPPED, cancels tracking, and drains the reporter up
// to the flush deadline. Idempotent.
func (c *Core) Stop() error {
	prev := State(c.state.Swap(int32(StateStopped)))
	if prev != StateRunning {
		return nil
	}
	c.shutdown()
	c.log.Info().Msg("core stopped")
	return nil
}

// shutdown tears down background work. state is already terminal.
func (c *Core) shutdown() {
	c.state.Store(int32(StateStopped))
	_ = c.trk.Close()

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.ReporterFlushTimeout())
	defer cancel()
	_ = c.rep.Stop(ctx)
}

// ListAgents returns the registry view for root.
func (c *Core) ListAgents(ctx context.Context, root string) (*agent.RegistryView, error) {
	if err := c.ensureRunning(); err != nil {
		return nil, err
	}
	ctx, cancel := withDefaultDeadline(ctx, DefaultListDeadline)
	defer cancel()

	view, err := c.reg.ListAgents(ctx, root)
	if err != nil {
		return nil, err
	}
	// A fresh build may have discovered new directories to observe.
	c.trk.WatchDirs(c.reg.WatchedDirs())
	return view, nil
}

// LoadAgent resolves and returns the prompt for id under root.
func (c *Core) LoadAgent(ctx context.Context, id agent.ID, root string) (*agent.Prompt, error) {
	if err := c.ensureRunning(); err != nil {
		return nil, err
	}
	ctx, cancel := withDefaultDeadline(ctx, DefaultLoadDeadline)
	defer cancel()
	return c.reg.LoadAgent(ctx, id, root)
}

// SelectAgent scores the view for root against the task description. On a
// successful selection the chosen agent's prompt is returned alongside the
// outcome; on fallback the prompt is nil and the caller decides.
func (c *Core) SelectAgent(ctx context.Context, task, root string, hints *selector.Hints) (agent.SelectionOutcome, *agent.Prompt, error) {
	if err := c.ensureRunning(); err != nil {
		return agent.SelectionOutcome{}, nil, err
	}
	ctx, cancel := withDefaultDeadline(ctx, DefaultSelectDeadline)
	defer cancel()

	view, err := c.reg.ListAgents(ctx, root)
	if err != nil {
		return agent.SelectionOutcome{}, nil, err
	}

	outcome := c.sel.Select(view, task, hints)
	if outcome.FallbackUsed {
		return outcome, nil, nil
	}

	prompt, err := c.reg.LoadAgent(ctx, outcome.Chosen, root)
	if err != nil {
		return outcome, nil, err
	}
	return outcome, prompt, nil
}

// Stats returns cache and queue counters. Callable in every state.
func (c *Core) Stats() Stats {
	return Stats{
		State:          State(c.state.Load()).String(),
		ViewGeneration: c.reg.Generation(),
		Cache:          c.cache.Stats(),
		QueueDepth:     c.rep.QueueDepth(),
		RecordsSent:    c.rep.Sent(),
	}
}

// ensureRunning maps the lifecycle to caller-visible errors.
func (c *Core) ensureRunning() error {
	switch State(c.state.Load()) {
	case StateRunning:
		return nil
	case StateNew:
		return agent.ErrNotRunning
	default:
		return agent.ErrStopped
	}
}

// withDefaultDeadline applies d when ctx carries no deadline of its own.
func withDefaultDeadline(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
