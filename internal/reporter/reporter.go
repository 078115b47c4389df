// Package reporter delivers activity records to an external ticket sink
// through a bounded queue. The core's availability wins over record
// completeness: when the queue is full the oldest records are dropped and a
// single recovery record marks the loss.
package reporter

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"agentdir/internal/agent"
	"agentdir/internal/ticket"
)

// Reporter forwards records to a sink from a background goroutine. Emit
// never blocks the caller.
type Reporter struct {
	sink     ticket.Sink
	queueCap int
	log      zerolog.Logger

	mu       sync.Mutex
	queue    []*agent.ActivityRecord
	dropped  uint64
	enqueued uint64
	sent     uint64
	wake     chan struct{}
	stopped  bool

	done chan struct{}
}

// New creates a reporter. Start must be called before records flow.
func New(sink ticket.Sink, queueCap int, log zerolog.Logger) *Reporter {
	return &Reporter{
		sink:     sink,
		queueCap: queueCap,
		log:      log,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Start launches the forwarding goroutine.
func (r *Reporter) Start() {
	go r.loop()
}

// Emit places a record on the queue. On overflow the oldest record is
// dropped; the loss is surfaced once with a reporter_overflow record when
// the queue recovers.
func (r *Reporter) Emit(rec *agent.ActivityRecord) {
	if rec == nil {
		return
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	if len(r.queue) >= r.queueCap {
		r.queue = r.queue[1:]
		r.dropped++
	} else if r.dropped > 0 {
		// Queue has room again: account for the loss exactly once.
		overflow := agent.NewRecord(agent.EventError).
			WithDetail("kind", "reporter_overflow").
			WithDetail("dropped", strconv.FormatUint(r.dropped, 10))
		r.dropped = 0
		r.queue = append(r.queue, overflow)
	}
	r.queue = append(r.queue, rec)
	r.enqueued++
	r.mu.Unlock()

	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// loop forwards queued records in FIFO order until Stop.
func (r *Reporter) loop() {
	defer close(r.done)
	for {
		rec, ok, stopped := r.next()
		if !ok {
			if stopped {
				return
			}
			<-r.wake
			continue
		}
		r.deliver(rec)
	}
}

// next pops the queue head. The third result reports a stopped, drained
// reporter.
func (r *Reporter) next() (*agent.ActivityRecord, bool, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return nil, false, r.stopped
	}
	rec := r.queue[0]
	r.queue = r.queue[1:]
	return rec, true, false
}

// deliver posts one record. Sink failures are logged, never raised.
func (r *Reporter) deliver(rec *agent.ActivityRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.sink.PostActivity(ctx, rec); err != nil {
		r.log.Warn().
			Str("record_id", rec.ID).
			Str("kind", string(rec.Kind)).
			Err(err).
			Msg("ticket sink rejected record")
		return
	}
	r.mu.Lock()
	r.sent++
	r.mu.Unlock()
}

// QueueDepth returns the current number of queued records.
func (r *Reporter) QueueDepth() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.queue)
}

// Sent returns the count of records delivered to the sink.
func (r *Reporter) Sent() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sent
}

// Stop refuses new records and drains the queue until the context ends.
// Records still queued at the deadline are lost.
func (r *Reporter) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		<-r.done
		return nil
	}
	r.stopped = true
	r.mu.Unlock()

	// Wake the loop so it can observe the stop and drain.
	select {
	case r.wake <- struct{}{}:
	default:
	}

	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		r.mu.Lock()
		remaining := len(r.queue)
		r.mu.Unlock()
		r.log.Warn().Int("remaining", remaining).Msg("reporter flush deadline exceeded")
		return ctx.Err()
	}
}
