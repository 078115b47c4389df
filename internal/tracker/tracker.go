// Package tracker observes agent directories for changes and drives prompt
// cache invalidation. Bursts are coalesced in a debounce window. When the
// filesystem notifier cannot be created the tracker degrades to periodic
// re-stat of known sources; the registry stays correct either way because
// every load verifies the content hash against the file.
package tracker

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"agentdir/internal/agent"
	"agentdir/internal/config"
	"agentdir/internal/promptcache"
	"agentdir/internal/registry"
)

// Tracker invalidates cached state when agent files change.
type Tracker struct {
	cache    *promptcache.Cache
	reg      *registry.Registry
	emitter  agent.Emitter
	debounce time.Duration
	poll     time.Duration
	log      zerolog.Logger

	watcher  *fsnotify.Watcher
	fallback *cron.Cron

	mu       sync.Mutex
	pending  map[string]string // path -> change kind
	timer    *time.Timer
	lastStat map[string]int64 // path -> mod time ns, poll fallback state
	watched  map[string]struct{}
	stopped  bool

	stopCh chan struct{}
}

// New creates a tracker over the given cache and registry.
func New(cache *promptcache.Cache, reg *registry.Registry, emitter agent.Emitter, opts *config.Options, log zerolog.Logger) *Tracker {
	if emitter == nil {
		emitter = agent.NopEmitter{}
	}
	return &Tracker{
		cache:    cache,
		reg:      reg,
		emitter:  emitter,
		debounce: opts.TrackerDebounce(),
		poll:     opts.TrackerPollFallback(),
		log:      log,
		pending:  make(map[string]string),
		lastStat: make(map[string]int64),
		watched:  make(map[string]struct{}),
		stopCh:   make(chan struct{}),
	}
}

// Start begins observation. It prefers an fsnotify watcher and falls back to
// a scheduled re-stat of known sources when the notifier is unavailable.
func (t *Tracker) Start() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		t.log.Warn().Err(err).Dur("interval", t.poll).Msg("filesystem notifier unavailable, polling")
		t.fallback = cron.New()
		if _, err := t.fallback.AddFunc(fmt.Sprintf("@every %s", t.poll), t.pollOnce); err != nil {
			return fmt.Errorf("schedule poll fallback: %w", err)
		}
		t.primeStatIndex()
		t.fallback.Start()
		return nil
	}

	t.watcher = w
	t.WatchDirs(t.reg.WatchedDirs())
	go t.loop()
	return nil
}

// WatchDirs adds directories to the watch set. Already-watched and missing
// directories are skipped.
func (t *Tracker) WatchDirs(dirs []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.watcher == nil || t.stopped {
		return
	}
	for _, dir := range dirs {
		if _, ok := t.watched[dir]; ok {
			continue
		}
		if err := t.watcher.Add(dir); err != nil {
			t.log.Warn().Err(err).Str("path", dir).Msg("failed to watch directory")
			continue
		}
		t.watched[dir] = struct{}{}
		t.log.Debug().Str("path", dir).Msg("watching directory")
	}
}

// loop consumes notifier events until Close.
func (t *Tracker) loop() {
	for {
		select {
		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			kind := changeKind(event.Op)
			if kind == "" {
				continue
			}
			t.addPending(event.Name, kind)

		case err, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
			t.log.Error().Err(err).Msg("watcher error")

		case <-t.stopCh:
			return
		}
	}
}

// changeKind maps notifier ops to record kinds; uninteresting ops map to "".
func changeKind(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "modify"
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		return "delete"
	default:
		return ""
	}
}

// addPending records a change and resets the debounce timer.
func (t *Tracker) addPending(path, kind string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return
	}

	t.pending[path] = kind

	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(t.debounce, t.firePending)
}

// firePending invalidates caches for all coalesced changes.
func (t *Tracker) firePending() {
	t.mu.Lock()
	changes := t.pending
	t.pending = make(map[string]string)
	t.mu.Unlock()

	if len(changes) == 0 {
		return
	}

	index := t.reg.SourceIndex()
	roots := make(map[string]struct{})

	for path, kind := range changes {
		if hash, ok := index[path]; ok {
			if t.cache.Invalidate(promptcache.PromptKey(hash)) {
				t.emitter.Emit(agent.NewRecord(agent.EventInvalidation).
					WithPath(path).
					WithDetail("content_hash", hash))
			}
		}
		for _, root := range t.reg.RootsForDir(filepath.Dir(path)) {
			roots[root] = struct{}{}
		}
		t.emitter.Emit(agent.NewRecord(agent.EventModification).
			WithPath(path).
			WithDetail("change", kind))
	}

	for root := range roots {
		t.reg.Forget(root)
		t.emitter.Emit(agent.NewRecord(agent.EventInvalidation).
			WithPath(root).
			WithDetail("scope", "view"))
	}

	t.log.Debug().
		Int("changes", len(changes)).
		Int("roots", len(roots)).
		Msg("invalidated on modification")
}

// primeStatIndex seeds mod times so the first poll only reports real change.
func (t *Tracker) primeStatIndex() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for path := range t.reg.SourceIndex() {
		if info, err := os.Stat(path); err == nil {
			t.lastStat[path] = info.ModTime().UnixNano()
		}
	}
}

// pollOnce re-stats every known source and files changes into the same
// debounce path the notifier uses.
func (t *Tracker) pollOnce() {
	index := t.reg.SourceIndex()

	t.mu.Lock()
	last := make(map[string]int64, len(t.lastStat))
	for k, v := range t.lastStat {
		last[k] = v
	}
	t.mu.Unlock()

	current := make(map[string]int64, len(index))
	for path := range index {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				if _, existed := last[path]; existed {
					t.addPending(path, "delete")
				}
			}
			continue
		}
		mod := info.ModTime().UnixNano()
		current[path] = mod
		if prev, ok := last[path]; !ok || prev != mod {
			kind := "modify"
			if !ok {
				kind = "create"
			}
			t.addPending(path, kind)
		}
	}

	t.mu.Lock()
	t.lastStat = current
	t.mu.Unlock()
}

// Close stops observation. Idempotent.
func (t *Tracker) Close() error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	if t.timer != nil {
		t.timer.Stop()
	}
	t.mu.Unlock()

	close(t.stopCh)
	if t.fallback != nil {
		t.fallback.Stop()
	}
	if t.watcher != nil {
		return t.watcher.Close()
	}
	return nil
}
