// Package registry composes the walker, scanner, and prompt cache into the
// canonical agent discovery surface: tier-resolved views and cached prompt
// loads.
package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"agentdir/internal/agent"
	"agentdir/internal/promptcache"
	"agentdir/internal/scanner"
	"agentdir/internal/walker"
)

// Registry resolves agents across tiers for any number of roots. One build
// runs per root at a time; concurrent callers share its outcome.
type Registry struct {
	walker  *walker.Walker
	scanner *scanner.Scanner
	cache   *promptcache.Cache
	emitter agent.Emitter
	log     zerolog.Logger

	generation atomic.Int64

	mu     sync.Mutex
	builds map[string]*buildState
	roots  map[string]*rootState
}

// buildState is one in-flight view build; waiters block on done.
type buildState struct {
	done chan struct{}
	view *agent.RegistryView
	err  error
}

// rootState holds per-root diagnostics that live outside the immutable view.
type rootState struct {
	// failed maps agent ids (filename stems) whose definitions could not
	// be parsed to the offending path.
	failed map[agent.ID]string
	// dirs are the directories the last walk consulted.
	dirs []string
}

// New creates a registry.
func New(w *walker.Walker, s *scanner.Scanner, cache *promptcache.Cache, emitter agent.Emitter, log zerolog.Logger) *Registry {
	if emitter == nil {
		emitter = agent.NopEmitter{}
	}
	return &Registry{
		walker:  w,
		scanner: s,
		cache:   cache,
		emitter: emitter,
		log:     log,
		builds:  make(map[string]*buildState),
		roots:   make(map[string]*rootState),
	}
}

// ListAgents returns the registry view for root, building it if no cached
// view exists. Concurrent callers for the same root share a single build;
// a caller whose context ends observes cancellation while the build runs to
// completion for the others.
func (r *Registry) ListAgents(ctx context.Context, root string) (*agent.RegistryView, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}

	if cached, ok := r.cache.Get(promptcache.ViewKey(abs)); ok {
		return cached.(*agent.RegistryView), nil
	}

	if ctx.Err() != nil {
		return nil, r.ctxError(ctx, "list_agents", abs)
	}

	r.mu.Lock()
	bs, inflight := r.builds[abs]
	if !inflight {
		bs = &buildState{done: make(chan struct{})}
		r.builds[abs] = bs
		go r.runBuild(abs, bs)
	}
	r.mu.Unlock()

	select {
	case <-bs.done:
		return bs.view, bs.err
	case <-ctx.Done():
		return nil, r.ctxError(ctx, "list_agents", abs)
	}
}

// runBuild executes one view build and wakes all waiters.
func (r *Registry) runBuild(root string, bs *buildState) {
	bs.view, bs.err = r.build(root)

	r.mu.Lock()
	delete(r.builds, root)
	r.mu.Unlock()

	close(bs.done)
}

// build walks, scans, resolves precedence, and caches a fresh view.
func (r *Registry) build(root string) (*agent.RegistryView, error) {
	started := time.Now()

	dirs, err := r.walker.Walk(root)
	if err != nil {
		return nil, err
	}

	state := &rootState{failed: make(map[agent.ID]string)}
	sources := make(map[agent.ID][]agent.Source)
	metadata := make(map[string]*agent.Metadata) // keyed by source path

	for _, dir := range dirs {
		state.dirs = append(state.dirs, dir.Path)

		entries, failures, err := r.scanner.Scan(dir.Path, dir.Tier)
		if err != nil {
			r.log.Warn().Str("dir", dir.Path).Err(err).Msg("scan directory failed, skipping")
			r.emitter.Emit(agent.NewRecord(agent.EventError).
				WithPath(dir.Path).
				WithDetail("kind", "directory_unreadable").
				WithDetail("message", err.Error()))
			continue
		}
		for _, f := range failures {
			state.failed[scanner.Stem(f.Path)] = f.Path
			r.emitter.Emit(agent.NewRecord(agent.EventError).
				WithPath(f.Path).
				WithDetail("kind", "parse_failed").
				WithDetail("message", f.Err.Error()))
		}
		for _, e := range entries {
			sources[e.Metadata.ID] = append(sources[e.Metadata.ID], e.Source)
			metadata[e.Source.Path] = e.Metadata
		}
	}

	view := r.resolve(root, sources, metadata)

	r.mu.Lock()
	r.roots[root] = state
	r.mu.Unlock()

	r.cache.Put(promptcache.ViewKey(root), view, viewSize(view))

	r.emitter.Emit(agent.NewRecord(agent.EventDiscovery).
		WithGeneration(view.Generation).
		WithDetail("root", root).
		WithDetail("agents", strconv.Itoa(len(view.Winners))).
		WithDetail("sources", strconv.Itoa(len(metadata))).
		WithDetail("directories", strconv.Itoa(len(dirs))).
		WithDetail("elapsed", time.Since(started).String()))

	r.log.Info().
		Str("root", root).
		Int64("generation", view.Generation).
		Int("agents", len(view.Winners)).
		Dur("elapsed", time.Since(started)).
		Msg("registry view built")

	return view, nil
}

// resolve picks one winner per id by tier order and assembles the immutable
// view. Within a tier the lexicographically smaller path wins.
func (r *Registry) resolve(root string, sources map[agent.ID][]agent.Source, metadata map[string]*agent.Metadata) *agent.RegistryView {
	view := &agent.RegistryView{
		Generation: r.generation.Add(1),
		Root:       root,
		Winners:    make(map[agent.ID]*agent.Metadata, len(sources)),
		Sources:    make(map[agent.ID][]agent.Source, len(sources)),
		Shadowed:   make(map[agent.ID][]agent.Source),
		BuiltAt:    time.Now(),
	}

	for id, srcs := range sources {
		sort.Slice(srcs, func(i, j int) bool {
			if srcs[i].Tier != srcs[j].Tier {
				return srcs[i].Tier.Less(srcs[j].Tier)
			}
			return srcs[i].Path < srcs[j].Path
		})
		view.Sources[id] = srcs
		view.Winners[id] = metadata[srcs[0].Path]
		if len(srcs) > 1 {
			view.Shadowed[id] = srcs[1:]
		}
	}

	return view
}

// LoadAgent resolves id through the view for root and returns its prompt,
// from cache when the content hash matches. On a vanished or changed source
// it rebuilds the view once and retries.
func (r *Registry) LoadAgent(ctx context.Context, id agent.ID, root string) (*agent.Prompt, error) {
	for attempt := 0; ; attempt++ {
		view, err := r.ListAgents(ctx, root)
		if err != nil {
			return nil, err
		}

		meta := view.Winner(id)
		if meta == nil {
			if path := r.failedPath(view.Root, id); path != "" {
				return nil, fmt.Errorf("%w: %s (%s)", agent.ErrParseFailed, id, path)
			}
			return nil, fmt.Errorf("%w: %s", agent.ErrAgentNotFound, id)
		}

		key := promptcache.PromptKey(meta.ContentHash)
		if cached, ok := r.cache.Get(key); ok {
			// Serve the cached prompt only while the file still carries the
			// view's hash; otherwise fall through to the reload path below.
			if raw, rerr := os.ReadFile(meta.SourcePath); rerr == nil && scanner.HashContent(raw) == meta.ContentHash {
				prompt := cached.(*agent.Prompt)
				r.emitter.Emit(agent.NewRecord(agent.EventCacheHit).
					WithAgent(id).
					WithPath(meta.SourcePath).
					WithGeneration(view.Generation))
				return prompt, nil
			}
		}

		prompt, hash, err := scanner.LoadPrompt(meta.SourcePath, meta)
		switch {
		case err == nil && hash == meta.ContentHash:
			prompt.LoadedAt = time.Now()
			r.cache.Put(promptcache.PromptKey(hash), prompt, int64(prompt.SizeBytes()))
			r.emitter.Emit(agent.NewRecord(agent.EventCacheMiss).
				WithAgent(id).
				WithPath(meta.SourcePath).
				WithGeneration(view.Generation))
			r.emitter.Emit(agent.NewRecord(agent.EventLoad).
				WithAgent(id).
				WithPath(meta.SourcePath).
				WithGeneration(view.Generation).
				WithDetail("content_hash", hash))
			return prompt, nil

		case err != nil && errors.Is(err, agent.ErrParseFailed):
			r.emitter.Emit(agent.NewRecord(agent.EventError).
				WithAgent(id).
				WithPath(meta.SourcePath).
				WithDetail("kind", "parse_failed").
				WithDetail("message", err.Error()))
			return nil, err

		case attempt == 0:
			// Vanished or rewritten between resolve and read: rebuild
			// the view once and retry.
			r.log.Warn().
				Str("agent_id", id).
				Str("path", meta.SourcePath).
				Err(err).
				Msg("source changed under load, rebuilding view")
			r.Forget(view.Root)

		case err != nil:
			r.emitter.Emit(agent.NewRecord(agent.EventError).
				WithAgent(id).
				WithPath(meta.SourcePath).
				WithDetail("kind", "source_vanished").
				WithDetail("message", err.Error()))
			return nil, err

		default:
			// Hash still disagrees after one rebuild; give up rather
			// than loop on a file being rewritten continuously.
			return nil, fmt.Errorf("%w: %s keeps changing during load", agent.ErrSourceVanished, meta.SourcePath)
		}
	}
}

// Forget drops the cached view for root so the next ListAgents rebuilds.
func (r *Registry) Forget(root string) {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	r.cache.Invalidate(promptcache.ViewKey(abs))
}

// Generation returns the latest view generation issued.
func (r *Registry) Generation() int64 {
	return r.generation.Load()
}

// SourceIndex returns the path -> content hash mapping across all roots'
// last builds. The tracker uses it to invalidate prompts by prior hash.
func (r *Registry) SourceIndex() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	index := make(map[string]string)
	for root := range r.roots {
		if cached, ok := r.cache.Get(promptcache.ViewKey(root)); ok {
			view := cached.(*agent.RegistryView)
			for _, srcs := range view.Sources {
				for _, s := range srcs {
					index[s.Path] = s.ContentHash
				}
			}
		}
	}
	return index
}

// RootsForDir returns every known root whose last walk consulted dir.
func (r *Registry) RootsForDir(dir string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var roots []string
	for root, state := range r.roots {
		for _, d := range state.dirs {
			if d == dir {
				roots = append(roots, root)
				break
			}
		}
	}
	return roots
}

// WatchedDirs returns the union of directories consulted by all known roots.
func (r *Registry) WatchedDirs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[string]struct{})
	var dirs []string
	for _, state := range r.roots {
		for _, d := range state.dirs {
			if _, ok := seen[d]; ok {
				continue
			}
			seen[d] = struct{}{}
			dirs = append(dirs, d)
		}
	}
	sort.Strings(dirs)
	return dirs
}

// failedPath returns the offending path if id failed to parse in the last
// build for root.
func (r *Registry) failedPath(root string, id agent.ID) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if state, ok := r.roots[root]; ok {
		return state.failed[id]
	}
	return ""
}

// ctxError maps a context end to the error taxonomy and records it.
func (r *Registry) ctxError(ctx context.Context, op, root string) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		r.emitter.Emit(agent.NewRecord(agent.EventError).
			WithDetail("kind", "timeout").
			WithDetail("operation", op).
			WithDetail("root", root))
		return fmt.Errorf("%w: %s", agent.ErrTimeout, op)
	}
	return err
}

// viewSize approximates a view's memory footprint for cache accounting.
func viewSize(v *agent.RegistryView) int64 {
	size := int64(len(v.Root))
	for id, srcs := range v.Sources {
		size += int64(len(id))
		for _, s := range srcs {
			size += int64(len(s.Path) + len(s.ContentHash) + 16)
		}
	}
	for _, m := range v.Winners {
		size += int64(len(m.RoleSummary))
		for _, s := range m.Keywords {
			size += int64(len(s))
		}
		for _, s := range m.Capabilities {
			size += int64(len(s))
		}
	}
	return size
}
