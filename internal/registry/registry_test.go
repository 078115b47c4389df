package registry

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentdir/internal/agent"
	"agentdir/internal/config"
	"agentdir/internal/promptcache"
	"agentdir/internal/scanner"
	"agentdir/internal/walker"
)

type captureEmitter struct {
	mu      sync.Mutex
	records []*agent.ActivityRecord
}

func (c *captureEmitter) Emit(rec *agent.ActivityRecord) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
}

func (c *captureEmitter) byKind(kind agent.EventKind) []*agent.ActivityRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*agent.ActivityRecord
	for _, r := range c.records {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

type fixture struct {
	reg     *Registry
	emitter *captureEmitter
	opts    *config.Options
}

func newFixture(t *testing.T, systemDir string) *fixture {
	t.Helper()
	opts := config.DefaultOptions()
	opts.SystemAgentsDir = systemDir

	emitter := &captureEmitter{}
	w := walker.New(opts, emitter, zerolog.Nop())
	s := scanner.New(opts, zerolog.Nop())
	cache := promptcache.New(opts.CacheByteCap, 0, zerolog.Nop())
	return &fixture{
		reg:     New(w, s, cache, emitter, zerolog.Nop()),
		emitter: emitter,
		opts:    opts,
	}
}

func writeAgent(t *testing.T, base, name, header, body string) string {
	t.Helper()
	dir := filepath.Join(base, ".claude-pm", "agents")
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("---\n"+header+"\n---\n"+body+"\n"), 0644))
	return path
}

func writeSystemAgent(t *testing.T, dir, name, header, body string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0755))
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("---\n"+header+"\n---\n"+body+"\n"), 0644))
	return path
}

func TestListAgents_UserOverridesSystem(t *testing.T) {
	home := t.TempDir()
	system := t.TempDir()
	t.Setenv("HOME", home)
	root := t.TempDir()

	writeSystemAgent(t, system, "qa.md", "id: qa\nkeywords: [test, coverage]", "System QA")
	userPath := writeAgent(t, home, "qa.md", "id: qa\nkeywords: [regression]", "User QA")

	f := newFixture(t, system)
	view, err := f.reg.ListAgents(context.Background(), root)
	require.NoError(t, err)

	winner := view.Winner("qa")
	require.NotNil(t, winner)
	assert.Equal(t, agent.TierUser, winner.Tier)
	assert.Equal(t, userPath, winner.SourcePath)
	assert.Equal(t, []string{"regression"}, winner.Keywords)

	require.Len(t, view.Shadowed["qa"], 1)
	assert.Equal(t, agent.TierSystem, view.Shadowed["qa"][0].Tier)
}

func TestListAgents_CurrentBeatsAncestor(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	base := t.TempDir()
	root := filepath.Join(base, "nested", "project")
	require.NoError(t, os.MkdirAll(root, 0755))

	ancestorPath := writeAgent(t, base, "engineer.md", "id: engineer", "Ancestor engineer")
	currentPath := writeAgent(t, root, "engineer.md", "id: engineer", "Current engineer")

	f := newFixture(t, "")
	view, err := f.reg.ListAgents(context.Background(), root)
	require.NoError(t, err)

	winner := view.Winner("engineer")
	require.NotNil(t, winner)
	assert.Equal(t, agent.TierProjectCurrent, winner.Tier)
	assert.Equal(t, currentPath, winner.SourcePath)

	require.Len(t, view.Shadowed["engineer"], 1)
	shadowed := view.Shadowed["engineer"][0]
	assert.Equal(t, ancestorPath, shadowed.Path)
	assert.True(t, shadowed.Tier.IsAncestor())
	assert.Equal(t, 2, shadowed.Tier.AncestorDepth())

	prompt, err := f.reg.LoadAgent(context.Background(), "engineer", root)
	require.NoError(t, err)
	assert.Equal(t, "Current engineer", prompt.Body)
}

func TestListAgents_SameTierDuplicateDeterministic(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	root := t.TempDir()

	first := writeAgent(t, root, "aa.md", "id: qa", "First QA")
	writeAgent(t, root, "zz.md", "id: qa", "Second QA")

	f := newFixture(t, "")
	view, err := f.reg.ListAgents(context.Background(), root)
	require.NoError(t, err)

	winner := view.Winner("qa")
	require.NotNil(t, winner)
	assert.Equal(t, first, winner.SourcePath, "lexicographically smaller path must win")
	require.Len(t, view.Shadowed["qa"], 1)
}

func TestListAgents_CachedViewKeepsGeneration(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	root := t.TempDir()
	writeAgent(t, root, "qa.md", "id: qa", "QA")

	f := newFixture(t, "")
	v1, err := f.reg.ListAgents(context.Background(), root)
	require.NoError(t, err)
	v2, err := f.reg.ListAgents(context.Background(), root)
	require.NoError(t, err)

	assert.Equal(t, v1.Generation, v2.Generation)
	assert.Equal(t, v1.Winners, v2.Winners)
	require.Len(t, f.emitter.byKind(agent.EventDiscovery), 1, "cached view must not rebuild")
}

func TestListAgents_ForgetBumpsGeneration(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	root := t.TempDir()
	writeAgent(t, root, "qa.md", "id: qa", "QA")

	f := newFixture(t, "")
	v1, err := f.reg.ListAgents(context.Background(), root)
	require.NoError(t, err)

	f.reg.Forget(root)
	v2, err := f.reg.ListAgents(context.Background(), root)
	require.NoError(t, err)
	assert.Greater(t, v2.Generation, v1.Generation)
}

func TestLoadAgent_CacheMissThenHit(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	root := t.TempDir()
	writeAgent(t, root, "documentation.md", "id: documentation\nkeywords: [docs]", "Write the docs")

	f := newFixture(t, "")

	p1, err := f.reg.LoadAgent(context.Background(), "documentation", root)
	require.NoError(t, err)
	assert.Equal(t, "Write the docs", p1.Body)

	p2, err := f.reg.LoadAgent(context.Background(), "documentation", root)
	require.NoError(t, err)
	assert.Equal(t, p1.ContentHash, p2.ContentHash, "repeated loads must be idempotent")

	require.Len(t, f.emitter.byKind(agent.EventCacheMiss), 1)
	require.Len(t, f.emitter.byKind(agent.EventLoad), 1)
	require.Len(t, f.emitter.byKind(agent.EventCacheHit), 1)
}

func TestLoadAgent_NotFound(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	root := t.TempDir()
	writeAgent(t, root, "qa.md", "id: qa", "QA")

	f := newFixture(t, "")
	_, err := f.reg.LoadAgent(context.Background(), "nonexistent", root)
	assert.ErrorIs(t, err, agent.ErrAgentNotFound)
}

func TestLoadAgent_ParseFailedIsolation(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	root := t.TempDir()

	writeAgent(t, root, "qa.md", "id: qa", "QA")
	agentsDir := filepath.Join(root, ".claude-pm", "agents")
	badPath := filepath.Join(agentsDir, "broken.md")
	require.NoError(t, os.WriteFile(badPath, []byte("no front matter"), 0644))

	f := newFixture(t, "")
	view, err := f.reg.ListAgents(context.Background(), root)
	require.NoError(t, err)

	assert.NotNil(t, view.Winner("qa"), "healthy agents must survive a bad file")
	assert.Nil(t, view.Winner("broken"))

	errs := f.emitter.byKind(agent.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, badPath, errs[0].SourcePath)
	assert.Equal(t, "parse_failed", errs[0].Details["kind"])

	_, err = f.reg.LoadAgent(context.Background(), "broken", root)
	assert.ErrorIs(t, err, agent.ErrParseFailed)
}

func TestLoadAgent_VanishedSourceRebuilds(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	root := t.TempDir()
	path := writeAgent(t, root, "qa.md", "id: qa", "QA")

	f := newFixture(t, "")
	_, err := f.reg.ListAgents(context.Background(), root)
	require.NoError(t, err)

	require.NoError(t, os.Remove(path))

	_, err = f.reg.LoadAgent(context.Background(), "qa", root)
	assert.ErrorIs(t, err, agent.ErrAgentNotFound, "rebuild must drop the vanished agent")
}

func TestLoadAgent_ChangedContentReloads(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	root := t.TempDir()
	path := writeAgent(t, root, "qa.md", "id: qa", "Original body")

	f := newFixture(t, "")
	p1, err := f.reg.LoadAgent(context.Background(), "qa", root)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("---\nid: qa\n---\nUpdated body\n"), 0644))
	// The tracker would normally invalidate; simulate its effect.
	f.reg.Forget(root)

	p2, err := f.reg.LoadAgent(context.Background(), "qa", root)
	require.NoError(t, err)
	assert.NotEqual(t, p1.ContentHash, p2.ContentHash)
	assert.Equal(t, "Updated body", p2.Body)
}

func TestListAgents_ConcurrentCallersShareBuild(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	root := t.TempDir()
	writeAgent(t, root, "qa.md", "id: qa", "QA")

	f := newFixture(t, "")

	const callers = 16
	views := make([]*agent.RegistryView, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := f.reg.ListAgents(context.Background(), root)
			assert.NoError(t, err)
			views[i] = v
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Equal(t, views[0].Generation, views[i].Generation, "all callers must observe one build")
	}
	require.Len(t, f.emitter.byKind(agent.EventDiscovery), 1)
}

func TestSourceIndexAndRoots(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	root := t.TempDir()
	path := writeAgent(t, root, "qa.md", "id: qa", "QA")

	f := newFixture(t, "")
	view, err := f.reg.ListAgents(context.Background(), root)
	require.NoError(t, err)

	index := f.reg.SourceIndex()
	require.Contains(t, index, path)
	assert.Equal(t, view.Winner("qa").ContentHash, index[path])

	roots := f.reg.RootsForDir(filepath.Dir(path))
	require.Len(t, roots, 1)
	assert.Equal(t, view.Root, roots[0])

	assert.Contains(t, f.reg.WatchedDirs(), filepath.Dir(path))
}
