// Package walker produces the ordered list of directories to consult for
// agent definitions: project-current, project ancestors by ascending depth,
// user, then system. Emission order defines precedence.
package walker

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"agentdir/internal/agent"
	"agentdir/internal/config"
)

// agentsSubdir is the directory under a framework dir that holds agent files.
const agentsSubdir = "agents"

// Dir is one directory to scan, with the tier its agents belong to.
type Dir struct {
	Path string
	Tier agent.Tier
}

// Walker computes scan directories for a starting location.
type Walker struct {
	frameworkDirName string
	ancestorCap      int
	systemDir        string
	emitter          agent.Emitter
	log              zerolog.Logger
}

// New creates a walker. systemDir may be empty when no system tier is bundled.
func New(opts *config.Options, emitter agent.Emitter, log zerolog.Logger) *Walker {
	if emitter == nil {
		emitter = agent.NopEmitter{}
	}
	return &Walker{
		frameworkDirName: opts.FrameworkDirName,
		ancestorCap:      opts.AncestorWalkCap,
		systemDir:        opts.SystemAgentsDir,
		emitter:          emitter,
		log:              log,
	}
}

// Walk returns the ordered directories to consult for the given starting
// path. Directories that do not exist are skipped silently. Symlink cycles
// terminate the affected branch with an error activity record.
func (w *Walker) Walk(root string) ([]Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}

	var dirs []Dir
	seen := make(map[string]struct{})

	// Project-current tier.
	if d, ok := w.visit(filepath.Join(abs, w.frameworkDirName, agentsSubdir), seen); ok {
		dirs = append(dirs, Dir{Path: d, Tier: agent.TierProjectCurrent})
	}

	// Ancestors, closest first, up to the configured cap.
	cur := abs
	for depth := 1; depth <= w.ancestorCap; depth++ {
		parent := filepath.Dir(cur)
		if parent == cur {
			break
		}
		cur = parent

		resolved, ok := w.resolve(parent)
		if !ok {
			break
		}
		if _, dup := seen[resolved]; dup {
			w.cycleError(parent)
			break
		}
		seen[resolved] = struct{}{}

		if d, ok := w.visit(filepath.Join(parent, w.frameworkDirName, agentsSubdir), seen); ok {
			dirs = append(dirs, Dir{Path: d, Tier: agent.TierProjectAncestor(depth)})
		}
	}

	// User tier.
	if userDir, err := config.UserAgentsDir(w.frameworkDirName); err == nil {
		if d, ok := w.visit(userDir, seen); ok {
			dirs = append(dirs, Dir{Path: d, Tier: agent.TierUser})
		}
	}

	// System tier.
	if w.systemDir != "" {
		if d, ok := w.visit(w.systemDir, seen); ok {
			dirs = append(dirs, Dir{Path: d, Tier: agent.TierSystem})
		}
	}

	w.log.Debug().
		Str("root", abs).
		Int("dirs", len(dirs)).
		Msg("walk complete")

	return dirs, nil
}

// visit checks that path is an existing directory not already seen through a
// symlink, records it in the seen set, and returns the path to scan.
func (w *Walker) visit(path string, seen map[string]struct{}) (string, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return "", false
	}

	resolved, ok := w.resolve(path)
	if !ok {
		return "", false
	}
	if _, dup := seen[resolved]; dup {
		w.cycleError(path)
		return "", false
	}
	seen[resolved] = struct{}{}
	return path, true
}

// resolve follows symlinks to a canonical path. A resolution failure on an
// existing path indicates a broken or cyclic link chain.
func (w *Walker) resolve(path string) (string, bool) {
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		w.cycleError(path)
		return "", false
	}
	return resolved, true
}

// cycleError reports a symlink cycle or unresolvable link in the walk.
func (w *Walker) cycleError(path string) {
	w.log.Warn().Str("path", path).Msg("symlink cycle detected in walk")
	w.emitter.Emit(agent.NewRecord(agent.EventError).
		WithPath(path).
		WithDetail("kind", "symlink_cycle").
		WithDetail("message", "directory already visited through another link"))
}
