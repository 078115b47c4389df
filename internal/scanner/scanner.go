// Package scanner enumerates agent definition files in a single directory
// and extracts their metadata. Scanning is pure given the directory contents
// and the candidate predicate; per-file failures never abort a scan.
package scanner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"agentdir/internal/agent"
	"agentdir/internal/config"
)

// Entry is one successfully scanned agent definition.
type Entry struct {
	Source   agent.Source
	Metadata *agent.Metadata
}

// Failure is one file that could not be scanned.
type Failure struct {
	Path string
	Err  error
}

// Predicate decides whether a directory entry is an agent definition
// candidate.
type Predicate func(name string) bool

// Scanner scans directories for agent definitions.
type Scanner struct {
	maxEntries int
	predicate  Predicate
	log        zerolog.Logger
}

// New creates a scanner with the default predicate: recognized extension,
// name not beginning with underscore.
func New(opts *config.Options, log zerolog.Logger) *Scanner {
	exts := make(map[string]struct{}, len(opts.AgentFileExtensions))
	for _, e := range opts.AgentFileExtensions {
		exts[strings.ToLower(e)] = struct{}{}
	}
	return &Scanner{
		maxEntries: opts.ScannerMaxEntries,
		predicate: func(name string) bool {
			if strings.HasPrefix(name, "_") {
				return false
			}
			_, ok := exts[strings.ToLower(filepath.Ext(name))]
			return ok
		},
		log: log,
	}
}

// SetPredicate replaces the candidate predicate.
func (s *Scanner) SetPredicate(p Predicate) {
	if p != nil {
		s.predicate = p
	}
}

// Scan enumerates the immediate children of dir and parses every candidate
// agent file. A missing directory yields empty results; an unreadable one
// returns ErrDirectoryUnreadable. Per-file parse failures are collected and
// do not stop the scan.
func (s *Scanner) Scan(dir string, tier agent.Tier) ([]Entry, []Failure, error) {
	children, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("%w: %s: %v", agent.ErrDirectoryUnreadable, dir, err)
	}

	var (
		entries  []Entry
		failures []Failure
		examined int
	)
	for _, child := range children {
		if child.IsDir() || !s.predicate(child.Name()) {
			continue
		}
		if examined >= s.maxEntries {
			s.log.Warn().
				Str("dir", dir).
				Int("max_entries", s.maxEntries).
				Msg("scan truncated at entry bound")
			break
		}
		examined++

		path := filepath.Join(dir, child.Name())
		entry, err := s.scanFile(path, tier)
		if err != nil {
			failures = append(failures, Failure{Path: path, Err: err})
			s.log.Warn().Str("path", path).Err(err).Msg("failed to scan agent file, skipping")
			continue
		}
		entries = append(entries, *entry)

		s.log.Debug().
			Str("agent_id", entry.Metadata.ID).
			Str("path", path).
			Str("tier", tier.String()).
			Msg("scanned agent")
	}

	return entries, failures, nil
}

// scanFile reads one agent file, hashes it, and extracts metadata.
func (s *Scanner) scanFile(path string, tier agent.Tier) (*Entry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", agent.ErrSourceVanished, path)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	def, err := ParseDefinition(raw)
	if err != nil {
		return nil, err
	}

	id := def.ID
	if id == "" {
		id = Stem(path)
	}

	hash := HashContent(raw)
	return &Entry{
		Source: agent.Source{
			Tier:        tier,
			Path:        path,
			ContentHash: hash,
			ModTimeNS:   info.ModTime().UnixNano(),
		},
		Metadata: &agent.Metadata{
			ID:              id,
			Tier:            tier,
			SourcePath:      path,
			Capabilities:    def.Capabilities,
			Keywords:        def.Keywords,
			RoleSummary:     def.RoleSummary,
			Specializations: def.Specializations,
			Version:         def.Version,
			Extra:           def.Extra,
			ContentHash:     hash,
		},
	}, nil
}

// LoadPrompt reads and parses one agent file into a dispatchable prompt.
// Used by the registry on cache miss.
func LoadPrompt(path string, meta *agent.Metadata) (*agent.Prompt, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", fmt.Errorf("%w: %s", agent.ErrSourceVanished, path)
		}
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}

	def, err := ParseDefinition(raw)
	if err != nil {
		return nil, "", err
	}

	hash := HashContent(raw)
	return &agent.Prompt{
		ID:          meta.ID,
		Body:        def.Body,
		Metadata:    meta,
		ContentHash: hash,
	}, hash, nil
}

// HashContent returns the hex sha256 of raw file bytes.
func HashContent(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// Stem returns the file name without its extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
