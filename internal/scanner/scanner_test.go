package scanner

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"agentdir/internal/agent"
	"agentdir/internal/config"
)

func newTestScanner(t *testing.T) *Scanner {
	t.Helper()
	return New(config.DefaultOptions(), zerolog.Nop())
}

func writeAgentFile(t *testing.T, dir, name, header, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := "---\n" + header + "\n---\n" + body + "\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write agent file: %v", err)
	}
	return path
}

func TestScan_RecognizesAgents(t *testing.T) {
	dir := t.TempDir()
	writeAgentFile(t, dir, "qa.md", "id: qa\nkeywords: [test]", "QA prompt")
	writeAgentFile(t, dir, "engineer.agent", "id: engineer", "Engineer prompt")

	entries, failures, err := newTestScanner(t).Scan(dir, agent.TierProjectCurrent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.Source.ContentHash == "" || e.Metadata.ContentHash != e.Source.ContentHash {
			t.Errorf("content hash not propagated for %s", e.Metadata.ID)
		}
		if e.Metadata.Tier != agent.TierProjectCurrent {
			t.Errorf("unexpected tier for %s: %v", e.Metadata.ID, e.Metadata.Tier)
		}
	}
}

func TestScan_IDDefaultsToStem(t *testing.T) {
	dir := t.TempDir()
	writeAgentFile(t, dir, "documentation.md", "keywords: [docs]", "Docs prompt")

	entries, _, err := newTestScanner(t).Scan(dir, agent.TierUser)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Metadata.ID != "documentation" {
		t.Fatalf("expected id from filename stem, got %+v", entries)
	}
}

func TestScan_SkipsUnderscoreAndUnknownExtensions(t *testing.T) {
	dir := t.TempDir()
	writeAgentFile(t, dir, "_draft.md", "id: draft", "ignored")
	writeAgentFile(t, dir, "notes.txt", "id: notes", "ignored")
	writeAgentFile(t, dir, "qa.md", "id: qa", "QA prompt")

	entries, _, err := newTestScanner(t).Scan(dir, agent.TierProjectCurrent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 || entries[0].Metadata.ID != "qa" {
		t.Fatalf("expected only qa, got %+v", entries)
	}
}

func TestScan_MalformedFileIsIsolated(t *testing.T) {
	dir := t.TempDir()
	writeAgentFile(t, dir, "qa.md", "id: qa", "QA prompt")
	if err := os.WriteFile(filepath.Join(dir, "broken.md"), []byte("no header here"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	entries, failures, err := newTestScanner(t).Scan(dir, agent.TierProjectCurrent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected surviving entry, got %d", len(entries))
	}
	if len(failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(failures))
	}
	if !errors.Is(failures[0].Err, agent.ErrParseFailed) {
		t.Errorf("expected ErrParseFailed, got %v", failures[0].Err)
	}
}

func TestScan_MissingDirIsEmpty(t *testing.T) {
	entries, failures, err := newTestScanner(t).Scan(filepath.Join(t.TempDir(), "nope"), agent.TierUser)
	if err != nil || entries != nil || failures != nil {
		t.Fatalf("expected empty result for missing dir, got %v %v %v", entries, failures, err)
	}
}

func TestScan_EntryBound(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 10; i++ {
		writeAgentFile(t, dir, fmt.Sprintf("agent%02d.md", i), fmt.Sprintf("id: agent%02d", i), "prompt")
	}

	opts := config.DefaultOptions()
	opts.ScannerMaxEntries = 3
	entries, _, err := New(opts, zerolog.Nop()).Scan(dir, agent.TierProjectCurrent)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected scan truncated at 3 entries, got %d", len(entries))
	}
}

func TestLoadPrompt_HashMatchesScan(t *testing.T) {
	dir := t.TempDir()
	writeAgentFile(t, dir, "qa.md", "id: qa", "QA body text")

	entries, _, err := newTestScanner(t).Scan(dir, agent.TierProjectCurrent)
	if err != nil || len(entries) != 1 {
		t.Fatalf("scan failed: %v %d", err, len(entries))
	}

	prompt, hash, err := LoadPrompt(entries[0].Source.Path, entries[0].Metadata)
	if err != nil {
		t.Fatalf("LoadPrompt failed: %v", err)
	}
	if hash != entries[0].Source.ContentHash {
		t.Errorf("hash mismatch: %s vs %s", hash, entries[0].Source.ContentHash)
	}
	if prompt.Body != "QA body text" {
		t.Errorf("unexpected body: %q", prompt.Body)
	}
}

func TestLoadPrompt_Vanished(t *testing.T) {
	meta := &agent.Metadata{ID: "ghost"}
	_, _, err := LoadPrompt(filepath.Join(t.TempDir(), "ghost.md"), meta)
	if !errors.Is(err, agent.ErrSourceVanished) {
		t.Fatalf("expected ErrSourceVanished, got %v", err)
	}
}
