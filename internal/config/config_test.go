package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()
	if err := opts.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if opts.FrameworkDirName != ".claude-pm" {
		t.Errorf("unexpected framework dir: %q", opts.FrameworkDirName)
	}
	if opts.AncestorWalkCap != 8 {
		t.Errorf("unexpected ancestor cap: %d", opts.AncestorWalkCap)
	}
	if opts.CacheByteCap != 16<<20 {
		t.Errorf("unexpected cache cap: %d", opts.CacheByteCap)
	}
	if opts.CacheTTL() != 10*time.Minute {
		t.Errorf("unexpected ttl: %v", opts.CacheTTL())
	}
	if opts.TrackerDebounce() != 200*time.Millisecond {
		t.Errorf("unexpected debounce: %v", opts.TrackerDebounce())
	}
	if opts.SelectorWeights.Specialization != 4 {
		t.Errorf("unexpected specialization weight: %v", opts.SelectorWeights.Specialization)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	opts, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("missing config file must not fail: %v", err)
	}
	if opts.FrameworkDirName != DefaultFrameworkDirName {
		t.Errorf("expected defaults, got %q", opts.FrameworkDirName)
	}
}

func TestLoad_FileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `framework_dir_name: .pm
ancestor_walk_cap: 3
cache_ttl_seconds: 60
selector_weights:
  keyword: 7
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	opts, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if opts.FrameworkDirName != ".pm" {
		t.Errorf("file override ignored: %q", opts.FrameworkDirName)
	}
	if opts.AncestorWalkCap != 3 {
		t.Errorf("ancestor cap override ignored: %d", opts.AncestorWalkCap)
	}
	if opts.SelectorWeights.Keyword != 7 {
		t.Errorf("weight override ignored: %v", opts.SelectorWeights.Keyword)
	}
	if opts.ScannerMaxEntries != DefaultScannerMaxEntries {
		t.Errorf("unset keys must keep defaults: %d", opts.ScannerMaxEntries)
	}
}

func TestValidate_Rejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Options)
	}{
		{"empty framework dir", func(o *Options) { o.FrameworkDirName = "" }},
		{"framework dir with separator", func(o *Options) { o.FrameworkDirName = "a/b" }},
		{"negative ancestor cap", func(o *Options) { o.AncestorWalkCap = -1 }},
		{"zero scanner bound", func(o *Options) { o.ScannerMaxEntries = 0 }},
		{"zero cache cap", func(o *Options) { o.CacheByteCap = 0 }},
		{"zero queue cap", func(o *Options) { o.ReporterQueueCap = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := DefaultOptions()
			tc.mutate(opts)
			if err := opts.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Fatalf("home dir: %v", err)
	}

	got, err := ExpandPath("~/x/y")
	if err != nil {
		t.Fatalf("expand: %v", err)
	}
	if got != filepath.Join(home, "x", "y") {
		t.Errorf("unexpected expansion: %q", got)
	}

	got, err = ExpandPath("/abs/path")
	if err != nil || got != "/abs/path" {
		t.Errorf("absolute path must pass through: %q %v", got, err)
	}

	got, err = ExpandPath("")
	if err != nil || got != "" {
		t.Errorf("empty path must pass through: %q %v", got, err)
	}
}

func TestUserAgentsDir(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	dir, err := UserAgentsDir(".claude-pm")
	if err != nil {
		t.Fatalf("user agents dir: %v", err)
	}
	if dir != filepath.Join(home, ".claude-pm", "agents") {
		t.Errorf("unexpected dir: %q", dir)
	}
}
