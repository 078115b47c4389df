// Package config provides the discovery core's configuration: recognized
// options, defaults, and loading from file and environment via viper.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"agentdir/pkg/logger"
)

// Options is the root configuration for the discovery core.
type Options struct {
	// FrameworkDirName is the hidden directory searched for agents under
	// each tier root (project, ancestors, home).
	FrameworkDirName string `mapstructure:"framework_dir_name" yaml:"framework_dir_name"`

	// SystemAgentsDir is the bundled system-tier agents directory.
	SystemAgentsDir string `mapstructure:"system_agents_dir" yaml:"system_agents_dir,omitempty"`

	// AncestorWalkCap bounds the upward ancestor walk.
	AncestorWalkCap int `mapstructure:"ancestor_walk_cap" yaml:"ancestor_walk_cap"`

	// ScannerMaxEntries bounds files examined per directory scan.
	ScannerMaxEntries int `mapstructure:"scanner_max_entries" yaml:"scanner_max_entries"`

	// AgentFileExtensions are the recognized agent definition extensions.
	AgentFileExtensions []string `mapstructure:"agent_file_extensions" yaml:"agent_file_extensions,omitempty"`

	// CacheByteCap is the prompt cache byte budget.
	CacheByteCap int64 `mapstructure:"cache_byte_cap" yaml:"cache_byte_cap"`

	// CacheTTLSeconds is the prompt cache entry TTL.
	CacheTTLSeconds int `mapstructure:"cache_ttl_seconds" yaml:"cache_ttl_seconds"`

	// TrackerDebounceMS is the modification coalescing window.
	TrackerDebounceMS int `mapstructure:"tracker_debounce_ms" yaml:"tracker_debounce_ms"`

	// TrackerPollFallbackSeconds is the re-stat interval when no
	// filesystem notifier is available.
	TrackerPollFallbackSeconds int `mapstructure:"tracker_poll_fallback_seconds" yaml:"tracker_poll_fallback_seconds"`

	// ReporterQueueCap bounds the activity record queue.
	ReporterQueueCap int `mapstructure:"reporter_queue_cap" yaml:"reporter_queue_cap"`

	// ReporterFlushTimeoutSeconds bounds the drain on Stop.
	ReporterFlushTimeoutSeconds int `mapstructure:"reporter_flush_timeout_seconds" yaml:"reporter_flush_timeout_seconds"`

	// SelectorWeights overrides the selection scoring weights.
	SelectorWeights SelectorWeights `mapstructure:"selector_weights" yaml:"selector_weights"`

	// Log configures the process logger.
	Log logger.LogConfig `mapstructure:"log" yaml:"log"`
}

// SelectorWeights are the scoring weights of the agent selector.
type SelectorWeights struct {
	Capability     float64 `mapstructure:"capability" yaml:"capability"`
	Keyword        float64 `mapstructure:"keyword" yaml:"keyword"`
	Specialization float64 `mapstructure:"specialization" yaml:"specialization"`
}

// CacheTTL returns the prompt cache TTL as a duration.
func (o *Options) CacheTTL() time.Duration {
	return time.Duration(o.CacheTTLSeconds) * time.Second
}

// TrackerDebounce returns the modification coalescing window as a duration.
func (o *Options) TrackerDebounce() time.Duration {
	return time.Duration(o.TrackerDebounceMS) * time.Millisecond
}

// TrackerPollFallback returns the poll re-stat interval as a duration.
func (o *Options) TrackerPollFallback() time.Duration {
	return time.Duration(o.TrackerPollFallbackSeconds) * time.Second
}

// ReporterFlushTimeout returns the Stop drain deadline as a duration.
func (o *Options) ReporterFlushTimeout() time.Duration {
	return time.Duration(o.ReporterFlushTimeoutSeconds) * time.Second
}

// Validate checks option consistency.
func (o *Options) Validate() error {
	if o.FrameworkDirName == "" {
		return fmt.Errorf("framework_dir_name must not be empty")
	}
	if strings.ContainsRune(o.FrameworkDirName, os.PathSeparator) {
		return fmt.Errorf("framework_dir_name must be a single path element: %q", o.FrameworkDirName)
	}
	if o.AncestorWalkCap < 0 {
		return fmt.Errorf("ancestor_walk_cap must be >= 0, got %d", o.AncestorWalkCap)
	}
	if o.ScannerMaxEntries <= 0 {
		return fmt.Errorf("scanner_max_entries must be > 0, got %d", o.ScannerMaxEntries)
	}
	if o.CacheByteCap <= 0 {
		return fmt.Errorf("cache_byte_cap must be > 0, got %d", o.CacheByteCap)
	}
	if o.ReporterQueueCap <= 0 {
		return fmt.Errorf("reporter_queue_cap must be > 0, got %d", o.ReporterQueueCap)
	}
	return nil
}

// Load reads configuration from the given file path (optional) plus
// AGENTDIR_* environment overrides, layered over defaults.
func Load(path string) (*Options, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AGENTDIR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return nil, err
		}
		v.SetConfigFile(expanded)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", expanded, err)
			}
		}
	}

	opts := &Options{}
	if err := v.Unmarshal(opts); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}
