package config

import "github.com/spf13/viper"

// Default option values.
const (
	DefaultFrameworkDirName           = ".claude-pm"
	DefaultAncestorWalkCap            = 8
	DefaultScannerMaxEntries          = 1000
	DefaultCacheByteCap               = 16 << 20 // 16 MiB
	DefaultCacheTTLSeconds            = 600
	DefaultTrackerDebounceMS          = 200
	DefaultTrackerPollFallbackSeconds = 30
	DefaultReporterQueueCap           = 10000
	DefaultReporterFlushTimeoutSec    = 2

	DefaultWeightCapability     = 3
	DefaultWeightKeyword        = 2
	DefaultWeightSpecialization = 4
)

// DefaultAgentFileExtensions are the recognized agent definition extensions.
var DefaultAgentFileExtensions = []string{".md", ".agent"}

// DefaultOptions returns a fully populated Options with default values.
func DefaultOptions() *Options {
	return &Options{
		FrameworkDirName:            DefaultFrameworkDirName,
		AncestorWalkCap:             DefaultAncestorWalkCap,
		ScannerMaxEntries:           DefaultScannerMaxEntries,
		AgentFileExtensions:         append([]string(nil), DefaultAgentFileExtensions...),
		CacheByteCap:                DefaultCacheByteCap,
		CacheTTLSeconds:             DefaultCacheTTLSeconds,
		TrackerDebounceMS:           DefaultTrackerDebounceMS,
		TrackerPollFallbackSeconds:  DefaultTrackerPollFallbackSeconds,
		ReporterQueueCap:            DefaultReporterQueueCap,
		ReporterFlushTimeoutSeconds: DefaultReporterFlushTimeoutSec,
		SelectorWeights: SelectorWeights{
			Capability:     DefaultWeightCapability,
			Keyword:        DefaultWeightKeyword,
			Specialization: DefaultWeightSpecialization,
		},
	}
}

// setDefaults registers defaults on a viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("framework_dir_name", DefaultFrameworkDirName)
	v.SetDefault("ancestor_walk_cap", DefaultAncestorWalkCap)
	v.SetDefault("scanner_max_entries", DefaultScannerMaxEntries)
	v.SetDefault("agent_file_extensions", DefaultAgentFileExtensions)
	v.SetDefault("cache_byte_cap", DefaultCacheByteCap)
	v.SetDefault("cache_ttl_seconds", DefaultCacheTTLSeconds)
	v.SetDefault("tracker_debounce_ms", DefaultTrackerDebounceMS)
	v.SetDefault("tracker_poll_fallback_seconds", DefaultTrackerPollFallbackSeconds)
	v.SetDefault("reporter_queue_cap", DefaultReporterQueueCap)
	v.SetDefault("reporter_flush_timeout_seconds", DefaultReporterFlushTimeoutSec)
	v.SetDefault("selector_weights.capability", DefaultWeightCapability)
	v.SetDefault("selector_weights.keyword", DefaultWeightKeyword)
	v.SetDefault("selector_weights.specialization", DefaultWeightSpecialization)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}
