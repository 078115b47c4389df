// Package agent defines the shared data model for agent discovery:
// sources, metadata, prompts, registry views, selection outcomes, and
// activity records.
package agent

import (
	"sort"
	"time"
)

// ID is the short stable identifier of an agent (e.g. "qa", "documentation",
// "custom_analyzer"). Unique within a tier; may be overridden across tiers.
type ID = string

// Tier is the precedence class of an agent source. Lower value means higher
// precedence. Ancestor tiers encode their depth so that a closer ancestor
// orders before a farther one.
type Tier int

const (
	// TierProjectCurrent is the project's own agents directory.
	TierProjectCurrent Tier = 0

	// tierAncestorBase is the offset for ancestor tiers; depth d maps to
	// tierAncestorBase + d. Depths are distinct, so ties cannot occur.
	tierAncestorBase Tier = 100

	// TierUser is the per-user agents directory under the home directory.
	TierUser Tier = 10000

	// TierSystem is the bundled system agents directory.
	TierSystem Tier = 20000
)

// TierProjectAncestor returns the tier for a project ancestor at the given
// depth (1 = immediate parent).
func TierProjectAncestor(depth int) Tier {
	return tierAncestorBase + Tier(depth)
}

// IsAncestor reports whether t is a project-ancestor tier.
func (t Tier) IsAncestor() bool {
	return t > tierAncestorBase && t < TierUser
}

// AncestorDepth returns the depth for an ancestor tier, or 0 otherwise.
func (t Tier) AncestorDepth() int {
	if !t.IsAncestor() {
		return 0
	}
	return int(t - tierAncestorBase)
}

// Less reports whether t has higher precedence than other.
func (t Tier) Less(other Tier) bool {
	return t < other
}

// String returns a human-readable tier name.
func (t Tier) String() string {
	switch {
	case t == TierProjectCurrent:
		return "project"
	case t.IsAncestor():
		return "ancestor"
	case t == TierUser:
		return "user"
	case t == TierSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Source identifies one concrete agent definition file.
type Source struct {
	Tier        Tier   `json:"tier"`
	Path        string `json:"path"`
	ContentHash string `json:"content_hash"`
	ModTimeNS   int64  `json:"mod_time_ns"`
}

// Metadata is the cheap, scan-time view of an agent definition.
// Replaced, never mutated, when the underlying content hash changes.
type Metadata struct {
	ID              ID                `json:"id"`
	Tier            Tier              `json:"tier"`
	SourcePath      string            `json:"source_path"`
	Capabilities    []string          `json:"capabilities,omitempty"`
	Keywords        []string          `json:"keywords,omitempty"`
	RoleSummary     string            `json:"role_summary,omitempty"`
	Specializations []string          `json:"specializations,omitempty"`
	Version         string            `json:"version,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"`
	ContentHash     string            `json:"content_hash"`
}

// HasCapability reports whether the agent declares the given capability tag.
func (m *Metadata) HasCapability(tag string) bool {
	for _, c := range m.Capabilities {
		if c == tag {
			return true
		}
	}
	return false
}

// HasSpecialization reports whether the agent declares the given
// specialization tag.
func (m *Metadata) HasSpecialization(tag string) bool {
	for _, s := range m.Specializations {
		if s == tag {
			return true
		}
	}
	return false
}

// Prompt is a parsed, ready-to-dispatch agent prompt. Pinned in the prompt
// cache keyed by content hash; callers must treat it as read-only.
type Prompt struct {
	ID          ID        `json:"id"`
	Body        string    `json:"body"`
	Metadata    *Metadata `json:"metadata"`
	ContentHash string    `json:"content_hash"`
	LoadedAt    time.Time `json:"loaded_at"`
}

// SizeBytes approximates the in-memory footprint of the prompt for cache
// accounting.
func (p *Prompt) SizeBytes() int {
	n := len(p.Body) + len(p.ContentHash) + len(p.ID)
	if p.Metadata != nil {
		n += len(p.Metadata.RoleSummary)
		for _, s := range p.Metadata.Capabilities {
			n += len(s)
		}
		for _, s := range p.Metadata.Keywords {
			n += len(s)
		}
		for _, s := range p.Metadata.Specializations {
			n += len(s)
		}
		for k, v := range p.Metadata.Extra {
			n += len(k) + len(v)
		}
	}
	return n
}

// RegistryView is an immutable snapshot of resolved agents for one root.
// Winners holds the highest-precedence metadata per id; Sources holds every
// known source per id; Shadowed holds the losers for diagnostics.
type RegistryView struct {
	Generation int64            `json:"generation"`
	Root       string           `json:"root"`
	Winners    map[ID]*Metadata `json:"winners"`
	Sources    map[ID][]Source  `json:"sources"`
	Shadowed   map[ID][]Source  `json:"shadowed,omitempty"`
	BuiltAt    time.Time        `json:"built_at"`
}

// AgentIDs returns the winner ids in sorted order.
func (v *RegistryView) AgentIDs() []ID {
	ids := make([]ID, 0, len(v.Winners))
	for id := range v.Winners {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Winner returns the winning metadata for id, or nil.
func (v *RegistryView) Winner(id ID) *Metadata {
	return v.Winners[id]
}

// ScoredAgent is one candidate considered during selection.
type ScoredAgent struct {
	ID    ID      `json:"id"`
	Score float64 `json:"score"`
}

// SelectionOutcome is the result of mapping a task description to an agent.
// Chosen is empty when no candidate scored above zero; in that case
// FallbackUsed is true and the caller decides what to do.
type SelectionOutcome struct {
	Chosen              ID            `json:"chosen,omitempty"`
	Score               float64       `json:"score"`
	MatchedKeywords     []string      `json:"matched_keywords,omitempty"`
	MatchedCapabilities []string      `json:"matched_capabilities,omitempty"`
	Considered          []ScoredAgent `json:"considered,omitempty"`
	FallbackUsed        bool          `json:"fallback_used"`
}
