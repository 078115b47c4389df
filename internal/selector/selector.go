// Package selector maps a free-text task description to a concrete agent by
// layered scoring over a registry view. Candidates come only from the view;
// there is no built-in agent list, so user-declared agents participate on
// equal footing with bundled ones.
package selector

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"agentdir/internal/agent"
	"agentdir/internal/config"
)

// epsilon bounds score comparisons for tie-breaking.
const epsilon = 1e-9

// Hints carry optional structured guidance from the caller.
type Hints struct {
	// AgentID names an explicit agent; if present in the view it wins
	// unconditionally.
	AgentID agent.ID

	// RequiredCapabilities score candidates per matching capability tag.
	RequiredCapabilities []string

	// Specializations score candidates per intersecting tag.
	Specializations []string
}

// Selector scores agents against task descriptions.
type Selector struct {
	weights config.SelectorWeights
	emitter agent.Emitter
	log     zerolog.Logger
}

// New creates a selector with the given weights.
func New(weights config.SelectorWeights, emitter agent.Emitter, log zerolog.Logger) *Selector {
	if emitter == nil {
		emitter = agent.NopEmitter{}
	}
	return &Selector{weights: weights, emitter: emitter, log: log}
}

// Select evaluates every agent in the view against the task description and
// hints. When no candidate scores above zero the outcome has an empty Chosen
// and FallbackUsed set; the caller decides what to do then.
func (s *Selector) Select(view *agent.RegistryView, task string, hints *Hints) agent.SelectionOutcome {
	if hints != nil && hints.AgentID != "" {
		if meta := view.Winner(hints.AgentID); meta != nil {
			outcome := agent.SelectionOutcome{
				Chosen: hints.AgentID,
				Score:  math.Inf(1),
				Considered: []agent.ScoredAgent{
					{ID: hints.AgentID, Score: math.Inf(1)},
				},
			}
			s.emitSelection(view, outcome)
			return outcome
		}
	}

	tokens := Tokenize(task)

	type candidate struct {
		meta       *agent.Metadata
		score      float64
		keywords   []string
		capability []string
	}

	candidates := make([]candidate, 0, len(view.Winners))
	for _, id := range view.AgentIDs() {
		meta := view.Winners[id]
		c := candidate{meta: meta}

		if hints != nil {
			for _, tag := range hints.RequiredCapabilities {
				if meta.HasCapability(tag) {
					c.score += s.weights.Capability
					c.capability = append(c.capability, tag)
				}
			}
			for _, tag := range hints.Specializations {
				if meta.HasSpecialization(tag) {
					c.score += s.weights.Specialization
				}
			}
		}

		if len(meta.Keywords) > 0 {
			matched := matchKeywords(meta.Keywords, tokens)
			if len(matched) > 0 {
				ratio := float64(len(matched)) / float64(len(meta.Keywords))
				c.score += s.weights.Keyword * ratio
				c.keywords = matched
			}
		}

		candidates = append(candidates, c)
	}

	// Order by score, then tier precedence, then id. AgentIDs already
	// sorted ids, so equal candidates stay lexicographic.
	sort.SliceStable(candidates, func(i, j int) bool {
		if diff := candidates[i].score - candidates[j].score; diff > epsilon || diff < -epsilon {
			return diff > 0
		}
		if candidates[i].meta.Tier != candidates[j].meta.Tier {
			return candidates[i].meta.Tier.Less(candidates[j].meta.Tier)
		}
		return candidates[i].meta.ID < candidates[j].meta.ID
	})

	outcome := agent.SelectionOutcome{}
	for _, c := range candidates {
		outcome.Considered = append(outcome.Considered, agent.ScoredAgent{ID: c.meta.ID, Score: c.score})
	}

	if len(candidates) == 0 || candidates[0].score <= 0 {
		outcome.FallbackUsed = true
		s.emitter.Emit(agent.NewRecord(agent.EventSelectionFallback).
			WithGeneration(view.Generation).
			WithDetail("task", truncate(task, 200)))
		s.log.Debug().Str("task", truncate(task, 80)).Msg("no agent matched task")
		return outcome
	}

	best := candidates[0]
	outcome.Chosen = best.meta.ID
	outcome.Score = best.score
	outcome.MatchedKeywords = best.keywords
	outcome.MatchedCapabilities = best.capability
	s.emitSelection(view, outcome)
	return outcome
}

// emitSelection records a successful selection.
func (s *Selector) emitSelection(view *agent.RegistryView, outcome agent.SelectionOutcome) {
	s.emitter.Emit(agent.NewRecord(agent.EventSelection).
		WithAgent(outcome.Chosen).
		WithGeneration(view.Generation).
		WithDetail("keywords", strings.Join(outcome.MatchedKeywords, ",")).
		WithDetail("capabilities", strings.Join(outcome.MatchedCapabilities, ",")))
}

// Tokenize lowercases the task text, strips punctuation, and splits it into
// word tokens.
func Tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			tokens[b.String()] = struct{}{}
			b.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return tokens
}

// matchKeywords returns the agent keywords present in the task tokens.
// Multi-word keywords match when each of their words is present.
func matchKeywords(keywords []string, tokens map[string]struct{}) []string {
	var matched []string
	for _, kw := range keywords {
		words := strings.Fields(strings.ToLower(kw))
		if len(words) == 0 {
			continue
		}
		all := true
		for _, w := range words {
			if _, ok := tokens[w]; !ok {
				all = false
				break
			}
		}
		if all {
			matched = append(matched, kw)
		}
	}
	return matched
}

// truncate bounds a string for log and record fields.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
