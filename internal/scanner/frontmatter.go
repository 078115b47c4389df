package scanner

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"agentdir/internal/agent"
)

// frontmatterRegex matches the YAML front-matter block at the top of an
// agent definition file.
var frontmatterRegex = regexp.MustCompile(`(?s)^---\s*\n(.+?)\n---\s*\n?`)

// Header keys recognized in agent front-matter. Unknown keys are preserved.
const (
	keyID              = "id"
	keyCapabilities    = "capabilities"
	keyKeywords        = "keywords"
	keyRoleSummary     = "role_summary"
	keySpecializations = "specializations"
	keyVersion         = "version"
)

// Definition is a fully parsed agent definition: header fields plus body.
type Definition struct {
	ID              string
	Capabilities    []string
	Keywords        []string
	RoleSummary     string
	Specializations []string
	Version         string
	Extra           map[string]string
	Body            string
}

// ParseDefinition parses agent file content. The content must start with a
// YAML front-matter block; the remainder is the free-form prompt body.
func ParseDefinition(content []byte) (*Definition, error) {
	text := string(content)
	matches := frontmatterRegex.FindStringSubmatch(text)
	if len(matches) < 2 {
		return nil, fmt.Errorf("%w: missing front-matter block", agent.ErrParseFailed)
	}

	var header map[string]any
	if err := yaml.Unmarshal([]byte(matches[1]), &header); err != nil {
		return nil, fmt.Errorf("%w: %v", agent.ErrParseFailed, err)
	}

	def := &Definition{Body: extractBody(text)}
	for key, raw := range header {
		switch key {
		case keyID:
			def.ID = asString(raw)
		case keyCapabilities:
			def.Capabilities = asStringList(raw)
		case keyKeywords:
			def.Keywords = asStringList(raw)
		case keyRoleSummary:
			def.RoleSummary = asString(raw)
		case keySpecializations:
			def.Specializations = asStringList(raw)
		case keyVersion:
			def.Version = asString(raw)
		default:
			if def.Extra == nil {
				def.Extra = make(map[string]string)
			}
			def.Extra[key] = asString(raw)
		}
	}

	if def.Version != "" {
		if _, err := semver.NewVersion(def.Version); err != nil {
			return nil, fmt.Errorf("%w: version %q: %v", agent.ErrParseFailed, def.Version, err)
		}
	}

	return def, nil
}

// extractBody returns the content after the front-matter block.
func extractBody(content string) string {
	idx := frontmatterRegex.FindStringIndex(content)
	if idx == nil {
		return content
	}
	return strings.TrimSpace(content[idx[1]:])
}

// asString renders a scalar header value as a string.
func asString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return strings.TrimSpace(s)
	}
	return fmt.Sprintf("%v", v)
}

// asStringList accepts either a YAML list or a comma-separated string.
func asStringList(v any) []string {
	switch value := v.(type) {
	case nil:
		return nil
	case []any:
		out := make([]string, 0, len(value))
		for _, item := range value {
			if s := asString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		if s := asString(v); s != "" {
			return []string{s}
		}
		return nil
	}
}
