// Package dialogue synthesizes multi-speaker scripts line by line with cloned
// voices, optionally publishing the clips and writing word-level subtitles.
package dialogue

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/book-expert/voicebatch/internal/core"
	"gopkg.in/yaml.v3"
)

const agentIDExpr = `^[A-Z]+(?:_[A-Z]+)*$`

var agentIDPattern = regexp.MustCompile(agentIDExpr)

var (
	// ErrScriptNotArray indicates a script whose root is not a list.
	ErrScriptNotArray = errors.New("script must be an array")
	// ErrItemNotObject indicates a script entry that is not an object.
	ErrItemNotObject = errors.New("item is not an object")
	// ErrInvalidAgentID indicates an agentId that is not UPPER_SNAKE_CASE.
	ErrInvalidAgentID = errors.New("invalid agentId")
	// ErrInvalidText indicates missing or blank line text.
	ErrInvalidText = errors.New("invalid text")
)

// Line is one spoken line of a script.
type Line struct {
	AgentID string `json:"agentId" yaml:"agentId"`
	Text    string `json:"text" yaml:"text"`
}

// ValidAgentID reports whether id is uppercase words joined by single underscores.
func ValidAgentID(id string) bool {
	return agentIDPattern.MatchString(id)
}

// ParseScript decodes and validates a script. JSON is accepted, as are the
// relaxed forms YAML allows (comments, unquoted keys, trailing commas).
func ParseScript(data []byte) ([]Line, error) {
	var root yaml.Node

	err := yaml.Unmarshal(data, &root)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid script: %w", core.ErrValidation, err)
	}

	doc := &root
	if root.Kind == yaml.DocumentNode && len(root.Content) == 1 {
		doc = root.Content[0]
	}

	if doc.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("%w: %w, got %s", core.ErrValidation, ErrScriptNotArray, kindName(doc))
	}

	lines := make([]Line, 0, len(doc.Content))

	for idx, item := range doc.Content {
		if item.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%w: %w at index %d", core.ErrValidation, ErrItemNotObject, idx)
		}

		agentID, ok := stringField(item, "agentId")
		if !ok || !ValidAgentID(agentID) {
			return nil, fmt.Errorf("%w: %w at index %d: %q must match %s",
				core.ErrValidation, ErrInvalidAgentID, idx, agentID, agentIDExpr)
		}

		text, ok := stringField(item, "text")
		if !ok || strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: %w at index %d: must be a non-empty string",
				core.ErrValidation, ErrInvalidText, idx)
		}

		lines = append(lines, Line{AgentID: agentID, Text: text})
	}

	return lines, nil
}

func stringField(mapping *yaml.Node, key string) (string, bool) {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value != key {
			continue
		}

		value := mapping.Content[i+1]
		if value.Kind != yaml.ScalarNode || value.ShortTag() != "!!str" {
			return value.Value, false
		}

		return value.Value, true
	}

	return "", false
}

func kindName(node *yaml.Node) string {
	switch node.Kind {
	case yaml.MappingNode:
		return "object"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.DocumentNode, 0:
		return "empty document"
	default:
		return "unsupported node"
	}
}
