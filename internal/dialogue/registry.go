package dialogue

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/book-expert/voicebatch/internal/core"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ErrUnknownSpeaker indicates an agent with no registered reference recording.
var ErrUnknownSpeaker = errors.New("no reference recording registered for speaker")

// Registry maps speaker IDs to reference recordings, relative to the speaker root.
type Registry struct {
	references map[string]string
}

type registryFile struct {
	Speakers map[string]string `yaml:"speakers"`
}

// NewRegistry validates references and builds a Registry.
func NewRegistry(references map[string]string) (*Registry, error) {
	copied := make(map[string]string, len(references))

	for id, file := range references {
		if !ValidAgentID(id) {
			return nil, fmt.Errorf("%w: speaker %q must match %s", core.ErrValidation, id, agentIDExpr)
		}

		if strings.TrimSpace(file) == "" {
			return nil, fmt.Errorf("%w: speaker %s has no reference file", core.ErrValidation, id)
		}

		copied[id] = file
	}

	return &Registry{references: copied}, nil
}

// LoadRegistry reads a YAML registry of the form:
//
//	speakers:
//	  NARRATOR: narrator.wav
func LoadRegistry(fs afero.Fs, path string) (*Registry, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read speaker registry %s: %w", path, err)
	}

	var file registryFile

	err = yaml.Unmarshal(data, &file)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse speaker registry %s: %w", core.ErrValidation, path, err)
	}

	return NewRegistry(file.Speakers)
}

// Reference returns the reference recording registered for agentID.
func (r *Registry) Reference(agentID string) (string, error) {
	file, ok := r.references[agentID]
	if !ok {
		return "", fmt.Errorf("%w: %w: %s", core.ErrValidation, ErrUnknownSpeaker, agentID)
	}

	return file, nil
}

// Speakers returns the registered speaker IDs in order.
func (r *Registry) Speakers() []string {
	ids := make([]string, 0, len(r.references))
	for id := range r.references {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	return ids
}
