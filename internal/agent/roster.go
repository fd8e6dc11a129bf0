package agent

import (
	"bytes"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Iron-Ham/roundtable/internal/errors"
)

// rosterFile is the on-disk roster layout. A bare list of agents is accepted
// as well.
type rosterFile struct {
	Agents []Descriptor `yaml:"agents"`
}

// LoadRoster reads and validates a YAML roster file.
func LoadRoster(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read roster %s", path)
	}
	roster, err := ParseRoster(data)
	if err != nil {
		return nil, errors.Wrapf(err, "roster %s", path)
	}
	return roster, nil
}

// ParseRoster decodes and validates a YAML roster. Unknown fields are errors.
func ParseRoster(data []byte) ([]Descriptor, error) {
	var roster []Descriptor

	var wrapped rosterFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&wrapped); err == nil {
		roster = wrapped.Agents
	} else {
		dec = yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if listErr := dec.Decode(&roster); listErr != nil {
			return nil, errors.NewValidationError("invalid roster YAML").
				WithField("agents").
				WithCause(errors.Join(errors.ErrInvalidConfig, err))
		}
	}

	for i := range roster {
		if roster[i].Instructions == "" {
			roster[i].Instructions = defaultInstructions[roster[i].Role]
		}
	}
	if err := ValidateRoster(roster); err != nil {
		return nil, err
	}
	return roster, nil
}
