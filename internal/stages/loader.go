package stages

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadDefinition reads a YAML stage graph definition from path.
//
//	entry: Intake
//	stages:
//	  - name: Intake
//	    order: 1
//	    required_fields: [name]
//	    next: [Review]
func LoadDefinition(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("failed to read stage graph: %w", err)
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, fmt.Errorf("failed to parse stage graph: %w", err)
	}
	return def, nil
}

// LoadGraph returns the graph described by path, or the built-in project
// workflow when path is empty.
func LoadGraph(path string) (*Graph, error) {
	if path == "" {
		return NewGraph(DefaultDefinition())
	}
	def, err := LoadDefinition(path)
	if err != nil {
		return nil, err
	}
	return NewGraph(def)
}
