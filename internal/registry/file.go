package registry

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type registryFile struct {
	Participants []Entry `yaml:"participants"`
}

// LoadFile reads a participant registry from a YAML file. The file
// lists participants in synthesis tie-break order:
//
//	participants:
//	  - id: food
//	    endpoint: http://localhost:8000
//	    weight: 0.3
//	    capabilities: [dining-recommendation]
func LoadFile(path string) (*Registry, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry file %s: %w", path, err)
	}
	return Parse(payload)
}

func Parse(payload []byte) (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(payload, &file); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("parse registry: %v", err)}
	}
	if len(file.Participants) == 0 {
		return nil, &ConfigurationError{Reason: "no participants declared"}
	}
	return New(file.Participants)
}
