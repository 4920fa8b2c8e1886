package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// priorityFile is the on-disk shape of HANDLERS_PRIORITY_FILE:
//
//	handlers:
//	  sld: 10
//	  xml: 20
//
// Lower values are tried first.
type priorityFile struct {
	Handlers map[string]int `yaml:"handlers"`
}

// LoadHandlerPriorities reads handler priority overrides from path.
// An empty path yields no overrides.
func LoadHandlerPriorities(path string) (map[string]int, error) {
	if path == "" {
		return map[string]int{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read handler priorities: %w", err)
	}
	return ParseHandlerPriorities(data)
}

// ParseHandlerPriorities decodes a priority document.
func ParseHandlerPriorities(data []byte) (map[string]int, error) {
	var pf priorityFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse handler priorities: %w", err)
	}
	out := make(map[string]int, len(pf.Handlers))
	for id, p := range pf.Handlers {
		if id == "" {
			return nil, fmt.Errorf("parse handler priorities: empty handler id")
		}
		out[id] = p
	}
	return out, nil
}
