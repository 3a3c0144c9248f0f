package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadDescriptorsFile reads a JSON or YAML file containing a list of agent
// descriptors (registry.RegistryConfig.AgentsFile) and returns them for the
// caller to Register individually.
func LoadDescriptorsFile(path string) ([]Descriptor, error) {
	data, err := os.ReadFile(path) //nolint:gosec
	if err != nil {
		return nil, fmt.Errorf("registry: reading agents file: %w", err)
	}

	var descriptors []Descriptor
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &descriptors); err != nil {
			return nil, fmt.Errorf("registry: parsing YAML agents file: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &descriptors); err != nil {
			return nil, fmt.Errorf("registry: parsing JSON agents file: %w", err)
		}
	default:
		return nil, fmt.Errorf("registry: unsupported agents file extension %q: use .json, .yaml, or .yml", ext)
	}
	return descriptors, nil
}

// LoadAndRegisterFile loads descriptors from path and registers every one of
// them into reg, stopping at the first registration error.
func LoadAndRegisterFile(reg *Registry, path string) error {
	descriptors, err := LoadDescriptorsFile(path)
	if err != nil {
		return err
	}
	for _, d := range descriptors {
		if err := reg.Register(d); err != nil {
			return fmt.Errorf("registry: registering %q from %s: %w", d.Name, path, err)
		}
	}
	return nil
}
