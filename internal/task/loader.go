package task

import (
	"fmt"
	"os"
	"path/filepath"

	"contractbot/internal/logging"

	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a task configuration file.
type File struct {
	Tasks []*Config `yaml:"tasks" validate:"required,min=1"`
}

// LoadFile reads a YAML task file and builds a registry from it.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}
	return Parse(data)
}

// Parse builds a registry from YAML bytes.
func Parse(data []byte) (*Registry, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse task file: %w", err)
	}
	if err := validate.Struct(&f); err != nil {
		return nil, fmt.Errorf("invalid task file: %w", err)
	}
	r, err := NewRegistry(f.Tasks...)
	if err != nil {
		return nil, fmt.Errorf("invalid task file: %w", err)
	}
	logging.Task("loaded %d task(s): %v", len(r.tasks), r.Kinds())
	return r, nil
}

// WriteFile writes the registry's configs as YAML. Custom Validator and
// Extractor funcs are not serialized.
func WriteFile(path string, r *Registry) error {
	data, err := yaml.Marshal(File{Tasks: r.Configs()})
	if err != nil {
		return fmt.Errorf("failed to marshal tasks: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create task dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write task file: %w", err)
	}
	return nil
}

// LoadOrDefault loads path when set and present, otherwise the built-in registry.
func LoadOrDefault(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logging.TaskWarn("task file %s not found, using built-in tasks", path)
		return DefaultRegistry(), nil
	}
	return LoadFile(path)
}
