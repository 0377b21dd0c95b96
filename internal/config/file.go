package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadConfig reads a YAML file over the defaults. Keys missing from the file
// keep their default value. An empty path returns the defaults.
func LoadConfig(filePath string) (*Config, error) {
	config := Default()

	if filePath == "" {
		return config, nil
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadOrDefault is LoadConfig, except that a missing file yields the
// defaults. The second return reports whether the file was read.
func LoadOrDefault(filePath string) (*Config, bool, error) {
	config, err := LoadConfig(filePath)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return config, filePath != "", nil
}

// SaveDefaultConfig saves a default configuration file
func SaveDefaultConfig(filePath string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("error creating default config: %w", err)
	}

	yamlWithComments := "# patchstore configuration\n" +
		"# server.root_dir holds the *.json seed documents, one container per file\n" +
		"# history.limit of 0 keeps every undoable record\n\n" +
		string(data)

	if err := os.WriteFile(filePath, []byte(yamlWithComments), 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}
