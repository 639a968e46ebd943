// Package sources loads news outlet descriptors from YAML files.
package sources

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Loader struct {
	sourcesDir string
}

func NewLoader(sourcesDir string) *Loader {
	return &Loader{sourcesDir: sourcesDir}
}

// LoadAll loads every YAML descriptor in the sources directory. A
// missing directory yields an empty list, not an error.
func (l *Loader) LoadAll() ([]*Source, error) {
	if _, err := os.Stat(l.sourcesDir); os.IsNotExist(err) {
		return nil, nil
	}

	files, err := filepath.Glob(filepath.Join(l.sourcesDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YML files: %w", err)
	}
	yamlFiles, err := filepath.Glob(filepath.Join(l.sourcesDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to find YAML files: %w", err)
	}
	files = append(files, yamlFiles...)

	var loaded []*Source
	for _, file := range files {
		source, err := l.loadFile(file)
		if err != nil {
			return nil, fmt.Errorf("error loading %s: %w", file, err)
		}

		if err := l.validate(source); err != nil {
			return nil, fmt.Errorf("invalid source %s: %w", file, err)
		}

		loaded = append(loaded, source)
		slog.Debug("Loaded source descriptor", "id", source.ID, "country", source.Country)
	}

	return loaded, nil
}

func (l *Loader) loadFile(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var source Source
	if err := yaml.Unmarshal(data, &source); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Base(path)
	source.ID = strings.TrimSuffix(strings.TrimSuffix(base, ".yaml"), ".yml")
	source.Country = strings.ToLower(strings.TrimSpace(source.Country))

	return &source, nil
}

func (l *Loader) validate(source *Source) error {
	if source.Name == "" {
		return fmt.Errorf("source name is required")
	}
	if source.Country == "" {
		return fmt.Errorf("source country is required")
	}
	if len(source.Country) != 2 {
		return fmt.Errorf("source country must be a 2-letter code, got %q", source.Country)
	}
	// An empty feed URL is allowed; the scheduler skips such sources.
	return nil
}
