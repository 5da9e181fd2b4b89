package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk YAML configuration shape for veil.
type FileConfig struct {
	Include           *string  `yaml:"include"`
	Exclude           *string  `yaml:"exclude"`
	MaxBytes          *int64   `yaml:"max_bytes"`
	Enable            *string  `yaml:"enable"`
	Disable           *string  `yaml:"disable"`
	Threads           *int     `yaml:"threads"`
	MinConfidence     *float64 `yaml:"min_confidence"`
	NoColor           *bool    `yaml:"no_color"`
	DefaultExcludes   *bool    `yaml:"default_excludes"`
	NoValidators      *bool    `yaml:"no_validators"`
	NoStructured      *bool    `yaml:"no_structured"`
	DisableValidators *string  `yaml:"disable_validators"`
	DisableStructured *string  `yaml:"disable_structured"`
}

// LoadFile reads a YAML config file from the provided path.
func LoadFile(path string) (FileConfig, error) {
	var cfg FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadLocal searches for a repo-local config file in the given root.
// It supports .veil.yml/.yaml and veil.yml/.yaml.
func LoadLocal(repoRoot string) (FileConfig, error) {
	var cfg FileConfig
	for _, name := range []string{".veil.yml", ".veil.yaml", "veil.yml", "veil.yaml"} {
		p := filepath.Join(repoRoot, name)
		if _, err := os.Stat(p); err == nil {
			return LoadFile(p)
		}
	}
	return cfg, errors.New("no local config")
}

// LoadGlobal loads the global config file from XDG base directory or ~/.config.
func LoadGlobal() (FileConfig, error) {
	var cfg FileConfig
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		if home != "" {
			base = filepath.Join(home, ".config")
		}
	}
	if base == "" {
		return cfg, errors.New("no config dir")
	}
	p := filepath.Join(base, "veil", "config.yml")
	if _, err := os.Stat(p); err == nil {
		return LoadFile(p)
	}
	return cfg, errors.New("no global config")
}
