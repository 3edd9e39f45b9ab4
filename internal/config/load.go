package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/gardener/internal/foundation/errors"
)

// EnvFiles are loaded before the config file is read. Variables already set in the
// process environment win.
var EnvFiles = []string{".env", ".env.local"}

// Load reads path, falling back to defaults when path is empty or is DefaultFile and
// missing. ${VAR} references are expanded from the environment before parsing.
func Load(path string) (*Config, error) {
	if err := loadEnvFiles(EnvFiles...); err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && path == DefaultFile:
		return Default(), nil
	case errors.Is(err, fs.ErrNotExist):
		return nil, ferrors.ConfigError("configuration file not found").WithContext("path", path).Build()
	case err != nil:
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").WithContext("path", path).Build()
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes, defaults and validates a config document.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadEnvFiles loads every existing file in order.
func loadEnvFiles(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryConfig, "failed to load env file").WithContext("path", f).Build()
		}
	}
	return nil
}

// Init writes an example configuration to path.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.ValidationError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", path)).Build()
	}
	cfg := Default()
	cfg.Site.BaseURL = "garden.example.com"
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write config file").WithContext("path", path).Build()
	}
	return nil
}
