package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Load reads path over the defaults. The format follows the extension:
// .yaml/.yml is YAML, anything else TOML. Unknown keys are errors.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = decodeYAML(data, &cfg)
	default:
		err = decodeTOML(data, &cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func decodeTOML(data []byte, cfg *Config) error {
	meta, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("failed to parse TOML: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	return nil
}

// Find walks up from startDir to the nearest perlsense.toml.
func Find(startDir string) (string, bool, error) {
	if startDir == "" {
		startDir = "."
	}
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", false, fmt.Errorf("failed to resolve start directory: %w", err)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return "", false, fmt.Errorf("failed to stat %q: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, nil
		}
		dir = parent
	}
}

// Resolve loads explicit when given, otherwise the nearest perlsense.toml
// above startDir, otherwise the defaults. It returns the file it used.
func Resolve(explicit, startDir string) (Config, string, error) {
	if explicit != "" {
		cfg, err := Load(explicit)
		return cfg, explicit, err
	}
	path, ok, err := Find(startDir)
	if err != nil {
		return Config{}, "", err
	}
	if !ok {
		return Default(), "", nil
	}
	cfg, err := Load(path)
	return cfg, path, err
}

// Encode writes cfg as TOML; `perlsense config` prints the effective values.
func Encode(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
