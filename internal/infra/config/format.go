package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	FormatYAML = "yaml"
	FormatTOML = "toml"
)

// formatFromPath picks the config format from the file extension; anything
// that is not .toml is read as YAML.
func formatFromPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// tomlToYAML re-encodes a TOML document as YAML so both formats share one
// decoding and validation path. Key case is preserved.
func tomlToYAML(data []byte) ([]byte, error) {
	var payload map[string]any
	if err := toml.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse toml: %w", err)
	}
	if len(payload) == 0 {
		return nil, nil
	}
	out, err := yaml.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode toml config: %w", err)
	}
	return out, nil
}
