// Package config handles YAML configuration loading, environment variable
// expansion, and structural validation for aura.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"

	ctxengine "github.com/flemzord/aura/internal/context"
	"github.com/flemzord/aura/internal/document"
	"github.com/flemzord/aura/internal/grounding"
	"github.com/flemzord/aura/internal/telemetry"
)

// Config is the top-level configuration structure.
type Config struct {
	// Version is the config format version. Currently only "1" is supported.
	Version string `yaml:"version"`

	// DataDir overrides the data directory (SQLite database and other
	// persistent module data).
	DataDir string `yaml:"data_dir,omitempty"`

	Log       LogConfig               `yaml:"log"`
	Context   ctxengine.ContextConfig `yaml:"context"`
	Grounding grounding.Config        `yaml:"grounding"`

	// Document bounds extraction. Absent means document.DefaultLimits.
	Document *document.Limits `yaml:"document,omitempty"`

	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Modules maps module IDs to their raw YAML configuration.
	// Keys must match registered module IDs (e.g. "provider.ollama").
	Modules map[string]yaml.Node `yaml:"modules"`
}

// LogConfig selects the log level and output format.
type LogConfig struct {
	// Level is debug, info, warn or error. Defaults to info.
	Level string `yaml:"level"`

	// Format is text or json. Defaults to text.
	Format string `yaml:"format"`
}

// SlogLevel parses Level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if l.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("config: log.level: %w", err)
	}
	return lvl, nil
}

// JSON reports whether records are written as JSON.
func (l LogConfig) JSON() bool {
	return strings.EqualFold(l.Format, "json")
}

// TelemetryConfig is the "telemetry" section.
type TelemetryConfig struct {
	Tracing telemetry.TracingConfig `yaml:"tracing"`
}

// DocumentLimits returns the configured extraction limits or the defaults.
func (c *Config) DocumentLimits() document.Limits {
	if c.Document == nil {
		return document.DefaultLimits()
	}
	return *c.Document
}
