// config/config.go
// Copyright(c) 2025 skypilot contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

// Package config gathers the settings that come from the environment
// rather than the command line: credentials for the language model and
// a few defaults that flags may override.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/mmp/skypilot/intel"

	"github.com/joho/godotenv"
)

var ErrInvalidLogLevel = errors.New("invalid log level")

type Config struct {
	// APIKey for the generative language API. If empty, mission orders
	// and the radio run offline.
	APIKey   string
	Model    string
	HTTPAddr string
	LogLevel string
}

// Load reads the given .env files (".env" in the current directory if
// none are given) into the environment and then builds a Config from the
// environment. Missing files are fine; malformed ones are not. Variables
// that are already set take precedence over the files.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	c := &Config{
		APIKey:   os.Getenv("GEMINI_API_KEY"),
		Model:    os.Getenv("SKYPILOT_MODEL"),
		HTTPAddr: os.Getenv("SKYPILOT_HTTP_ADDR"),
		LogLevel: os.Getenv("SKYPILOT_LOGLEVEL"),
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("API_KEY")
	}
	if c.Model == "" {
		c.Model = intel.DefaultModel
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("SKYPILOT_LOGLEVEL %q: %w", c.LogLevel, ErrInvalidLogLevel)
	}

	return c, nil
}

func (c *Config) HasCredentials() bool {
	return c.APIKey != ""
}

func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("api_key_set", c.HasCredentials()),
		slog.String("model", c.Model),
		slog.String("http_addr", c.HTTPAddr),
		slog.String("log_level", c.LogLevel))
}
