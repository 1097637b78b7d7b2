// SPDX-License-Identifier: CC-BY-NC-SA-4.0
// Copyright (c) 2025-2026 fumi-engineer

// Package config loads engine and logging settings from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/fumi-engineer/saliency/internal/logging"
	"github.com/fumi-engineer/saliency/saliency"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvAlgorithm = "SALIENCY_ALGORITHM"
	EnvLogLevel  = "SALIENCY_LOG_LEVEL"
	EnvLogFormat = "SALIENCY_LOG_FORMAT"
)

// Saliency configures the saliency engine.
type Saliency struct {
	Algorithm string  `yaml:"algorithm"`
	Steps     int     `yaml:"steps"`
	Samples   int     `yaml:"samples"`
	StdDev    float32 `yaml:"stdDev"`
	Seed      uint64  `yaml:"seed"`
}

// Config is the top-level settings document.
type Config struct {
	Saliency  Saliency `yaml:"saliency"`
	LogLevel  string   `yaml:"logLevel"`
	LogFormat string   `yaml:"logFormat"`
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Saliency: Saliency{
			Algorithm: string(saliency.Simple),
			Steps:     saliency.DefaultSteps,
			Samples:   saliency.DefaultSamples,
			StdDev:    saliency.DefaultStdDev,
			Seed:      saliency.DefaultSeed,
		},
		LogLevel:  "info",
		LogFormat: "text",
	}
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if v := os.Getenv(EnvAlgorithm); v != "" {
		cfg.Saliency.Algorithm = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.LogFormat = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := saliency.ParseAlgorithm(c.Saliency.Algorithm); err != nil {
		errs = append(errs, err)
	}
	if c.Saliency.Steps < 1 {
		errs = append(errs, fmt.Errorf("steps must be positive, got %d", c.Saliency.Steps))
	}
	if c.Saliency.Samples < 1 {
		errs = append(errs, fmt.Errorf("samples must be positive, got %d", c.Saliency.Samples))
	}
	if c.Saliency.StdDev < 0 {
		errs = append(errs, fmt.Errorf("stdDev must not be negative, got %g", c.Saliency.StdDev))
	}
	if !logging.ValidLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("unknown log level %q", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.LogFormat))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Logger builds the logger described by c, writing to stderr.
func (c *Config) Logger() *slog.Logger {
	return logging.New(c.LogLevel, c.LogFormat, nil)
}

// EngineOptions translates the saliency section into engine options. The
// logger from Logger is included.
func (c *Config) EngineOptions() []saliency.Option {
	return []saliency.Option{
		saliency.WithAlgorithm(saliency.Algorithm(c.Saliency.Algorithm)),
		saliency.WithSteps(c.Saliency.Steps),
		saliency.WithSamples(c.Saliency.Samples),
		saliency.WithStdDev(c.Saliency.StdDev),
		saliency.WithSeed(c.Saliency.Seed),
		saliency.WithLogger(c.Logger()),
	}
}
