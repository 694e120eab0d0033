// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the service configuration: embedded defaults
// overlaid by an optional YAML file, validated, with a hot-reloadable
// reviewer roster.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AstraHome/AstraKB/services/kb/match"
)

// =============================================================================
// Embedded Defaults
// =============================================================================

//go:embed defaults.yaml
var defaultsYAML []byte

// =============================================================================
// Configuration Types
// =============================================================================

// Config is the full service configuration.
//
// # Thread Safety
//
// Immutable after Load. The mutable reviewer roster lives in Roster,
// not here.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Corpus CorpusConfig `yaml:"corpus"`
	Match  MatchConfig  `yaml:"match"`
	Review ReviewConfig `yaml:"review"`
}

// ServerConfig holds the HTTP surface options.
type ServerConfig struct {
	Port  int  `yaml:"port" validate:"gt=0,lt=65536"`
	Debug bool `yaml:"debug"`
}

// CorpusConfig holds the corpus store options.
type CorpusConfig struct {
	// StaticPath is the line-delimited static corpus file.
	StaticPath string `yaml:"static_path" validate:"required"`

	// DataDir is the BadgerDB directory. Empty means a default under the
	// user's home directory, resolved by the serve command.
	DataDir string `yaml:"data_dir"`

	// MaxSearchResults bounds the community search pre-filter.
	MaxSearchResults int `yaml:"max_search_results" validate:"gt=0"`
}

// MatchConfig exposes the matching thresholds. The 0.6 / 0.95 defaults
// were tuned empirically in production; they are configuration precisely
// because no principled model derives them.
type MatchConfig struct {
	RelevanceFloor    float64 `yaml:"relevance_floor" validate:"gt=0,lt=1"`
	AutoAcceptCeiling float64 `yaml:"auto_accept_ceiling" validate:"gt=0,lte=1"`
	SubstringScore    float64 `yaml:"substring_score" validate:"gt=0,lte=1"`
	MaxDisambiguation int     `yaml:"max_disambiguation" validate:"gt=0"`
}

// Params converts the section into match.Params.
func (m MatchConfig) Params() match.Params {
	return match.Params{
		RelevanceFloor:    m.RelevanceFloor,
		AutoAcceptCeiling: m.AutoAcceptCeiling,
		SubstringScore:    m.SubstringScore,
		MaxDisambiguation: m.MaxDisambiguation,
	}
}

// ReviewConfig holds the review workflow options.
type ReviewConfig struct {
	// Reviewers is the initial authorization roster. Hot-reloaded by
	// Roster.Watch when the config file changes.
	Reviewers []string `yaml:"reviewers"`
}

// =============================================================================
// Loading
// =============================================================================

// Load builds a Config from embedded defaults overlaid by the YAML file
// at path. An empty path loads defaults only.
//
// # Outputs
//
//   - *Config: The validated configuration. Nil on error.
//   - error: Parse or validation failure. Config errors are fatal at
//     startup, never silently defaulted past.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		return nil, fmt.Errorf("parse embedded defaults: %w", err)
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", path, err)
		}
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}
