// Copyright (C) 2025 Praetor AI (legal@praetor.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config loads and watches the counsel service configuration.
//
// Precedence: defaults, then the YAML file, then PRAETOR_* environment
// variables. Secrets (the agent API key) are never part of the YAML
// file; they come from the environment and live in guarded memory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/PraetorAI/PraetorLocal/services/counsel/telemetry"
)

// ServerConfig is the HTTP listener configuration.
type ServerConfig struct {
	Host string `yaml:"host" validate:"required"`
	Port int    `yaml:"port" validate:"min=1,max=65535"`
}

// AgentConfig points at the agent execution service.
type AgentConfig struct {
	BaseURL string `yaml:"base_url" validate:"required,url"`

	// TimeoutSeconds bounds one agent run call.
	TimeoutSeconds int `yaml:"timeout_seconds" validate:"min=1,max=600"`

	// APIKeyEnv names the environment variable holding the bearer
	// token for the agent service.
	APIKeyEnv string `yaml:"api_key_env"`
}

// OutboxConfig is the durable outbox location.
type OutboxConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// LoggingConfig mirrors pkg/logging.Config in YAML form.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// ExportConfig configures research document export.
type ExportConfig struct {
	// SigningURL is the optional document signing service. Empty
	// disables signing; exports are then produced unsigned.
	SigningURL string `yaml:"signing_url" validate:"omitempty,url"`
}

// RateLimitConfig bounds request rates per client.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps" validate:"min=0"`
	Burst int     `yaml:"burst" validate:"min=0"`
}

// Config is the full counsel service configuration.
type Config struct {
	Server    ServerConfig           `yaml:"server"`
	Agent     AgentConfig            `yaml:"agent"`
	Outbox    OutboxConfig           `yaml:"outbox"`
	Logging   LoggingConfig          `yaml:"logging"`
	Telemetry telemetry.Config       `yaml:"telemetry"`
	Influx    telemetry.InfluxConfig `yaml:"influx"`
	Export    ExportConfig           `yaml:"export"`
	RateLimit RateLimitConfig        `yaml:"rate_limit"`
}

// Default returns the development configuration.
func Default() Config {
	dataDir := "~/.praetor"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".praetor")
	}
	return Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: 8200},
		Agent: AgentConfig{
			BaseURL:        "http://localhost:8210",
			TimeoutSeconds: 60,
			APIKeyEnv:      "PRAETOR_AGENT_API_KEY",
		},
		Outbox:    OutboxConfig{Path: filepath.Join(dataDir, "outbox")},
		Logging:   LoggingConfig{Level: "info", Dir: filepath.Join(dataDir, "logs")},
		Telemetry: telemetry.DefaultConfig(),
		RateLimit: RateLimitConfig{RPS: 10, Burst: 20},
	}
}

// Parse builds a Config from YAML bytes over the defaults, applies
// environment overrides, and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv layers PRAETOR_* environment variables over the file
// values.
func applyEnv(cfg *Config) {
	if v := os.Getenv("PRAETOR_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PRAETOR_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("PRAETOR_AGENT_URL"); v != "" {
		cfg.Agent.BaseURL = v
	}
	if v := os.Getenv("PRAETOR_OUTBOX_PATH"); v != "" {
		cfg.Outbox.Path = v
	}
	if v := os.Getenv("PRAETOR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("PRAETOR_SIGNING_URL"); v != "" {
		cfg.Export.SigningURL = v
	}
	if v := os.Getenv("INFLUXDB_URL"); v != "" {
		cfg.Influx.URL = v
	}
	if v := os.Getenv("INFLUXDB_TOKEN"); v != "" {
		cfg.Influx.Token = v
	}
	if v := os.Getenv("INFLUXDB_ORG"); v != "" {
		cfg.Influx.Org = v
	}
	if v := os.Getenv("INFLUXDB_BUCKET"); v != "" {
		cfg.Influx.Bucket = v
	}
}

var configValidate = validator.New()

// Validate checks a Config against its validation tags.
func Validate(cfg Config) error {
	if err := configValidate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// WriteDefault writes the default configuration to path, creating
// parent directories.
func WriteDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encode default config: %w", err)
	}
	return os.WriteFile(path, data, 0640)
}
