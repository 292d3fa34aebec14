// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bcem/enrichment/internal/models"
	"github.com/bcem/enrichment/internal/normalize"
)

// DefaultQuery selects travel-related update emails.
const DefaultQuery = `(category:updates (travel OR reservation OR confirmation OR itinerary OR booking)) after:2023/12/31`

// MailConfig controls where emails come from.
type MailConfig struct {
	Query           string
	CredentialsFile string
	TokenFile       string
	MaxResults      int
	Endpoint        string // empty = production Gmail API
	InputFile       string // when set, read emails from this file instead
}

// InferenceConfig controls the completion service and the policy around it.
type InferenceConfig struct {
	BaseURL            string
	APIKey             string
	Model              string
	SentimentMaxTokens int
	KeywordMaxTokens   int
	Timeout            time.Duration
	MaxRetries         int
	InitialBackoff     time.Duration
	MaxBackoff         time.Duration
	BreakerThreshold   uint32
	BreakerCooldown    time.Duration
}

// PipelineConfig controls the batch run.
type PipelineConfig struct {
	Mode             models.Mode
	MaxContentLength int
	Workers          int
}

// OutputConfig lists the file sinks. Empty paths are disabled.
type OutputConfig struct {
	CSVPath  string
	JSONPath string
}

// Config holds all configuration for the enrichment service.
type Config struct {
	Mail      MailConfig
	Inference InferenceConfig
	Pipeline  PipelineConfig
	Output    OutputConfig

	// Redis (dedup + queue); empty URL disables both
	RedisURL    string
	Queue       string
	DedupTTL    time.Duration
	DatabaseURL string // empty disables the Postgres store

	// Server
	Port     int
	Interval time.Duration
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Mail struct {
		Query           string `yaml:"query"`
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		MaxResults      int    `yaml:"max_results"`
		Endpoint        string `yaml:"endpoint"`
		InputFile       string `yaml:"input_file"`
	} `yaml:"mail"`
	Inference struct {
		BaseURL            string `yaml:"base_url"`
		APIKey             string `yaml:"api_key"`
		Model              string `yaml:"model"`
		SentimentMaxTokens int    `yaml:"sentiment_max_tokens"`
		KeywordMaxTokens   int    `yaml:"keyword_max_tokens"`
		Timeout            string `yaml:"timeout"`
		MaxRetries         *int   `yaml:"max_retries"`
		InitialBackoff     string `yaml:"initial_backoff"`
		MaxBackoff         string `yaml:"max_backoff"`
		BreakerThreshold   uint32 `yaml:"breaker_threshold"`
		BreakerCooldown    string `yaml:"breaker_cooldown"`
	} `yaml:"inference"`
	Pipeline struct {
		Mode             string `yaml:"mode"`
		MaxContentLength int    `yaml:"max_content_length"`
		Workers          int    `yaml:"workers"`
	} `yaml:"pipeline"`
	Output struct {
		CSV  string `yaml:"csv"`
		JSON string `yaml:"json"`
	} `yaml:"output"`
	Redis struct {
		URL      string `yaml:"url"`
		Queue    string `yaml:"queue"`
		DedupTTL string `yaml:"dedup_ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Server struct {
		Port     int    `yaml:"port"`
		Interval string `yaml:"interval"`
	} `yaml:"server"`
}

// Load reads configuration from the file named by CONFIG_PATH (default
// config.yaml). A missing file is not an error: every setting has an
// environment variable or a default.
func Load() (*Config, error) {
	return LoadFrom(envOrDefault("CONFIG_PATH", "config.yaml"))
}

// LoadFrom reads configuration from path (with env var expansion) and
// environment variables for settings the file leaves empty.
func LoadFrom(configPath string) (*Config, error) {
	var raw rawConfig

	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// env-only configuration
	case err != nil:
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	default:
		// Expand ${VAR} references in the YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
			return nil, fmt.Errorf("parse config YAML: %w", err)
		}
	}

	cfg := &Config{
		Mail: MailConfig{
			Query:           firstNonEmpty(raw.Mail.Query, envOrDefault("MAIL_QUERY", DefaultQuery)),
			CredentialsFile: firstNonEmpty(raw.Mail.CredentialsFile, envOrDefault("CREDENTIALS_FILE", "credentials.json")),
			TokenFile:       firstNonEmpty(raw.Mail.TokenFile, envOrDefault("TOKEN_FILE", "token.json")),
			MaxResults:      firstPositive(raw.Mail.MaxResults, envOrDefaultInt("MAIL_MAX_RESULTS", 100)),
			Endpoint:        raw.Mail.Endpoint,
			InputFile:       firstNonEmpty(raw.Mail.InputFile, os.Getenv("INPUT_FILE")),
		},
		Inference: InferenceConfig{
			BaseURL:            firstNonEmpty(raw.Inference.BaseURL, os.Getenv("OPENAI_BASE_URL")),
			APIKey:             firstNonEmpty(raw.Inference.APIKey, os.Getenv("OPENAI_API_KEY")),
			Model:              firstNonEmpty(raw.Inference.Model, envOrDefault("OPENAI_MODEL", "gpt-3.5-turbo")),
			SentimentMaxTokens: firstPositive(raw.Inference.SentimentMaxTokens, 50),
			KeywordMaxTokens:   raw.Inference.KeywordMaxTokens,
			BreakerThreshold:   raw.Inference.BreakerThreshold,
			MaxRetries:         envOrDefaultInt("INFERENCE_MAX_RETRIES", 2),
		},
		Pipeline: PipelineConfig{
			Mode:             models.Mode(strings.ToLower(firstNonEmpty(raw.Pipeline.Mode, envOrDefault("ENRICH_MODE", string(models.ModeSentiment))))),
			MaxContentLength: firstPositive(raw.Pipeline.MaxContentLength, normalize.MaxContentLength),
			Workers:          firstPositive(raw.Pipeline.Workers, envOrDefaultInt("WORKERS", 1)),
		},
		Output: OutputConfig{
			CSVPath:  firstNonEmpty(raw.Output.CSV, os.Getenv("OUTPUT_CSV")),
			JSONPath: firstNonEmpty(raw.Output.JSON, os.Getenv("OUTPUT_JSON")),
		},
		RedisURL:    firstNonEmpty(raw.Redis.URL, os.Getenv("REDIS_URL")),
		Queue:       firstNonEmpty(raw.Redis.Queue, envOrDefault("ENRICHED_QUEUE", "enriched_emails")),
		DatabaseURL: firstNonEmpty(raw.Postgres.URL, os.Getenv("DATABASE_URL")),
		Port:        firstPositive(raw.Server.Port, envOrDefaultInt("PORT", 8080)),
	}

	if raw.Inference.MaxRetries != nil {
		cfg.Inference.MaxRetries = *raw.Inference.MaxRetries
	}

	durations := []struct {
		name     string
		yamlVal  string
		envKey   string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"inference.timeout", raw.Inference.Timeout, "INFERENCE_TIMEOUT", 30 * time.Second, &cfg.Inference.Timeout},
		{"inference.initial_backoff", raw.Inference.InitialBackoff, "", 500 * time.Millisecond, &cfg.Inference.InitialBackoff},
		{"inference.max_backoff", raw.Inference.MaxBackoff, "", 10 * time.Second, &cfg.Inference.MaxBackoff},
		{"inference.breaker_cooldown", raw.Inference.BreakerCooldown, "", 30 * time.Second, &cfg.Inference.BreakerCooldown},
		{"redis.dedup_ttl", raw.Redis.DedupTTL, "DEDUP_TTL", 7 * 24 * time.Hour, &cfg.DedupTTL},
		{"server.interval", raw.Server.Interval, "ENRICH_INTERVAL", time.Hour, &cfg.Interval},
	}
	for _, d := range durations {
		if d.yamlVal == "" {
			*d.dst = d.fallback
			if d.envKey != "" {
				*d.dst = envOrDefaultDuration(d.envKey, d.fallback)
			}
			continue
		}
		v, err := time.ParseDuration(d.yamlVal)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", d.name, err)
		}
		*d.dst = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings every run needs. The pipeline mode is
// replaced by its canonical form.
func (c *Config) Validate() error {
	if c.Inference.APIKey == "" {
		return fmt.Errorf("no inference API key configured: set OPENAI_API_KEY or inference.api_key")
	}
	mode, err := models.ParseMode(string(c.Pipeline.Mode))
	if err != nil {
		return fmt.Errorf("invalid pipeline mode: %w", err)
	}
	c.Pipeline.Mode = mode
	if c.Inference.MaxRetries < 0 {
		return fmt.Errorf("inference.max_retries must not be negative")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
