// Package config loads service configuration from a YAML file with
// environment-variable overrides for deployment settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	GCP      GCPConfig      `yaml:"gcp"`
	Vertex   VertexConfig   `yaml:"vertex"`
	Auth     AuthConfig     `yaml:"auth"`
	Mirror   MirrorConfig   `yaml:"mirror"`
	Pipeline PipelineConfig `yaml:"pipeline"`
}

type GCPConfig struct {
	ProjectID  string `yaml:"project_id"`
	Region     string `yaml:"region"`
	Bucket     string `yaml:"bucket"`
	Collection string `yaml:"collection"`
}

type VertexConfig struct {
	Model                 string  `yaml:"model"`
	DetectorModel         string  `yaml:"detector_model"`
	Temperature           float32 `yaml:"temperature"`
	MaxTokens             int32   `yaml:"max_tokens"`
	MaxAttempts           int     `yaml:"max_attempts"`
	InitialBackoffSeconds int     `yaml:"initial_backoff_seconds"`
	MaxBackoffSeconds     int     `yaml:"max_backoff_seconds"`
}

// InitialBackoff returns the configured minimum retry delay.
func (c VertexConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffSeconds) * time.Second
}

// MaxBackoff returns the configured maximum retry delay.
func (c VertexConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffSeconds) * time.Second
}

type AuthConfig struct {
	JWTSecret        string `yaml:"jwt_secret"`
	TokenExpireHours int    `yaml:"token_expire_hours"`
}

type MirrorConfig struct {
	Path string `yaml:"path"`
}

type PipelineConfig struct {
	MaxFileBytes int64 `yaml:"max_file_bytes"`
}

// Load reads the YAML file at path, applies environment overrides and
// fills in defaults. A missing file is not an error; environment and
// defaults alone can configure the service.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)

	if cfg.GCP.ProjectID == "" {
		return nil, fmt.Errorf("gcp.project_id must be set (or GCP_PROJECT_ID)")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret must be set (or LEGALDOCS_JWT_SECRET)")
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.GCP.ProjectID = getEnv("GCP_PROJECT_ID", cfg.GCP.ProjectID)
	cfg.GCP.Region = getEnv("GCP_REGION", cfg.GCP.Region)
	cfg.GCP.Bucket = getEnv("LEGALDOCS_BUCKET", cfg.GCP.Bucket)
	cfg.GCP.Collection = getEnv("LEGALDOCS_COLLECTION", cfg.GCP.Collection)
	cfg.Auth.JWTSecret = getEnv("LEGALDOCS_JWT_SECRET", cfg.Auth.JWTSecret)
	cfg.Vertex.Model = getEnv("LEGALDOCS_MODEL", cfg.Vertex.Model)
	cfg.Mirror.Path = getEnv("LEGALDOCS_MIRROR_PATH", cfg.Mirror.Path)

	if v := os.Getenv("LEGALDOCS_MAX_FILE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.Pipeline.MaxFileBytes = n
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.GCP.Region == "" {
		cfg.GCP.Region = "us-central1"
	}
	if cfg.GCP.Collection == "" {
		cfg.GCP.Collection = "documents"
	}
	if cfg.Vertex.Model == "" {
		cfg.Vertex.Model = "gemini-1.5-pro"
	}
	if cfg.Vertex.DetectorModel == "" {
		cfg.Vertex.DetectorModel = "gemini-1.5-flash"
	}
	if cfg.Vertex.Temperature == 0 {
		cfg.Vertex.Temperature = 0.2
	}
	if cfg.Vertex.MaxTokens == 0 {
		cfg.Vertex.MaxTokens = 2048
	}
	if cfg.Vertex.MaxAttempts == 0 {
		cfg.Vertex.MaxAttempts = 3
	}
	if cfg.Vertex.InitialBackoffSeconds == 0 {
		cfg.Vertex.InitialBackoffSeconds = 4
	}
	if cfg.Vertex.MaxBackoffSeconds == 0 {
		cfg.Vertex.MaxBackoffSeconds = 10
	}
	if cfg.Auth.TokenExpireHours == 0 {
		cfg.Auth.TokenExpireHours = 24
	}
	if cfg.Mirror.Path == "" {
		cfg.Mirror.Path = "legaldocs-mirror.db"
	}
	if cfg.Pipeline.MaxFileBytes == 0 {
		cfg.Pipeline.MaxFileBytes = 10 << 20
	}
}

// getEnv reads an environment variable or returns the fallback.
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
