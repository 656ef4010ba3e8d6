// Package config loads pipeline configuration from config.yaml and the
// environment.
package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/tjfontaine/agent-pipeline/internal/stage"
)

type Config struct {
	Server   ServerConfig  `koanf:"server"`
	App      AppConfig     `koanf:"app"`
	Storage  StorageConfig `koanf:"storage"`
	Backend  BackendConfig `koanf:"backend"`
	Pipeline stage.Config  `koanf:"pipeline"`
}

type ServerConfig struct {
	Port int `koanf:"port"`
}

type AppConfig struct {
	Name string `koanf:"name"`
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // memory, sqlite, redis
	SQLite SQLiteConfig `koanf:"sqlite"`
	Redis  RedisConfig  `koanf:"redis"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type RedisConfig struct {
	URL        string `koanf:"url"`
	TTLSeconds int    `koanf:"ttl_seconds"`
}

type BackendConfig struct {
	Gemini GeminiConfig `koanf:"gemini"`
}

type GeminiConfig struct {
	APIKey  string `koanf:"api_key"`
	Model   string `koanf:"model"`
	BaseURL string `koanf:"base_url"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads config.yaml (when present) and overlays PIPE_ prefixed
// environment variables. Double underscores in variable names map to
// nesting, so PIPE_BACKEND__GEMINI__API_KEY sets backend.gemini.api_key.
func Load() (*Config, error) {
	return LoadFile("config.yaml")
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		// File not found is OK, we'll use env vars
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider("PIPE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "PIPE_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("app.name") {
		k.Set("app.name", "agent-pipeline")
	}
	if !k.Exists("storage.type") {
		k.Set("storage.type", "memory")
	}
	if !k.Exists("backend.gemini.model") {
		k.Set("backend.gemini.model", "gemini-2.0-flash")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	cfg.Backend.Gemini.APIKey = substituteEnvVars(cfg.Backend.Gemini.APIKey)
	cfg.Storage.Redis.URL = substituteEnvVars(cfg.Storage.Redis.URL)

	if cfg.Pipeline.Name == "" {
		cfg.Pipeline = DefaultPipeline()
	}

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
