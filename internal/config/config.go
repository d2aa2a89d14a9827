package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Attempt struct {
		TTL string `yaml:"ttl"`
	} `yaml:"attempt"`
	Generation struct {
		WebhookURL        string   `yaml:"webhook_url"`
		Timeout           string   `yaml:"timeout"`
		MaxErrorBody      int      `yaml:"max_error_body"`
		MaxUploadMB       int      `yaml:"max_upload_mb"`
		AllowedExtensions []string `yaml:"allowed_extensions"`
	} `yaml:"generation"`
}

// Load reads YAML config from path and applies environment overrides.
// A missing file is not an error; everything can come from the environment.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	cfg.applyEnv(os.LookupEnv)
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	set("PORT", &c.Server.Port)
	set("LOG_LEVEL", &c.Log.Level)
	set("LOG_FORMAT", &c.Log.Format)
	set("REDIS_ADDR", &c.Redis.Addr)
	set("REDIS_PASSWORD", &c.Redis.Password)
	set("POSTGRES_URL", &c.Postgres.URL)
	set("GENERATION_WEBHOOK_URL", &c.Generation.WebhookURL)
	set("GENERATION_TIMEOUT", &c.Generation.Timeout)
	if v, ok := lookup("REDIS_DB"); ok {
		if db, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			c.Redis.DB = db
		}
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
