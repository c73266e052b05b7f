// Package config loads staffops settings from a YAML file, a .env file and
// the process environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	LLM       LLMConfig       `yaml:"llm"`
	Proposals ProposalsConfig `yaml:"proposals"`
	Records   RecordsConfig   `yaml:"records"`
	Temporal  TemporalConfig  `yaml:"temporal"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type StoreConfig struct {
	// Backend is "file" or "postgres".
	Backend         string `yaml:"backend"`
	DataDir         string `yaml:"data_dir"`
	DatabaseURL     string `yaml:"database_url"`
	CompressBackups bool   `yaml:"compress_backups"`
}

type LLMConfig struct {
	// APIKey enables the Gemini-backed classifier, matcher and correction
	// parser. Without it only the deterministic paths run.
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	Timeout string `yaml:"timeout"`
}

type ProposalsConfig struct {
	MaxAge        string `yaml:"max_age"`
	GracePeriod   string `yaml:"grace_period"`
	SweepInterval string `yaml:"sweep_interval"`
}

type RecordsConfig struct {
	RetentionYears int `yaml:"retention_years"`
}

type TemporalConfig struct {
	HostPort  string `yaml:"host_port"`
	Namespace string `yaml:"namespace"`
	TaskQueue string `yaml:"task_queue"`
}

type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Store: StoreConfig{
			Backend: "file",
			DataDir: "./data",
		},
		LLM: LLMConfig{
			Model:   "gemini-2.5-flash",
			Timeout: "15s",
		},
		Proposals: ProposalsConfig{
			MaxAge:        "24h",
			GracePeriod:   "5m",
			SweepInterval: "1m",
		},
		Records: RecordsConfig{RetentionYears: 7},
		Temporal: TemporalConfig{
			HostPort:  "localhost:7233",
			Namespace: "default",
			TaskQueue: "STAFFOPS_REVIEW_TASK_QUEUE",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads envFile (if present) into the environment, then path (if
// present) over the defaults, then applies environment overrides. Either
// path may be empty.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.LLM.APIKey = v
	}
	if v := os.Getenv("STAFFOPS_GEMINI_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Store.DatabaseURL = v
		c.Store.Backend = "postgres"
	}
	if v := os.Getenv("STAFFOPS_STORE_BACKEND"); v != "" {
		c.Store.Backend = v
	}
	if v := os.Getenv("STAFFOPS_DATA_DIR"); v != "" {
		c.Store.DataDir = v
	}
	if v := os.Getenv("STAFFOPS_COMPRESS_BACKUPS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Store.CompressBackups = b
		}
	}
	if v := os.Getenv("STAFFOPS_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("STAFFOPS_RETENTION_YEARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Records.RetentionYears = n
		}
	}
	if v := os.Getenv("STAFFOPS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("TEMPORAL_HOSTPORT"); v != "" {
		c.Temporal.HostPort = v
	}
	if v := os.Getenv("TEMPORAL_NAMESPACE"); v != "" {
		c.Temporal.Namespace = v
	}
}

func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "file":
		if c.Store.DataDir == "" {
			return errors.New("config: store.data_dir is required for the file backend")
		}
	case "postgres":
		if c.Store.DatabaseURL == "" {
			return errors.New("config: store.database_url (or DATABASE_URL) is required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q (valid: file, postgres)", c.Store.Backend)
	}
	if c.Records.RetentionYears < 1 {
		return fmt.Errorf("config: records.retention_years must be at least 1, got %d", c.Records.RetentionYears)
	}
	for name, v := range map[string]string{
		"llm.timeout":              c.LLM.Timeout,
		"proposals.max_age":        c.Proposals.MaxAge,
		"proposals.grace_period":   c.Proposals.GracePeriod,
		"proposals.sweep_interval": c.Proposals.SweepInterval,
	} {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("config: %s must be positive", name)
		}
	}
	return nil
}

func (c LLMConfig) Enabled() bool { return c.APIKey != "" }

func (c LLMConfig) CallTimeout() time.Duration { return parseOr(c.Timeout, 15*time.Second) }

func (c ProposalsConfig) MaxAgeDuration() time.Duration { return parseOr(c.MaxAge, 24*time.Hour) }

func (c ProposalsConfig) Grace() time.Duration { return parseOr(c.GracePeriod, 5*time.Minute) }

func (c ProposalsConfig) Interval() time.Duration { return parseOr(c.SweepInterval, time.Minute) }

func parseOr(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
