// Package config loads the server configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/rglonek/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// PlanFree is the default plan of an account.
	PlanFree = "free"
	// PlanPro is the paid plan.
	PlanPro = "pro"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Supabase SupabaseConfig `yaml:"supabase"`
	Limits   LimitsConfig   `yaml:"limits"`
	Log      LogConfig      `yaml:"log"`
	Env      string         `yaml:"env" default:"development"`
}

type ServerConfig struct {
	Host         string   `yaml:"host" default:"0.0.0.0"`
	Port         int      `yaml:"port" default:"3001"`
	CORSOrigins  []string `yaml:"cors_origins" default:"[\"http://localhost:5173\"]"`
	RateLimit    int      `yaml:"rate_limit" default:"120"` // requests per minute per client
	MaxBodyBytes int64    `yaml:"max_body_bytes" default:"65536"`
}

type DatabaseConfig struct {
	Path string `yaml:"path" default:"./data/kliiq.db"`
}

type SupabaseConfig struct {
	URL     string        `yaml:"url"`
	AnonKey string        `yaml:"anon_key"`
	Timeout time.Duration `yaml:"timeout" default:"10s"`
}

// LimitsConfig holds per-plan quotas. A zero value means unlimited.
type LimitsConfig struct {
	MaxAppsPerPack     int `yaml:"max_apps_per_pack" default:"10"`
	FreeMaxPacks       int `yaml:"free_max_packs" default:"3"`
	FreeMaxPackDeletes int `yaml:"free_max_pack_deletes" default:"3"`
	ProMaxPacks        int `yaml:"pro_max_packs" default:"50"`
	ProMaxPackDeletes  int `yaml:"pro_max_pack_deletes"`
}

type LogConfig struct {
	Level string `yaml:"level" default:"info"`
	JSON  bool   `yaml:"json"`
}

// PlanLimits is the effective quota for a single plan.
type PlanLimits struct {
	MaxPacks       int `json:"max_packs"`
	MaxPackDeletes int `json:"max_pack_deletes"`
	MaxAppsPerPack int `json:"max_apps_per_pack"`
}

// ForPlan returns the limits of the given plan, falling back to the free plan.
func (l LimitsConfig) ForPlan(plan string) PlanLimits {
	if plan == PlanPro {
		return PlanLimits{
			MaxPacks:       l.ProMaxPacks,
			MaxPackDeletes: l.ProMaxPackDeletes,
			MaxAppsPerPack: l.MaxAppsPerPack,
		}
	}
	return PlanLimits{
		MaxPacks:       l.FreeMaxPacks,
		MaxPackDeletes: l.FreeMaxPackDeletes,
		MaxAppsPerPack: l.MaxAppsPerPack,
	}
}

// envOverrides lists the environment variables the service honors. They are
// applied after the YAML file so deployments can run without one.
type envOverrides struct {
	Port            int      `envconfig:"PORT"`
	SupabaseURL     string   `envconfig:"SUPABASE_URL"`
	SupabaseAnonKey string   `envconfig:"SUPABASE_ANON_KEY"`
	AppEnv          string   `envconfig:"APP_ENV"`
	DatabasePath    string   `envconfig:"DATABASE_PATH"`
	LogLevel        string   `envconfig:"LOG_LEVEL"`
	CORSOrigins     []string `envconfig:"CORS_ORIGINS"`
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks the settings the server cannot start without.
func (c *Config) Validate() error {
	if c.Supabase.URL == "" {
		return errors.New("supabase url is required (SUPABASE_URL)")
	}
	if c.Supabase.AnonKey == "" {
		return errors.New("supabase anon key is required (SUPABASE_ANON_KEY)")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	if c.Limits.MaxAppsPerPack <= 0 {
		return errors.New("limits.max_apps_per_pack must be positive")
	}
	for _, o := range c.Server.CORSOrigins {
		o = strings.TrimSpace(o)
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("invalid cors origin %q: must be \"*\" or start with http:// or https://", o)
		}
	}
	return nil
}

// Load builds a Config from defaults, the YAML file at path (skipped when path
// is empty) and the environment, in that order.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		return nil, fmt.Errorf("could not set defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("could not process environment variables: %w", err)
	}

	if env.Port != 0 {
		cfg.Server.Port = env.Port
	}
	if env.SupabaseURL != "" {
		cfg.Supabase.URL = env.SupabaseURL
	}
	if env.SupabaseAnonKey != "" {
		cfg.Supabase.AnonKey = env.SupabaseAnonKey
	}
	if env.AppEnv != "" {
		cfg.Env = env.AppEnv
	}
	if env.DatabasePath != "" {
		cfg.Database.Path = env.DatabasePath
	}
	if env.LogLevel != "" {
		cfg.Log.Level = env.LogLevel
	}
	if len(env.CORSOrigins) > 0 {
		cfg.Server.CORSOrigins = env.CORSOrigins
	}
	return nil
}
