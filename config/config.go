package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rohanthewiz/serr"
	"gopkg.in/yaml.v3"
)

const (
	defaultAddress       = ":8700"
	defaultDBPath        = "steward.db"
	defaultPreviewLimit  = 500
	defaultSweepInterval = 10 * time.Minute
	defaultSessionExpiry = 24 * time.Hour
)

// Config holds application configuration
type Config struct {
	Address       string
	DBPath        string
	PreviewLimit  int
	SweepInterval time.Duration
	SessionExpiry time.Duration
	AdminActorIDs []string
}

// Load builds the configuration from an optional YAML file plus
// environment variable overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := &Config{
		Address:       defaultAddress,
		DBPath:        defaultDBPath,
		PreviewLimit:  defaultPreviewLimit,
		SweepInterval: defaultSweepInterval,
		SessionExpiry: defaultSessionExpiry,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, serr.Wrap(err, "failed to read config file", "path", path)
		}
		if err := applyFile(cfg, data); err != nil {
			return nil, serr.Wrap(err, "failed to parse config file", "path", path)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// fileConfig is the YAML shape; durations are written as strings ("10m")
type fileConfig struct {
	Address       string   `yaml:"address"`
	DBPath        string   `yaml:"db_path"`
	PreviewLimit  int      `yaml:"preview_limit"`
	SweepInterval string   `yaml:"sweep_interval"`
	SessionExpiry string   `yaml:"session_expiry"`
	AdminActorIDs []string `yaml:"admin_actor_ids"`
}

func applyFile(cfg *Config, data []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return err
	}
	if fc.Address != "" {
		cfg.Address = fc.Address
	}
	if fc.DBPath != "" {
		cfg.DBPath = fc.DBPath
	}
	if fc.PreviewLimit > 0 {
		cfg.PreviewLimit = fc.PreviewLimit
	}
	if fc.SweepInterval != "" {
		d, err := time.ParseDuration(fc.SweepInterval)
		if err != nil {
			return serr.Wrap(err, "invalid sweep_interval")
		}
		cfg.SweepInterval = d
	}
	if fc.SessionExpiry != "" {
		d, err := time.ParseDuration(fc.SessionExpiry)
		if err != nil {
			return serr.Wrap(err, "invalid session_expiry")
		}
		cfg.SessionExpiry = d
	}
	if len(fc.AdminActorIDs) > 0 {
		cfg.AdminActorIDs = fc.AdminActorIDs
	}
	return nil
}

// applyEnv overlays environment variables onto the config
func applyEnv(cfg *Config) {
	if v := os.Getenv("STEWARD_ADDRESS"); v != "" {
		cfg.Address = v
	}
	if v := os.Getenv("STEWARD_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("STEWARD_PREVIEW_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PreviewLimit = n
		}
	}
	if v := os.Getenv("STEWARD_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SweepInterval = d
		}
	}
	if v := os.Getenv("STEWARD_SESSION_EXPIRY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SessionExpiry = d
		}
	}
	if v := os.Getenv("STEWARD_ADMINS"); v != "" {
		var admins []string
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				admins = append(admins, id)
			}
		}
		cfg.AdminActorIDs = admins
	}
}

// IsAdmin reports whether the given actor is a configured administrator
func (c *Config) IsAdmin(actorID string) bool {
	for _, id := range c.AdminActorIDs {
		if id == actorID {
			return true
		}
	}
	return false
}
