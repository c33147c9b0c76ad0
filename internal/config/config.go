package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// EmailConfig holds the outbound email provider settings used for
// session reminders. If APIKey is empty the server falls back to a
// no-op sender that only logs.
type EmailConfig struct {
	// APIKey is the Resend API key.
	APIKey string `yaml:"api_key" json:"api_key"`
	// From is the sender address, e.g. "Trainerdesk <noreply@trainerdesk.app>".
	From string `yaml:"from" json:"from"`
	// ReplyTo, if set, is added to every outbound message.
	ReplyTo string `yaml:"reply_to,omitempty" json:"reply_to,omitempty"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// DBPath is the SQLite database file path.
	DBPath string `yaml:"db_path" json:"db_path"`

	// Timezone is the IANA timezone the trainer works in (e.g. "Pacific/Auckland").
	// All date keys and calendar boundaries are computed in this zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// PaddingWeeks is how many weeks of surrounding days to load on each
	// side of a month so leading/trailing calendar cells are populated.
	PaddingWeeks int `yaml:"padding_weeks" json:"padding_weeks"`

	// ReminderCron is a cron-style schedule string for the daily reminder
	// sweep (e.g. "0 18 * * *" for 6pm). If empty, reminders are disabled.
	ReminderCron string `yaml:"reminder_cron" json:"reminder_cron"`

	// PasscodeHash is the bcrypt hash of the access passcode. If empty,
	// the API runs unauthenticated (local-only setups).
	PasscodeHash string `yaml:"passcode_hash,omitempty" json:"passcode_hash,omitempty"`

	// Email configures the reminder sender.
	Email EmailConfig `yaml:"email" json:"email"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:       "127.0.0.1:8080",
		DBPath:       "trainerdesk.db",
		Timezone:     "Local",
		PaddingWeeks: 1,
		ReminderCron: "",
		Email: EmailConfig{
			From: "Trainerdesk <noreply@trainerdesk.app>",
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = "127.0.0.1:8080"
	}
	if c.DBPath == "" {
		c.DBPath = "trainerdesk.db"
	}
	if c.Timezone == "" {
		c.Timezone = "Local"
	}
	if c.PaddingWeeks <= 0 {
		c.PaddingWeeks = 1
	}
	if c.Email.From == "" {
		c.Email.From = "Trainerdesk <noreply@trainerdesk.app>"
	}
}

// Location resolves the configured timezone. "Local" or an empty value
// resolves to time.Local; invalid names return an error.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// applyEnv lets a handful of deployment-sensitive settings be overridden
// from the environment without editing the config file.
func (c *Config) applyEnv() {
	if v := os.Getenv("TRAINERDESK_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := os.Getenv("TRAINERDESK_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("TRAINERDESK_TIMEZONE"); v != "" {
		c.Timezone = v
	}
	if v := os.Getenv("TRAINERDESK_PASSCODE_HASH"); v != "" {
		c.PasscodeHash = v
	}
	if v := os.Getenv("RESEND_API_KEY"); v != "" {
		c.Email.APIKey = v
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - If the file exists, it is unmarshalled and normalized.
//   - Environment overrides (TRAINERDESK_*, RESEND_API_KEY) are applied last.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	cfg.applyEnv()

	return &cfg, nil
}

// Save writes the given configuration to the specified path.
//
// The write is atomic: the config is marshalled to a temp file in the
// same directory, chmod'd to 0600, then renamed over the target.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".trainerdesk-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
