package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// envPrefix namespaces environment overrides, e.g. EPIKOMHUB_DATABASE_PATH.
const envPrefix = "EPIKOMHUB"

// DatabaseConfig locates the SQLite database.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// SessionConfig identifies the signed-in profile by email.
type SessionConfig struct {
	Email string `mapstructure:"email" yaml:"email"`
}

// StorageConfig holds settings for the project file bucket.
type StorageConfig struct {
	Root            string `mapstructure:"root" yaml:"root"`
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	SignedURLTTLSec int    `mapstructure:"signed_url_ttl_sec" yaml:"signed_url_ttl_sec"`
}

// RealtimeConfig controls live change feeds. An empty RedisAddr keeps
// feeds process-local.
type RealtimeConfig struct {
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
	RedisChannel  string `mapstructure:"redis_channel" yaml:"redis_channel"`
}

// RemindersConfig controls the periodic reminder sweep.
type RemindersConfig struct {
	// Schedule is a cron spec understood by robfig/cron, e.g. "@every 15m".
	Schedule     string `mapstructure:"schedule" yaml:"schedule"`
	EmailEnabled bool   `mapstructure:"email_enabled" yaml:"email_enabled"`
}

// SMTPConfig holds the outgoing mail server. The password is read from
// the keyring.
type SMTPConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     string `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	From     string `mapstructure:"from" yaml:"from"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
}

// IMAPConfig holds the mailbox where sent reminders are archived.
// An empty Host disables archiving.
type IMAPConfig struct {
	Host        string `mapstructure:"host" yaml:"host"`
	Port        string `mapstructure:"port" yaml:"port"`
	Username    string `mapstructure:"username" yaml:"username"`
	TLS         bool   `mapstructure:"tls" yaml:"tls"`
	SentMailbox string `mapstructure:"sent_mailbox" yaml:"sent_mailbox"`
}

// LogConfig controls the rotating log file.
type LogConfig struct {
	Path       string `mapstructure:"path" yaml:"path"`
	Level      string `mapstructure:"level" yaml:"level"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
}

// DisplayConfig holds UI/rendering preferences.
type DisplayConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Database  DatabaseConfig  `mapstructure:"database" yaml:"database"`
	Session   SessionConfig   `mapstructure:"session" yaml:"session"`
	Storage   StorageConfig   `mapstructure:"storage" yaml:"storage"`
	Realtime  RealtimeConfig  `mapstructure:"realtime" yaml:"realtime"`
	Reminders RemindersConfig `mapstructure:"reminders" yaml:"reminders"`
	SMTP      SMTPConfig      `mapstructure:"smtp" yaml:"smtp"`
	IMAP      IMAPConfig      `mapstructure:"imap" yaml:"imap"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
	Display   DisplayConfig   `mapstructure:"display" yaml:"display"`
}

// ConfigDir returns ~/.config/epikomhub, or the working directory when
// the home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "epikomhub")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/epikomhub/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	dir := ConfigDir()
	v.SetDefault("database.path", filepath.Join(dir, "hub.db"))
	v.SetDefault("session.email", "")
	v.SetDefault("storage.root", filepath.Join(dir, "files"))
	v.SetDefault("storage.bucket", "project-files")
	v.SetDefault("storage.signed_url_ttl_sec", 3600)
	v.SetDefault("realtime.redis_addr", "")
	v.SetDefault("realtime.redis_password", "")
	v.SetDefault("realtime.redis_db", 0)
	v.SetDefault("realtime.redis_channel", "epikomhub:changes")
	v.SetDefault("reminders.schedule", "@every 15m")
	v.SetDefault("reminders.email_enabled", false)
	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", "587")
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.from", "")
	v.SetDefault("smtp.tls", false)
	v.SetDefault("imap.host", "")
	v.SetDefault("imap.port", "993")
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.tls", true)
	v.SetDefault("imap.sent_mailbox", "Sent")
	v.SetDefault("log.path", filepath.Join(dir, "hub.log"))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("display.theme", "default")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with EPIKOMHUB_ override file values.
// If the file does not exist, defaults (plus overrides) are returned.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	cfg.Database.Path = expandHome(cfg.Database.Path)
	cfg.Storage.Root = expandHome(cfg.Storage.Root)
	cfg.Log.Path = expandHome(cfg.Log.Path)

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("database", cfg.Database)
	v.Set("session", cfg.Session)
	v.Set("storage", cfg.Storage)
	v.Set("realtime", cfg.Realtime)
	v.Set("reminders", cfg.Reminders)
	v.Set("smtp", cfg.SMTP)
	v.Set("imap", cfg.IMAP)
	v.Set("log", cfg.Log)
	v.Set("display", cfg.Display)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
