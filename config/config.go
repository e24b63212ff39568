package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	EnvConfigPath     = "REMORA_CONFIG"
	DefaultConfigPath = "~/.remora/config.yaml"
	envPrefix         = "REMORA_"
)

type Config struct {
	Telegram    TelegramConfig    `koanf:"telegram"`
	Database    DatabaseConfig    `koanf:"database"`
	Timezone    string            `koanf:"timezone"`
	Server      ServerConfig      `koanf:"server"`
	Alarm       AlarmConfig       `koanf:"alarm"`
	Permissions PermissionsConfig `koanf:"permissions"`
	Live        LiveConfig        `koanf:"live"`
	CalDAV      CalDAVConfig      `koanf:"caldav"`
	Client      ClientConfig      `koanf:"client"`

	Location *time.Location `koanf:"-"`
}

type TelegramConfig struct {
	Token  string `koanf:"token"`
	ChatID int64  `koanf:"chat_id"`
}

type DatabaseConfig struct {
	Path string `koanf:"path"`
}

type ServerConfig struct {
	Port     string `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
}

type AlarmConfig struct {
	Mode string `koanf:"mode"` // notification, fullscreen or both
	Bell bool   `koanf:"bell"`
	// RingPattern alternates on and off durations in milliseconds.
	RingPattern []int `koanf:"ring_pattern"`
}

type PermissionsConfig struct {
	Notifications bool `koanf:"notifications"`
	ExactAlarms   bool `koanf:"exact_alarms"`
}

type LiveConfig struct {
	GracePeriod time.Duration `koanf:"grace_period"`
}

type CalDAVConfig struct {
	URL      string `koanf:"url"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	Calendar string `koanf:"calendar"`
}

type ClientConfig struct {
	URL string `koanf:"url"`
}

func DefaultConfig() map[string]interface{} {
	return map[string]interface{}{
		"telegram": map[string]interface{}{
			"token":   "",
			"chat_id": 0,
		},
		"database": map[string]interface{}{
			"path": "./data/remora.db",
		},
		"timezone": "Europe/Moscow",
		"server": map[string]interface{}{
			"port":     "8080",
			"username": "",
			"password": "",
		},
		"alarm": map[string]interface{}{
			"mode":         "both",
			"bell":         true,
			"ring_pattern": []int{500, 500},
		},
		"permissions": map[string]interface{}{
			"notifications": true,
			"exact_alarms":  true,
		},
		"live": map[string]interface{}{
			"grace_period": "5s",
		},
		"caldav": map[string]interface{}{
			"url":      "",
			"username": "",
			"password": "",
			"calendar": "",
		},
		"client": map[string]interface{}{
			"url": "",
		},
	}
}

// Load reads defaults, then the YAML file at path (when it exists), then
// REMORA_* variables, then the plain variable names used by older deployments.
// A .env file in the working directory is loaded first.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(DefaultConfig(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}
	if path == "" {
		path = DefaultConfigPath
	}
	path = expandPath(path)
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	// REMORA_SERVER__PORT -> server.port
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, envPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if err := applyPlainEnv(k); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Database.Path = expandPath(cfg.Database.Path)
	if cfg.Client.URL == "" {
		cfg.Client.URL = "http://localhost:" + cfg.Server.Port
	}

	tz, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %w", err)
	}
	cfg.Location = tz

	return &cfg, nil
}

var plainEnv = map[string]string{
	"TELEGRAM_BOT_TOKEN": "telegram.token",
	"DATABASE_PATH":      "database.path",
	"TIMEZONE":           "timezone",
	"SERVER_PORT":        "server.port",
	"API_USERNAME":       "server.username",
	"API_PASSWORD":       "server.password",
	"CALDAV_URL":         "caldav.url",
	"CALDAV_USERNAME":    "caldav.username",
	"CALDAV_PASSWORD":    "caldav.password",
	"CALDAV_CALENDAR":    "caldav.calendar",
	"REMORA_URL":         "client.url",
}

func applyPlainEnv(k *koanf.Koanf) error {
	for name, key := range plainEnv {
		if v := os.Getenv(name); v != "" {
			if err := k.Set(key, v); err != nil {
				return fmt.Errorf("set %s: %w", key, err)
			}
		}
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID must be a number")
		}
		if err := k.Set("telegram.chat_id", id); err != nil {
			return fmt.Errorf("set telegram.chat_id: %w", err)
		}
	}
	return nil
}

func (c *Config) Validate() error {
	switch c.Alarm.Mode {
	case "notification", "fullscreen", "both":
	default:
		return fmt.Errorf("unknown alarm mode: %s (supported: notification, fullscreen, both)", c.Alarm.Mode)
	}

	if c.Alarm.Mode == "notification" && !c.TelegramEnabled() {
		return fmt.Errorf("alarm mode notification requires TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID")
	}

	if c.Live.GracePeriod < 0 {
		return fmt.Errorf("live.grace_period must not be negative")
	}

	for _, ms := range c.Alarm.RingPattern {
		if ms <= 0 {
			return fmt.Errorf("alarm.ring_pattern values must be positive")
		}
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if (c.Server.Username == "") != (c.Server.Password == "") {
		return fmt.Errorf("API_USERNAME and API_PASSWORD must be set together")
	}

	return nil
}

func (c *Config) TelegramEnabled() bool {
	return c.Telegram.Token != "" && c.Telegram.ChatID != 0
}

func (c *Config) APIEnabled() bool {
	return c.Server.Username != "" && c.Server.Password != ""
}

func (c *Config) CalDAVEnabled() bool {
	return c.CalDAV.Username != "" && c.CalDAV.Password != "" && c.CalDAV.Calendar != ""
}

// RingPattern returns the alarm pattern as durations.
func (c *Config) RingPattern() []time.Duration {
	out := make([]time.Duration, 0, len(c.Alarm.RingPattern))
	for _, ms := range c.Alarm.RingPattern {
		out = append(out, time.Duration(ms)*time.Millisecond)
	}
	return out
}

func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}

	return path
}
