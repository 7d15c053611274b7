// Package config loads client settings from, in increasing priority, the
// built-in defaults, an optional YAML file and AUTHCLIENT_* environment
// variables. A config.env file in the user config directory is loaded into
// the environment first.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	AppName     = "authclient"
	EnvFileName = "config.env"
	EnvPrefix   = "AUTHCLIENT_"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

type Config struct {
	BaseURL        string         `koanf:"base_url"`
	RefreshPath    string         `koanf:"refresh_path"`
	RefreshTimeout time.Duration  `koanf:"refresh_timeout"`
	RequestTimeout time.Duration  `koanf:"request_timeout"`
	Store          StoreConfig    `koanf:"store"`
	Telegram       TelegramConfig `koanf:"telegram"`
	Log            LogConfig      `koanf:"log"`
}

type StoreConfig struct {
	Backend     string `koanf:"backend"`
	SQLitePath  string `koanf:"sqlite_path"`
	TokenKey    string `koanf:"token_key"`
	RedisAddr   string `koanf:"redis_addr"`
	RedisPrefix string `koanf:"redis_prefix"`
}

type TelegramConfig struct {
	BotToken string `koanf:"bot_token"`
	ChatID   int64  `koanf:"chat_id"`
}

type LogConfig struct {
	File  string `koanf:"file"`
	Level string `koanf:"level"`
}

func Default() Config {
	return Config{
		RefreshPath:    "/auth/refresh",
		RefreshTimeout: 10 * time.Second,
		RequestTimeout: 30 * time.Second,
		Store: StoreConfig{
			Backend:     BackendSQLite,
			SQLitePath:  filepath.Join(Dir(), "tokens.db"),
			RedisAddr:   "localhost:6379",
			RedisPrefix: "authclient:",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Dir returns the per-user config directory for the app.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	base, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", AppName)
	}
	return filepath.Join(base, AppName)
}

// LoadEnvFile loads environment variables from config.env in the user's
// config directory. Errors are ignored since the file may not exist.
func LoadEnvFile() {
	_ = godotenv.Load(filepath.Join(Dir(), EnvFileName))
}

// envKey maps AUTHCLIENT_STORE__SQLITE_PATH to store.sqlite_path. A double
// underscore separates sections so that single underscores survive in keys.
func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "__", ".")
}

// Load reads the configuration. path may be empty to skip the YAML file.
func Load(path string) (Config, error) {
	cfg := Default()
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return cfg, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return cfg, fmt.Errorf("load env: %w", err)
	}

	if err := k.Unmarshal("", &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if !strings.HasPrefix(c.RefreshPath, "/") {
		return fmt.Errorf("refresh_path must start with /: %q", c.RefreshPath)
	}
	if c.RefreshTimeout <= 0 {
		return fmt.Errorf("refresh_timeout must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive")
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendSQLite:
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("store.sqlite_path is required for the sqlite backend")
		}
		if c.Store.TokenKey == "" {
			return fmt.Errorf("store.token_key is required for the sqlite backend")
		}
	case BackendRedis:
		if c.Store.RedisAddr == "" {
			return fmt.Errorf("store.redis_addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("store.backend must be one of memory, sqlite, redis: %q", c.Store.Backend)
	}

	if c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram.chat_id is required when telegram.bot_token is set")
	}
	return nil
}
