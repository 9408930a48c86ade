package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file and returns the resulting
// Config with defaults applied for omitted keys. Unknown keys are fatal;
// silently ignoring a typo in a config file leads to hard-to-debug
// behavior.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}

		return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with defaults. Supports running entirely from
// environment variables without a config file.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// EnvOverrides carries configuration read from environment variables.
// Populated by ReadEnvOverrides; a separate struct keeps os.Getenv calls
// out of the resolution logic so tests can inject values directly.
type EnvOverrides struct {
	ConfigPath    string
	ListenAddr    string
	DBPath        string
	LogLevel      string
	ClientID      string
	ClientSecret  string
	HashKey       string
	BlockKey      string
	InsecureHTTP  bool
}

// ReadEnvOverrides reads all recognized AULALINK_* and GOOGLE_* variables.
// A .env file, if present, should be loaded (godotenv) before calling this.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath:   os.Getenv("AULALINK_CONFIG"),
		ListenAddr:   os.Getenv("AULALINK_LISTEN_ADDR"),
		DBPath:       os.Getenv("AULALINK_DB_PATH"),
		LogLevel:     os.Getenv("AULALINK_LOG_LEVEL"),
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		HashKey:      os.Getenv("AULALINK_SESSION_HASH_KEY"),
		BlockKey:     os.Getenv("AULALINK_SESSION_BLOCK_KEY"),
		InsecureHTTP: os.Getenv("AULALINK_INSECURE_HTTP") == "1",
	}
}

// CLIOverrides carries values from command-line flags, which take
// precedence over both the environment and the config file.
type CLIOverrides struct {
	ConfigPath string
	ListenAddr string
	DBPath     string
}

// Resolve applies the override chain (defaults, config file, environment,
// CLI flags) and validates the final result.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Config, error) {
	path := env.ConfigPath
	if cli.ConfigPath != "" {
		path = cli.ConfigPath
	}

	var (
		cfg *Config
		err error
	)

	if path != "" {
		cfg, err = Load(path)
	} else {
		cfg, err = LoadOrDefault("aulalink.toml")
	}

	if err != nil {
		return nil, err
	}

	applyEnv(cfg, env)

	if cli.ListenAddr != "" {
		cfg.ListenAddr = cli.ListenAddr
	}

	if cli.DBPath != "" {
		cfg.DBPath = cli.DBPath
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv overlays non-empty environment values onto cfg.
func applyEnv(cfg *Config, env EnvOverrides) {
	if env.ListenAddr != "" {
		cfg.ListenAddr = env.ListenAddr
	}

	if env.DBPath != "" {
		cfg.DBPath = env.DBPath
	}

	if env.LogLevel != "" {
		cfg.LogLevel = env.LogLevel
	}

	if env.ClientID != "" {
		cfg.Google.ClientID = env.ClientID
	}

	if env.ClientSecret != "" {
		cfg.Google.ClientSecret = env.ClientSecret
	}

	if env.HashKey != "" {
		cfg.Session.HashKey = env.HashKey
	}

	if env.BlockKey != "" {
		cfg.Session.BlockKey = env.BlockKey
	}

	if env.InsecureHTTP {
		cfg.Session.SecureCookies = false
	}
}
