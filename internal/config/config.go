// Package config loads and validates aulalink server configuration from a
// TOML file, applying environment variable and CLI flag overrides.
package config

import (
	"encoding/base64"
	"fmt"
)

// Default values used when the config file omits a key.
const (
	defaultListenAddr = ":8080"
	defaultDBPath     = "aulalink.db"
	defaultLogLevel   = "info"
)

// Config is the top-level configuration structure, mirroring the TOML file.
type Config struct {
	ListenAddr string  `toml:"listen_addr"`
	DBPath     string  `toml:"database_path"`
	LogLevel   string  `toml:"log_level"`
	Google     Google  `toml:"google"`
	Session    Session `toml:"session"`
}

// Google holds the OAuth2 client registration used against Google's
// identity and Classroom APIs.
type Google struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// Session holds the cookie sealing keys and transport policy.
// HashKey and BlockKey are base64-encoded; HashKey authenticates the
// cookie, BlockKey encrypts it. Both are required: the payload carries
// OAuth credentials.
type Session struct {
	HashKey       string `toml:"hash_key"`
	BlockKey      string `toml:"block_key"`
	SecureCookies bool   `toml:"secure_cookies"`
}

// DefaultConfig returns a Config populated with all default values.
// Secrets have no defaults; Validate rejects a config without them.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr: defaultListenAddr,
		DBPath:     defaultDBPath,
		LogLevel:   defaultLogLevel,
		Session: Session{
			SecureCookies: true,
		},
	}
}

// validLogLevels is the closed set accepted for log_level.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks that the resolved configuration is complete and
// internally consistent. Called after all override layers are applied so
// secrets may arrive from the environment rather than the file.
func Validate(cfg *Config) error {
	if cfg.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr must not be empty")
	}

	if cfg.DBPath == "" {
		return fmt.Errorf("config: database_path must not be empty")
	}

	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("config: invalid log_level %q (debug, info, warn, error)", cfg.LogLevel)
	}

	if cfg.Google.ClientID == "" || cfg.Google.ClientSecret == "" {
		return fmt.Errorf("config: google.client_id and google.client_secret are required")
	}

	if _, err := cfg.Session.DecodedHashKey(); err != nil {
		return fmt.Errorf("config: session.hash_key: %w", err)
	}

	if _, err := cfg.Session.DecodedBlockKey(); err != nil {
		return fmt.Errorf("config: session.block_key: %w", err)
	}

	return nil
}

// Securecookie key length requirements.
const (
	minHashKeyLen = 32
	blockKeyLen   = 32
)

// DecodedHashKey returns the raw cookie authentication key.
func (s Session) DecodedHashKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s.HashKey)
	if err != nil {
		return nil, fmt.Errorf("not valid base64: %w", err)
	}

	if len(key) < minHashKeyLen {
		return nil, fmt.Errorf("must decode to at least %d bytes, got %d", minHashKeyLen, len(key))
	}

	return key, nil
}

// DecodedBlockKey returns the raw cookie encryption key.
// AES requires exactly 16, 24 or 32 bytes; we standardize on 32.
func (s Session) DecodedBlockKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s.BlockKey)
	if err != nil {
		return nil, fmt.Errorf("not valid base64: %w", err)
	}

	if len(key) != blockKeyLen {
		return nil, fmt.Errorf("must decode to exactly %d bytes, got %d", blockKeyLen, len(key))
	}

	return key, nil
}
