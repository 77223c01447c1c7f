// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for wattchat.
//
// Supports both TOML and JSON configuration formats, with defaults, a .env
// file, WATTCHAT_* environment overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.wattchat/config.toml
//   - ~/.wattchat/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/jeranaias/wattchat/internal/storage"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete wattchat configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// Server is the chat backend.
	Server ServerConfig `toml:"server" json:"server"`

	// Session controls persistence of the open conversation.
	Session SessionConfig `toml:"session" json:"session"`

	// Storage selects where session state lives.
	Storage StorageConfig `toml:"storage" json:"storage"`

	// Auth controls the login gate.
	Auth AuthConfig `toml:"auth" json:"auth"`

	// UI configuration
	UI UIConfig `toml:"ui" json:"ui"`

	// Log configuration
	Log LogConfig `toml:"log" json:"log"`
}

// ServerConfig describes the chat backend.
type ServerConfig struct {
	// BaseURL is the backend root, e.g. http://localhost:8080.
	BaseURL string `toml:"base_url" json:"base_url" env:"WATTCHAT_SERVER_BASE_URL"`
	// ChatPath is the chat completion endpoint.
	ChatPath string `toml:"chat_path" json:"chat_path" env:"WATTCHAT_SERVER_CHAT_PATH"`
	// TimeoutSecs bounds every request.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs" env:"WATTCHAT_SERVER_TIMEOUT_SECS"`
	// SyncChats mirrors each exchange to the backend's chat records.
	SyncChats bool `toml:"sync_chats" json:"sync_chats" env:"WATTCHAT_SERVER_SYNC_CHATS"`
}

// SessionConfig controls the inactivity window.
type SessionConfig struct {
	TimeoutMins int `toml:"timeout_mins" json:"timeout_mins" env:"WATTCHAT_SESSION_TIMEOUT_MINS"`
	PollSecs    int `toml:"poll_secs" json:"poll_secs" env:"WATTCHAT_SESSION_POLL_SECS"`
	// WarningSecs is how long before expiry the notice appears; 0 disables it.
	WarningSecs int `toml:"warning_secs" json:"warning_secs" env:"WATTCHAT_SESSION_WARNING_SECS"`
}

// StorageConfig selects the session store.
type StorageConfig struct {
	// Backend is file, sqlite, redis or memory.
	Backend string `toml:"backend" json:"backend" env:"WATTCHAT_STORAGE_BACKEND"`
	// Path is the state file or database; empty uses ~/.wattchat.
	Path          string `toml:"path" json:"path" env:"WATTCHAT_STORAGE_PATH"`
	RedisURL      string `toml:"redis_url" json:"redis_url" env:"WATTCHAT_REDIS_URL"`
	RedisPrefix   string `toml:"redis_prefix" json:"redis_prefix" env:"WATTCHAT_REDIS_PREFIX"`
	RedisTTLHours int    `toml:"redis_ttl_hours" json:"redis_ttl_hours" env:"WATTCHAT_REDIS_TTL_HOURS"`
	// EncryptToken seals the session token at rest with Passphrase.
	EncryptToken bool `toml:"encrypt_token" json:"encrypt_token" env:"WATTCHAT_STORAGE_ENCRYPT_TOKEN"`
	// Passphrase is only ever read from the environment.
	Passphrase string `toml:"-" json:"-" env:"WATTCHAT_PASSPHRASE"`
}

// AuthConfig controls the login gate.
type AuthConfig struct {
	// VerifyRemote asks the backend to confirm the token at startup.
	VerifyRemote bool `toml:"verify_remote" json:"verify_remote" env:"WATTCHAT_AUTH_VERIFY_REMOTE"`
	// LoginAttemptsPerMin limits password attempts.
	LoginAttemptsPerMin int `toml:"login_attempts_per_min" json:"login_attempts_per_min" env:"WATTCHAT_AUTH_LOGIN_ATTEMPTS_PER_MIN"`
}

// UIConfig contains terminal UI settings.
type UIConfig struct {
	// RevealMs is the delay between revealed characters of a new answer.
	RevealMs int `toml:"reveal_ms" json:"reveal_ms" env:"WATTCHAT_UI_REVEAL_MS"`
	// Markdown renders finished answers with glamour.
	Markdown bool `toml:"markdown" json:"markdown" env:"WATTCHAT_UI_MARKDOWN"`
	// WordWrap is the maximum bubble width in cells; 0 follows the terminal.
	WordWrap int `toml:"word_wrap" json:"word_wrap" env:"WATTCHAT_UI_WORD_WRAP"`
	// Theme is auto, dark or light.
	Theme string `toml:"theme" json:"theme" env:"WATTCHAT_UI_THEME"`
}

// LogConfig configures the file logger.
type LogConfig struct {
	Level string `toml:"level" json:"level" env:"WATTCHAT_LOG_LEVEL"`
	// Path is the log file; empty uses ~/.wattchat/wattchat.log.
	Path string `toml:"path" json:"path" env:"WATTCHAT_LOG_PATH"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: "1",
		Server: ServerConfig{
			BaseURL:     "http://localhost:8080",
			ChatPath:    "/chat-with-ai",
			TimeoutSecs: 120,
			SyncChats:   true,
		},
		Session: SessionConfig{
			TimeoutMins: 30,
			PollSecs:    5,
			WarningSecs: 120,
		},
		Storage: StorageConfig{
			Backend:       storage.BackendFile,
			RedisPrefix:   "wattchat:",
			RedisTTLHours: 24,
		},
		Auth: AuthConfig{
			LoginAttemptsPerMin: 5,
		},
		UI: UIConfig{
			RevealMs: 5,
			Markdown: true,
			Theme:    "auto",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// =============================================================================
// DERIVED VALUES
// =============================================================================

// RequestTimeout returns the per-request timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.TimeoutSecs) * time.Second
}

// SessionTimeout returns the inactivity window.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Session.TimeoutMins) * time.Minute
}

// PollInterval returns how often expiry is checked.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Session.PollSecs) * time.Second
}

// WarningBefore returns how early the expiry notice appears.
func (c *Config) WarningBefore() time.Duration {
	return time.Duration(c.Session.WarningSecs) * time.Second
}

// RevealInterval returns the per-character reveal delay.
func (c *Config) RevealInterval() time.Duration {
	return time.Duration(c.UI.RevealMs) * time.Millisecond
}

// StorageOptions translates the storage section for storage.Open.
func (c *Config) StorageOptions() storage.Options {
	opts := storage.Options{
		Backend:     c.Storage.Backend,
		Path:        c.Storage.Path,
		RedisURL:    c.Storage.RedisURL,
		RedisPrefix: c.Storage.RedisPrefix,
		TTL:         time.Duration(c.Storage.RedisTTLHours) * time.Hour,
		Passphrase:  c.Storage.Passphrase,
	}
	if c.Storage.EncryptToken {
		opts.EncryptKeys = []string{storage.KeyToken}
	}
	return opts
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the wattchat configuration directory path.
func ConfigDir() (string, error) {
	return storage.DefaultDir()
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// ensureSecurePermissions tightens a config file to 0600.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the default locations. TOML is tried
// first, then JSON, then the defaults. The .env file and environment
// overrides are applied last.
func Load() (*Config, error) {
	for _, pathFn := range []func() (string, error){ConfigPathTOML, ConfigPathJSON} {
		path, err := pathFn()
		if err != nil {
			continue
		}
		if _, statErr := os.Stat(path); statErr == nil {
			return LoadFrom(path)
		}
	}
	return finish(Default())
}

// LoadFrom loads configuration from a specific file. Keys the file leaves
// out keep their defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	if err := decodeFile(cfg, path); err != nil {
		return nil, err
	}
	return finish(cfg)
}

func decodeFile(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if strings.HasSuffix(path, ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read JSON config from %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode JSON config from %s: %w", path, err)
		}
		return nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML config from %s: %w", path, err)
	}
	return nil
}

// finish applies .env and environment overrides, fills gaps and validates.
func finish(cfg *Config) (*Config, error) {
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// ApplyEnvOverrides loads ./.env when present and then reads every
// WATTCHAT_* variable named in the struct tags. Variables already set in
// the environment win over the .env file.
func (c *Config) ApplyEnvOverrides() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not read .env: %v\n", err)
	}
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	return nil
}

// SetDefaults fills zero-valued fields from Default.
func (c *Config) SetDefaults() {
	d := Default()

	if c.Version == "" {
		c.Version = d.Version
	}
	if c.Server.BaseURL == "" {
		c.Server.BaseURL = d.Server.BaseURL
	}
	if c.Server.ChatPath == "" {
		c.Server.ChatPath = d.Server.ChatPath
	}
	if c.Server.TimeoutSecs == 0 {
		c.Server.TimeoutSecs = d.Server.TimeoutSecs
	}
	if c.Session.TimeoutMins == 0 {
		c.Session.TimeoutMins = d.Session.TimeoutMins
	}
	if c.Session.PollSecs == 0 {
		c.Session.PollSecs = d.Session.PollSecs
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = d.Storage.Backend
	}
	if c.Storage.RedisPrefix == "" {
		c.Storage.RedisPrefix = d.Storage.RedisPrefix
	}
	if c.Auth.LoginAttemptsPerMin == 0 {
		c.Auth.LoginAttemptsPerMin = d.Auth.LoginAttemptsPerMin
	}
	if c.UI.Theme == "" {
		c.UI.Theme = d.UI.Theme
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save saves the configuration to the default TOML file.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML with a short header.
func SaveTOML(cfg *Config, path string) error {
	var b strings.Builder
	b.WriteString("# wattchat configuration file\n")
	b.WriteString("# WATTCHAT_* environment variables override these values.\n\n")
	if err := toml.NewEncoder(&b).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := storage.WriteFileAtomic(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// SaveJSON writes cfg as indented JSON.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := storage.WriteFileAtomic(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Server
	if u, err := url.Parse(c.Server.BaseURL); err != nil {
		add("server.base_url", "invalid URL: %v", err)
	} else if u.Scheme != "http" && u.Scheme != "https" {
		add("server.base_url", "scheme must be http or https, got %q", u.Scheme)
	}
	if !strings.HasPrefix(c.Server.ChatPath, "/") {
		add("server.chat_path", "must start with '/', got %q", c.Server.ChatPath)
	}
	if c.Server.TimeoutSecs < 1 || c.Server.TimeoutSecs > 600 {
		add("server.timeout_secs", "must be 1-600, got %d", c.Server.TimeoutSecs)
	}

	// Session
	if c.Session.TimeoutMins < 1 || c.Session.TimeoutMins > 24*60 {
		add("session.timeout_mins", "must be 1-1440, got %d", c.Session.TimeoutMins)
	}
	if c.Session.PollSecs < 1 || c.Session.PollSecs > 300 {
		add("session.poll_secs", "must be 1-300, got %d", c.Session.PollSecs)
	}
	if c.Session.WarningSecs < 0 || c.Session.WarningSecs >= c.Session.TimeoutMins*60 {
		add("session.warning_secs", "must be 0 or shorter than the timeout, got %d", c.Session.WarningSecs)
	}

	// Storage
	switch strings.ToLower(c.Storage.Backend) {
	case storage.BackendFile, storage.BackendSQLite, storage.BackendMemory:
	case storage.BackendRedis:
		if c.Storage.RedisURL == "" {
			add("storage.redis_url", "required for the redis backend")
		}
	default:
		add("storage.backend", "invalid backend '%s', must be one of: file, sqlite, redis, memory", c.Storage.Backend)
	}
	if c.Storage.RedisTTLHours < 0 {
		add("storage.redis_ttl_hours", "must be non-negative")
	}

	// Auth
	if c.Auth.LoginAttemptsPerMin < 1 || c.Auth.LoginAttemptsPerMin > 60 {
		add("auth.login_attempts_per_min", "must be 1-60, got %d", c.Auth.LoginAttemptsPerMin)
	}

	// UI
	if c.UI.RevealMs < 0 || c.UI.RevealMs > 1000 {
		add("ui.reveal_ms", "must be 0-1000, got %d", c.UI.RevealMs)
	}
	if c.UI.WordWrap < 0 {
		add("ui.word_wrap", "must be non-negative")
	}
	validThemes := map[string]bool{"dark": true, "light": true, "auto": true}
	if !validThemes[strings.ToLower(c.UI.Theme)] {
		add("ui.theme", "invalid theme '%s', must be one of: dark, light, auto", c.UI.Theme)
	}

	// Log
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		add("log.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// =============================================================================
// GET/SET HELPERS (DOT NOTATION)
// =============================================================================

// Get retrieves a configuration value using dot notation (e.g., "ui.theme").
func (c *Config) Get(key string) (interface{}, error) {
	field, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	return field.Interface(), nil
}

// Set sets a configuration value using dot notation (e.g., "ui.reveal_ms").
func (c *Config) Set(key string, value interface{}) error {
	field, err := c.lookup(key)
	if err != nil {
		return err
	}
	if !field.CanSet() {
		return fmt.Errorf("cannot set field: %s", key)
	}
	return setFieldValue(field, value)
}

func (c *Config) lookup(key string) (reflect.Value, error) {
	if key == "" {
		return reflect.Value{}, errors.New("empty key")
	}
	parts := strings.Split(key, ".")
	v := reflect.ValueOf(c).Elem()
	for i, part := range parts {
		fieldName := normalizeFieldName(part)
		field := v.FieldByNameFunc(func(name string) bool {
			return strings.EqualFold(name, fieldName)
		})
		if !field.IsValid() {
			return reflect.Value{}, fmt.Errorf("unknown field: %s", strings.Join(parts[:i+1], "."))
		}
		if i == len(parts)-1 {
			return field, nil
		}
		if field.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("field '%s' is not a struct", strings.Join(parts[:i+1], "."))
		}
		v = field
	}
	return reflect.Value{}, fmt.Errorf("invalid key: %s", key)
}

// normalizeFieldName converts a snake_case or kebab-case name to its Go field equivalent.
func normalizeFieldName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool {
		return r == '_' || r == '-'
	})
	var result strings.Builder
	for _, part := range parts {
		if len(part) > 0 {
			result.WriteString(strings.ToUpper(string(part[0])))
			result.WriteString(strings.ToLower(part[1:]))
		}
	}
	return result.String()
}

// setFieldValue sets a reflect.Value from an interface{} value with type conversion.
func setFieldValue(field reflect.Value, value interface{}) error {
	if strVal, ok := value.(string); ok {
		switch field.Kind() {
		case reflect.String:
			field.SetString(strVal)
			return nil
		case reflect.Int, reflect.Int64:
			intVal, err := strconv.ParseInt(strVal, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid integer value: %v", err)
			}
			field.SetInt(intVal)
			return nil
		case reflect.Bool:
			boolVal, err := strconv.ParseBool(strVal)
			if err != nil {
				return fmt.Errorf("invalid boolean value: %v", err)
			}
			field.SetBool(boolVal)
			return nil
		}
	}

	val := reflect.ValueOf(value)
	if val.Type().AssignableTo(field.Type()) {
		field.Set(val)
		return nil
	}
	if val.Type().ConvertibleTo(field.Type()) {
		field.Set(val.Convert(field.Type()))
		return nil
	}
	return fmt.Errorf("cannot assign %T to %s", value, field.Type())
}

// GetAllKeys returns all settable configuration keys in dot notation.
func GetAllKeys() []string {
	return []string{
		"server.base_url",
		"server.chat_path",
		"server.timeout_secs",
		"server.sync_chats",
		"session.timeout_mins",
		"session.poll_secs",
		"session.warning_secs",
		"storage.backend",
		"storage.path",
		"storage.redis_url",
		"storage.redis_prefix",
		"storage.redis_ttl_hours",
		"storage.encrypt_token",
		"auth.verify_remote",
		"auth.login_attempts_per_min",
		"ui.reveal_ms",
		"ui.markdown",
		"ui.word_wrap",
		"ui.theme",
		"log.level",
		"log.path",
	}
}

// Clone returns a copy of the configuration.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String returns the config as indented JSON. The passphrase is never
// included.
func (c *Config) String() string {
	data, _ := json.MarshalIndent(c, "", "  ")
	return string(data)
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance, loading it on first
// access. Load errors are printed and the defaults are used.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
			cfg = Default()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state between tests.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
