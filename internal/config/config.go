// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/sidechat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete sidechat configuration.
type Config struct {
	API         APIConfig         `toml:"api" json:"api"`
	Credentials CredentialsConfig `toml:"credentials" json:"credentials"`
	UI          UIConfig          `toml:"ui" json:"ui"`
	Server      ServerConfig      `toml:"server" json:"server"`
	Log         LogConfig         `toml:"log" json:"log"`
}

// APIConfig describes the completion endpoint.
type APIConfig struct {
	BaseURL           string `toml:"base_url" json:"base_url"`
	Model             string `toml:"model" json:"model"`
	RequestsPerMinute int    `toml:"requests_per_minute" json:"requests_per_minute"`
	TimeoutSecs       int    `toml:"timeout_secs" json:"timeout_secs"`
}

// CredentialsConfig selects where the API key is kept.
type CredentialsConfig struct {
	Backend string `toml:"backend" json:"backend"` // sqlite, file or memory
	Path    string `toml:"path" json:"path"`
	Name    string `toml:"name" json:"name"`
	Seal    bool   `toml:"seal" json:"seal"`
}

// UIConfig holds presentation settings shared by the panel and the terminal.
type UIConfig struct {
	Locale         string `toml:"locale" json:"locale"`
	CopyRevertMS   int    `toml:"copy_revert_ms" json:"copy_revert_ms"`
	HighlightStyle string `toml:"highlight_style" json:"highlight_style"`
	WordWrap       int    `toml:"word_wrap" json:"word_wrap"`
	MaxInputHeight int    `toml:"max_input_height" json:"max_input_height"`
}

// ServerConfig configures the local panel host.
type ServerConfig struct {
	Addr        string `toml:"addr" json:"addr"`
	OpenBrowser bool   `toml:"open_browser" json:"open_browser"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `toml:"level" json:"level"`   // debug, info, warn, error
	Format string `toml:"format" json:"format"` // auto, console, json
}

// Defaults.
const (
	DefaultBaseURL        = "https://api.deepseek.com/v1/chat/completions"
	DefaultModel          = "deepseek-chat"
	DefaultCredentialName = "deepseekApiKey"
	DefaultAddr           = "127.0.0.1:8787"
	DefaultCopyRevertMS   = 2000
	DefaultMaxInputHeight = 200
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:     DefaultBaseURL,
			Model:       DefaultModel,
			TimeoutSecs: 60,
		},
		Credentials: CredentialsConfig{
			Backend: "sqlite",
			Name:    DefaultCredentialName,
			Seal:    true,
		},
		UI: UIConfig{
			Locale:         "en",
			CopyRevertMS:   DefaultCopyRevertMS,
			HighlightStyle: "monokai",
			WordWrap:       80,
			MaxInputHeight: DefaultMaxInputHeight,
		},
		Server: ServerConfig{
			Addr: DefaultAddr,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the sidechat configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".sidechat"), nil
}

// ConfigPath returns the path to the default TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ensureSecurePermissions tightens a config file to 0600.
// SECURITY: The file may name credential paths and endpoints.
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

// Load reads the default config file if it exists, then applies
// environment overrides, defaults and validation.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return finish(Default())
	}
	return LoadFromPath(path)
}

// LoadFromPath is Load for an explicit path. A missing file yields the
// defaults. Files ending in .json are read as JSON, anything else as TOML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if err := decodeFile(cfg, path); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	return finish(cfg)
}

func decodeFile(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read JSON config: %w", err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to decode JSON config: %w", err)
		}
		return nil
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		fmt.Fprintf(os.Stderr, "Warning: unknown config keys in %s: %s\n", path, strings.Join(keys, ", "))
	}
	return nil
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// Save writes cfg to the default config path.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes cfg as TOML.
// SECURITY: Config files are written 0600 inside a 0700 directory.
// RELIABILITY: Atomic write with fsync prevents data loss on crash
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# sidechat configuration file")
	fmt.Fprintln(&buf, "# Generated by sidechat - edit with care")
	fmt.Fprintln(&buf)

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.WriteFileAtomic(path, buf.Bytes(), 0600, 0700); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// String returns the configuration as TOML.
func (c *Config) String() string {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Sprintf("<config encode error: %v>", err)
	}
	return buf.String()
}

// =============================================================================
// DEFAULTS & VALIDATION
// =============================================================================

// SetDefaults fills zero values left by a partial config file.
func (c *Config) SetDefaults() {
	d := Default()
	if c.API.BaseURL == "" {
		c.API.BaseURL = d.API.BaseURL
	}
	if c.API.Model == "" {
		c.API.Model = d.API.Model
	}
	if c.API.TimeoutSecs == 0 {
		c.API.TimeoutSecs = d.API.TimeoutSecs
	}
	if c.Credentials.Backend == "" {
		c.Credentials.Backend = d.Credentials.Backend
	}
	if c.Credentials.Name == "" {
		c.Credentials.Name = d.Credentials.Name
	}
	if c.UI.Locale == "" {
		c.UI.Locale = d.UI.Locale
	}
	if c.UI.CopyRevertMS == 0 {
		c.UI.CopyRevertMS = d.UI.CopyRevertMS
	}
	if c.UI.HighlightStyle == "" {
		c.UI.HighlightStyle = d.UI.HighlightStyle
	}
	if c.UI.WordWrap == 0 {
		c.UI.WordWrap = d.UI.WordWrap
	}
	if c.UI.MaxInputHeight == 0 {
		c.UI.MaxInputHeight = d.UI.MaxInputHeight
	}
	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = d.Log.Format
	}
}

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
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// Validate checks every section and returns ValidateErrors listing all problems.
// CONFIG: Comprehensive validation ensures safe configuration
func (c *Config) Validate() error {
	var errs ValidateErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if u, err := url.Parse(c.API.BaseURL); err != nil || u.Host == "" {
		add("api.base_url", "must be an absolute URL, got %q", c.API.BaseURL)
	} else if u.Scheme != "https" && u.Scheme != "http" {
		add("api.base_url", "scheme must be http or https, got %q", u.Scheme)
	}
	if strings.TrimSpace(c.API.Model) == "" {
		add("api.model", "must not be empty")
	}
	if c.API.RequestsPerMinute < 0 {
		add("api.requests_per_minute", "must be >= 0, got %d", c.API.RequestsPerMinute)
	}
	if c.API.TimeoutSecs < 0 || c.API.TimeoutSecs > 600 {
		add("api.timeout_secs", "must be between 0 and 600, got %d", c.API.TimeoutSecs)
	}

	switch strings.ToLower(c.Credentials.Backend) {
	case "sqlite", "file", "memory":
	default:
		add("credentials.backend", "invalid backend %q, must be one of: sqlite, file, memory", c.Credentials.Backend)
	}

	if c.UI.CopyRevertMS < 100 || c.UI.CopyRevertMS > 60000 {
		add("ui.copy_revert_ms", "must be between 100 and 60000, got %d", c.UI.CopyRevertMS)
	}
	if c.UI.WordWrap < 20 || c.UI.WordWrap > 400 {
		add("ui.word_wrap", "must be between 20 and 400, got %d", c.UI.WordWrap)
	}
	if c.UI.MaxInputHeight < 40 {
		add("ui.max_input_height", "must be at least 40, got %d", c.UI.MaxInputHeight)
	}

	if host, port, err := splitHostPort(c.Server.Addr); err != nil {
		add("server.addr", "%v", err)
	} else if host != "127.0.0.1" && host != "localhost" && host != "::1" {
		// SECURITY: The panel host serves an unauthenticated API.
		add("server.addr", "must bind to a loopback address, got %q", host)
	} else if port < 1 || port > 65535 {
		add("server.addr", "port must be between 1 and 65535, got %d", port)
	}

	switch strings.ToLower(c.Log.Level) {
	case "trace", "debug", "info", "warn", "error", "disabled":
	default:
		add("log.level", "invalid level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "auto", "console", "json":
	default:
		add("log.format", "invalid format %q, must be one of: auto, console, json", c.Log.Format)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func splitHostPort(addr string) (string, int, error) {
	i := strings.LastIndex(addr, ":")
	if i < 0 {
		return "", 0, fmt.Errorf("missing port in %q", addr)
	}
	host := strings.Trim(addr[:i], "[]")
	port, err := strconv.Atoi(addr[i+1:])
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q", addr)
	}
	return host, port, nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides:
//   - SIDECHAT_BASE_URL: overrides api.base_url
//   - SIDECHAT_MODEL: overrides api.model
//   - SIDECHAT_LOCALE: overrides ui.locale
//   - SIDECHAT_ADDR: overrides server.addr
//   - SIDECHAT_LOG_LEVEL: overrides log.level
//   - SIDECHAT_CREDENTIAL_BACKEND: overrides credentials.backend
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("SIDECHAT_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("SIDECHAT_MODEL"); v != "" {
		c.API.Model = v
	}
	if v := os.Getenv("SIDECHAT_LOCALE"); v != "" {
		c.UI.Locale = v
	}
	if v := os.Getenv("SIDECHAT_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SIDECHAT_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SIDECHAT_CREDENTIAL_BACKEND"); v != "" {
		c.Credentials.Backend = v
	}
}
