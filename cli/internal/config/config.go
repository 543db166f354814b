// Package config provides aicommit configuration with a defined load order:
// CLI flags > environment variables > repo config > global config > defaults.
//
// Paths:
//   - Repo: .aicommit.toml (relative to repo root)
//   - Global: XDG config dir, e.g. ~/.config/aicommit/config.toml (see os.UserConfigDir)
//
// Environment variables (override config files when set):
//   - AICOMMIT_MODEL, AICOMMIT_BASE_URL, AICOMMIT_TIMEOUT (Go duration string
//     or integer seconds), AICOMMIT_HISTORY_DEPTH, AICOMMIT_CACHE_FILE,
//     AICOMMIT_LINE_WIDTH, AICOMMIT_SIGNOFF (1/true/yes/on or 0/false/no/off).
//
// The API credential value is not configuration; it comes from the
// environment variable named by api_key_env (GOOGLE_API_KEY is consulted as
// a fallback) or an interactive prompt, and is threaded into the generator
// by the caller.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"aicommit/cli/internal/erruser"
)

// Config holds all aicommit configuration. An empty CacheFile means "use the
// default path inside the repository's git directory".
type Config struct {
	Model        string        `toml:"model"`
	BaseURL      string        `toml:"base_url"`
	Timeout      time.Duration `toml:"timeout"`
	HistoryDepth int           `toml:"history_depth"`
	CacheFile    string        `toml:"cache_file"`
	// LineWidth is the column budget for every generated line, subject
	// included. Earlier revisions hard-coded 50 then 100; it is configurable.
	LineWidth int  `toml:"line_width"`
	SignOff   bool `toml:"signoff"`
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `toml:"api_key_env"`
}

// Overrides represents optional CLI flag overrides. Non-nil pointer means
// "override with this value".
type Overrides struct {
	Model        *string
	BaseURL      *string
	Timeout      *time.Duration
	HistoryDepth *int
	CacheFile    *string
	LineWidth    *int
	SignOff      *bool
}

// LoadOptions configures Load. All fields are optional.
type LoadOptions struct {
	// RepoRoot is the repository root; if set, repo config is RepoRoot/.aicommit.toml.
	RepoRoot string
	// GlobalConfigPath is the global config file path; if empty, the XDG path is used.
	GlobalConfigPath string
	// Env is the environment key=value slice; if nil, os.Environ() is used.
	Env []string
	// Overrides are applied last (highest precedence).
	Overrides *Overrides
}

const (
	_defaultModel        = "gemini-1.5-flash"
	_defaultTimeout      = 60 * time.Second
	_defaultHistoryDepth = 1000
	_defaultLineWidth    = 100
	_defaultAPIKeyEnv    = "GEMINI_API_KEY"
)

// CacheFilename is the default profile file name inside the git directory.
const CacheFilename = "ai-commit-style.json"

// DefaultConfig returns the default configuration (no I/O). BaseURL empty
// means the gemini package's public endpoint.
func DefaultConfig() Config {
	return Config{
		Model:        _defaultModel,
		BaseURL:      "",
		Timeout:      _defaultTimeout,
		HistoryDepth: _defaultHistoryDepth,
		CacheFile:    "",
		LineWidth:    _defaultLineWidth,
		SignOff:      true,
		APIKeyEnv:    _defaultAPIKeyEnv,
	}
}

// EffectiveCachePath returns the style-profile path: CacheFile when set,
// otherwise gitDir/ai-commit-style.json.
func (c Config) EffectiveCachePath(gitDir string) string {
	if c.CacheFile != "" {
		return c.CacheFile
	}
	return filepath.Join(gitDir, CacheFilename)
}

// Load loads configuration with precedence: defaults < global file < repo file < env < overrides.
// Missing config files are ignored. Invalid TOML or invalid env values return an error.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	cfg := DefaultConfig()

	globalPath := opts.GlobalConfigPath
	if globalPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, erruser.New("Could not determine the config directory.", err)
		}
		globalPath = filepath.Join(dir, "aicommit", "config.toml")
	}
	if err := mergeFile(&cfg, globalPath); err != nil {
		return nil, err
	}

	if opts.RepoRoot != "" {
		if err := mergeFile(&cfg, filepath.Join(opts.RepoRoot, ".aicommit.toml")); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg, opts.Env); err != nil {
		return nil, err
	}

	applyOverrides(&cfg, opts.Overrides)
	return &cfg, nil
}

// mergeFile reads path and merges into cfg. Only fields present in the file
// overwrite previous values. Missing file is skipped (no error).
func mergeFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return erruser.New("Invalid configuration file.", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return erruser.New("Could not read the configuration file.", err)
	}
	var file struct {
		Model        *string `toml:"model"`
		BaseURL      *string `toml:"base_url"`
		Timeout      *string `toml:"timeout"`
		HistoryDepth *int64  `toml:"history_depth"`
		CacheFile    *string `toml:"cache_file"`
		LineWidth    *int64  `toml:"line_width"`
		SignOff      *bool   `toml:"signoff"`
		APIKeyEnv    *string `toml:"api_key_env"`
	}
	if _, err := toml.Decode(string(data), &file); err != nil {
		return erruser.New("Invalid configuration in "+filepath.Base(path)+".", err)
	}
	if file.Model != nil && *file.Model != "" {
		cfg.Model = *file.Model
	}
	if file.BaseURL != nil && *file.BaseURL != "" {
		cfg.BaseURL = *file.BaseURL
	}
	if file.Timeout != nil && *file.Timeout != "" {
		d, err := parseDuration(*file.Timeout)
		if err != nil {
			return erruser.New("Configuration timeout is invalid.", err)
		}
		cfg.Timeout = d
	}
	if file.HistoryDepth != nil && *file.HistoryDepth > 0 {
		cfg.HistoryDepth = int(*file.HistoryDepth)
	}
	if file.CacheFile != nil {
		cfg.CacheFile = *file.CacheFile
	}
	if file.LineWidth != nil && *file.LineWidth > 0 {
		cfg.LineWidth = int(*file.LineWidth)
	}
	if file.SignOff != nil {
		cfg.SignOff = *file.SignOff
	}
	if file.APIKeyEnv != nil && *file.APIKeyEnv != "" {
		cfg.APIKeyEnv = *file.APIKeyEnv
	}
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty duration")
	}
	// Try Go duration first (e.g. "90s", "2m")
	d, err := time.ParseDuration(s)
	if err == nil {
		return d, nil
	}
	// Try integer seconds
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return time.Duration(n) * time.Second, nil
}

// env key names for config
const (
	envModel        = "AICOMMIT_MODEL"
	envBaseURL      = "AICOMMIT_BASE_URL"
	envTimeout      = "AICOMMIT_TIMEOUT"
	envHistoryDepth = "AICOMMIT_HISTORY_DEPTH"
	envCacheFile    = "AICOMMIT_CACHE_FILE"
	envLineWidth    = "AICOMMIT_LINE_WIDTH"
	envSignOff      = "AICOMMIT_SIGNOFF"
)

func applyEnv(cfg *Config, env []string) error {
	vals := make(map[string]string)
	for _, e := range env {
		idx := strings.Index(e, "=")
		if idx <= 0 {
			continue
		}
		vals[strings.TrimSpace(e[:idx])] = strings.TrimSpace(e[idx+1:])
	}
	if v, ok := vals[envModel]; ok && v != "" {
		cfg.Model = v
	}
	if v, ok := vals[envBaseURL]; ok && v != "" {
		cfg.BaseURL = v
	}
	if v, ok := vals[envTimeout]; ok && v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return erruser.New("AICOMMIT_TIMEOUT must be a valid duration.", err)
		}
		cfg.Timeout = d
	}
	if v, ok := vals[envHistoryDepth]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return erruser.New("AICOMMIT_HISTORY_DEPTH must be a valid number.", err)
		}
		if n <= 0 {
			return erruser.New("AICOMMIT_HISTORY_DEPTH must be positive.", nil)
		}
		cfg.HistoryDepth = n
	}
	if v, ok := vals[envCacheFile]; ok {
		cfg.CacheFile = v
	}
	if v, ok := vals[envLineWidth]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return erruser.New("AICOMMIT_LINE_WIDTH must be a valid number.", err)
		}
		if n <= 0 {
			return erruser.New("AICOMMIT_LINE_WIDTH must be positive.", nil)
		}
		cfg.LineWidth = n
	}
	if v, ok := vals[envSignOff]; ok && v != "" {
		b, err := parseBool(v)
		if err != nil {
			return erruser.New("AICOMMIT_SIGNOFF must be 1/true/yes/on or 0/false/no/off.", err)
		}
		cfg.SignOff = b
	}
	return nil
}

// parseBool parses common boolean env values: 1/true/yes/on = true, 0/false/no/off = false (case-insensitive).
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}

func applyOverrides(cfg *Config, o *Overrides) {
	if o == nil {
		return
	}
	if o.Model != nil && *o.Model != "" {
		cfg.Model = *o.Model
	}
	if o.BaseURL != nil && *o.BaseURL != "" {
		cfg.BaseURL = *o.BaseURL
	}
	if o.Timeout != nil {
		cfg.Timeout = *o.Timeout
	}
	if o.HistoryDepth != nil && *o.HistoryDepth > 0 {
		cfg.HistoryDepth = *o.HistoryDepth
	}
	if o.CacheFile != nil && *o.CacheFile != "" {
		cfg.CacheFile = *o.CacheFile
	}
	if o.LineWidth != nil && *o.LineWidth > 0 {
		cfg.LineWidth = *o.LineWidth
	}
	if o.SignOff != nil {
		cfg.SignOff = *o.SignOff
	}
}
