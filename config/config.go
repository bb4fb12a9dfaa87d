// Package config loads the adapter configuration from the environment, an
// optional YAML file, and an optional .env file. Environment variables win
// over file values; file values win over defaults. Validation is fail-fast:
// a non-positive timeout, TTL, or session limit aborts startup instead of
// being clamped.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/naparnik-ai/copilot/core"
)

// Environment variable names, matching the names the service documents.
const (
	EnvToken               = "ONEC_AI_TOKEN"
	EnvBaseURL             = "ONEC_AI_BASE_URL"
	EnvTimeout             = "ONEC_AI_TIMEOUT"
	EnvUILanguage          = "ONEC_AI_UI_LANGUAGE"
	EnvProgrammingLanguage = "ONEC_AI_PROGRAMMING_LANGUAGE"
	EnvScriptLanguage      = "ONEC_AI_SCRIPT_LANGUAGE"
	EnvMaxSessions         = "MAX_ACTIVE_SESSIONS"
	EnvSessionTTL          = "SESSION_TTL"
	EnvConfigFile          = "ONEC_AI_CONFIG"
)

// Config carries every setting the adapter consumes.
type Config struct {
	// Token authorizes calls to the remote service. It may be empty at
	// load time: the server starts without it and reports a configuration
	// error on the first tool call instead.
	Token string `yaml:"token"`

	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`

	UILanguage          string `yaml:"ui_language"`
	ProgrammingLanguage string `yaml:"programming_language"`
	ScriptLanguage      string `yaml:"script_language"`

	MaxSessions int           `yaml:"max_active_sessions"`
	SessionTTL  time.Duration `yaml:"session_ttl"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		BaseURL:     "https://code.1c.ai",
		Timeout:     30 * time.Second,
		UILanguage:  "russian",
		MaxSessions: 10,
		SessionTTL:  time.Hour,
	}
}

// Load assembles the configuration: defaults, then the YAML file at path
// (or $ONEC_AI_CONFIG) when one exists, then environment variables. The
// result is validated before it is returned.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.loadEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.NewError(core.ErrConfig,
			fmt.Sprintf("read config file %s", path), core.WithWrapped(err))
	}
	// A raw file-level Config would zero absent fields; decode into an
	// overlay so only present keys override defaults.
	var overlay struct {
		Token               *string `yaml:"token"`
		BaseURL             *string `yaml:"base_url"`
		Timeout             *string `yaml:"timeout"`
		UILanguage          *string `yaml:"ui_language"`
		ProgrammingLanguage *string `yaml:"programming_language"`
		ScriptLanguage      *string `yaml:"script_language"`
		MaxSessions         *int    `yaml:"max_active_sessions"`
		SessionTTL          *string `yaml:"session_ttl"`
	}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return core.NewError(core.ErrConfig,
			fmt.Sprintf("parse config file %s", path), core.WithWrapped(err))
	}

	setString(&c.Token, overlay.Token)
	setString(&c.BaseURL, overlay.BaseURL)
	setString(&c.UILanguage, overlay.UILanguage)
	setString(&c.ProgrammingLanguage, overlay.ProgrammingLanguage)
	setString(&c.ScriptLanguage, overlay.ScriptLanguage)
	if overlay.MaxSessions != nil {
		c.MaxSessions = *overlay.MaxSessions
	}
	if overlay.Timeout != nil {
		d, err := parseDuration(*overlay.Timeout)
		if err != nil {
			return core.NewError(core.ErrConfig, "config file: invalid timeout", core.WithWrapped(err))
		}
		c.Timeout = d
	}
	if overlay.SessionTTL != nil {
		d, err := parseDuration(*overlay.SessionTTL)
		if err != nil {
			return core.NewError(core.ErrConfig, "config file: invalid session_ttl", core.WithWrapped(err))
		}
		c.SessionTTL = d
	}
	return nil
}

func (c *Config) loadEnv() error {
	if v, ok := os.LookupEnv(EnvToken); ok {
		c.Token = v
	}
	if v, ok := os.LookupEnv(EnvBaseURL); ok {
		c.BaseURL = v
	}
	if v, ok := os.LookupEnv(EnvUILanguage); ok {
		c.UILanguage = v
	}
	if v, ok := os.LookupEnv(EnvProgrammingLanguage); ok {
		c.ProgrammingLanguage = v
	}
	if v, ok := os.LookupEnv(EnvScriptLanguage); ok {
		c.ScriptLanguage = v
	}
	if v, ok := os.LookupEnv(EnvMaxSessions); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return core.NewError(core.ErrConfig,
				EnvMaxSessions+" must be an integer", core.WithWrapped(err))
		}
		c.MaxSessions = n
	}
	if v, ok := os.LookupEnv(EnvTimeout); ok {
		d, err := parseDuration(v)
		if err != nil {
			return core.NewError(core.ErrConfig,
				EnvTimeout+" must be seconds or a duration", core.WithWrapped(err))
		}
		c.Timeout = d
	}
	if v, ok := os.LookupEnv(EnvSessionTTL); ok {
		d, err := parseDuration(v)
		if err != nil {
			return core.NewError(core.ErrConfig,
				EnvSessionTTL+" must be seconds or a duration", core.WithWrapped(err))
		}
		c.SessionTTL = d
	}
	return nil
}

// Validate rejects settings the adapter cannot run with. The token is
// deliberately exempt: its absence is a per-call error, not a startup one.
func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.BaseURL) == "" {
		problems = append(problems, "base URL must not be empty")
	}
	if c.Timeout <= 0 {
		problems = append(problems, "timeout must be positive")
	}
	if strings.TrimSpace(c.UILanguage) == "" {
		problems = append(problems, "UI language must not be empty")
	}
	if c.MaxSessions <= 0 {
		problems = append(problems, "max active sessions must be positive")
	}
	if c.SessionTTL <= 0 {
		problems = append(problems, "session TTL must be positive")
	}
	if len(problems) > 0 {
		return core.NewError(core.ErrConfig, "invalid configuration: "+strings.Join(problems, "; "))
	}
	return nil
}

// HasToken reports whether a credential is available.
func (c Config) HasToken() bool {
	return strings.TrimSpace(c.Token) != ""
}

// parseDuration accepts a bare number of seconds (the documented form,
// SESSION_TTL=3600) or a Go duration string (1h30m).
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, errors.New("empty duration")
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	return time.ParseDuration(v)
}

// LoadDotEnv populates missing environment variables from a .env file in
// the working directory. Variables already set win; the file is optional.
func LoadDotEnv() error {
	data, err := os.ReadFile(".env")
	if err != nil {
		return err
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		val := strings.Trim(strings.TrimSpace(parts[1]), "\"'")
		if os.Getenv(key) == "" {
			_ = os.Setenv(key, val)
		}
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}
