// Package config loads the boardsync CLI configuration from a YAML file and
// BOARDSYNC_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"boardsync/internal/auth"
	"boardsync/internal/drag"
	"boardsync/internal/util"
)

const (
	EnvBaseURL         = "BOARDSYNC_BASE_URL"
	EnvToken           = "BOARDSYNC_TOKEN"
	EnvTokenFile       = "BOARDSYNC_TOKEN_FILE"
	EnvProject         = "BOARDSYNC_PROJECT"
	EnvMutationTimeout = "BOARDSYNC_MUTATION_TIMEOUT"
	EnvRollbackHold    = "BOARDSYNC_ROLLBACK_HOLD"
	EnvPollInterval    = "BOARDSYNC_POLL_INTERVAL"
)

// Config is the resolved CLI configuration.
type Config struct {
	BaseURL         string
	Token           string
	TokenFile       string
	Project         int64
	MutationTimeout time.Duration
	RollbackHold    time.Duration
	PollInterval    time.Duration
}

// file is the on-disk shape; durations are written as "10s".
type file struct {
	BaseURL         string `yaml:"base_url"`
	Token           string `yaml:"token,omitempty"`
	TokenFile       string `yaml:"token_file,omitempty"`
	Project         int64  `yaml:"project,omitempty"`
	MutationTimeout string `yaml:"mutation_timeout,omitempty"`
	RollbackHold    string `yaml:"rollback_hold,omitempty"`
	PollInterval    string `yaml:"poll_interval,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	d := drag.DefaultConfig()
	return Config{
		BaseURL:         "http://localhost:8080",
		MutationTimeout: d.MutationTimeout,
		RollbackHold:    d.RollbackHold,
		PollInterval:    5 * time.Second,
	}
}

// DefaultPath returns ~/.config/boardsync/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "boardsync.yaml"
	}
	return filepath.Join(dir, "boardsync", "config.yaml")
}

// Load reads path over the defaults and applies environment overrides. A
// missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := cfg.merge(raw); err != nil {
				return Config{}, fmt.Errorf("config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) merge(raw []byte) error {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return err
	}
	if f.BaseURL != "" {
		c.BaseURL = f.BaseURL
	}
	if f.Token != "" {
		c.Token = f.Token
	}
	if f.TokenFile != "" {
		c.TokenFile = f.TokenFile
	}
	if f.Project != 0 {
		c.Project = f.Project
	}
	for _, d := range []struct {
		raw string
		dst *time.Duration
		key string
	}{
		{f.MutationTimeout, &c.MutationTimeout, "mutation_timeout"},
		{f.RollbackHold, &c.RollbackHold, "rollback_hold"},
		{f.PollInterval, &c.PollInterval, "poll_interval"},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.key, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.BaseURL = util.EnvOrDefault(EnvBaseURL, c.BaseURL)
	c.Token = util.EnvOrDefault(EnvToken, c.Token)
	c.TokenFile = util.EnvOrDefault(EnvTokenFile, c.TokenFile)
	if raw := os.Getenv(EnvProject); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvProject, err)
		}
		c.Project = id
	}
	var err error
	if c.MutationTimeout, err = util.EnvDuration(EnvMutationTimeout, c.MutationTimeout); err != nil {
		return err
	}
	if c.RollbackHold, err = util.EnvDuration(EnvRollbackHold, c.RollbackHold); err != nil {
		return err
	}
	if c.PollInterval, err = util.EnvDuration(EnvPollInterval, c.PollInterval); err != nil {
		return err
	}
	return nil
}

// Validate checks the values the engine cannot run without.
func (c Config) Validate() error {
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("base_url %q is not an absolute URL", c.BaseURL)
	}
	if c.MutationTimeout <= 0 {
		return fmt.Errorf("mutation_timeout must be positive, got %s", c.MutationTimeout)
	}
	if c.RollbackHold < 0 {
		return fmt.Errorf("rollback_hold must not be negative, got %s", c.RollbackHold)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval)
	}
	return nil
}

// Drag returns the coordinator bounds.
func (c Config) Drag() drag.Config {
	hold := c.RollbackHold
	if hold == 0 {
		hold = -1
	}
	return drag.Config{MutationTimeout: c.MutationTimeout, RollbackHold: hold}
}

// TokenSource returns the credential chain: the inline token, then the
// token file.
func (c Config) TokenSource() auth.TokenSource {
	chain := auth.Chain{auth.StaticToken(c.Token)}
	if c.TokenFile != "" {
		chain = append(chain, auth.FileToken(c.TokenFile))
	}
	return chain
}

// Write stores c at path as YAML, creating parent directories.
func Write(path string, c Config) error {
	out, err := yaml.Marshal(file{
		BaseURL:         c.BaseURL,
		Token:           c.Token,
		TokenFile:       c.TokenFile,
		Project:         c.Project,
		MutationTimeout: c.MutationTimeout.String(),
		RollbackHold:    c.RollbackHold.String(),
		PollInterval:    c.PollInterval.String(),
	})
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return os.WriteFile(path, out, 0o600)
}
