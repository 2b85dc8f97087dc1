// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the daemon and CLI configuration.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	// Homeserver is the base URL of the homeserver.
	Homeserver string `yaml:"homeserver"`

	// Paths configures on-disk locations.
	Paths PathsConfig `yaml:"paths"`

	// Transport configures the /sync transport and the connectivity
	// prober.
	Transport TransportConfig `yaml:"transport"`

	// Messages and Notifications are the policies of the two
	// subscription managers.
	Messages      ManagerConfig `yaml:"messages"`
	Notifications ManagerConfig `yaml:"notifications"`

	// Rooms are the room ids whose message streams the daemon
	// follows.
	Rooms []string `yaml:"rooms"`

	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides holds the fields an environment section can
// override. Unset fields leave the base value alone.
type ConfigOverrides struct {
	Homeserver    string           `yaml:"homeserver,omitempty"`
	Transport     *TransportConfig `yaml:"transport,omitempty"`
	Messages      *ManagerConfig   `yaml:"messages,omitempty"`
	Notifications *ManagerConfig   `yaml:"notifications,omitempty"`
}

// PathsConfig configures on-disk locations.
type PathsConfig struct {
	// State is the base directory for daemon state.
	// Default: ${HOME}/.local/state/huddle
	State string `yaml:"state"`

	// SessionFile is the age-sealed session.
	// Default: ${HUDDLE_STATE}/session.age
	SessionFile string `yaml:"session_file"`

	// IdentityFile is the age identity the session is sealed to.
	// Default: ${HUDDLE_STATE}/identity.txt
	IdentityFile string `yaml:"identity_file"`

	// ControlSocket is the Unix socket the host shell and CLI use.
	// Default: ${HUDDLE_STATE}/control.sock
	ControlSocket string `yaml:"control_socket"`
}

// TransportConfig configures the realtime transport.
type TransportConfig struct {
	// JoinTimeout bounds a channel's initial sync. Default: 10s
	JoinTimeout time.Duration `yaml:"join_timeout,omitempty"`

	// PollTimeout is the long-poll wait. Default: 30s
	PollTimeout time.Duration `yaml:"poll_timeout,omitempty"`

	// ProbeInterval is how often homeserver reachability is checked.
	// Default: 15s
	ProbeInterval time.Duration `yaml:"probe_interval,omitempty"`
}

// ManagerConfig is one subscription manager's policy.
type ManagerConfig struct {
	// IdleTimeout is how long the client may stay hidden before
	// subscriptions are dropped. Default: 10m
	IdleTimeout time.Duration `yaml:"idle_timeout,omitempty"`

	// MaxRetryAttempts is the retry budget per topic. Default: 10
	MaxRetryAttempts int `yaml:"max_retry_attempts,omitempty"`

	// VisibilityOptimization enables the idle disconnect. Default:
	// true for messages, false for notifications
	VisibilityOptimization *bool `yaml:"visibility_optimization,omitempty"`
}

// OptimizeVisibility reports whether the idle disconnect is enabled.
func (m ManagerConfig) OptimizeVisibility() bool {
	return m.VisibilityOptimization == nil || *m.VisibilityOptimization
}

// envOverrides are the environment variables that override the file.
type envOverrides struct {
	Homeserver    string `env:"HUDDLE_HOMESERVER"`
	SessionFile   string `env:"HUDDLE_SESSION_FILE"`
	IdentityFile  string `env:"HUDDLE_IDENTITY_FILE"`
	ControlSocket string `env:"HUDDLE_CONTROL_SOCKET"`
}

// Default returns the values applied before the config file.
//
// Message streams follow visibility and get 10 retries. Notification
// streams stay connected while the client is hidden and get 15.
func Default() *Config {
	alwaysConnected := false
	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			State:         "${HOME}/.local/state/huddle",
			SessionFile:   "${HUDDLE_STATE}/session.age",
			IdentityFile:  "${HUDDLE_STATE}/identity.txt",
			ControlSocket: "${HUDDLE_STATE}/control.sock",
		},
		Transport: TransportConfig{
			JoinTimeout:   10 * time.Second,
			PollTimeout:   30 * time.Second,
			ProbeInterval: 15 * time.Second,
		},
		Messages: ManagerConfig{
			IdleTimeout:      10 * time.Minute,
			MaxRetryAttempts: 10,
		},
		Notifications: ManagerConfig{
			IdleTimeout:            10 * time.Minute,
			MaxRetryAttempts:       15,
			VisibilityOptimization: &alwaysConnected,
		},
	}
}

// Load loads configuration from the file named by HUDDLE_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv("HUDDLE_CONFIG")
	if configPath == "" {
		return nil, errors.New("HUDDLE_CONFIG environment variable not set; " +
			"set it to the path of your huddle.yaml config file, or use --config flag")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path. Files ending in .json or
// .jsonc may carry comments and trailing commas; everything else is
// YAML.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	switch filepath.Ext(path) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Homeserver != "" {
		c.Homeserver = overrides.Homeserver
	}
	if overrides.Transport != nil {
		if overrides.Transport.JoinTimeout > 0 {
			c.Transport.JoinTimeout = overrides.Transport.JoinTimeout
		}
		if overrides.Transport.PollTimeout > 0 {
			c.Transport.PollTimeout = overrides.Transport.PollTimeout
		}
		if overrides.Transport.ProbeInterval > 0 {
			c.Transport.ProbeInterval = overrides.Transport.ProbeInterval
		}
	}
	mergeManager(&c.Messages, overrides.Messages)
	mergeManager(&c.Notifications, overrides.Notifications)
}

func mergeManager(base *ManagerConfig, override *ManagerConfig) {
	if override == nil {
		return
	}
	if override.IdleTimeout > 0 {
		base.IdleTimeout = override.IdleTimeout
	}
	if override.MaxRetryAttempts > 0 {
		base.MaxRetryAttempts = override.MaxRetryAttempts
	}
	if override.VisibilityOptimization != nil {
		value := *override.VisibilityOptimization
		base.VisibilityOptimization = &value
	}
}

func (c *Config) applyEnv() error {
	var overrides envOverrides
	if err := env.Parse(&overrides); err != nil {
		return fmt.Errorf("config: parsing environment: %w", err)
	}
	if overrides.Homeserver != "" {
		c.Homeserver = overrides.Homeserver
	}
	if overrides.SessionFile != "" {
		c.Paths.SessionFile = overrides.SessionFile
	}
	if overrides.IdentityFile != "" {
		c.Paths.IdentityFile = overrides.IdentityFile
	}
	if overrides.ControlSocket != "" {
		c.Paths.ControlSocket = overrides.ControlSocket
	}
	return nil
}

func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Paths.State = expandVars(c.Paths.State, vars)
	vars["HUDDLE_STATE"] = c.Paths.State

	c.Paths.SessionFile = expandVars(c.Paths.SessionFile, vars)
	c.Paths.IdentityFile = expandVars(c.Paths.IdentityFile, vars)
	c.Paths.ControlSocket = expandVars(c.Paths.ControlSocket, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default}, preferring vars over
// the process environment.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains([]Environment{Development, Staging, Production}, c.Environment) {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Homeserver == "" {
		errs = append(errs, errors.New("homeserver is required"))
	} else if parsed, err := url.Parse(c.Homeserver); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		errs = append(errs, fmt.Errorf("homeserver must be an http or https URL, got %q", c.Homeserver))
	}

	for name, path := range map[string]string{
		"paths.session_file":   c.Paths.SessionFile,
		"paths.identity_file":  c.Paths.IdentityFile,
		"paths.control_socket": c.Paths.ControlSocket,
	} {
		if path == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
		} else if strings.Contains(path, "${") {
			errs = append(errs, fmt.Errorf("%s has an unexpanded variable: %s", name, path))
		}
	}

	if c.Transport.JoinTimeout <= 0 {
		errs = append(errs, errors.New("transport.join_timeout must be positive"))
	}
	if c.Transport.PollTimeout <= 0 {
		errs = append(errs, errors.New("transport.poll_timeout must be positive"))
	}
	if c.Transport.ProbeInterval <= 0 {
		errs = append(errs, errors.New("transport.probe_interval must be positive"))
	}

	for name, manager := range map[string]ManagerConfig{"messages": c.Messages, "notifications": c.Notifications} {
		if manager.IdleTimeout <= 0 {
			errs = append(errs, fmt.Errorf("%s.idle_timeout must be positive", name))
		}
		if manager.MaxRetryAttempts <= 0 {
			errs = append(errs, fmt.Errorf("%s.max_retry_attempts must be positive", name))
		}
	}

	for _, room := range c.Rooms {
		if !strings.HasPrefix(room, "!") || !strings.Contains(room, ":") {
			errs = append(errs, fmt.Errorf("rooms: %q is not a room id", room))
		}
	}

	return errors.Join(errs...)
}
