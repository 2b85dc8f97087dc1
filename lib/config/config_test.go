// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "huddle.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("Environment = %s, want development", cfg.Environment)
	}
	if cfg.Messages.IdleTimeout != 10*time.Minute {
		t.Errorf("Messages.IdleTimeout = %v, want 10m", cfg.Messages.IdleTimeout)
	}
	if cfg.Messages.MaxRetryAttempts != 10 {
		t.Errorf("Messages.MaxRetryAttempts = %d, want 10", cfg.Messages.MaxRetryAttempts)
	}
	if cfg.Notifications.MaxRetryAttempts != 15 {
		t.Errorf("Notifications.MaxRetryAttempts = %d, want 15", cfg.Notifications.MaxRetryAttempts)
	}
	if !cfg.Messages.OptimizeVisibility() {
		t.Error("messages visibility optimization disabled by default")
	}
	if cfg.Notifications.OptimizeVisibility() {
		t.Error("notifications visibility optimization enabled by default")
	}
	if cfg.Notifications.IdleTimeout <= 0 {
		t.Errorf("Notifications.IdleTimeout = %v, want positive", cfg.Notifications.IdleTimeout)
	}
}

func TestDefaultsAreIndependent(t *testing.T) {
	first := Default()
	*first.Notifications.VisibilityOptimization = true
	if Default().Notifications.OptimizeVisibility() {
		t.Error("mutating one Default() changed the next one")
	}
}

func TestNotificationsVisibilityCanBeEnabled(t *testing.T) {
	t.Setenv("HOME", "/home/ada")
	cfg, err := LoadFile(writeConfig(t, `
homeserver: https://chat.huddle.test
notifications:
  visibility_optimization: true
`))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if !cfg.Notifications.OptimizeVisibility() {
		t.Error("notifications visibility optimization = false, want true from the file")
	}
	if cfg.Notifications.MaxRetryAttempts != 15 {
		t.Errorf("Notifications.MaxRetryAttempts = %d, want default 15", cfg.Notifications.MaxRetryAttempts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestLoadRequiresHuddleConfig(t *testing.T) {
	t.Setenv("HUDDLE_CONFIG", "")

	_, err := Load()
	if err == nil {
		t.Fatal("Load succeeded without HUDDLE_CONFIG")
	}
	if !strings.HasPrefix(err.Error(), "HUDDLE_CONFIG environment variable not set") {
		t.Errorf("error = %q, want HUDDLE_CONFIG hint", err)
	}
}

func TestLoadFile(t *testing.T) {
	t.Setenv("HOME", "/home/ada")
	path := writeConfig(t, `
homeserver: https://chat.huddle.test
transport:
  join_timeout: 5s
messages:
  idle_timeout: 2m
  max_retry_attempts: 4
notifications:
  visibility_optimization: false
rooms:
  - "!general:huddle.test"
  - "!random:huddle.test"
`)
	t.Setenv("HUDDLE_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Homeserver != "https://chat.huddle.test" {
		t.Errorf("Homeserver = %q", cfg.Homeserver)
	}
	if cfg.Transport.JoinTimeout != 5*time.Second {
		t.Errorf("JoinTimeout = %v, want 5s", cfg.Transport.JoinTimeout)
	}
	if cfg.Transport.PollTimeout != 30*time.Second {
		t.Errorf("PollTimeout = %v, want default 30s", cfg.Transport.PollTimeout)
	}
	if cfg.Messages.IdleTimeout != 2*time.Minute || cfg.Messages.MaxRetryAttempts != 4 {
		t.Errorf("Messages = %+v, want idle 2m and 4 attempts", cfg.Messages)
	}
	if cfg.Notifications.OptimizeVisibility() {
		t.Error("notifications visibility optimization not disabled")
	}
	if !cfg.Messages.OptimizeVisibility() {
		t.Error("messages visibility optimization disabled")
	}
	if len(cfg.Rooms) != 2 {
		t.Errorf("Rooms = %v, want 2 rooms", cfg.Rooms)
	}
	if want := "/home/ada/.local/state/huddle/session.age"; cfg.Paths.SessionFile != want {
		t.Errorf("SessionFile = %q, want %q", cfg.Paths.SessionFile, want)
	}
	if want := "/home/ada/.local/state/huddle/control.sock"; cfg.Paths.ControlSocket != want {
		t.Errorf("ControlSocket = %q, want %q", cfg.Paths.ControlSocket, want)
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, `
environment: production
homeserver: https://dev.huddle.test
messages:
  max_retry_attempts: 3
production:
  homeserver: https://chat.huddle.test
  transport:
    probe_interval: 1m
  messages:
    idle_timeout: 30m
    visibility_optimization: false
staging:
  homeserver: https://staging.huddle.test
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}

	if cfg.Homeserver != "https://chat.huddle.test" {
		t.Errorf("Homeserver = %q, want production value", cfg.Homeserver)
	}
	if cfg.Transport.ProbeInterval != time.Minute {
		t.Errorf("ProbeInterval = %v, want 1m", cfg.Transport.ProbeInterval)
	}
	if cfg.Messages.IdleTimeout != 30*time.Minute {
		t.Errorf("Messages.IdleTimeout = %v, want 30m", cfg.Messages.IdleTimeout)
	}
	if cfg.Messages.MaxRetryAttempts != 3 {
		t.Errorf("Messages.MaxRetryAttempts = %d, want base value 3", cfg.Messages.MaxRetryAttempts)
	}
	if cfg.Messages.OptimizeVisibility() {
		t.Error("production override of visibility_optimization not applied")
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
homeserver: https://chat.huddle.test
paths:
  state: /var/lib/huddle
`)
	t.Setenv("HUDDLE_HOMESERVER", "http://localhost:8008")
	t.Setenv("HUDDLE_CONTROL_SOCKET", "/run/huddle/control.sock")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Homeserver != "http://localhost:8008" {
		t.Errorf("Homeserver = %q, want env override", cfg.Homeserver)
	}
	if cfg.Paths.ControlSocket != "/run/huddle/control.sock" {
		t.Errorf("ControlSocket = %q, want env override", cfg.Paths.ControlSocket)
	}
	if cfg.Paths.IdentityFile != "/var/lib/huddle/identity.txt" {
		t.Errorf("IdentityFile = %q, want derived from state", cfg.Paths.IdentityFile)
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Environment = "qa"
	cfg.Homeserver = "chat.huddle.test"
	cfg.Transport.JoinTimeout = 0
	cfg.Messages.MaxRetryAttempts = -1
	cfg.Rooms = []string{"general"}
	cfg.expandVariables()

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate accepted an invalid config")
	}
	for _, want := range []string{
		"invalid environment: qa",
		"homeserver must be an http or https URL",
		"transport.join_timeout must be positive",
		"messages.max_retry_attempts must be positive",
		`rooms: "general" is not a room id`,
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("Validate error missing %q:\n%v", want, err)
		}
	}
}

func TestValidateUnexpandedPath(t *testing.T) {
	cfg := Default()
	cfg.Homeserver = "https://chat.huddle.test"

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "unexpanded variable") {
		t.Fatalf("Validate error = %v, want unexpanded variable", err)
	}
}

func TestExpandVars(t *testing.T) {
	t.Setenv("HUDDLE_TEST_DIR", "/from/env")
	vars := map[string]string{"HUDDLE_STATE": "/state"}

	tests := []struct {
		input string
		want  string
	}{
		{"${HUDDLE_STATE}/session.age", "/state/session.age"},
		{"${HUDDLE_TEST_DIR}/x", "/from/env/x"},
		{"${HUDDLE_UNSET_VAR:-/fallback}/x", "/fallback/x"},
		{"/plain/path", "/plain/path"},
	}
	for _, test := range tests {
		if got := expandVars(test.input, vars); got != test.want {
			t.Errorf("expandVars(%q) = %q, want %q", test.input, got, test.want)
		}
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadFile of a missing file succeeded")
	}
	if _, err := LoadFile(writeConfig(t, "messages: [not, a, map]")); err == nil {
		t.Error("LoadFile of malformed YAML succeeded")
	}
}

func TestLoadFileJSONC(t *testing.T) {
	t.Setenv("HOME", "/home/ada")
	path := filepath.Join(t.TempDir(), "huddle.jsonc")
	content := `{
	// Staging homeserver.
	"homeserver": "https://staging.huddle.test",
	"messages": {"idle_timeout": "90s", "max_retry_attempts": 3,},
	/* Followed at startup. */
	"rooms": ["!general:huddle.test",],
}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Homeserver != "https://staging.huddle.test" {
		t.Errorf("Homeserver = %q, want https://staging.huddle.test", cfg.Homeserver)
	}
	if cfg.Messages.IdleTimeout != 90*time.Second || cfg.Messages.MaxRetryAttempts != 3 {
		t.Errorf("Messages = %+v, want 90s idle timeout and 3 retries", cfg.Messages)
	}
	if len(cfg.Rooms) != 1 || cfg.Rooms[0] != "!general:huddle.test" {
		t.Errorf("Rooms = %v, want [!general:huddle.test]", cfg.Rooms)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
