// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads configuration for the Huddle realtime daemon
// and CLI.
//
// Configuration comes from a single YAML file named by the
// HUDDLE_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no search path and no ~/.config
// discovery. [Default] values are applied first and the file is
// decoded over them.
//
// The file may carry development, staging and production sections
// whose values override the base when [Config].Environment matches.
// After the file, a small fixed set of HUDDLE_* environment variables
// (homeserver URL and file paths) override the result; nothing else
// reads the environment. ${HOME}, ${HUDDLE_STATE} and ${VAR:-default}
// patterns in paths are expanded last.
//
// This package depends on no other Huddle packages.
package config
