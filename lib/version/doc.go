// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for Huddle binaries.
//
// Release builds inject the values with -ldflags -X:
//
//	go build -ldflags "-X github.com/huddle-chat/huddle/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Development builds fall back to the VCS stamp the Go toolchain
// records in the binary, then to "unknown".
package version
