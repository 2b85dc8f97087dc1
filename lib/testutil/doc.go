// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Huddle packages.
//
// [SocketDir] creates a temporary directory in /tmp suitable for Unix
// domain sockets. Unix socket paths are limited to 108 bytes, and
// t.TempDir() paths under a nested TMPDIR can exceed that.
//
// [RequireReceive], [RequireSend], [RequireClosed] and [Eventually]
// encapsulate the timeout safety valve pattern (select with time.After
// fallback) so that individual tests do not need direct time.After
// calls. These are the only place in the test suite where real
// wall-clock timeouts are used; everything else runs on a fake clock.
//
// [UniqueID] generates monotonically increasing identifiers for test
// disambiguation.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
