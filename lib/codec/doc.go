// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides Huddle's CBOR encoding configuration.
//
// JSON is used where Huddle talks to the outside: the homeserver API,
// config-adjacent files and CLI --json output. CBOR is used on the
// local control socket between the host shell (or the CLI) and the
// realtime daemon. Every package encodes through the modes defined
// here so that the same value always produces the same bytes.
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Types carry either `cbor` tags (CBOR only) or `json` tags (both
// formats; fxamacker/cbor falls back to json tags). Never both on the
// same field.
package codec
