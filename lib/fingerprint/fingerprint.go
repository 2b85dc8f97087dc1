// Copyright 2026 The Huddle Authors
// SPDX-License-Identifier: Apache-2.0

// Package fingerprint derives short, non-reversible identifiers for
// credentials so that logs and status output can tell tokens apart
// without ever containing one.
//
// Fingerprints are BLAKE3 keyed hashes under a fixed domain key. The
// domain key keeps a token fingerprint from colliding with any other
// BLAKE3 use of the same bytes.
package fingerprint

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Size is the number of digest bytes kept in a fingerprint.
const Size = 8

// tokenDomainKey is the ASCII domain name zero-padded to 32 bytes.
// Changing it changes every fingerprint.
var tokenDomainKey = [32]byte{
	'h', 'u', 'd', 'd', 'l', 'e', '.', 't', 'o', 'k', 'e', 'n', '.',
	'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't',
}

// Token returns the hex fingerprint of a credential. The empty string
// fingerprints to the empty string so that "no token" reads as such.
func Token(token string) string {
	if token == "" {
		return ""
	}
	hasher, err := blake3.NewKeyed(tokenDomainKey[:])
	if err != nil {
		panic("fingerprint: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write([]byte(token))
	digest := hasher.Sum(nil)
	return hex.EncodeToString(digest[:Size])
}
