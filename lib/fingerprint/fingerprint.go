// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

package fingerprint

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// shortLength is the number of hex characters in a short fingerprint.
// Twelve characters (48 bits) is plenty to tell tokens apart in a log
// stream while keeping log lines readable.
const shortLength = 12

// Sum computes the full BLAKE3 digest of data.
func Sum(data []byte) [32]byte {
	return blake3.Sum256(data)
}

// Short returns a 12-hex-character BLAKE3 fingerprint of data. Used in
// log lines to identify reference tokens and payload contents without
// dumping 64 opaque bytes per line.
func Short(data []byte) string {
	digest := Sum(data)
	return hex.EncodeToString(digest[:])[:shortLength]
}

// Hex returns the hex encoding of data prefixed with "0x", matching
// the debug dump format for full reference tokens.
func Hex(data []byte) string {
	return "0x" + hex.EncodeToString(data)
}
