// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

// Package fingerprint computes BLAKE3 digests of reference tokens and
// payload bytes for diagnostics. Fingerprints appear only in log
// output; the protocol transmits tokens byte-exact and never hashes
// them on the wire.
package fingerprint
