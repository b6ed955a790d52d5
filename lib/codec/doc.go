// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides devshare's standard CBOR encoding
// configuration.
//
// CBOR is used for the launcher→role RunSpec handed to each child
// process on stdin. The transfer protocol itself does NOT use CBOR:
// its wire records are fixed-size binary (see the protocol package),
// because every protocol message has a compile-time-known size.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2):
// sorted map keys, smallest integer encoding, no indefinite-length
// items. Same logical data always produces identical bytes, which
// keeps stdin payloads reproducible across runs.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// For stream-oriented operations (the child's stdin):
//
//	decoder := codec.NewDecoder(os.Stdin)
package codec
