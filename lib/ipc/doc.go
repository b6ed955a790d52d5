// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipc defines the CBOR-encoded RunSpec handed from the
// launcher to the role processes over stdin. Both cmd/devshare's
// launcher path and its role path import this package so the wire
// type is defined once rather than mirrored.
package ipc
