// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

// Package device defines the contracts the transfer protocol requires
// of its device-memory collaborators: an Allocator that owns and
// exports allocations, and an Importer that opens and releases
// aliases in a second process.
//
// The protocol never inspects a reference token; it only moves the
// fixed 64 bytes across the wire. The sharp edges live in the
// lifetime rules the interfaces document: an allocation must outlive
// every alias imported from its token, and only the completion
// handshake (not the device layer) enforces that across processes.
//
// Backends: device/memsim implements the contract on POSIX shared
// memory for hardware-free operation; Fake (in this package) is the
// instrumented in-memory implementation protocol tests run against.
package device
