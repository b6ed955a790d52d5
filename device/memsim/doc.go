// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

// Package memsim implements the device contract on POSIX shared
// memory, so the full two-process transfer pipeline runs on any Linux
// machine with no GPU attached while exercising the exact reference
// export/import lifetime rules.
//
// An allocation is a /dev/shm segment owned by the creating process.
// The exported 64-byte token carries the segment path and size;
// importing opens and maps the segment read-only in the second
// process, aliasing the same physical pages. Free unlinks the
// segment, ending the token's validity window — an import attempted
// after the owner frees fails to open the path, the same observable
// failure a real device reports for a dead IPC handle.
package memsim
