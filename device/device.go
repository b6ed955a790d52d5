// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"errors"
	"fmt"
)

// TokenSize is the fixed width of a reference token in bytes. It
// matches the platform reference-handle size (CUDA's IPC memory
// handle is 64 bytes); every backend must fit its token in this
// envelope because the wire format transmits exactly TokenSize bytes
// per item with no length prefix.
const TokenSize = 64

// Token is an opaque, fixed-width, process-portable reference to an
// Allocation. The protocol transmits it byte-exact and never inspects
// its contents. A token is valid from the moment ExportReference
// succeeds until the owning allocation is freed.
type Token [TokenSize]byte

// ErrClosed is returned by operations on a device that has been
// closed.
var ErrClosed = errors.New("device is closed")

// Allocation is a region of device memory owned by exactly one
// process. Only the owning process may fill or free it; other
// processes reach it through imported aliases.
type Allocation interface {
	// Size returns the allocation size in bytes.
	Size() int64
}

// Alias is a non-owning local view of memory owned by another
// process's Allocation. Reading through an alias observes the
// owner's writes; an alias never frees the underlying memory.
type Alias interface {
	// Bytes exposes the aliased memory read-only. The slice is valid
	// until ReleaseReference.
	Bytes() []byte

	// Size returns the aliased region size in bytes.
	Size() int64
}

// Allocator is the producer-side device capability: allocate, fill,
// and free device memory, and export process-portable references.
//
// All calls are synchronous with respect to the calling process's
// logical ordering: when CopyToDevice returns, the data is visible to
// any subsequently exported and imported reference.
type Allocator interface {
	// Allocate reserves size bytes of device memory. Allocation
	// failures are not transient in this design's failure model;
	// callers abort rather than retry.
	Allocate(size int64) (Allocation, error)

	// CopyToDevice writes host data into the allocation. The data
	// must be fully written before the allocation's reference is
	// exported — there is no per-item synchronization signal, only
	// the stream-level happens-before via channel ordering.
	CopyToDevice(allocation Allocation, data []byte) error

	// ExportReference produces a token naming the allocation. May
	// fail if the runtime limits outstanding references; fatal on
	// failure, no backoff.
	ExportReference(allocation Allocation) (Token, error)

	// Free releases the allocation. The caller must guarantee that
	// every importer has released its alias first — freeing while an
	// alias is open is the failure mode this whole protocol exists
	// to prevent.
	Free(allocation Allocation) error

	// Synchronize blocks until all device writes are globally
	// visible. The producer calls it once after signaling done, so
	// that nothing is left in flight when it eventually exits.
	Synchronize() error

	// Close releases the device context and everything still
	// allocated in it.
	Close() error
}

// Importer is the consumer-side device capability: open and release
// aliases of another process's allocations. The importing process
// holds its own device context, distinct from the exporter's; how
// cross-context access is enabled (eagerly or lazily) is a backend
// concern hidden behind ImportReference.
type Importer interface {
	// ImportReference reconstructs a local alias of the allocation
	// named by token. Fails if the token is malformed or the owning
	// allocation no longer exists.
	ImportReference(token Token) (Alias, error)

	// ReleaseReference invalidates the alias without freeing the
	// underlying allocation — ownership never transfers.
	ReleaseReference(alias Alias) error

	// Close releases the device context and any aliases still open.
	Close() error
}

// Device is the full collaborator surface. Concrete backends
// (device/memsim) implement it; each role uses only its half.
type Device interface {
	Allocator
	Importer
}

// CheckTokenMagic is a helper for backends that stamp a magic prefix
// into their tokens: it verifies the prefix and returns a uniform
// error if the token was produced by a different backend or is
// corrupt.
func CheckTokenMagic(token Token, magic []byte) error {
	if len(magic) > TokenSize {
		return fmt.Errorf("magic longer than token (%d > %d)", len(magic), TokenSize)
	}
	for i, b := range magic {
		if token[i] != b {
			return fmt.Errorf("token magic mismatch: not a reference from this backend")
		}
	}
	return nil
}
