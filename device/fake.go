// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

package device

import (
	"encoding/binary"
	"fmt"
	"sync"
)

// fakeMagic stamps tokens minted by the fake device.
var fakeMagic = []byte{'F', 'A', 'K', 'E'}

// Fake is an in-memory Device for protocol tests. Allocations are host
// byte slices; exported tokens carry the allocation id; imported
// aliases share the allocation's backing array, so reads through an
// alias observe the owner's writes exactly as device aliasing would.
//
// Fake records every lifecycle event in order, letting tests assert
// the protocol's safety properties (no Free before every Release, no
// Import before the producer-done signal) without a real device. It is
// safe for concurrent use: protocol tests run the producer and
// consumer as goroutines against one shared Fake.
type Fake struct {
	mu          sync.Mutex
	allocations map[uint64]*fakeAllocation
	nextID      uint64
	events      []string
	closed      bool

	// failAllocateAt makes the Nth Allocate call fail (1-based).
	// Zero disables injection.
	failAllocateAt int
	allocateCalls  int
}

type fakeAllocation struct {
	id   uint64
	data []byte
	// freed marks the allocation dead; importing or reading after
	// Free is the lifetime violation the handshake prevents.
	freed bool
}

type fakeAlias struct {
	allocation *fakeAllocation
}

func (a *fakeAllocation) Size() int64 { return int64(len(a.data)) }

func (a *fakeAlias) Bytes() []byte { return a.allocation.data }
func (a *fakeAlias) Size() int64   { return int64(len(a.allocation.data)) }

// NewFake creates an empty fake device.
func NewFake() *Fake {
	return &Fake{allocations: make(map[uint64]*fakeAllocation)}
}

// FailAllocateAt arranges for the nth Allocate call (1-based) to fail.
func (f *Fake) FailAllocateAt(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failAllocateAt = n
}

// Events returns the ordered lifecycle event log. Entries look like
// "allocate#1", "export#1", "import#1", "release#1", "free#1",
// "synchronize".
func (f *Fake) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

// Record appends an external marker (e.g. a handshake signal observed
// by a test harness) into the event log, so channel-level and
// device-level events can be ordered against each other in one
// timeline.
func (f *Fake) Record(event string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

// Allocate implements Allocator.
func (f *Fake) Allocate(size int64) (Allocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}

	f.allocateCalls++
	if f.failAllocateAt != 0 && f.allocateCalls == f.failAllocateAt {
		return nil, fmt.Errorf("injected allocation failure on call %d", f.allocateCalls)
	}
	if size <= 0 {
		return nil, fmt.Errorf("allocation size must be > 0, got %d", size)
	}

	f.nextID++
	allocation := &fakeAllocation{id: f.nextID, data: make([]byte, size)}
	f.allocations[allocation.id] = allocation
	f.events = append(f.events, fmt.Sprintf("allocate#%d", allocation.id))
	return allocation, nil
}

// CopyToDevice implements Allocator.
func (f *Fake) CopyToDevice(allocation Allocation, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	target, err := f.lookupLocked(allocation)
	if err != nil {
		return err
	}
	if len(data) != len(target.data) {
		return fmt.Errorf("copy size %d does not match allocation size %d", len(data), len(target.data))
	}
	copy(target.data, data)
	f.events = append(f.events, fmt.Sprintf("fill#%d", target.id))
	return nil
}

// ExportReference implements Allocator. The token is the fake magic
// followed by the allocation id; the remaining bytes stay zero.
func (f *Fake) ExportReference(allocation Allocation) (Token, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var token Token
	target, err := f.lookupLocked(allocation)
	if err != nil {
		return token, err
	}

	copy(token[:], fakeMagic)
	binary.LittleEndian.PutUint64(token[len(fakeMagic):], target.id)
	f.events = append(f.events, fmt.Sprintf("export#%d", target.id))
	return token, nil
}

// Free implements Allocator.
func (f *Fake) Free(allocation Allocation) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	target, err := f.lookupLocked(allocation)
	if err != nil {
		return err
	}
	target.freed = true
	delete(f.allocations, target.id)
	f.events = append(f.events, fmt.Sprintf("free#%d", target.id))
	return nil
}

// Synchronize implements Allocator.
func (f *Fake) Synchronize() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	f.events = append(f.events, "synchronize")
	return nil
}

// ImportReference implements Importer.
func (f *Fake) ImportReference(token Token) (Alias, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}

	if err := CheckTokenMagic(token, fakeMagic); err != nil {
		return nil, err
	}
	id := binary.LittleEndian.Uint64(token[len(fakeMagic):])
	allocation, exists := f.allocations[id]
	if !exists {
		return nil, fmt.Errorf("token names allocation %d, which does not exist (freed before import?)", id)
	}
	f.events = append(f.events, fmt.Sprintf("import#%d", id))
	return &fakeAlias{allocation: allocation}, nil
}

// ReleaseReference implements Importer.
func (f *Fake) ReleaseReference(alias Alias) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fake, ok := alias.(*fakeAlias)
	if !ok {
		return fmt.Errorf("alias was not created by this device")
	}
	f.events = append(f.events, fmt.Sprintf("release#%d", fake.allocation.id))
	return nil
}

// Close implements Device.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *Fake) lookupLocked(allocation Allocation) (*fakeAllocation, error) {
	if f.closed {
		return nil, ErrClosed
	}
	target, ok := allocation.(*fakeAllocation)
	if !ok {
		return nil, fmt.Errorf("allocation was not created by this device")
	}
	if target.freed {
		return nil, fmt.Errorf("allocation %d already freed", target.id)
	}
	return target, nil
}
