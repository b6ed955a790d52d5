// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package memsim

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/devshare-foundation/devshare/device"
)

// Token layout (64 bytes, little-endian):
//
//	bytes  0:4   magic "DSMS"
//	byte   4     token format version (1)
//	bytes  5:8   reserved, zero
//	bytes  8:16  allocation size (uint64)
//	bytes 16:64  segment path, NUL-padded
//
// The path-carrying token is self-contained the way a CUDA IPC handle
// is: any process on the machine that receives the 64 bytes can open
// the allocation, and nothing else is needed.
var tokenMagic = []byte{'D', 'S', 'M', 'S'}

const (
	tokenVersion    = 1
	tokenSizeOffset = 8
	tokenPathOffset = 16
	maxPathLength   = device.TokenSize - tokenPathOffset

	segmentDir    = "/dev/shm"
	segmentPrefix = "devshare-"
)

// Memsim implements device.Device on POSIX shared memory. Each
// allocation is a /dev/shm segment created, sized, and mapped
// read-write by the owner; importers open the same segment and map it
// read-only. The lifetime rules mirror the real device contract: Free
// unlinks the segment, so a token is importable exactly while its
// allocation is alive, and ReleaseReference only unmaps the local
// view.
//
// The device ordinal exists for contract parity — shared memory has a
// single "device" — but an ordinal mismatch between roles would be a
// configuration bug elsewhere, so Open validates it.
type Memsim struct {
	mu          sync.Mutex
	ordinal     int
	nextID      uint64
	allocations map[string]*allocation
	aliases     map[*alias]struct{}
	closed      bool
}

type allocation struct {
	path string
	fd   int
	data []byte
}

type alias struct {
	path string
	fd   int
	data []byte
}

func (a *allocation) Size() int64 { return int64(len(a.data)) }

func (a *alias) Bytes() []byte { return a.data }
func (a *alias) Size() int64   { return int64(len(a.data)) }

// Open creates a simulated device context for the given ordinal.
func Open(ordinal int) (*Memsim, error) {
	if ordinal < 0 {
		return nil, fmt.Errorf("device ordinal must be >= 0, got %d", ordinal)
	}
	if _, err := os.Stat(segmentDir); err != nil {
		return nil, fmt.Errorf("shared memory directory %s unavailable: %w", segmentDir, err)
	}
	return &Memsim{
		ordinal:     ordinal,
		allocations: make(map[string]*allocation),
		aliases:     make(map[*alias]struct{}),
	}, nil
}

// Allocate implements device.Allocator.
func (m *Memsim) Allocate(size int64) (device.Allocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, device.ErrClosed
	}
	if size <= 0 {
		return nil, fmt.Errorf("allocation size must be > 0, got %d", size)
	}

	m.nextID++
	path := fmt.Sprintf("%s/%s%d-%d-%d", segmentDir, segmentPrefix, m.ordinal, os.Getpid(), m.nextID)
	if len(path) > maxPathLength {
		return nil, fmt.Errorf("segment path %q exceeds token capacity (%d bytes)", path, maxPathLength)
	}

	fd, err := unix.Open(path, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR|unix.O_CLOEXEC, 0600)
	if err != nil {
		return nil, fmt.Errorf("creating segment %s: %w", path, err)
	}
	if err := unix.Ftruncate(fd, size); err != nil {
		unix.Close(fd)
		unix.Unlink(path)
		return nil, fmt.Errorf("sizing segment %s to %d bytes: %w", path, size, err)
	}
	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		unix.Unlink(path)
		return nil, fmt.Errorf("mapping segment %s: %w", path, err)
	}

	result := &allocation{path: path, fd: fd, data: data}
	m.allocations[path] = result
	return result, nil
}

// CopyToDevice implements device.Allocator.
func (m *Memsim) CopyToDevice(target device.Allocation, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	owned, err := m.lookupLocked(target)
	if err != nil {
		return err
	}
	if len(data) != len(owned.data) {
		return fmt.Errorf("copy size %d does not match allocation size %d", len(data), len(owned.data))
	}
	copy(owned.data, data)
	return nil
}

// ExportReference implements device.Allocator.
func (m *Memsim) ExportReference(target device.Allocation) (device.Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var token device.Token
	owned, err := m.lookupLocked(target)
	if err != nil {
		return token, err
	}

	copy(token[:], tokenMagic)
	token[len(tokenMagic)] = tokenVersion
	binary.LittleEndian.PutUint64(token[tokenSizeOffset:], uint64(len(owned.data)))
	copy(token[tokenPathOffset:], owned.path)
	return token, nil
}

// Free implements device.Allocator. Unlinking the segment closes the
// token's validity window: imports racing past this point fail to
// open the path, which is exactly the premature-free condition the
// completion handshake exists to rule out.
func (m *Memsim) Free(target device.Allocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	owned, err := m.lookupLocked(target)
	if err != nil {
		return err
	}
	delete(m.allocations, owned.path)
	return destroySegment(owned)
}

// Synchronize implements device.Allocator: flush every live mapping
// so all writes are globally visible before the caller proceeds.
func (m *Memsim) Synchronize() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return device.ErrClosed
	}
	for _, owned := range m.allocations {
		if err := unix.Msync(owned.data, unix.MS_SYNC); err != nil {
			return fmt.Errorf("syncing segment %s: %w", owned.path, err)
		}
	}
	return nil
}

// ImportReference implements device.Importer. The mapping is created
// read-only: an alias never mutates memory it does not own.
func (m *Memsim) ImportReference(token device.Token) (device.Alias, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, device.ErrClosed
	}

	size, path, err := parseToken(token)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("opening segment %s (allocation freed before import?): %w", path, err)
	}

	var stat unix.Stat_t
	if err := unix.Fstat(fd, &stat); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("inspecting segment %s: %w", path, err)
	}
	if stat.Size != int64(size) {
		unix.Close(fd)
		return nil, fmt.Errorf("segment %s is %d bytes, token says %d", path, stat.Size, size)
	}

	data, err := unix.Mmap(fd, 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mapping segment %s: %w", path, err)
	}
	opened := &alias{path: path, fd: fd, data: data}
	m.aliases[opened] = struct{}{}
	return opened, nil
}

// ReleaseReference implements device.Importer: unmap and close the
// local view. The segment itself stays alive until its owner frees it.
func (m *Memsim) ReleaseReference(view device.Alias) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	opened, ok := view.(*alias)
	if !ok {
		return fmt.Errorf("alias was not created by this device")
	}
	if _, live := m.aliases[opened]; !live {
		return fmt.Errorf("alias of %s already released", opened.path)
	}
	delete(m.aliases, opened)
	return releaseAlias(opened)
}

// Close implements device.Device: releases any aliases still open in
// this context and frees everything still allocated in it. When the
// handshake completed cleanly there is nothing left on either side.
func (m *Memsim) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var firstError error
	for opened := range m.aliases {
		if err := releaseAlias(opened); err != nil && firstError == nil {
			firstError = err
		}
		delete(m.aliases, opened)
	}
	for path, owned := range m.allocations {
		if err := destroySegment(owned); err != nil && firstError == nil {
			firstError = err
		}
		delete(m.allocations, path)
	}
	return firstError
}

func (m *Memsim) lookupLocked(target device.Allocation) (*allocation, error) {
	if m.closed {
		return nil, device.ErrClosed
	}
	owned, ok := target.(*allocation)
	if !ok {
		return nil, fmt.Errorf("allocation was not created by this device")
	}
	if _, live := m.allocations[owned.path]; !live {
		return nil, fmt.Errorf("allocation %s already freed", owned.path)
	}
	return owned, nil
}

func releaseAlias(opened *alias) error {
	if err := unix.Munmap(opened.data); err != nil {
		return fmt.Errorf("unmapping segment %s: %w", opened.path, err)
	}
	if err := unix.Close(opened.fd); err != nil {
		return fmt.Errorf("closing segment %s: %w", opened.path, err)
	}
	return nil
}

func destroySegment(owned *allocation) error {
	if err := unix.Munmap(owned.data); err != nil {
		return fmt.Errorf("unmapping segment %s: %w", owned.path, err)
	}
	if err := unix.Close(owned.fd); err != nil {
		return fmt.Errorf("closing segment %s: %w", owned.path, err)
	}
	if err := unix.Unlink(owned.path); err != nil {
		return fmt.Errorf("unlinking segment %s: %w", owned.path, err)
	}
	return nil
}

func parseToken(token device.Token) (uint64, string, error) {
	if err := device.CheckTokenMagic(token, tokenMagic); err != nil {
		return 0, "", err
	}
	if token[len(tokenMagic)] != tokenVersion {
		return 0, "", fmt.Errorf("unsupported token version %d", token[len(tokenMagic)])
	}

	size := binary.LittleEndian.Uint64(token[tokenSizeOffset:])

	pathBytes := token[tokenPathOffset:]
	end := 0
	for end < len(pathBytes) && pathBytes[end] != 0 {
		end++
	}
	path := string(pathBytes[:end])
	if len(path) <= len(segmentDir)+1+len(segmentPrefix) || path[:len(segmentDir)+1+len(segmentPrefix)] != segmentDir+"/"+segmentPrefix {
		return 0, "", fmt.Errorf("token path %q is not a devshare segment", path)
	}
	return size, path, nil
}
