// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"bytes"
	"fmt"
	"sync"
)

// Memory creates a connected in-process channel pair for protocol
// tests. Semantics match an OS pipe with a large kernel buffer: Send
// never blocks, Recv blocks until the requested bytes are available or
// the sender closes. This matters for the transfer protocol, whose
// producer enqueues all item records before the consumer reads any —
// a fully synchronous pair (io.Pipe) would deadlock it.
func Memory(name string) (*MemoryReceiver, *MemorySender) {
	shared := &memoryBuffer{name: name}
	shared.available = sync.NewCond(&shared.mu)
	return &MemoryReceiver{buffer: shared}, &MemorySender{buffer: shared}
}

type memoryBuffer struct {
	mu        sync.Mutex
	available *sync.Cond
	data      bytes.Buffer
	closed    bool
	name      string
}

// MemorySender is the in-process Sender half created by Memory.
type MemorySender struct {
	buffer *memoryBuffer
}

// Send appends data to the shared buffer and wakes any blocked Recv.
func (s *MemorySender) Send(data []byte) error {
	s.buffer.mu.Lock()
	defer s.buffer.mu.Unlock()
	if s.buffer.closed {
		return fmt.Errorf("%s channel: send on closed channel", s.buffer.name)
	}
	s.buffer.data.Write(data)
	s.buffer.available.Broadcast()
	return nil
}

// Close marks end-of-stream. Blocked receivers wake and observe a
// short read.
func (s *MemorySender) Close() error {
	s.buffer.mu.Lock()
	defer s.buffer.mu.Unlock()
	s.buffer.closed = true
	s.buffer.available.Broadcast()
	return nil
}

// MemoryReceiver is the in-process Receiver half created by Memory.
type MemoryReceiver struct {
	buffer *memoryBuffer
}

// Recv blocks until exactly length bytes are buffered, or fails with a
// transport error if the sender closes first.
func (r *MemoryReceiver) Recv(length int) ([]byte, error) {
	r.buffer.mu.Lock()
	defer r.buffer.mu.Unlock()

	for r.buffer.data.Len() < length {
		if r.buffer.closed {
			return nil, fmt.Errorf("%s channel: read %d bytes: channel closed with %d buffered",
				r.buffer.name, length, r.buffer.data.Len())
		}
		r.buffer.available.Wait()
	}

	data := make([]byte, length)
	r.buffer.data.Read(data)
	return data, nil
}

// Close releases the receiver. Subsequent Send calls still succeed
// (matching a pipe whose reader has not yet hit EPIPE); the bytes are
// simply never consumed.
func (r *MemoryReceiver) Close() error {
	return nil
}
