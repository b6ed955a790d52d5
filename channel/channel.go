// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"fmt"
	"io"
	"os"
)

// Sender is the write end of a unidirectional byte channel. Send
// delivers the whole buffer or fails; there is no partial delivery.
type Sender interface {
	// Send writes data to the channel. A short write or any OS-level
	// error is returned as a transport error; the protocol treats
	// every Send error as fatal for the calling role.
	Send(data []byte) error

	// Close releases the endpoint. The peer's blocked Recv observes
	// end-of-stream.
	Close() error
}

// Receiver is the read end of a unidirectional byte channel. Recv
// blocks until exactly the requested number of bytes has arrived.
type Receiver interface {
	// Recv reads exactly length bytes. A short read (end-of-stream
	// mid-record) or any OS-level error is returned as a transport
	// error; the protocol treats every Recv error as fatal.
	Recv(length int) ([]byte, error)

	// Close releases the endpoint.
	Close() error
}

// PipeSender is a Sender backed by the write end of an OS pipe.
type PipeSender struct {
	file *os.File
	name string
}

// PipeReceiver is a Receiver backed by the read end of an OS pipe.
type PipeReceiver struct {
	file *os.File
	name string
}

// Pipe creates a connected unidirectional OS pipe channel. The name
// identifies the channel in transport error messages ("tensor-data",
// "producer-done", "consumer-ack").
func Pipe(name string) (*PipeReceiver, *PipeSender, error) {
	readFile, writeFile, err := os.Pipe()
	if err != nil {
		return nil, nil, fmt.Errorf("creating %s pipe: %w", name, err)
	}
	return &PipeReceiver{file: readFile, name: name},
		&PipeSender{file: writeFile, name: name}, nil
}

// SenderFromFD wraps an inherited file descriptor as a Sender. Role
// processes call this on the descriptor numbers received from the
// launcher.
func SenderFromFD(fd uintptr, name string) *PipeSender {
	return &PipeSender{
		file: os.NewFile(fd, name),
		name: name,
	}
}

// ReceiverFromFD wraps an inherited file descriptor as a Receiver.
func ReceiverFromFD(fd uintptr, name string) *PipeReceiver {
	return &PipeReceiver{
		file: os.NewFile(fd, name),
		name: name,
	}
}

// Send writes the whole buffer to the pipe. OS pipe writes of this
// protocol's record sizes (at most tens of bytes) are atomic, but the
// short-write check stays: a partial delivery would desynchronize the
// fixed-size record framing for both ends, so it must surface as a
// fatal transport error rather than a retry.
func (s *PipeSender) Send(data []byte) error {
	written, err := s.file.Write(data)
	if err != nil {
		return fmt.Errorf("%s channel: write: %w", s.name, err)
	}
	if written != len(data) {
		return fmt.Errorf("%s channel: short write: %d of %d bytes", s.name, written, len(data))
	}
	return nil
}

// Close closes the underlying pipe end.
func (s *PipeSender) Close() error {
	return s.file.Close()
}

// File exposes the underlying descriptor for launcher-side wiring
// (exec.Cmd ExtraFiles).
func (s *PipeSender) File() *os.File { return s.file }

// Recv blocks until exactly length bytes have been read. End-of-stream
// before the full record arrives is a fatal transport error: the peer
// died or closed its end mid-protocol.
func (r *PipeReceiver) Recv(length int) ([]byte, error) {
	data := make([]byte, length)
	if _, err := io.ReadFull(r.file, data); err != nil {
		return nil, fmt.Errorf("%s channel: read %d bytes: %w", r.name, length, err)
	}
	return data, nil
}

// Close closes the underlying pipe end.
func (r *PipeReceiver) Close() error {
	return r.file.Close()
}

// File exposes the underlying descriptor for launcher-side wiring.
func (r *PipeReceiver) File() *os.File { return r.file }
