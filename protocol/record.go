// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/binary"
	"fmt"

	"github.com/devshare-foundation/devshare/channel"
	"github.com/devshare-foundation/devshare/device"
)

// Channel names used in endpoint wiring and transport error messages.
// Three independent streams carry the whole protocol.
const (
	ChannelTensorData   = "tensor-data"
	ChannelProducerDone = "producer-done"
	ChannelConsumerAck  = "consumer-ack"
)

// Item record layout on the tensor-data channel: a 4-byte
// little-endian signed sequence index immediately followed by the
// 64-byte reference token, repeated exactly N times. No length
// prefix, no delimiter — every field has compile-time-known size, and
// both ends advance through the stream in lock-step.
const indexSize = 4

// Completion sentinels. One byte each, sent exactly once per run:
// 'D' producer→consumer when all item records are enqueued, 'A'
// consumer→producer when every alias has been released.
const (
	DoneSignal byte = 'D'
	AckSignal  byte = 'A'
)

func sendIndex(sender channel.Sender, index int32) error {
	var record [indexSize]byte
	binary.LittleEndian.PutUint32(record[:], uint32(index))
	if err := sender.Send(record[:]); err != nil {
		return fmt.Errorf("sending index %d: %w", index, err)
	}
	return nil
}

func recvIndex(receiver channel.Receiver) (int32, error) {
	record, err := receiver.Recv(indexSize)
	if err != nil {
		return 0, fmt.Errorf("receiving index: %w", err)
	}
	return int32(binary.LittleEndian.Uint32(record)), nil
}

func sendToken(sender channel.Sender, token device.Token) error {
	if err := sender.Send(token[:]); err != nil {
		return fmt.Errorf("sending reference token: %w", err)
	}
	return nil
}

func recvToken(receiver channel.Receiver) (device.Token, error) {
	var token device.Token
	record, err := receiver.Recv(device.TokenSize)
	if err != nil {
		return token, fmt.Errorf("receiving reference token: %w", err)
	}
	copy(token[:], record)
	return token, nil
}

func sendSignal(sender channel.Sender, signal byte) error {
	if err := sender.Send([]byte{signal}); err != nil {
		return fmt.Errorf("sending %q signal: %w", signal, err)
	}
	return nil
}

func recvSignal(receiver channel.Receiver, want byte) error {
	record, err := receiver.Recv(1)
	if err != nil {
		return fmt.Errorf("receiving %q signal: %w", want, err)
	}
	if record[0] != want {
		return fmt.Errorf("expected %q signal, got byte 0x%02X", want, record[0])
	}
	return nil
}
