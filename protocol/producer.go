// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"
	"log/slog"

	"github.com/devshare-foundation/devshare/channel"
	"github.com/devshare-foundation/devshare/device"
	"github.com/devshare-foundation/devshare/lib/fingerprint"
	"github.com/devshare-foundation/devshare/tensor"
)

// Config is the per-run protocol configuration shared by both roles.
type Config struct {
	// Items is the number of transfer units N. Zero runs only the
	// done/ack handshake.
	Items int

	// Descriptor is the payload geometry of every item.
	Descriptor tensor.Descriptor
}

// Payload returns the reference payload for one item: element j of
// item i is i*(j+1), so the 2-element shape carries {i, 2i}. Both the
// producer (to fill) and tests (to verify) derive expectations from
// this one definition.
func (c Config) Payload(index int32) []int32 {
	values := make([]int32, c.Descriptor.Elements())
	for j := range values {
		values[j] = index * int32(j+1)
	}
	return values
}

// Producer runs the exporting side of the transfer protocol:
//
//	INIT → (ALLOCATE → FILL → EXPORT → SEND_INDEX → SEND_TOKEN)×N
//	     → SIGNAL_DONE → AWAIT_CONSUMER_ACK → EXIT
//
// Every allocation stays alive until the consumer's ack has been
// read; the ack is the only evidence that no alias of this memory is
// still open in the other process.
type Producer struct {
	config    Config
	allocator device.Allocator
	data      channel.Sender
	done      channel.Sender
	ack       channel.Receiver
	logger    *slog.Logger

	// allocations holds every item's device memory, in item order,
	// so teardown can free them after the ack.
	allocations []device.Allocation
}

// NewProducer wires a producer role instance.
func NewProducer(config Config, allocator device.Allocator, data channel.Sender, done channel.Sender, ack channel.Receiver, logger *slog.Logger) *Producer {
	return &Producer{
		config:    config,
		allocator: allocator,
		data:      data,
		done:      done,
		ack:       ack,
		logger:    logger,
	}
}

// Run drives the producer state machine to completion. Any phase
// error aborts the run immediately; nothing is retried. On success,
// all item allocations have been freed.
func (p *Producer) Run() error {
	p.logger.Info("producer starting", "items", p.config.Items)

	for index := int32(1); index <= int32(p.config.Items); index++ {
		if err := p.transferItem(index); err != nil {
			return fmt.Errorf("item %d: %w", index, err)
		}
	}

	// SIGNAL_DONE: all item records are enqueued. This says "all
	// tokens sent", not "memory freed" — the allocations stay alive
	// until the ack arrives.
	if err := sendSignal(p.done, DoneSignal); err != nil {
		return err
	}
	p.logger.Info("producer signaled done")

	// Device-wide barrier after signaling: every device write is
	// globally visible before this process goes anywhere near exit.
	if err := p.allocator.Synchronize(); err != nil {
		return fmt.Errorf("device synchronize: %w", err)
	}

	// AWAIT_CONSUMER_ACK: block until the consumer confirms every
	// alias is released. Only then is freeing the allocations safe.
	if err := recvSignal(p.ack, AckSignal); err != nil {
		return fmt.Errorf("awaiting consumer ack: %w", err)
	}
	p.logger.Info("producer received consumer ack")

	for i, allocation := range p.allocations {
		if err := p.allocator.Free(allocation); err != nil {
			return fmt.Errorf("freeing item %d allocation: %w", i+1, err)
		}
	}
	p.logger.Info("producer done", "items", p.config.Items)
	return nil
}

// transferItem runs the five per-item phases for one sequence index.
func (p *Producer) transferItem(index int32) error {
	// ALLOCATE. Allocator failures are fatal for the whole role —
	// this failure model treats them as non-transient.
	allocation, err := p.allocator.Allocate(p.config.Descriptor.SizeBytes())
	if err != nil {
		return fmt.Errorf("allocate: %w", err)
	}
	p.allocations = append(p.allocations, allocation)

	// FILL. Must complete before EXPORT: a reference to
	// partially-written memory is observable by the importer the
	// moment it opens the token.
	payload, err := p.config.Descriptor.Encode(p.config.Payload(index))
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	if err := p.allocator.CopyToDevice(allocation, payload); err != nil {
		return fmt.Errorf("fill: %w", err)
	}

	// EXPORT.
	token, err := p.allocator.ExportReference(allocation)
	if err != nil {
		return fmt.Errorf("export reference: %w", err)
	}

	// SEND_INDEX then SEND_TOKEN, in that order — the consumer reads
	// index-then-token, and the two ends must stay lock-step.
	if err := sendIndex(p.data, index); err != nil {
		return err
	}
	if err := sendToken(p.data, token); err != nil {
		return err
	}

	p.logger.Info("producer sent item",
		"item", index,
		"bytes", p.config.Descriptor.SizeBytes(),
		"token", fingerprint.Short(token[:]),
	)
	p.logger.Debug("reference token exported",
		"item", index,
		"token_hex", fingerprint.Hex(token[:]),
	)
	return nil
}
