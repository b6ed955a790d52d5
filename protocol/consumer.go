// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/devshare-foundation/devshare/channel"
	"github.com/devshare-foundation/devshare/device"
	"github.com/devshare-foundation/devshare/lib/fingerprint"
	"github.com/devshare-foundation/devshare/tensor"
)

// Consumer runs the importing side of the transfer protocol:
//
//	INIT → AWAIT_PRODUCER_DONE
//	     → (RECV_INDEX → RECV_TOKEN → IMPORT → READ → RELEASE)×N
//	     → SIGNAL_ACK → EXIT
//
// Waiting for the producer-done signal before touching the data
// channel establishes the happens-before edge the lifetime rules
// need: by the time the first import runs, every token on the stream
// names a fully filled, still-alive allocation.
type Consumer struct {
	config   Config
	importer device.Importer
	data     channel.Receiver
	done     channel.Receiver
	ack      channel.Sender
	logger   *slog.Logger

	// output receives the per-item record display — the program's
	// actual output, as opposed to diagnostics. Usually os.Stdout.
	output io.Writer
}

// NewConsumer wires a consumer role instance.
func NewConsumer(config Config, importer device.Importer, data channel.Receiver, done channel.Receiver, ack channel.Sender, logger *slog.Logger, output io.Writer) *Consumer {
	return &Consumer{
		config:   config,
		importer: importer,
		data:     data,
		done:     done,
		ack:      ack,
		logger:   logger,
		output:   output,
	}
}

// Run drives the consumer state machine to completion. Any phase
// error aborts the run immediately.
func (c *Consumer) Run() error {
	c.logger.Info("consumer starting", "items", c.config.Items)

	// AWAIT_PRODUCER_DONE.
	if err := recvSignal(c.done, DoneSignal); err != nil {
		return fmt.Errorf("awaiting producer done: %w", err)
	}
	c.logger.Info("consumer observed producer done")

	for expected := int32(1); expected <= int32(c.config.Items); expected++ {
		if err := c.consumeItem(expected); err != nil {
			return fmt.Errorf("item %d: %w", expected, err)
		}
	}

	// SIGNAL_ACK: every alias is released; the producer may now let
	// its allocations go.
	if err := sendSignal(c.ack, AckSignal); err != nil {
		return err
	}
	c.logger.Info("consumer done", "items", c.config.Items)
	return nil
}

// consumeItem runs the five per-item phases for one expected sequence
// index.
func (c *Consumer) consumeItem(expected int32) error {
	// RECV_INDEX then RECV_TOKEN, mirroring the producer's send
	// order exactly.
	index, err := recvIndex(c.data)
	if err != nil {
		return err
	}
	if index != expected {
		return fmt.Errorf("sequence index %d out of order (expected %d)", index, expected)
	}
	token, err := recvToken(c.data)
	if err != nil {
		return err
	}

	// IMPORT: open a local alias of the producer's allocation in
	// this process's own device context.
	alias, err := c.importer.ImportReference(token)
	if err != nil {
		return fmt.Errorf("import reference: %w", err)
	}

	// READ: construct the structured view and emit the record. The
	// view borrows the aliased bytes, so the display must happen
	// before RELEASE.
	view, err := tensor.NewView(alias.Bytes(), c.config.Descriptor)
	if err != nil {
		c.importer.ReleaseReference(alias)
		return fmt.Errorf("constructing view: %w", err)
	}
	fmt.Fprintf(c.output, "#%d: %s\n", index, view)
	c.logger.Info("consumer read item",
		"item", index,
		"token", fingerprint.Short(token[:]),
		"payload", fingerprint.Short(alias.Bytes()),
	)

	// RELEASE: drop the local alias. Ownership of the allocation
	// never transfers; the producer frees it after the ack.
	if err := c.importer.ReleaseReference(alias); err != nil {
		return fmt.Errorf("release reference: %w", err)
	}
	return nil
}
