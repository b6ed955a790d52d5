// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/devshare-foundation/devshare/channel"
	"github.com/devshare-foundation/devshare/device"
	"github.com/devshare-foundation/devshare/protocol"
)

// RunRole executes one protocol role in the current process over
// channel endpoints inherited on the given descriptors. The descriptor
// order matches what Run passes to children: tensor-data, then
// producer-done, then consumer-ack. Which direction each descriptor
// carries depends on the role.
func RunRole(role string, fds [3]uintptr, config protocol.Config, dev device.Device, logger *slog.Logger, output io.Writer) error {
	switch role {
	case RoleProducer:
		data := channel.SenderFromFD(fds[0], protocol.ChannelTensorData)
		done := channel.SenderFromFD(fds[1], protocol.ChannelProducerDone)
		ack := channel.ReceiverFromFD(fds[2], protocol.ChannelConsumerAck)
		defer closeAll(data, done, ack)
		return protocol.NewProducer(config, dev, data, done, ack, logger).Run()
	case RoleConsumer:
		data := channel.ReceiverFromFD(fds[0], protocol.ChannelTensorData)
		done := channel.ReceiverFromFD(fds[1], protocol.ChannelProducerDone)
		ack := channel.SenderFromFD(fds[2], protocol.ChannelConsumerAck)
		defer closeAll(data, done, ack)
		return protocol.NewConsumer(config, dev, data, done, ack, logger, output).Run()
	default:
		return fmt.Errorf("unknown role %q (want %q or %q)", role, RoleProducer, RoleConsumer)
	}
}
