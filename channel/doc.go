// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

// Package channel implements the transfer protocol's transport
// primitive: a unidirectional, byte-exact, blocking, ordered stream
// between two processes.
//
// The protocol imposes its own message boundaries by always sending
// and receiving records of statically known size, so the channel
// contract is deliberately narrow: Send delivers a whole buffer or
// fails, Recv blocks for an exact byte count or fails. A short read or
// write is never a retry condition — it means the fixed-size-record
// framing is broken for both ends, and every caller treats it as
// fatal.
//
// Two implementations exist: OS pipes (Pipe, SenderFromFD,
// ReceiverFromFD) carry the real inter-process channels wired by the
// launcher; Memory provides an in-process pair with pipe-like
// buffering for protocol tests.
package channel
