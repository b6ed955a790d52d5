// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol implements the four-phase transfer handshake that
// makes cross-process device-buffer sharing safe:
//
//  1. The producer allocates, fills, and exports a reference for each
//     item, streaming fixed-size index+token records on the
//     tensor-data channel.
//  2. The producer signals done (one 'D' byte) — all tokens are
//     enqueued, no memory has been freed.
//  3. The consumer, released by the done signal, imports each token,
//     reads through the alias, and releases it, in strict sequence
//     order.
//  4. The consumer signals ack (one 'A' byte); only then does the
//     producer free its allocations.
//
// Channel ordering substitutes for a lock: FILL happens-before
// EXPORT/SEND within the producer, the done signal happens-before any
// consumer import across processes, and the ack happens-before any
// free. There are no retries, timeouts, or cancellation — a phase
// either completes or returns an error that terminates the role, and
// a role waiting for a peer that never speaks blocks forever (an
// external harness or operator supplies the deadline).
//
// Both role state machines are plain phase functions returning
// errors, so the whole protocol runs in-process against fake channels
// and a fake device in tests.
package protocol
