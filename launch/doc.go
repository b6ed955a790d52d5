// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

// Package launch spawns the producer and consumer roles as child
// processes of one binary and wires them together with three
// unidirectional pipes.
//
// Both children receive the same argv shape (role name plus three fd
// numbers) and the same CBOR run spec on stdin; which ends of the pipes
// they inherit is what differentiates them. The launcher closes its own
// copies of all six pipe ends as soon as both children are running, so
// a crashed role shows up on its peer as end-of-stream rather than a
// hang, then waits for both and propagates the first non-zero exit
// code.
package launch
