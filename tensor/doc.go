// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

// Package tensor provides the buffer-view collaborator: a typed,
// read-only interpretation of device memory reached through an
// imported alias. The transfer protocol moves raw bytes; the view is
// how the consumer turns those bytes back into the structured values
// the producer wrote.
package tensor
