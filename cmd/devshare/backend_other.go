// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package main

import (
	"fmt"

	"github.com/devshare-foundation/devshare/device"
)

// openBackend: the memsim backend needs Linux shared memory; no backend
// is available elsewhere.
func openBackend(backend string, ordinal int) (device.Device, error) {
	return nil, fmt.Errorf("backend %q is not supported on this platform", backend)
}
