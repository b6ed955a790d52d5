// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/devshare-foundation/devshare/device"
	"github.com/devshare-foundation/devshare/device/memsim"
	"github.com/devshare-foundation/devshare/lib/ipc"
)

// openBackend opens the device backend named in the run spec.
func openBackend(backend string, ordinal int) (device.Device, error) {
	switch backend {
	case ipc.BackendMemsim:
		return memsim.Open(ordinal)
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
}
