// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import "fmt"

// Backend names a device allocator implementation. The launcher
// resolves the backend once and passes the name to both roles so they
// open the same kind of device.
const (
	// BackendMemsim is the shared-memory simulated device. It is the
	// default: the full two-process pipeline runs on it without GPU
	// hardware, with the same export/import lifetime rules.
	BackendMemsim = "memsim"
)

// RunSpec is the CBOR-encoded run configuration piped from the
// launcher to each role process's stdin. It replaces compiled-in
// constants: item count, device ordinal, and payload geometry are
// decided once by the launcher and delivered identically to both
// roles. The role discriminator and channel endpoint numbers travel
// in argv, not here — they differ per child, while the RunSpec is
// shared verbatim.
type RunSpec struct {
	// Items is the number of transfer units N. May be zero: the
	// roles still run the done/ack handshake with no item traffic.
	Items int `cbor:"items"`

	// DeviceOrdinal selects the device both roles open. The producer
	// allocates on it; the consumer opens its own context on the
	// same ordinal and aliases the producer's memory.
	DeviceOrdinal int `cbor:"device_ordinal"`

	// Backend is the device allocator implementation name
	// (BackendMemsim). Both roles must use the same backend or the
	// consumer cannot interpret the producer's reference tokens.
	Backend string `cbor:"backend"`

	// Shape is the payload geometry of every item. Fixed for the
	// whole run; this system transfers uniform 2-element int32
	// vectors, but the shape travels in the spec rather than being
	// hardcoded in the roles.
	Shape []int64 `cbor:"shape"`
}

// Validate checks a RunSpec received from the launcher. Roles reject
// a malformed spec before touching the device or the channels.
func (s *RunSpec) Validate() error {
	if s.Items < 0 {
		return fmt.Errorf("items must be >= 0, got %d", s.Items)
	}
	if s.DeviceOrdinal < 0 {
		return fmt.Errorf("device ordinal must be >= 0, got %d", s.DeviceOrdinal)
	}
	if s.Backend == "" {
		return fmt.Errorf("backend is required")
	}
	if len(s.Shape) == 0 {
		return fmt.Errorf("shape is required")
	}
	for i, dim := range s.Shape {
		if dim <= 0 {
			return fmt.Errorf("shape[%d] must be > 0, got %d", i, dim)
		}
	}
	return nil
}
