// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides scenario configuration loading for the
// devshare launcher.
//
// Configuration is loaded from a single YAML file specified by:
//   - the DEVSHARE_CONFIG environment variable, or
//   - the --config flag passed to the command.
//
// There are no fallbacks or automatic discovery. Command-line flags
// override values loaded from the file; the merged result is what the
// launcher encodes into the RunSpec for both roles.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/devshare-foundation/devshare/lib/ipc"
)

// Scenario describes one transfer run: how many items to move, which
// device to use, and the payload geometry.
type Scenario struct {
	// Items is the number of transfer units. The reference scenario
	// uses 9; zero is legal and exercises only the handshake.
	Items int `yaml:"items"`

	// DeviceOrdinal is the device both roles open.
	DeviceOrdinal int `yaml:"device_ordinal"`

	// Backend selects the device allocator implementation.
	// Default: memsim.
	Backend string `yaml:"backend"`

	// Shape is the per-item payload geometry. Default: [2], matching
	// the {i, 2i} reference payload.
	Shape []int64 `yaml:"shape"`
}

// Default returns the reference scenario: nine 2-element int32 items
// on device 0 over the simulated backend.
func Default() *Scenario {
	return &Scenario{
		Items:         9,
		DeviceOrdinal: 0,
		Backend:       ipc.BackendMemsim,
		Shape:         []int64{2},
	}
}

// Load loads the scenario from the DEVSHARE_CONFIG environment
// variable. Fails if the variable is not set — there is no implicit
// file discovery.
func Load() (*Scenario, error) {
	path := os.Getenv("DEVSHARE_CONFIG")
	if path == "" {
		return nil, fmt.Errorf("DEVSHARE_CONFIG environment variable not set; " +
			"set it to the path of a scenario YAML file, or use the --config flag")
	}
	return LoadFile(path)
}

// LoadFile loads the scenario from a specific file path. Fields absent
// from the file keep their Default() values.
func LoadFile(path string) (*Scenario, error) {
	scenario := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario file: %w", err)
	}
	if err := yaml.Unmarshal(data, scenario); err != nil {
		return nil, fmt.Errorf("parsing scenario file %s: %w", path, err)
	}

	return scenario, nil
}

// Validate checks the scenario for errors.
func (s *Scenario) Validate() error {
	var errs []error

	if s.Items < 0 {
		errs = append(errs, fmt.Errorf("items must be >= 0, got %d", s.Items))
	}
	if s.DeviceOrdinal < 0 {
		errs = append(errs, fmt.Errorf("device_ordinal must be >= 0, got %d", s.DeviceOrdinal))
	}
	if s.Backend != ipc.BackendMemsim {
		errs = append(errs, fmt.Errorf("unknown backend %q", s.Backend))
	}
	if len(s.Shape) == 0 {
		errs = append(errs, fmt.Errorf("shape must have at least one dimension"))
	}
	for i, dim := range s.Shape {
		if dim <= 0 {
			errs = append(errs, fmt.Errorf("shape[%d] must be > 0, got %d", i, dim))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// RunSpec converts the scenario into the RunSpec handed to both role
// processes.
func (s *Scenario) RunSpec() ipc.RunSpec {
	return ipc.RunSpec{
		Items:         s.Items,
		DeviceOrdinal: s.DeviceOrdinal,
		Backend:       s.Backend,
		Shape:         append([]int64(nil), s.Shape...),
	}
}
