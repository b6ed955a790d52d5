// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

// devshare moves device memory between two processes by reference.
//
// One binary, three modes. Invoked with no positional arguments it is
// the launcher: it spawns itself twice — once as the producer role,
// once as the consumer role — wires the pair together with three
// unidirectional pipes, and waits for both. Invoked as
//
//	devshare producer 3 4 5
//	devshare consumer 3 4 5
//
// it runs one role over channel endpoints inherited on the named file
// descriptors, reading its run configuration as CBOR from stdin. The
// role argv form is the launcher's contract with its children, not a
// user-facing interface.
//
// The producer allocates device buffers, fills each with a small int32
// payload, and sends opaque memory references down the data channel;
// the consumer imports each reference, prints the values it can see
// through the shared memory, and acknowledges. Only the references
// cross the pipes — the payload bytes never do.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/devshare-foundation/devshare/launch"
	"github.com/devshare-foundation/devshare/lib/codec"
	"github.com/devshare-foundation/devshare/lib/config"
	"github.com/devshare-foundation/devshare/lib/ipc"
	"github.com/devshare-foundation/devshare/lib/process"
	"github.com/devshare-foundation/devshare/lib/version"
	"github.com/devshare-foundation/devshare/protocol"
	"github.com/devshare-foundation/devshare/tensor"
)

func main() {
	if err := run(); err != nil {
		// launch.Run joins the two role results, so the RoleError may
		// sit behind a wrapper; errors.As unwraps to it.
		var roleErr *launch.RoleError
		if errors.As(err, &roleErr) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(roleErr.ExitCode())
		}
		process.Fatal(err)
	}
}

func run() error {
	// Role invocation: "<role> <data-fd> <done-fd> <ack-fd>". Checked
	// before flag parsing — the launcher composes this argv directly
	// and no flags are involved.
	if len(os.Args) == 5 && (os.Args[1] == launch.RoleProducer || os.Args[1] == launch.RoleConsumer) {
		return runRole(os.Args[1], os.Args[2:])
	}
	return runLauncher()
}

// runRole executes one half of the protocol in this process. The run
// spec arrives as CBOR on stdin; the channel endpoints are inherited
// file descriptors named in argv.
func runRole(role string, fdArgs []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil)).With(
		"role", role,
		"pid", os.Getpid(),
	)

	var spec ipc.RunSpec
	if err := codec.NewDecoder(os.Stdin).Decode(&spec); err != nil {
		return fmt.Errorf("decoding run spec from stdin: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return fmt.Errorf("run spec: %w", err)
	}

	var fds [3]uintptr
	for i, arg := range fdArgs {
		value, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return fmt.Errorf("fd argument %q: %w", arg, err)
		}
		fds[i] = uintptr(value)
	}

	descriptor, err := tensor.NewDescriptor(spec.Shape)
	if err != nil {
		return err
	}
	protocolConfig := protocol.Config{Items: spec.Items, Descriptor: descriptor}

	dev, err := openBackend(spec.Backend, spec.DeviceOrdinal)
	if err != nil {
		return err
	}
	defer dev.Close()

	logger.Info("role starting",
		"backend", spec.Backend,
		"device", spec.DeviceOrdinal,
		"items", spec.Items,
	)
	return launch.RunRole(role, fds, protocolConfig, dev, logger, os.Stdout)
}

// runLauncher parses flags, assembles the scenario, and runs the full
// two-process pipeline.
func runLauncher() error {
	var configPath string
	var items int
	var deviceOrdinal int
	var backend string

	flagSet := pflag.NewFlagSet("devshare", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to a scenario YAML file (default: $DEVSHARE_CONFIG if set)")
	flagSet.IntVar(&items, "items", 0, "number of items to transfer (overrides the scenario file)")
	flagSet.IntVar(&deviceOrdinal, "device", 0, "device ordinal both roles open (overrides the scenario file)")
	flagSet.StringVar(&backend, "backend", "", "device backend (overrides the scenario file)")
	showVersion := flagSet.Bool("version", false, "print version and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printHelp(flagSet)
			return nil
		}
		return err
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}
	if *showVersion {
		version.Print("devshare")
		return nil
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	scenario, err := loadScenario(configPath)
	if err != nil {
		return err
	}
	if flagSet.Changed("items") {
		scenario.Items = items
	}
	if flagSet.Changed("device") {
		scenario.DeviceOrdinal = deviceOrdinal
	}
	if flagSet.Changed("backend") {
		scenario.Backend = backend
	}
	if err := scenario.Validate(); err != nil {
		return fmt.Errorf("scenario: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil)).With("pid", os.Getpid())
	logger.Info("launching pipeline",
		"items", scenario.Items,
		"backend", scenario.Backend,
		"device", scenario.DeviceOrdinal,
	)
	return launch.Run(launch.Options{
		Spec:   scenario.RunSpec(),
		Logger: logger,
	})
}

// loadScenario resolves the scenario: an explicit --config path wins,
// then $DEVSHARE_CONFIG, then built-in defaults.
func loadScenario(configPath string) (*config.Scenario, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	if os.Getenv("DEVSHARE_CONFIG") != "" {
		return config.Load()
	}
	return config.Default(), nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `devshare — two-process device memory sharing by reference.

Spawns a producer and a consumer process from this binary, connected by
pipes. The producer allocates and fills device buffers and exports a
memory reference for each; the consumer imports the references and
prints the payload values it reads through the shared memory.

Usage:
  devshare [flags]

Examples:
  # Run the reference scenario: nine 2-element items on device 0
  devshare

  # Transfer 100 items
  devshare --items 100

  # Load a scenario file
  devshare --config scenario.yaml

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
