// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/devshare-foundation/devshare/channel"
	"github.com/devshare-foundation/devshare/lib/codec"
	"github.com/devshare-foundation/devshare/lib/ipc"
	"github.com/devshare-foundation/devshare/protocol"
)

// Role argument values passed to spawned children. The role binary
// dispatches on argv[1] to decide which half of the protocol to run.
const (
	RoleProducer = "producer"
	RoleConsumer = "consumer"
)

// Children inherit their channel endpoints through exec.Cmd ExtraFiles,
// which places them at descriptors 3, 4, 5 in slice order. The argv fd
// numbers are therefore fixed.
var roleFDArgs = []string{"3", "4", "5"}

// Options configures a pipeline launch.
type Options struct {
	// Binary is the executable to spawn for both roles. Empty means
	// the current executable (the launcher and the roles are the same
	// binary).
	Binary string

	// Spec is the run configuration piped to each child's stdin as
	// CBOR.
	Spec ipc.RunSpec

	// Stdout receives the consumer's record output. Nil means
	// os.Stdout.
	Stdout io.Writer

	Logger *slog.Logger
}

// RoleError reports that a spawned role exited non-zero. The launcher
// propagates the code as its own exit status.
type RoleError struct {
	Role string
	Code int
}

func (e *RoleError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Role, e.Code)
}

// ExitCode returns the child's exit code, for callers that mirror it
// as their own process status.
func (e *RoleError) ExitCode() int { return e.Code }

// Run spawns the producer and consumer roles, wires them together with
// three unidirectional pipes, and waits for both to exit.
//
// The fd layout each child sees is identical — tensor-data at 3,
// producer-done at 4, consumer-ack at 5 — but the launcher hands the
// producer the write ends of the first two and the read end of the
// third, and the consumer the opposite ends. After both children start,
// the launcher closes every pipe end it holds: a role that dies
// mid-protocol then surfaces as end-of-stream on its peer's next read
// instead of a deadlock.
func Run(options Options) error {
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}
	if err := options.Spec.Validate(); err != nil {
		return fmt.Errorf("run spec: %w", err)
	}

	binary := options.Binary
	if binary == "" {
		executable, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolving own executable: %w", err)
		}
		binary = executable
	}

	payload, err := codec.Marshal(options.Spec)
	if err != nil {
		return fmt.Errorf("encoding run spec: %w", err)
	}

	dataReceiver, dataSender, err := channel.Pipe(protocol.ChannelTensorData)
	if err != nil {
		return err
	}
	doneReceiver, doneSender, err := channel.Pipe(protocol.ChannelProducerDone)
	if err != nil {
		closeAll(dataReceiver, dataSender)
		return err
	}
	ackReceiver, ackSender, err := channel.Pipe(protocol.ChannelConsumerAck)
	if err != nil {
		closeAll(dataReceiver, dataSender, doneReceiver, doneSender)
		return err
	}

	producerCmd := roleCommand(binary, RoleProducer, payload,
		dataSender.File(), doneSender.File(), ackReceiver.File())
	consumerCmd := roleCommand(binary, RoleConsumer, payload,
		dataReceiver.File(), doneReceiver.File(), ackSender.File())
	if options.Stdout != nil {
		consumerCmd.Stdout = options.Stdout
	}

	if err := producerCmd.Start(); err != nil {
		closeAll(dataReceiver, dataSender, doneReceiver, doneSender, ackReceiver, ackSender)
		return fmt.Errorf("starting producer: %w", err)
	}
	logger.Info("role started", "role", RoleProducer, "pid", producerCmd.Process.Pid)

	if err := consumerCmd.Start(); err != nil {
		closeAll(dataReceiver, dataSender, doneReceiver, doneSender, ackReceiver, ackSender)
		producerCmd.Process.Kill()
		producerCmd.Wait()
		return fmt.Errorf("starting consumer: %w", err)
	}
	logger.Info("role started", "role", RoleConsumer, "pid", consumerCmd.Process.Pid)

	// The children hold duplicates of every endpoint they need; the
	// launcher's copies must go now, or a dead producer would never
	// read as end-of-stream on the consumer side.
	closeAll(dataReceiver, dataSender, doneReceiver, doneSender, ackReceiver, ackSender)

	producerErr := waitRole(logger, RoleProducer, producerCmd)
	consumerErr := waitRole(logger, RoleConsumer, consumerCmd)
	return errors.Join(producerErr, consumerErr)
}

// roleCommand builds the exec.Cmd for one role child. The run spec is
// piped to the child's stdin as CBOR; the three channel endpoints are
// inherited via ExtraFiles.
func roleCommand(binary, role string, specPayload []byte, endpoints ...*os.File) *exec.Cmd {
	args := append([]string{role}, roleFDArgs...)
	cmd := exec.Command(binary, args...)
	cmd.Stdin = bytes.NewReader(specPayload)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.ExtraFiles = endpoints
	return cmd
}

// waitRole reaps one child and converts a non-zero exit into a
// RoleError carrying the child's code.
func waitRole(logger *slog.Logger, role string, cmd *exec.Cmd) error {
	waitErr := cmd.Wait()
	exitCode := 0
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return fmt.Errorf("waiting for %s: %w", role, waitErr)
		}
	}
	logger.Info("role exited", "role", role, "pid", cmd.Process.Pid, "exit_code", exitCode)
	if exitCode != 0 {
		return &RoleError{Role: role, Code: exitCode}
	}
	return nil
}

type closer interface{ Close() error }

func closeAll(endpoints ...closer) {
	for _, endpoint := range endpoints {
		endpoint.Close()
	}
}
