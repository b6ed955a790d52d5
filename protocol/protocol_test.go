// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/devshare-foundation/devshare/channel"
	"github.com/devshare-foundation/devshare/device"
	"github.com/devshare-foundation/devshare/tensor"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(t *testing.T, items int) Config {
	t.Helper()
	descriptor, err := tensor.NewDescriptor([]int64{2})
	if err != nil {
		t.Fatalf("NewDescriptor: %v", err)
	}
	return Config{Items: items, Descriptor: descriptor}
}

// harness wires a producer and a consumer to one shared fake device
// over in-process channels, mirroring the two-process pipeline
// without leaving the test runner.
type harness struct {
	fake     *device.Fake
	producer *Producer
	consumer *Consumer
	output   bytes.Buffer
}

// recordingSender tags each Send with a marker in the fake device's
// event log, so channel signals and device lifecycle events share one
// ordered timeline.
type recordingSender struct {
	inner  channel.Sender
	fake   *device.Fake
	marker string
}

func (s *recordingSender) Send(data []byte) error {
	if err := s.inner.Send(data); err != nil {
		return err
	}
	s.fake.Record(s.marker)
	return nil
}

func (s *recordingSender) Close() error { return s.inner.Close() }

// recordingReceiver tags each completed Recv the same way.
type recordingReceiver struct {
	inner  channel.Receiver
	fake   *device.Fake
	marker string
}

func (r *recordingReceiver) Recv(length int) ([]byte, error) {
	data, err := r.inner.Recv(length)
	if err != nil {
		return nil, err
	}
	r.fake.Record(r.marker)
	return data, nil
}

func (r *recordingReceiver) Close() error { return r.inner.Close() }

func newHarness(t *testing.T, items int) *harness {
	t.Helper()

	h := &harness{fake: device.NewFake()}
	config := testConfig(t, items)

	dataReceiver, dataSender := channel.Memory(ChannelTensorData)
	doneReceiver, doneSender := channel.Memory(ChannelProducerDone)
	ackReceiver, ackSender := channel.Memory(ChannelConsumerAck)

	h.producer = NewProducer(config, h.fake,
		dataSender,
		&recordingSender{inner: doneSender, fake: h.fake, marker: "done-sent"},
		&recordingReceiver{inner: ackReceiver, fake: h.fake, marker: "ack-received"},
		testLogger())
	h.consumer = NewConsumer(config, h.fake,
		&recordingReceiver{inner: dataReceiver, fake: h.fake, marker: "data-read"},
		&recordingReceiver{inner: doneReceiver, fake: h.fake, marker: "done-received"},
		&recordingSender{inner: ackSender, fake: h.fake, marker: "ack-sent"},
		testLogger(), &h.output)
	return h
}

// runBoth runs both roles concurrently and fails the test if either
// errors or the handshake does not finish within the deadline.
func (h *harness) runBoth(t *testing.T) {
	t.Helper()

	producerErr := make(chan error, 1)
	consumerErr := make(chan error, 1)
	go func() { producerErr <- h.producer.Run() }()
	go func() { consumerErr <- h.consumer.Run() }()

	deadline := time.After(10 * time.Second)
	for i := 0; i < 2; i++ {
		select {
		case err := <-producerErr:
			if err != nil {
				t.Fatalf("producer: %v", err)
			}
		case err := <-consumerErr:
			if err != nil {
				t.Fatalf("consumer: %v", err)
			}
		case <-deadline:
			t.Fatal("handshake did not complete")
		}
	}
}

// eventIndex returns the position of the first event with the given
// prefix, or -1.
func eventIndex(events []string, prefix string) int {
	for i, event := range events {
		if strings.HasPrefix(event, prefix) {
			return i
		}
	}
	return -1
}

func TestTransferNineItems(t *testing.T) {
	h := newHarness(t, 9)
	h.runBoth(t)

	// Nine records, indices 1..9, each with doubled values.
	var want strings.Builder
	for i := 1; i <= 9; i++ {
		fmt.Fprintf(&want, "#%d: [%d %d] shape=[2] int32\n", i, i, i*2)
	}
	if h.output.String() != want.String() {
		t.Errorf("consumer output:\n%s\nwant:\n%s", h.output.String(), want.String())
	}

	// Each token was imported for the allocation it named, in
	// sequence order: import#1 .. import#9 appear in order.
	events := h.fake.Events()
	previous := -1
	for i := 1; i <= 9; i++ {
		position := eventIndex(events, fmt.Sprintf("import#%d", i))
		if position == -1 {
			t.Fatalf("import#%d missing from events: %v", i, events)
		}
		if position < previous {
			t.Errorf("import#%d out of order", i)
		}
		previous = position
	}
}

func TestConsumerImportsOnlyAfterProducerDone(t *testing.T) {
	h := newHarness(t, 3)
	h.runBoth(t)

	events := h.fake.Events()
	doneReceived := eventIndex(events, "done-received")
	firstDataRead := eventIndex(events, "data-read")
	firstImport := eventIndex(events, "import#")

	if doneReceived == -1 || firstImport == -1 {
		t.Fatalf("expected markers missing from events: %v", events)
	}
	if firstDataRead != -1 && firstDataRead < doneReceived {
		t.Errorf("consumer read the data channel before observing producer done: %v", events)
	}
	if firstImport < doneReceived {
		t.Errorf("consumer imported before observing producer done: %v", events)
	}
}

func TestProducerFreesOnlyAfterAck(t *testing.T) {
	h := newHarness(t, 4)
	h.runBoth(t)

	events := h.fake.Events()
	ackReceived := eventIndex(events, "ack-received")
	if ackReceived == -1 {
		t.Fatalf("ack-received missing from events: %v", events)
	}
	for i, event := range events {
		if strings.HasPrefix(event, "free#") && i < ackReceived {
			t.Errorf("allocation freed before consumer ack: %v", events)
		}
	}

	// Every release happened before every free: no alias was open
	// when its allocation died.
	lastRelease := -1
	firstFree := len(events)
	for i, event := range events {
		if strings.HasPrefix(event, "release#") && i > lastRelease {
			lastRelease = i
		}
		if strings.HasPrefix(event, "free#") && i < firstFree {
			firstFree = i
		}
	}
	if lastRelease > firstFree {
		t.Errorf("a free preceded the final release: %v", events)
	}
}

func TestSingleItem(t *testing.T) {
	h := newHarness(t, 1)
	h.runBoth(t)

	want := "#1: [1 2] shape=[2] int32\n"
	if h.output.String() != want {
		t.Errorf("output = %q, want %q", h.output.String(), want)
	}
}

func TestZeroItems(t *testing.T) {
	// N = 0 still completes the done/ack handshake without blocking.
	h := newHarness(t, 0)
	h.runBoth(t)

	if h.output.Len() != 0 {
		t.Errorf("unexpected output for zero items: %q", h.output.String())
	}
	events := h.fake.Events()
	if eventIndex(events, "done-sent") == -1 || eventIndex(events, "ack-sent") == -1 {
		t.Errorf("handshake signals missing: %v", events)
	}
	if eventIndex(events, "allocate#") != -1 {
		t.Errorf("zero-item run touched the allocator: %v", events)
	}
}

func TestAllocationFailureAbortsProducer(t *testing.T) {
	// Allocation fails on item 3 of 9: the producer terminates with
	// an error, sends nothing further, and never signals done. The
	// consumer stays blocked — detectable only by an external
	// timeout, which this harness supplies.
	h := newHarness(t, 9)
	h.fake.FailAllocateAt(3)

	producerErr := h.producer.Run()
	if producerErr == nil {
		t.Fatal("producer succeeded despite injected allocation failure")
	}
	if !strings.Contains(producerErr.Error(), "item 3") {
		t.Errorf("error does not identify the failing item: %v", producerErr)
	}

	consumerDone := make(chan error, 1)
	go func() { consumerDone <- h.consumer.Run() }()

	select {
	case err := <-consumerDone:
		t.Fatalf("consumer finished (%v); it should be blocked awaiting producer done", err)
	case <-time.After(200 * time.Millisecond):
		// Blocked, as the protocol dictates.
	}

	// Exactly two complete item records were enqueued before the
	// failure, and no done byte.
	events := h.fake.Events()
	if eventIndex(events, "export#3") != -1 {
		t.Errorf("item 3 was exported after its allocation failed: %v", events)
	}
	if eventIndex(events, "done-sent") != -1 {
		t.Errorf("done signal sent despite mid-run failure: %v", events)
	}
}

func TestConsumerRejectsOutOfOrderIndex(t *testing.T) {
	config := testConfig(t, 2)
	fake := device.NewFake()

	dataReceiver, dataSender := channel.Memory(ChannelTensorData)
	doneReceiver, doneSender := channel.Memory(ChannelProducerDone)
	_, ackSender := channel.Memory(ChannelConsumerAck)

	consumer := NewConsumer(config, fake, dataReceiver, doneReceiver, ackSender, testLogger(), io.Discard)

	// Hand-feed the wire: done signal, then an item record claiming
	// index 2 where 1 is expected.
	allocation, err := fake.Allocate(config.Descriptor.SizeBytes())
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	token, err := fake.ExportReference(allocation)
	if err != nil {
		t.Fatalf("ExportReference: %v", err)
	}
	if err := sendSignal(doneSender, DoneSignal); err != nil {
		t.Fatalf("sendSignal: %v", err)
	}
	if err := sendIndex(dataSender, 2); err != nil {
		t.Fatalf("sendIndex: %v", err)
	}
	if err := sendToken(dataSender, token); err != nil {
		t.Fatalf("sendToken: %v", err)
	}

	err = consumer.Run()
	if err == nil || !strings.Contains(err.Error(), "out of order") {
		t.Errorf("consumer accepted out-of-order index: %v", err)
	}
}

func TestConsumerRejectsWrongDoneByte(t *testing.T) {
	config := testConfig(t, 1)
	fake := device.NewFake()

	dataReceiver, _ := channel.Memory(ChannelTensorData)
	doneReceiver, doneSender := channel.Memory(ChannelProducerDone)
	_, ackSender := channel.Memory(ChannelConsumerAck)

	consumer := NewConsumer(config, fake, dataReceiver, doneReceiver, ackSender, testLogger(), io.Discard)

	if err := doneSender.Send([]byte{'X'}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := consumer.Run(); err == nil {
		t.Error("consumer accepted a corrupt done signal")
	}
}

func TestProducerFailsOnTruncatedAckStream(t *testing.T) {
	// The consumer dying before its ack must surface as a transport
	// error on the producer, not a silent success.
	config := testConfig(t, 0)
	fake := device.NewFake()

	_, dataSender := channel.Memory(ChannelTensorData)
	_, doneSender := channel.Memory(ChannelProducerDone)
	ackReceiver, ackSender := channel.Memory(ChannelConsumerAck)
	ackSender.Close()

	producer := NewProducer(config, fake, dataSender, doneSender, ackReceiver, testLogger())
	if err := producer.Run(); err == nil {
		t.Error("producer succeeded without ever receiving an ack")
	}
}

func TestRecordRoundtripByteExact(t *testing.T) {
	receiver, sender := channel.Memory(ChannelTensorData)

	var token device.Token
	for i := range token {
		token[i] = byte(i * 7)
	}

	if err := sendIndex(sender, 42); err != nil {
		t.Fatalf("sendIndex: %v", err)
	}
	if err := sendToken(sender, token); err != nil {
		t.Fatalf("sendToken: %v", err)
	}

	index, err := recvIndex(receiver)
	if err != nil {
		t.Fatalf("recvIndex: %v", err)
	}
	if index != 42 {
		t.Errorf("index = %d, want 42", index)
	}
	received, err := recvToken(receiver)
	if err != nil {
		t.Fatalf("recvToken: %v", err)
	}
	if received != token {
		t.Errorf("token corrupted in transit:\n got %x\nwant %x", received, token)
	}
}

func TestPayloadReferenceValues(t *testing.T) {
	config := testConfig(t, 9)
	for i := int32(1); i <= 9; i++ {
		values := config.Payload(i)
		if len(values) != 2 || values[0] != i || values[1] != 2*i {
			t.Errorf("Payload(%d) = %v, want [%d %d]", i, values, i, 2*i)
		}
	}
}
