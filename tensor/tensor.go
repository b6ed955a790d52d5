// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

package tensor

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// elementSize is the byte width of the element type. This system
// moves int32 tensors; the descriptor carries shape only.
const elementSize = 4

// Descriptor fixes the geometry of every item in a run: an int32
// tensor of the given shape. All items in one transfer share a single
// descriptor, which is why the wire format needs no per-item size
// information.
type Descriptor struct {
	Shape []int64
}

// NewDescriptor validates and returns a descriptor for the shape.
func NewDescriptor(shape []int64) (Descriptor, error) {
	if len(shape) == 0 {
		return Descriptor{}, fmt.Errorf("shape must have at least one dimension")
	}
	for i, dim := range shape {
		if dim <= 0 {
			return Descriptor{}, fmt.Errorf("shape[%d] must be > 0, got %d", i, dim)
		}
	}
	return Descriptor{Shape: append([]int64(nil), shape...)}, nil
}

// Elements returns the element count of the shape.
func (d Descriptor) Elements() int64 {
	count := int64(1)
	for _, dim := range d.Shape {
		count *= dim
	}
	return count
}

// SizeBytes returns the byte size of one item's payload.
func (d Descriptor) SizeBytes() int64 {
	return d.Elements() * elementSize
}

// Encode serializes host values into the device byte layout
// (little-endian int32). The producer fills allocations with this.
func (d Descriptor) Encode(values []int32) ([]byte, error) {
	if int64(len(values)) != d.Elements() {
		return nil, fmt.Errorf("got %d values for shape %v (want %d)", len(values), d.Shape, d.Elements())
	}
	data := make([]byte, d.SizeBytes())
	for i, value := range values {
		binary.LittleEndian.PutUint32(data[i*elementSize:], uint32(value))
	}
	return data, nil
}

// View is a structured, read-only interpretation of aliased memory.
// It does not own or copy the bytes: the underlying slice belongs to
// the device alias and is valid only until the alias is released.
type View struct {
	descriptor Descriptor
	data       []byte
}

// NewView wraps aliased memory with a descriptor. The byte length
// must match the descriptor exactly — a mismatch means the token and
// the run configuration disagree about the item geometry.
func NewView(data []byte, descriptor Descriptor) (*View, error) {
	if int64(len(data)) != descriptor.SizeBytes() {
		return nil, fmt.Errorf("view over %d bytes, descriptor wants %d", len(data), descriptor.SizeBytes())
	}
	return &View{descriptor: descriptor, data: data}, nil
}

// Descriptor returns the view's geometry.
func (v *View) Descriptor() Descriptor { return v.descriptor }

// Int32s decodes and returns the element values.
func (v *View) Int32s() []int32 {
	values := make([]int32, v.descriptor.Elements())
	for i := range values {
		values[i] = int32(binary.LittleEndian.Uint32(v.data[i*elementSize:]))
	}
	return values
}

// String formats the view for the consumer's record display, e.g.
// "[3 6] shape=[2] int32".
func (v *View) String() string {
	values := v.Int32s()
	parts := make([]string, len(values))
	for i, value := range values {
		parts[i] = fmt.Sprintf("%d", value)
	}
	return fmt.Sprintf("[%s] shape=%v int32", strings.Join(parts, " "), v.descriptor.Shape)
}
