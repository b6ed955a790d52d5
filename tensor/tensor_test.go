// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

package tensor

import (
	"bytes"
	"testing"
)

func TestNewDescriptorValidation(t *testing.T) {
	if _, err := NewDescriptor(nil); err == nil {
		t.Error("accepted empty shape")
	}
	if _, err := NewDescriptor([]int64{2, 0}); err == nil {
		t.Error("accepted zero dimension")
	}

	descriptor, err := NewDescriptor([]int64{2, 3})
	if err != nil {
		t.Fatalf("NewDescriptor: %v", err)
	}
	if descriptor.Elements() != 6 {
		t.Errorf("Elements = %d, want 6", descriptor.Elements())
	}
	if descriptor.SizeBytes() != 24 {
		t.Errorf("SizeBytes = %d, want 24", descriptor.SizeBytes())
	}
}

func TestEncodeDecodeRoundtrip(t *testing.T) {
	descriptor, err := NewDescriptor([]int64{2})
	if err != nil {
		t.Fatalf("NewDescriptor: %v", err)
	}

	data, err := descriptor.Encode([]int32{3, 6})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !bytes.Equal(data, []byte{3, 0, 0, 0, 6, 0, 0, 0}) {
		t.Errorf("Encode = %v, want little-endian layout", data)
	}

	view, err := NewView(data, descriptor)
	if err != nil {
		t.Fatalf("NewView: %v", err)
	}
	values := view.Int32s()
	if len(values) != 2 || values[0] != 3 || values[1] != 6 {
		t.Errorf("Int32s = %v, want [3 6]", values)
	}
}

func TestEncodeNegativeValues(t *testing.T) {
	descriptor, err := NewDescriptor([]int64{2})
	if err != nil {
		t.Fatalf("NewDescriptor: %v", err)
	}

	data, err := descriptor.Encode([]int32{-1, -2147483648})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	view, err := NewView(data, descriptor)
	if err != nil {
		t.Fatalf("NewView: %v", err)
	}
	values := view.Int32s()
	if values[0] != -1 || values[1] != -2147483648 {
		t.Errorf("Int32s = %v, want [-1 -2147483648]", values)
	}
}

func TestEncodeCountMismatch(t *testing.T) {
	descriptor, err := NewDescriptor([]int64{2})
	if err != nil {
		t.Fatalf("NewDescriptor: %v", err)
	}
	if _, err := descriptor.Encode([]int32{1}); err == nil {
		t.Error("Encode accepted wrong value count")
	}
}

func TestNewViewSizeMismatch(t *testing.T) {
	descriptor, err := NewDescriptor([]int64{2})
	if err != nil {
		t.Fatalf("NewDescriptor: %v", err)
	}
	if _, err := NewView(make([]byte, 7), descriptor); err == nil {
		t.Error("NewView accepted a size mismatch")
	}
}

func TestViewString(t *testing.T) {
	descriptor, err := NewDescriptor([]int64{2})
	if err != nil {
		t.Fatalf("NewDescriptor: %v", err)
	}
	data, err := descriptor.Encode([]int32{3, 6})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	view, err := NewView(data, descriptor)
	if err != nil {
		t.Fatalf("NewView: %v", err)
	}

	want := "[3 6] shape=[2] int32"
	if view.String() != want {
		t.Errorf("String = %q, want %q", view.String(), want)
	}
}
