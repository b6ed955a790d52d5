// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

package fingerprint

import (
	"encoding/hex"
	"strings"
	"testing"
)

func TestShortIsStable(t *testing.T) {
	data := []byte("reference token bytes")
	if Short(data) != Short(data) {
		t.Error("Short is not deterministic")
	}
	if len(Short(data)) != shortLength {
		t.Errorf("Short length = %d, want %d", len(Short(data)), shortLength)
	}
}

func TestShortIsPrefixOfSum(t *testing.T) {
	data := []byte("reference token bytes")
	digest := Sum(data)
	if !strings.HasPrefix(hex.EncodeToString(digest[:]), Short(data)) {
		t.Errorf("Short(%q) = %s is not a prefix of the full digest", data, Short(data))
	}
}

func TestShortDistinguishesInputs(t *testing.T) {
	a := Short([]byte{1, 2, 3})
	b := Short([]byte{1, 2, 4})
	if a == b {
		t.Errorf("distinct inputs collided: %s", a)
	}
}

func TestHexFormat(t *testing.T) {
	got := Hex([]byte{0xDE, 0xAD})
	if got != "0xdead" {
		t.Errorf("Hex = %q, want %q", got, "0xdead")
	}
	if !strings.HasPrefix(Hex(nil), "0x") {
		t.Error("Hex must carry the 0x prefix even for empty input")
	}
}
