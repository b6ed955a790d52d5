// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfoCleanBuild(t *testing.T) {
	if strings.Contains(Info(), "-dirty") {
		t.Errorf("Info() = %q reports dirty for a clean build", Info())
	}
	if !strings.Contains(Info(), Version) {
		t.Errorf("Info() = %q does not contain the version %q", Info(), Version)
	}
}

func TestInfoDirtyBuild(t *testing.T) {
	defer func(previous string) { GitDirty = previous }(GitDirty)
	GitDirty = "true"

	if !strings.Contains(Info(), "-dirty") {
		t.Errorf("Info() = %q does not mark a dirty build", Info())
	}
}

func TestFullIncludesPlatform(t *testing.T) {
	full := Full()
	if !strings.Contains(full, "Go: go") {
		t.Errorf("Full() = %q missing Go version", full)
	}
	if !strings.Contains(full, "Platform: ") {
		t.Errorf("Full() = %q missing platform", full)
	}
}
