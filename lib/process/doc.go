// Copyright 2026 The Devshare Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for devshare
// processes. Role processes report every protocol, transport, and
// allocator failure through a single run() error path; Fatal is the
// one place that converts that error into a non-zero exit.
package process
