// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

// Package nodemeta classifies and marks undofs node directories.
//
// A node directory (as produced by lib/mangle) represents one logical
// path. Its state is entirely captured by two empty marker files —
// "dir" and "deleted" — plus whatever numbered revision files it
// contains. This package implements the pure predicates and the three
// marker mutators (MarkDirectory, MarkDeleted, Undelete) over that state; it holds no state of its own and
// every call hits the backing store directly.
package nodemeta
