// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

// Package mangle translates between logical paths, as presented to an
// undofs mount's clients, and physical paths on the backing store.
//
// Every path segment, including the last, is suffixed with the literal
// string ".node" on the way in. This reserves the node directory
// namespace (where revision files and markers live) from anything a
// client could name a file or directory. The translation never touches
// the filesystem; it is pure string manipulation.
package mangle
