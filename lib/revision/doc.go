// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

// Package revision enumerates, selects, and allocates per-node
// revisions: the heart of undofs's copy-on-write semantics.
//
// A node directory (lib/mangle, lib/nodemeta) holds zero or more
// revision files named with non-negative decimal integers. Store
// implements the three core operations — LatestVersion, LatestPath,
// and NewPath — against that directory, with no caching: every call
// re-reads the directory from the backing store.
package revision
