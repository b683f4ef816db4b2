// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable source of the current time.
//
// undofs has no scheduled or delayed work — every log line and manifest
// timestamp is stamped at the moment of an operation — so this is a
// minimal Now-only time source. No timer or ticker surface is needed
// because the filesystem has no scheduled work to drive with one.
package clock
