// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

// Package logging constructs the mount's single structured log sink.
//
// undofs logs to an append-only file (log.txt at the backing root by
// convention) rather than stderr, since a mount daemon typically
// outlives its controlling terminal. It emits one JSON object per line
// via log/slog's JSONHandler.
package logging

import (
	"fmt"
	"log/slog"
	"os"
)

// New opens path for appending and returns a logger that writes JSON
// lines to it, along with the underlying file so the caller can close
// it on shutdown. sessionID is attached to every line so log entries
// from one mount's lifetime can be correlated.
func New(path, sessionID string) (*slog.Logger, *os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file %s: %w", path, err)
	}

	handler := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo})
	logger := slog.New(handler).With("session", sessionID)
	return logger, f, nil
}
