// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

// Package manifest writes and reads the ".undofs-manifest.cbor" file a
// mount leaves at the root of its backing store. The manifest is pure
// ambient diagnostic metadata: it is excluded from path mangling, never
// consulted by the operation dispatcher, and safe to delete.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/wvdschel/undofs/lib/codec"
)

// FileName is the manifest's fixed name at the backing root.
const FileName = ".undofs-manifest.cbor"

// Manifest is a snapshot of one mount's configuration and identity,
// written once at mount time.
type Manifest struct {
	SessionID   string    `cbor:"session_id"`
	Mountpoint  string    `cbor:"mountpoint"`
	BackingRoot string    `cbor:"backing_root"`
	StrictRmdir bool      `cbor:"strict_rmdir"`
	AllowOther  bool      `cbor:"allow_other"`
	Version     string    `cbor:"version"`
	StartedAt   time.Time `cbor:"started_at"`
}

// New builds a Manifest for a mount starting now. sessionID should be
// the same ID attached to the mount's log lines, so the manifest and
// the log can be correlated.
func New(sessionID, backingRoot, mountpoint, version string, strictRmdir, allowOther bool, now time.Time) Manifest {
	return Manifest{
		SessionID:   sessionID,
		Mountpoint:  mountpoint,
		BackingRoot: backingRoot,
		StrictRmdir: strictRmdir,
		AllowOther:  allowOther,
		Version:     version,
		StartedAt:   now,
	}
}

// Write CBOR-encodes m and writes it to FileName under backingRoot,
// overwriting any manifest left by a previous mount of the same store.
func Write(backingRoot string, m Manifest) error {
	data, err := codec.Marshal(m)
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	path := filepath.Join(backingRoot, FileName)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing manifest %s: %w", path, err)
	}
	return nil
}

// Read loads and decodes the manifest at the root of backingRoot. It
// returns an error wrapping os.ErrNotExist if no mount has ever written
// one there.
func Read(backingRoot string) (Manifest, error) {
	path := filepath.Join(backingRoot, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("reading manifest %s: %w", path, err)
	}
	var m Manifest
	if err := codec.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decoding manifest %s: %w", path, err)
	}
	return m, nil
}
