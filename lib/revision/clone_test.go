// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

package revision

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestCpArchiveCopiesContentAndMode(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "0")
	dst := filepath.Join(dir, "1")

	if err := os.WriteFile(src, []byte("payload"), 0o640); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := CpArchive(context.Background(), src, dst); err != nil {
		t.Fatalf("CpArchive: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("ReadFile(dst): %v", err)
	}
	if string(data) != "payload" {
		t.Errorf("cloned content = %q, want %q", data, "payload")
	}

	srcInfo, err := os.Stat(src)
	if err != nil {
		t.Fatalf("Stat(src): %v", err)
	}
	dstInfo, err := os.Stat(dst)
	if err != nil {
		t.Fatalf("Stat(dst): %v", err)
	}
	if srcInfo.Mode() != dstInfo.Mode() {
		t.Errorf("cloned mode = %v, want %v", dstInfo.Mode(), srcInfo.Mode())
	}
}

func TestCpArchiveMissingSourceFails(t *testing.T) {
	dir := t.TempDir()
	err := CpArchive(context.Background(), filepath.Join(dir, "missing"), filepath.Join(dir, "dst"))
	if err == nil {
		t.Fatalf("CpArchive(missing source) = nil, want error")
	}
}
