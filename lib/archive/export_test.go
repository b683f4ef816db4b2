// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestExportRoundTrip(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "a.node", "b.node"), 0o700); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.node", "0"), []byte("rev0"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "a.node", "b.node", "dir"), nil, 0o644); err != nil {
		t.Fatalf("WriteFile marker: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "backup.tar.zst")
	if err := Export(root, dest); err != nil {
		t.Fatalf("Export: %v", err)
	}

	f, err := os.Open(dest)
	if err != nil {
		t.Fatalf("Open archive: %v", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd.NewReader: %v", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	found := map[string]string{}
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar.Next: %v", err)
		}
		if hdr.Typeflag == tar.TypeReg {
			data, err := io.ReadAll(tr)
			if err != nil {
				t.Fatalf("ReadAll: %v", err)
			}
			found[hdr.Name] = string(data)
		} else {
			found[hdr.Name] = ""
		}
	}

	if found["a.node/0"] != "rev0" {
		t.Errorf("archive missing a.node/0 content, got %+v", found)
	}
	if _, ok := found["a.node/b.node/dir"]; !ok {
		t.Errorf("archive missing a.node/b.node/dir marker, got %+v", found)
	}
}

func TestExportMissingSourceFails(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "backup.tar.zst")
	if err := Export(filepath.Join(t.TempDir(), "does-not-exist"), dest); err == nil {
		t.Fatal("Export on missing root: got nil error, want one")
	}
}
