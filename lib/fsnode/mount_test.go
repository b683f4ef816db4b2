// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

package fsnode

import (
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/wvdschel/undofs/lib/mangle"
	"github.com/wvdschel/undofs/lib/revision"
)

// fuseAvailable skips the calling test unless a kernel FUSE device is
// present. These tests drive a real mount; they have nothing useful
// to assert without one.
func fuseAvailable(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("skipping: /dev/fuse not available")
	}
}

func testMount(t *testing.T, strictRmdir bool) (mountpoint, backingRoot string) {
	t.Helper()
	fuseAvailable(t)

	tmp := t.TempDir()
	backingRoot = filepath.Join(tmp, "backing")
	if err := os.MkdirAll(backingRoot, 0o755); err != nil {
		t.Fatalf("MkdirAll(backing): %v", err)
	}
	mountpoint = filepath.Join(tmp, "mnt")

	m := mangle.New(backingRoot)
	server, err := Mount(Options{
		Mountpoint: mountpoint,
		Root: &Root{
			BackingRoot: backingRoot,
			Mangler:     m,
			Store:       revision.New(m),
			StrictRmdir: strictRmdir,
		},
	})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}
	t.Cleanup(func() {
		if err := server.Unmount(); err != nil {
			t.Errorf("Unmount: %v", err)
		}
	})

	return mountpoint, backingRoot
}

func TestWriteCreatesFirstRevision(t *testing.T) {
	mountpoint, backingRoot := testMount(t, false)

	path := filepath.Join(mountpoint, "hello.txt")
	if err := os.WriteFile(path, []byte("v0"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "v0" {
		t.Fatalf("ReadFile = %q, %v, want %q, nil", data, err, "v0")
	}

	rev := filepath.Join(backingRoot, "hello.txt.node", "0")
	if got, err := os.ReadFile(rev); err != nil || string(got) != "v0" {
		t.Fatalf("backing revision 0 = %q, %v, want %q, nil", got, err, "v0")
	}
}

func TestOverwriteClonesForwardToNewRevision(t *testing.T) {
	mountpoint, backingRoot := testMount(t, false)

	path := filepath.Join(mountpoint, "hello.txt")
	if err := os.WriteFile(path, []byte("v0"), 0o644); err != nil {
		t.Fatalf("WriteFile(v0): %v", err)
	}
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatalf("WriteFile(v1): %v", err)
	}

	nodeDir := filepath.Join(backingRoot, "hello.txt.node")
	if got, err := os.ReadFile(filepath.Join(nodeDir, "0")); err != nil || string(got) != "v0" {
		t.Fatalf("revision 0 = %q, %v, want %q preserved", got, err, "v0")
	}
	if got, err := os.ReadFile(filepath.Join(nodeDir, "1")); err != nil || string(got) != "v1" {
		t.Fatalf("revision 1 = %q, %v, want %q", got, err, "v1")
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "v1" {
		t.Fatalf("current content = %q, %v, want %q", data, err, "v1")
	}
}

func TestUnlinkTombstonesWithoutRemovingRevisions(t *testing.T) {
	mountpoint, backingRoot := testMount(t, false)

	path := filepath.Join(mountpoint, "hello.txt")
	if err := os.WriteFile(path, []byte("v0"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("Stat after unlink = %v, want ENOENT", err)
	}

	rev := filepath.Join(backingRoot, "hello.txt.node", "0")
	if _, err := os.Stat(rev); err != nil {
		t.Fatalf("revision 0 should survive unlink: %v", err)
	}
}

func TestRecreateAfterDeleteResurrectsNextRevision(t *testing.T) {
	mountpoint, backingRoot := testMount(t, false)

	path := filepath.Join(mountpoint, "hello.txt")
	if err := os.WriteFile(path, []byte("v0"), 0o644); err != nil {
		t.Fatalf("WriteFile(v0): %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := os.WriteFile(path, []byte("v1"), 0o644); err != nil {
		t.Fatalf("WriteFile(v1): %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "v1" {
		t.Fatalf("content after resurrect = %q, %v, want %q", data, err, "v1")
	}

	rev1 := filepath.Join(backingRoot, "hello.txt.node", "1")
	if _, err := os.Stat(rev1); err != nil {
		t.Fatalf("resurrected revision should be numbered 1: %v", err)
	}
}

func TestMkdirAndRmdirTombstonesDirectoryNode(t *testing.T) {
	mountpoint, backingRoot := testMount(t, false)

	dir := filepath.Join(mountpoint, "sub")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := os.Remove(dir); err != nil {
		t.Fatalf("Remove(dir): %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("Stat after rmdir = %v, want ENOENT", err)
	}

	nodeDir := filepath.Join(backingRoot, "sub.node")
	if _, err := os.Stat(nodeDir); err != nil {
		t.Fatalf("directory node should survive rmdir: %v", err)
	}
	if _, err := os.Stat(filepath.Join(nodeDir, "deleted")); err != nil {
		t.Fatalf("rmdir should leave a deleted marker: %v", err)
	}
}

func TestStrictRmdirRejectsLiveChildren(t *testing.T) {
	mountpoint, _ := testMount(t, true)

	dir := filepath.Join(mountpoint, "sub")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "child.txt"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile(child): %v", err)
	}

	if err := os.Remove(dir); err == nil {
		t.Fatalf("Remove(non-empty dir) under StrictRmdir = nil, want an error")
	}
}

func TestRenameFilePreservesSourceHistoryAsTombstone(t *testing.T) {
	mountpoint, backingRoot := testMount(t, false)

	src := filepath.Join(mountpoint, "a.txt")
	dst := filepath.Join(mountpoint, "b.txt")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Rename(src, dst); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "payload" {
		t.Fatalf("ReadFile(dst) = %q, %v, want %q", data, err, "payload")
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("Stat(src) after rename = %v, want ENOENT", err)
	}

	srcNodeDir := filepath.Join(backingRoot, "a.txt.node")
	if _, err := os.Stat(filepath.Join(srcNodeDir, "0")); err != nil {
		t.Fatalf("source revision 0 should survive rename: %v", err)
	}
	if _, err := os.Stat(filepath.Join(srcNodeDir, "deleted")); err != nil {
		t.Fatalf("rename should tombstone the source node: %v", err)
	}
}

func TestLinkSharesUnderlyingRevisionFile(t *testing.T) {
	mountpoint, backingRoot := testMount(t, false)

	src := filepath.Join(mountpoint, "a.txt")
	dst := filepath.Join(mountpoint, "b.txt")
	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := os.Link(src, dst); err != nil {
		t.Fatalf("Link: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "payload" {
		t.Fatalf("ReadFile(dst) = %q, %v, want %q", data, err, "payload")
	}

	srcRev := filepath.Join(backingRoot, "a.txt.node", "0")
	dstRev := filepath.Join(backingRoot, "b.txt.node", "0")
	srcInfo, err := os.Stat(srcRev)
	if err != nil {
		t.Fatalf("Stat(srcRev): %v", err)
	}
	dstInfo, err := os.Stat(dstRev)
	if err != nil {
		t.Fatalf("Stat(dstRev): %v", err)
	}
	if !os.SameFile(srcInfo, dstInfo) {
		t.Errorf("source and destination revision 0 are not the same inode")
	}

	if nlink := srcInfo.Sys().(*syscall.Stat_t).Nlink; nlink != 2 {
		t.Errorf("Nlink = %d, want 2", nlink)
	}

	// Overwriting the destination allocates its own revision and must
	// not disturb the source's content.
	if err := os.WriteFile(dst, []byte("changed"), 0o644); err != nil {
		t.Fatalf("WriteFile(dst, changed): %v", err)
	}
	srcData, err := os.ReadFile(src)
	if err != nil || string(srcData) != "payload" {
		t.Fatalf("ReadFile(src) after dst overwrite = %q, %v, want %q", srcData, err, "payload")
	}
}

func TestSymlinkRoundTrips(t *testing.T) {
	mountpoint, _ := testMount(t, false)

	link := filepath.Join(mountpoint, "link")
	if err := os.Symlink("/etc/hostname", link); err != nil {
		t.Fatalf("Symlink: %v", err)
	}

	target, err := os.Readlink(link)
	if err != nil || target != "/etc/hostname" {
		t.Fatalf("Readlink = %q, %v, want %q", target, err, "/etc/hostname")
	}
}

func TestReaddirListsOnlyLiveChildren(t *testing.T) {
	mountpoint, _ := testMount(t, false)

	if err := os.WriteFile(filepath.Join(mountpoint, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatalf("WriteFile(a): %v", err)
	}
	if err := os.WriteFile(filepath.Join(mountpoint, "b.txt"), []byte("b"), 0o644); err != nil {
		t.Fatalf("WriteFile(b): %v", err)
	}
	if err := os.Remove(filepath.Join(mountpoint, "b.txt")); err != nil {
		t.Fatalf("Remove(b): %v", err)
	}

	entries, err := os.ReadDir(mountpoint)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name()] = true
	}
	if !names["a.txt"] {
		t.Errorf("Readdir missing live entry a.txt: %v", names)
	}
	if names["b.txt"] {
		t.Errorf("Readdir should not list tombstoned entry b.txt: %v", names)
	}
}

func TestReaddirSkipsFileNodeWithoutARevision(t *testing.T) {
	mountpoint, backingRoot := testMount(t, false)

	if err := os.WriteFile(filepath.Join(mountpoint, "a.txt"), []byte("a"), 0o644); err != nil {
		t.Fatalf("WriteFile(a): %v", err)
	}

	// Simulate a node directory allocated by NewPath's mkdir-only branch
	// but never followed by a write: a node directory with no numbered
	// revision file inside it.
	if err := os.Mkdir(filepath.Join(backingRoot, "empty.txt.node"), 0o700); err != nil {
		t.Fatalf("Mkdir(empty.txt.node): %v", err)
	}

	entries, err := os.ReadDir(mountpoint)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name()] = true
	}
	if !names["a.txt"] {
		t.Errorf("Readdir missing live entry a.txt: %v", names)
	}
	if names["empty.txt"] {
		t.Errorf("Readdir should not list a file node with no revision: %v", names)
	}
}
