// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

package fsnode

import (
	"context"
	"os"
	"strings"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/wvdschel/undofs/lib/mangle"
	"github.com/wvdschel/undofs/lib/nodemeta"
)

// sliceDirStream serves a fully materialized, pre-computed entry list.
// Readdir has no partial-read protocol to honor beyond this.
type sliceDirStream struct {
	entries []fuse.DirEntry
	pos     int
}

func (s *sliceDirStream) HasNext() bool {
	return s.pos < len(s.entries)
}

func (s *sliceDirStream) Next() (fuse.DirEntry, syscall.Errno) {
	e := s.entries[s.pos]
	s.pos++
	return e, 0
}

func (s *sliceDirStream) Close() {}

func (n *Node) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	st, err := n.root.classify(n.path)
	if err != nil {
		return nil, toErrno(err)
	}
	if !st.exists || st.deleted {
		return nil, syscall.ENOENT
	}
	if !st.isDir {
		return nil, syscall.ENOTDIR
	}

	rawEntries, err := os.ReadDir(st.nodeDir)
	if err != nil {
		return nil, toErrno(err)
	}

	var out []fuse.DirEntry
	for _, e := range rawEntries {
		if !e.IsDir() {
			// Markers ("dir", "deleted") and numbered revision files
			// live alongside child node directories; only entries
			// ending in the node suffix are children.
			continue
		}
		childName, wellFormed := strings.CutSuffix(e.Name(), mangle.NodeSuffix)
		if !wellFormed {
			continue
		}

		childDir := st.nodeDir + "/" + e.Name()
		deleted, err := nodemeta.IsDeleted(childDir)
		if err != nil {
			continue
		}
		if deleted {
			continue
		}
		isDir, err := nodemeta.IsDirectory(childDir)
		if err != nil {
			continue
		}

		if !isDir {
			// A node directory can exist with no revision file yet —
			// allocated by NewPath's mkdir-only branch but never
			// followed by a write. Listing it would only set up a
			// Lookup that immediately fails; skip it instead.
			if _, ok, err := n.root.Store.LatestVersion(childLogical(n.path, childName)); err != nil || !ok {
				continue
			}
		}

		mode := uint32(syscall.S_IFREG)
		if isDir {
			mode = syscall.S_IFDIR
		}
		out = append(out, fuse.DirEntry{
			Name: childName,
			Mode: mode,
			Ino:  inodeHash(childLogical(n.path, childName)),
		})
	}

	return &sliceDirStream{entries: out}, 0
}
