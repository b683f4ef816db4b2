// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

package fsnode

import (
	"hash/fnv"
	"os"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/wvdschel/undofs/lib/nodemeta"
)

// state is a node's classification at the moment classify was called.
// It is never retained across calls: every Node method that needs it
// re-derives it from the backing store.
type state struct {
	nodeDir string
	exists  bool
	isDir   bool
	deleted bool
}

// classify re-derives logical's current state directly from the
// backing store. No part of it is cached.
func (r *Root) classify(logical string) (state, error) {
	nodeDir, err := r.Mangler.VersionDir(logical)
	if err != nil {
		return state{}, err
	}

	exists, err := nodemeta.Exists(nodeDir)
	if err != nil {
		return state{}, err
	}
	if !exists {
		return state{nodeDir: nodeDir}, nil
	}

	isDir, err := nodemeta.IsDirectory(nodeDir)
	if err != nil {
		return state{}, err
	}
	deleted, err := nodemeta.IsDeleted(nodeDir)
	if err != nil {
		return state{}, err
	}

	return state{nodeDir: nodeDir, exists: true, isDir: isDir, deleted: deleted}, nil
}

// statNode resolves the physical path backing logical's current
// content (the node directory itself for a directory node, the latest
// revision file otherwise) and stats it, without following a trailing
// symlink.
func (n *Node) statNode(logical string, st state) (fuse.Attr, error) {
	physical := st.nodeDir
	if !st.isDir {
		var err error
		physical, err = n.root.Store.LatestPath(logical)
		if err != nil {
			return fuse.Attr{}, err
		}
	}

	info, err := os.Lstat(physical)
	if err != nil {
		return fuse.Attr{}, err
	}

	var attr fuse.Attr
	attr.FromStat(info.Sys().(*syscall.Stat_t))
	return attr, nil
}

// hasLiveChild reports whether nodeDir contains any child node
// directory that is not itself tombstoned, for StrictRmdir enforcement.
func hasLiveChild(nodeDir string) (bool, error) {
	entries, err := os.ReadDir(nodeDir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		childDir := nodeDir + "/" + e.Name()
		deleted, err := nodemeta.IsDeleted(childDir)
		if err != nil {
			continue
		}
		if !deleted {
			return true, nil
		}
	}
	return false, nil
}

// inodeHash derives a stable inode number from a logical path. Since
// Node holds no persistent identity beyond its path, recomputing this
// hash is how repeated Lookups of the same path end up with the same
// StableAttr.Ino across independent kernel NodeIDs.
func inodeHash(logical string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(logical))
	return h.Sum64()
}
