// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

package revision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/wvdschel/undofs/lib/mangle"
	"github.com/wvdschel/undofs/lib/nodemeta"
)

// Store enumerates, selects, and allocates revisions for nodes beneath
// a Mangler's root. It holds no cache: every method re-reads the node
// directory from the backing store.
type Store struct {
	Mangler *mangle.Mangler
	// CloneFn performs the attribute-preserving copy used when a node's
	// latest revision is cloned forward. Defaults to CpArchive.
	CloneFn Clone
}

// New returns a Store that mangles logical paths with m and clones
// revisions with CpArchive.
func New(m *mangle.Mangler) *Store {
	return &Store{Mangler: m, CloneFn: CpArchive}
}

// LatestVersion returns the highest numbered revision file present in
// logical's node directory. ok is false if the node directory does not
// exist, or exists but holds no numbered revision file (a directory
// node, or a file node that was created but never written).
func (s *Store) LatestVersion(logical string) (version int64, ok bool, err error) {
	nodeDir, err := s.Mangler.VersionDir(logical)
	if err != nil {
		return 0, false, err
	}

	entries, err := os.ReadDir(nodeDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, false, nil
		}
		return 0, false, err
	}

	found := false
	var max int64
	for _, e := range entries {
		n, perr := strconv.ParseInt(e.Name(), 10, 64)
		if perr != nil || n < 0 {
			continue
		}
		if !found || n > max {
			max = n
			found = true
		}
	}
	return max, found, nil
}

// LatestPath returns the physical path holding the current content for
// logical: the node directory itself for a directory node, or the
// highest numbered revision file for a file node. It does not consult
// the "deleted" marker — callers that must reject tombstoned reads do
// so before calling LatestPath.
func (s *Store) LatestPath(logical string) (physical string, err error) {
	nodeDir, err := s.Mangler.VersionDir(logical)
	if err != nil {
		return "", err
	}

	isDir, err := nodemeta.IsDirectory(nodeDir)
	if err != nil {
		return "", err
	}
	if isDir {
		return nodeDir, nil
	}

	version, ok, err := s.LatestVersion(logical)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("revision: %s has no revisions: %w", logical, syscall.ENOENT)
	}
	return filepath.Join(nodeDir, strconv.FormatInt(version, 10)), nil
}

// NewPath allocates the physical path a fresh write to logical should
// target, creating whatever node-directory bookkeeping that allocation
// requires. It implements the four-way branch of the reference
// implementation's new_path:
//
//   - the node directory already holds a "dir" marker: EISDIR.
//   - the node directory does not exist yet: it is created (mode
//     0700), and "node/0" is returned. The revision file itself is
//     NOT created — the caller (mknod or create) does that.
//   - the node directory exists, is currently tombstoned, and its
//     latest revision is n: the "deleted" marker is removed and
//     "node/(n+1)" is returned, again without creating or cloning any
//     file — resurrecting a deleted node starts it fresh.
//   - the node directory exists, is live, and holds no revision file
//     yet: "node/0" is returned without cloning.
//   - otherwise, the node directory exists, is live, and its latest
//     revision is n: revision n is cloned to n+1 via CloneFn, and
//     "node/(n+1)" — which now holds n's content — is returned.
func (s *Store) NewPath(logical string) (physical string, err error) {
	return s.newPath(context.Background(), logical)
}

// NewPathContext is NewPath with an explicit context, used when the
// clone step should honor cancellation from an in-flight FUSE request.
func (s *Store) NewPathContext(ctx context.Context, logical string) (physical string, err error) {
	return s.newPath(ctx, logical)
}

func (s *Store) newPath(ctx context.Context, logical string) (string, error) {
	nodeDir, err := s.Mangler.VersionDir(logical)
	if err != nil {
		return "", err
	}

	isDir, err := nodemeta.IsDirectory(nodeDir)
	if err != nil {
		return "", err
	}
	if isDir {
		return "", fmt.Errorf("revision: %s is a directory: %w", logical, syscall.EISDIR)
	}

	exists, err := nodemeta.Exists(nodeDir)
	if err != nil {
		return "", err
	}
	if !exists {
		if err := os.Mkdir(nodeDir, 0o700); err != nil {
			return "", err
		}
		return filepath.Join(nodeDir, "0"), nil
	}

	version, ok, err := s.LatestVersion(logical)
	if !ok || err != nil {
		if err != nil {
			return "", err
		}
		version = -1
	}
	next := version + 1
	nextPath := filepath.Join(nodeDir, strconv.FormatInt(next, 10))

	deleted, err := nodemeta.IsDeleted(nodeDir)
	if err != nil {
		return "", err
	}
	if deleted {
		if err := nodemeta.Undelete(nodeDir); err != nil {
			return "", err
		}
		return nextPath, nil
	}

	if !ok {
		// A live node directory with no revision file yet starts at
		// revision 0; there is nothing to clone.
		return nextPath, nil
	}

	clone := s.CloneFn
	if clone == nil {
		clone = CpArchive
	}
	prevPath := filepath.Join(nodeDir, strconv.FormatInt(version, 10))
	if err := clone(ctx, prevPath, nextPath); err != nil {
		return "", err
	}
	return nextPath, nil
}
