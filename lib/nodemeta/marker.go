// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

package nodemeta

import (
	"os"
	"path/filepath"
)

// DirMarker is the empty regular file whose presence in a node directory
// asserts that the node represents a directory.
const DirMarker = "dir"

// DeletedMarker is the empty regular file whose presence in a node
// directory asserts that the node is currently tombstoned.
const DeletedMarker = "deleted"

// IsDirectory reports whether the node directory at nodePath has its
// "dir" marker. A non-existent node is not a directory.
func IsDirectory(nodePath string) (bool, error) {
	return markerExists(filepath.Join(nodePath, DirMarker))
}

// IsDeleted reports whether the node directory at nodePath has its
// "deleted" marker. A non-existent node is not considered deleted.
func IsDeleted(nodePath string) (bool, error) {
	return markerExists(filepath.Join(nodePath, DeletedMarker))
}

// Exists reports whether nodePath exists as a directory on the backing
// store.
func Exists(nodePath string) (bool, error) {
	info, err := os.Lstat(nodePath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}

func markerExists(path string) (bool, error) {
	_, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// MarkDeleted creates the "deleted" marker in the node directory at
// nodePath using exclusive-create semantics, so that two concurrent
// callers race at most once: one creates the marker, the other observes
// os.ErrExist.
func MarkDeleted(nodePath string) error {
	return touch(filepath.Join(nodePath, DeletedMarker))
}

// MarkDirectory creates the "dir" marker in the node directory at
// nodePath. Once a node is marked as a directory, nothing in undofs
// ever removes that marker — a node's directory-ness is permanent.
func MarkDirectory(nodePath string) error {
	return touch(filepath.Join(nodePath, DirMarker))
}

// Undelete removes the "deleted" marker from the node directory at
// nodePath. It fails if the marker is absent.
func Undelete(nodePath string) error {
	return os.Remove(filepath.Join(nodePath, DeletedMarker))
}

// touch creates an empty regular file at path, failing with os.ErrExist
// if it is already present.
func touch(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}
