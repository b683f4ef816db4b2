// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

package fsnode

import (
	"errors"
	"os"
	"syscall"
)

// toErrno maps an error from lib/mangle, lib/nodemeta, lib/revision, or
// a raw syscall into the syscall.Errno the FUSE bridge expects. A nil
// error maps to 0 (success). Errors that already carry a wrapped
// syscall.Errno (mangle.VersionDir's ENAMETOOLONG, revision.Store's
// EISDIR, ENOENT) are unwrapped and returned as-is; anything else that
// isn't recognized falls back to EIO — an unclassified failure should
// surface as an I/O error to the caller, not panic or hang the request.
func toErrno(err error) syscall.Errno {
	if err == nil {
		return 0
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno
	}
	if os.IsNotExist(err) {
		return syscall.ENOENT
	}
	if os.IsExist(err) {
		return syscall.EEXIST
	}
	if os.IsPermission(err) {
		return syscall.EACCES
	}
	return syscall.EIO
}
