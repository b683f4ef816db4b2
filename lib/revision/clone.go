// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

package revision

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
)

// Clone copies src to dst, preserving mode, ownership, timestamps, and
// extended attributes where the underlying tool supports them.
//
// This delegates to the external "cp -a" utility rather than an
// in-process copy, matching original_source/undofs_util.c's
// clone_file (which forks and execs "/bin/cp -a"). Unlike the original
// fork/exec, failures carry the command's stderr and exit status.
type Clone func(ctx context.Context, src, dst string) error

// CpArchive clones src to dst by shelling out to "cp -a src dst". This
// is the default Clone implementation: an in-process copy would need to
// reimplement mode, ownership, timestamp, and xattr preservation itself,
// while a subprocess invocation with wait and exit-status inspection
// gets all of that for free, matching what the reference implementation
// does.
func CpArchive(ctx context.Context, src, dst string) error {
	cmd := exec.CommandContext(ctx, "cp", "-a", src, dst)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("cloning %s to %s: %w: %s", src, dst, err, stderr.String())
	}
	return nil
}
