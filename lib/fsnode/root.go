// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

// Package fsnode bridges the versioning core (lib/mangle, lib/nodemeta,
// lib/revision) to github.com/hanwen/go-fuse/v2's high-level fs package.
//
// Node is the single InodeEmbedder type for every entry in the mount,
// directory or file alike; its behavior is entirely determined by
// re-reading the backing store at call time through Root's shared,
// read-only collaborators. Node keeps no cache of its own.
package fsnode

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/wvdschel/undofs/lib/clock"
	"github.com/wvdschel/undofs/lib/mangle"
	"github.com/wvdschel/undofs/lib/revision"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// Root holds the configuration and collaborators shared by every Node
// in a mount. It is read-only after Mount returns.
type Root struct {
	// BackingRoot is the absolute directory holding the node tree.
	BackingRoot string

	// Mangler maps logical paths to node directories beneath
	// BackingRoot.
	Mangler *mangle.Mangler

	// Store allocates and resolves revision files within a node
	// directory.
	Store *revision.Store

	// StrictRmdir, when true, makes Rmdir fail with "not empty" if any
	// immediate child is live (not tombstoned). When false (the
	// default), Rmdir tombstones the directory node unconditionally,
	// matching the reference implementation.
	StrictRmdir bool

	// Clock is the mount's time source; cmd/undofs reads the manifest's
	// start time from it. Log lines carry slog's own timestamps. Mount
	// sets it to clock.Real() if nil.
	Clock clock.Clock

	// Logger receives the mount's structured log lines: the "mounted"
	// notice and a warning when a directory rename overwrites its
	// destination. Other operations are not logged. Mount replaces a
	// nil Logger with one that writes error-level lines to stderr.
	Logger *slog.Logger
}

func (r *Root) now() time.Time {
	if r.Clock == nil {
		return time.Now()
	}
	return r.Clock.Now()
}

func (r *Root) log(level slog.Level, msg string, args ...any) {
	if r.Logger == nil {
		return
	}
	r.Logger.Log(context.Background(), level, msg, args...)
}

// Options configures Mount.
type Options struct {
	// Mountpoint is the directory the filesystem is mounted on. Mount
	// creates it (and any missing parents) if it does not exist.
	Mountpoint string

	// Root is the shared configuration for every node in the mount.
	Root *Root

	// AllowOther permits other users, including root, to access the
	// mount. Requires user_allow_other in /etc/fuse.conf.
	AllowOther bool

	// Foreground is carried in Options but has no effect: Mount does
	// not read it, and go-fuse's Mount always runs the server loop in
	// a goroutine of the calling process. undofs never daemonizes.
	Foreground bool
}

// Mount mounts the versioning filesystem at options.Mountpoint. The
// caller must call Unmount (or Wait, for the server to run until
// externally unmounted) on the returned server.
func Mount(options Options) (*fuse.Server, error) {
	if options.Mountpoint == "" {
		return nil, fmt.Errorf("mountpoint is required")
	}
	if options.Root == nil {
		return nil, fmt.Errorf("root configuration is required")
	}
	if options.Root.Mangler == nil {
		return nil, fmt.Errorf("root.Mangler is required")
	}
	if options.Root.Store == nil {
		return nil, fmt.Errorf("root.Store is required")
	}
	if options.Root.Clock == nil {
		options.Root.Clock = clock.Real()
	}
	if options.Root.Logger == nil {
		options.Root.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))
	}

	if err := os.MkdirAll(options.Mountpoint, 0o755); err != nil {
		return nil, fmt.Errorf("creating mountpoint %s: %w", options.Mountpoint, err)
	}

	root := &Node{root: options.Root, path: "/"}

	entryTimeout := 0 * time.Second
	attrTimeout := 0 * time.Second
	negativeTimeout := 0 * time.Second

	server, err := gofuse.Mount(options.Mountpoint, root, &gofuse.Options{
		// Every operation re-derives its answer from the backing
		// store; caching kernel-side entries, attributes, or negative
		// (ENOENT) lookups would reintroduce exactly the state this
		// system is built to avoid.
		EntryTimeout:    &entryTimeout,
		AttrTimeout:     &attrTimeout,
		NegativeTimeout: &negativeTimeout,
		MountOptions: fuse.MountOptions{
			FsName:     "undofs",
			Name:       "undofs",
			AllowOther: options.AllowOther,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mounting at %s: %w", options.Mountpoint, err)
	}

	options.Root.log(slog.LevelInfo, "mounted",
		"backing_root", options.Root.BackingRoot,
		"mountpoint", options.Mountpoint)
	return server, nil
}
