// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

// undofs mounts a versioning overlay filesystem: every write allocates
// a new numbered revision of a file rather than overwriting it in
// place, and deletes tombstone rather than erase.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/wvdschel/undofs/lib/buildinfo"
	"github.com/wvdschel/undofs/lib/config"
	"github.com/wvdschel/undofs/lib/fsnode"
	"github.com/wvdschel/undofs/lib/logging"
	"github.com/wvdschel/undofs/lib/mangle"
	"github.com/wvdschel/undofs/lib/manifest"
	"github.com/wvdschel/undofs/lib/process"
	"github.com/wvdschel/undofs/lib/revision"
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		configPath  string
		allowOther  bool
		strictRmdir bool
		foreground  bool
		showVersion bool
	)

	flagSet := pflag.NewFlagSet("undofs", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to a YAML config file (overrides UNDOFS_CONFIG)")
	flagSet.BoolVar(&allowOther, "allow-other", false, "allow other users to access the mount")
	flagSet.BoolVar(&strictRmdir, "strict-rmdir", false, "fail rmdir with ENOTEMPTY if the directory has live children")
	flagSet.BoolVar(&foreground, "foreground", false, "no effect: undofs always stays attached to the controlling terminal")
	flagSet.BoolVar(&showVersion, "version", false, "print version information and exit")
	flagSet.BoolP("help", "h", false, "show help")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			printHelp(flagSet)
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Println(buildinfo.Full())
		return nil
	}
	if help, _ := flagSet.GetBool("help"); help {
		printHelp(flagSet)
		return nil
	}

	cfg, err := loadConfig(configPath, flagSet.Args())
	if err != nil {
		return err
	}
	cfg.AllowOther = cfg.AllowOther || allowOther
	cfg.StrictRmdir = cfg.StrictRmdir || strictRmdir
	cfg.Foreground = cfg.Foreground || foreground
	if err := cfg.Validate(); err != nil {
		return err
	}

	backingRoot, err := filepath.Abs(cfg.BackingRoot)
	if err != nil {
		return fmt.Errorf("resolving backing root %s: %w", cfg.BackingRoot, err)
	}
	mountpoint, err := filepath.Abs(cfg.Mountpoint)
	if err != nil {
		return fmt.Errorf("resolving mountpoint %s: %w", cfg.Mountpoint, err)
	}
	if err := os.MkdirAll(backingRoot, 0o755); err != nil {
		return fmt.Errorf("creating backing root %s: %w", backingRoot, err)
	}

	logPath := cfg.LogPath
	if !filepath.IsAbs(logPath) {
		logPath = filepath.Join(backingRoot, logPath)
	}
	sessionID := uuid.NewString()

	logger, logFile, err := logging.New(logPath, sessionID)
	if err != nil {
		return err
	}
	defer logFile.Close()

	m := mangle.New(backingRoot)
	store := revision.New(m)

	root := &fsnode.Root{
		BackingRoot: backingRoot,
		Mangler:     m,
		Store:       store,
		StrictRmdir: cfg.StrictRmdir,
		Logger:      logger,
	}

	server, err := fsnode.Mount(fsnode.Options{
		Mountpoint: mountpoint,
		Root:       root,
		AllowOther: cfg.AllowOther,
		Foreground: cfg.Foreground,
	})
	if err != nil {
		return fmt.Errorf("mounting %s: %w", mountpoint, err)
	}

	mf := manifest.New(sessionID, backingRoot, mountpoint, buildinfo.Version, cfg.StrictRmdir, cfg.AllowOther, root.Clock.Now())
	if err := manifest.Write(backingRoot, mf); err != nil {
		logger.Error("writing manifest failed", "error", err)
	}

	logger.Info("undofs running",
		"backing_root", backingRoot,
		"mountpoint", mountpoint,
		"session", mf.SessionID,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	if err := server.Unmount(); err != nil {
		return fmt.Errorf("unmounting %s: %w", mountpoint, err)
	}
	return nil
}

// loadConfig builds a Config from, in order of precedence: a --config
// flag, the UNDOFS_CONFIG environment variable, or (if neither names a
// file) two positional arguments giving backing-root and mountpoint
// directly.
func loadConfig(configPath string, positional []string) (*config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	if path := os.Getenv("UNDOFS_CONFIG"); path != "" {
		return config.Load()
	}
	if len(positional) != 2 {
		return nil, fmt.Errorf("either --config, UNDOFS_CONFIG, or exactly two positional arguments " +
			"(backing-root mountpoint) are required")
	}
	cfg := config.Default()
	cfg.BackingRoot = positional[0]
	cfg.Mountpoint = positional[1]
	return cfg, nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `undofs — versioning overlay filesystem.

Usage:
  undofs <backing-root> <mountpoint> [flags]
  undofs --config <path> [flags]

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
