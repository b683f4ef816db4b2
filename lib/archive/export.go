// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

// Package archive packs an undofs backing store into a zstd-compressed
// tar archive for off-site backup. It is an inert, consistency-best-
// effort copy of whatever is on disk when it runs: it does not pause or
// isolate a live mount, and implements no snapshotting or garbage
// collection of its own.
package archive

import (
	"archive/tar"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Export walks backingRoot and writes every regular file, directory,
// and symlink it finds into a zstd-compressed tar stream at
// destArchive, preserving relative paths, modes, and (for regular
// files) content.
func Export(backingRoot, destArchive string) error {
	out, err := os.Create(destArchive)
	if err != nil {
		return fmt.Errorf("creating archive %s: %w", destArchive, err)
	}
	defer out.Close()

	zw, err := zstd.NewWriter(out)
	if err != nil {
		return fmt.Errorf("initializing zstd writer: %w", err)
	}
	defer zw.Close()

	tw := tar.NewWriter(zw)
	defer tw.Close()

	err = filepath.WalkDir(backingRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(backingRoot, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		var link string
		if d.Type()&os.ModeSymlink != 0 {
			link, err = os.Readlink(path)
			if err != nil {
				return err
			}
		}

		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if d.IsDir() {
			hdr.Name += "/"
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if d.Type().IsRegular() {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			if _, err := io.Copy(tw, f); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("exporting %s: %w", backingRoot, err)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("closing tar stream: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("closing zstd stream: %w", err)
	}
	return nil
}
