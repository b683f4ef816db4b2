// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

// undofs-status is a read-only companion to undofs: it reports the
// state of a backing store (or one subtree of it) without mounting
// anything, optionally content-verifying every revision or exporting
// the whole store to a compressed backup archive.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"

	"github.com/wvdschel/undofs/lib/archive"
	"github.com/wvdschel/undofs/lib/buildinfo"
	"github.com/wvdschel/undofs/lib/mangle"
	"github.com/wvdschel/undofs/lib/manifest"
	"github.com/wvdschel/undofs/lib/process"
	"github.com/wvdschel/undofs/lib/verify"
)

var (
	headingStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	dirStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	deletedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Strikethrough(true)
	anomalyStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("1"))
	sizeStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	revCountStyle = lipgloss.NewStyle().Faint(true)
)

func main() {
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	var (
		verifyContent bool
		exportPath    string
		showVersion   bool
	)

	flagSet := pflag.NewFlagSet("undofs-status", pflag.ContinueOnError)
	flagSet.BoolVar(&verifyContent, "verify", false, "content-hash every revision file and report anomalies")
	flagSet.StringVar(&exportPath, "export", "", "write a zstd-compressed tar backup of the backing root to this path")
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

	args := flagSet.Args()
	if len(args) < 1 {
		printHelp(flagSet)
		return fmt.Errorf("backing-root is required")
	}
	backingRoot := args[0]
	path := "/"
	if len(args) > 1 {
		path = args[1]
	}

	if exportPath != "" {
		if err := archive.Export(backingRoot, exportPath); err != nil {
			return err
		}
		fmt.Printf("exported %s to %s\n", backingRoot, exportPath)
		return nil
	}

	if mf, err := manifest.Read(backingRoot); err == nil {
		fmt.Println(headingStyle.Render("mount"))
		fmt.Printf("  session:      %s\n", mf.SessionID)
		fmt.Printf("  mountpoint:   %s\n", mf.Mountpoint)
		fmt.Printf("  started:      %s\n", mf.StartedAt.Format("2006-01-02 15:04:05 MST"))
		fmt.Printf("  strict_rmdir: %v\n", mf.StrictRmdir)
		fmt.Println()
	}

	m := mangle.New(backingRoot)
	nodes, err := verify.Walk(m, path, verifyContent)
	if err != nil {
		return err
	}

	fmt.Println(headingStyle.Render("nodes"))
	anomalies := 0
	for _, n := range nodes {
		label := n.Logical
		switch {
		case n.Deleted:
			label = deletedStyle.Render(label)
		case n.IsDir:
			label = dirStyle.Render(label)
		}

		var totalSize int64
		for _, r := range n.Revisions {
			totalSize += r.Size
		}

		fmt.Printf("  %s  %s  %s\n",
			label,
			revCountStyle.Render(fmt.Sprintf("%d rev", len(n.Revisions))),
			sizeStyle.Render(humanize.Bytes(uint64(totalSize))),
		)

		if n.Anomaly != "" {
			anomalies++
			fmt.Printf("    %s %s\n", anomalyStyle.Render("anomaly:"), n.Anomaly)
		}
		for _, r := range n.Revisions {
			if verifyContent {
				fmt.Printf("    rev %d: %s (%s)\n", r.Number, r.Hash, humanize.Bytes(uint64(r.Size)))
			}
		}
	}

	if verifyContent {
		fmt.Println()
		if anomalies == 0 {
			fmt.Println(headingStyle.Render(fmt.Sprintf("verified %d node(s), no anomalies", len(nodes))))
		} else {
			fmt.Println(anomalyStyle.Render(fmt.Sprintf("verified %d node(s), %d anomaly(ies)", len(nodes), anomalies)))
		}
	}

	return nil
}

func printHelp(flagSet *pflag.FlagSet) {
	fmt.Fprintf(os.Stderr, `undofs-status — read-only inspection of an undofs backing store.

Usage:
  undofs-status <backing-root> [path] [flags]

Flags:
`)
	flagSet.SetOutput(os.Stderr)
	flagSet.PrintDefaults()
}
