// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

// Package verify walks a backing store beneath a logical path and
// reports, per node, its classification, revision count, and (on
// request) a content hash of every revision file — a read-only
// integrity check, never a mutation.
package verify

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/wvdschel/undofs/lib/mangle"
	"github.com/wvdschel/undofs/lib/nodemeta"
)

// Revision describes one numbered revision file within a node.
type Revision struct {
	Number int64
	Size   int64
	// Hash is the hex-encoded BLAKE3 digest of the revision's content,
	// populated only when Walk is called with hashContent true.
	Hash string
}

// Node describes one logical path's state as found on disk.
type Node struct {
	Logical   string
	IsDir     bool
	Deleted   bool
	Revisions []Revision
	// Anomaly is non-empty when the node could not be fully inspected
	// (e.g. a revision file was unreadable).
	Anomaly string
}

// Walk reports every node directory reachable beneath logical,
// including logical itself, in depth-first, lexically sorted order.
// When hashContent is true, every revision file is streamed through a
// BLAKE3 hasher (matching the keyed-hash precedent used elsewhere in
// the ambient stack, here unkeyed since this is a standalone integrity
// check, not a dedup or signing domain).
func Walk(m *mangle.Mangler, logical string, hashContent bool) ([]Node, error) {
	var out []Node
	if err := walk(m, logical, hashContent, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func walk(m *mangle.Mangler, logical string, hashContent bool, out *[]Node) error {
	nodeDir, err := m.VersionDir(logical)
	if err != nil {
		return err
	}

	exists, err := nodemeta.Exists(nodeDir)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("verify: %s does not exist", logical)
	}

	isDir, err := nodemeta.IsDirectory(nodeDir)
	if err != nil {
		return err
	}
	deleted, err := nodemeta.IsDeleted(nodeDir)
	if err != nil {
		return err
	}

	node := Node{Logical: logical, IsDir: isDir, Deleted: deleted}

	entries, err := os.ReadDir(nodeDir)
	if err != nil {
		return err
	}

	var childNames []string
	for _, e := range entries {
		if e.IsDir() {
			if name, ok := strings.CutSuffix(e.Name(), mangle.NodeSuffix); ok {
				childNames = append(childNames, name)
			}
			continue
		}
		if e.Name() == nodemeta.DirMarker || e.Name() == nodemeta.DeletedMarker {
			continue
		}
		n, perr := strconv.ParseInt(e.Name(), 10, 64)
		if perr != nil || n < 0 {
			continue
		}
		rev := Revision{Number: n}
		info, err := e.Info()
		if err == nil {
			rev.Size = info.Size()
		}
		if hashContent {
			digest, err := hashFile(nodeDir + "/" + e.Name())
			if err != nil {
				node.Anomaly = fmt.Sprintf("revision %d: %v", n, err)
			} else {
				rev.Hash = digest
			}
		}
		node.Revisions = append(node.Revisions, rev)
	}
	sort.Slice(node.Revisions, func(i, j int) bool { return node.Revisions[i].Number < node.Revisions[j].Number })

	*out = append(*out, node)

	sort.Strings(childNames)
	for _, name := range childNames {
		childLogical := logical
		if childLogical == "/" {
			childLogical = "/" + name
		} else {
			childLogical = logical + "/" + name
		}
		if err := walk(m, childLogical, hashContent, out); err != nil {
			return err
		}
	}
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
