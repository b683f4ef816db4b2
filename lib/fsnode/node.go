// Copyright 2026 The undofs Authors
// SPDX-License-Identifier: Apache-2.0

package fsnode

import (
	"context"
	"log/slog"
	"os"
	"syscall"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/wvdschel/undofs/lib/nodemeta"
	"github.com/wvdschel/undofs/lib/revision"
)

// Node is the single InodeEmbedder for every entry in a mount,
// directory or file alike. Its only state is a pointer to the shared
// Root and the logical path it represents; every operation re-derives
// directory/file/tombstone classification from the backing store.
type Node struct {
	gofuse.Inode
	root *Root
	path string
}

var (
	_ gofuse.InodeEmbedder  = (*Node)(nil)
	_ gofuse.NodeLookuper   = (*Node)(nil)
	_ gofuse.NodeGetattrer  = (*Node)(nil)
	_ gofuse.NodeSetattrer  = (*Node)(nil)
	_ gofuse.NodeMkdirer    = (*Node)(nil)
	_ gofuse.NodeRmdirer    = (*Node)(nil)
	_ gofuse.NodeUnlinker   = (*Node)(nil)
	_ gofuse.NodeCreater    = (*Node)(nil)
	_ gofuse.NodeOpener     = (*Node)(nil)
	_ gofuse.NodeMknoder    = (*Node)(nil)
	_ gofuse.NodeSymlinker  = (*Node)(nil)
	_ gofuse.NodeReadlinker = (*Node)(nil)
	_ gofuse.NodeLinker     = (*Node)(nil)
	_ gofuse.NodeRenamer    = (*Node)(nil)
	_ gofuse.NodeReaddirer  = (*Node)(nil)
	_ gofuse.NodeAccesser   = (*Node)(nil)
	_ gofuse.NodeStatfser   = (*Node)(nil)
)

// childLogical joins a logical directory path with a child name.
func childLogical(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// childInode builds the Inode for a freshly classified child, filling
// out with its attributes. A fresh (non-persistent) inode lets the
// kernel forget it and re-Lookup later, which is what keeps this
// bridge honest about holding no directory cache of its own.
func (n *Node) childInode(ctx context.Context, logical string, st state) (*gofuse.Inode, fuse.Attr, error) {
	attr, err := n.statNode(logical, st)
	if err != nil {
		return nil, fuse.Attr{}, err
	}
	child := &Node{root: n.root, path: logical}
	stable := gofuse.StableAttr{Mode: attr.Mode, Ino: inodeHash(logical)}
	return n.NewInode(ctx, child, stable), attr, nil
}

func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	logical := childLogical(n.path, name)
	st, err := n.root.classify(logical)
	if err != nil {
		return nil, toErrno(err)
	}
	if !st.exists || st.deleted {
		return nil, syscall.ENOENT
	}

	inode, attr, err := n.childInode(ctx, logical, st)
	if err != nil {
		return nil, toErrno(err)
	}
	out.Attr = attr
	return inode, 0
}

func (n *Node) Getattr(ctx context.Context, f gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	st, err := n.root.classify(n.path)
	if err != nil {
		return toErrno(err)
	}
	if !st.exists || st.deleted {
		return syscall.ENOENT
	}
	attr, err := n.statNode(n.path, st)
	if err != nil {
		return toErrno(err)
	}
	out.Attr = attr
	return 0
}

func (n *Node) Setattr(ctx context.Context, f gofuse.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	st, err := n.root.classify(n.path)
	if err != nil {
		return toErrno(err)
	}
	if !st.exists || st.deleted {
		return syscall.ENOENT
	}

	physical := st.nodeDir
	if !st.isDir {
		if size, ok := in.GetSize(); ok && f == nil {
			// A path-based truncate with no open write handle is a
			// write: it allocates (and, if the node already has
			// content, clones forward into) a new revision before
			// resizing it.
			physical, err = n.root.Store.NewPath(n.path)
			if err != nil {
				return toErrno(err)
			}
			if err := os.Truncate(physical, int64(size)); err != nil {
				return toErrno(err)
			}
		} else {
			// Either there's an open write handle (it already
			// allocated its revision on open/create) or this call
			// carries no size at all; either way the current latest
			// revision is the one to resize, not a fresh one.
			physical, err = n.root.Store.LatestPath(n.path)
			if err != nil {
				return toErrno(err)
			}
			if ok {
				if err := os.Truncate(physical, int64(size)); err != nil {
					return toErrno(err)
				}
			}
		}
	}

	if mode, ok := in.GetMode(); ok {
		if err := os.Chmod(physical, os.FileMode(mode&0o7777)); err != nil {
			return toErrno(err)
		}
	}
	uid, uok := in.GetUID()
	gid, gok := in.GetGID()
	if uok || gok {
		u, g := -1, -1
		if uok {
			u = int(uid)
		}
		if gok {
			g = int(gid)
		}
		if err := os.Chown(physical, u, g); err != nil {
			return toErrno(err)
		}
	}
	if mtime, ok := in.GetMTime(); ok {
		atime := mtime
		if a, ok := in.GetATime(); ok {
			atime = a
		}
		if err := os.Chtimes(physical, atime, mtime); err != nil {
			return toErrno(err)
		}
	}

	st, err = n.root.classify(n.path)
	if err != nil {
		return toErrno(err)
	}
	attr, err := n.statNode(n.path, st)
	if err != nil {
		return toErrno(err)
	}
	out.Attr = attr
	return 0
}

func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	logical := childLogical(n.path, name)
	nodeDir, err := n.root.Mangler.VersionDir(logical)
	if err != nil {
		return nil, toErrno(err)
	}

	exists, err := nodemeta.Exists(nodeDir)
	if err != nil {
		return nil, toErrno(err)
	}
	if exists {
		return nil, syscall.EEXIST
	}

	if err := os.Mkdir(nodeDir, os.FileMode(mode&0o7777)); err != nil {
		return nil, toErrno(err)
	}
	if err := nodemeta.MarkDirectory(nodeDir); err != nil {
		return nil, toErrno(err)
	}

	inode, attr, err := n.childInode(ctx, logical, state{nodeDir: nodeDir, exists: true, isDir: true})
	if err != nil {
		return nil, toErrno(err)
	}
	out.Attr = attr
	return inode, 0
}

func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	logical := childLogical(n.path, name)
	nodeDir, err := n.root.Mangler.VersionDir(logical)
	if err != nil {
		return toErrno(err)
	}

	isDir, err := nodemeta.IsDirectory(nodeDir)
	if err != nil {
		return toErrno(err)
	}
	if !isDir {
		return syscall.ENOTDIR
	}
	deleted, err := nodemeta.IsDeleted(nodeDir)
	if err != nil {
		return toErrno(err)
	}
	if deleted {
		return syscall.ENOENT
	}

	if n.root.StrictRmdir {
		live, err := hasLiveChild(nodeDir)
		if err != nil {
			return toErrno(err)
		}
		if live {
			return syscall.ENOTEMPTY
		}
	}

	if err := nodemeta.MarkDeleted(nodeDir); err != nil {
		return toErrno(err)
	}
	return 0
}

func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	logical := childLogical(n.path, name)
	nodeDir, err := n.root.Mangler.VersionDir(logical)
	if err != nil {
		return toErrno(err)
	}

	isDir, err := nodemeta.IsDirectory(nodeDir)
	if err != nil {
		return toErrno(err)
	}
	if isDir {
		return syscall.EISDIR
	}
	deleted, err := nodemeta.IsDeleted(nodeDir)
	if err != nil {
		return toErrno(err)
	}
	if deleted {
		return syscall.ENOENT
	}

	if err := nodemeta.MarkDeleted(nodeDir); err != nil {
		return toErrno(err)
	}
	return 0
}

func (n *Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*gofuse.Inode, gofuse.FileHandle, uint32, syscall.Errno) {
	logical := childLogical(n.path, name)
	physical, err := n.root.Store.NewPath(logical)
	if err != nil {
		return nil, nil, 0, toErrno(err)
	}

	fd, err := syscall.Open(physical, int(flags)|syscall.O_CREAT, mode&0o7777)
	if err != nil {
		return nil, nil, 0, toErrno(err)
	}

	nodeDir, err := n.root.Mangler.VersionDir(logical)
	if err != nil {
		syscall.Close(fd)
		return nil, nil, 0, toErrno(err)
	}
	inode, attr, err := n.childInode(ctx, logical, state{nodeDir: nodeDir, exists: true})
	if err != nil {
		syscall.Close(fd)
		return nil, nil, 0, toErrno(err)
	}
	out.Attr = attr

	return inode, gofuse.NewLoopbackFile(fd), 0, 0
}

func (n *Node) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	st, err := n.root.classify(n.path)
	if err != nil {
		return nil, 0, toErrno(err)
	}
	if !st.exists || st.deleted {
		return nil, 0, syscall.ENOENT
	}
	if st.isDir {
		return nil, 0, syscall.EISDIR
	}

	writable := flags&(syscall.O_WRONLY|syscall.O_RDWR) != 0
	var physical string
	if writable {
		physical, err = n.root.Store.NewPath(n.path)
	} else {
		physical, err = n.root.Store.LatestPath(n.path)
	}
	if err != nil {
		return nil, 0, toErrno(err)
	}

	// The bridge never forwards creation or truncation flags to the
	// physical open: fresh files always route through Create, and
	// write-open COW allocation above already produced the right
	// revision.
	openFlags := int(flags) &^ (syscall.O_CREAT | syscall.O_EXCL | syscall.O_TRUNC)
	fd, err := syscall.Open(physical, openFlags, 0)
	if err != nil {
		return nil, 0, toErrno(err)
	}
	return gofuse.NewLoopbackFile(fd), 0, 0
}

func (n *Node) Mknod(ctx context.Context, name string, mode, rdev uint32, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	logical := childLogical(n.path, name)
	physical, err := n.root.Store.NewPath(logical)
	if err != nil {
		return nil, toErrno(err)
	}

	switch mode & syscall.S_IFMT {
	case syscall.S_IFIFO:
		err = syscall.Mkfifo(physical, mode&0o7777)
	case syscall.S_IFREG, 0:
		var fd int
		fd, err = syscall.Open(physical, syscall.O_CREAT|syscall.O_EXCL|syscall.O_RDWR, mode&0o7777)
		if err == nil {
			syscall.Close(fd)
		}
	default:
		err = syscall.Mknod(physical, mode, int(rdev))
	}
	if err != nil {
		return nil, toErrno(err)
	}

	nodeDir, err := n.root.Mangler.VersionDir(logical)
	if err != nil {
		return nil, toErrno(err)
	}
	inode, attr, err := n.childInode(ctx, logical, state{nodeDir: nodeDir, exists: true})
	if err != nil {
		return nil, toErrno(err)
	}
	out.Attr = attr
	return inode, 0
}

func (n *Node) Symlink(ctx context.Context, target, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	logical := childLogical(n.path, name)
	physical, err := n.root.Store.NewPath(logical)
	if err != nil {
		return nil, toErrno(err)
	}
	if err := syscall.Symlink(target, physical); err != nil {
		return nil, toErrno(err)
	}

	nodeDir, err := n.root.Mangler.VersionDir(logical)
	if err != nil {
		return nil, toErrno(err)
	}
	inode, attr, err := n.childInode(ctx, logical, state{nodeDir: nodeDir, exists: true})
	if err != nil {
		return nil, toErrno(err)
	}
	out.Attr = attr
	return inode, 0
}

func (n *Node) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	st, err := n.root.classify(n.path)
	if err != nil {
		return nil, toErrno(err)
	}
	if !st.exists || st.deleted || st.isDir {
		return nil, syscall.ENOENT
	}
	physical, err := n.root.Store.LatestPath(n.path)
	if err != nil {
		return nil, toErrno(err)
	}
	target, err := os.Readlink(physical)
	if err != nil {
		return nil, toErrno(err)
	}
	return []byte(target), 0
}

// Link makes name a real hard link to target's latest revision file:
// the two logical paths share one inode for that revision. Since a
// write never mutates a revision file in place — it always allocates
// a new one — the shared inode is never written through, so the two
// paths only diverge once one of them is written again and gets its
// own fresh revision.
func (n *Node) Link(ctx context.Context, target gofuse.InodeEmbedder, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	src, ok := target.(*Node)
	if !ok {
		return nil, syscall.EXDEV
	}

	srcPhysical, err := n.root.Store.LatestPath(src.path)
	if err != nil {
		return nil, toErrno(err)
	}

	logical := childLogical(n.path, name)
	dstPhysical, err := n.root.Store.NewPath(logical)
	if err != nil {
		return nil, toErrno(err)
	}
	if err := syscall.Link(srcPhysical, dstPhysical); err != nil {
		return nil, toErrno(err)
	}

	nodeDir, err := n.root.Mangler.VersionDir(logical)
	if err != nil {
		return nil, toErrno(err)
	}
	inode, attr, err := n.childInode(ctx, logical, state{nodeDir: nodeDir, exists: true})
	if err != nil {
		return nil, toErrno(err)
	}
	out.Attr = attr
	return inode, 0
}

func (n *Node) Rename(ctx context.Context, name string, newParent gofuse.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	destParent, ok := newParent.(*Node)
	if !ok {
		return syscall.EXDEV
	}

	srcLogical := childLogical(n.path, name)
	dstLogical := childLogical(destParent.path, newName)

	srcNodeDir, err := n.root.Mangler.VersionDir(srcLogical)
	if err != nil {
		return toErrno(err)
	}
	dstNodeDir, err := n.root.Mangler.VersionDir(dstLogical)
	if err != nil {
		return toErrno(err)
	}

	isDir, err := nodemeta.IsDirectory(srcNodeDir)
	if err != nil {
		return toErrno(err)
	}

	if isDir {
		if exists, err := nodemeta.Exists(dstNodeDir); err != nil {
			return toErrno(err)
		} else if exists {
			n.root.log(slog.LevelWarn, "rename overwrote destination node",
				"source", srcLogical, "destination", dstLogical)
			if err := os.RemoveAll(dstNodeDir); err != nil {
				return toErrno(err)
			}
		}
		if err := os.Rename(srcNodeDir, dstNodeDir); err != nil {
			return toErrno(err)
		}
		return 0
	}

	if err := nodemeta.MarkDeleted(srcNodeDir); err != nil {
		return toErrno(err)
	}

	srcPhysical, err := n.root.Store.LatestPath(srcLogical)
	if err != nil {
		_ = nodemeta.Undelete(srcNodeDir)
		return toErrno(err)
	}
	dstPhysical, err := n.root.Store.NewPath(dstLogical)
	if err != nil {
		_ = nodemeta.Undelete(srcNodeDir)
		return toErrno(err)
	}
	if err := revision.CpArchive(ctx, srcPhysical, dstPhysical); err != nil {
		_ = nodemeta.Undelete(srcNodeDir)
		return toErrno(err)
	}
	return 0
}

func (n *Node) Access(ctx context.Context, mask uint32) syscall.Errno {
	st, err := n.root.classify(n.path)
	if err != nil {
		return toErrno(err)
	}
	if !st.exists || st.deleted {
		return syscall.ENOENT
	}

	physical := st.nodeDir
	if !st.isDir {
		physical, err = n.root.Store.LatestPath(n.path)
		if err != nil {
			return toErrno(err)
		}
	}
	if err := syscall.Access(physical, mask); err != nil {
		return toErrno(err)
	}
	return 0
}

func (n *Node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	var s syscall.Statfs_t
	if err := syscall.Statfs(n.root.BackingRoot, &s); err != nil {
		return toErrno(err)
	}
	out.FromStatfsT(&s)
	return 0
}
