//go:build fuse

package gosfs

import (
	"context"
	"io"
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// FUSE adapter (SPEC_FULL.md component M), build-tag gated exactly like
// the teacher's own optional platform code (inode_fuse.go,
// inode_linux.go, inode_darwin.go in the original, all merged here into
// one file). The teacher bridged SquashFS's read-only inode directly onto
// go-fuse's low-level raw ops, hand-rolling NodeId assignment and a
// manual "." / ".." directory-listing loop; that approach assumed an
// immutable tree walked once at mount time. GOSFS is read-write, so this
// adapter instead uses go-fuse's higher-level fs.InodeEmbedder API, which
// already handles NodeId bookkeeping and lets each fuseNode simply carry
// the gosfs path it represents and delegate to the Mount for every
// operation.

// MountFUSE mounts m at mountpoint using go-fuse, returning the running
// server. Callers should call srv.Wait() to block until unmount.
func MountFUSE(m *Mount, mountpoint string) (*fuse.Server, error) {
	root := &fuseNode{m: m, path: "/"}
	opts := &fs.Options{
		MountOptions: fuse.MountOptions{FsName: registeredName, Name: registeredName},
	}
	server, err := fs.Mount(mountpoint, root, opts)
	if err != nil {
		return nil, err
	}
	return server, nil
}

// fuseNode is one in-memory go-fuse node mirroring a path in the mounted
// GOSFS volume. Nodes are created lazily by Lookup/Readdir; there is no
// persistent node cache beyond what go-fuse itself keeps.
type fuseNode struct {
	fs.Inode
	m    *Mount
	path string
}

var (
	_ fs.NodeGetattrer = (*fuseNode)(nil)
	_ fs.NodeLookuper  = (*fuseNode)(nil)
	_ fs.NodeReaddirer = (*fuseNode)(nil)
	_ fs.NodeOpener    = (*fuseNode)(nil)
	_ fs.NodeReader    = (*fuseNode)(nil)
	_ fs.NodeWriter    = (*fuseNode)(nil)
	_ fs.NodeMkdirer   = (*fuseNode)(nil)
	_ fs.NodeCreater   = (*fuseNode)(nil)
	_ fs.NodeUnlinker  = (*fuseNode)(nil)
	_ fs.NodeRmdirer   = (*fuseNode)(nil)
)

func errnoFor(err error) syscall.Errno {
	switch errno(err) {
	case ENOTFOUND:
		return syscall.ENOENT
	case EACCESSDENIED:
		return syscall.EACCES
	case ENOSPACE:
		return syscall.ENOSPC
	case ENOMEMORY:
		return syscall.ENOMEM
	case EINVALIDARGUMENT:
		return syscall.EINVAL
	default:
		return syscall.EIO
	}
}

func childPath(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

func (n *fuseNode) attrFromStat(info FileInfo, out *fuse.Attr) {
	out.Size = info.Size
	if info.IsDir {
		out.Mode = fuse.S_IFDIR | 0755
	} else {
		out.Mode = fuse.S_IFREG | 0644
	}
}

func (n *fuseNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	info, err := n.m.Stat(n.path)
	if err != nil {
		return errnoFor(err)
	}
	n.attrFromStat(info, &out.Attr)
	return 0
}

func (n *fuseNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := childPath(n.path, name)
	info, err := n.m.Stat(p)
	if err != nil {
		return nil, errnoFor(err)
	}
	child := &fuseNode{m: n.m, path: p}
	n.attrFromStat(info, &out.Attr)

	mode := uint32(syscall.S_IFREG)
	if info.IsDir {
		mode = syscall.S_IFDIR
	}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: mode}), 0
}

func (n *fuseNode) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	dh, err := n.m.OpenDir(n.path)
	if err != nil {
		return nil, errnoFor(err)
	}
	var entries []fuse.DirEntry
	for {
		e, err := dh.ReadEntry()
		if err == ErrNoMoreEntries {
			break
		}
		if err != nil {
			return nil, errnoFor(err)
		}
		if e.Name == "." {
			// The kernel synthesizes "." itself; GOSFS's own THIS
			// self-reference entry is an on-disk bookkeeping detail, not
			// a child to list.
			continue
		}
		mode := uint32(syscall.S_IFREG)
		if info, err := n.m.Stat(childPath(n.path, e.Name)); err == nil && info.IsDir {
			mode = syscall.S_IFDIR
		}
		entries = append(entries, fuse.DirEntry{Name: e.Name, Mode: mode})
	}
	return fs.NewListDirStream(entries), 0
}

func (n *fuseNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	f, err := n.m.Open(n.path, FlagRead|FlagWrite)
	if err != nil {
		return nil, 0, errnoFor(err)
	}
	return &fuseFile{f: f}, 0, 0
}

func (n *fuseNode) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	p := childPath(n.path, name)
	f, err := n.m.OpenCreate(p)
	if err != nil {
		return nil, nil, 0, errnoFor(err)
	}
	child := &fuseNode{m: n.m, path: p}
	inode := n.NewInode(ctx, child, fs.StableAttr{Mode: syscall.S_IFREG})
	return inode, &fuseFile{f: f}, 0, 0
}

func (n *fuseNode) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := childPath(n.path, name)
	if err := n.m.Mkdir(p); err != nil {
		return nil, errnoFor(err)
	}
	child := &fuseNode{m: n.m, path: p}
	return n.NewInode(ctx, child, fs.StableAttr{Mode: syscall.S_IFDIR}), 0
}

func (n *fuseNode) Unlink(ctx context.Context, name string) syscall.Errno {
	if err := n.m.Delete(childPath(n.path, name)); err != nil {
		return errnoFor(err)
	}
	return 0
}

func (n *fuseNode) Rmdir(ctx context.Context, name string) syscall.Errno {
	if err := n.m.Delete(childPath(n.path, name)); err != nil {
		return errnoFor(err)
	}
	return 0
}

func (n *fuseNode) Read(ctx context.Context, f fs.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	ff, ok := f.(*fuseFile)
	if !ok {
		return nil, syscall.EIO
	}
	return ff.read(dest, off)
}

func (n *fuseNode) Write(ctx context.Context, f fs.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	ff, ok := f.(*fuseFile)
	if !ok {
		return 0, syscall.EIO
	}
	return ff.write(data, off)
}

// fuseFile wraps a *File as a go-fuse file handle, translating go-fuse's
// explicit-offset Read/Write into the handle's own Seek+Read/Write pair.
type fuseFile struct {
	f *File
}

func (ff *fuseFile) read(dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	if _, err := ff.f.Seek(off, SeekStart); err != nil {
		return nil, errnoFor(err)
	}
	n, err := ff.f.Read(dest)
	if err != nil && err != io.EOF {
		return nil, errnoFor(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (ff *fuseFile) write(data []byte, off int64) (uint32, syscall.Errno) {
	if _, err := ff.f.Seek(off, SeekStart); err != nil {
		return 0, errnoFor(err)
	}
	n, err := ff.f.Write(data)
	if err != nil {
		return uint32(n), errnoFor(err)
	}
	return uint32(n), 0
}
