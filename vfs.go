package gosfs

import "sync"

// VFS registration layer: the core hands the kernel-facing caller a table
// of operation callbacks keyed by a registered name, rather than exposing
// concrete types directly (spec.md §6, §9: "an implementer should express
// this as a capability set"). Adapted from the teacher's plain exported
// methods on *Superblock/*Inode/*File; GOSFS additionally assembles those
// methods into explicit MountOps/FileOps/DirOps tables so a caller that
// only knows the registered name "gosfs" can dispatch without importing
// the concrete types.

// MountOps is the capability set exposed by an open mount: {open, mkdir,
// opendir, stat, sync, delete} (spec.md §9).
type MountOps struct {
	Open    func(path string, flags OpenFlag) (*File, error)
	Create  func(path string) (InodeNum, error)
	Mkdir   func(path string) error
	OpenDir func(path string) (*DirHandle, error)
	Stat    func(path string) (FileInfo, error)
	Sync    func() error
	Delete  func(path string) error
}

// FileOps is the capability set exposed by an open file handle: {fstat,
// read, write, seek, close}; read_entry is always nil for files (spec.md
// §9: "Directories are a variant of files whose read/write slots are
// absent").
type FileOps struct {
	Fstat     func() (uint64, error)
	Read      func(p []byte) (int, error)
	Write     func(p []byte) (int, error)
	Seek      func(offset int64, whence int) (int64, error)
	Close     func() error
	ReadEntry func() (DirEntry, error)
}

// DirOps is the capability set exposed by an open directory snapshot
// handle: {close, read_entry}. It has no fstat, seek, read or write slots.
type DirOps struct {
	Close     func() error
	ReadEntry func() (DirEntry, error)
}

// OpsFor builds the MountOps table for m, bound to m's own methods.
func (m *Mount) OpsFor() MountOps {
	return MountOps{
		Open:    m.Open,
		Create:  m.Create,
		Mkdir:   m.Mkdir,
		OpenDir: m.OpenDir,
		Stat:    m.Stat,
		Sync:    m.Sync,
		Delete:  m.Delete,
	}
}

// OpsFor builds the FileOps table for an open file handle.
func (f *File) OpsFor() FileOps {
	return FileOps{
		Fstat: f.Size,
		Read:  f.Read,
		Write: f.Write,
		Seek:  f.Seek,
		Close: f.Close,
	}
}

// OpsFor builds the DirOps table for a directory snapshot handle.
func (h *DirHandle) OpsFor() DirOps {
	return DirOps{
		Close:     func() error { h.pos = len(h.entries); return nil },
		ReadEntry: h.ReadEntry,
	}
}

// registeredName is the name a VFS layer looks up to find this
// file-system's operation tables (spec.md §6: "Registered name at module
// init: 'gosfs'").
const registeredName = "gosfs"

// registry is the process-wide table of mounted volumes, keyed by an
// embedder-supplied mount-point tag — the
// closest in-process analogue to a kernel's file-system-type registry,
// since GOSFS has no file-system-wide singleton of its own (spec.md §9:
// "Global mutable state... there is no file-system-wide singleton").
var registry = struct {
	mu     sync.Mutex
	mounts map[string]*Mount
}{mounts: make(map[string]*Mount)}

// Register installs m's operation tables under mountPoint, so a caller
// that only knows the registered name and a mount-point tag can recover
// the table without holding a direct reference to m.
func Register(mountPoint string, m *Mount) {
	registry.mu.Lock()
	defer registry.mu.Unlock()
	registry.mounts[mountPoint] = m
}

// Lookup returns the MountOps table installed at mountPoint, and whether
// one was found.
func Lookup(mountPoint string) (MountOps, bool) {
	registry.mu.Lock()
	m, ok := registry.mounts[mountPoint]
	registry.mu.Unlock()
	if !ok {
		return MountOps{}, false
	}
	return m.OpsFor(), true
}

// Unregister removes mountPoint's operation table.
func Unregister(mountPoint string) {
	registry.mu.Lock()
	delete(registry.mounts, mountPoint)
	registry.mu.Unlock()
}

// Name returns the name this file system registers itself under.
func Name() string { return registeredName }
