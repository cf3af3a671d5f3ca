package gosfs

import (
	"sync"

	"github.com/google/uuid"
)

// Mount is a live, opened GOSFS volume: a superblock, a pinned buffer
// cache over a block device, and the single mutex serializing every
// externally visible operation (spec.md §4.I, §5: "one mutex guards the
// entire mount; every externally-visible operation acquires it for its
// full duration"). Adapted from the teacher's top-level Superblock, which
// held an *os.File reader directly; GOSFS instead holds a BlockDevice
// behind a BufferCache so multi-block operations (directory growth,
// indirect-pointer chains) see one consistent, pinned view of in-flight
// writes.
type Mount struct {
	dev   BlockDevice
	cache *BufferCache
	sb    *Superblock
	log   logger
	id    uuid.UUID

	mu sync.Mutex
}

// ID returns the mount's instance identifier, used to tag its log lines
// (SPEC_FULL.md component K).
func (m *Mount) ID() uuid.UUID { return m.id }

// Format initializes a fresh volume of totalBlocks blocks on dev: it lays
// out the superblock, zeroes and marks the metadata regions' bitmap bits,
// and creates the root directory inode (spec.md §4.A, §4.C: "format
// reserves inode 0 for the root directory").
func Format(dev BlockDevice, totalBlocks uint64, opts ...MountOption) (*Mount, error) {
	cfg := resolveMountConfig(opts)
	log := newLogrusLogger(cfg.logger, cfg.id)
	cache := NewBufferCache(dev, log)
	log.Debugf("gosfs: format %d blocks", totalBlocks)

	sb := layoutFor(totalBlocks)
	m := &Mount{dev: dev, cache: cache, sb: &sb, log: log, id: cfg.id}

	sbBlock, err := cache.GetZeroed(0)
	if err != nil {
		log.Errorf("gosfs: format: %v", err)
		return nil, err
	}
	sb.marshalBinary(sbBlock.Bytes())
	sbBlock.MarkDirty()
	sbBlock.Release()

	for n := sb.BitmapStart; n < sb.InodeTableStart; n++ {
		b, err := cache.GetZeroed(n)
		if err != nil {
			log.Errorf("gosfs: format: %v", err)
			return nil, err
		}
		b.Release()
	}
	for n := sb.InodeTableStart; n < sb.DataStart; n++ {
		b, err := cache.GetZeroed(n)
		if err != nil {
			log.Errorf("gosfs: format: %v", err)
			return nil, err
		}
		b.Release()
	}

	for n := uint64(0); n < sb.DataStart; n++ {
		if err := m.bitmapSet(n, true); err != nil {
			log.Errorf("gosfs: format: %v", err)
			return nil, err
		}
	}

	rootIdx, err := m.createDirectoryInode()
	if err != nil {
		log.Errorf("gosfs: format: %v", err)
		return nil, err
	}
	if rootIdx != RootIno {
		m.log.Errorf("gosfs: root directory did not land on inode 0 (got %d)", rootIdx)
		return nil, ErrInvalidFS
	}

	if err := cache.Flush(); err != nil {
		log.Errorf("gosfs: format: %v", err)
		return nil, err
	}
	log.Debugf("gosfs: format %d blocks -> bitmap=%d inodeTable=%d data=%d done",
		totalBlocks, sb.BitmapStart, sb.InodeTableStart, sb.DataStart)
	return m, nil
}

// MountDevice opens an existing GOSFS volume on dev, validating its
// superblock magic (spec.md §4.I: "verify magic (fail INVALID_FS)").
func MountDevice(dev BlockDevice, opts ...MountOption) (*Mount, error) {
	cfg := resolveMountConfig(opts)
	log := newLogrusLogger(cfg.logger, cfg.id)
	cache := NewBufferCache(dev, log)
	log.Debugf("gosfs: mount")

	b, err := cache.Get(0)
	if err != nil {
		log.Errorf("gosfs: mount: %v", err)
		return nil, err
	}
	var sb Superblock
	err = sb.unmarshalBinary(b.Bytes())
	b.Release()
	if err != nil {
		log.Errorf("gosfs: mount: %v", err)
		return nil, err
	}

	log.Debugf("gosfs: mount -> %d blocks done", sb.TotalBlocks)
	return &Mount{dev: dev, cache: cache, sb: &sb, log: log, id: cfg.id}, nil
}

// Sync flushes the buffer cache to the device (spec.md §4.I "sync").
func (m *Mount) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.Debugf("gosfs: sync")
	if err := m.cache.Flush(); err != nil {
		m.logOpError("sync", "", err)
		return err
	}
	m.log.Debugf("gosfs: sync done")
	return nil
}

// Close flushes and releases the underlying device.
func (m *Mount) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.Debugf("gosfs: close")
	if err := m.cache.Flush(); err != nil {
		m.logOpError("close", "", err)
		return err
	}
	if err := m.dev.Close(); err != nil {
		m.logOpError("close", "", err)
		return err
	}
	m.log.Debugf("gosfs: close done")
	return nil
}

// createDirectoryInode allocates a fresh inode marked as a directory and
// writes its EntryThis self-reference as the first record of its first
// data block (spec.md §4.C, §4.E). Used both by Format for the root
// directory and by Mkdir for every other directory.
func (m *Mount) createDirectoryInode() (InodeNum, error) {
	idx, err := m.findFreeInode()
	if err != nil {
		return 0, err
	}
	if err := m.initInode(idx, true); err != nil {
		return 0, err
	}

	self := dirEntry{Type: EntryThis, Inode: idx}
	self.setName(".")
	if err := m.writeDirSlot(idx, 0, 0, self); err != nil {
		return 0, err
	}

	ino, err := m.readInode(idx)
	if err != nil {
		return 0, err
	}
	// Size counts live directory entries, not bytes (spec.md §8); the THIS
	// self-reference just written is the directory's first entry.
	ino.Size = 1
	if err := m.writeInode(idx, ino); err != nil {
		return 0, err
	}
	return idx, nil
}

// FileInfo is the public, read-only metadata view returned by Stat.
type FileInfo struct {
	Inode InodeNum
	Size  uint64
	IsDir bool
	Flags InodeFlag
	ACL   [MaxACLEntries]ACLEntry
}

// Stat resolves path and returns its metadata (spec.md §4.F, §4.H).
func (m *Mount) Stat(path string) (FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.Debugf("gosfs: stat %s", path)

	idx, err := m.resolve(path)
	if err != nil {
		m.logOpError("stat", path, err)
		return FileInfo{}, err
	}
	ino, err := m.readInode(idx)
	if err != nil {
		m.logOpError("stat", path, err)
		return FileInfo{}, err
	}
	info := FileInfo{Inode: idx, Size: ino.Size, IsDir: ino.IsDir(), Flags: ino.Flags, ACL: ino.ACL}
	m.log.Debugf("gosfs: stat %s done", path)
	return info, nil
}

// logOpError logs op's failure at Error level, except ErrNotFound which is
// routine enough (a missing path is not a fault) to stay at Debug
// (SPEC_FULL.md component K).
func (m *Mount) logOpError(op, subject string, err error) {
	format := "gosfs: %s: %v"
	args := []any{op, err}
	if subject != "" {
		format = "gosfs: %s %s: %v"
		args = []any{op, subject, err}
	}
	if err == ErrNotFound {
		m.log.Debugf(format, args...)
		return
	}
	m.log.Errorf(format, args...)
}

// Mkdir creates an empty directory at path (spec.md §4.E, §4.H). Fails
// with ErrExist if the name is already taken in the parent, or
// ErrNotFound/ErrNotDirectory if the parent does not resolve to a
// directory.
func (m *Mount) Mkdir(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.Debugf("gosfs: mkdir %s", path)

	parentIno, name, err := m.resolveParent(path)
	if err != nil {
		m.logOpError("mkdir", path, err)
		return err
	}
	if _, err := m.findEntry(parentIno, name); err == nil {
		m.logOpError("mkdir", path, ErrExist)
		return ErrExist
	} else if err != ErrNotFound {
		m.logOpError("mkdir", path, err)
		return err
	}

	childIdx, err := m.createDirectoryInode()
	if err != nil {
		m.logOpError("mkdir", path, err)
		return err
	}
	if err := m.insertEntry(parentIno, name, childIdx); err != nil {
		m.logOpError("mkdir", path, err)
		return err
	}
	m.log.Debugf("gosfs: mkdir %s -> %s done", path, childIdx)
	return nil
}

// Create makes an empty regular file at path and returns its inode number
// (spec.md §4.G). Fails with ErrExist if the name is already taken.
func (m *Mount) Create(path string) (InodeNum, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.Debugf("gosfs: create %s", path)
	idx, err := m.createLocked(path)
	if err != nil {
		m.logOpError("create", path, err)
		return 0, err
	}
	m.log.Debugf("gosfs: create %s -> %s done", path, idx)
	return idx, nil
}

func (m *Mount) createLocked(path string) (InodeNum, error) {
	parentIno, name, err := m.resolveParent(path)
	if err != nil {
		return 0, err
	}
	if _, err := m.findEntry(parentIno, name); err == nil {
		return 0, ErrExist
	} else if err != ErrNotFound {
		return 0, err
	}

	idx, err := m.findFreeInode()
	if err != nil {
		return 0, err
	}
	if err := m.initInode(idx, false); err != nil {
		return 0, err
	}
	if err := m.insertEntry(parentIno, name, idx); err != nil {
		return 0, err
	}
	return idx, nil
}

// Delete removes the file or empty directory named by path (spec.md §4.E,
// §4.H). Fails with ErrNotEmpty if path names a non-empty directory.
func (m *Mount) Delete(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.Debugf("gosfs: delete %s", path)

	parentIno, name, err := m.resolveParent(path)
	if err != nil {
		m.logOpError("delete", path, err)
		return err
	}
	childIdx, err := m.findEntry(parentIno, name)
	if err != nil {
		m.logOpError("delete", path, err)
		return err
	}
	ino, err := m.readInode(childIdx)
	if err != nil {
		m.logOpError("delete", path, err)
		return err
	}
	if ino.IsDir() {
		empty, err := m.isEmptyDir(childIdx)
		if err != nil {
			m.logOpError("delete", path, err)
			return err
		}
		if !empty {
			m.logOpError("delete", path, ErrNotEmpty)
			return ErrNotEmpty
		}
	}

	if err := m.freeInodeStorage(ino); err != nil {
		m.logOpError("delete", path, err)
		return err
	}
	if err := m.destroyInode(childIdx); err != nil {
		m.logOpError("delete", path, err)
		return err
	}
	if err := m.removeEntry(parentIno, name); err != nil {
		m.logOpError("delete", path, err)
		return err
	}
	m.log.Debugf("gosfs: delete %s (was %s) done", path, childIdx)
	return nil
}

// DirHandle is a snapshot of a directory's entries taken at OpenDir time
// (spec.md §4.H: "ReadEntry walks a snapshot taken at OpenDir time, so
// concurrent modifications never corrupt an in-progress scan").
type DirHandle struct {
	entries []DirEntry
	pos     int
	log     logger
}

// OpenDir snapshots the entries of the directory at path.
func (m *Mount) OpenDir(path string) (*DirHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.Debugf("gosfs: opendir %s", path)

	idx, err := m.resolve(path)
	if err != nil {
		m.logOpError("opendir", path, err)
		return nil, err
	}
	ino, err := m.readInode(idx)
	if err != nil {
		m.logOpError("opendir", path, err)
		return nil, err
	}
	if !ino.IsDir() {
		m.logOpError("opendir", path, ErrNotDirectory)
		return nil, ErrNotDirectory
	}
	entries, err := m.listEntries(idx)
	if err != nil {
		m.logOpError("opendir", path, err)
		return nil, err
	}
	m.log.Debugf("gosfs: opendir %s -> %d entries done", path, len(entries))
	return &DirHandle{entries: entries, log: m.log}, nil
}

// ReadEntry returns the next snapshotted entry, or ErrNoMoreEntries once
// exhausted.
func (h *DirHandle) ReadEntry() (DirEntry, error) {
	if h.pos >= len(h.entries) {
		if h.log != nil {
			h.log.Debugf("gosfs: readentry: %v", ErrNoMoreEntries)
		}
		return DirEntry{}, ErrNoMoreEntries
	}
	e := h.entries[h.pos]
	h.pos++
	if h.log != nil {
		h.log.Debugf("gosfs: readentry -> %s done", e.Name)
	}
	return e, nil
}
