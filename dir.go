package gosfs

import (
	"encoding/binary"
)

// Directory contents: a sequence of fixed-size entry records packed into
// the directory inode's data blocks, scanned linearly (spec.md §4.E).
// Adapted from the teacher's dirReader (dir.go in the original), which
// streamed variable-length SquashFS directory records through a
// table-reader; GOSFS directories have no compression or table
// indirection, so the reader collapses to direct fixed-record access
// through the buffer cache.

// dirEntry is one directory-entry record: name[128] | type int64 | inode int64.
type dirEntry struct {
	Name  [MaxNameLen + 1]byte
	Type  EntryType
	Inode InodeNum
}

func (e *dirEntry) nameString() string {
	n := 0
	for n < len(e.Name) && e.Name[n] != 0 {
		n++
	}
	return string(e.Name[:n])
}

func (e *dirEntry) setName(name string) {
	e.Name = [MaxNameLen + 1]byte{}
	copy(e.Name[:], name)
}

func (e *dirEntry) marshalBinary(buf []byte) {
	order := binary.LittleEndian
	copy(buf[0:MaxNameLen+1], e.Name[:])
	order.PutUint64(buf[MaxNameLen+1:MaxNameLen+9], uint64(e.Type))
	order.PutUint64(buf[MaxNameLen+9:MaxNameLen+17], uint64(e.Inode))
}

func (e *dirEntry) unmarshalBinary(buf []byte) {
	order := binary.LittleEndian
	copy(e.Name[:], buf[0:MaxNameLen+1])
	e.Type = EntryType(order.Uint64(buf[MaxNameLen+1 : MaxNameLen+9]))
	e.Inode = InodeNum(order.Uint64(buf[MaxNameLen+9 : MaxNameLen+17]))
}

// dirSlot identifies one entry record's position: logical block L, record
// index within that block.
type dirSlot struct {
	L   int64
	idx int
}

// writeDirSlot writes entry e at logical block L, record idx of directory
// inode dirIno, allocating the block if necessary.
func (m *Mount) writeDirSlot(dirIno InodeNum, L int64, idx int, e dirEntry) error {
	loc, err := m.locate(dirIno, L, true)
	if err != nil {
		return err
	}
	b, err := m.cache.Get(loc.block)
	if err != nil {
		return err
	}
	defer b.Release()

	off := idx * dirEntrySize
	e.marshalBinary(b.Bytes()[off : off+dirEntrySize])
	b.MarkDirty()
	return nil
}

// dirBlockCount returns the number of data blocks allocated to directory
// inode dirIno. A directory's blocks are always allocated contiguously by
// insertEntry (never freed individually — spec.md §9, resolved: "directory
// data blocks are never freed when emptied"), so the first absent logical
// block marks the end of the allocated region.
func (m *Mount) dirBlockCount(dirIno InodeNum) (int64, error) {
	var L int64
	for {
		loc, err := m.locate(dirIno, L, false)
		if err != nil {
			return 0, err
		}
		if loc.absent {
			return L, nil
		}
		L++
	}
}

// forEachDirSlot visits every slot of dirIno's allocated blocks, in order,
// until visit returns stop=true or every slot has been visited.
func (m *Mount) forEachDirSlot(dirIno InodeNum, visit func(L int64, idx int, e dirEntry) (stop bool, err error)) error {
	numBlocks, err := m.dirBlockCount(dirIno)
	if err != nil {
		return err
	}

	for L := int64(0); L < numBlocks; L++ {
		loc, err := m.locate(dirIno, L, false)
		if err != nil {
			return err
		}
		if loc.absent {
			continue
		}
		b, err := m.cache.Get(loc.block)
		if err != nil {
			return err
		}
		for idx := 0; idx < entriesPerBlock; idx++ {
			var e dirEntry
			off := idx * dirEntrySize
			e.unmarshalBinary(b.Bytes()[off : off+dirEntrySize])
			stop, err := visit(L, idx, e)
			if err != nil {
				b.Release()
				return err
			}
			if stop {
				b.Release()
				return nil
			}
		}
		b.Release()
	}
	return nil
}

// findEntry scans dirIno for an entry named name, returning its inode
// number. Returns ErrNotFound if absent.
func (m *Mount) findEntry(dirIno InodeNum, name string) (InodeNum, error) {
	var found InodeNum
	var ok bool
	err := m.forEachDirSlot(dirIno, func(L int64, idx int, e dirEntry) (bool, error) {
		if e.Type == EntryRegular && e.nameString() == name {
			found, ok = e.Inode, true
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, ErrNotFound
	}
	return found, nil
}

// insertEntry adds a (name, childIno) entry to dirIno, growing the
// directory by one block if no free slot exists (spec.md §4.E: "reuse a
// FREE slot if one exists, otherwise append, growing the directory by one
// block if necessary"). Fails with ErrExist if name is already present.
// Names longer than MaxNameLen are silently truncated to fit, matching
// the documented behavior in spec.md §8 ("the source truncates").
// The inode's Size field counts live (non-FREE) entries, not bytes
// (spec.md §8: "d.size == count({entries in d's blocks with type !=
// FREE})").
func (m *Mount) insertEntry(dirIno InodeNum, name string, childIno InodeNum) error {
	if len(name) > MaxNameLen {
		name = name[:MaxNameLen]
	}

	numBlocks, err := m.dirBlockCount(dirIno)
	if err != nil {
		return err
	}

	var freeSlot *dirSlot
	err = m.forEachDirSlot(dirIno, func(L int64, idx int, e dirEntry) (bool, error) {
		if e.Type == EntryRegular && e.nameString() == name {
			return true, ErrExist
		}
		if e.Type == EntryFree && freeSlot == nil {
			s := dirSlot{L: L, idx: idx}
			freeSlot = &s
		}
		return false, nil
	})
	if err != nil {
		return err
	}

	var e dirEntry
	e.setName(name)
	e.Type = EntryRegular
	e.Inode = childIno

	if freeSlot != nil {
		if err := m.writeDirSlot(dirIno, freeSlot.L, freeSlot.idx, e); err != nil {
			return err
		}
	} else {
		// Append: the allocator hands back a fresh zeroed block, so every
		// other slot in it already decodes as FREE. Directories use only
		// their NDirect direct pointers — no indirection — so growth past
		// that many blocks fails with ErrNoSpace rather than falling
		// through to the generic indirect indexer (spec.md §4.F).
		if numBlocks >= int64(NDirect) {
			return ErrNoSpace
		}
		if err := m.writeDirSlot(dirIno, numBlocks, 0, e); err != nil {
			return err
		}
	}

	ino, err := m.readInode(dirIno)
	if err != nil {
		return err
	}
	ino.Size++
	return m.writeInode(dirIno, ino)
}

// removeEntry clears the slot named name in dirIno, marking it FREE
// (spec.md §4.E: "RemoveEntry clears a slot (marks FREE); it never
// compacts or frees the directory's data blocks", the resolved Open
// Question in SPEC_FULL.md).
func (m *Mount) removeEntry(dirIno InodeNum, name string) error {
	var target *dirSlot
	err := m.forEachDirSlot(dirIno, func(L int64, idx int, e dirEntry) (bool, error) {
		if e.Type == EntryRegular && e.nameString() == name {
			s := dirSlot{L: L, idx: idx}
			target = &s
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return err
	}
	if target == nil {
		return ErrNotFound
	}
	if err := m.writeDirSlot(dirIno, target.L, target.idx, dirEntry{Type: EntryFree}); err != nil {
		return err
	}

	ino, err := m.readInode(dirIno)
	if err != nil {
		return err
	}
	ino.Size--
	return m.writeInode(dirIno, ino)
}

// isEmptyDir reports whether dirIno has no REGULAR entries besides its
// own EntryThis self-reference.
func (m *Mount) isEmptyDir(dirIno InodeNum) (bool, error) {
	empty := true
	err := m.forEachDirSlot(dirIno, func(L int64, idx int, e dirEntry) (bool, error) {
		if e.Type == EntryRegular {
			empty = false
			return true, nil
		}
		return false, nil
	})
	if err != nil {
		return false, err
	}
	return empty, nil
}

// DirEntry is the public, read-only view of one directory entry returned
// by Mount.ReadEntry.
type DirEntry struct {
	Name  string
	Inode InodeNum
}

// listEntries returns every non-FREE entry in dirIno (THIS and REGULAR
// alike), in on-disk order (spec.md §4.H: "opendir snapshots all non-FREE
// entries"; the round-trip law in spec.md §8 requires a freshly made
// directory's opendir to surface its THIS entry).
func (m *Mount) listEntries(dirIno InodeNum) ([]DirEntry, error) {
	var out []DirEntry
	err := m.forEachDirSlot(dirIno, func(L int64, idx int, e dirEntry) (bool, error) {
		if e.Type != EntryFree {
			out = append(out, DirEntry{Name: e.nameString(), Inode: e.Inode})
		}
		return false, nil
	})
	return out, err
}
