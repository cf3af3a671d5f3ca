package gosfs

import "io"

// OpenFlag controls what operations a File handle permits (spec.md §4.G).
type OpenFlag uint8

const (
	// FlagRead permits Read.
	FlagRead OpenFlag = 1 << iota
	// FlagWrite permits Write and, per the resolved Open Question in
	// SPEC_FULL.md §4.G, Seek past the current end of file.
	FlagWrite
)

// File is an open handle onto a regular file's inode, analogous to the
// teacher's File (file.go in the original, which wrapped an io.SectionReader
// over an immutable SquashFS inode); GOSFS files are read-write, so the
// handle tracks its own cursor and talks to the indexer directly instead
// of through a fixed-size reader.
type File struct {
	m      *Mount
	ino    InodeNum
	flags  OpenFlag
	pos    int64
	closed bool
}

// Open opens the regular file at path. flags must include at least one of
// FlagRead or FlagWrite. Fails with ErrIsDirectory if path names a
// directory.
func (m *Mount) Open(path string, flags OpenFlag) (*File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.Debugf("gosfs: open %s", path)

	idx, err := m.resolve(path)
	if err != nil {
		m.logOpError("open", path, err)
		return nil, err
	}
	ino, err := m.readInode(idx)
	if err != nil {
		m.logOpError("open", path, err)
		return nil, err
	}
	if ino.IsDir() {
		m.logOpError("open", path, ErrIsDirectory)
		return nil, ErrIsDirectory
	}
	m.log.Debugf("gosfs: open %s -> %s done", path, idx)
	return &File{m: m, ino: idx, flags: flags}, nil
}

// OpenCreate opens the regular file at path for read-write access,
// creating it first if it does not already exist (spec.md §4.G).
func (m *Mount) OpenCreate(path string) (*File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.Debugf("gosfs: opencreate %s", path)

	idx, err := m.resolve(path)
	switch err {
	case nil:
		ino, err := m.readInode(idx)
		if err != nil {
			m.logOpError("opencreate", path, err)
			return nil, err
		}
		if ino.IsDir() {
			m.logOpError("opencreate", path, ErrIsDirectory)
			return nil, ErrIsDirectory
		}
	case ErrNotFound:
		idx, err = m.createLocked(path)
		if err != nil {
			m.logOpError("opencreate", path, err)
			return nil, err
		}
	default:
		m.logOpError("opencreate", path, err)
		return nil, err
	}
	m.log.Debugf("gosfs: opencreate %s -> %s done", path, idx)
	return &File{m: m, ino: idx, flags: FlagRead | FlagWrite}, nil
}

func (f *File) checkOpen() error {
	if f.closed {
		return ErrClosed
	}
	return nil
}

// Read reads into p starting at the handle's cursor, advancing it by the
// number of bytes read. Bytes falling in an unallocated hole read back as
// zero (spec.md §9, resolved: "hole reads return zero bytes, never an
// error"). Returns io.EOF once the cursor reaches the file's recorded
// size.
func (f *File) Read(p []byte) (int, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	f.m.log.Debugf("gosfs: read %s len=%d", f.ino, len(p))

	if err := f.checkOpen(); err != nil {
		f.m.logOpError("read", f.ino.String(), err)
		return 0, err
	}
	if f.flags&FlagRead == 0 {
		f.m.logOpError("read", f.ino.String(), ErrAccessDenied)
		return 0, ErrAccessDenied
	}

	ino, err := f.m.readInode(f.ino)
	if err != nil {
		f.m.logOpError("read", f.ino.String(), err)
		return 0, err
	}
	if uint64(f.pos) >= ino.Size {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) && uint64(f.pos) < ino.Size {
		L := f.pos / BlockSize
		off := int(f.pos % BlockSize)
		want := len(p) - n
		if room := BlockSize - off; want > room {
			want = room
		}
		if remain := int(ino.Size - uint64(f.pos)); want > remain {
			want = remain
		}

		loc, err := f.m.locate(f.ino, L, false)
		if err != nil {
			f.m.logOpError("read", f.ino.String(), err)
			return n, err
		}
		if loc.absent {
			for i := 0; i < want; i++ {
				p[n+i] = 0
			}
		} else {
			b, err := f.m.cache.Get(loc.block)
			if err != nil {
				f.m.logOpError("read", f.ino.String(), err)
				return n, err
			}
			copy(p[n:n+want], b.Bytes()[off:off+want])
			b.Release()
		}

		n += want
		f.pos += int64(want)
	}
	f.m.log.Debugf("gosfs: read %s -> %d bytes done", f.ino, n)
	return n, nil
}

// Write writes p at the handle's cursor, allocating blocks as needed and
// growing the inode's recorded size, then advances the cursor (spec.md
// §4.G, §4.D). Fails with ErrFileTooLarge if the write would cross the
// addressable block ceiling.
func (f *File) Write(p []byte) (int, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	f.m.log.Debugf("gosfs: write %s len=%d", f.ino, len(p))

	if err := f.checkOpen(); err != nil {
		f.m.logOpError("write", f.ino.String(), err)
		return 0, err
	}
	if f.flags&FlagWrite == 0 {
		f.m.logOpError("write", f.ino.String(), ErrAccessDenied)
		return 0, ErrAccessDenied
	}

	ino, err := f.m.readInode(f.ino)
	if err != nil {
		f.m.logOpError("write", f.ino.String(), err)
		return 0, err
	}

	n := 0
	for n < len(p) {
		L := f.pos / BlockSize
		off := int(f.pos % BlockSize)
		want := len(p) - n
		if room := BlockSize - off; want > room {
			want = room
		}

		loc, err := f.m.locate(f.ino, L, true)
		if err != nil {
			f.m.logOpError("write", f.ino.String(), err)
			return n, err
		}
		b, err := f.m.cache.Get(loc.block)
		if err != nil {
			f.m.logOpError("write", f.ino.String(), err)
			return n, err
		}
		copy(b.Bytes()[off:off+want], p[n:n+want])
		b.MarkDirty()
		b.Release()

		n += want
		f.pos += int64(want)
		if uint64(f.pos) > ino.Size {
			ino.Size = uint64(f.pos)
		}
	}

	if err := f.m.writeInode(f.ino, ino); err != nil {
		f.m.logOpError("write", f.ino.String(), err)
		return n, err
	}
	f.m.log.Debugf("gosfs: write %s -> %d bytes done", f.ino, n)
	return n, nil
}

// Whence values for Seek, mirroring io.Seeker's convention.
const (
	SeekStart   = io.SeekStart
	SeekCurrent = io.SeekCurrent
	SeekEnd     = io.SeekEnd
)

// Seek repositions the handle's cursor. Seeking past the current end of
// file is permitted on handles opened with FlagWrite (the next Write
// extends the file, leaving a hole) and rejected with ErrInvalidArgument
// on handles that lack it (spec.md §9, resolved Open Question).
func (f *File) Seek(offset int64, whence int) (int64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	f.m.log.Debugf("gosfs: seek %s offset=%d whence=%d", f.ino, offset, whence)

	if err := f.checkOpen(); err != nil {
		f.m.logOpError("seek", f.ino.String(), err)
		return 0, err
	}

	ino, err := f.m.readInode(f.ino)
	if err != nil {
		f.m.logOpError("seek", f.ino.String(), err)
		return 0, err
	}

	var newPos int64
	switch whence {
	case io.SeekStart:
		newPos = offset
	case io.SeekCurrent:
		newPos = f.pos + offset
	case io.SeekEnd:
		newPos = int64(ino.Size) + offset
	default:
		f.m.logOpError("seek", f.ino.String(), ErrInvalidArgument)
		return 0, ErrInvalidArgument
	}
	if newPos < 0 {
		f.m.logOpError("seek", f.ino.String(), ErrInvalidArgument)
		return 0, ErrInvalidArgument
	}
	if uint64(newPos) > ino.Size && f.flags&FlagWrite == 0 {
		f.m.logOpError("seek", f.ino.String(), ErrInvalidArgument)
		return 0, ErrInvalidArgument
	}

	f.pos = newPos
	f.m.log.Debugf("gosfs: seek %s -> %d done", f.ino, f.pos)
	return f.pos, nil
}

// Close invalidates the handle. Closing a handle twice is a no-op.
func (f *File) Close() error {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	f.m.log.Debugf("gosfs: close %s", f.ino)
	f.closed = true
	return nil
}

// Size returns the file's current recorded size.
func (f *File) Size() (uint64, error) {
	f.m.mu.Lock()
	defer f.m.mu.Unlock()
	ino, err := f.m.readInode(f.ino)
	if err != nil {
		return 0, err
	}
	return ino.Size, nil
}
