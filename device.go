package gosfs

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// BlockDevice is the external collaborator exposing raw sector I/O
// (spec.md §1: "out of scope... described only by the interfaces the core
// uses"). GOSFS's engine never addresses a device directly; it always goes
// through a BufferCache (cache.go), which in turn calls ReadSector/WriteSector
// at block granularity (SectorsPerBlock sectors at a time).
type BlockDevice interface {
	// ReadSector reads exactly one SectorSize-byte sector into buf.
	ReadSector(n uint64, buf []byte) error
	// WriteSector writes exactly one SectorSize-byte sector from buf.
	WriteSector(n uint64, buf []byte) error
	// NumSectors returns the device's fixed sector count.
	NumSectors() uint64
	// Sync flushes any device-level write buffering. The file-system's own
	// buffer cache is flushed separately (cache.Flush); this only concerns
	// whatever durability the device itself provides.
	Sync() error
	// Close releases any resources (file descriptors, locks) held by the
	// device.
	Close() error
}

// FileDevice is a BlockDevice backed by a regular file or block device node,
// using golang.org/x/sys/unix for positioned I/O and an advisory exclusive
// lock so a second accidental mount of the same image is caught early
// rather than silently corrupting it (spec.md §4.J).
type FileDevice struct {
	f        *os.File
	sectors  uint64
	mu       sync.Mutex
	unlocked bool
}

// OpenFileDevice opens path for read-write sector access. If create is
// true and the file does not exist, it is created and sized to hold
// sectors sectors.
func OpenFileDevice(path string, sectors uint64, create bool) (*FileDevice, error) {
	flags := os.O_RDWR
	if create {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("gosfs: open device %s: %w", path, err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, fmt.Errorf("gosfs: lock device %s: %w", path, err)
	}

	if create {
		if err := f.Truncate(int64(sectors) * SectorSize); err != nil {
			f.Close()
			return nil, fmt.Errorf("gosfs: size device %s: %w", path, err)
		}
	} else {
		st, err := f.Stat()
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("gosfs: stat device %s: %w", path, err)
		}
		sectors = uint64(st.Size()) / SectorSize
	}

	return &FileDevice{f: f, sectors: sectors}, nil
}

func (d *FileDevice) ReadSector(n uint64, buf []byte) error {
	if len(buf) != SectorSize {
		return fmt.Errorf("gosfs: ReadSector buffer must be %d bytes, got %d", SectorSize, len(buf))
	}
	if n >= d.sectors {
		return fmt.Errorf("gosfs: sector %d out of range (%d sectors)", n, d.sectors)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := unix.Pread(int(d.f.Fd()), buf, int64(n)*SectorSize)
	return err
}

func (d *FileDevice) WriteSector(n uint64, buf []byte) error {
	if len(buf) != SectorSize {
		return fmt.Errorf("gosfs: WriteSector buffer must be %d bytes, got %d", SectorSize, len(buf))
	}
	if n >= d.sectors {
		return fmt.Errorf("gosfs: sector %d out of range (%d sectors)", n, d.sectors)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := unix.Pwrite(int(d.f.Fd()), buf, int64(n)*SectorSize)
	return err
}

func (d *FileDevice) NumSectors() uint64 { return d.sectors }

func (d *FileDevice) Sync() error {
	return unix.Fsync(int(d.f.Fd()))
}

func (d *FileDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.unlocked {
		unix.Flock(int(d.f.Fd()), unix.LOCK_UN)
		d.unlocked = true
	}
	return d.f.Close()
}

// MemDevice is a BlockDevice backed by a fixed-size in-memory byte slice.
// It is used by tests and by embedders that want a RAM-backed volume
// without touching a real file.
type MemDevice struct {
	mu   sync.Mutex
	data []byte
}

// NewMemDevice allocates a zero-filled in-memory device of the given
// sector count.
func NewMemDevice(sectors uint64) *MemDevice {
	return &MemDevice{data: make([]byte, sectors*SectorSize)}
}

func (d *MemDevice) ReadSector(n uint64, buf []byte) error {
	if len(buf) != SectorSize {
		return fmt.Errorf("gosfs: ReadSector buffer must be %d bytes, got %d", SectorSize, len(buf))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	off := n * SectorSize
	if off+SectorSize > uint64(len(d.data)) {
		return fmt.Errorf("gosfs: sector %d out of range", n)
	}
	copy(buf, d.data[off:off+SectorSize])
	return nil
}

func (d *MemDevice) WriteSector(n uint64, buf []byte) error {
	if len(buf) != SectorSize {
		return fmt.Errorf("gosfs: WriteSector buffer must be %d bytes, got %d", SectorSize, len(buf))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	off := n * SectorSize
	if off+SectorSize > uint64(len(d.data)) {
		return fmt.Errorf("gosfs: sector %d out of range", n)
	}
	copy(d.data[off:off+SectorSize], buf)
	return nil
}

func (d *MemDevice) NumSectors() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return uint64(len(d.data)) / SectorSize
}

func (d *MemDevice) Sync() error { return nil }
func (d *MemDevice) Close() error { return nil }
