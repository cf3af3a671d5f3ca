package gosfs

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
)

// BufferCache is the external collaborator exposing pin/unpin access to
// fixed-size blocks with explicit dirty marking and a cache-wide flush
// (spec.md §1). Every Get must be paired with exactly one Release on every
// exit path, including errors — the scoped-acquisition contract of
// spec.md §5 and §9.
//
// Unlike the teacher's tableReader (tablereader.go), which re-reads and
// discards a block on every access, BufferCache pins blocks so concurrent
// operations under the mount's single mutex observe one consistent copy
// and so writes can be batched until Flush.
type BufferCache struct {
	dev BlockDevice
	log logger

	mu  sync.Mutex
	buf map[uint64]*Buffer
}

// NewBufferCache wraps dev with a pinned, dirty-tracking block cache.
func NewBufferCache(dev BlockDevice, log logger) *BufferCache {
	return &BufferCache{dev: dev, log: log, buf: make(map[uint64]*Buffer)}
}

// Buffer is a scoped, refcounted pin on one cached block. Its Bytes are
// valid only while the pin is held; callers that want to keep the bytes
// past Release must copy them.
type Buffer struct {
	c        *BufferCache
	block    uint64
	data     [BlockSize]byte
	dirty    bool
	refcount int
	released bool
}

// Bytes returns the block's contents. The slice aliases the buffer's
// internal storage and is invalid after Release.
func (b *Buffer) Bytes() []byte { return b.data[:] }

// MarkDirty flags the buffer for writeback on the next Flush.
func (b *Buffer) MarkDirty() {
	b.c.mu.Lock()
	defer b.c.mu.Unlock()
	b.dirty = true
}

// Release unpins the buffer. Releasing an already-released buffer panics:
// in the scoped-acquisition discipline this spec requires, a double
// release is always a programming error, not a runtime condition to
// tolerate silently.
func (b *Buffer) Release() {
	b.c.mu.Lock()
	defer b.c.mu.Unlock()
	if b.refcount <= 0 {
		panic("gosfs: buffer released twice")
	}
	b.refcount--
	if b.refcount == 0 {
		b.released = true
		if !b.dirty {
			delete(b.c.buf, b.block)
		}
	}
}

// Get pins the block numbered n, reading it from the device on first
// touch. Every call must be matched with exactly one Release.
func (c *BufferCache) Get(n uint64) (*Buffer, error) {
	c.mu.Lock()
	if b, ok := c.buf[n]; ok {
		b.refcount++
		b.released = false
		c.mu.Unlock()
		return b, nil
	}
	c.mu.Unlock()

	b := &Buffer{c: c, block: n, refcount: 1}
	if err := c.readBlock(n, b.data[:]); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if existing, ok := c.buf[n]; ok {
		// lost the race to another Get for the same block; fold into it
		existing.refcount++
		existing.released = false
		c.mu.Unlock()
		return existing, nil
	}
	c.buf[n] = b
	c.mu.Unlock()

	runtime.SetFinalizer(b, func(b *Buffer) {
		if !b.released {
			if c.log != nil {
				c.log.Warnf("gosfs: buffer for block %d was never released (leaked pin)", b.block)
			}
		}
	})
	return b, nil
}

// GetZeroed pins a block and overwrites its contents with zeros without
// reading the device first, used by the allocator when handing out a
// freshly allocated block (spec.md §4.B: "zero the block's contents via
// the cache so callers see a clean canvas").
func (c *BufferCache) GetZeroed(n uint64) (*Buffer, error) {
	c.mu.Lock()
	if b, ok := c.buf[n]; ok {
		b.refcount++
		b.released = false
		for i := range b.data {
			b.data[i] = 0
		}
		b.dirty = true
		c.mu.Unlock()
		return b, nil
	}
	c.mu.Unlock()

	b := &Buffer{c: c, block: n, refcount: 1, dirty: true}
	c.mu.Lock()
	c.buf[n] = b
	c.mu.Unlock()
	return b, nil
}

func (c *BufferCache) readBlock(n uint64, out []byte) error {
	base := n * SectorsPerBlock
	sec := make([]byte, SectorSize)
	for i := 0; i < SectorsPerBlock; i++ {
		if err := c.dev.ReadSector(base+uint64(i), sec); err != nil {
			return fmt.Errorf("gosfs: read block %d: %w", n, err)
		}
		copy(out[i*SectorSize:(i+1)*SectorSize], sec)
	}
	return nil
}

func (c *BufferCache) writeBlock(n uint64, data []byte) error {
	base := n * SectorsPerBlock
	for i := 0; i < SectorsPerBlock; i++ {
		if err := c.dev.WriteSector(base+uint64(i), data[i*SectorSize:(i+1)*SectorSize]); err != nil {
			return fmt.Errorf("gosfs: write block %d: %w", n, err)
		}
	}
	return nil
}

// Flush writes every dirty buffer back to the device in ascending
// block-number order and clears their dirty bits, then syncs the device
// itself (spec.md §4.I "sync": "flush the entire buffer cache back to the
// device").
func (c *BufferCache) Flush() error {
	c.mu.Lock()
	blocks := make([]uint64, 0, len(c.buf))
	for n, b := range c.buf {
		if b.dirty {
			blocks = append(blocks, n)
		}
	}
	c.mu.Unlock()

	sort.Slice(blocks, func(i, j int) bool { return blocks[i] < blocks[j] })

	for _, n := range blocks {
		c.mu.Lock()
		b, ok := c.buf[n]
		if !ok || !b.dirty {
			c.mu.Unlock()
			continue
		}
		data := b.data
		c.mu.Unlock()

		if err := c.writeBlock(n, data[:]); err != nil {
			return err
		}

		c.mu.Lock()
		if b, ok := c.buf[n]; ok {
			b.dirty = false
			if b.refcount == 0 {
				delete(c.buf, n)
			}
		}
		c.mu.Unlock()
	}

	return c.dev.Sync()
}

// logger is the minimal interface the cache and mount need from a logging
// backend (see log.go for the logrus-backed implementation).
type logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}
