package gosfs

// Bitmap allocation: one bit per file-system block, packed into the
// consecutive bitmap blocks immediately following the superblock (spec.md
// §3, §4.B). Bit set = in use. The bitmap is the sole authority on whether
// a block is allocated; ties in allocate go to the lowest free index,
// biasing allocation toward the start of the device (spec.md §4.B).

// allocateBlock finds the first clear bit, sets it, zeroes the block's
// contents through the cache, and returns its block number. Fails with
// ErrNoSpace if every block is in use.
func (m *Mount) allocateBlock() (uint64, error) {
	total := m.sb.TotalBlocks
	for n := uint64(0); n < total; n++ {
		set, err := m.bitmapTest(n)
		if err != nil {
			return 0, err
		}
		if !set {
			if err := m.bitmapSet(n, true); err != nil {
				return 0, err
			}
			b, err := m.cache.GetZeroed(n)
			if err != nil {
				return 0, err
			}
			b.Release()
			return n, nil
		}
	}
	return 0, ErrNoSpace
}

// freeBlock clears bit n. The block's data is left untouched (spec.md
// §4.B: "the data itself is not overwritten").
func (m *Mount) freeBlock(n uint64) error {
	return m.bitmapSet(n, false)
}

// bitmapTest reports whether block n's bit is set.
func (m *Mount) bitmapTest(n uint64) (bool, error) {
	blockIdx, bitOff := bitmapLocation(n)
	b, err := m.cache.Get(m.sb.BitmapStart + blockIdx)
	if err != nil {
		return false, err
	}
	defer b.Release()
	byteOff := bitOff / 8
	bit := uint(bitOff % 8)
	return b.Bytes()[byteOff]&(1<<bit) != 0, nil
}

// bitmapSet sets or clears block n's bit.
func (m *Mount) bitmapSet(n uint64, v bool) error {
	blockIdx, bitOff := bitmapLocation(n)
	b, err := m.cache.Get(m.sb.BitmapStart + blockIdx)
	if err != nil {
		return err
	}
	defer b.Release()

	byteOff := bitOff / 8
	bit := uint(bitOff % 8)
	if v {
		b.Bytes()[byteOff] |= 1 << bit
	} else {
		b.Bytes()[byteOff] &^= 1 << bit
	}
	b.MarkDirty()
	return nil
}

// bitmapLocation returns the bitmap-region-relative block index and bit
// offset for file-system block n.
func bitmapLocation(n uint64) (blockIdx, bitOff uint64) {
	const bitsPerBlock = BlockSize * 8
	return n / bitsPerBlock, n % bitsPerBlock
}

// bitmapBlocks returns ceil(totalBlocks / bitsPerBlock), the number of
// blocks needed to hold one bit per block (spec.md §4.A).
func bitmapBlocks(totalBlocks uint64) uint64 {
	const bitsPerBlock = BlockSize * 8
	return (totalBlocks + bitsPerBlock - 1) / bitsPerBlock
}

// freeBlockCount scans the bitmap and returns how many blocks are
// currently clear. Used by tests asserting the round-trip law in spec.md
// §8 ("the number of free bitmap bits is the same as before create").
func (m *Mount) freeBlockCount() (uint64, error) {
	var free uint64
	for n := uint64(0); n < m.sb.TotalBlocks; n++ {
		set, err := m.bitmapTest(n)
		if err != nil {
			return 0, err
		}
		if !set {
			free++
		}
	}
	return free, nil
}
