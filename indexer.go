package gosfs

// Block indexer: maps (inode, logical block index) to a physical block
// number, materializing indirection blocks on demand (spec.md §4.D — "the
// hardest sub-component"). Adapted from the teacher's Inode.ReadAt
// (inode.go in the original), which walked a flat per-file block list;
// here the same "which block, what offset" arithmetic is generalized to
// GOSFS's three-region direct/single-indirect/double-indirect pointer
// scheme.

// locateResult distinguishes "no block materialized yet" from an actual
// physical block number, so callers (file.go) can tell a hole from data.
type locateResult struct {
	block  uint64
	absent bool
}

// locate resolves logical block index L of the inode at idx to a physical
// block number. If allocateIfMissing is false and the chain (or the leaf)
// is not yet materialized, it returns a locateResult with absent=true
// rather than an error — callers use this to skip holes on read (spec.md
// §4.D: "distinct from failure"). L beyond the addressable ceiling always
// fails with ErrFileTooLarge, regardless of allocateIfMissing.
func (m *Mount) locate(idx InodeNum, L int64, allocateIfMissing bool) (locateResult, error) {
	if L < 0 {
		return locateResult{}, ErrInvalidArgument
	}
	if L >= inodeCapacity() {
		return locateResult{}, ErrFileTooLarge
	}

	ino, err := m.readInode(idx)
	if err != nil {
		return locateResult{}, err
	}

	const (
		d  = int64(NDirect)
		p  = int64(PointersPerBlock)
		i1 = int64(NIndirect) * int64(PointersPerBlock)
	)

	switch {
	case L < d:
		// Direct region: the pointer lives in the inode itself.
		return m.resolveSlot(idx, ino, int(L), allocateIfMissing)

	case L < d+i1:
		r := L - d
		slot := int(d + r/p)
		offset := int(r % p)
		return m.resolveIndirect(idx, ino, slot, offset, allocateIfMissing)

	default:
		r := L - d - i1
		slot := int(d + int64(NIndirect) + r/(p*p))
		midOffset := int((r / p) % p)
		leafOffset := int(r % p)
		return m.resolveDoubleIndirect(idx, ino, slot, midOffset, leafOffset, allocateIfMissing)
	}
}

// resolveSlot materializes (if requested) and returns the block pointed to
// directly by inode slot `slot`.
func (m *Mount) resolveSlot(idx InodeNum, ino *Inode, slot int, allocateIfMissing bool) (locateResult, error) {
	ptr := ino.BlockList[slot]
	if ptr != 0 {
		return locateResult{block: uint64(ptr)}, nil
	}
	if !allocateIfMissing {
		return locateResult{absent: true}, nil
	}

	newBlock, err := m.allocateBlock()
	if err != nil {
		return locateResult{}, err
	}
	ino.BlockList[slot] = uint32(newBlock)
	if err := m.writeInode(idx, ino); err != nil {
		return locateResult{}, err
	}
	return locateResult{block: newBlock}, nil
}

// resolveIndirect walks one level of indirection: the inode slot names a
// block full of pointers; offset selects the leaf pointer within it.
func (m *Mount) resolveIndirect(idx InodeNum, ino *Inode, slot, offset int, allocateIfMissing bool) (locateResult, error) {
	indBlock, err := m.materializeSlot(idx, ino, slot, allocateIfMissing)
	if err != nil || indBlock == 0 {
		return locateResult{absent: true}, err
	}

	leaf, err := m.readPointer(indBlock, offset)
	if err != nil {
		return locateResult{}, err
	}
	if leaf != 0 {
		return locateResult{block: uint64(leaf)}, nil
	}
	if !allocateIfMissing {
		return locateResult{absent: true}, nil
	}

	newBlock, err := m.allocateBlock()
	if err != nil {
		return locateResult{}, err
	}
	if err := m.writePointer(indBlock, offset, uint32(newBlock)); err != nil {
		return locateResult{}, err
	}
	return locateResult{block: newBlock}, nil
}

// resolveDoubleIndirect walks two levels of indirection: the inode slot
// names a block of pointers to pointer-blocks; midOffset selects the
// middle (pointer-block) pointer, leafOffset the final data pointer.
func (m *Mount) resolveDoubleIndirect(idx InodeNum, ino *Inode, slot, midOffset, leafOffset int, allocateIfMissing bool) (locateResult, error) {
	topBlock, err := m.materializeSlot(idx, ino, slot, allocateIfMissing)
	if err != nil || topBlock == 0 {
		return locateResult{absent: true}, err
	}

	midPtr, err := m.readPointer(topBlock, midOffset)
	if err != nil {
		return locateResult{}, err
	}
	if midPtr == 0 {
		if !allocateIfMissing {
			return locateResult{absent: true}, nil
		}
		newMid, err := m.allocateBlock()
		if err != nil {
			return locateResult{}, err
		}
		if err := m.writePointer(topBlock, midOffset, uint32(newMid)); err != nil {
			return locateResult{}, err
		}
		midPtr = uint32(newMid)
	}

	leaf, err := m.readPointer(uint64(midPtr), leafOffset)
	if err != nil {
		return locateResult{}, err
	}
	if leaf != 0 {
		return locateResult{block: uint64(leaf)}, nil
	}
	if !allocateIfMissing {
		return locateResult{absent: true}, nil
	}

	newBlock, err := m.allocateBlock()
	if err != nil {
		return locateResult{}, err
	}
	if err := m.writePointer(uint64(midPtr), leafOffset, uint32(newBlock)); err != nil {
		return locateResult{}, err
	}
	return locateResult{block: newBlock}, nil
}

// materializeSlot returns the block number named by inode slot `slot`,
// allocating a fresh zeroed indirection block and storing its number in
// the inode if the slot is empty and allocateIfMissing is set. A non-zero
// pointer in an inode or indirection block always names an allocated,
// zeroed-at-birth block — spec.md §4.D's consistency rule.
func (m *Mount) materializeSlot(idx InodeNum, ino *Inode, slot int, allocateIfMissing bool) (uint64, error) {
	ptr := ino.BlockList[slot]
	if ptr != 0 {
		return uint64(ptr), nil
	}
	if !allocateIfMissing {
		return 0, nil
	}
	newBlock, err := m.allocateBlock()
	if err != nil {
		return 0, err
	}
	ino.BlockList[slot] = uint32(newBlock)
	if err := m.writeInode(idx, ino); err != nil {
		return 0, err
	}
	return newBlock, nil
}

// readPointer reads the pointer at index i within indirection block n.
func (m *Mount) readPointer(n uint64, i int) (uint32, error) {
	b, err := m.cache.Get(n)
	if err != nil {
		return 0, err
	}
	defer b.Release()
	return le32(b.Bytes()[i*PointerSize : i*PointerSize+PointerSize]), nil
}

// writePointer writes pointer v at index i within indirection block n.
func (m *Mount) writePointer(n uint64, i int, v uint32) error {
	b, err := m.cache.Get(n)
	if err != nil {
		return err
	}
	defer b.Release()
	putLE32(b.Bytes()[i*PointerSize:i*PointerSize+PointerSize], v)
	b.MarkDirty()
	return nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// freeInodeStorage walks all three regions and frees every reachable
// block: leaves first, then the indirection blocks that held them, in
// that order (spec.md §4.D: "for every non-zero leaf, free the leaf
// block; for every non-zero indirection block, free it after its
// children").
func (m *Mount) freeInodeStorage(ino *Inode) error {
	// Direct region.
	for i := 0; i < NDirect; i++ {
		if ino.BlockList[i] != 0 {
			if err := m.freeBlock(uint64(ino.BlockList[i])); err != nil {
				return err
			}
		}
	}

	// Single-indirect region.
	for i := NDirect; i < NDirect+NIndirect; i++ {
		ind := ino.BlockList[i]
		if ind == 0 {
			continue
		}
		if err := m.freeLeavesIn(uint64(ind)); err != nil {
			return err
		}
		if err := m.freeBlock(uint64(ind)); err != nil {
			return err
		}
	}

	// Double-indirect region.
	for i := NDirect + NIndirect; i < NDirect+NIndirect+NDoubleIndirect; i++ {
		top := ino.BlockList[i]
		if top == 0 {
			continue
		}
		for j := 0; j < PointersPerBlock; j++ {
			mid, err := m.readPointer(uint64(top), j)
			if err != nil {
				return err
			}
			if mid == 0 {
				continue
			}
			if err := m.freeLeavesIn(uint64(mid)); err != nil {
				return err
			}
			if err := m.freeBlock(uint64(mid)); err != nil {
				return err
			}
		}
		if err := m.freeBlock(uint64(top)); err != nil {
			return err
		}
	}

	return nil
}

// freeLeavesIn frees every non-zero leaf pointer stored in indirection
// block n.
func (m *Mount) freeLeavesIn(n uint64) error {
	for i := 0; i < PointersPerBlock; i++ {
		leaf, err := m.readPointer(n, i)
		if err != nil {
			return err
		}
		if leaf != 0 {
			if err := m.freeBlock(uint64(leaf)); err != nil {
				return err
			}
		}
	}
	return nil
}
