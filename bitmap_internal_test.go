package gosfs

import (
	"testing"
)

// TestBitmapAllocateFreeRoundTrip exercises allocateBlock/freeBlock
// directly and checks the free count invariant from spec.md §8: "the
// number of free bitmap bits is the same as before create" after a
// matched allocate/free pair.
func TestBitmapAllocateFreeRoundTrip(t *testing.T) {
	dev := NewMemDevice(20480)
	m, err := Format(dev, 20480/SectorsPerBlock)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}

	before, err := m.freeBlockCount()
	if err != nil {
		t.Fatalf("freeBlockCount: %v", err)
	}

	n, err := m.allocateBlock()
	if err != nil {
		t.Fatalf("allocateBlock: %v", err)
	}
	mid, err := m.freeBlockCount()
	if err != nil {
		t.Fatalf("freeBlockCount: %v", err)
	}
	if mid != before-1 {
		t.Fatalf("free count after allocate = %d, want %d", mid, before-1)
	}

	if err := m.freeBlock(n); err != nil {
		t.Fatalf("freeBlock: %v", err)
	}
	after, err := m.freeBlockCount()
	if err != nil {
		t.Fatalf("freeBlockCount: %v", err)
	}
	if after != before {
		t.Fatalf("free count after free = %d, want %d", after, before)
	}
}

// TestBitmapAllocatesLowestFreeIndexFirst checks the documented tie-break
// (spec.md §4.B: "ties: lowest free index wins").
func TestBitmapAllocatesLowestFreeIndexFirst(t *testing.T) {
	dev := NewMemDevice(20480)
	m, err := Format(dev, 20480/SectorsPerBlock)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}

	a, err := m.allocateBlock()
	if err != nil {
		t.Fatalf("allocateBlock: %v", err)
	}
	b, err := m.allocateBlock()
	if err != nil {
		t.Fatalf("allocateBlock: %v", err)
	}
	if b <= a {
		t.Fatalf("second allocation %d did not land above first %d", b, a)
	}

	if err := m.freeBlock(a); err != nil {
		t.Fatalf("freeBlock: %v", err)
	}
	c, err := m.allocateBlock()
	if err != nil {
		t.Fatalf("allocateBlock: %v", err)
	}
	if c != a {
		t.Fatalf("allocateBlock after freeing lowest index returned %d, want %d", c, a)
	}
}

// TestAllocateBlockZerosContents checks spec.md §4.B: "zero the block's
// contents through the cache (so callers see a clean canvas)".
func TestAllocateBlockZerosContents(t *testing.T) {
	dev := NewMemDevice(20480)
	m, err := Format(dev, 20480/SectorsPerBlock)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}

	n, err := m.allocateBlock()
	if err != nil {
		t.Fatalf("allocateBlock: %v", err)
	}
	b, err := m.cache.Get(n)
	if err != nil {
		t.Fatalf("cache.Get: %v", err)
	}
	defer b.Release()
	for i, v := range b.Bytes() {
		if v != 0 {
			t.Fatalf("byte %d of freshly allocated block = %d, want 0", i, v)
		}
	}
}

// TestFindFreeInodeScansLinearly checks spec.md §4.C: a freed inode index
// is reused before any higher index.
func TestFindFreeInodeScansLinearly(t *testing.T) {
	dev := NewMemDevice(20480)
	m, err := Format(dev, 20480/SectorsPerBlock)
	if err != nil {
		t.Fatalf("Format: %v", err)
	}

	idx, err := m.findFreeInode()
	if err != nil {
		t.Fatalf("findFreeInode: %v", err)
	}
	if idx != RootIno+1 {
		t.Fatalf("first free inode = %d, want %d", idx, RootIno+1)
	}
	if err := m.initInode(idx, false); err != nil {
		t.Fatalf("initInode: %v", err)
	}
	if err := m.destroyInode(idx); err != nil {
		t.Fatalf("destroyInode: %v", err)
	}

	again, err := m.findFreeInode()
	if err != nil {
		t.Fatalf("findFreeInode: %v", err)
	}
	if again != idx {
		t.Fatalf("findFreeInode after destroy = %d, want %d", again, idx)
	}
}
