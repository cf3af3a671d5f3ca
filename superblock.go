package gosfs

import "encoding/binary"

// Superblock is the persistent header stored at block 0 (spec.md §3, §6).
// Field order is byte-exact and must not change: magic, the superblock
// structure's own total byte size, then the rest in declared order, all
// little-endian.
type Superblock struct {
	Magic           uint32
	Size            uint32 // total byte size of the superblock structure itself
	TotalBlocks     uint64
	BitmapStart     uint64
	InodeTableStart uint64
	DataStart       uint64
}

// superblockSize is the on-disk byte size of the Superblock record.
const superblockSize = 4 + 4 + 8 + 8 + 8 + 8

// marshalBinary encodes the superblock into buf, which must be at least
// superblockSize bytes.
func (s *Superblock) marshalBinary(buf []byte) {
	order := binary.LittleEndian
	order.PutUint32(buf[0:4], s.Magic)
	order.PutUint32(buf[4:8], superblockSize)
	order.PutUint64(buf[8:16], s.TotalBlocks)
	order.PutUint64(buf[16:24], s.BitmapStart)
	order.PutUint64(buf[24:32], s.InodeTableStart)
	order.PutUint64(buf[32:40], s.DataStart)
}

// unmarshalBinary decodes the superblock from buf, validating the magic
// number (spec.md §4.I: "verify magic (fail INVALID_FS)").
func (s *Superblock) unmarshalBinary(buf []byte) error {
	order := binary.LittleEndian
	magic := order.Uint32(buf[0:4])
	if magic != Magic {
		return ErrInvalidFS
	}
	s.Magic = magic
	s.Size = order.Uint32(buf[4:8])
	s.TotalBlocks = order.Uint64(buf[8:16])
	s.BitmapStart = order.Uint64(buf[16:24])
	s.InodeTableStart = order.Uint64(buf[24:32])
	s.DataStart = order.Uint64(buf[32:40])
	return nil
}

// layoutFor computes the region offsets for a volume of the given total
// block count (spec.md §4.A: "[superblock | bitmap blocks | inode-table
// blocks | data blocks]"; "only the superblock offset (0) is
// hard-coded").
func layoutFor(totalBlocks uint64) Superblock {
	bitmapStart := uint64(1)
	inodeTableStart := bitmapStart + bitmapBlocks(totalBlocks)
	dataStart := inodeTableStart + inodeTableBlocks()
	return Superblock{
		Magic:           Magic,
		Size:            superblockSize,
		TotalBlocks:     totalBlocks,
		BitmapStart:     bitmapStart,
		InodeTableStart: inodeTableStart,
		DataStart:       dataStart,
	}
}
