package gosfs

import (
	"encoding/binary"
)

// Inode is the fixed-size on-disk record describing one file or directory
// (spec.md §3, §6). It is identified by its index into the inode table; a
// zero flags field means the slot is free.
//
// On-disk layout, exact order (spec.md §6):
//
//	size (8) | flags (8) | blockList[NDirect+NIndirect+NDoubleIndirect] (4 each) | acl[MaxACLEntries] (12 each)
type Inode struct {
	Size      uint64
	Flags     InodeFlag
	BlockList [NDirect + NIndirect + NDoubleIndirect]uint32
	ACL       [MaxACLEntries]ACLEntry
}

// inodeSize is the exact on-disk byte size of one inode record.
const inodeSize = 8 + 8 + (NDirect+NIndirect+NDoubleIndirect)*4 + MaxACLEntries*12

// inodeTableBlocks returns the number of blocks the fixed MaxInodes-entry
// inode table occupies, given the actual on-disk inode record size
// (spec.md §4.A; see the MaxInodes comment in layout.go for why this is
// derived rather than the literal "four blocks" spec.md mentions).
func inodeTableBlocks() uint64 {
	perBlock := uint64(BlockSize / inodeSize)
	return (uint64(MaxInodes) + perBlock - 1) / perBlock
}

// IsUsed reports whether the inode is live.
func (ino *Inode) IsUsed() bool { return ino.Flags.Has(FlagUsed) }

// IsDir reports whether the inode is a directory.
func (ino *Inode) IsDir() bool { return ino.Flags.Has(FlagDirectory) }

// IsSetuid reports whether the inode's setuid bit is set.
func (ino *Inode) IsSetuid() bool { return ino.Flags.Has(FlagSetuid) }

// marshalBinary encodes the inode to its fixed-size on-disk record.
func (ino *Inode) marshalBinary(buf []byte) {
	order := binary.LittleEndian
	order.PutUint64(buf[0:8], ino.Size)
	order.PutUint64(buf[8:16], uint64(ino.Flags))
	off := 16
	for _, p := range ino.BlockList {
		order.PutUint32(buf[off:off+4], p)
		off += 4
	}
	for _, a := range ino.ACL {
		order.PutUint32(buf[off:off+4], a.Uid)
		order.PutUint32(buf[off+4:off+8], a.Perm)
		order.PutUint32(buf[off+8:off+12], a.Valid)
		off += 12
	}
}

// unmarshalBinary decodes the inode from its fixed-size on-disk record.
func (ino *Inode) unmarshalBinary(buf []byte) {
	order := binary.LittleEndian
	ino.Size = order.Uint64(buf[0:8])
	ino.Flags = InodeFlag(order.Uint64(buf[8:16]))
	off := 16
	for i := range ino.BlockList {
		ino.BlockList[i] = order.Uint32(buf[off : off+4])
		off += 4
	}
	for i := range ino.ACL {
		ino.ACL[i] = ACLEntry{
			Uid:   order.Uint32(buf[off : off+4]),
			Perm:  order.Uint32(buf[off+4 : off+8]),
			Valid: order.Uint32(buf[off+8 : off+12]),
		}
		off += 12
	}
}

// InodeNum identifies an inode by its table index. It prints as "ino(N)",
// or "ino(root)" for the root directory, mirroring the teacher's
// inodeRef.String() in spirit.
type InodeNum uint32

func (n InodeNum) String() string {
	if n == RootIno {
		return "ino(root)"
	}
	return "ino(" + itoa(uint64(n)) + ")"
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var b [20]byte
	i := len(b)
	for v > 0 {
		i--
		b[i] = byte('0' + v%10)
		v /= 10
	}
	return string(b[i:])
}

// readInode loads the inode at index idx through the buffer cache. Per the
// recommended variant in spec.md §9, inodes are never copied into a
// side-table on Mount; every access pages through the cache so concurrent
// writers and readers under the mount mutex always see the single source
// of truth.
func (m *Mount) readInode(idx InodeNum) (*Inode, error) {
	if uint32(idx) >= MaxInodes {
		return nil, ErrInvalidArgument
	}
	blockOff, byteOff := inodeLocation(idx)
	b, err := m.cache.Get(m.sb.InodeTableStart + blockOff)
	if err != nil {
		return nil, err
	}
	defer b.Release()

	ino := &Inode{}
	ino.unmarshalBinary(b.Bytes()[byteOff : byteOff+inodeSize])
	return ino, nil
}

// writeInode persists ino at index idx through the buffer cache.
func (m *Mount) writeInode(idx InodeNum, ino *Inode) error {
	if uint32(idx) >= MaxInodes {
		return ErrInvalidArgument
	}
	blockOff, byteOff := inodeLocation(idx)
	b, err := m.cache.Get(m.sb.InodeTableStart + blockOff)
	if err != nil {
		return err
	}
	defer b.Release()

	ino.marshalBinary(b.Bytes()[byteOff : byteOff+inodeSize])
	b.MarkDirty()
	return nil
}

// inodeLocation returns the block offset (relative to the inode table
// start) and byte offset within that block for inode index idx.
func inodeLocation(idx InodeNum) (blockOff uint64, byteOff int) {
	perBlock := BlockSize / inodeSize
	return uint64(idx) / uint64(perBlock), (int(idx) % perBlock) * inodeSize
}

// findFreeInode scans the inode table linearly and returns the first index
// whose flags are all-zero (spec.md §4.C).
func (m *Mount) findFreeInode() (InodeNum, error) {
	for i := InodeNum(0); uint32(i) < MaxInodes; i++ {
		ino, err := m.readInode(i)
		if err != nil {
			return 0, err
		}
		if ino.Flags == 0 {
			return i, nil
		}
	}
	return 0, ErrNoSpace
}

// initInode marks idx live, zeroing its size, block vector, and ACL
// (spec.md §4.C).
func (m *Mount) initInode(idx InodeNum, isDir bool) error {
	ino := &Inode{Flags: FlagUsed}
	if isDir {
		ino.Flags |= FlagDirectory
	}
	return m.writeInode(idx, ino)
}

// destroyInode marks idx free. The caller must have already released all
// of its data and indirection blocks (spec.md §4.C).
func (m *Mount) destroyInode(idx InodeNum) error {
	return m.writeInode(idx, &Inode{})
}
