package gosfs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosfs/gosfs"
)

// TestIndexerNoAliasing writes one byte per logical block across the
// direct, single-indirect, and double-indirect regions and checks that no
// two logical indices ever resolve to the same physical block (spec.md §8
// invariant: "no two distinct (inode, logical-index) pairs resolve to the
// same physical block").
func TestIndexerNoAliasing(t *testing.T) {
	m := newFormatted(t, 100000)
	f, err := m.OpenCreate("/sparse")
	require.NoError(t, err)

	logicalBlocks := []int64{
		0, 1, gosfs.NDirect - 1,
		gosfs.NDirect, gosfs.NDirect + 1,
		gosfs.NDirect + gosfs.PointersPerBlock,
		gosfs.NDirect + gosfs.NIndirect*gosfs.PointersPerBlock,
		gosfs.NDirect + gosfs.NIndirect*gosfs.PointersPerBlock + gosfs.PointersPerBlock + 5,
	}

	// Each logical block gets its own marker byte (its position in the list
	// plus one); byte(L) would not do, since several of these L values are
	// equal modulo 256.
	for i, L := range logicalBlocks {
		_, err := f.Seek(L*gosfs.BlockSize, gosfs.SeekStart)
		require.NoError(t, err)
		_, err = f.Write([]byte{byte(i + 1)})
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())

	rf, err := m.Open("/sparse", gosfs.FlagRead)
	require.NoError(t, err)
	defer rf.Close()

	seen := make(map[byte]bool)
	for i, L := range logicalBlocks {
		_, err := rf.Seek(L*gosfs.BlockSize, gosfs.SeekStart)
		require.NoError(t, err)
		buf := make([]byte, 1)
		_, err = rf.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, byte(i+1), buf[0])
		assert.False(t, seen[buf[0]], "value %d read twice — aliasing?", buf[0])
		seen[buf[0]] = true
	}
}

func TestFileTooLargeBeyondCeiling(t *testing.T) {
	m := newFormatted(t, 100000)
	f, err := m.OpenCreate("/huge")
	require.NoError(t, err)

	ceiling := int64(gosfs.NDirect) +
		int64(gosfs.NIndirect)*int64(gosfs.PointersPerBlock) +
		int64(gosfs.NDoubleIndirect)*int64(gosfs.PointersPerBlock)*int64(gosfs.PointersPerBlock)

	_, err = f.Seek(ceiling*gosfs.BlockSize, gosfs.SeekStart)
	require.NoError(t, err)
	_, err = f.Write([]byte{1})
	assert.ErrorIs(t, err, gosfs.ErrFileTooLarge)
}

// TestDeleteFreesIndirectionBlocks checks that deleting a file whose data
// spans single- and double-indirect regions makes its space available
// again — including the indirection blocks themselves (spec.md §4.D:
// "freeing a file's storage... finally zero the inode's pointer vector").
// It writes a second, identically-sized file after the delete and expects
// it to succeed. The 12500-block volume has room for both files at once,
// so this only catches a leak that leaves fewer free blocks than the
// second file needs; it does not detect a few leaked indirection blocks.
func TestDeleteFreesIndirectionBlocks(t *testing.T) {
	m := newFormatted(t, 100000)

	size := gosfs.BlockSize*int(gosfs.NDirect+gosfs.NIndirect*gosfs.PointersPerBlock) + gosfs.BlockSize*3
	data := make([]byte, size)

	f, err := m.OpenCreate("/spanning")
	require.NoError(t, err)
	_, err = f.Write(data)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.NoError(t, m.Delete("/spanning"))

	f2, err := m.OpenCreate("/spanning2")
	require.NoError(t, err)
	n, err := f2.Write(data)
	require.NoError(t, err)
	assert.Equal(t, size, n)
	require.NoError(t, f2.Close())
}
