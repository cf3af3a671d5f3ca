package gosfs_test

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosfs/gosfs"
)

// newFormatted formats a fresh in-memory volume of totalSectors sectors
// and returns the resulting mount, matching spec.md §8 scenario 1.
func newFormatted(t *testing.T, totalSectors uint64) *gosfs.Mount {
	t.Helper()
	dev := gosfs.NewMemDevice(totalSectors)
	m, err := gosfs.Format(dev, totalSectors/gosfs.SectorsPerBlock)
	require.NoError(t, err)
	return m
}

// TestFormatMountStatRoot covers spec.md §8 scenario 1: format a
// 20480-sector device, mount, stat "/".
func TestFormatMountStatRoot(t *testing.T) {
	m := newFormatted(t, 20480)
	info, err := m.Stat("/")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.Size)
	assert.True(t, info.IsDir)
	assert.False(t, info.Flags.Has(gosfs.FlagSetuid))
}

func TestMkdirOpendirReadsChild(t *testing.T) {
	m := newFormatted(t, 20480)
	require.NoError(t, m.Mkdir("/a"))
	require.NoError(t, m.Mkdir("/a/b"))

	dh, err := m.OpenDir("/a")
	require.NoError(t, err)

	var regular []gosfs.DirEntry
	for {
		e, err := dh.ReadEntry()
		if err == gosfs.ErrNoMoreEntries {
			break
		}
		require.NoError(t, err)
		if e.Name != "." {
			regular = append(regular, e)
		}
	}
	require.Len(t, regular, 1)
	assert.Equal(t, "b", regular[0].Name)
}

func TestMkdirOpendirFreshDirHasOnlyThisEntry(t *testing.T) {
	m := newFormatted(t, 20480)
	require.NoError(t, m.Mkdir("/d"))

	dh, err := m.OpenDir("/d")
	require.NoError(t, err)
	e, err := dh.ReadEntry()
	require.NoError(t, err)
	assert.Equal(t, ".", e.Name)

	_, err = dh.ReadEntry()
	assert.ErrorIs(t, err, gosfs.ErrNoMoreEntries)
}

func writeAll(t *testing.T, f *gosfs.File, data []byte) {
	t.Helper()
	n, err := f.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)
}

func readAll(t *testing.T, f *gosfs.File, want int) []byte {
	t.Helper()
	buf := make([]byte, want)
	n, err := io.ReadFull(f, buf)
	require.NoError(t, err)
	require.Equal(t, want, n)
	return buf
}

// TestWriteReadRoundTrip covers spec.md §8's round-trip law across sizes
// that land in the direct, single-indirect, and double-indirect regions.
func TestWriteReadRoundTrip(t *testing.T) {
	sizes := []int{0, 1, gosfs.BlockSize - 1, gosfs.BlockSize, gosfs.BlockSize + 1, 40000,
		gosfs.BlockSize*(gosfs.NDirect+1) + 1,
		gosfs.BlockSize*(gosfs.NDirect+gosfs.NIndirect*gosfs.PointersPerBlock+1) + 1}
	for _, size := range sizes {
		size := size
		t.Run("", func(t *testing.T) {
			m := newFormatted(t, 200000)
			f, err := m.OpenCreate("/log")
			require.NoError(t, err)

			data := make([]byte, size)
			for i := range data {
				data[i] = byte(i)
			}
			writeAll(t, f, data)
			require.NoError(t, f.Close())

			info, err := m.Stat("/log")
			require.NoError(t, err)
			assert.Equal(t, uint64(size), info.Size)

			rf, err := m.Open("/log", gosfs.FlagRead)
			require.NoError(t, err)
			_, err = rf.Seek(0, gosfs.SeekStart)
			require.NoError(t, err)

			if size == 0 {
				buf := make([]byte, 1)
				n, err := rf.Read(buf)
				assert.Equal(t, 0, n)
				assert.ErrorIs(t, err, io.EOF)
			} else {
				got := readAll(t, rf, size)
				assert.True(t, bytes.Equal(data, got))
			}
			require.NoError(t, rf.Close())
		})
	}
}

// TestWriteReadPattern40000 is spec.md §8 scenario 3 with its 40000-byte
// size. With NDirect = 12 direct blocks (49152 bytes), 40000 bytes stays
// inside the direct region; TestWriteReadRoundTrip covers the indirect
// regions.
func TestWriteReadPattern40000(t *testing.T) {
	m := newFormatted(t, 200000)
	f, err := m.OpenCreate("/log")
	require.NoError(t, err)

	const n = 40000
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i)
	}
	writeAll(t, f, data)

	_, err = f.Seek(0, gosfs.SeekStart)
	require.NoError(t, err)
	got := readAll(t, f, n)
	assert.True(t, bytes.Equal(data, got))
	require.NoError(t, f.Close())

	info, err := m.Stat("/log")
	require.NoError(t, err)
	assert.Equal(t, uint64(n), info.Size)
}

// TestCreateDeleteTwiceThenNotFound covers spec.md §8 scenario 5: create
// and delete /x twice in succession, after which stat and a further delete
// both yield NOT_FOUND. The bitmap is not inspected here; the free-count
// round trip is checked in bitmap_internal_test.go.
func TestCreateDeleteTwiceThenNotFound(t *testing.T) {
	m := newFormatted(t, 20480)

	_, err := m.Create("/x")
	require.NoError(t, err)
	require.NoError(t, m.Delete("/x"))

	_, err = m.Create("/x")
	require.NoError(t, err)
	require.NoError(t, m.Delete("/x"))

	_, err = m.Stat("/x")
	assert.ErrorIs(t, err, gosfs.ErrNotFound)

	err = m.Delete("/x")
	assert.ErrorIs(t, err, gosfs.ErrNotFound)
}

// TestDeleteNonEmptyDirectoryFails covers spec.md §8 scenario 6.
func TestDeleteNonEmptyDirectoryFails(t *testing.T) {
	m := newFormatted(t, 20480)
	require.NoError(t, m.Mkdir("/d"))
	_, err := m.Create("/d/f")
	require.NoError(t, err)

	err = m.Delete("/d")
	assert.ErrorIs(t, err, gosfs.ErrNotEmpty)

	_, err = m.Stat("/d")
	assert.NoError(t, err)
}

func TestOpenWithoutCreateNotFound(t *testing.T) {
	m := newFormatted(t, 20480)
	_, err := m.Open("/missing", gosfs.FlagRead)
	assert.ErrorIs(t, err, gosfs.ErrNotFound)
}

func TestOpenCreateThenOpenExisting(t *testing.T) {
	m := newFormatted(t, 20480)
	f, err := m.OpenCreate("/new")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f2, err := m.Open("/new", gosfs.FlagRead|gosfs.FlagWrite)
	require.NoError(t, err)
	require.NoError(t, f2.Close())
}

func TestReadWithoutFlagReadDenied(t *testing.T) {
	m := newFormatted(t, 20480)
	f, err := m.OpenCreate("/new")
	require.NoError(t, err)
	writeAll(t, f, []byte("hi"))
	require.NoError(t, f.Close())

	rf, err := m.Open("/new", gosfs.FlagWrite)
	require.NoError(t, err)
	buf := make([]byte, 2)
	_, err = rf.Read(buf)
	assert.ErrorIs(t, err, gosfs.ErrAccessDenied)
}

func TestWriteWithoutFlagWriteDenied(t *testing.T) {
	m := newFormatted(t, 20480)
	f, err := m.OpenCreate("/new")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	rf, err := m.Open("/new", gosfs.FlagRead)
	require.NoError(t, err)
	_, err = rf.Write([]byte("x"))
	assert.ErrorIs(t, err, gosfs.ErrAccessDenied)
}

func TestHoleReadsAsZero(t *testing.T) {
	m := newFormatted(t, 20480)
	f, err := m.OpenCreate("/hole")
	require.NoError(t, err)

	_, err = f.Seek(gosfs.BlockSize*3, gosfs.SeekStart)
	require.NoError(t, err)
	writeAll(t, f, []byte("end"))

	_, err = f.Seek(0, gosfs.SeekStart)
	require.NoError(t, err)
	buf := make([]byte, gosfs.BlockSize)
	n, err := io.ReadFull(f, buf)
	require.NoError(t, err)
	require.Equal(t, gosfs.BlockSize, n)
	for _, b := range buf {
		assert.Equal(t, byte(0), b)
	}
}

func TestSeekPastEndRejectedOnReadOnly(t *testing.T) {
	m := newFormatted(t, 20480)
	f, err := m.OpenCreate("/f")
	require.NoError(t, err)
	writeAll(t, f, []byte("abc"))
	require.NoError(t, f.Close())

	rf, err := m.Open("/f", gosfs.FlagRead)
	require.NoError(t, err)
	_, err = rf.Seek(100, gosfs.SeekStart)
	assert.ErrorIs(t, err, gosfs.ErrInvalidArgument)
}

func TestSeekPastEndAllowedOnWriteHandle(t *testing.T) {
	m := newFormatted(t, 20480)
	f, err := m.OpenCreate("/f")
	require.NoError(t, err)
	_, err = f.Seek(100, gosfs.SeekStart)
	assert.NoError(t, err)
}

// TestWriteAtAddressableCeiling covers spec.md §8's boundary: writing the
// last addressable logical block succeeds, one past fails FILE_TOO_LARGE.
func TestWriteAtAddressableCeiling(t *testing.T) {
	m := newFormatted(t, 100000)
	f, err := m.OpenCreate("/big")
	require.NoError(t, err)

	ceiling := gosfs.NDirect +
		gosfs.NIndirect*gosfs.PointersPerBlock +
		gosfs.NDoubleIndirect*gosfs.PointersPerBlock*gosfs.PointersPerBlock

	lastBlockOffset := int64(ceiling-1) * gosfs.BlockSize
	_, err = f.Seek(lastBlockOffset, gosfs.SeekStart)
	require.NoError(t, err)
	n, err := f.Write([]byte{1})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	pastOffset := int64(ceiling) * gosfs.BlockSize
	_, err = f.Seek(pastOffset, gosfs.SeekStart)
	require.NoError(t, err)
	_, err = f.Write([]byte{1})
	assert.ErrorIs(t, err, gosfs.ErrFileTooLarge)
}

func TestMkdirExistingNameFails(t *testing.T) {
	m := newFormatted(t, 20480)
	require.NoError(t, m.Mkdir("/a"))
	err := m.Mkdir("/a")
	assert.ErrorIs(t, err, gosfs.ErrExist)
}

func TestCreateExistingNameFails(t *testing.T) {
	m := newFormatted(t, 20480)
	_, err := m.Create("/a")
	require.NoError(t, err)
	_, err = m.Create("/a")
	assert.ErrorIs(t, err, gosfs.ErrExist)
}

func TestOpenDirectoryAsFileFails(t *testing.T) {
	m := newFormatted(t, 20480)
	require.NoError(t, m.Mkdir("/d"))
	_, err := m.Open("/d", gosfs.FlagRead)
	assert.ErrorIs(t, err, gosfs.ErrIsDirectory)
}

func TestStatMissingPathNotFound(t *testing.T) {
	m := newFormatted(t, 20480)
	_, err := m.Stat("/nope")
	assert.ErrorIs(t, err, gosfs.ErrNotFound)
}

func TestRelativePathRejected(t *testing.T) {
	m := newFormatted(t, 20480)
	_, err := m.Stat("relative")
	assert.ErrorIs(t, err, gosfs.ErrInvalidArgument)
}

func TestFormatThenMountRootEmptyOfRegularEntries(t *testing.T) {
	dev := gosfs.NewMemDevice(20480)
	_, err := gosfs.Format(dev, 20480/gosfs.SectorsPerBlock)
	require.NoError(t, err)

	m, err := gosfs.MountDevice(dev)
	require.NoError(t, err)

	dh, err := m.OpenDir("/")
	require.NoError(t, err)
	var regular int
	for {
		e, err := dh.ReadEntry()
		if err == gosfs.ErrNoMoreEntries {
			break
		}
		require.NoError(t, err)
		if e.Name != "." {
			regular++
		}
	}
	assert.Equal(t, 0, regular)
}

func TestMountRejectsBadMagic(t *testing.T) {
	dev := gosfs.NewMemDevice(4096 / gosfs.SectorSize * gosfs.SectorsPerBlock)
	_, err := gosfs.MountDevice(dev)
	assert.ErrorIs(t, err, gosfs.ErrInvalidFS)
}

// TestAllocateUntilNoSpace covers spec.md §8 scenario 4: allocate blocks
// until NO_SPACE.
func TestAllocateUntilNoSpace(t *testing.T) {
	m := newFormatted(t, 20480)
	f, err := m.OpenCreate("/fill")
	require.NoError(t, err)

	buf := make([]byte, gosfs.BlockSize)
	writes := 0
	var writeErr error
	for {
		_, err := f.Write(buf)
		if err != nil {
			writeErr = err
			break
		}
		writes++
		if writes > 100000 {
			t.Fatal("never hit NO_SPACE")
		}
	}
	assert.ErrorIs(t, writeErr, gosfs.ErrNoSpace)
	assert.Greater(t, writes, 0)
}

func TestSyncDoesNotError(t *testing.T) {
	m := newFormatted(t, 20480)
	require.NoError(t, m.Mkdir("/a"))
	require.NoError(t, m.Sync())
}

func TestCloseFlushesAndClosesDevice(t *testing.T) {
	m := newFormatted(t, 20480)
	require.NoError(t, m.Mkdir("/a"))
	require.NoError(t, m.Close())
}
