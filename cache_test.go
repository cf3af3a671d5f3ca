package gosfs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosfs/gosfs"
)

func TestBufferCacheGetReadsThroughOnFirstTouch(t *testing.T) {
	dev := gosfs.NewMemDevice(gosfs.SectorsPerBlock * 4)
	data := make([]byte, gosfs.SectorSize)
	for i := range data {
		data[i] = 0xAB
	}
	require.NoError(t, dev.WriteSector(0, data))

	c := gosfs.NewBufferCache(dev, nil)
	b, err := c.Get(0)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAB), b.Bytes()[0])
	b.Release()
}

func TestBufferCacheFlushPersistsDirtyBuffers(t *testing.T) {
	dev := gosfs.NewMemDevice(gosfs.SectorsPerBlock * 4)
	c := gosfs.NewBufferCache(dev, nil)

	b, err := c.Get(1)
	require.NoError(t, err)
	b.Bytes()[0] = 0x42
	b.MarkDirty()
	b.Release()

	require.NoError(t, c.Flush())

	out := make([]byte, gosfs.SectorSize)
	require.NoError(t, dev.ReadSector(gosfs.SectorsPerBlock, out))
	assert.Equal(t, byte(0x42), out[0])
}

func TestBufferGetZeroedDoesNotReadDevice(t *testing.T) {
	dev := gosfs.NewMemDevice(gosfs.SectorsPerBlock * 4)
	data := make([]byte, gosfs.SectorSize)
	for i := range data {
		data[i] = 0xFF
	}
	require.NoError(t, dev.WriteSector(0, data))

	c := gosfs.NewBufferCache(dev, nil)
	b, err := c.GetZeroed(0)
	require.NoError(t, err)
	for _, v := range b.Bytes() {
		assert.Equal(t, byte(0), v)
	}
	b.Release()
}

func TestBufferDoubleReleasePanics(t *testing.T) {
	dev := gosfs.NewMemDevice(gosfs.SectorsPerBlock * 4)
	c := gosfs.NewBufferCache(dev, nil)
	b, err := c.Get(0)
	require.NoError(t, err)
	b.Release()

	assert.Panics(t, func() { b.Release() })
}
