package gosfs_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gosfs/gosfs"
)

func TestExportImportGzipRoundTrip(t *testing.T) {
	m := newFormatted(t, 20480)
	require.NoError(t, m.Mkdir("/a"))
	f, err := m.OpenCreate("/a/f")
	require.NoError(t, err)
	_, err = f.Write([]byte("payload"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var archive bytes.Buffer
	require.NoError(t, m.Export(&archive, "gzip"))

	dev2 := gosfs.NewMemDevice(20480)
	m2, err := gosfs.Import(dev2, &archive, "gzip")
	require.NoError(t, err)

	rf, err := m2.Open("/a/f", gosfs.FlagRead)
	require.NoError(t, err)
	buf := make([]byte, len("payload"))
	n, err := rf.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(buf[:n]))
}

func TestLookupUnknownCodecFails(t *testing.T) {
	m := newFormatted(t, 20480)
	var buf bytes.Buffer
	err := m.Export(&buf, "nonexistent")
	assert.Error(t, err)
}
