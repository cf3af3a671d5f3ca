//go:build zstd

package gosfs

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// zstd trades some of xz's ratio for much faster compression and
// decompression, useful for frequent export/import cycles during
// development (SPEC_FULL.md component N). Adapted from the teacher's
// comp_zstd.go, which registered the same library as a per-block
// decompressor.
func init() {
	RegisterCodec(Codec{
		Name: "zstd",
		NewWriter: func(w io.Writer) (io.WriteCloser, error) {
			return zstd.NewWriter(w)
		},
		NewReader: func(r io.Reader) (io.ReadCloser, error) {
			zr, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return zr.IOReadCloser(), nil
		},
	})
}
