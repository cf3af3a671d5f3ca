//go:build xz

package gosfs

import (
	"io"

	"github.com/ulikunitz/xz"
)

// xz offers a higher compression ratio than gzip at the cost of speed,
// worthwhile for archival exports of large volumes (SPEC_FULL.md
// component N). Adapted from the teacher's comp_xz.go, which wrapped the
// same library for per-block decompression.
func init() {
	RegisterCodec(Codec{
		Name: "xz",
		NewWriter: func(w io.Writer) (io.WriteCloser, error) {
			return xz.NewWriter(w)
		},
		NewReader: func(r io.Reader) (io.ReadCloser, error) {
			rc, err := xz.NewReader(r)
			if err != nil {
				return nil, err
			}
			return io.NopCloser(rc), nil
		},
	})
}
