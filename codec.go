package gosfs

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Whole-volume export/import archive codec (SPEC_FULL.md component N).
// GOSFS has no notion of per-block compression the way the teacher's
// SquashFS does — every data block is addressed directly by the indexer,
// uncompressed, so it can be randomly written — so the teacher's
// per-block SquashComp registry (comp.go in the original) is repurposed
// here one level up: codecs wrap the byte stream of an entire exported
// volume image, not individual blocks. Build-tag gated codecs (codec_xz.go,
// codec_zstd.go) register themselves the same way the teacher's
// comp_xz.go/comp_zstd.go registered per-block decompressors.

// Codec wraps a whole exported volume image's byte stream.
type Codec struct {
	Name      string
	NewWriter func(w io.Writer) (io.WriteCloser, error)
	NewReader func(r io.Reader) (io.ReadCloser, error)
}

var codecs = map[string]Codec{}

// RegisterCodec installs c under c.Name, overwriting any codec previously
// registered with that name.
func RegisterCodec(c Codec) {
	codecs[c.Name] = c
}

func lookupCodec(name string) (Codec, error) {
	c, ok := codecs[name]
	if !ok {
		return Codec{}, fmt.Errorf("gosfs: unknown export codec %q", name)
	}
	return c, nil
}

func init() {
	RegisterCodec(Codec{
		Name: "gzip",
		NewWriter: func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriter(w), nil
		},
		NewReader: func(r io.Reader) (io.ReadCloser, error) {
			return gzip.NewReader(r)
		},
	})
}

// Export streams every block of the mounted volume, in order, through the
// named codec to w. It is the byte-exact inverse of Import.
func (m *Mount) Export(w io.Writer, codecName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	codec, err := lookupCodec(codecName)
	if err != nil {
		return err
	}
	cw, err := codec.NewWriter(w)
	if err != nil {
		return err
	}

	for n := uint64(0); n < m.sb.TotalBlocks; n++ {
		b, err := m.cache.Get(n)
		if err != nil {
			cw.Close()
			return err
		}
		_, err = cw.Write(b.Bytes())
		b.Release()
		if err != nil {
			cw.Close()
			return err
		}
	}
	return cw.Close()
}

// Import reads a volume image previously produced by Export through the
// named codec and writes it block-for-block to dev, then mounts it.
func Import(dev BlockDevice, r io.Reader, codecName string, opts ...MountOption) (*Mount, error) {
	codec, err := lookupCodec(codecName)
	if err != nil {
		return nil, err
	}
	cr, err := codec.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer cr.Close()

	block := make([]byte, BlockSize)
	for n := uint64(0); n < dev.NumSectors()/SectorsPerBlock; n++ {
		if _, err := io.ReadFull(cr, block); err != nil {
			return nil, fmt.Errorf("gosfs: import block %d: %w", n, err)
		}
		for i := 0; i < SectorsPerBlock; i++ {
			sec := block[i*SectorSize : (i+1)*SectorSize]
			if err := dev.WriteSector(n*SectorsPerBlock+uint64(i), sec); err != nil {
				return nil, err
			}
		}
	}
	if err := dev.Sync(); err != nil {
		return nil, err
	}

	return MountDevice(dev, opts...)
}
