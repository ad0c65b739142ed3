package graphcodec

import (
	"fmt"
	"io"
)

const (
	bundleMagic = "GBDL"

	// bundleAlign is the boundary every handle but the last is padded to.
	bundleAlign = 8
)

type bundleHeader struct {
	Magic [4]byte
	Count uint32
}

// Bundle is a sequence of handles framed as one artifact: a header with the
// count, then each handle padded to an 8-byte boundary.
type Bundle struct {
	Handles []*Handle
}

var _ Codec = (*Bundle)(nil)

// NewBundle groups hs into a bundle.
func NewBundle(hs ...*Handle) *Bundle {
	return &Bundle{Handles: hs}
}

func (b *Bundle) Len() int { return len(b.Handles) }

func (b *Bundle) header() *Fixed[bundleHeader] {
	hdr := &Fixed[bundleHeader]{}
	copy(hdr.Payload.Magic[:], bundleMagic)
	hdr.Payload.Count = uint32(len(b.Handles))
	return hdr
}

// Size returns the encoded size including padding.
func (b *Bundle) Size() int {
	total := b.header().Size()
	last := len(b.Handles) - 1
	for i, h := range b.Handles {
		total += h.Size()
		if i < last {
			total = Roundup(total, bundleAlign)
		}
	}
	return total
}

func (b *Bundle) WriteTo(writer io.Writer) (int64, error) {
	w, err := NewWriter(writer)
	if err != nil {
		return 0, err
	}
	w.WriteFrom(b.header())
	last := len(b.Handles) - 1
	for i, h := range b.Handles {
		w.WriteFrom(h)
		if i < last {
			w.Align(bundleAlign)
		}
	}
	return w.Result()
}

// ReadFrom replaces the handles of b with the ones read from reader.
func (b *Bundle) ReadFrom(reader io.Reader) (int64, error) {
	var hdr Fixed[bundleHeader]
	n, err := hdr.ReadFrom(reader)
	if err != nil {
		return n, err
	}
	if string(hdr.Payload.Magic[:]) != bundleMagic {
		return n, fmt.Errorf("%w: %q", ErrBadMagic, hdr.Payload.Magic[:])
	}

	count := int(hdr.Payload.Count)
	b.Handles = make([]*Handle, 0, min(count, 1024))
	for i := 0; i < count; i++ {
		h := new(Handle)
		read, err := h.ReadFrom(reader)
		n += read
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return n, fmt.Errorf("graphcodec: bundle entry %d: %w", i, err)
		}
		b.Handles = append(b.Handles, h)

		if i < count-1 {
			if pad := Roundup(n, int64(bundleAlign)) - n; pad > 0 {
				skipped, err := Discard(reader, pad)
				n += skipped
				if err != nil {
					return n, fmt.Errorf("graphcodec: bundle entry %d padding: %w", i, err)
				}
			}
		}
	}
	return n, nil
}

func (b *Bundle) MarshalBinary() ([]byte, error) {
	return MarshalBinaryGeneric(b)
}

func (b *Bundle) UnmarshalBinary(data []byte) error {
	return UnmarshalBinaryGeneric(b, data)
}

func (b *Bundle) MarshalTo(buf []byte) (int, error) {
	return MarshalToGeneric(b, buf)
}
