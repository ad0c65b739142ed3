package graphcodec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math/bits"

	"golang.org/x/exp/constraints"
)

var (
	BE = binary.BigEndian
	LE = binary.LittleEndian
	// Order is the byte order of fixed-width fields (handle headers, floats).
	Order = BE
)

const BUFFER_SIZE = 4096

var (
	empty   [BUFFER_SIZE]byte
	discard [BUFFER_SIZE]byte
)

// Discard skips n bytes of r.
func Discard(r io.Reader, n int64) (int64, error) {
	if n == 0 {
		return 0, nil
	}
	if n < 0 {
		return 0, ErrDiscardNegative
	}
	if n <= BUFFER_SIZE {
		skip, err := io.ReadFull(r, discard[:n])
		return int64(skip), err
	}
	return io.CopyN(io.Discard, r, n)
}

// remaining reports the unread bytes of an in-memory source, or -1 when r
// cannot tell. bytes.Buffer is special-cased: its Available is write capacity.
func remaining(r io.Reader) int {
	switch r := r.(type) {
	case *bytes.Buffer:
		return r.Len()
	case *bytes.Reader:
		return r.Len()
	case interface{ Available() int }:
		return r.Available()
	}
	return -1
}

// Roundup rounds n up to the nearest multiple of align.
func Roundup[T constraints.Integer](n, align T) T { return (n + (align - 1)) &^ (align - 1) }

// UvarintSize reports how many bytes v occupies as an unsigned varint.
func UvarintSize[T constraints.Unsigned](v T) int {
	return (bits.Len64(uint64(v)|1) + 6) / 7
}

// VarintSize reports how many bytes v occupies as a zig-zag varint.
func VarintSize[T constraints.Signed](v T) int {
	x := int64(v)
	ux := uint64(x) << 1
	if x < 0 {
		ux = ^ux
	}
	return UvarintSize(ux)
}

// MAX_PADDING defines the maximum number of trailing bytes to check.
// Anything larger is considered a protocol error.
const MAX_PADDING = 1024 // 1KB

// CheckBufferNotZeros verifies that buf holds only zero padding.
func CheckBufferNotZeros(buf []byte) error {
	if len(buf) > MAX_PADDING {
		return fmt.Errorf("%w: exceeds maximum expected size of %d bytes", ErrTrailingData, MAX_PADDING)
	}
	for i, b := range buf {
		if b != 0 {
			return fmt.Errorf("%w: found non-zero byte 0x%02x at offset %d", ErrTrailingData, b, i)
		}
	}
	return nil
}
