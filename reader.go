package graphcodec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Zero is an io.Reader that reads an infinite stream of zero bytes.
var Zero io.Reader = zero{}

type zero struct{}

func (z zero) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

type reader interface {
	io.Reader
	io.ByteReader
	io.Closer
	Size() int
}

// maxLenPrefix bounds length prefixes when the source cannot report how much is left.
const maxLenPrefix = 1 << 30

// Reader is the byte source used by decoding sessions. It tracks the first
// error; subsequent reads become no-ops and return zero values.
type Reader struct {
	r     reader
	count int64 // total bytes read
	err   error // first error encountered.
	order binary.ByteOrder
	tmp   [8]byte
}

// NewReaderSize creates a new Reader with a specified buffer size.
func NewReaderSize(r io.Reader, size int) (*Reader, error) {
	if r == nil {
		return nil, ErrNilIO
	}

	switch reader := r.(type) {
	case *Reader:
		return &Reader{r: reader.r, order: reader.order}, nil

	// prevent unpredictable double-buffering.
	case *bufio.Reader:
		if reader.Size() >= size {
			return &Reader{r: &bufioReaderAdapter{Reader: reader}, order: Order}, nil
		}
		return nil, ErrAlreadyBuffered

	// underlying is a buf so we don't need buffering
	case *BytesReader:
		return &Reader{r: reader, order: Order}, nil
	case *bytes.Reader:
		return &Reader{r: &bytesReaderAdapter{reader}, order: Order}, nil
	case *bytes.Buffer:
		return &Reader{r: &bytesBufferReaderAdapter{Buffer: reader}, order: Order}, nil
	}

	return &Reader{r: &bufioReaderAdapter{Reader: bufio.NewReaderSize(r, size)}, order: Order}, nil
}

// NewReader creates a new Reader with a default buffer size.
func NewReader(r io.Reader) (*Reader, error) {
	return NewReaderSize(r, 0)
}

// WithByteOrder sets the order used for fixed-width integers.
func (r *Reader) WithByteOrder(order binary.ByteOrder) *Reader {
	r.order = order
	return r
}

func (r *Reader) Close() error { return r.r.Close() }

// Read implements the io.Reader interface.
func (r *Reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	n, err := r.r.Read(p)
	r.count += int64(n)
	r.setError(err)
	return n, r.err
}

func (r *Reader) Count() int64 { return r.count }
func (r *Reader) Err() error   { return r.err }
func (r *Reader) IsEOF() bool  { return r.err == io.EOF }

// Fail latches err unless an earlier error is already recorded.
func (r *Reader) Fail(err error) { r.setError(err) }

// setError records the first non-nil error.
func (r *Reader) setError(err error) {
	if r.err == nil && err != nil {
		r.err = err
	}
}

// Result returns the total bytes read and the final error state.
func (r *Reader) Result() (int64, error) {
	return r.count, r.err
}

// Remaining reports how many bytes are left when the source knows it, or -1.
func (r *Reader) Remaining() int {
	return remaining(r.r)
}

// readFull reads exactly len(buf) bytes.
func (r *Reader) readFull(buf []byte) bool {
	if r.err != nil {
		return false
	}
	n, err := io.ReadFull(r.r, buf)
	r.count += int64(n)
	if err != nil {
		if err == io.EOF {
			// a partial record is different from a clean end-of-stream.
			err = io.ErrUnexpectedEOF
		}
		r.err = err
		return false
	}
	return true
}

// ReadBytes reads n bytes and returns a new byte slice.
func (r *Reader) ReadBytes(n int) []byte {
	if n <= 0 || r.err != nil {
		return nil
	}
	if rem := r.Remaining(); rem >= 0 && n > rem {
		r.setError(fmt.Errorf("%w: need %d bytes, %d left", ErrTruncatedData, n, rem))
		return nil
	}
	buf := make([]byte, n)
	if !r.readFull(buf) {
		return nil
	}
	return buf
}

// Align discards bytes until the offset is a multiple of n.
func (r *Reader) Align(n int) {
	if n > 1 && r.err == nil {
		skip := Roundup(r.count, int64(n)) - r.count
		d, err := Discard(r.r, skip)
		r.count += d
		r.setError(err)
	}
}

// --- Primitive Read Operations ---

func (r *Reader) ReadByte() (byte, error) {
	if r.err != nil {
		return 0, r.err
	}
	b, err := r.r.ReadByte()
	if err == nil {
		r.count++
	} else {
		r.err = err
	}
	return b, err
}

func (r *Reader) ReadBool(dest *bool) {
	b, err := r.ReadByte()
	if err == nil {
		*dest = b != 0
	}
}

func (r *Reader) ReadUint16(dest *uint16) {
	if r.readFull(r.tmp[:2]) {
		*dest = r.order.Uint16(r.tmp[:2])
	}
}

func (r *Reader) ReadUint32(dest *uint32) {
	if r.readFull(r.tmp[:4]) {
		*dest = r.order.Uint32(r.tmp[:4])
	}
}

func (r *Reader) ReadUint64(dest *uint64) {
	if r.readFull(r.tmp[:8]) {
		*dest = r.order.Uint64(r.tmp[:8])
	}
}

// ReadUvarint reads an unsigned LEB128 varint.
func (r *Reader) ReadUvarint() uint64 {
	if r.err != nil {
		return 0
	}
	var x uint64
	var s uint
	for i := 0; i < binary.MaxVarintLen64; i++ {
		b, err := r.r.ReadByte()
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			r.err = err
			return 0
		}
		r.count++
		if b < 0x80 {
			if i == binary.MaxVarintLen64-1 && b > 1 {
				break
			}
			return x | uint64(b)<<s
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	r.err = ErrVarintOverflow
	return 0
}

// ReadVarint reads a zig-zag encoded varint.
func (r *Reader) ReadVarint() int64 {
	ux := r.ReadUvarint()
	x := int64(ux >> 1)
	if ux&1 != 0 {
		x = ^x
	}
	return x
}

func (r *Reader) ReadFloat32() float32 {
	var bits uint32
	r.ReadUint32(&bits)
	return math.Float32frombits(bits)
}

func (r *Reader) ReadFloat64() float64 {
	var bits uint64
	r.ReadUint64(&bits)
	return math.Float64frombits(bits)
}

// ReadLen reads a uvarint length prefix and checks it against what the source can still supply.
func (r *Reader) ReadLen() int {
	n := r.ReadUvarint()
	if r.err != nil {
		return 0
	}
	limit := uint64(maxLenPrefix)
	if rem := r.Remaining(); rem >= 0 {
		limit = uint64(rem)
	}
	if n > limit {
		r.setError(fmt.Errorf("%w: length prefix %d exceeds %d", ErrTruncatedData, n, limit))
		return 0
	}
	return int(n)
}

// ReadLenString reads a uvarint length followed by that many bytes.
func (r *Reader) ReadLenString() string {
	n := r.ReadLen()
	if n == 0 {
		return ""
	}
	return string(r.ReadBytes(n))
}

// ReadLenBytes reads a uvarint length followed by that many bytes.
// A zero length yields an empty, non-nil slice.
func (r *Reader) ReadLenBytes() []byte {
	n := r.ReadLen()
	if r.err != nil {
		return nil
	}
	if n == 0 {
		return []byte{}
	}
	return r.ReadBytes(n)
}
