package graphcodec

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"math"
)

type writer interface {
	io.Writer
	io.ByteWriter
	io.StringWriter
	io.Closer
	Size() int
	Flush() error
}

// Writer is the byte sink used by encoding sessions. It tracks the first error
// that occurs; after an error all subsequent write operations become no-ops.
// Fixed-width integers use Order, variable-width ones use LEB128 varints.
type Writer struct {
	w       writer
	count   int64 // total bytes written
	err     error // first error encountered. Subsequent writes become no-ops.
	order   binary.ByteOrder
	scratch [binary.MaxVarintLen64]byte
}

// NewWriterSize creates a new Writer with a specified buffer size.
// It returns an error to prevent double-buffering.
func NewWriterSize(w io.Writer, size int) (*Writer, error) {
	if w == nil {
		return nil, ErrNilIO
	}

	switch bw := w.(type) {
	case *Writer:
		return &Writer{w: bw.w, order: bw.order}, nil

	// prevent unpredictable double-buffering.
	case *bufio.Writer:
		if bw.Size() >= size {
			return &Writer{w: &bufioWriterAdapter{bw}, order: Order}, nil
		}
		return nil, ErrAlreadyBuffered

	// underlying is a buf so we don't need buffering
	case *BytesWriter:
		return &Writer{w: bw, order: Order}, nil
	case *bytes.Buffer:
		return &Writer{w: &bytesBufferWriterAdapter{bw}, order: Order}, nil
	}

	return &Writer{w: &bufioWriterAdapter{bufio.NewWriterSize(w, size)}, order: Order}, nil
}

// NewWriter creates a new Writer with a default buffer size.
func NewWriter(w io.Writer) (*Writer, error) {
	return NewWriterSize(w, 0)
}

// WithByteOrder sets the order used for fixed-width integers.
func (w *Writer) WithByteOrder(order binary.ByteOrder) *Writer {
	w.order = order
	return w
}

func (w *Writer) Close() error { return w.w.Close() }

// Write implements the io.Writer interface.
func (w *Writer) Write(buf []byte) (int, error) {
	if len(buf) == 0 || w.err != nil {
		return 0, w.err
	}
	n, err := w.w.Write(buf)
	w.count += int64(n)
	w.setError(err)
	return n, w.err
}

// WriteString writes the raw bytes of str without a length prefix.
func (w *Writer) WriteString(str string) (int, error) {
	if str == "" || w.err != nil {
		return 0, w.err
	}
	n, err := w.w.WriteString(str)
	w.count += int64(n)
	w.setError(err)
	return n, w.err
}

func (w *Writer) Count() int64 { return w.count }
func (w *Writer) Err() error   { return w.err }

// Fail latches err unless an earlier error is already recorded.
func (w *Writer) Fail(err error) { w.setError(err) }

// setError records the first non-nil error.
// This preserves the root cause of a failure chain instead of a later,
// less relevant error.
func (w *Writer) setError(err error) {
	if w.err == nil && err != nil {
		w.err = err
	}
}

// Result flushes the buffer and returns the final count and error state.
func (w *Writer) Result() (int64, error) {
	w.Flush()
	return w.count, w.err
}

// Flush writes any buffered data to the underlying io.Writer.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	err := w.w.Flush()
	w.setError(err)
	return err
}

// WriteFrom writes an io.WriterTo into the stream.
func (w *Writer) WriteFrom(wt io.WriterTo) {
	if wt == nil || w.err != nil {
		return
	}
	n, err := wt.WriteTo(w.w)
	w.count += n
	w.setError(err)
}

// WriteBytes writes a byte slice without a length prefix.
func (w *Writer) WriteBytes(buf []byte) {
	if w.err != nil {
		return
	}
	_, _ = w.Write(buf)
}

// WriteZeros writes n zero bytes, used for padding.
func (w *Writer) WriteZeros(n int64) {
	if w.err != nil || n <= 0 {
		return
	}
	if n <= BUFFER_SIZE {
		w.Write(empty[:n])
	} else {
		_, err := io.CopyN(w, Zero, n)
		w.setError(err)
	}
}

// Align writes zero bytes until the offset is a multiple of n.
func (w *Writer) Align(n int) {
	if n > 1 {
		w.WriteZeros(Roundup(w.count, int64(n)) - w.count)
	}
}

// --- Primitive Write Operations ---

func (w *Writer) WriteByte(v byte) error {
	if w.err != nil {
		return w.err
	}
	err := w.w.WriteByte(v)
	if err == nil {
		w.count++
	} else {
		w.err = err
	}
	return err
}

func (w *Writer) WriteBool(v bool) {
	if v {
		_ = w.WriteByte(1)
	} else {
		_ = w.WriteByte(0)
	}
}

func (w *Writer) WriteUint16(v uint16) {
	if w.err != nil {
		return
	}
	w.order.PutUint16(w.scratch[:2], v)
	_, _ = w.Write(w.scratch[:2])
}

func (w *Writer) WriteUint32(v uint32) {
	if w.err != nil {
		return
	}
	w.order.PutUint32(w.scratch[:4], v)
	_, _ = w.Write(w.scratch[:4])
}

func (w *Writer) WriteUint64(v uint64) {
	if w.err != nil {
		return
	}
	w.order.PutUint64(w.scratch[:8], v)
	_, _ = w.Write(w.scratch[:8])
}

// WriteUvarint writes v as an unsigned LEB128 varint.
func (w *Writer) WriteUvarint(v uint64) {
	if w.err != nil {
		return
	}
	n := binary.PutUvarint(w.scratch[:], v)
	_, _ = w.Write(w.scratch[:n])
}

// WriteVarint writes v zig-zag encoded as a varint.
func (w *Writer) WriteVarint(v int64) {
	if w.err != nil {
		return
	}
	n := binary.PutVarint(w.scratch[:], v)
	_, _ = w.Write(w.scratch[:n])
}

// WriteFloat32 writes the IEEE bits of v with a fixed width.
func (w *Writer) WriteFloat32(v float32) { w.WriteUint32(math.Float32bits(v)) }

// WriteFloat64 writes the IEEE bits of v with a fixed width.
func (w *Writer) WriteFloat64(v float64) { w.WriteUint64(math.Float64bits(v)) }

// WriteLenString writes a uvarint length followed by the bytes of s.
func (w *Writer) WriteLenString(s string) {
	w.WriteUvarint(uint64(len(s)))
	_, _ = w.WriteString(s)
}

// WriteLenBytes writes a uvarint length followed by b.
func (w *Writer) WriteLenBytes(b []byte) {
	w.WriteUvarint(uint64(len(b)))
	w.WriteBytes(b)
}
