package graphcodec

import (
	"fmt"
	"io"
)

type sizedWriterTo interface {
	Size() int
	io.WriterTo
}

// MarshalBinaryGeneric implements encoding.BinaryMarshaler on top of Size and WriteTo.
func MarshalBinaryGeneric[T sizedWriterTo](v T) ([]byte, error) {
	expected := v.Size()
	w := NewBytesWriter(make([]byte, expected))
	n, err := v.WriteTo(w)
	if err != nil {
		return nil, err
	}
	if n < int64(expected) {
		return nil, fmt.Errorf("%w: expected %d bytes, wrote %d", ErrTruncatedData, expected, n)
	}
	return w.Bytes(), nil
}

// UnmarshalBinaryGeneric implements encoding.BinaryUnmarshaler on top of
// ReadFrom. Anything after the value other than zero padding is rejected.
func UnmarshalBinaryGeneric[T interface {
	io.ReaderFrom
	Size() int
}](v T, data []byte) error {
	r := NewBytesReader(data)
	n, err := v.ReadFrom(r)
	if err != nil {
		return err
	}
	if expected := v.Size(); n < int64(expected) {
		return fmt.Errorf("%w: expected %d bytes, read %d", ErrTruncatedData, expected, n)
	}
	if len(data) > int(n) {
		return CheckBufferNotZeros(data[n:])
	}
	return nil
}

// MarshalToGeneric implements MarshalTo on top of Size and WriteTo.
func MarshalToGeneric[T sizedWriterTo](v T, p []byte) (int, error) {
	size := v.Size()
	if len(p) < size {
		return 0, io.ErrShortWrite
	}
	w := NewBytesWriter(p)
	n, err := v.WriteTo(w)
	if err != nil {
		return int(n), err
	}
	if n < int64(size) {
		return int(n), io.ErrShortWrite
	}
	return int(n), nil
}
