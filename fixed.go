package graphcodec

import (
	"encoding/binary"
	"io"
	"reflect"

	"github.com/puzpuzpuz/xsync/v4"
)

// sizeCache keeps binary.Size out of the hot path. Handle and bundle headers
// are read and written far more often than their layout changes.
var sizeCache = xsync.NewMap[reflect.Type, int]()

// Fixed is a Codec for a struct made only of fixed-size fields, written in
// Order. Handle and bundle headers use it.
//
// Payload must not contain slices, maps or strings; binary.Size rejects them.
type Fixed[Payload any] struct {
	Payload Payload
}

var _ Codec = (*Fixed[struct{}])(nil)

// Size returns the encoded size of Payload.
func (c *Fixed[Payload]) Size() int {
	t := reflect.TypeFor[Payload]()
	if size, ok := sizeCache.Load(t); ok {
		return size
	}
	size := binary.Size(&c.Payload)
	sizeCache.Store(t, size)
	return size
}

// MarshalBinary allocates. Prefer MarshalTo or WriteTo on hot paths.
func (c *Fixed[Payload]) MarshalBinary() ([]byte, error) {
	buf := make([]byte, c.Size())
	if _, err := binary.Encode(buf, Order, &c.Payload); err != nil {
		return nil, io.ErrShortWrite
	}
	return buf, nil
}

// UnmarshalBinary decodes Payload and tolerates only zero padding after it.
func (c *Fixed[Payload]) UnmarshalBinary(data []byte) error {
	n, err := binary.Decode(data, Order, &c.Payload)
	if err != nil {
		// binary.Decode only fails on a short buffer.
		return ErrTruncatedData
	}
	if len(data) > n {
		return CheckBufferNotZeros(data[n:])
	}
	return nil
}

func (c *Fixed[Payload]) ReadFrom(r io.Reader) (int64, error) {
	if err := binary.Read(r, Order, &c.Payload); err != nil {
		return 0, err
	}
	return int64(c.Size()), nil
}

func (c *Fixed[Payload]) WriteTo(w io.Writer) (int64, error) {
	if err := binary.Write(w, Order, &c.Payload); err != nil {
		return 0, err
	}
	return int64(c.Size()), nil
}

// MarshalTo encodes into p without allocating.
func (c *Fixed[Payload]) MarshalTo(p []byte) (int, error) {
	n, err := binary.Encode(p, Order, &c.Payload)
	if err != nil {
		return n, io.ErrShortWrite
	}
	return n, nil
}
