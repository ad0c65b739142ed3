package graphcodec

import (
	"encoding"
	"io"
)

// Sizer reports the encoded size of a value, so buffers can be sized before writing.
type Sizer interface {
	Size() int
}

// Marshaler encodes a value as a byte slice, into a stream or into a
// caller-owned buffer.
type Marshaler interface {
	encoding.BinaryMarshaler
	io.WriterTo

	// MarshalTo encodes into buf and fails with io.ErrShortWrite when buf is too small.
	MarshalTo(buf []byte) (int, error)
}

// Unmarshaler decodes a value from a byte slice or a stream.
type Unmarshaler interface {
	encoding.BinaryUnmarshaler
	io.ReaderFrom
}

// Codec is implemented by the framed artifacts of this package: Handle,
// Bundle and the fixed headers they start with.
type Codec interface {
	Sizer
	Marshaler
	Unmarshaler
}
