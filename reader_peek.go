package graphcodec

import "io"

// PeekableReader lets callers look at the leading bytes of a stream, for
// instance a magic number, before handing the whole stream to a decoder.
type PeekableReader struct {
	R io.Reader // underlying reader
	B []byte    // peeked, not yet consumed bytes
}

// PeekReader wraps r. A PeekableReader is returned as is.
func PeekReader(r io.Reader) *PeekableReader {
	if pr, ok := r.(*PeekableReader); ok {
		return pr
	}
	return &PeekableReader{R: r}
}

// Peek returns the next n bytes without consuming them. Fewer bytes are
// returned together with the error that cut the read short.
func (r *PeekableReader) Peek(n int) ([]byte, error) {
	if len(r.B) >= n {
		return r.B[:n], nil
	}
	i := len(r.B)
	r.B = append(r.B, make([]byte, n-i)...)

	var err error
	for i < n {
		read, er := r.R.Read(r.B[i:])
		i += read
		if er != nil {
			err = er
			break
		}
	}
	r.B = r.B[:i]
	return r.B, err
}

// Read drains the peeked bytes before reading from R.
func (r *PeekableReader) Read(p []byte) (int, error) {
	n := copy(p, r.B)
	r.B = r.B[n:]
	if n == len(p) {
		return n, nil
	}
	read, err := r.R.Read(p[n:])
	n += read
	if err == io.EOF && n > 0 {
		err = nil
	}
	return n, err
}

// Close closes R when it is an io.Closer.
func (r *PeekableReader) Close() error {
	if c, ok := r.R.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
