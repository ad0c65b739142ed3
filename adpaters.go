package graphcodec

import (
	"bufio"
	"bytes"
)

// Adapters give the standard library buffers the method set Reader and Writer
// expect. In-memory sources also report Available so length prefixes can be
// checked before allocating.
type (
	bytesReaderAdapter       struct{ *bytes.Reader }
	bytesBufferWriterAdapter struct{ *bytes.Buffer }
	bytesBufferReaderAdapter struct{ *bytes.Buffer }
	bufioWriterAdapter       struct{ *bufio.Writer }
	bufioReaderAdapter       struct{ *bufio.Reader }
)

func (r *bytesReaderAdapter) Close() error       { return nil }
func (r *bufioReaderAdapter) Close() error       { return nil }
func (w *bufioWriterAdapter) Close() error       { return nil }
func (r *bytesBufferReaderAdapter) Close() error { return nil }
func (w *bytesBufferWriterAdapter) Close() error { return nil }
func (w *bytesBufferWriterAdapter) Flush() error { return nil }
func (w *bytesBufferWriterAdapter) Size() int    { return w.Available() }
func (r *bytesBufferReaderAdapter) Size() int    { return r.Len() }
func (r *bytesBufferReaderAdapter) Available() int {
	return r.Len()
}
func (r *bytesReaderAdapter) Size() int      { return int(r.Reader.Size()) }
func (r *bytesReaderAdapter) Available() int { return r.Len() }
