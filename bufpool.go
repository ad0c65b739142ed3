package graphcodec

import (
	"bytes"
	"sync"
)

// bytesBufPool holds encoding buffers. A session writes into a pooled buffer
// and copies the result into the handle only once encoding succeeded.
var bytesBufPool = sync.Pool{
	New: func() any {
		return bytes.NewBuffer(make([]byte, 0, BUFFER_SIZE))
	},
}
