package graphcodec

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// --- Mocks and Helpers ---

type mockPayload struct {
	ID   uint32
	Data [4]byte
}

type mockCodec = Fixed[mockPayload]

// mockFlushingWriter is not one of the recognised buffer types, so Writer wraps it in bufio.
type mockFlushingWriter struct {
	bytes.Buffer
	flushed bool
}

func (m *mockFlushingWriter) Flush() error {
	m.flushed = true
	return nil
}

// --- Writer Test Suite ---

type WriterTestSuite struct {
	suite.Suite
	buf    *bytes.Buffer
	writer *Writer
}

func (s *WriterTestSuite) SetupTest() {
	s.buf = &bytes.Buffer{}
	s.writer, _ = NewWriter(s.buf)
}

func (s *WriterTestSuite) TestConstructors() {
	s.T().Run("NilWriter", func(t *testing.T) {
		_, err := NewWriter(nil)
		assert.ErrorIs(t, err, ErrNilIO)
	})
}

func (s *WriterTestSuite) TestBasicWrites() {
	codec := &mockCodec{mockPayload{ID: 0xDEADBEEF, Data: [4]byte{1, 2, 3, 4}}}

	s.writer.WriteByte(0xAA)
	s.writer.WriteUint16(0xBBCC)
	s.writer.WriteUint32(0xDDEEFF00)
	s.writer.WriteUint64(0x0102030405060708)
	s.writer.WriteBytes([]byte{5, 6, 7})
	s.writer.WriteZeros(2)
	s.writer.WriteFrom(codec)

	n, err := s.writer.Result()
	s.Require().NoError(err)
	s.Assert().EqualValues(1+2+4+8+3+2+8, n)
	s.Assert().EqualValues(s.buf.Len(), s.writer.Count())

	expected := []byte{
		0xAA,
		0xBB, 0xCC,
		0xDD, 0xEE, 0xFF, 0x00,
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		5, 6, 7,
		0, 0,
		0xDE, 0xAD, 0xBE, 0xEF, 1, 2, 3, 4,
	}
	s.Assert().Equal(expected, s.buf.Bytes())
}

func (s *WriterTestSuite) TestVarints() {
	s.writer.WriteUvarint(300)
	s.writer.WriteVarint(-3)
	s.writer.WriteVarint(3)
	s.writer.WriteLenString("hi")
	s.writer.WriteLenBytes(nil)

	_, err := s.writer.Result()
	s.Require().NoError(err)
	s.Assert().Equal([]byte{0xAC, 0x02, 0x05, 0x06, 0x02, 'h', 'i', 0x00}, s.buf.Bytes())
	s.Assert().Equal(2, UvarintSize(uint64(300)))
	s.Assert().Equal(1, VarintSize(int64(-3)))
	s.Assert().Equal(1, UvarintSize(uint8(0)))
}

func (s *WriterTestSuite) TestAlign() {
	s.writer.WriteBytes([]byte{1, 2, 3})
	s.writer.Align(8)
	n, err := s.writer.Result()
	s.Require().NoError(err)
	s.Assert().EqualValues(8, n)
	s.Assert().Equal([]byte{1, 2, 3, 0, 0, 0, 0, 0}, s.buf.Bytes())
}

func (s *WriterTestSuite) TestErrorHandling() {
	s.T().Run("ShortBufferError", func(t *testing.T) {
		fixedBuf := make([]byte, 5)
		writer, _ := NewWriter(NewBytesWriter(fixedBuf))

		writer.WriteUint32(0x11223344)
		writer.WriteUint32(0xAABBCCDD)

		_, err := writer.Result()
		require.Error(t, err)
		assert.ErrorIs(t, err, io.ErrShortWrite)
		assert.Equal(t, []byte{0x11, 0x22, 0x33, 0x44, 0xAA}, fixedBuf)
		assert.EqualValues(t, 5, writer.Count())
	})

	s.T().Run("WriteAfterErrorIsNoOp", func(t *testing.T) {
		fixedBuf := make([]byte, 5)
		writer, _ := NewWriter(NewBytesWriter(fixedBuf))

		writer.WriteUint32(0x11223344)
		writer.WriteUint32(0xAABBCCDD)
		firstErr := writer.Err()
		require.ErrorIs(t, firstErr, io.ErrShortWrite)

		writer.WriteByte(0xFF)
		writer.WriteUvarint(1)
		writer.Flush()

		assert.Equal(t, firstErr, writer.Err(), "the latched error should not change")
		assert.EqualValues(t, 5, writer.Count())
	})

	s.T().Run("FailKeepsFirstError", func(t *testing.T) {
		writer, _ := NewWriter(&bytes.Buffer{})
		writer.Fail(ErrCorruptStream)
		writer.Fail(ErrTruncatedData)
		assert.ErrorIs(t, writer.Err(), ErrCorruptStream)
	})
}

func (s *WriterTestSuite) TestFlush() {
	mock := &mockFlushingWriter{}
	writer, _ := NewWriterSize(mock, 128)
	writer.WriteByte(0xAA)

	s.Assert().True(writer.w.(*bufioWriterAdapter).Buffered() > 0)
	s.Assert().Zero(mock.Len())

	writer.Flush()

	s.Assert().False(mock.flushed, "bufio flushes into Write, not into the target's Flush")
	s.Assert().Zero(writer.w.(*bufioWriterAdapter).Buffered())
	s.Assert().Equal(1, mock.Buffer.Len())
}

func TestWriter(t *testing.T) {
	suite.Run(t, new(WriterTestSuite))
}

// --- Reader Test Suite ---

type ReaderTestSuite struct {
	suite.Suite
}

func (s *ReaderTestSuite) TestConstructors() {
	s.T().Run("NilReader", func(t *testing.T) {
		_, err := NewReader(nil)
		assert.ErrorIs(t, err, ErrNilIO)
	})
}

func (s *ReaderTestSuite) TestSuccessfulReads() {
	data := []byte{
		0xAA,
		0xBB, 0xCC,
		0xDD, 0xEE, 0xFF, 0x00,
		0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08,
		0x11, 0x22, 0x33,
	}
	r, _ := NewReader(bytes.NewReader(data))

	var v16 uint16
	var v32 uint32
	var v64 uint64
	v8, _ := r.ReadByte()
	r.ReadUint16(&v16)
	r.ReadUint32(&v32)
	r.ReadUint64(&v64)
	read := r.ReadBytes(3)

	s.Require().NoError(r.Err())
	s.Assert().Equal(uint8(0xAA), v8)
	s.Assert().Equal(uint16(0xBBCC), v16)
	s.Assert().Equal(uint32(0xDDEEFF00), v32)
	s.Assert().Equal(uint64(0x0102030405060708), v64)
	s.Assert().Equal([]byte{0x11, 0x22, 0x33}, read)
	s.Assert().Equal(0, r.Remaining())

	// the next read is a clean EOF.
	r.Read(make([]byte, 1))
	s.Assert().ErrorIs(r.Err(), io.EOF)
	s.Assert().True(r.IsEOF())
}

func (s *ReaderTestSuite) TestVarints() {
	r, _ := NewReader(NewBytesReader([]byte{0xAC, 0x02, 0x05, 0x06, 0x02, 'h', 'i', 0x00}))
	s.Assert().EqualValues(300, r.ReadUvarint())
	s.Assert().EqualValues(-3, r.ReadVarint())
	s.Assert().EqualValues(3, r.ReadVarint())
	s.Assert().Equal("hi", r.ReadLenString())
	b := r.ReadLenBytes()
	s.Require().NoError(r.Err())
	s.Assert().NotNil(b)
	s.Assert().Empty(b)
}

func (s *ReaderTestSuite) TestErrorHandling() {
	s.T().Run("ReadPastEOF", func(t *testing.T) {
		r, _ := NewReader(bytes.NewReader([]byte{0x01, 0x02, 0x03}))
		var v32 uint32
		r.ReadUint32(&v32)

		assert.ErrorIs(t, r.Err(), io.ErrUnexpectedEOF)
		assert.False(t, r.IsEOF(), "a partial value is not a clean EOF")
	})

	s.T().Run("ReadAfterErrorIsNoOp", func(t *testing.T) {
		r, _ := NewReader(bytes.NewReader([]byte{0x01, 0x02, 0x03}))
		var v32 uint32
		var v16 uint16

		r.ReadUint32(&v32)
		firstErr := r.Err()
		require.Error(t, firstErr)

		r.ReadUint16(&v16)
		assert.Equal(t, firstErr, r.Err())
		assert.Zero(t, v16)
	})

	s.T().Run("TruncatedVarint", func(t *testing.T) {
		r, _ := NewReader(NewBytesReader([]byte{0x80}))
		r.ReadUvarint()
		assert.ErrorIs(t, r.Err(), io.ErrUnexpectedEOF)
	})

	s.T().Run("VarintOverflow", func(t *testing.T) {
		r, _ := NewReader(NewBytesReader(bytes.Repeat([]byte{0xFF}, 11)))
		r.ReadUvarint()
		assert.ErrorIs(t, r.Err(), ErrVarintOverflow)
	})

	s.T().Run("LengthBeyondInput", func(t *testing.T) {
		r, _ := NewReader(NewBytesReader([]byte{0x05, 'a'}))
		assert.Empty(t, r.ReadLenString())
		assert.ErrorIs(t, r.Err(), ErrTruncatedData)
	})

	s.T().Run("LengthBeyondLimitOnStreams", func(t *testing.T) {
		r, _ := NewReader(strings.NewReader("\x80\x80\x80\x80\x08"))
		assert.Zero(t, r.ReadLen())
		assert.ErrorIs(t, r.Err(), ErrTruncatedData)
	})
}

func (s *ReaderTestSuite) TestAlign() {
	r, _ := NewReader(NewBytesReader([]byte{1, 2, 3, 0, 0, 0, 0, 0, 9}))
	r.ReadBytes(3)
	r.Align(8)
	b, err := r.ReadByte()
	s.Require().NoError(err)
	s.Assert().Equal(byte(9), b)
	s.Assert().EqualValues(9, r.Count())
}

func TestReader(t *testing.T) {
	suite.Run(t, new(ReaderTestSuite))
}

// --- Standalone Codec Tests ---

func TestFixedSizeCodec_SizeCache(t *testing.T) {
	c := &mockCodec{mockPayload{ID: 1}}
	expectedSize := 8

	assert.Equal(t, expectedSize, c.Size())
	assert.Equal(t, expectedSize, c.Size())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c2 := &mockCodec{mockPayload{ID: 2}}
			assert.Equal(t, expectedSize, c2.Size())
		}()
	}
	wg.Wait()
}

func TestFixedSizeCodec_Errors(t *testing.T) {
	t.Run("MarshalToShortBuffer", func(t *testing.T) {
		c := &mockCodec{}
		_, err := c.MarshalTo(make([]byte, c.Size()-1))
		assert.ErrorIs(t, err, io.ErrShortWrite)
	})

	t.Run("UnmarshalWithTruncatedData", func(t *testing.T) {
		c := &mockCodec{}
		validData, _ := c.MarshalBinary()
		err := c.UnmarshalBinary(validData[:len(validData)-1])
		assert.ErrorIs(t, err, ErrTruncatedData)
	})

	t.Run("UnmarshalWithTrailingData", func(t *testing.T) {
		c := &mockCodec{}
		validData, _ := c.MarshalBinary()
		err := c.UnmarshalBinary(append(validData, 0x01, 0x02, 0x03))
		require.ErrorIs(t, err, ErrTrailingData)
		assert.Contains(t, err.Error(), "non-zero byte")
	})

	t.Run("UnmarshalWithZeroPadding", func(t *testing.T) {
		c := &mockCodec{}
		src := &mockCodec{mockPayload{ID: 7}}
		validData, _ := src.MarshalBinary()
		require.NoError(t, c.UnmarshalBinary(append(validData, 0, 0, 0)))
		assert.Equal(t, uint32(7), c.Payload.ID)
	})
}

func TestPeekableReader(t *testing.T) {
	pr := PeekReader(strings.NewReader("GRPHrest"))
	assert.Same(t, pr, PeekReader(pr))

	magic, err := pr.Peek(4)
	require.NoError(t, err)
	assert.Equal(t, "GRPH", string(magic))

	all, err := io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, "GRPHrest", string(all))

	_, err = PeekReader(strings.NewReader("GR")).Peek(4)
	assert.ErrorIs(t, err, io.EOF)
}

func TestDiscard(t *testing.T) {
	r := strings.NewReader(strings.Repeat("x", BUFFER_SIZE+10))
	n, err := Discard(r, BUFFER_SIZE+5)
	require.NoError(t, err)
	assert.EqualValues(t, BUFFER_SIZE+5, n)
	assert.Equal(t, 5, r.Len())

	_, err = Discard(r, -1)
	assert.ErrorIs(t, err, ErrDiscardNegative)
}
