package graphcodec

import (
	"bytes"
	"fmt"
	"io"
)

const (
	handleMagic = "GRPH"

	// HandleVersion is the handle format written by this package.
	HandleVersion uint16 = 1

	// FlagStringSharing marks payloads whose strings go through a string table.
	FlagStringSharing uint16 = 1 << 0

	knownFlags = FlagStringSharing
)

// handleHeader is the fixed big-endian prefix of a serialized handle.
type handleHeader struct {
	Magic       [4]byte
	Version     uint16
	Flags       uint16
	Fingerprint Fingerprint
	RootTag     int32
	Identities  uint32
	Length      uint64
}

// Handle is an immutable captured object graph. It can be decoded any
// number of times; every decode yields fresh instances.
type Handle struct {
	hdr  Fixed[handleHeader]
	data []byte
}

var _ Codec = (*Handle)(nil)

func newHandle(fp Fingerprint, flags uint16, rootTag int32, identities uint32, data []byte) *Handle {
	h := &Handle{data: data}
	p := &h.hdr.Payload
	copy(p.Magic[:], handleMagic)
	p.Version = HandleVersion
	p.Flags = flags
	p.Fingerprint = fp
	p.RootTag = rootTag
	p.Identities = identities
	p.Length = uint64(len(data))
	return h
}

// ParseHandle decodes a handle from its binary form.
func ParseHandle(b []byte) (*Handle, error) {
	h := new(Handle)
	if err := h.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return h, nil
}

// ReadHandle reads exactly one handle from r.
func ReadHandle(r io.Reader) (*Handle, error) {
	h := new(Handle)
	if _, err := h.ReadFrom(r); err != nil {
		return nil, err
	}
	return h, nil
}

// Fingerprint of the binding table that produced the handle.
func (h *Handle) Fingerprint() Fingerprint { return h.hdr.Payload.Fingerprint }

// RootTag is the tag of the root binding, or -1 for a null root.
func (h *Handle) RootTag() int { return int(h.hdr.Payload.RootTag) }

// Identities is the number of identity-tracked values in the graph.
func (h *Handle) Identities() int { return int(h.hdr.Payload.Identities) }

func (h *Handle) Version() uint16 { return h.hdr.Payload.Version }
func (h *Handle) Flags() uint16   { return h.hdr.Payload.Flags }

// StringSharing reports whether the payload uses a string table.
func (h *Handle) StringSharing() bool { return h.Flags()&FlagStringSharing != 0 }

// Len returns the payload length.
func (h *Handle) Len() int { return len(h.data) }

// Bytes returns a copy of the payload.
func (h *Handle) Bytes() []byte { return bytes.Clone(h.data) }

// Size returns the length of the binary form.
func (h *Handle) Size() int { return h.hdr.Size() + len(h.data) }

func (h *Handle) WriteTo(writer io.Writer) (int64, error) {
	n, err := h.hdr.WriteTo(writer)
	if err != nil {
		return n, err
	}
	m, err := writer.Write(h.data)
	n += int64(m)
	if err == nil && m < len(h.data) {
		err = io.ErrShortWrite
	}
	return n, err
}

// ReadFrom reads the header and payload of one handle and nothing more.
// It is meant for a zero Handle; handles are not modified once decoded.
func (h *Handle) ReadFrom(reader io.Reader) (int64, error) {
	var hdr Fixed[handleHeader]
	n, err := hdr.ReadFrom(reader)
	if err != nil {
		return n, err
	}
	p := &hdr.Payload
	if string(p.Magic[:]) != handleMagic {
		return n, fmt.Errorf("%w: %q", ErrBadMagic, p.Magic[:])
	}
	if p.Version != HandleVersion {
		return n, fmt.Errorf("%w: %d", ErrUnsupportedVersion, p.Version)
	}
	if p.Flags&^knownFlags != 0 {
		return n, fmt.Errorf("%w: unknown flags %#04x", ErrUnsupportedVersion, p.Flags&^knownFlags)
	}
	limit := uint64(maxLenPrefix)
	rem := remaining(reader)
	known := rem >= 0
	if known {
		limit = uint64(rem)
	}
	if p.Length > limit {
		return n, fmt.Errorf("%w: payload length %d exceeds %d", ErrTruncatedData, p.Length, limit)
	}
	data, err := readPayload(reader, p.Length, known)
	n += int64(len(data))
	if err != nil {
		return n, fmt.Errorf("%w: payload: %w", ErrTruncatedData, err)
	}
	h.hdr = hdr
	h.data = data
	return n, nil
}

// readPayload reads exactly length bytes. When the source cannot tell how much
// is left, the buffer grows with the data actually read instead of trusting
// the header.
func readPayload(reader io.Reader, length uint64, known bool) ([]byte, error) {
	if known {
		data := make([]byte, length)
		m, err := io.ReadFull(reader, data)
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return data[:m], err
	}
	data, err := io.ReadAll(io.LimitReader(reader, int64(length)))
	if err == nil && uint64(len(data)) < length {
		err = io.ErrUnexpectedEOF
	}
	return data, err
}

func (h *Handle) MarshalBinary() ([]byte, error) {
	return MarshalBinaryGeneric(h)
}

func (h *Handle) UnmarshalBinary(data []byte) error {
	return UnmarshalBinaryGeneric(h, data)
}

func (h *Handle) MarshalTo(buf []byte) (int, error) {
	return MarshalToGeneric(h, buf)
}

func (h *Handle) String() string {
	return fmt.Sprintf("Handle{fingerprint=%s root=%d identities=%d bytes=%d}",
		h.Fingerprint(), h.RootTag(), h.Identities(), h.Len())
}
