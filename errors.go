package graphcodec

import (
	"errors"
	"strings"
)

var (
	// ErrNilIO indicates that NewReader/NewWriter was called with a nil io.Reader/io.Writer.
	ErrNilIO = errors.New("graphcodec: NewReader/NewWriter called with a nil io.Reader/io.Writer")

	// ErrAlreadyBuffered indicates that NewReader/NewWriter was called with an already-buffered
	// reader/writer, which would lead to unpredictable behavior and performance issues.
	ErrAlreadyBuffered = errors.New("graphcodec: reader or writer is already buffered")

	// ErrInvalidWrite indicates that an io.Writer returned an invalid (negative) count from Write.
	ErrInvalidWrite = errors.New("graphcodec: writer returned invalid count from Write")

	// ErrInvalidRead indicates that an io.Reader returned an invalid (negative or outbound) count from Read.
	ErrInvalidRead = errors.New("graphcodec: reader returned invalid count from Read")

	// ErrDiscardNegative indicates a Discard operation was attempted with a negative byte count.
	ErrDiscardNegative = errors.New("graphcodec: cannot discard negative number of bytes")

	// ErrTrailingData is returned when bytes remain after the root record of a handle
	// or non-zero padding follows a fixed record.
	ErrTrailingData = errors.New("graphcodec: trailing data found after decoding")

	// ErrTruncatedData indicates that a read operation could not complete because the
	// underlying data source ended before all expected bytes were read.
	ErrTruncatedData = errors.New("graphcodec: truncated data")

	// ErrVarintOverflow indicates a varint longer than 64 bits.
	ErrVarintOverflow = errors.New("graphcodec: varint overflows 64 bits")

	// ErrNoBinding is a configuration error: no binding in the table accepts the runtime type.
	ErrNoBinding = errors.New("graphcodec: no binding for type")

	// ErrDuplicateBinding is returned by Build when two exact-type bindings claim the same type.
	ErrDuplicateBinding = errors.New("graphcodec: type already bound")

	// ErrUnsupportedType is reported by bindings registered through Unsupported.
	ErrUnsupportedType = errors.New("graphcodec: unsupported type")

	// ErrUnsupportedBean indicates a type that the bean codec cannot construct or populate.
	ErrUnsupportedBean = errors.New("graphcodec: type cannot be handled by the bean codec")

	// ErrCorruptStream signals bytes that were not produced by a matching encoder.
	ErrCorruptStream = errors.New("graphcodec: corrupt stream")

	// ErrUnresolvedReference is a back-reference to an identity whose instance is not available yet.
	ErrUnresolvedReference = errors.New("graphcodec: back-reference to unresolved identity")

	// ErrFingerprintMismatch is returned before decoding when a handle was produced
	// by a different binding table.
	ErrFingerprintMismatch = errors.New("graphcodec: binding table fingerprint mismatch")

	// ErrDepthExceeded protects the decoder and encoder against unbounded recursion.
	ErrDepthExceeded = errors.New("graphcodec: maximum graph depth exceeded")

	// ErrSessionState is returned when a session is used outside its lifecycle.
	ErrSessionState = errors.New("graphcodec: session used in wrong state")

	// ErrBadMagic indicates that the input is not a serialized handle.
	ErrBadMagic = errors.New("graphcodec: bad handle magic")

	// ErrUnsupportedVersion indicates a handle written by a newer format version.
	ErrUnsupportedVersion = errors.New("graphcodec: unsupported handle version")

	// ErrTypeMismatch is returned when a decoded value cannot be assigned to the expected type.
	ErrTypeMismatch = errors.New("graphcodec: decoded value has unexpected type")
)

// PathError records where in the object graph a failure happened.
type PathError struct {
	Path []string
	Err  error
}

func (e *PathError) Error() string {
	return "graphcodec: at " + strings.Join(e.Path, ".") + ": " + e.Err.Error()
}

func (e *PathError) Unwrap() error { return e.Err }

// maxPathSegments caps PathError.Path; deeper segments collapse into "...".
const maxPathSegments = 32

// withPath prepends a path segment, flattening nested PathErrors.
func withPath(segment string, err error) error {
	if err == nil {
		return nil
	}
	if pe, ok := err.(*PathError); ok {
		path := make([]string, 0, min(len(pe.Path)+1, maxPathSegments))
		path = append(path, segment)
		if len(pe.Path) < maxPathSegments {
			path = append(path, pe.Path...)
		} else {
			path = append(path, pe.Path[:maxPathSegments-2]...)
			path = append(path, "...")
		}
		pe.Path = path
		return pe
	}
	return &PathError{Path: []string{segment}, Err: err}
}
