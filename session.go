package graphcodec

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
)

type options struct {
	shareStrings bool
	maxDepth     int
	logger       *slog.Logger
	owner        any
	rebind       func(ctx context.Context, owner, v any) error
}

// Option configures a Serializer.
type Option func(*options)

// WithStringSharing writes each distinct string once per handle and refers
// to repeats by index.
func WithStringSharing() Option {
	return func(o *options) { o.shareStrings = true }
}

// WithMaxDepth bounds record nesting for untrusted input. Values below 1
// remove the bound.
func WithMaxDepth(n int) Option {
	return func(o *options) { o.maxDepth = max(n, DefaultMaxDepth) }
}

// WithLogger sets the logger for session diagnostics. Sessions log at debug level only.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithOwner sets the outermost owner visible to codecs through Owner.
func WithOwner(owner any) Option {
	return func(o *options) { o.owner = owner }
}

// WithRebind registers a callback run on every decoded root before it is
// returned. It receives the current owner, so restored values can be
// attached to the context they are materialized in.
func WithRebind(fn func(ctx context.Context, owner, v any) error) Option {
	return func(o *options) { o.rebind = fn }
}

// SessionState is the lifecycle position of an encoding or decoding session.
type SessionState uint8

const (
	SessionUnopened SessionState = iota
	SessionEncoding
	SessionFinalized
	SessionDecoding
	SessionMaterialized
	SessionFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionUnopened:
		return "unopened"
	case SessionEncoding:
		return "encoding"
	case SessionFinalized:
		return "finalized"
	case SessionDecoding:
		return "decoding"
	case SessionMaterialized:
		return "materialized"
	case SessionFailed:
		return "failed"
	}
	return fmt.Sprintf("SessionState(%d)", uint8(s))
}

// Serializer turns root values into handles and back using one binding
// table. It holds no per-session state and is safe for concurrent use.
type Serializer struct {
	bindings *Bindings
	opts     options
}

// NewSerializer creates a serializer over b.
func NewSerializer(b *Bindings, opts ...Option) *Serializer {
	s := &Serializer{
		bindings: b,
		opts: options{
			maxDepth: DefaultMaxDepth,
			logger:   slog.New(slog.DiscardHandler),
		},
	}
	for _, opt := range opts {
		opt(&s.opts)
	}
	return s
}

// Bindings returns the table of the serializer.
func (s *Serializer) Bindings() *Bindings { return s.bindings }

// Serialize captures root into a handle.
func (s *Serializer) Serialize(root any) (*Handle, error) {
	return s.SerializeContext(context.Background(), root)
}

// SerializeContext captures root into a handle. If ctx is cancelled before
// the walk completes the partial output is dropped.
func (s *Serializer) SerializeContext(ctx context.Context, root any) (*Handle, error) {
	return s.NewEncodingSession().Encode(ctx, root)
}

// Deserialize materializes a fresh copy of the graph in h.
func (s *Serializer) Deserialize(h *Handle) (any, error) {
	return s.DeserializeContext(context.Background(), h)
}

// DeserializeContext materializes a fresh copy of the graph in h.
func (s *Serializer) DeserializeContext(ctx context.Context, h *Handle) (any, error) {
	return s.NewDecodingSession(h).Decode(ctx)
}

// DeserializeAs materializes h and converts the root to T.
func DeserializeAs[T any](ctx context.Context, s *Serializer, h *Handle) (T, error) {
	v, err := s.DeserializeContext(ctx, h)
	if err != nil {
		var zero T
		return zero, err
	}
	return As[T](v)
}

// EncodingSession captures exactly one root.
type EncodingSession struct {
	s      *Serializer
	state  SessionState
	handle *Handle
}

// NewEncodingSession opens a session in the unopened state.
func (s *Serializer) NewEncodingSession() *EncodingSession {
	return &EncodingSession{s: s}
}

// State returns the current lifecycle state.
func (e *EncodingSession) State() SessionState { return e.state }

// Handle returns the produced handle once the session is finalized.
func (e *EncodingSession) Handle() *Handle { return e.handle }

// Encode walks root and finalizes the session.
func (e *EncodingSession) Encode(ctx context.Context, root any) (*Handle, error) {
	if e.state != SessionUnopened {
		return nil, fmt.Errorf("%w: encode in state %v", ErrSessionState, e.state)
	}
	e.state = SessionEncoding
	h, err := e.encode(ctx, root)
	log := e.s.opts.logger
	if err != nil {
		e.state = SessionFailed
		log.DebugContext(ctx, "graph serialization failed", "error", err)
		return nil, err
	}
	e.state = SessionFinalized
	e.handle = h
	log.DebugContext(ctx, "graph serialized",
		"bytes", h.Len(),
		"identities", h.Identities(),
		"root_tag", h.RootTag(),
		"fingerprint", h.Fingerprint().String())
	return h, nil
}

func (e *EncodingSession) encode(ctx context.Context, root any) (*Handle, error) {
	s := e.s
	rootTag, err := s.bindings.TagOf(root)
	if err != nil {
		return nil, err
	}

	buf := bytesBufPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer bytesBufPool.Put(buf)

	w, err := NewWriter(buf)
	if err != nil {
		return nil, err
	}
	wc := newWriteContext(ctx, w, s.bindings, &s.opts)
	if err := wc.Write(root); err != nil {
		return nil, err
	}
	if _, err := w.Result(); err != nil {
		return nil, err
	}
	// the walk may finish after a cancellation that no Write observed.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if wc.Identities() > math.MaxUint32 {
		return nil, fmt.Errorf("graphcodec: %d identities exceed the handle limit", wc.Identities())
	}

	var flags uint16
	if s.opts.shareStrings {
		flags |= FlagStringSharing
	}
	return newHandle(s.bindings.Fingerprint(), flags, int32(rootTag), uint32(wc.Identities()), bytes.Clone(buf.Bytes())), nil
}

// DecodingSession materializes one handle once.
type DecodingSession struct {
	s      *Serializer
	handle *Handle
	state  SessionState
	root   any
}

// NewDecodingSession opens a session over h in the finalized state.
func (s *Serializer) NewDecodingSession(h *Handle) *DecodingSession {
	return &DecodingSession{s: s, handle: h, state: SessionFinalized}
}

// State returns the current lifecycle state.
func (d *DecodingSession) State() SessionState { return d.state }

// Root returns the decoded root once the session is materialized.
func (d *DecodingSession) Root() any { return d.root }

// Decode replays the handle. The fingerprint is checked before any byte of
// the payload is read.
func (d *DecodingSession) Decode(ctx context.Context) (any, error) {
	if d.state != SessionFinalized {
		return nil, fmt.Errorf("%w: decode in state %v", ErrSessionState, d.state)
	}
	d.state = SessionDecoding
	v, err := d.decode(ctx)
	log := d.s.opts.logger
	if err != nil {
		d.state = SessionFailed
		log.DebugContext(ctx, "graph deserialization failed", "error", err)
		return nil, err
	}
	d.state = SessionMaterialized
	d.root = v
	log.DebugContext(ctx, "graph deserialized",
		"bytes", d.handle.Len(),
		"identities", d.handle.Identities())
	return v, nil
}

func (d *DecodingSession) decode(ctx context.Context) (any, error) {
	s, h := d.s, d.handle
	if h == nil {
		return nil, fmt.Errorf("%w: nil handle", ErrSessionState)
	}
	if want := s.bindings.Fingerprint(); h.Fingerprint() != want {
		return nil, fmt.Errorf("%w: handle %s, table %s", ErrFingerprintMismatch, h.Fingerprint(), want)
	}

	r, err := NewReader(NewBytesReader(h.data))
	if err != nil {
		return nil, err
	}
	rc := newReadContext(ctx, r, s.bindings, &s.opts, h.StringSharing())
	v, err := rc.Read()
	if err != nil {
		return nil, err
	}
	if rem := r.Remaining(); rem > 0 {
		return nil, fmt.Errorf("%w: %d bytes after root record", ErrTrailingData, rem)
	}
	if rc.Identities() != uint64(h.Identities()) {
		return nil, fmt.Errorf("%w: decoded %d identities, handle records %d", ErrCorruptStream, rc.Identities(), h.Identities())
	}
	if s.opts.rebind != nil {
		if err := s.opts.rebind(ctx, rc.Owner(), v); err != nil {
			return nil, err
		}
	}
	return v, nil
}
