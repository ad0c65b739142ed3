package graphcodec

import (
	"context"
	"fmt"
	"reflect"
)

// identityKey identifies a reference value. The type is part of the key so a
// pointer to a struct and a pointer to its first field stay distinct.
type identityKey struct {
	t reflect.Type
	p uintptr
}

// identityOf reports whether v is identity-tracked and returns its key.
// Only non-nil pointers and maps are tracked; everything else is a value.
func identityOf(v any) (identityKey, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map:
		if rv.IsNil() {
			return identityKey{}, false
		}
		return identityKey{t: rv.Type(), p: rv.Pointer()}, true
	}
	return identityKey{}, false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func,
		reflect.Chan, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

// ownerStack holds the ambient owners visible to codecs.
type ownerStack struct {
	owners []any
}

// Owner returns the innermost owner, or nil.
func (s *ownerStack) Owner() any {
	if len(s.owners) == 0 {
		return nil
	}
	return s.owners[len(s.owners)-1]
}

// WithOwner makes o the current owner while fn runs.
func (s *ownerStack) WithOwner(o any, fn func() error) error {
	s.owners = append(s.owners, o)
	defer func() { s.owners = s.owners[:len(s.owners)-1] }()
	return fn()
}

// WriteContext is the encoding side of one session. It is not safe for
// concurrent use; encoders receive it and write their payload through it.
type WriteContext struct {
	*Writer
	ownerStack

	ctx      context.Context
	bindings *Bindings
	ids      map[identityKey]uint64
	next     uint64
	strings  map[string]uint64 // nil unless string sharing is on
	depth    int
	maxDepth int
}

func newWriteContext(ctx context.Context, w *Writer, b *Bindings, o *options) *WriteContext {
	wc := &WriteContext{
		Writer:   w,
		ctx:      ctx,
		bindings: b,
		ids:      make(map[identityKey]uint64),
		maxDepth: o.maxDepth,
	}
	if o.shareStrings {
		wc.strings = make(map[string]uint64)
	}
	if o.owner != nil {
		wc.owners = append(wc.owners, o.owner)
	}
	return wc
}

// Context returns the context of the session.
func (w *WriteContext) Context() context.Context { return w.ctx }

// Bindings returns the table the session encodes with.
func (w *WriteContext) Bindings() *Bindings { return w.bindings }

// Identities returns how many identities have been assigned so far.
func (w *WriteContext) Identities() uint64 { return w.next }

// Write encodes v as one record. References already written in this session
// become back-references; new ones get the next identity before their
// payload is written so cycles terminate.
func (w *WriteContext) Write(v any) error {
	if err := w.Err(); err != nil {
		return err
	}
	if err := w.ctx.Err(); err != nil {
		return err
	}
	if isNil(v) {
		w.WriteUvarint(headerNull)
		return w.Err()
	}

	key, tracked := identityOf(v)
	if tracked {
		if id, ok := w.ids[key]; ok {
			w.WriteUvarint(headerRef)
			w.WriteUvarint(id)
			return w.Err()
		}
	}

	// resolve before any byte of this record is written.
	bd, err := w.bindings.Resolve(reflect.TypeOf(v))
	if err != nil {
		return err
	}
	if tracked {
		id := w.next
		w.next++
		w.ids[key] = id
		w.WriteUvarint(headerInline)
		w.WriteUvarint(id)
		w.WriteUvarint(uint64(bd.Tag))
	} else {
		w.WriteUvarint(headerTagBase + uint64(bd.Tag))
	}
	return w.writeTagged(bd, v)
}

// WriteStringValue writes s, through the string table when sharing is on.
func (w *WriteContext) WriteStringValue(s string) {
	if w.strings == nil {
		w.WriteLenString(s)
		return
	}
	if idx, ok := w.strings[s]; ok {
		w.WriteUvarint(idx << 1)
		return
	}
	w.strings[s] = uint64(len(w.strings))
	w.WriteUvarint(uint64(len(s))<<1 | 1)
	_, _ = w.WriteString(s)
}

// ReadContext is the decoding side of one session.
type ReadContext struct {
	*Reader
	ownerStack

	ctx       context.Context
	bindings  *Bindings
	instances []any
	published []bool
	pending   []int
	strings   []string
	sharing   bool
	depth     int
	maxDepth  int
}

func newReadContext(ctx context.Context, r *Reader, b *Bindings, o *options, sharing bool) *ReadContext {
	rc := &ReadContext{
		Reader:   r,
		ctx:      ctx,
		bindings: b,
		sharing:  sharing,
		maxDepth: o.maxDepth,
	}
	if o.owner != nil {
		rc.owners = append(rc.owners, o.owner)
	}
	return rc
}

// Context returns the context of the session.
func (r *ReadContext) Context() context.Context { return r.ctx }

// Bindings returns the table the session decodes with.
func (r *ReadContext) Bindings() *Bindings { return r.bindings }

// Identities returns how many identities have been reserved so far.
func (r *ReadContext) Identities() uint64 { return uint64(len(r.instances)) }

// Read decodes one record.
func (r *ReadContext) Read() (any, error) {
	if err := r.Err(); err != nil {
		return nil, err
	}
	if err := r.ctx.Err(); err != nil {
		return nil, err
	}
	header := r.ReadUvarint()
	if err := r.Err(); err != nil {
		return nil, err
	}

	switch header {
	case headerNull:
		return nil, nil

	case headerRef:
		id := r.ReadUvarint()
		if err := r.Err(); err != nil {
			return nil, err
		}
		if id >= uint64(len(r.instances)) {
			return nil, fmt.Errorf("%w: reference to unassigned identity %d", ErrCorruptStream, id)
		}
		if !r.published[id] {
			return nil, fmt.Errorf("%w: identity %d", ErrUnresolvedReference, id)
		}
		return r.instances[id], nil

	case headerInline:
		id := r.ReadUvarint()
		tag := r.ReadUvarint()
		if err := r.Err(); err != nil {
			return nil, err
		}
		if id != uint64(len(r.instances)) {
			return nil, fmt.Errorf("%w: identity %d out of order, expected %d", ErrCorruptStream, id, len(r.instances))
		}
		r.instances = append(r.instances, nil)
		r.published = append(r.published, false)
		v, err := r.readTagged(tag, int(id))
		if err != nil {
			return nil, err
		}
		r.instances[id] = v
		r.published[id] = true
		return v, nil
	}
	return r.readTagged(header-headerTagBase, -1)
}

// Publish makes v the instance of the record being decoded, so references
// to it from its own children resolve. Decoders of reference types call it
// right after allocating and before reading nested records. It is a no-op
// for untracked records.
func (r *ReadContext) Publish(v any) {
	if len(r.pending) == 0 {
		return
	}
	id := r.pending[len(r.pending)-1]
	if id < 0 {
		return
	}
	r.instances[id] = v
	r.published[id] = true
}

// ReadStringValue reads a string written by WriteStringValue.
func (r *ReadContext) ReadStringValue() string {
	if !r.sharing {
		return r.ReadLenString()
	}
	x := r.ReadUvarint()
	if r.Err() != nil {
		return ""
	}
	if x&1 == 0 {
		idx := x >> 1
		if idx >= uint64(len(r.strings)) {
			r.Fail(fmt.Errorf("%w: string %d of %d", ErrCorruptStream, idx, len(r.strings)))
			return ""
		}
		return r.strings[idx]
	}
	n := x >> 1
	limit := uint64(maxLenPrefix)
	if rem := r.Remaining(); rem >= 0 {
		limit = uint64(rem)
	}
	if n > limit {
		r.Fail(fmt.Errorf("%w: string length %d exceeds %d", ErrTruncatedData, n, limit))
		return ""
	}
	s := string(r.ReadBytes(int(n)))
	if r.Err() != nil {
		return ""
	}
	r.strings = append(r.strings, s)
	return s
}

// ReadAs reads one record and converts it to T. Null yields the zero value.
func ReadAs[T any](r *ReadContext) (T, error) {
	v, err := r.Read()
	if err != nil {
		var zero T
		return zero, err
	}
	return As[T](v)
}

// As converts a decoded value to T. Null yields the zero value; values of
// the same kind are converted when reflect allows it.
func As[T any](v any) (T, error) {
	var zero T
	if v == nil {
		return zero, nil
	}
	if t, ok := v.(T); ok {
		return t, nil
	}
	dst := reflect.ValueOf(&zero).Elem()
	if err := assign(dst, v); err != nil {
		return zero, err
	}
	return zero, nil
}

// assign stores v into dst, converting between types of the same kind.
func assign(dst reflect.Value, v any) error {
	if v == nil {
		dst.SetZero()
		return nil
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.Type().AssignableTo(dst.Type()):
		dst.Set(rv)
	case rv.Kind() == dst.Kind() && rv.Type().ConvertibleTo(dst.Type()):
		dst.Set(rv.Convert(dst.Type()))
	default:
		return fmt.Errorf("%w: %v is not assignable to %v", ErrTypeMismatch, rv.Type(), dst.Type())
	}
	return nil
}
