package graphcodec

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"reflect"

	"github.com/puzpuzpuz/xsync/v4"
)

// EncodeFunc writes the payload of v. The record header and tag are already
// written when it is called.
type EncodeFunc func(w *WriteContext, v any) error

// DecodeFunc reads a payload written by the matching EncodeFunc.
type DecodeFunc func(r *ReadContext) (any, error)

// Binding is one entry of a binding table. Tag equals the position in the table.
type Binding struct {
	Tag   int
	Name  string
	Exact reflect.Type // nil for predicate bindings

	accepts func(reflect.Type) bool
	encode  EncodeFunc
	decode  DecodeFunc
	beans   *Beans // set for bean bindings
}

// Accepts reports whether the binding claims values of runtime type t.
func (b *Binding) Accepts(t reflect.Type) bool {
	if b.Exact != nil {
		return t == b.Exact
	}
	return b.accepts(t)
}

// Fingerprint identifies the shape of a binding table. Handles carry the
// fingerprint of the table that produced them.
type Fingerprint [16]byte

func (f Fingerprint) String() string { return hex.EncodeToString(f[:]) }

const fingerprintDomain = "graphcodec/bindings/v1"

// Bindings is a frozen, ordered binding table. It is safe for concurrent use.
type Bindings struct {
	list        []Binding
	exact       map[reflect.Type]int
	beans       []*Beans
	fingerprint Fingerprint

	// resolved caches runtime type -> tag, shared by every session on this table.
	resolved *xsync.Map[reflect.Type, int]
}

// BindingsBuilder assembles a binding table. The first error is latched and
// reported by Build; later calls become no-ops.
type BindingsBuilder struct {
	list  []Binding
	exact map[reflect.Type]int
	beans []*Beans
	err   error
	done  bool
}

// NewBindings starts an empty binding table.
func NewBindings() *BindingsBuilder {
	return &BindingsBuilder{exact: make(map[reflect.Type]int)}
}

// Append starts a new table layered on top of b. Tags of b are preserved.
func (b *Bindings) Append() *BindingsBuilder {
	nb := &BindingsBuilder{
		list:  append([]Binding(nil), b.list...),
		exact: make(map[reflect.Type]int, len(b.exact)),
		beans: append([]*Beans(nil), b.beans...),
	}
	for t, tag := range b.exact {
		nb.exact[t] = tag
	}
	return nb
}

func (bb *BindingsBuilder) fail(err error) *BindingsBuilder {
	if bb.err == nil {
		bb.err = err
	}
	return bb
}

func (bb *BindingsBuilder) add(bd Binding) *BindingsBuilder {
	if bb.err != nil {
		return bb
	}
	if bb.done {
		return bb.fail(fmt.Errorf("%w: builder already built", ErrSessionState))
	}
	bd.Tag = len(bb.list)
	if bd.Exact != nil {
		if prev, ok := bb.exact[bd.Exact]; ok {
			return bb.fail(fmt.Errorf("%w: %v (tag %d, %s)", ErrDuplicateBinding, bd.Exact, prev, bb.list[prev].Name))
		}
		bb.exact[bd.Exact] = bd.Tag
	}
	bb.list = append(bb.list, bd)
	return bb
}

// Bind appends a predicate binding. Predicates may overlap; the earliest match wins.
func (bb *BindingsBuilder) Bind(name string, accepts func(reflect.Type) bool, enc EncodeFunc, dec DecodeFunc) *BindingsBuilder {
	if accepts == nil || enc == nil || dec == nil {
		return bb.fail(fmt.Errorf("graphcodec: incomplete binding %q", name))
	}
	return bb.add(Binding{Name: name, accepts: accepts, encode: enc, decode: dec})
}

// BindExact appends a binding for exactly t. Binding the same type twice is an error.
func (bb *BindingsBuilder) BindExact(name string, t reflect.Type, enc EncodeFunc, dec DecodeFunc) *BindingsBuilder {
	if t == nil || enc == nil || dec == nil {
		return bb.fail(fmt.Errorf("graphcodec: incomplete binding %q", name))
	}
	if t.Kind() == reflect.Interface {
		return bb.fail(fmt.Errorf("graphcodec: binding %q: runtime values never have interface type %v", name, t))
	}
	return bb.add(Binding{Name: name, Exact: t, encode: enc, decode: dec})
}

// Unsupported appends a binding that rejects every value it claims. Layered
// before general bindings it carves out types that must never be captured.
func (bb *BindingsBuilder) Unsupported(name string, accepts func(reflect.Type) bool, reason string) *BindingsBuilder {
	fail := func() error { return fmt.Errorf("%w: %s: %s", ErrUnsupportedType, name, reason) }
	return bb.Bind(name, accepts,
		func(*WriteContext, any) error { return fail() },
		func(*ReadContext) (any, error) { return nil, fail() })
}

// BindType appends an exact binding for T with typed encode and decode functions.
func BindType[T any](bb *BindingsBuilder, enc func(*WriteContext, T) error, dec func(*ReadContext) (T, error)) *BindingsBuilder {
	t := reflect.TypeFor[T]()
	return bb.BindExact(t.String(), t,
		func(w *WriteContext, v any) error { return enc(w, v.(T)) },
		func(r *ReadContext) (any, error) {
			v, err := dec(r)
			return v, err
		})
}

// Build freezes the table.
func (bb *BindingsBuilder) Build() (*Bindings, error) {
	if bb.err != nil {
		return nil, bb.err
	}
	for _, beans := range bb.beans {
		if err := beans.Err(); err != nil {
			return nil, err
		}
	}
	bb.done = true
	b := &Bindings{
		list:     bb.list,
		exact:    bb.exact,
		beans:    bb.beans,
		resolved: xsync.NewMap[reflect.Type, int](),
	}
	b.fingerprint = b.computeFingerprint()
	return b, nil
}

// MustBuild is like Build but panics on error. Intended for package-level tables.
func (bb *BindingsBuilder) MustBuild() *Bindings {
	b, err := bb.Build()
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Bindings) computeFingerprint() Fingerprint {
	h := sha256.New()
	h.Write([]byte(fingerprintDomain))
	h.Write([]byte{0x00})
	for _, bd := range b.list {
		fmt.Fprintf(h, "%d\x00%s\x00", bd.Tag, bd.Name)
		if bd.Exact != nil {
			h.Write([]byte(typeName(bd.Exact)))
		}
		h.Write([]byte{0x00})
	}
	for _, beans := range b.beans {
		beans.writeShape(h)
	}
	var fp Fingerprint
	copy(fp[:], h.Sum(nil))
	return fp
}

// Len returns the number of bindings.
func (b *Bindings) Len() int { return len(b.list) }

// Fingerprint returns the table fingerprint.
func (b *Bindings) Fingerprint() Fingerprint { return b.fingerprint }

// Binding returns the binding at tag.
func (b *Bindings) Binding(tag int) (*Binding, bool) {
	if tag < 0 || tag >= len(b.list) {
		return nil, false
	}
	return &b.list[tag], true
}

// Resolve returns the first binding accepting t.
func (b *Bindings) Resolve(t reflect.Type) (*Binding, error) {
	if tag, ok := b.resolved.Load(t); ok {
		return &b.list[tag], nil
	}
	tag, ok := b.scan(t)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrNoBinding, t)
	}
	b.resolved.Store(t, tag)
	return &b.list[tag], nil
}

func (b *Bindings) scan(t reflect.Type) (int, bool) {
	for i := range b.list {
		if b.list[i].Accepts(t) {
			return i, true
		}
	}
	return 0, false
}

// isBean reports whether values of t are encoded by a bean binding.
func (b *Bindings) isBean(t reflect.Type) bool {
	bd, err := b.Resolve(t)
	return err == nil && bd.beans != nil
}

// TagOf resolves the tag that would encode v.
func (b *Bindings) TagOf(v any) (int, error) {
	if isNil(v) {
		return -1, nil
	}
	bd, err := b.Resolve(reflect.TypeOf(v))
	if err != nil {
		return -1, err
	}
	return bd.Tag, nil
}

// typeName is the stable name of t used in fingerprints.
func typeName(t reflect.Type) string {
	if t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}
