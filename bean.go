package graphcodec

import (
	"fmt"
	"hash"
	"reflect"

	"github.com/puzpuzpuz/xsync/v4"
)

// beanTag is the struct tag consulted for field options. `graph:"-"` skips a field.
const beanTag = "graph"

type beanField struct {
	index int
	name  string
}

type beanPlan struct {
	fields []beanField
	err    error
}

// planCache avoids walking struct fields with reflection for every value.
// Plans depend only on the static type, so they are shared process-wide.
var planCache = xsync.NewMap[reflect.Type, *beanPlan]()

// planFor derives the stable field order of t once: exported fields in
// declaration order.
func planFor(t reflect.Type) *beanPlan {
	if p, ok := planCache.Load(t); ok {
		return p
	}
	p, _ := planCache.LoadOrCompute(t, func() (*beanPlan, bool) {
		return buildPlan(t), false
	})
	return p
}

func buildPlan(t reflect.Type) *beanPlan {
	if t.Kind() != reflect.Struct {
		return &beanPlan{err: fmt.Errorf("%w: %v is not a struct", ErrUnsupportedBean, t)}
	}
	plan := &beanPlan{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Tag.Get(beanTag) == "-" {
			continue
		}
		if !f.IsExported() {
			return &beanPlan{err: fmt.Errorf("%w: %v.%s is unexported; tag it `graph:\"-\"` or bind the type explicitly", ErrUnsupportedBean, t, f.Name)}
		}
		switch f.Type.Kind() {
		case reflect.Func, reflect.Chan, reflect.UnsafePointer:
			return &beanPlan{err: fmt.Errorf("%w: %v.%s has kind %v", ErrUnsupportedBean, t, f.Name, f.Type.Kind())}
		}
		plan.fields = append(plan.fields, beanField{index: i, name: f.Name})
	}
	return plan
}

// Beans is an ordered registry of struct types handled by the bean codec.
// The registration index is the type identifier written to the stream, so
// both sides must register the same types in the same order.
type Beans struct {
	types  []reflect.Type
	plans  []*beanPlan
	index  map[reflect.Type]int
	err    error
	frozen bool
}

// NewBeans creates a registry and registers the types of samples.
func NewBeans(samples ...any) *Beans {
	b := &Beans{index: make(map[reflect.Type]int)}
	for _, s := range samples {
		b.Register(s)
	}
	return b
}

// Register adds the struct type of sample. Pointer samples are dereferenced.
func (b *Beans) Register(sample any) *Beans {
	if sample == nil {
		return b.fail(fmt.Errorf("%w: nil sample", ErrUnsupportedBean))
	}
	return b.RegisterType(reflect.TypeOf(sample))
}

// RegisterType adds t (or the struct t points to).
func (b *Beans) RegisterType(t reflect.Type) *Beans {
	if b.err != nil {
		return b
	}
	if b.frozen {
		return b.fail(fmt.Errorf("%w: bean registry already bound", ErrSessionState))
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if _, ok := b.index[t]; ok {
		return b.fail(fmt.Errorf("%w: bean %v", ErrDuplicateBinding, t))
	}
	plan := planFor(t)
	if plan.err != nil {
		return b.fail(plan.err)
	}
	b.index[t] = len(b.types)
	b.types = append(b.types, t)
	b.plans = append(b.plans, plan)
	return b
}

func (b *Beans) fail(err error) *Beans {
	if b.err == nil {
		b.err = err
	}
	return b
}

// Err returns the first registration error.
func (b *Beans) Err() error { return b.err }

// Len returns the number of registered types.
func (b *Beans) Len() int { return len(b.types) }

func (b *Beans) accepts(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	_, ok := b.index[t]
	return ok
}

func (b *Beans) writeShape(h hash.Hash) {
	for i, t := range b.types {
		fmt.Fprintf(h, "bean\x00%d\x00%s", i, typeName(t))
		for _, f := range b.plans[i].fields {
			fmt.Fprintf(h, "\x00%s", f.name)
		}
		h.Write([]byte{0x00})
	}
}

// BindBeans appends the bean codec for every type in beans. The registry is
// frozen; bean types count as exact bindings for duplicate detection.
func (bb *BindingsBuilder) BindBeans(beans *Beans) *BindingsBuilder {
	if beans == nil {
		return bb.fail(fmt.Errorf("graphcodec: nil bean registry"))
	}
	if err := beans.Err(); err != nil {
		return bb.fail(err)
	}
	if bb.err != nil {
		return bb
	}
	beans.frozen = true
	tag := len(bb.list)
	for _, t := range beans.types {
		if prev, ok := bb.exact[t]; ok {
			return bb.fail(fmt.Errorf("%w: bean %v (tag %d, %s)", ErrDuplicateBinding, t, prev, bb.list[prev].Name))
		}
	}
	bb.add(Binding{
		Name:    "bean",
		accepts: beans.accepts,
		encode:  beans.encode,
		decode:  beans.decode,
		beans:   beans,
	})
	if bb.err != nil {
		return bb
	}
	for _, t := range beans.types {
		bb.exact[t] = tag
	}
	bb.beans = append(bb.beans, beans)
	return bb
}

func (b *Beans) encode(w *WriteContext, v any) error {
	rv := reflect.ValueOf(v)
	var ptr uint64
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
		ptr = 1
	}
	id, ok := b.index[rv.Type()]
	if !ok {
		return fmt.Errorf("%w: %v", ErrNoBinding, rv.Type())
	}
	w.WriteUvarint(uint64(id)<<1 | ptr)
	for _, f := range b.plans[id].fields {
		if err := w.Write(rv.Field(f.index).Interface()); err != nil {
			return withPath(f.name, err)
		}
	}
	return nil
}

func (b *Beans) decode(r *ReadContext) (any, error) {
	x := r.ReadUvarint()
	if err := r.Err(); err != nil {
		return nil, err
	}
	id := x >> 1
	if id >= uint64(len(b.types)) {
		return nil, fmt.Errorf("%w: bean type %d of %d", ErrCorruptStream, id, len(b.types))
	}
	p := reflect.New(b.types[id])
	isPtr := x&1 == 1
	if isPtr {
		// fields may refer back to this instance.
		r.Publish(p.Interface())
	}
	elem := p.Elem()
	for _, f := range b.plans[id].fields {
		v, err := r.Read()
		if err != nil {
			return nil, withPath(f.name, err)
		}
		if err := assign(elem.Field(f.index), v); err != nil {
			return nil, withPath(f.name, err)
		}
	}
	if isPtr {
		return p.Interface(), nil
	}
	return elem.Interface(), nil
}
