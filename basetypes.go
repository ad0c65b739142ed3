package graphcodec

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"time"

	"golang.org/x/exp/constraints"
)

// BaseTypes appends bindings for the scalar types and the untyped
// containers decoders fall back to. It is usually the first layer of a table.
func BaseTypes(bb *BindingsBuilder) *BindingsBuilder {
	BindType(bb,
		func(w *WriteContext, v bool) error { w.WriteBool(v); return nil },
		func(r *ReadContext) (v bool, err error) { r.ReadBool(&v); return v, r.Err() })
	bindSigned[int](bb)
	bindSigned[int8](bb)
	bindSigned[int16](bb)
	bindSigned[int32](bb)
	bindSigned[int64](bb)
	bindUnsigned[uint](bb)
	bindUnsigned[uint8](bb)
	bindUnsigned[uint16](bb)
	bindUnsigned[uint32](bb)
	bindUnsigned[uint64](bb)
	BindType(bb,
		func(w *WriteContext, v float32) error { w.WriteFloat32(v); return nil },
		func(r *ReadContext) (float32, error) { return r.ReadFloat32(), r.Err() })
	BindType(bb,
		func(w *WriteContext, v float64) error { w.WriteFloat64(v); return nil },
		func(r *ReadContext) (float64, error) { return r.ReadFloat64(), r.Err() })
	BindType(bb,
		func(w *WriteContext, v complex128) error {
			w.WriteFloat64(real(v))
			w.WriteFloat64(imag(v))
			return nil
		},
		func(r *ReadContext) (complex128, error) {
			re := r.ReadFloat64()
			im := r.ReadFloat64()
			return complex(re, im), r.Err()
		})
	BindType(bb,
		func(w *WriteContext, v string) error { w.WriteStringValue(v); return nil },
		func(r *ReadContext) (string, error) { return r.ReadStringValue(), r.Err() })
	BindType(bb,
		func(w *WriteContext, v []byte) error { w.WriteLenBytes(v); return nil },
		func(r *ReadContext) ([]byte, error) { return r.ReadLenBytes(), r.Err() })
	BindType(bb, writeTime, readTime)
	bindSigned[time.Duration](bb)
	BindType(bb, writeSlice[any], readSlice[any])
	BindType(bb, writeMap[string, any], readMap[string, any])
	return bb
}

func bindSigned[T constraints.Signed](bb *BindingsBuilder) {
	BindType(bb,
		func(w *WriteContext, v T) error { w.WriteVarint(int64(v)); return nil },
		func(r *ReadContext) (T, error) {
			x := r.ReadVarint()
			if err := r.Err(); err != nil {
				return 0, err
			}
			if int64(T(x)) != x {
				return 0, fmt.Errorf("%w: %d overflows %T", ErrCorruptStream, x, T(0))
			}
			return T(x), nil
		})
}

func bindUnsigned[T constraints.Unsigned](bb *BindingsBuilder) {
	BindType(bb,
		func(w *WriteContext, v T) error { w.WriteUvarint(uint64(v)); return nil },
		func(r *ReadContext) (T, error) {
			x := r.ReadUvarint()
			if err := r.Err(); err != nil {
				return 0, err
			}
			if uint64(T(x)) != x {
				return 0, fmt.Errorf("%w: %d overflows %T", ErrCorruptStream, x, T(0))
			}
			return T(x), nil
		})
}

func writeTime(w *WriteContext, t time.Time) error {
	b, err := t.MarshalBinary()
	if err != nil {
		return err
	}
	w.WriteLenBytes(b)
	return nil
}

func readTime(r *ReadContext) (time.Time, error) {
	var t time.Time
	b := r.ReadLenBytes()
	if err := r.Err(); err != nil {
		return t, err
	}
	if err := t.UnmarshalBinary(b); err != nil {
		return t, fmt.Errorf("%w: %v", ErrCorruptStream, err)
	}
	return t, nil
}

// SliceOf appends an exact binding for []T. Elements are written as records,
// so pointer elements keep their identity.
func SliceOf[T any](bb *BindingsBuilder) *BindingsBuilder {
	return BindType(bb, writeSlice[T], readSlice[T])
}

func writeSlice[T any](w *WriteContext, s []T) error {
	w.WriteUvarint(uint64(len(s)))
	for i := range s {
		if err := w.Write(s[i]); err != nil {
			return withPath(fmt.Sprintf("[%d]", i), err)
		}
	}
	return nil
}

func readSlice[T any](r *ReadContext) ([]T, error) {
	// every element takes at least one byte, so ReadLen bounds the allocation.
	n := r.ReadLen()
	if err := r.Err(); err != nil {
		return nil, err
	}
	s := make([]T, n)
	for i := range s {
		v, err := ReadAs[T](r)
		if err != nil {
			return nil, withPath(fmt.Sprintf("[%d]", i), err)
		}
		s[i] = v
	}
	return s, nil
}

// MapOf appends an exact binding for map[K]V. Maps are identity-tracked;
// entries are written in sorted key order so output is reproducible.
func MapOf[K comparable, V any](bb *BindingsBuilder) *BindingsBuilder {
	return BindType(bb, writeMap[K, V], readMap[K, V])
}

type mapEntry[K comparable, V any] struct {
	k K
	v V
}

func writeMap[K comparable, V any](w *WriteContext, m map[K]V) error {
	// values are taken during the range: m[k] never finds a NaN key.
	entries := make([]mapEntry[K, V], 0, len(m))
	for k, v := range m {
		entries = append(entries, mapEntry[K, V]{k, v})
	}
	slices.SortStableFunc(entries, func(a, b mapEntry[K, V]) int { return compareKeys(a.k, b.k) })

	w.WriteUvarint(uint64(len(entries)))
	for _, e := range entries {
		if err := w.Write(e.k); err != nil {
			return withPath(fmt.Sprintf("[%v]", e.k), err)
		}
		if err := w.Write(e.v); err != nil {
			return withPath(fmt.Sprintf("[%v]", e.k), err)
		}
	}
	return nil
}

func readMap[K comparable, V any](r *ReadContext) (map[K]V, error) {
	n := r.ReadLen()
	if err := r.Err(); err != nil {
		return nil, err
	}
	m := make(map[K]V, n)
	r.Publish(m)
	for i := 0; i < n; i++ {
		k, err := ReadAs[K](r)
		if err != nil {
			return nil, withPath(fmt.Sprintf("[%d]", i), err)
		}
		v, err := ReadAs[V](r)
		if err != nil {
			return nil, withPath(fmt.Sprintf("[%v]", k), err)
		}
		m[k] = v
	}
	return m, nil
}

// compareKeys orders map keys of the same static type.
func compareKeys(a, b any) int {
	ra, rb := reflect.ValueOf(a), reflect.ValueOf(b)
	if !ra.IsValid() || !rb.IsValid() || ra.Kind() != rb.Kind() {
		return cmp.Compare(fmt.Sprintf("%T", a), fmt.Sprintf("%T", b))
	}
	switch ra.Kind() {
	case reflect.String:
		return cmp.Compare(ra.String(), rb.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(ra.Int(), rb.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return cmp.Compare(ra.Uint(), rb.Uint())
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(ra.Float(), rb.Float())
	case reflect.Bool:
		switch {
		case ra.Bool() == rb.Bool():
			return 0
		case rb.Bool():
			return -1
		}
		return 1
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

// PointerTo appends an exact binding for *T. The pointer is tracked and
// published before its target is decoded.
func PointerTo[T any](bb *BindingsBuilder) *BindingsBuilder {
	return BindType(bb,
		func(w *WriteContext, p *T) error { return w.Write(*p) },
		func(r *ReadContext) (*T, error) {
			p := new(T)
			r.Publish(p)
			v, err := ReadAs[T](r)
			if err != nil {
				return nil, err
			}
			*p = v
			return p, nil
		})
}
