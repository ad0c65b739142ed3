package graphcodec

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type withFunc struct {
	Name string
	F    func()
}

type withHidden struct {
	Name   string
	hidden int
}

type withSkipped struct {
	Name  string
	cache map[string]int `graph:"-"`
	Done  chan struct{}  `graph:"-"`
}

func TestBaseTypesLayout(t *testing.T) {
	b := BaseTypes(NewBindings()).MustBuild()
	assert.Equal(t, baseTagCount, b.Len())

	tag, err := b.TagOf(int64(1))
	require.NoError(t, err)
	bd, ok := b.Binding(tag)
	require.True(t, ok)
	assert.Equal(t, "int64", bd.Name)
	assert.Equal(t, reflect.TypeFor[int64](), bd.Exact)

	_, ok = b.Binding(b.Len())
	assert.False(t, ok)
}

func TestTagStabilityAcrossAppend(t *testing.T) {
	a := BaseTypes(NewBindings()).MustBuild()
	tagA, err := a.TagOf("text")
	require.NoError(t, err)

	b, err := SliceOf[string](a.Append()).BindBeans(NewBeans(Point{})).Build()
	require.NoError(t, err)

	tagB, err := b.TagOf("text")
	require.NoError(t, err)
	assert.Equal(t, tagA, tagB)
	assert.Equal(t, a.Len()+2, b.Len())
	assert.Equal(t, baseTagCount, a.Len(), "the base table is not modified")
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())

	pointTag, err := b.TagOf(Point{})
	require.NoError(t, err)
	assert.Equal(t, a.Len()+1, pointTag)

	_, err = a.TagOf(Point{})
	assert.ErrorIs(t, err, ErrNoBinding)
}

func TestFirstMatchWins(t *testing.T) {
	var generalCalls, specificCalls int
	bb := NewBindings().
		Bind("object", func(reflect.Type) bool { return true },
			func(w *WriteContext, v any) error { generalCalls++; return nil },
			func(r *ReadContext) (any, error) { return "general", nil })
	BindType(bb,
		func(w *WriteContext, p Point) error { specificCalls++; return nil },
		func(r *ReadContext) (Point, error) { return Point{}, nil })
	b, err := bb.Build()
	require.NoError(t, err)

	bd, err := b.Resolve(reflect.TypeFor[Point]())
	require.NoError(t, err)
	assert.Equal(t, 0, bd.Tag)
	assert.Equal(t, "object", bd.Name)

	ser := NewSerializer(b)
	h, err := ser.Serialize(Point{X: 1})
	require.NoError(t, err)
	out, err := ser.Deserialize(h)
	require.NoError(t, err)

	assert.Equal(t, "general", out)
	assert.Equal(t, 1, generalCalls)
	assert.Zero(t, specificCalls)
}

func TestUnsupportedOverride(t *testing.T) {
	isChan := func(t reflect.Type) bool { return t.Kind() == reflect.Chan }
	b := BaseTypes(NewBindings().Unsupported("channel", isChan, "channels cannot be captured")).MustBuild()

	_, err := NewSerializer(b).Serialize(make(chan int))
	require.ErrorIs(t, err, ErrUnsupportedType)
	assert.Contains(t, err.Error(), "channels cannot be captured")

	// nil channels are still null.
	h, err := NewSerializer(b).Serialize((chan int)(nil))
	require.NoError(t, err)
	assert.Equal(t, []byte{headerNull}, h.Bytes())
}

func TestDuplicateBindings(t *testing.T) {
	t.Run("SameTable", func(t *testing.T) {
		bb := BaseTypes(NewBindings())
		BindType(bb,
			func(w *WriteContext, v string) error { return nil },
			func(r *ReadContext) (string, error) { return "", nil })
		_, err := bb.Build()
		assert.ErrorIs(t, err, ErrDuplicateBinding)
	})

	t.Run("AcrossLayers", func(t *testing.T) {
		base := BaseTypes(NewBindings()).MustBuild()
		_, err := PointerTo[int](base.Append()).Build()
		require.NoError(t, err)
		_, err = SliceOf[any](base.Append()).Build()
		assert.ErrorIs(t, err, ErrDuplicateBinding)
	})

	t.Run("BeanAlreadyBound", func(t *testing.T) {
		bb := NewBindings()
		BindType(bb,
			func(w *WriteContext, p Point) error { return nil },
			func(r *ReadContext) (Point, error) { return Point{}, nil })
		_, err := bb.BindBeans(NewBeans(Point{})).Build()
		assert.ErrorIs(t, err, ErrDuplicateBinding)
	})

	t.Run("BeanRegisteredTwice", func(t *testing.T) {
		assert.ErrorIs(t, NewBeans(Point{}, &Point{}).Err(), ErrDuplicateBinding)
	})

	t.Run("FirstErrorIsKept", func(t *testing.T) {
		bb := NewBindings().BindExact("iface", reflect.TypeFor[error](),
			func(*WriteContext, any) error { return nil },
			func(*ReadContext) (any, error) { return nil, nil })
		BaseTypes(bb)
		BaseTypes(bb)
		_, err := bb.Build()
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrDuplicateBinding)
	})
}

func TestBuilderIsSealedAfterBuild(t *testing.T) {
	bb := BaseTypes(NewBindings())
	_, err := bb.Build()
	require.NoError(t, err)
	PointerTo[int](bb)
	_, err = bb.Build()
	assert.ErrorIs(t, err, ErrSessionState)
}

func TestUnsupportedBeans(t *testing.T) {
	assert.ErrorIs(t, NewBeans(withFunc{}).Err(), ErrUnsupportedBean)
	assert.ErrorIs(t, NewBeans(withHidden{}).Err(), ErrUnsupportedBean)
	assert.ErrorIs(t, NewBeans(42).Err(), ErrUnsupportedBean)
	assert.ErrorIs(t, NewBeans(nil).Err(), ErrUnsupportedBean)

	// detected when the table is built, not at first use.
	_, err := BaseTypes(NewBindings()).BindBeans(NewBeans(withHidden{})).Build()
	assert.ErrorIs(t, err, ErrUnsupportedBean)
	assert.Contains(t, err.Error(), "hidden")
}

func TestSkippedFields(t *testing.T) {
	b := BaseTypes(NewBindings()).BindBeans(NewBeans(withSkipped{})).MustBuild()
	ser := NewSerializer(b)

	in := &withSkipped{Name: "kept", cache: map[string]int{"a": 1}, Done: make(chan struct{})}
	h, err := ser.Serialize(in)
	require.NoError(t, err)

	out, err := DeserializeAs[*withSkipped](t.Context(), ser, h)
	require.NoError(t, err)
	assert.Equal(t, "kept", out.Name)
	assert.Nil(t, out.cache)
	assert.Nil(t, out.Done)
}

func TestBeansAreFrozenOnceBound(t *testing.T) {
	beans := NewBeans(Point{})
	BaseTypes(NewBindings()).BindBeans(beans).MustBuild()
	beans.Register(node{})
	assert.ErrorIs(t, beans.Err(), ErrSessionState)
	assert.Equal(t, 1, beans.Len())
}

func TestBeanShapeChangesFingerprint(t *testing.T) {
	a := BaseTypes(NewBindings()).BindBeans(NewBeans(Point{}, node{})).MustBuild()
	b := BaseTypes(NewBindings()).BindBeans(NewBeans(node{}, Point{})).MustBuild()
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint().String(), 32)
}

func TestTypedContainers(t *testing.T) {
	bb := BaseTypes(NewBindings())
	SliceOf[*node](bb)
	MapOf[string, int](bb)
	PointerTo[int](bb)
	b := bb.BindBeans(NewBeans(node{})).MustBuild()
	ser := NewSerializer(b)

	n := &node{Label: "n"}
	counter := new(int)
	*counter = 9
	in := []any{
		[]*node{n, n, nil},
		map[string]int{"b": 2, "a": 1},
		counter,
		counter,
	}
	h, err := ser.Serialize(in)
	require.NoError(t, err)
	out, err := ser.Deserialize(h)
	require.NoError(t, err)

	list := out.([]any)
	nodes := list[0].([]*node)
	require.Len(t, nodes, 3)
	assert.Same(t, nodes[0], nodes[1])
	assert.Nil(t, nodes[2])
	assert.Equal(t, map[string]int{"a": 1, "b": 2}, list[1])
	assert.Same(t, list[2], list[3])
	assert.Equal(t, 9, *list[2].(*int))
}

func TestAsConversions(t *testing.T) {
	type celsius float64

	v, err := As[celsius](21.5)
	require.NoError(t, err)
	assert.Equal(t, celsius(21.5), v)

	s, err := As[string](nil)
	require.NoError(t, err)
	assert.Empty(t, s)

	_, err = As[int]("nope")
	assert.ErrorIs(t, err, ErrTypeMismatch)
}
