package graphcodec

import (
	"encoding/binary"
	"fmt"
	"testing"
)

func benchGraph(n int) *node {
	head := &node{Label: "n0"}
	cur := head
	for i := 1; i < n; i++ {
		next := &node{Label: fmt.Sprintf("n%d", i), Other: head}
		cur.Next = next
		cur = next
	}
	cur.Next = head
	return head
}

func BenchmarkSerializeGraph(b *testing.B) {
	ser := NewSerializer(nodeBindings(b))
	g := benchGraph(256)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ser.Serialize(g)
	}
}

func BenchmarkDeserializeGraph(b *testing.B) {
	ser := NewSerializer(nodeBindings(b))
	h, err := ser.Serialize(benchGraph(256))
	if err != nil {
		b.Fatal(err)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ser.Deserialize(h)
	}
}

func BenchmarkSerializeSharedStrings(b *testing.B) {
	ser := NewSerializer(BaseTypes(NewBindings()).MustBuild(), WithStringSharing())
	v := make([]any, 512)
	for i := range v {
		v[i] = fmt.Sprintf("key-%d", i%16)
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = ser.Serialize(v)
	}
}

func BenchmarkHandleHeaderMarshalTo(b *testing.B) {
	var hdr Fixed[handleHeader]
	copy(hdr.Payload.Magic[:], handleMagic)
	hdr.Payload.Version = HandleVersion
	buf := make([]byte, hdr.Size())
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = hdr.MarshalTo(buf)
	}
}

// Baseline using binary.Write directly, to see the overhead of the wrapper.
func BenchmarkStandardBinaryWrite(b *testing.B) {
	var payload handleHeader
	buf := make([]byte, binary.Size(payload))
	w := NewBytesWriter(buf)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w.Reset()
		_ = binary.Write(w, Order, &payload)
	}
}
