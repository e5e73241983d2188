package codec

import (
	"bytes"
	"errors"
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/appnet-org/codecbench/pkg/fixture"
)

// Table slots, in the order a flatc schema would declare them.
const (
	fbRecordFields = 17
	fbNestedFields = 9
	fbDeepFields   = 2
	fbEntryFields  = 2
)

const (
	fbRefs = iota
	fbInts
	fbLongs
	fbDoubles
	fbBools
	fbFloats
	fbShorts
	fbOctets
	fbChars
	fbBoxedInts
	fbBoxedLongs
	fbBoxedDoubles
	fbBoxedBools
	fbItems
	fbNumbers
	fbAttributes
	fbStringsField
)

const (
	fbField1 = iota
	fbField2
	fbField3
	fbField4
	fbField5
	fbLongField1
	fbIntField1
	fbDoubleField1
	fbDeepNested
)

var errFlatBuffersShort = errors.New("flatbuffers: buffer too short")

// FlatBuffers encodes the fixture with the flatbuffers builder API.
// Vectors of tables cannot carry nulls, so a nil ref is written as an empty
// Nested table and decodes as a zero Nested.
type FlatBuffers struct{}

func (FlatBuffers) Encode(d *fixture.Dataset) ([]byte, error) {
	b := flatbuffers.NewBuilder(64 * 1024)

	records := make([]flatbuffers.UOffsetT, len(d.Records))
	for i := range d.Records {
		records[i] = fbRecord(b, &d.Records[i])
	}
	vec := fbOffsets(b, records)

	b.StartObject(1)
	b.PrependUOffsetTSlot(0, vec, 0)
	b.Finish(b.EndObject())
	return b.FinishedBytes(), nil
}

func (FlatBuffers) Decode(data []byte) (d *fixture.Dataset, err error) {
	if len(data) < flatbuffers.SizeUOffsetT {
		return nil, errFlatBuffersShort
	}
	// The Go runtime does not verify buffers; out of range reads panic.
	defer func() {
		if r := recover(); r != nil {
			d, err = nil, fmt.Errorf("flatbuffers: malformed buffer: %v", r)
		}
	}()

	root := fbRoot(data)
	o := root.field(0)
	n := root.vectorLen(o)
	if n > len(data)/flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("flatbuffers: %d records do not fit in %d bytes", n, len(data))
	}
	d = &fixture.Dataset{Records: make([]fixture.Record, n)}
	for i := range d.Records {
		rec := root.table(o, i)
		fbReadRecord(&rec, &d.Records[i])
	}
	return d, nil
}

// ==================== Builder ====================

func fbRecord(b *flatbuffers.Builder, r *fixture.Record) flatbuffers.UOffsetT {
	refs := make([]flatbuffers.UOffsetT, len(r.Refs))
	for i, ref := range r.Refs {
		refs[i] = fbNested(b, ref)
	}
	refsVec := fbOffsets(b, refs)
	ints := fbVector(b, r.Ints, 4, b.PrependInt32)
	longs := fbVector(b, r.Longs, 8, b.PrependInt64)
	doubles := fbVector(b, r.Doubles, 8, b.PrependFloat64)
	bools := fbVector(b, r.Bools, 1, b.PrependBool)
	floats := fbVector(b, r.Floats, 4, b.PrependFloat32)
	shorts := fbVector(b, r.Shorts, 2, b.PrependInt16)
	octets := b.CreateByteVector(r.Octets)
	chars := fbVector(b, r.Chars, 2, b.PrependUint16)
	boxedInts := fbVector(b, r.BoxedInts, 4, b.PrependInt32)
	boxedLongs := fbVector(b, r.BoxedLongs, 8, b.PrependInt64)
	boxedDoubles := fbVector(b, r.BoxedDoubles, 8, b.PrependFloat64)
	boxedBools := fbVector(b, r.BoxedBools, 1, b.PrependBool)
	items := fbStrings(b, r.Items)
	numbers := fbVector(b, r.Numbers, 4, b.PrependInt32)
	attrs := fbEntries(b, r.Attributes)
	strs := fbStrings(b, r.Strings)

	b.StartObject(fbRecordFields)
	b.PrependUOffsetTSlot(fbRefs, refsVec, 0)
	b.PrependUOffsetTSlot(fbInts, ints, 0)
	b.PrependUOffsetTSlot(fbLongs, longs, 0)
	b.PrependUOffsetTSlot(fbDoubles, doubles, 0)
	b.PrependUOffsetTSlot(fbBools, bools, 0)
	b.PrependUOffsetTSlot(fbFloats, floats, 0)
	b.PrependUOffsetTSlot(fbShorts, shorts, 0)
	b.PrependUOffsetTSlot(fbOctets, octets, 0)
	b.PrependUOffsetTSlot(fbChars, chars, 0)
	b.PrependUOffsetTSlot(fbBoxedInts, boxedInts, 0)
	b.PrependUOffsetTSlot(fbBoxedLongs, boxedLongs, 0)
	b.PrependUOffsetTSlot(fbBoxedDoubles, boxedDoubles, 0)
	b.PrependUOffsetTSlot(fbBoxedBools, boxedBools, 0)
	b.PrependUOffsetTSlot(fbItems, items, 0)
	b.PrependUOffsetTSlot(fbNumbers, numbers, 0)
	b.PrependUOffsetTSlot(fbAttributes, attrs, 0)
	b.PrependUOffsetTSlot(fbStringsField, strs, 0)
	return b.EndObject()
}

func fbNested(b *flatbuffers.Builder, n *fixture.Nested) flatbuffers.UOffsetT {
	if n == nil {
		b.StartObject(fbNestedFields)
		return b.EndObject()
	}

	var deep flatbuffers.UOffsetT
	if n.DeepNested != nil {
		data := b.CreateString(n.DeepNested.Data)
		blob := b.CreateByteVector(n.DeepNested.Blob)
		b.StartObject(fbDeepFields)
		b.PrependUOffsetTSlot(0, data, 0)
		b.PrependUOffsetTSlot(1, blob, 0)
		deep = b.EndObject()
	}
	f1 := b.CreateString(n.Field1)
	f2 := b.CreateString(n.Field2)
	f3 := b.CreateString(n.Field3)
	f4 := b.CreateString(n.Field4)
	f5 := b.CreateString(n.Field5)

	b.StartObject(fbNestedFields)
	b.PrependUOffsetTSlot(fbField1, f1, 0)
	b.PrependUOffsetTSlot(fbField2, f2, 0)
	b.PrependUOffsetTSlot(fbField3, f3, 0)
	b.PrependUOffsetTSlot(fbField4, f4, 0)
	b.PrependUOffsetTSlot(fbField5, f5, 0)
	b.PrependInt64Slot(fbLongField1, n.LongField1, 0)
	b.PrependInt32Slot(fbIntField1, n.IntField1, 0)
	b.PrependFloat64Slot(fbDoubleField1, n.DoubleField1, 0)
	if deep != 0 {
		b.PrependUOffsetTSlot(fbDeepNested, deep, 0)
	}
	return b.EndObject()
}

func fbEntries(b *flatbuffers.Builder, m map[string]string) flatbuffers.UOffsetT {
	entries := make([]flatbuffers.UOffsetT, 0, len(m))
	for k, v := range m {
		key := b.CreateString(k)
		val := b.CreateString(v)
		b.StartObject(fbEntryFields)
		b.PrependUOffsetTSlot(0, key, 0)
		b.PrependUOffsetTSlot(1, val, 0)
		entries = append(entries, b.EndObject())
	}
	return fbOffsets(b, entries)
}

func fbStrings(b *flatbuffers.Builder, vs []string) flatbuffers.UOffsetT {
	offs := make([]flatbuffers.UOffsetT, len(vs))
	for i, v := range vs {
		offs[i] = b.CreateString(v)
	}
	return fbOffsets(b, offs)
}

func fbOffsets(b *flatbuffers.Builder, offs []flatbuffers.UOffsetT) flatbuffers.UOffsetT {
	return fbVector(b, offs, flatbuffers.SizeUOffsetT, b.PrependUOffsetT)
}

// fbVector writes vs back to front, which is how the builder lays vectors out.
func fbVector[T any](b *flatbuffers.Builder, vs []T, size int, prepend func(T)) flatbuffers.UOffsetT {
	b.StartVector(size, len(vs), size)
	for i := len(vs) - 1; i >= 0; i-- {
		prepend(vs[i])
	}
	return b.EndVector(len(vs))
}

// ==================== Reader ====================

type fbTable struct {
	flatbuffers.Table
}

func fbRoot(buf []byte) fbTable {
	n := flatbuffers.GetUOffsetT(buf)
	return fbTable{flatbuffers.Table{Bytes: buf, Pos: n}}
}

// field returns the table-relative offset of slot, or 0 when it is absent.
func (t *fbTable) field(slot int) flatbuffers.UOffsetT {
	vt := flatbuffers.VOffsetT((slot + 2) * flatbuffers.SizeVOffsetT)
	return flatbuffers.UOffsetT(t.Offset(vt))
}

// vectorLen panics when the stored length cannot fit in the buffer, so a
// corrupt length never reaches make.
func (t *fbTable) vectorLen(o flatbuffers.UOffsetT) int {
	if o == 0 {
		return 0
	}
	n := t.VectorLen(o)
	if n < 0 || n > len(t.Bytes) {
		panic(fmt.Sprintf("vector length %d exceeds %d byte buffer", n, len(t.Bytes)))
	}
	return n
}

// table returns element j of the table vector at o.
func (t *fbTable) table(o flatbuffers.UOffsetT, j int) fbTable {
	x := t.Vector(o) + flatbuffers.UOffsetT(j*flatbuffers.SizeUOffsetT)
	return fbTable{flatbuffers.Table{Bytes: t.Bytes, Pos: t.Indirect(x)}}
}

func (t *fbTable) sub(slot int) (fbTable, bool) {
	o := t.field(slot)
	if o == 0 {
		return fbTable{}, false
	}
	return fbTable{flatbuffers.Table{Bytes: t.Bytes, Pos: t.Indirect(o + t.Pos)}}, true
}

func (t *fbTable) str(slot int) string {
	o := t.field(slot)
	if o == 0 {
		return ""
	}
	return string(t.ByteVector(o + t.Pos))
}

func (t *fbTable) bytes(slot int) []byte {
	o := t.field(slot)
	if o == 0 {
		return nil
	}
	b := t.ByteVector(o + t.Pos)
	if len(b) == 0 {
		return nil
	}
	return bytes.Clone(b)
}

func (t *fbTable) strs(slot int) []string {
	o := t.field(slot)
	n := t.vectorLen(o)
	if n == 0 {
		return nil
	}
	a := t.Vector(o)
	out := make([]string, n)
	for j := range out {
		out[j] = string(t.ByteVector(a + flatbuffers.UOffsetT(j*flatbuffers.SizeUOffsetT)))
	}
	return out
}

func fbScalars[T any](t *fbTable, slot, size int, get func(flatbuffers.UOffsetT) T) []T {
	o := t.field(slot)
	n := t.vectorLen(o)
	if n == 0 {
		return nil
	}
	a := t.Vector(o)
	out := make([]T, n)
	for j := range out {
		out[j] = get(a + flatbuffers.UOffsetT(j*size))
	}
	return out
}

func fbReadRecord(t *fbTable, r *fixture.Record) {
	o := t.field(fbRefs)
	if n := t.vectorLen(o); n > 0 {
		r.Refs = make([]*fixture.Nested, n)
		for j := range r.Refs {
			ref := t.table(o, j)
			r.Refs[j] = fbReadNested(&ref)
		}
	}

	r.Ints = fbScalars(t, fbInts, 4, t.GetInt32)
	r.Longs = fbScalars(t, fbLongs, 8, t.GetInt64)
	r.Doubles = fbScalars(t, fbDoubles, 8, t.GetFloat64)
	r.Bools = fbScalars(t, fbBools, 1, t.GetBool)
	r.Floats = fbScalars(t, fbFloats, 4, t.GetFloat32)
	r.Shorts = fbScalars(t, fbShorts, 2, t.GetInt16)
	r.Octets = t.bytes(fbOctets)
	r.Chars = fbScalars(t, fbChars, 2, t.GetUint16)
	r.BoxedInts = fbScalars(t, fbBoxedInts, 4, t.GetInt32)
	r.BoxedLongs = fbScalars(t, fbBoxedLongs, 8, t.GetInt64)
	r.BoxedDoubles = fbScalars(t, fbBoxedDoubles, 8, t.GetFloat64)
	r.BoxedBools = fbScalars(t, fbBoxedBools, 1, t.GetBool)
	r.Items = t.strs(fbItems)
	r.Numbers = fbScalars(t, fbNumbers, 4, t.GetInt32)
	r.Strings = t.strs(fbStringsField)

	o = t.field(fbAttributes)
	if n := t.vectorLen(o); n > 0 {
		r.Attributes = make(map[string]string, n)
		for j := 0; j < n; j++ {
			e := t.table(o, j)
			r.Attributes[e.str(0)] = e.str(1)
		}
	}
}

func fbReadNested(t *fbTable) *fixture.Nested {
	n := &fixture.Nested{
		Field1:       t.str(fbField1),
		Field2:       t.str(fbField2),
		Field3:       t.str(fbField3),
		Field4:       t.str(fbField4),
		Field5:       t.str(fbField5),
		LongField1:   fbScalar(t, fbLongField1, t.GetInt64),
		IntField1:    fbScalar(t, fbIntField1, t.GetInt32),
		DoubleField1: fbScalar(t, fbDoubleField1, t.GetFloat64),
	}
	if deep, ok := t.sub(fbDeepNested); ok {
		n.DeepNested = &fixture.DeepNested{
			Data: deep.str(0),
			Blob: deep.bytes(1),
		}
	}
	return n
}

func fbScalar[T any](t *fbTable, slot int, get func(flatbuffers.UOffsetT) T) T {
	var zero T
	o := t.field(slot)
	if o == 0 {
		return zero
	}
	return get(o + t.Pos)
}
