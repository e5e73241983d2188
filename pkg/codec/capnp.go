package codec

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"capnproto.org/go/capnp/v3"

	"github.com/appnet-org/codecbench/pkg/fixture"
)

// Struct layouts, laid out the way the capnp compiler would for:
//
//	struct DeepNested { data @0 :Text; blob @1 :Data; }
//	struct Nested {
//	  field1 @0 :Text; ... field5 @4 :Text;
//	  longField1 @5 :Int64; doubleField1 @6 :Float64; intField1 @7 :Int32;
//	  deepNested @8 :DeepNested;
//	}
//	struct Entry { key @0 :Text; value @1 :Text; }
//	struct Record { refs @0 :List(AnyPointer) ... strings @16 :List(Text); }
//	struct Dataset { records @0 :List(Record); }
var (
	capDatasetSize = capnp.ObjectSize{DataSize: 0, PointerCount: 1}
	capRecordSize  = capnp.ObjectSize{DataSize: 0, PointerCount: 17}
	capNestedSize  = capnp.ObjectSize{DataSize: 24, PointerCount: 6}
	capDeepSize    = capnp.ObjectSize{DataSize: 0, PointerCount: 2}
	capEntrySize   = capnp.ObjectSize{DataSize: 0, PointerCount: 2}
)

// Pointer slots of Record.
const (
	capRefs uint16 = iota
	capInts
	capLongs
	capDoubles
	capBools
	capFloats
	capShorts
	capOctets
	capChars
	capBoxedInts
	capBoxedLongs
	capBoxedDoubles
	capBoxedBools
	capItems
	capNumbers
	capAttributes
	capStrings
)

// Data offsets and pointer slots of Nested.
const (
	capLongOff   capnp.DataOffset = 0
	capDoubleOff capnp.DataOffset = 8
	capIntOff    capnp.DataOffset = 16
	capDeepPtr   uint16           = 5
)

var errCapnpRoot = errors.New("capnp: message has no dataset root")

// CapnProto encodes the fixture as a single-segment Cap'n Proto message.
// Refs are stored in a pointer list so nil references survive a round trip.
type CapnProto struct{}

func (CapnProto) Encode(d *fixture.Dataset) ([]byte, error) {
	msg, seg, err := capnp.NewMessage(capnp.SingleSegment(nil))
	if err != nil {
		return nil, fmt.Errorf("capnp message creation: %w", err)
	}
	root, err := capnp.NewRootStruct(seg, capDatasetSize)
	if err != nil {
		return nil, fmt.Errorf("capnp root: %w", err)
	}
	records, err := capnp.NewCompositeList(seg, capRecordSize, int32(len(d.Records)))
	if err != nil {
		return nil, err
	}

	w := &capWriter{seg: seg}
	for i := range d.Records {
		w.record(records.Struct(i), &d.Records[i])
	}
	w.set(root, 0, records.ToPtr())
	if w.err != nil {
		return nil, w.err
	}
	return msg.Marshal()
}

func (CapnProto) Decode(data []byte) (*fixture.Dataset, error) {
	msg, err := capnp.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	rootPtr, err := msg.Root()
	if err != nil {
		return nil, err
	}
	if !rootPtr.IsValid() {
		return nil, errCapnpRoot
	}

	r := &capReader{}
	records := r.ptr(rootPtr.Struct(), 0).List()
	d := &fixture.Dataset{Records: make([]fixture.Record, records.Len())}
	for i := range d.Records {
		r.record(records.Struct(i), &d.Records[i])
	}
	if r.err != nil {
		return nil, r.err
	}
	return d, nil
}

// ==================== Writer ====================

// capWriter keeps the first allocation error so call sites stay linear.
type capWriter struct {
	seg *capnp.Segment
	err error
}

func (w *capWriter) set(s capnp.Struct, i uint16, p capnp.Ptr) {
	if w.err == nil {
		w.err = s.SetPtr(i, p)
	}
}

func (w *capWriter) text(s capnp.Struct, i uint16, v string) {
	if w.err == nil {
		w.err = s.SetText(i, v)
	}
}

func (w *capWriter) data(s capnp.Struct, i uint16, v []byte) {
	if w.err == nil {
		w.err = s.SetData(i, v)
	}
}

func (w *capWriter) record(s capnp.Struct, r *fixture.Record) {
	w.set(s, capRefs, w.refs(r.Refs))
	w.set(s, capInts, w.int32s(r.Ints))
	w.set(s, capLongs, w.int64s(r.Longs))
	w.set(s, capDoubles, w.float64s(r.Doubles))
	w.set(s, capBools, w.bools(r.Bools))
	w.set(s, capFloats, w.float32s(r.Floats))
	w.set(s, capShorts, w.int16s(r.Shorts))
	w.data(s, capOctets, r.Octets)
	w.set(s, capChars, w.uint16s(r.Chars))
	w.set(s, capBoxedInts, w.int32s(r.BoxedInts))
	w.set(s, capBoxedLongs, w.int64s(r.BoxedLongs))
	w.set(s, capBoxedDoubles, w.float64s(r.BoxedDoubles))
	w.set(s, capBoxedBools, w.bools(r.BoxedBools))
	w.set(s, capItems, w.texts(r.Items))
	w.set(s, capNumbers, w.int32s(r.Numbers))
	w.set(s, capAttributes, w.entries(r.Attributes))
	w.set(s, capStrings, w.texts(r.Strings))
}

func (w *capWriter) refs(refs []*fixture.Nested) capnp.Ptr {
	if w.err != nil {
		return capnp.Ptr{}
	}
	l, err := capnp.NewPointerList(w.seg, int32(len(refs)))
	if err != nil {
		w.err = err
		return capnp.Ptr{}
	}
	for i, ref := range refs {
		if ref == nil {
			continue
		}
		s, err := capnp.NewStruct(w.seg, capNestedSize)
		if err != nil {
			w.err = err
			return capnp.Ptr{}
		}
		w.nested(s, ref)
		if w.err == nil {
			w.err = l.Set(i, s.ToPtr())
		}
	}
	return l.ToPtr()
}

func (w *capWriter) nested(s capnp.Struct, n *fixture.Nested) {
	w.text(s, 0, n.Field1)
	w.text(s, 1, n.Field2)
	w.text(s, 2, n.Field3)
	w.text(s, 3, n.Field4)
	w.text(s, 4, n.Field5)
	s.SetUint64(capLongOff, uint64(n.LongField1))
	s.SetUint64(capDoubleOff, math.Float64bits(n.DoubleField1))
	s.SetUint32(capIntOff, uint32(n.IntField1))

	if n.DeepNested == nil || w.err != nil {
		return
	}
	deep, err := capnp.NewStruct(w.seg, capDeepSize)
	if err != nil {
		w.err = err
		return
	}
	w.text(deep, 0, n.DeepNested.Data)
	w.data(deep, 1, n.DeepNested.Blob)
	w.set(s, capDeepPtr, deep.ToPtr())
}

func (w *capWriter) entries(m map[string]string) capnp.Ptr {
	if w.err != nil {
		return capnp.Ptr{}
	}
	l, err := capnp.NewCompositeList(w.seg, capEntrySize, int32(len(m)))
	if err != nil {
		w.err = err
		return capnp.Ptr{}
	}
	i := 0
	for k, v := range m {
		e := l.Struct(i)
		w.text(e, 0, k)
		w.text(e, 1, v)
		i++
	}
	return l.ToPtr()
}

func (w *capWriter) texts(vs []string) capnp.Ptr {
	if w.err != nil {
		return capnp.Ptr{}
	}
	l, err := capnp.NewTextList(w.seg, int32(len(vs)))
	if err != nil {
		w.err = err
		return capnp.Ptr{}
	}
	for i, v := range vs {
		if err := l.Set(i, v); err != nil {
			w.err = err
			break
		}
	}
	return l.ToPtr()
}

func (w *capWriter) bools(vs []bool) capnp.Ptr {
	if w.err != nil {
		return capnp.Ptr{}
	}
	l, err := capnp.NewBitList(w.seg, int32(len(vs)))
	if err != nil {
		w.err = err
		return capnp.Ptr{}
	}
	for i, v := range vs {
		l.Set(i, v)
	}
	return l.ToPtr()
}

func (w *capWriter) int16s(vs []int16) capnp.Ptr {
	if w.err != nil {
		return capnp.Ptr{}
	}
	l, err := capnp.NewInt16List(w.seg, int32(len(vs)))
	if err != nil {
		w.err = err
		return capnp.Ptr{}
	}
	for i, v := range vs {
		l.Set(i, v)
	}
	return l.ToPtr()
}

func (w *capWriter) uint16s(vs []uint16) capnp.Ptr {
	if w.err != nil {
		return capnp.Ptr{}
	}
	l, err := capnp.NewUInt16List(w.seg, int32(len(vs)))
	if err != nil {
		w.err = err
		return capnp.Ptr{}
	}
	for i, v := range vs {
		l.Set(i, v)
	}
	return l.ToPtr()
}

func (w *capWriter) int32s(vs []int32) capnp.Ptr {
	if w.err != nil {
		return capnp.Ptr{}
	}
	l, err := capnp.NewInt32List(w.seg, int32(len(vs)))
	if err != nil {
		w.err = err
		return capnp.Ptr{}
	}
	for i, v := range vs {
		l.Set(i, v)
	}
	return l.ToPtr()
}

func (w *capWriter) int64s(vs []int64) capnp.Ptr {
	if w.err != nil {
		return capnp.Ptr{}
	}
	l, err := capnp.NewInt64List(w.seg, int32(len(vs)))
	if err != nil {
		w.err = err
		return capnp.Ptr{}
	}
	for i, v := range vs {
		l.Set(i, v)
	}
	return l.ToPtr()
}

func (w *capWriter) float32s(vs []float32) capnp.Ptr {
	if w.err != nil {
		return capnp.Ptr{}
	}
	l, err := capnp.NewFloat32List(w.seg, int32(len(vs)))
	if err != nil {
		w.err = err
		return capnp.Ptr{}
	}
	for i, v := range vs {
		l.Set(i, v)
	}
	return l.ToPtr()
}

func (w *capWriter) float64s(vs []float64) capnp.Ptr {
	if w.err != nil {
		return capnp.Ptr{}
	}
	l, err := capnp.NewFloat64List(w.seg, int32(len(vs)))
	if err != nil {
		w.err = err
		return capnp.Ptr{}
	}
	for i, v := range vs {
		l.Set(i, v)
	}
	return l.ToPtr()
}

// ==================== Reader ====================

type capReader struct {
	err error
}

func (r *capReader) ptr(s capnp.Struct, i uint16) capnp.Ptr {
	if r.err != nil {
		return capnp.Ptr{}
	}
	p, err := s.Ptr(i)
	if err != nil {
		r.err = err
	}
	return p
}

func (r *capReader) text(s capnp.Struct, i uint16) string {
	return r.ptr(s, i).Text()
}

func (r *capReader) data(s capnp.Struct, i uint16) []byte {
	b := r.ptr(s, i).Data()
	if len(b) == 0 {
		return nil
	}
	return bytes.Clone(b)
}

func (r *capReader) record(s capnp.Struct, rec *fixture.Record) {
	refs := capnp.PointerList(r.ptr(s, capRefs).List())
	rec.Refs = make([]*fixture.Nested, refs.Len())
	for i := range rec.Refs {
		p, err := refs.At(i)
		if err != nil {
			r.err = err
			return
		}
		if p.IsValid() {
			rec.Refs[i] = r.nested(p.Struct())
		}
	}

	rec.Ints = r.int32s(s, capInts)
	rec.Longs = r.int64s(s, capLongs)
	rec.Doubles = r.float64s(s, capDoubles)
	rec.Bools = r.bools(s, capBools)
	rec.Floats = r.float32s(s, capFloats)
	rec.Shorts = r.int16s(s, capShorts)
	rec.Octets = r.data(s, capOctets)
	rec.Chars = r.uint16s(s, capChars)
	rec.BoxedInts = r.int32s(s, capBoxedInts)
	rec.BoxedLongs = r.int64s(s, capBoxedLongs)
	rec.BoxedDoubles = r.float64s(s, capBoxedDoubles)
	rec.BoxedBools = r.bools(s, capBoxedBools)
	rec.Items = r.texts(s, capItems)
	rec.Numbers = r.int32s(s, capNumbers)
	rec.Attributes = r.entries(s, capAttributes)
	rec.Strings = r.texts(s, capStrings)
}

func (r *capReader) nested(s capnp.Struct) *fixture.Nested {
	n := &fixture.Nested{
		Field1:       r.text(s, 0),
		Field2:       r.text(s, 1),
		Field3:       r.text(s, 2),
		Field4:       r.text(s, 3),
		Field5:       r.text(s, 4),
		LongField1:   int64(s.Uint64(capLongOff)),
		DoubleField1: math.Float64frombits(s.Uint64(capDoubleOff)),
		IntField1:    int32(s.Uint32(capIntOff)),
	}
	if p := r.ptr(s, capDeepPtr); p.IsValid() {
		deep := p.Struct()
		n.DeepNested = &fixture.DeepNested{
			Data: r.text(deep, 0),
			Blob: r.data(deep, 1),
		}
	}
	return n
}

func (r *capReader) entries(s capnp.Struct, i uint16) map[string]string {
	l := r.ptr(s, i).List()
	if l.Len() == 0 {
		return nil
	}
	m := make(map[string]string, l.Len())
	for j := 0; j < l.Len(); j++ {
		e := l.Struct(j)
		m[r.text(e, 0)] = r.text(e, 1)
	}
	return m
}

func (r *capReader) texts(s capnp.Struct, i uint16) []string {
	l := capnp.TextList(r.ptr(s, i).List())
	if l.Len() == 0 {
		return nil
	}
	out := make([]string, l.Len())
	for j := range out {
		v, err := l.At(j)
		if err != nil {
			r.err = err
			return nil
		}
		out[j] = v
	}
	return out
}

func (r *capReader) bools(s capnp.Struct, i uint16) []bool {
	l := capnp.BitList(r.ptr(s, i).List())
	if l.Len() == 0 {
		return nil
	}
	out := make([]bool, l.Len())
	for j := range out {
		out[j] = l.At(j)
	}
	return out
}

func (r *capReader) int16s(s capnp.Struct, i uint16) []int16 {
	l := capnp.Int16List(r.ptr(s, i).List())
	if l.Len() == 0 {
		return nil
	}
	out := make([]int16, l.Len())
	for j := range out {
		out[j] = l.At(j)
	}
	return out
}

func (r *capReader) uint16s(s capnp.Struct, i uint16) []uint16 {
	l := capnp.UInt16List(r.ptr(s, i).List())
	if l.Len() == 0 {
		return nil
	}
	out := make([]uint16, l.Len())
	for j := range out {
		out[j] = l.At(j)
	}
	return out
}

func (r *capReader) int32s(s capnp.Struct, i uint16) []int32 {
	l := capnp.Int32List(r.ptr(s, i).List())
	if l.Len() == 0 {
		return nil
	}
	out := make([]int32, l.Len())
	for j := range out {
		out[j] = l.At(j)
	}
	return out
}

func (r *capReader) int64s(s capnp.Struct, i uint16) []int64 {
	l := capnp.Int64List(r.ptr(s, i).List())
	if l.Len() == 0 {
		return nil
	}
	out := make([]int64, l.Len())
	for j := range out {
		out[j] = l.At(j)
	}
	return out
}

func (r *capReader) float32s(s capnp.Struct, i uint16) []float32 {
	l := capnp.Float32List(r.ptr(s, i).List())
	if l.Len() == 0 {
		return nil
	}
	out := make([]float32, l.Len())
	for j := range out {
		out[j] = l.At(j)
	}
	return out
}

func (r *capReader) float64s(s capnp.Struct, i uint16) []float64 {
	l := capnp.Float64List(r.ptr(s, i).List())
	if l.Len() == 0 {
		return nil
	}
	out := make([]float64, l.Len())
	for j := range out {
		out[j] = l.At(j)
	}
	return out
}
