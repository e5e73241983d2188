package codec

import (
	"context"
	_ "embed"
	"fmt"
	"os"

	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/appnet-org/codecbench/pkg/fixture"
)

//go:embed schema/records.textproto
var embeddedSchema []byte

// DatasetMessage is the fully-qualified root message of the schema.
const DatasetMessage protoreflect.FullName = "codecbench.Dataset"

// Protobuf is the schema-based binary format. Messages are built with
// dynamicpb from the descriptor set resolved in Load; conversion between
// fixture types and dynamic messages happens inside Encode and Decode.
type Protobuf struct {
	schemaPath string
	dataset    protoreflect.MessageDescriptor
	f          *protoFields
}

// NewProtobuf returns an unloaded codec. An empty schemaPath selects the
// embedded schema.
func NewProtobuf(schemaPath string) *Protobuf {
	return &Protobuf{schemaPath: schemaPath}
}

// Load parses the descriptor set and resolves every field the adapter uses.
func (p *Protobuf) Load(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw := embeddedSchema
	if p.schemaPath != "" {
		var err error
		raw, err = os.ReadFile(p.schemaPath)
		if err != nil {
			return fmt.Errorf("read schema %s: %w", p.schemaPath, err)
		}
	}

	md, err := LoadSchema(raw)
	if err != nil {
		return err
	}

	fields, err := resolveProtoFields(md)
	if err != nil {
		return err
	}
	p.dataset = md
	p.f = fields
	return nil
}

// LoadSchema parses a text-format FileDescriptorSet and returns the
// descriptor of DatasetMessage.
func LoadSchema(raw []byte) (protoreflect.MessageDescriptor, error) {
	var set descriptorpb.FileDescriptorSet
	if err := prototext.Unmarshal(raw, &set); err != nil {
		return nil, fmt.Errorf("parse schema: %w", err)
	}

	files, err := protodesc.NewFiles(&set)
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}

	d, err := files.FindDescriptorByName(DatasetMessage)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSchemaMissing, DatasetMessage, err)
	}
	md, ok := d.(protoreflect.MessageDescriptor)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a message", ErrSchemaMissing, DatasetMessage)
	}
	return md, nil
}

func (p *Protobuf) Encode(d *fixture.Dataset) ([]byte, error) {
	if p.f == nil {
		return nil, ErrNotLoaded
	}

	msg := dynamicpb.NewMessage(p.dataset)
	records := msg.Mutable(p.f.records).List()
	for i := range d.Records {
		v := records.NewElement()
		p.f.fillRecord(v.Message(), &d.Records[i])
		records.Append(v)
	}
	return proto.Marshal(msg)
}

func (p *Protobuf) Decode(data []byte) (*fixture.Dataset, error) {
	if p.f == nil {
		return nil, ErrNotLoaded
	}

	msg := dynamicpb.NewMessage(p.dataset)
	if err := proto.Unmarshal(data, msg); err != nil {
		return nil, err
	}

	records := msg.Get(p.f.records).List()
	d := &fixture.Dataset{Records: make([]fixture.Record, records.Len())}
	for i := range d.Records {
		p.f.readRecord(records.Get(i).Message(), &d.Records[i])
	}
	return d, nil
}

// protoFields caches the descriptors of every field touched by the adapter.
type protoFields struct {
	records protoreflect.FieldDescriptor

	refs, ints, longs, doubles, bools, floats, shorts, octets, chars protoreflect.FieldDescriptor
	boxedInts, boxedLongs, boxedDoubles, boxedBools                 protoreflect.FieldDescriptor
	items, numbers, attributes, strings                             protoreflect.FieldDescriptor

	nested    [5]protoreflect.FieldDescriptor
	longField protoreflect.FieldDescriptor
	intField  protoreflect.FieldDescriptor
	dblField  protoreflect.FieldDescriptor
	deep      protoreflect.FieldDescriptor

	deepData, deepBlob protoreflect.FieldDescriptor
}

type fieldSpec struct {
	dst      *protoreflect.FieldDescriptor
	name     protoreflect.Name
	kind     protoreflect.Kind
	repeated bool
}

func lookupFields(md protoreflect.MessageDescriptor, specs []fieldSpec) error {
	for _, s := range specs {
		fd := md.Fields().ByName(s.name)
		if fd == nil {
			return fmt.Errorf("%w: %s.%s", ErrSchemaMissing, md.FullName(), s.name)
		}
		if fd.Kind() != s.kind || (fd.Cardinality() == protoreflect.Repeated) != s.repeated {
			return fmt.Errorf("%w: %s has kind %s, want %s (repeated=%t)",
				ErrSchemaMissing, fd.FullName(), fd.Kind(), s.kind, s.repeated)
		}
		*s.dst = fd
	}
	return nil
}

func resolveProtoFields(dataset protoreflect.MessageDescriptor) (*protoFields, error) {
	f := &protoFields{}
	if err := lookupFields(dataset, []fieldSpec{
		{&f.records, "records", protoreflect.MessageKind, true},
	}); err != nil {
		return nil, err
	}

	record := f.records.Message()
	if err := lookupFields(record, []fieldSpec{
		{&f.refs, "refs", protoreflect.MessageKind, true},
		{&f.ints, "ints", protoreflect.Int32Kind, true},
		{&f.longs, "longs", protoreflect.Int64Kind, true},
		{&f.doubles, "doubles", protoreflect.DoubleKind, true},
		{&f.bools, "bools", protoreflect.BoolKind, true},
		{&f.floats, "floats", protoreflect.FloatKind, true},
		{&f.shorts, "shorts", protoreflect.Sint32Kind, true},
		{&f.octets, "octets", protoreflect.BytesKind, false},
		{&f.chars, "chars", protoreflect.Uint32Kind, true},
		{&f.boxedInts, "boxed_ints", protoreflect.Int32Kind, true},
		{&f.boxedLongs, "boxed_longs", protoreflect.Int64Kind, true},
		{&f.boxedDoubles, "boxed_doubles", protoreflect.DoubleKind, true},
		{&f.boxedBools, "boxed_bools", protoreflect.BoolKind, true},
		{&f.items, "items", protoreflect.StringKind, true},
		{&f.numbers, "numbers", protoreflect.Int32Kind, true},
		{&f.attributes, "attributes", protoreflect.MessageKind, true},
		{&f.strings, "strings", protoreflect.StringKind, true},
	}); err != nil {
		return nil, err
	}
	if !f.attributes.IsMap() {
		return nil, fmt.Errorf("%w: %s is not a map", ErrSchemaMissing, f.attributes.FullName())
	}

	nested := f.refs.Message()
	if err := lookupFields(nested, []fieldSpec{
		{&f.nested[0], "field1", protoreflect.StringKind, false},
		{&f.nested[1], "field2", protoreflect.StringKind, false},
		{&f.nested[2], "field3", protoreflect.StringKind, false},
		{&f.nested[3], "field4", protoreflect.StringKind, false},
		{&f.nested[4], "field5", protoreflect.StringKind, false},
		{&f.longField, "long_field1", protoreflect.Int64Kind, false},
		{&f.intField, "int_field1", protoreflect.Int32Kind, false},
		{&f.dblField, "double_field1", protoreflect.DoubleKind, false},
		{&f.deep, "deep_nested", protoreflect.MessageKind, false},
	}); err != nil {
		return nil, err
	}

	if err := lookupFields(f.deep.Message(), []fieldSpec{
		{&f.deepData, "data", protoreflect.StringKind, false},
		{&f.deepBlob, "blob", protoreflect.BytesKind, false},
	}); err != nil {
		return nil, err
	}
	return f, nil
}

// ==================== Encoding ====================

func appendValues[T any](l protoreflect.List, vs []T, conv func(T) protoreflect.Value) {
	for _, v := range vs {
		l.Append(conv(v))
	}
}

func int32Value[T ~int16 | ~int32](v T) protoreflect.Value {
	return protoreflect.ValueOfInt32(int32(v))
}

func uint32Value[T ~uint16 | ~uint32](v T) protoreflect.Value {
	return protoreflect.ValueOfUint32(uint32(v))
}

func (f *protoFields) fillRecord(m protoreflect.Message, r *fixture.Record) {
	refs := m.Mutable(f.refs).List()
	for _, ref := range r.Refs {
		v := refs.NewElement()
		if ref != nil {
			f.fillNested(v.Message(), ref)
		}
		refs.Append(v)
	}

	appendValues(m.Mutable(f.ints).List(), r.Ints, int32Value[int32])
	appendValues(m.Mutable(f.longs).List(), r.Longs, protoreflect.ValueOfInt64)
	appendValues(m.Mutable(f.doubles).List(), r.Doubles, protoreflect.ValueOfFloat64)
	appendValues(m.Mutable(f.bools).List(), r.Bools, protoreflect.ValueOfBool)
	appendValues(m.Mutable(f.floats).List(), r.Floats, protoreflect.ValueOfFloat32)
	appendValues(m.Mutable(f.shorts).List(), r.Shorts, int32Value[int16])
	m.Set(f.octets, protoreflect.ValueOfBytes(r.Octets))
	appendValues(m.Mutable(f.chars).List(), r.Chars, uint32Value[uint16])
	appendValues(m.Mutable(f.boxedInts).List(), r.BoxedInts, int32Value[int32])
	appendValues(m.Mutable(f.boxedLongs).List(), r.BoxedLongs, protoreflect.ValueOfInt64)
	appendValues(m.Mutable(f.boxedDoubles).List(), r.BoxedDoubles, protoreflect.ValueOfFloat64)
	appendValues(m.Mutable(f.boxedBools).List(), r.BoxedBools, protoreflect.ValueOfBool)
	appendValues(m.Mutable(f.items).List(), r.Items, protoreflect.ValueOfString)
	appendValues(m.Mutable(f.numbers).List(), r.Numbers, int32Value[int32])

	attrs := m.Mutable(f.attributes).Map()
	for k, v := range r.Attributes {
		attrs.Set(protoreflect.ValueOfString(k).MapKey(), protoreflect.ValueOfString(v))
	}

	appendValues(m.Mutable(f.strings).List(), r.Strings, protoreflect.ValueOfString)
}

func (f *protoFields) fillNested(m protoreflect.Message, n *fixture.Nested) {
	m.Set(f.nested[0], protoreflect.ValueOfString(n.Field1))
	m.Set(f.nested[1], protoreflect.ValueOfString(n.Field2))
	m.Set(f.nested[2], protoreflect.ValueOfString(n.Field3))
	m.Set(f.nested[3], protoreflect.ValueOfString(n.Field4))
	m.Set(f.nested[4], protoreflect.ValueOfString(n.Field5))
	m.Set(f.longField, protoreflect.ValueOfInt64(n.LongField1))
	m.Set(f.intField, protoreflect.ValueOfInt32(n.IntField1))
	m.Set(f.dblField, protoreflect.ValueOfFloat64(n.DoubleField1))

	if n.DeepNested != nil {
		deep := m.Mutable(f.deep).Message()
		deep.Set(f.deepData, protoreflect.ValueOfString(n.DeepNested.Data))
		deep.Set(f.deepBlob, protoreflect.ValueOfBytes(n.DeepNested.Blob))
	}
}

// ==================== Decoding ====================

func listValues[T any](l protoreflect.List, conv func(protoreflect.Value) T) []T {
	if l.Len() == 0 {
		return nil
	}
	out := make([]T, l.Len())
	for i := range out {
		out[i] = conv(l.Get(i))
	}
	return out
}

func asInt32(v protoreflect.Value) int32     { return int32(v.Int()) }
func asInt16(v protoreflect.Value) int16     { return int16(v.Int()) }
func asInt64(v protoreflect.Value) int64     { return v.Int() }
func asUint16(v protoreflect.Value) uint16   { return uint16(v.Uint()) }
func asFloat32(v protoreflect.Value) float32 { return float32(v.Float()) }
func asFloat64(v protoreflect.Value) float64 { return v.Float() }
func asBool(v protoreflect.Value) bool       { return v.Bool() }
func asString(v protoreflect.Value) string   { return v.String() }

func (f *protoFields) readRecord(m protoreflect.Message, r *fixture.Record) {
	refs := m.Get(f.refs).List()
	r.Refs = make([]*fixture.Nested, refs.Len())
	for i := range r.Refs {
		r.Refs[i] = f.readNested(refs.Get(i).Message())
	}

	r.Ints = listValues(m.Get(f.ints).List(), asInt32)
	r.Longs = listValues(m.Get(f.longs).List(), asInt64)
	r.Doubles = listValues(m.Get(f.doubles).List(), asFloat64)
	r.Bools = listValues(m.Get(f.bools).List(), asBool)
	r.Floats = listValues(m.Get(f.floats).List(), asFloat32)
	r.Shorts = listValues(m.Get(f.shorts).List(), asInt16)
	if b := m.Get(f.octets).Bytes(); len(b) > 0 {
		r.Octets = b
	}
	r.Chars = listValues(m.Get(f.chars).List(), asUint16)
	r.BoxedInts = listValues(m.Get(f.boxedInts).List(), asInt32)
	r.BoxedLongs = listValues(m.Get(f.boxedLongs).List(), asInt64)
	r.BoxedDoubles = listValues(m.Get(f.boxedDoubles).List(), asFloat64)
	r.BoxedBools = listValues(m.Get(f.boxedBools).List(), asBool)
	r.Items = listValues(m.Get(f.items).List(), asString)
	r.Numbers = listValues(m.Get(f.numbers).List(), asInt32)

	if attrs := m.Get(f.attributes).Map(); attrs.Len() > 0 {
		r.Attributes = make(map[string]string, attrs.Len())
		attrs.Range(func(k protoreflect.MapKey, v protoreflect.Value) bool {
			r.Attributes[k.String()] = v.String()
			return true
		})
	}

	r.Strings = listValues(m.Get(f.strings).List(), asString)
}

func (f *protoFields) readNested(m protoreflect.Message) *fixture.Nested {
	n := &fixture.Nested{
		Field1:       m.Get(f.nested[0]).String(),
		Field2:       m.Get(f.nested[1]).String(),
		Field3:       m.Get(f.nested[2]).String(),
		Field4:       m.Get(f.nested[3]).String(),
		Field5:       m.Get(f.nested[4]).String(),
		LongField1:   m.Get(f.longField).Int(),
		IntField1:    int32(m.Get(f.intField).Int()),
		DoubleField1: m.Get(f.dblField).Float(),
	}
	if m.Has(f.deep) {
		deep := m.Get(f.deep).Message()
		n.DeepNested = &fixture.DeepNested{
			Data: deep.Get(f.deepData).String(),
		}
		if b := deep.Get(f.deepBlob).Bytes(); len(b) > 0 {
			n.DeepNested.Blob = b
		}
	}
	return n
}
