// Package codec adapts each benchmarked wire format to one uniform
// encode/decode interface over the fixture.
package codec

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/appnet-org/codecbench/pkg/fixture"
)

// Codec is the uniform adapter every format implements. Encode must treat
// the dataset as read-only; encoded sizes must be deterministic for a fixed
// input.
type Codec interface {
	// Encode converts a dataset to its wire representation.
	Encode(d *fixture.Dataset) ([]byte, error)

	// Decode reconstructs a dataset from its wire representation.
	Decode(data []byte) (*fixture.Dataset, error)
}

// Loader is implemented by codecs that need one-time initialization, such
// as loading a schema, before they can encode.
type Loader interface {
	Load(ctx context.Context) error
}

// Options are passed to every codec factory.
type Options struct {
	// SchemaPath overrides the embedded protobuf schema.
	SchemaPath string

	// OmitNulls leaves nil refs out of the payload for the formats that
	// write them as explicit nulls (JSON, MessagePack, CBOR). The schema
	// formats ignore it.
	OmitNulls bool
}

// Factory builds a fresh codec instance.
type Factory func(opts Options) Codec

var (
	ErrUnknownCodec  = errors.New("codec: unknown format")
	ErrDuplicate     = errors.New("codec: format already registered")
	ErrNotLoaded     = errors.New("codec: Load has not been called")
	ErrSchemaMissing = errors.New("codec: schema is missing a required message or field")
)

type entry struct {
	display string
	factory Factory
}

// Registry maps format identifiers to codec factories.
type Registry struct {
	entries map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds a format under id with a human-readable display name.
func (r *Registry) Register(id, display string, factory Factory) error {
	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, id)
	}
	r.entries[id] = entry{display: display, factory: factory}
	return nil
}

// New instantiates the codec registered under id.
func (r *Registry) New(id string, opts Options) (Codec, error) {
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCodec, id)
	}
	return e.factory(opts), nil
}

// Display returns the display name registered for id.
func (r *Registry) Display(id string) (string, bool) {
	e, ok := r.entries[id]
	return e.display, ok
}

// Names returns all registered identifiers in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for id := range r.entries {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}

// DefaultFormats is the standard comparison set. The first entry is the
// conventional baseline.
var DefaultFormats = []string{"json", "msgpack", "protobuf"}

// DefaultRegistry knows every format shipped with codecbench.
var DefaultRegistry = func() *Registry {
	r := NewRegistry()
	r.Register("json", "JSON", func(o Options) Codec { return JSON{OmitNulls: o.OmitNulls} })
	r.Register("msgpack", "MessagePack", func(o Options) Codec { return MessagePack{OmitNulls: o.OmitNulls} })
	r.Register("protobuf", "Protobuf", func(o Options) Codec { return NewProtobuf(o.SchemaPath) })
	r.Register("cbor", "CBOR", func(o Options) Codec { return NewCBOR(o.OmitNulls) })
	r.Register("capnp", "CapnProto", func(Options) Codec { return CapnProto{} })
	r.Register("flatbuffers", "FlatBuffers", func(Options) Codec { return FlatBuffers{} })
	r.Register("cramberry", "Cramberry", func(Options) Codec { return Cramberry{} })
	return r
}()
