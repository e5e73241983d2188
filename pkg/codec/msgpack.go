package codec

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/appnet-org/codecbench/pkg/fixture"
)

// MessagePack is the compact schemaless binary format. OmitNulls turns on
// the encoder's omit-empty mode, which drops nil refs along with every
// other zero-valued field.
type MessagePack struct {
	OmitNulls bool
}

func (c MessagePack) Encode(d *fixture.Dataset) ([]byte, error) {
	w, err := toWire(d)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetOmitEmpty(c.OmitNulls)
	if err := enc.Encode(w); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (MessagePack) Decode(data []byte) (*fixture.Dataset, error) {
	var w wireDataset[wireRecord]
	if err := msgpack.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return fromWire(&w), nil
}
