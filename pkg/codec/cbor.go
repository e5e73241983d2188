package codec

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/appnet-org/codecbench/pkg/fixture"
)

// CBOR encodes with RFC 8949 core deterministic options so that map
// ordering never changes the payload.
type CBOR struct {
	enc       cbor.EncMode
	dec       cbor.DecMode
	omitNulls bool
}

// NewCBOR builds the encoder and decoder modes. With omitNulls, nil refs
// are left out of the payload.
func NewCBOR(omitNulls bool) *CBOR {
	enc, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	dec, err := cbor.DecOptions{}.DecMode()
	if err != nil {
		panic(err)
	}
	return &CBOR{enc: enc, dec: dec, omitNulls: omitNulls}
}

func (c *CBOR) Encode(d *fixture.Dataset) ([]byte, error) {
	w, err := toWire(d)
	if err != nil {
		return nil, err
	}
	if c.omitNulls {
		return c.enc.Marshal(toSparse(w))
	}
	return c.enc.Marshal(w)
}

func (c *CBOR) Decode(data []byte) (*fixture.Dataset, error) {
	var w wireDataset[wireRecord]
	if err := c.dec.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return fromWire(&w), nil
}
