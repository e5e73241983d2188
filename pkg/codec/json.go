package codec

import (
	"encoding/json"

	"github.com/appnet-org/codecbench/pkg/fixture"
)

// JSON is the plain-text structured format and the conventional baseline.
// With OmitNulls set, nil refs are left out of the payload instead of being
// written as null.
type JSON struct {
	OmitNulls bool
}

func (c JSON) Encode(d *fixture.Dataset) ([]byte, error) {
	w, err := toWire(d)
	if err != nil {
		return nil, err
	}
	if c.OmitNulls {
		return json.Marshal(toSparse(w))
	}
	return json.Marshal(w)
}

func (JSON) Decode(data []byte) (*fixture.Dataset, error) {
	var w wireDataset[wireRecord]
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return fromWire(&w), nil
}
