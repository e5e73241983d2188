package codec

import (
	"github.com/blockberries/cramberry/pkg/cramberry"

	"github.com/appnet-org/codecbench/pkg/fixture"
)

// Cramberry is the reflection-driven binary format from blockberries. The
// default options sort map keys and skip zero-valued struct fields; nil
// refs inside the list are kept as nil markers.
type Cramberry struct{}

func (Cramberry) Encode(d *fixture.Dataset) ([]byte, error) {
	return cramberry.Marshal(d)
}

func (Cramberry) Decode(data []byte) (*fixture.Dataset, error) {
	var d fixture.Dataset
	if err := cramberry.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}
