package codec

import (
	"errors"
	"fmt"

	"github.com/appnet-org/codecbench/pkg/fixture"
)

// The reflection codecs (JSON, MessagePack, CBOR) write each reference as
// its own named property, ref1 through ref20, so that a nil reference is a
// null property that an omit-nulls encoder can leave out.

var errTooManyRefs = errors.New("codec: record has more refs than ref properties")

type wireDataset[R any] struct {
	Records []R `json:"records" msgpack:"records"`
}

type wireRecord struct {
	Ref1         *fixture.Nested   `json:"ref1" msgpack:"ref1"`
	Ref2         *fixture.Nested   `json:"ref2" msgpack:"ref2"`
	Ref3         *fixture.Nested   `json:"ref3" msgpack:"ref3"`
	Ref4         *fixture.Nested   `json:"ref4" msgpack:"ref4"`
	Ref5         *fixture.Nested   `json:"ref5" msgpack:"ref5"`
	Ref6         *fixture.Nested   `json:"ref6" msgpack:"ref6"`
	Ref7         *fixture.Nested   `json:"ref7" msgpack:"ref7"`
	Ref8         *fixture.Nested   `json:"ref8" msgpack:"ref8"`
	Ref9         *fixture.Nested   `json:"ref9" msgpack:"ref9"`
	Ref10        *fixture.Nested   `json:"ref10" msgpack:"ref10"`
	Ref11        *fixture.Nested   `json:"ref11" msgpack:"ref11"`
	Ref12        *fixture.Nested   `json:"ref12" msgpack:"ref12"`
	Ref13        *fixture.Nested   `json:"ref13" msgpack:"ref13"`
	Ref14        *fixture.Nested   `json:"ref14" msgpack:"ref14"`
	Ref15        *fixture.Nested   `json:"ref15" msgpack:"ref15"`
	Ref16        *fixture.Nested   `json:"ref16" msgpack:"ref16"`
	Ref17        *fixture.Nested   `json:"ref17" msgpack:"ref17"`
	Ref18        *fixture.Nested   `json:"ref18" msgpack:"ref18"`
	Ref19        *fixture.Nested   `json:"ref19" msgpack:"ref19"`
	Ref20        *fixture.Nested   `json:"ref20" msgpack:"ref20"`
	Ints         []int32           `json:"ints" msgpack:"ints"`
	Longs        []int64           `json:"longs" msgpack:"longs"`
	Doubles      []float64         `json:"doubles" msgpack:"doubles"`
	Bools        []bool            `json:"bools" msgpack:"bools"`
	Floats       []float32         `json:"floats" msgpack:"floats"`
	Shorts       []int16           `json:"shorts" msgpack:"shorts"`
	Octets       []uint8           `json:"octets" msgpack:"octets"`
	Chars        []uint16          `json:"chars" msgpack:"chars"`
	BoxedInts    []int32           `json:"boxedInts" msgpack:"boxedInts"`
	BoxedLongs   []int64           `json:"boxedLongs" msgpack:"boxedLongs"`
	BoxedDoubles []float64         `json:"boxedDoubles" msgpack:"boxedDoubles"`
	BoxedBools   []bool            `json:"boxedBools" msgpack:"boxedBools"`
	Items        []string          `json:"items" msgpack:"items"`
	Numbers      []int32           `json:"numbers" msgpack:"numbers"`
	Attributes   map[string]string `json:"attributes" msgpack:"attributes"`
	Strings      []string          `json:"strings" msgpack:"strings"`
}

// sparseRecord is wireRecord with the ref properties tagged omitempty. The
// two types convert into each other. MessagePack does not need it because
// its encoder can force omitempty at run time.
type sparseRecord struct {
	Ref1         *fixture.Nested   `json:"ref1,omitempty"`
	Ref2         *fixture.Nested   `json:"ref2,omitempty"`
	Ref3         *fixture.Nested   `json:"ref3,omitempty"`
	Ref4         *fixture.Nested   `json:"ref4,omitempty"`
	Ref5         *fixture.Nested   `json:"ref5,omitempty"`
	Ref6         *fixture.Nested   `json:"ref6,omitempty"`
	Ref7         *fixture.Nested   `json:"ref7,omitempty"`
	Ref8         *fixture.Nested   `json:"ref8,omitempty"`
	Ref9         *fixture.Nested   `json:"ref9,omitempty"`
	Ref10        *fixture.Nested   `json:"ref10,omitempty"`
	Ref11        *fixture.Nested   `json:"ref11,omitempty"`
	Ref12        *fixture.Nested   `json:"ref12,omitempty"`
	Ref13        *fixture.Nested   `json:"ref13,omitempty"`
	Ref14        *fixture.Nested   `json:"ref14,omitempty"`
	Ref15        *fixture.Nested   `json:"ref15,omitempty"`
	Ref16        *fixture.Nested   `json:"ref16,omitempty"`
	Ref17        *fixture.Nested   `json:"ref17,omitempty"`
	Ref18        *fixture.Nested   `json:"ref18,omitempty"`
	Ref19        *fixture.Nested   `json:"ref19,omitempty"`
	Ref20        *fixture.Nested   `json:"ref20,omitempty"`
	Ints         []int32           `json:"ints"`
	Longs        []int64           `json:"longs"`
	Doubles      []float64         `json:"doubles"`
	Bools        []bool            `json:"bools"`
	Floats       []float32         `json:"floats"`
	Shorts       []int16           `json:"shorts"`
	Octets       []uint8           `json:"octets"`
	Chars        []uint16          `json:"chars"`
	BoxedInts    []int32           `json:"boxedInts"`
	BoxedLongs   []int64           `json:"boxedLongs"`
	BoxedDoubles []float64         `json:"boxedDoubles"`
	BoxedBools   []bool            `json:"boxedBools"`
	Items        []string          `json:"items"`
	Numbers      []int32           `json:"numbers"`
	Attributes   map[string]string `json:"attributes"`
	Strings      []string          `json:"strings"`
}

func (w *wireRecord) refs() [fixture.RefCount]**fixture.Nested {
	return [fixture.RefCount]**fixture.Nested{
		&w.Ref1, &w.Ref2, &w.Ref3, &w.Ref4, &w.Ref5,
		&w.Ref6, &w.Ref7, &w.Ref8, &w.Ref9, &w.Ref10,
		&w.Ref11, &w.Ref12, &w.Ref13, &w.Ref14, &w.Ref15,
		&w.Ref16, &w.Ref17, &w.Ref18, &w.Ref19, &w.Ref20,
	}
}

// toWire shares the dataset's slices and maps; it never copies values.
func toWire(d *fixture.Dataset) (*wireDataset[wireRecord], error) {
	out := &wireDataset[wireRecord]{Records: make([]wireRecord, len(d.Records))}
	for i := range d.Records {
		r := &d.Records[i]
		if len(r.Refs) > fixture.RefCount {
			return nil, fmt.Errorf("%w: record %d has %d", errTooManyRefs, i, len(r.Refs))
		}
		w := &out.Records[i]
		refs := w.refs()
		for j, ref := range r.Refs {
			*refs[j] = ref
		}
		w.Ints = r.Ints
		w.Longs = r.Longs
		w.Doubles = r.Doubles
		w.Bools = r.Bools
		w.Floats = r.Floats
		w.Shorts = r.Shorts
		w.Octets = r.Octets
		w.Chars = r.Chars
		w.BoxedInts = r.BoxedInts
		w.BoxedLongs = r.BoxedLongs
		w.BoxedDoubles = r.BoxedDoubles
		w.BoxedBools = r.BoxedBools
		w.Items = r.Items
		w.Numbers = r.Numbers
		w.Attributes = r.Attributes
		w.Strings = r.Strings
	}
	return out, nil
}

func toSparse(w *wireDataset[wireRecord]) *wireDataset[sparseRecord] {
	out := &wireDataset[sparseRecord]{Records: make([]sparseRecord, len(w.Records))}
	for i := range w.Records {
		out.Records[i] = sparseRecord(w.Records[i])
	}
	return out
}

// fromWire always yields fixture.RefCount refs per record; absent ref
// properties decode as nil.
func fromWire(w *wireDataset[wireRecord]) *fixture.Dataset {
	d := &fixture.Dataset{Records: make([]fixture.Record, len(w.Records))}
	for i := range w.Records {
		src := &w.Records[i]
		r := &d.Records[i]
		r.Refs = make([]*fixture.Nested, fixture.RefCount)
		for j, ref := range src.refs() {
			r.Refs[j] = *ref
		}
		r.Ints = src.Ints
		r.Longs = src.Longs
		r.Doubles = src.Doubles
		r.Bools = src.Bools
		r.Floats = src.Floats
		r.Shorts = src.Shorts
		r.Octets = src.Octets
		r.Chars = src.Chars
		r.BoxedInts = src.BoxedInts
		r.BoxedLongs = src.BoxedLongs
		r.BoxedDoubles = src.BoxedDoubles
		r.BoxedBools = src.BoxedBools
		r.Items = src.Items
		r.Numbers = src.Numbers
		r.Attributes = src.Attributes
		r.Strings = src.Strings
	}
	return d
}
