package fixture

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"
)

// ErrInvalidSize is returned for fixtures with fewer than one record.
var ErrInvalidSize = errors.New("fixture: size must be at least 1")

// Options controls value generation.
type Options struct {
	// Seed makes generation reproducible. Zero seeds from the clock.
	Seed int64
	// NullRefs clears Refs[0], Refs[4] and Refs[9] on every third record.
	NullRefs bool
}

// Generator is the default Provider.
type Generator struct {
	opts Options
	rng  *rand.Rand
}

// NewGenerator returns a Generator seeded from opts.
func NewGenerator(opts Options) *Generator {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		opts: opts,
		rng:  rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)),
	}
}

// Create builds a Dataset of size records.
func (g *Generator) Create(size int) (*Dataset, error) {
	if size < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidSize, size)
	}

	d := &Dataset{Records: make([]Record, size)}
	for i := range d.Records {
		d.Records[i] = g.record(i)
		if g.opts.NullRefs && i%nullRefsEveryNth == 0 {
			refs := d.Records[i].Refs
			refs[0], refs[4], refs[9] = nil, nil, nil
		}
	}
	return d, nil
}

func (g *Generator) nested(id int) *Nested {
	return &Nested{
		Field1:       "Field1-" + strconv.Itoa(id),
		Field2:       "Field2-" + strconv.Itoa(id),
		Field3:       "Field3-" + strconv.Itoa(id),
		Field4:       "Field4-" + strconv.Itoa(id),
		Field5:       "Field5-" + strconv.Itoa(id),
		LongField1:   g.rng.Int64N(maxSafeInteger),
		IntField1:    g.rng.Int32N(1_000_000),
		DoubleField1: g.rng.Float64() * 10_000,
		DeepNested: &DeepNested{
			Data: "DeepData-" + strconv.Itoa(id),
			Blob: []byte("BlobData-" + strconv.Itoa(id)),
		},
	}
}

func (g *Generator) record(index int) Record {
	r := Record{
		Refs:         make([]*Nested, RefCount),
		Ints:         make([]int32, ScalarGroupSize),
		Longs:        make([]int64, ScalarGroupSize),
		Doubles:      make([]float64, ScalarGroupSize),
		Bools:        make([]bool, ScalarGroupSize),
		Floats:       make([]float32, ScalarGroupSize),
		Shorts:       make([]int16, ScalarGroupSize),
		Octets:       make([]uint8, ScalarGroupSize),
		Chars:        make([]uint16, ScalarGroupSize),
		BoxedInts:    make([]int32, BoxedIntCount),
		BoxedLongs:   make([]int64, BoxedLongCount),
		BoxedDoubles: make([]float64, BoxedDoubleCount),
		BoxedBools:   make([]bool, BoxedBoolCount),
		Items:        []string{"item1", "item2", "item3", "item4"},
		Numbers:      []int32{1, 2, 3, 4, 5},
		Attributes: map[string]string{
			"key1": "value1",
			"key2": "value2",
			"key3": "value3",
		},
		Strings: make([]string, StringFieldCount),
	}

	for i := range r.Refs {
		r.Refs[i] = g.nested(index*RefCount + i + 1)
	}
	for i := 0; i < ScalarGroupSize; i++ {
		r.Ints[i] = g.rng.Int32N(1_000_000)
		r.Longs[i] = g.rng.Int64N(maxSafeInteger)
		r.Doubles[i] = g.rng.Float64() * 10_000
		r.Bools[i] = (firstBoolField+i)%2 == 0
		r.Floats[i] = g.rng.Float32() * 100
		r.Shorts[i] = int16(g.rng.IntN(32767))
		r.Octets[i] = uint8(g.rng.IntN(255))
		r.Chars[i] = uint16(g.rng.IntN(65535))
	}
	for i := range r.BoxedInts {
		r.BoxedInts[i] = g.rng.Int32N(1_000_000)
	}
	for i := range r.BoxedLongs {
		r.BoxedLongs[i] = g.rng.Int64N(maxSafeInteger)
	}
	for i := range r.BoxedDoubles {
		r.BoxedDoubles[i] = g.rng.Float64() * 10_000
	}
	for i := range r.BoxedBools {
		r.BoxedBools[i] = g.rng.Float64() > 0.5
	}
	for i := range r.Strings {
		r.Strings[i] = "String_" + strconv.Itoa(firstStringField+i) + "_" + g.suffix()
	}
	return r
}

// suffix mimics a short random base36 token.
func (g *Generator) suffix() string {
	return strconv.FormatUint(g.rng.Uint64()>>20, 36)
}
