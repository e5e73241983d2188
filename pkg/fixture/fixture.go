// Package fixture builds the synthetic object graph shared by every codec
// under benchmark.
//
// The shape is fixed: a Dataset is a list of Records, each Record carries
// twenty Nested references plus groups of scalar, list, map and string
// fields. Only the values are randomized.
package fixture

// Group sizes of a Record.
const (
	RefCount         = 20
	ScalarGroupSize  = 10
	BoxedIntCount    = 5
	BoxedLongCount   = 3
	BoxedDoubleCount = 2
	BoxedBoolCount   = 2
	StringFieldCount = 35
	firstStringField = 116
	firstBoolField   = 51
	maxSafeInteger   = 1<<53 - 1
	nullRefsEveryNth = 3
)

// DeepNested is the innermost level of the graph.
type DeepNested struct {
	Data string `json:"data" msgpack:"data"`
	Blob []byte `json:"blob" msgpack:"blob"`
}

// Nested is referenced twenty times from every Record.
type Nested struct {
	Field1       string      `json:"field1" msgpack:"field1"`
	Field2       string      `json:"field2" msgpack:"field2"`
	Field3       string      `json:"field3" msgpack:"field3"`
	Field4       string      `json:"field4" msgpack:"field4"`
	Field5       string      `json:"field5" msgpack:"field5"`
	LongField1   int64       `json:"longField1" msgpack:"longField1"`
	IntField1    int32       `json:"intField1" msgpack:"intField1"`
	DoubleField1 float64     `json:"doubleField1" msgpack:"doubleField1"`
	DeepNested   *DeepNested `json:"deepNested" msgpack:"deepNested"`
}

// Record is one top-level element of a Dataset.
type Record struct {
	Refs         []*Nested         `json:"refs" msgpack:"refs"`
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

// Dataset is the fixture handed to every codec. It must be treated as
// read-only once created.
type Dataset struct {
	Records []Record `json:"records" msgpack:"records"`
}

// Len returns the number of top-level records.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Provider creates fixtures of a given number of top-level records.
type Provider interface {
	Create(size int) (*Dataset, error)
}
