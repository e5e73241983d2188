package bench

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/appnet-org/codecbench/pkg/fixture"
)

var errBoom = errors.New("boom")

// fakeCodec produces payloads filled with its tag byte so tests can tell
// which format's payload reached which decoder.
type fakeCodec struct {
	tag   byte
	size  int
	delay time.Duration

	// failEncodeAfter makes every Encode after the first n calls fail.
	// Zero never fails.
	failEncodeAfter int
	failEncode      bool
	failDecode      bool

	encodes int
	decodes int
	inputs  [][]byte
}

func newFakeCodec(tag byte, size int) *fakeCodec {
	return &fakeCodec{tag: tag, size: size, delay: 20 * time.Microsecond}
}

func (c *fakeCodec) Encode(*fixture.Dataset) ([]byte, error) {
	c.encodes++
	time.Sleep(c.delay)
	if c.failEncode || (c.failEncodeAfter > 0 && c.encodes > c.failEncodeAfter) {
		return nil, errBoom
	}
	return bytes.Repeat([]byte{c.tag}, c.size), nil
}

func (c *fakeCodec) Decode(data []byte) (*fixture.Dataset, error) {
	c.decodes++
	time.Sleep(c.delay)
	if len(c.inputs) == 0 || !bytes.Equal(c.inputs[len(c.inputs)-1], data) {
		c.inputs = append(c.inputs, data)
	}
	if c.failDecode {
		return nil, errBoom
	}
	return &fixture.Dataset{}, nil
}

type loadingCodec struct {
	*fakeCodec
	loadErr error
	loaded  bool
}

func (c *loadingCodec) Load(context.Context) error {
	if c.loadErr != nil {
		return c.loadErr
	}
	c.loaded = true
	return nil
}

type staticProvider struct {
	err   error
	calls int
}

func (p *staticProvider) Create(size int) (*fixture.Dataset, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return &fixture.Dataset{Records: make([]fixture.Record, size)}, nil
}

type recordingReporter struct {
	setup   *SetupInfo
	stages  map[Kind][]Row
	summary []SummaryRow
	events  []string
}

func newRecordingReporter() *recordingReporter {
	return &recordingReporter{stages: make(map[Kind][]Row)}
}

func (r *recordingReporter) Setup(info SetupInfo) {
	r.setup = &info
	r.events = append(r.events, "setup")
}

func (r *recordingReporter) Stage(kind Kind, rows []Row) {
	r.stages[kind] = rows
	r.events = append(r.events, kind.String())
}

func (r *recordingReporter) Summary(rows []SummaryRow) {
	r.summary = rows
	r.events = append(r.events, "summary")
}
