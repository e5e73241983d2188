package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/appnet-org/codecbench/pkg/bench"
)

// Document is the JSON form of one run.
type Document struct {
	FixtureSize     int          `json:"fixtureSize"`
	Warmup          int          `json:"warmup"`
	Iterations      int          `json:"iterations"`
	Baseline        string       `json:"baseline"`
	Payloads        []PayloadDoc `json:"payloads"`
	Serialization   []RowDoc     `json:"serialization"`
	Deserialization []RowDoc     `json:"deserialization"`
	Summary         []SummaryDoc `json:"summary"`
}

type PayloadDoc struct {
	Format string `json:"format"`
	Name   string `json:"name"`
	Size   int    `json:"size"`
}

type RowDoc struct {
	Format   string  `json:"format"`
	Name     string  `json:"name"`
	Baseline bool    `json:"baseline,omitempty"`
	AvgMs    float64 `json:"avgMs"`
	TotalMs  float64 `json:"totalMs"`
	Size     int     `json:"size"`
	// Deltas are omitted when they could not be computed.
	TimeDeltaPct *float64 `json:"timeDeltaPct,omitempty"`
	SizeDeltaPct *float64 `json:"sizeDeltaPct,omitempty"`
	Error        string   `json:"error,omitempty"`
}

type SummaryDoc struct {
	Format             string  `json:"format"`
	Name               string  `json:"name"`
	SerializeTotalMs   float64 `json:"serializeTotalMs"`
	DeserializeTotalMs float64 `json:"deserializeTotalMs"`
}

// JSON collects a run and writes it as one document on Flush.
type JSON struct {
	display DisplayFunc
	doc     Document
}

var _ bench.Reporter = (*JSON)(nil)

func NewJSON(display DisplayFunc) *JSON {
	if display == nil {
		display = identity
	}
	return &JSON{display: display}
}

func (j *JSON) Setup(info bench.SetupInfo) {
	j.doc.FixtureSize = info.FixtureSize
	j.doc.Warmup = info.Warmup
	j.doc.Iterations = info.Iterations
	j.doc.Baseline = info.Baseline
	for _, p := range info.Payloads {
		j.doc.Payloads = append(j.doc.Payloads, PayloadDoc{Format: p.Format, Name: j.display(p.Format), Size: p.Size})
	}
}

func (j *JSON) Stage(kind bench.Kind, rows []bench.Row) {
	docs := make([]RowDoc, len(rows))
	for i, r := range rows {
		d := RowDoc{
			Format:   r.Format,
			Name:     j.display(r.Format),
			Baseline: r.Baseline,
			AvgMs:    r.AvgMs(),
			TotalMs:  r.TotalMs(),
			Size:     r.Size,
		}
		switch {
		case r.Failed():
			d.Error = r.Err.Error()
		case r.DeltaErr != nil:
			d.Error = r.DeltaErr.Error()
		default:
			timePct, sizePct := r.Delta.TimePct, r.Delta.SizePct
			d.TimeDeltaPct, d.SizeDeltaPct = &timePct, &sizePct
		}
		docs[i] = d
	}
	if kind == bench.Serialize {
		j.doc.Serialization = docs
	} else {
		j.doc.Deserialization = docs
	}
}

func (j *JSON) Summary(rows []bench.SummaryRow) {
	j.doc.Summary = make([]SummaryDoc, len(rows))
	for i, r := range rows {
		j.doc.Summary[i] = SummaryDoc{
			Format:             r.Format,
			Name:               j.display(r.Format),
			SerializeTotalMs:   ms(r.Serialize),
			DeserializeTotalMs: ms(r.Deserialize),
		}
	}
}

// Document returns the collected run.
func (j *JSON) Document() Document {
	return j.doc
}

// Flush writes the collected document to w.
func (j *JSON) Flush(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(j.doc)
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
