package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/appnet-org/codecbench/pkg/bench"
)

func sampleRows() []bench.Row {
	return []bench.Row{
		{
			Measurement: bench.Measurement{Format: "json", Kind: bench.Serialize, Iterations: 10, Total: 20 * time.Millisecond, Size: 1000},
			Baseline:    true,
		},
		{
			Measurement: bench.Measurement{Format: "msgpack", Kind: bench.Serialize, Iterations: 10, Total: 10 * time.Millisecond, Size: 1500},
			Delta:       bench.Delta{TimePct: -50, SizePct: 50},
		},
		{
			Measurement: bench.Measurement{Format: "protobuf", Kind: bench.Serialize, Iterations: 10, Err: errors.New("boom")},
		},
	}
}

func displayNames(id string) string {
	return map[string]string{"json": "JSON", "msgpack": "MessagePack", "protobuf": "Protobuf"}[id]
}

func TestTableStage(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, displayNames)
	tbl.Stage(bench.Serialize, sampleRows())
	require.NoError(t, tbl.Err())

	out := buf.String()
	require.Contains(t, out, "Serialization")
	require.Contains(t, out, "│ Format      │ Avg Time (ms) │ % Diff │ Size (bytes) │ % Diff │")
	require.Contains(t, out, "JSON *")
	require.Contains(t, out, "2.0000")
	require.Contains(t, out, "-50.0%")
	require.Contains(t, out, "+50.0%")
	require.Contains(t, out, "FAILED")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.True(t, strings.HasPrefix(lines[1], "┌"))
	require.True(t, strings.HasPrefix(lines[len(lines)-1], "└"))
	width := len([]rune(lines[1]))
	for _, l := range lines[1:] {
		require.Len(t, []rune(l), width, l)
	}
}

func TestTableDeltaUnavailable(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, nil)
	tbl.Stage(bench.Deserialize, []bench.Row{{
		Measurement: bench.Measurement{Format: "cbor", Iterations: 1, Total: time.Millisecond, Size: 3},
		DeltaErr:    bench.ErrBaselineFailed,
	}})
	require.Contains(t, buf.String(), "Deserialization")
	require.Contains(t, buf.String(), "n/a")
	require.Contains(t, buf.String(), "cbor")
}

func TestTableSetupAndSummary(t *testing.T) {
	var buf bytes.Buffer
	tbl := NewTable(&buf, displayNames)
	tbl.Setup(bench.SetupInfo{
		FixtureSize: 20,
		Warmup:      100,
		Iterations:  1000,
		Baseline:    "json",
		Payloads:    []bench.PayloadInfo{{Format: "json", Size: 123}, {Format: "msgpack", Size: 99}},
	})
	tbl.Summary([]bench.SummaryRow{
		{Format: "json", Serialize: 1500 * time.Millisecond, Deserialize: 2500 * time.Millisecond},
	})
	require.NoError(t, tbl.Err())

	out := buf.String()
	require.Contains(t, out, "Fixture: 20 records, warmup 100, iterations 1000, baseline JSON")
	require.Contains(t, out, "123")
	require.Contains(t, out, "Summary")
	require.Contains(t, out, "1500.00")
	require.Contains(t, out, "2500.00")
	require.Contains(t, out, "4000.00")
}

type failingWriter struct{ calls int }

func (w *failingWriter) Write(p []byte) (int, error) {
	w.calls++
	return 0, errors.New("disk full")
}

func TestTableKeepsFirstWriteError(t *testing.T) {
	w := &failingWriter{}
	tbl := NewTable(w, nil)
	tbl.Stage(bench.Serialize, sampleRows())
	require.EqualError(t, tbl.Err(), "disk full")
	require.Equal(t, 1, w.calls)
}

func TestJSONDocument(t *testing.T) {
	j := NewJSON(displayNames)
	j.Setup(bench.SetupInfo{FixtureSize: 20, Warmup: 1, Iterations: 10, Baseline: "json",
		Payloads: []bench.PayloadInfo{{Format: "json", Size: 1000}}})
	j.Stage(bench.Serialize, sampleRows())
	j.Stage(bench.Deserialize, sampleRows()[:1])
	j.Summary([]bench.SummaryRow{{Format: "json", Serialize: 20 * time.Millisecond, Deserialize: 4 * time.Millisecond}})

	var buf bytes.Buffer
	require.NoError(t, j.Flush(&buf))

	var doc Document
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	require.Equal(t, j.Document(), doc)

	require.Equal(t, 20, doc.FixtureSize)
	require.Equal(t, "JSON", doc.Payloads[0].Name)
	require.Len(t, doc.Serialization, 3)
	require.Len(t, doc.Deserialization, 1)

	base := doc.Serialization[0]
	require.True(t, base.Baseline)
	require.Equal(t, 2.0, base.AvgMs)
	require.NotNil(t, base.TimeDeltaPct)
	require.Zero(t, *base.TimeDeltaPct)

	require.Equal(t, 50.0, *doc.Serialization[1].SizeDeltaPct)
	require.Nil(t, doc.Serialization[2].TimeDeltaPct)
	require.Contains(t, doc.Serialization[2].Error, "boom")

	require.Equal(t, 20.0, doc.Summary[0].SerializeTotalMs)
	require.Equal(t, 4.0, doc.Summary[0].DeserializeTotalMs)
}
