package bench

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/appnet-org/codecbench/pkg/codec"
	"github.com/appnet-org/codecbench/pkg/fixture"
)

// ==================== Helpers ====================

type suiteTestHelper struct {
	t        *testing.T
	codecs   map[string]*fakeCodec
	formats  []Format
	provider *staticProvider
	reporter *recordingReporter
}

func newSuiteTestHelper(t *testing.T, names ...string) *suiteTestHelper {
	t.Helper()
	h := &suiteTestHelper{
		t:        t,
		codecs:   make(map[string]*fakeCodec),
		provider: &staticProvider{},
		reporter: newRecordingReporter(),
	}
	for i, name := range names {
		c := newFakeCodec(byte('a'+i), 10*(i+1))
		h.codecs[name] = c
		h.formats = append(h.formats, Format{Name: name, Codec: c, Baseline: i == 0})
	}
	return h
}

func (h *suiteTestHelper) suite(cfg SuiteConfig) *Suite {
	h.t.Helper()
	if cfg.Iterations == 0 {
		cfg.Warmup, cfg.Iterations, cfg.FixtureSize = 1, 3, 2
	}
	s, err := NewSuite(cfg, h.formats, h.provider, h.reporter)
	require.NoError(h.t, err)
	s.Runner().Reclaim = nil
	return s
}

// ==================== Construction ====================

func TestNewSuiteValidation(t *testing.T) {
	c := newFakeCodec('x', 1)
	cfg := SuiteConfig{Warmup: 0, Iterations: 1, FixtureSize: 1}
	p := &staticProvider{}

	tests := []struct {
		name     string
		cfg      SuiteConfig
		formats  []Format
		provider fixture.Provider
		want     error
	}{
		{"empty", cfg, nil, p, ErrNoFormats},
		{"nil provider", cfg, []Format{{Name: "a", Codec: c, Baseline: true}}, nil, ErrNilProvider},
		{"nil codec", cfg, []Format{{Name: "a", Codec: c, Baseline: true}, {Name: "b"}}, p, ErrNilCodec},
		{"no baseline", cfg, []Format{{Name: "a", Codec: c}}, p, ErrNoBaseline},
		{"two baselines", cfg, []Format{{Name: "a", Codec: c, Baseline: true}, {Name: "b", Codec: c, Baseline: true}}, p, ErrMultipleBaselines},
		{"duplicate", cfg, []Format{{Name: "a", Codec: c, Baseline: true}, {Name: "a", Codec: c}}, p, ErrDuplicateFormat},
		{"iterations", SuiteConfig{Iterations: 0}, []Format{{Name: "a", Codec: c, Baseline: true}}, p, ErrInvalidIterations},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSuite(tc.cfg, tc.formats, tc.provider, nil)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

// ==================== Stage ordering ====================

func TestSuiteStageOrder(t *testing.T) {
	h := newSuiteTestHelper(t, "a", "b")
	s := h.suite(SuiteConfig{})
	require.Equal(t, StageUninitialized, s.Stage())

	require.ErrorIs(t, s.RunSerialization(), ErrStageOrder)
	require.ErrorIs(t, s.RunDeserialization(), ErrStageOrder)
	require.ErrorIs(t, s.Summarize(), ErrStageOrder)

	require.NoError(t, s.Setup(context.Background()))
	require.Equal(t, StageSetup, s.Stage())
	require.ErrorIs(t, s.Setup(context.Background()), ErrStageOrder)
	require.ErrorIs(t, s.RunDeserialization(), ErrStageOrder)

	require.NoError(t, s.RunSerialization())
	require.Equal(t, StageSerialization, s.Stage())
	require.ErrorIs(t, s.Summarize(), ErrStageOrder)

	require.NoError(t, s.RunDeserialization())
	require.Equal(t, StageDeserialization, s.Stage())
	require.ErrorIs(t, s.RunSerialization(), ErrStageOrder)

	require.NoError(t, s.Summarize())
	require.Equal(t, StageDone, s.Stage())
	require.ErrorIs(t, s.Summarize(), ErrStageOrder)

	require.Equal(t, []string{"setup", "serialize", "deserialize", "summary"}, h.reporter.events)
}

func TestStageString(t *testing.T) {
	require.Equal(t, "UNINITIALIZED", StageUninitialized.String())
	require.Equal(t, "SERIALIZATION_BENCHMARKS", StageSerialization.String())
	require.Equal(t, "DESERIALIZATION_BENCHMARKS", StageDeserialization.String())
	require.Equal(t, "DONE", StageDone.String())
}

// ==================== Setup ====================

func TestSuiteSetupPreEncodesOncePerFormat(t *testing.T) {
	h := newSuiteTestHelper(t, "a", "b", "c")
	loader := &loadingCodec{fakeCodec: newFakeCodec('z', 5)}
	h.formats = append(h.formats, Format{Name: "loaded", Codec: loader})

	s := h.suite(SuiteConfig{Warmup: 0, Iterations: 1, FixtureSize: 7})
	require.NoError(t, s.Setup(context.Background()))

	require.True(t, loader.loaded)
	require.Equal(t, 1, h.provider.calls)
	for _, c := range h.codecs {
		require.Equal(t, 1, c.encodes)
	}

	info := h.reporter.setup
	require.NotNil(t, info)
	require.Equal(t, 7, info.FixtureSize)
	require.Equal(t, "a", info.Baseline)
	require.Equal(t, []PayloadInfo{
		{Format: "a", Size: 10},
		{Format: "b", Size: 20},
		{Format: "c", Size: 30},
		{Format: "loaded", Size: 5},
	}, info.Payloads)
}

func TestSuiteSetupFailureIsFatal(t *testing.T) {
	tests := map[string]func(h *suiteTestHelper){
		"fixture": func(h *suiteTestHelper) { h.provider.err = errBoom },
		"load": func(h *suiteTestHelper) {
			h.formats = append(h.formats, Format{
				Name:  "schema",
				Codec: &loadingCodec{fakeCodec: newFakeCodec('s', 1), loadErr: errBoom},
			})
		},
		"encode": func(h *suiteTestHelper) { h.codecs["b"].failEncode = true },
	}

	for name, breakIt := range tests {
		t.Run(name, func(t *testing.T) {
			h := newSuiteTestHelper(t, "a", "b")
			breakIt(h)
			s := h.suite(SuiteConfig{ContinueOnError: true})

			res, err := s.Run(context.Background())
			require.ErrorIs(t, err, ErrSetup)
			require.ErrorIs(t, err, errBoom)
			require.Nil(t, res)
			require.Nil(t, h.reporter.setup)
			require.Empty(t, h.reporter.stages)
			require.ErrorIs(t, s.RunSerialization(), ErrAborted)
		})
	}
}

func TestSuiteSetupHonorsContext(t *testing.T) {
	h := newSuiteTestHelper(t, "a")
	s := h.suite(SuiteConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.Setup(ctx)
	require.ErrorIs(t, err, ErrSetup)
	require.ErrorIs(t, err, context.Canceled)
}

// ==================== Benchmarks ====================

func TestSuiteDecodesOwnPayload(t *testing.T) {
	h := newSuiteTestHelper(t, "a", "b", "c")
	s := h.suite(SuiteConfig{})
	_, err := s.Run(context.Background())
	require.NoError(t, err)

	for i, name := range []string{"a", "b", "c"} {
		c := h.codecs[name]
		require.Len(t, c.inputs, 1, name)
		want := make([]byte, 10*(i+1))
		for j := range want {
			want[j] = byte('a' + i)
		}
		require.Equal(t, want, c.inputs[0], name)
	}
}

func TestSuiteRowsAndTotals(t *testing.T) {
	h := newSuiteTestHelper(t, "a", "b")
	// Baseline keeps its list position.
	h.formats[0].Baseline, h.formats[1].Baseline = false, true
	s := h.suite(SuiteConfig{})

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	for _, rows := range [][]Row{res.Serialization, res.Deserialization} {
		require.Len(t, rows, 2)
		require.Equal(t, "a", rows[0].Format)
		require.False(t, rows[0].Baseline)
		require.Equal(t, -50.0, rows[0].Delta.SizePct)
		require.True(t, rows[1].Baseline)
		require.Equal(t, Delta{}, rows[1].Delta)
	}

	sums := map[TotalsKey]time.Duration{}
	for _, m := range res.Measurements() {
		sums[TotalsKey{m.Format, m.Kind}] += m.Total
	}
	require.Len(t, res.Summary, 2)
	for _, row := range res.Summary {
		require.Equal(t, sums[TotalsKey{row.Format, Serialize}], row.Serialize)
		require.Equal(t, sums[TotalsKey{row.Format, Deserialize}], row.Deserialize)
		require.Equal(t, row.Serialize, s.Totals().Get(row.Format, Serialize))
	}
	require.Equal(t, h.reporter.summary, res.Summary)
}

func TestSuiteFailFast(t *testing.T) {
	h := newSuiteTestHelper(t, "a", "b", "c")
	h.codecs["b"].failEncodeAfter = 1
	s := h.suite(SuiteConfig{})

	res, err := s.Run(context.Background())
	require.ErrorIs(t, err, errBoom)
	require.Nil(t, res)
	require.Zero(t, h.codecs["c"].encodes-1, "formats after the failure do not run")
	require.Empty(t, h.reporter.stages)
	require.ErrorIs(t, s.RunDeserialization(), ErrAborted)
}

func TestSuiteDegenerateBaselineAborts(t *testing.T) {
	for _, continueOnError := range []bool{false, true} {
		h := newSuiteTestHelper(t, "a", "b")
		h.codecs["a"].size = 0
		s := h.suite(SuiteConfig{Warmup: 1, Iterations: 3, FixtureSize: 1, ContinueOnError: continueOnError})

		res, err := s.Run(context.Background())
		require.ErrorIs(t, err, ErrDegenerateBaseline, "continueOnError=%v", continueOnError)
		require.Contains(t, err.Error(), "serialize b vs a")
		require.Nil(t, res)
		require.Empty(t, h.reporter.stages)
		require.ErrorIs(t, s.RunDeserialization(), ErrAborted)
	}
}

func TestSuiteContinueOnError(t *testing.T) {
	h := newSuiteTestHelper(t, "a", "b", "c")
	h.codecs["b"].failDecode = true
	s := h.suite(SuiteConfig{Warmup: 1, Iterations: 3, FixtureSize: 1, ContinueOnError: true})

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	rows := res.Deserialization
	require.Len(t, rows, 3)
	require.True(t, rows[1].Failed())
	require.ErrorIs(t, rows[1].Err, errBoom)
	require.False(t, rows[2].Failed())
	require.Equal(t, 200.0, rows[2].Delta.SizePct)
	require.Zero(t, s.Totals().Get("b", Deserialize))
	require.NotZero(t, s.Totals().Get("b", Serialize))
}

func TestSuiteContinueOnBaselineFailure(t *testing.T) {
	h := newSuiteTestHelper(t, "a", "b")
	h.codecs["a"].failEncodeAfter = 1
	s := h.suite(SuiteConfig{Warmup: 0, Iterations: 2, FixtureSize: 1, ContinueOnError: true})

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	require.True(t, res.Serialization[0].Failed())
	require.ErrorIs(t, res.Serialization[1].DeltaErr, ErrBaselineFailed)
	require.NoError(t, res.Deserialization[1].DeltaErr)
}

// ==================== End to end ====================

func TestSuiteEndToEndDefaultFormats(t *testing.T) {
	if testing.Short() {
		t.Skip("full run with 1000 iterations per format")
	}

	var formats []Format
	for i, id := range codec.DefaultFormats {
		c, err := codec.DefaultRegistry.New(id, codec.Options{})
		require.NoError(t, err)
		formats = append(formats, Format{Name: id, Codec: c, Baseline: i == 0})
	}

	reporter := newRecordingReporter()
	s, err := NewSuite(
		SuiteConfig{Warmup: 100, Iterations: 1000, FixtureSize: 20},
		formats,
		fixture.NewGenerator(fixture.Options{Seed: 1}),
		reporter,
	)
	require.NoError(t, err)

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 20, res.Setup.FixtureSize)
	require.Len(t, res.Serialization, 3)
	require.Len(t, res.Deserialization, 3)

	for _, m := range res.Measurements() {
		require.Greater(t, m.AvgMs(), 0.0, m.Format)
		require.Greater(t, m.Size, 0, m.Format)
		require.Equal(t, 1000, m.Iterations)
	}
	for i := range res.Serialization {
		require.Equal(t, res.Setup.Payloads[i].Size, res.Serialization[i].Size)
		require.Equal(t, res.Setup.Payloads[i].Size, res.Deserialization[i].Size)
	}
}
