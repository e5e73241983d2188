package bench

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/appnet-org/codecbench/pkg/codec"
	"github.com/appnet-org/codecbench/pkg/fixture"
	"github.com/appnet-org/codecbench/pkg/logging"
)

var (
	ErrNoFormats         = errors.New("bench: no formats")
	ErrNoBaseline        = errors.New("bench: no baseline format")
	ErrMultipleBaselines = errors.New("bench: more than one baseline format")
	ErrDuplicateFormat   = errors.New("bench: duplicate format name")
	ErrStageOrder        = errors.New("bench: stage called out of order")
	ErrSetup             = errors.New("bench: setup failed")
	ErrBaselineFailed    = errors.New("bench: baseline measurement failed")
	ErrAborted           = errors.New("bench: suite aborted by an earlier error")
	ErrNilProvider       = errors.New("bench: nil fixture provider")
	ErrNilCodec          = errors.New("bench: format has no codec")
)

// Stage is the position of a Suite in its run.
type Stage int

const (
	StageUninitialized Stage = iota
	StageSetup
	StageSerialization
	StageDeserialization
	StageSummary
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageUninitialized:
		return "UNINITIALIZED"
	case StageSetup:
		return "SETUP"
	case StageSerialization:
		return "SERIALIZATION_BENCHMARKS"
	case StageDeserialization:
		return "DESERIALIZATION_BENCHMARKS"
	case StageSummary:
		return "SUMMARY"
	case StageDone:
		return "DONE"
	default:
		return fmt.Sprintf("Stage(%d)", int(s))
	}
}

// Format is one entry of the ordered comparison list.
type Format struct {
	Name     string
	Codec    codec.Codec
	Baseline bool
}

type SuiteConfig struct {
	Warmup      int
	Iterations  int
	FixtureSize int
	// ContinueOnError records a failing format and moves on instead of
	// aborting the run.
	ContinueOnError bool
}

// PayloadInfo is the pre-encoded size of one format.
type PayloadInfo struct {
	Format string
	Size   int
}

type SetupInfo struct {
	FixtureSize int
	Warmup      int
	Iterations  int
	Baseline    string
	Payloads    []PayloadInfo
}

// Row is one format's line in a stage report.
type Row struct {
	Measurement
	Delta    Delta
	Baseline bool
	// DeltaErr is set when no delta could be computed, for example because
	// the baseline itself failed.
	DeltaErr error
}

type SummaryRow struct {
	Format      string
	Serialize   time.Duration
	Deserialize time.Duration
}

// Reporter receives the output of every stage in order.
type Reporter interface {
	Setup(info SetupInfo)
	Stage(kind Kind, rows []Row)
	Summary(rows []SummaryRow)
}

type nopReporter struct{}

func (nopReporter) Setup(SetupInfo)      {}
func (nopReporter) Stage(Kind, []Row)    {}
func (nopReporter) Summary([]SummaryRow) {}

// Results is everything a completed run produced.
type Results struct {
	Setup           SetupInfo
	Serialization   []Row
	Deserialization []Row
	Summary         []SummaryRow
	Totals          *Totals
}

// Measurements returns serialize then deserialize measurements in format order.
func (r *Results) Measurements() []Measurement {
	out := make([]Measurement, 0, len(r.Serialization)+len(r.Deserialization))
	for _, row := range r.Serialization {
		out = append(out, row.Measurement)
	}
	for _, row := range r.Deserialization {
		out = append(out, row.Measurement)
	}
	return out
}

// Suite sequences one benchmark run. It is not safe for concurrent use and
// is meant to be run once.
type Suite struct {
	cfg      SuiteConfig
	formats  []Format
	baseline int
	provider fixture.Provider
	reporter Reporter
	runner   *Runner

	stage    Stage
	aborted  bool
	dataset  *fixture.Dataset
	payloads map[string][]byte
	totals   *Totals
	results  Results
}

// NewSuite validates the format list and builds a Suite in the
// UNINITIALIZED stage. A nil reporter discards output.
func NewSuite(cfg SuiteConfig, formats []Format, provider fixture.Provider, reporter Reporter) (*Suite, error) {
	if len(formats) == 0 {
		return nil, ErrNoFormats
	}
	if provider == nil {
		return nil, ErrNilProvider
	}

	baseline := -1
	seen := make(map[string]bool, len(formats))
	for i, f := range formats {
		if f.Codec == nil {
			return nil, fmt.Errorf("%w: %s", ErrNilCodec, f.Name)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFormat, f.Name)
		}
		seen[f.Name] = true
		if f.Baseline {
			if baseline >= 0 {
				return nil, fmt.Errorf("%w: %s and %s", ErrMultipleBaselines, formats[baseline].Name, f.Name)
			}
			baseline = i
		}
	}
	if baseline < 0 {
		return nil, ErrNoBaseline
	}

	runner, err := NewRunner(cfg.Warmup, cfg.Iterations)
	if err != nil {
		return nil, err
	}
	if reporter == nil {
		reporter = nopReporter{}
	}

	totals := NewTotals()
	return &Suite{
		cfg:      cfg,
		formats:  formats,
		baseline: baseline,
		provider: provider,
		reporter: reporter,
		runner:   runner,
		payloads: make(map[string][]byte, len(formats)),
		totals:   totals,
		results:  Results{Totals: totals},
	}, nil
}

// Runner exposes the timing runner, mainly so callers can replace Reclaim.
func (s *Suite) Runner() *Runner {
	return s.runner
}

// Stage reports the last completed stage.
func (s *Suite) Stage() Stage {
	return s.stage
}

// Totals returns the accumulated totals of this suite.
func (s *Suite) Totals() *Totals {
	return s.totals
}

func (s *Suite) enter(from, to Stage) error {
	if s.aborted {
		return ErrAborted
	}
	if s.stage != from {
		return fmt.Errorf("%w: %s requires %s, suite is in %s", ErrStageOrder, to, from, s.stage)
	}
	return nil
}

func (s *Suite) abort(err error) error {
	s.aborted = true
	logging.Error("Benchmark suite aborted", zap.Stringer("stage", s.stage), zap.Error(err))
	return err
}

// Setup builds the fixture, loads codecs that need it and pre-encodes one
// payload per format. Any failure is fatal.
func (s *Suite) Setup(ctx context.Context) error {
	if err := s.enter(StageUninitialized, StageSetup); err != nil {
		return err
	}

	d, err := s.provider.Create(s.cfg.FixtureSize)
	if err != nil {
		return s.abort(fmt.Errorf("%w: fixture: %w", ErrSetup, err))
	}
	s.dataset = d

	info := SetupInfo{
		FixtureSize: d.Len(),
		Warmup:      s.runner.Warmup,
		Iterations:  s.runner.Iterations,
		Baseline:    s.formats[s.baseline].Name,
		Payloads:    make([]PayloadInfo, 0, len(s.formats)),
	}
	for _, f := range s.formats {
		if err := ctx.Err(); err != nil {
			return s.abort(fmt.Errorf("%w: %w", ErrSetup, err))
		}
		if l, ok := f.Codec.(codec.Loader); ok {
			if err := l.Load(ctx); err != nil {
				return s.abort(fmt.Errorf("%w: load %s: %w", ErrSetup, f.Name, err))
			}
		}
		payload, err := f.Codec.Encode(d)
		if err != nil {
			return s.abort(fmt.Errorf("%w: encode %s: %w", ErrSetup, f.Name, err))
		}
		s.payloads[f.Name] = payload
		info.Payloads = append(info.Payloads, PayloadInfo{Format: f.Name, Size: len(payload)})
		logging.Debug("Pre-encoded payload", zap.String("format", f.Name), zap.Int("size", len(payload)))
	}

	s.stage = StageSetup
	s.results.Setup = info
	logging.Info("Setup complete",
		zap.Int("records", info.FixtureSize),
		zap.Int("formats", len(s.formats)),
		zap.String("baseline", info.Baseline))
	s.reporter.Setup(info)
	return nil
}

// RunSerialization times Encode of the shared fixture for every format.
func (s *Suite) RunSerialization() error {
	if err := s.enter(StageSetup, StageSerialization); err != nil {
		return err
	}
	rows, err := s.runStage(Serialize, func(f Format) (Measurement, error) {
		return s.runner.Serialize(f.Name, f.Codec, s.dataset)
	})
	if err != nil {
		return s.abort(err)
	}
	s.stage = StageSerialization
	s.results.Serialization = rows
	return nil
}

// RunDeserialization times Decode of each format's own payload.
func (s *Suite) RunDeserialization() error {
	if err := s.enter(StageSerialization, StageDeserialization); err != nil {
		return err
	}
	rows, err := s.runStage(Deserialize, func(f Format) (Measurement, error) {
		return s.runner.Deserialize(f.Name, f.Codec, s.payloads[f.Name])
	})
	if err != nil {
		return s.abort(err)
	}
	s.stage = StageDeserialization
	s.results.Deserialization = rows
	return nil
}

func (s *Suite) runStage(kind Kind, measure func(Format) (Measurement, error)) ([]Row, error) {
	logging.Info("Running benchmarks", zap.Stringer("kind", kind))

	ms := make([]Measurement, len(s.formats))
	for i, f := range s.formats {
		m, err := measure(f)
		if err != nil {
			if !s.cfg.ContinueOnError {
				return nil, err
			}
			logging.Warn("Format failed, continuing", zap.String("format", f.Name), zap.Error(err))
		} else {
			logging.Debug("Measured",
				zap.String("format", f.Name),
				zap.Stringer("kind", kind),
				zap.Float64("avg_ms", m.AvgMs()),
				zap.Int("size", m.Size))
		}
		s.totals.Add(m)
		ms[i] = m
	}

	base := ms[s.baseline]
	rows := make([]Row, len(ms))
	for i, m := range ms {
		row := Row{Measurement: m, Baseline: i == s.baseline}
		switch {
		case row.Baseline, m.Failed():
		case base.Failed():
			row.DeltaErr = ErrBaselineFailed
		default:
			d, err := Compare(base, m)
			if err != nil {
				return nil, fmt.Errorf("%s %s vs %s: %w", kind, m.Format, base.Format, err)
			}
			row.Delta = d
		}
		rows[i] = row
	}
	s.reporter.Stage(kind, rows)
	return rows, nil
}

// Summarize reports accumulated totals per format in list order.
func (s *Suite) Summarize() error {
	if err := s.enter(StageDeserialization, StageSummary); err != nil {
		return err
	}
	s.stage = StageSummary

	rows := make([]SummaryRow, len(s.formats))
	for i, f := range s.formats {
		rows[i] = SummaryRow{
			Format:      f.Name,
			Serialize:   s.totals.Get(f.Name, Serialize),
			Deserialize: s.totals.Get(f.Name, Deserialize),
		}
	}
	s.results.Summary = rows
	s.reporter.Summary(rows)

	s.stage = StageDone
	logging.Info("Benchmark suite done")
	return nil
}

// Run executes every stage in order and returns the collected results.
func (s *Suite) Run(ctx context.Context) (*Results, error) {
	if err := s.Setup(ctx); err != nil {
		return nil, err
	}
	if err := s.RunSerialization(); err != nil {
		return nil, err
	}
	if err := s.RunDeserialization(); err != nil {
		return nil, err
	}
	if err := s.Summarize(); err != nil {
		return nil, err
	}
	res := s.results
	return &res, nil
}
