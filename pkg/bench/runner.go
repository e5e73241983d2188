// Package bench measures codecs against one shared fixture and compares
// every format to a baseline.
package bench

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/appnet-org/codecbench/pkg/codec"
	"github.com/appnet-org/codecbench/pkg/fixture"
)

var ErrInvalidIterations = errors.New("bench: warmup must be >= 0 and iterations >= 1")

// Kind is the operation a Measurement timed.
type Kind int

const (
	Serialize Kind = iota
	Deserialize
)

func (k Kind) String() string {
	switch k {
	case Serialize:
		return "serialize"
	case Deserialize:
		return "deserialize"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Measurement is the result of timing one operation for one format.
type Measurement struct {
	Format     string
	Kind       Kind
	Iterations int
	Total      time.Duration
	// Size is the encoded output for Serialize and the encoded input for
	// Deserialize.
	Size int
	// Err is set when the operation failed and the run continued.
	Err error
}

// AvgMs is the mean time per iteration in milliseconds.
func (m Measurement) AvgMs() float64 {
	if m.Iterations == 0 {
		return 0
	}
	return m.TotalMs() / float64(m.Iterations)
}

// TotalMs is the elapsed time of the measured loop in milliseconds.
func (m Measurement) TotalMs() float64 {
	return float64(m.Total) / float64(time.Millisecond)
}

func (m Measurement) Failed() bool {
	return m.Err != nil
}

// Runner times an operation over a fixed number of iterations after a
// warmup phase.
type Runner struct {
	Warmup     int
	Iterations int
	// Reclaim runs between warmup and the timed loop. Nil skips it.
	Reclaim func()
}

// NewRunner returns a Runner that asks the garbage collector to run before
// every timed loop.
func NewRunner(warmup, iterations int) (*Runner, error) {
	if warmup < 0 || iterations < 1 {
		return nil, fmt.Errorf("%w: warmup=%d iterations=%d", ErrInvalidIterations, warmup, iterations)
	}
	return &Runner{Warmup: warmup, Iterations: iterations, Reclaim: runtime.GC}, nil
}

// Time runs op(in) Warmup times, then Iterations times under the clock, and
// returns the last result with the elapsed time of the measured loop. The
// first error stops the run.
func Time[In, Out any](r *Runner, op func(In) (Out, error), in In) (Out, time.Duration, error) {
	var out Out
	if r.Warmup < 0 || r.Iterations < 1 {
		return out, 0, fmt.Errorf("%w: warmup=%d iterations=%d", ErrInvalidIterations, r.Warmup, r.Iterations)
	}

	for i := 0; i < r.Warmup; i++ {
		if _, err := op(in); err != nil {
			return out, 0, fmt.Errorf("warmup iteration %d: %w", i, err)
		}
	}
	if r.Reclaim != nil {
		r.Reclaim()
	}

	var err error
	start := time.Now()
	for i := 0; i < r.Iterations; i++ {
		if out, err = op(in); err != nil {
			return out, time.Since(start), fmt.Errorf("iteration %d: %w", i, err)
		}
	}
	return out, time.Since(start), nil
}

// Serialize times c.Encode over d.
func (r *Runner) Serialize(name string, c codec.Codec, d *fixture.Dataset) (Measurement, error) {
	m := Measurement{Format: name, Kind: Serialize, Iterations: r.Iterations}
	out, elapsed, err := Time(r, c.Encode, d)
	m.Total = elapsed
	if err != nil {
		m.Err = fmt.Errorf("%s %s: %w", name, Serialize, err)
		return m, m.Err
	}
	m.Size = len(out)
	return m, nil
}

// Deserialize times c.Decode over payload.
func (r *Runner) Deserialize(name string, c codec.Codec, payload []byte) (Measurement, error) {
	m := Measurement{Format: name, Kind: Deserialize, Iterations: r.Iterations, Size: len(payload)}
	_, elapsed, err := Time(r, c.Decode, payload)
	m.Total = elapsed
	if err != nil {
		m.Err = fmt.Errorf("%s %s: %w", name, Deserialize, err)
		return m, m.Err
	}
	return m, nil
}
