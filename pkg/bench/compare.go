package bench

import (
	"errors"
	"fmt"
	"math"
)

var ErrDegenerateBaseline = errors.New("bench: baseline has zero time or size")

// Delta is the relative difference of a candidate to the baseline, in
// percent. Positive means slower or larger.
type Delta struct {
	TimePct float64
	SizePct float64
}

// Compare computes the time and size deltas of candidate against baseline.
func Compare(baseline, candidate Measurement) (Delta, error) {
	base := baseline.AvgMs()
	if base == 0 || baseline.Size == 0 {
		return Delta{}, fmt.Errorf("%w: %s avg=%gms size=%d",
			ErrDegenerateBaseline, baseline.Format, base, baseline.Size)
	}
	return Delta{
		TimePct: percent(base, candidate.AvgMs()),
		SizePct: percent(float64(baseline.Size), float64(candidate.Size)),
	}, nil
}

func percent(base, v float64) float64 {
	return (v - base) / base * 100
}

// FormatPct renders a delta with one decimal and an explicit plus sign.
func FormatPct(p float64) string {
	if math.Abs(p) < 0.05 {
		return "0.0%"
	}
	if p > 0 {
		return fmt.Sprintf("+%.1f%%", p)
	}
	return fmt.Sprintf("%.1f%%", p)
}
