package bench

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func measurement(total time.Duration, size int) Measurement {
	return Measurement{Format: "m", Iterations: 10, Total: total, Size: size}
}

func TestCompareSelfIsZero(t *testing.T) {
	m := measurement(3*time.Millisecond+17, 977)
	d, err := Compare(m, m)
	require.NoError(t, err)
	require.Equal(t, Delta{}, d)
}

func TestCompareDoubledSize(t *testing.T) {
	base := measurement(time.Millisecond, 1234)
	cand := measurement(time.Millisecond, 2468)
	d, err := Compare(base, cand)
	require.NoError(t, err)
	require.Equal(t, 100.0, d.SizePct)
	require.Equal(t, 0.0, d.TimePct)
}

func TestCompareSign(t *testing.T) {
	base := measurement(4*time.Millisecond, 100)

	d, err := Compare(base, measurement(2*time.Millisecond, 150))
	require.NoError(t, err)
	require.InDelta(t, -50.0, d.TimePct, 1e-9)
	require.InDelta(t, 50.0, d.SizePct, 1e-9)

	d, err = Compare(base, measurement(6*time.Millisecond, 25))
	require.NoError(t, err)
	require.InDelta(t, 50.0, d.TimePct, 1e-9)
	require.InDelta(t, -75.0, d.SizePct, 1e-9)
}

func TestCompareDegenerateBaseline(t *testing.T) {
	cand := measurement(time.Millisecond, 10)

	_, err := Compare(measurement(0, 10), cand)
	require.ErrorIs(t, err, ErrDegenerateBaseline)

	_, err = Compare(measurement(time.Millisecond, 0), cand)
	require.ErrorIs(t, err, ErrDegenerateBaseline)
}

func TestFormatPct(t *testing.T) {
	tests := map[float64]string{
		0:      "0.0%",
		0.01:   "0.0%",
		-0.04:  "0.0%",
		12.34:  "+12.3%",
		-4:     "-4.0%",
		100:    "+100.0%",
		-99.96: "-100.0%",
	}
	for in, want := range tests {
		require.Equal(t, want, FormatPct(in), "FormatPct(%v)", in)
	}
}

func TestTotals(t *testing.T) {
	tt := NewTotals()
	tt.Add(Measurement{Format: "a", Kind: Serialize, Total: 2 * time.Millisecond})
	tt.Add(Measurement{Format: "a", Kind: Serialize, Total: 3 * time.Millisecond})
	tt.Add(Measurement{Format: "a", Kind: Deserialize, Total: time.Millisecond})
	tt.Add(Measurement{Format: "b", Kind: Serialize, Total: time.Hour, Err: errBoom})

	require.Equal(t, 5*time.Millisecond, tt.Get("a", Serialize))
	require.Equal(t, time.Millisecond, tt.Get("a", Deserialize))
	require.Zero(t, tt.Get("b", Serialize))
	require.Zero(t, tt.Get("missing", Deserialize))
}
