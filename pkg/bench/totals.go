package bench

import "time"

type TotalsKey struct {
	Format string
	Kind   Kind
}

// Totals sums measured time per format and operation for one run.
type Totals struct {
	m map[TotalsKey]time.Duration
}

func NewTotals() *Totals {
	return &Totals{m: make(map[TotalsKey]time.Duration)}
}

// Add accumulates m. Failed measurements are ignored.
func (t *Totals) Add(m Measurement) {
	if m.Failed() {
		return
	}
	t.m[TotalsKey{Format: m.Format, Kind: m.Kind}] += m.Total
}

func (t *Totals) Get(format string, kind Kind) time.Duration {
	return t.m[TotalsKey{Format: format, Kind: kind}]
}
