// Package report renders benchmark stages for humans and machines.
package report

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/appnet-org/codecbench/pkg/bench"
)

// DisplayFunc maps a format identifier to the name shown in reports.
type DisplayFunc func(id string) string

func identity(id string) string { return id }

// Table writes box-drawn tables as each stage completes. Write errors are
// kept and returned by Err.
type Table struct {
	w       io.Writer
	display DisplayFunc
	err     error
}

var _ bench.Reporter = (*Table)(nil)

// NewTable returns a Table writing to w. A nil display shows identifiers.
func NewTable(w io.Writer, display DisplayFunc) *Table {
	if display == nil {
		display = identity
	}
	return &Table{w: w, display: display}
}

// Err returns the first write error.
func (t *Table) Err() error {
	return t.err
}

func (t *Table) printf(format string, args ...any) {
	if t.err != nil {
		return
	}
	_, t.err = fmt.Fprintf(t.w, format, args...)
}

func (t *Table) Setup(info bench.SetupInfo) {
	t.printf("Fixture: %d records, warmup %d, iterations %d, baseline %s\n\n",
		info.FixtureSize, info.Warmup, info.Iterations, t.display(info.Baseline))

	rows := make([][]string, len(info.Payloads))
	for i, p := range info.Payloads {
		rows[i] = []string{t.display(p.Format), fmt.Sprintf("%d", p.Size)}
	}
	t.draw("Pre-encoded payloads", []column{{"Format", false}, {"Size (bytes)", true}}, rows)
}

func (t *Table) Stage(kind bench.Kind, rows []bench.Row) {
	title := "Serialization"
	if kind == bench.Deserialize {
		title = "Deserialization"
	}

	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = t.stageRow(r)
	}
	t.draw(title, []column{
		{"Format", false},
		{"Avg Time (ms)", true},
		{"% Diff", true},
		{"Size (bytes)", true},
		{"% Diff", true},
	}, cells)
}

func (t *Table) stageRow(r bench.Row) []string {
	name := t.display(r.Format)
	if r.Baseline {
		name += " *"
	}
	if r.Failed() {
		return []string{name, "FAILED", "-", "-", "-"}
	}

	timePct, sizePct := bench.FormatPct(r.Delta.TimePct), bench.FormatPct(r.Delta.SizePct)
	if r.DeltaErr != nil {
		timePct, sizePct = "n/a", "n/a"
	}
	return []string{
		name,
		fmt.Sprintf("%.4f", r.AvgMs()),
		timePct,
		fmt.Sprintf("%d", r.Size),
		sizePct,
	}
}

func (t *Table) Summary(rows []bench.SummaryRow) {
	cells := make([][]string, len(rows))
	for i, r := range rows {
		ser, de := ms(r.Serialize), ms(r.Deserialize)
		cells[i] = []string{
			t.display(r.Format),
			fmt.Sprintf("%.2f", ser),
			fmt.Sprintf("%.2f", de),
			fmt.Sprintf("%.2f", ser+de),
		}
	}
	t.draw("Summary", []column{
		{"Format", false},
		{"Serialize Total (ms)", true},
		{"Deserialize Total (ms)", true},
		{"Total (ms)", true},
	}, cells)
	t.printf("* baseline\n")
}

// ==================== Box drawing ====================

type column struct {
	header string
	right  bool
}

func (t *Table) draw(title string, cols []column, rows [][]string) {
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = utf8.RuneCountInString(c.header)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}

	rule := func(left, mid, right string) string {
		var b strings.Builder
		b.WriteString(left)
		for i, w := range widths {
			if i > 0 {
				b.WriteString(mid)
			}
			b.WriteString(strings.Repeat("─", w+2))
		}
		b.WriteString(right)
		return b.String()
	}
	line := func(cells []string, header bool) string {
		var b strings.Builder
		b.WriteString("│")
		for i, cell := range cells {
			pad := strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell))
			if cols[i].right && !header {
				b.WriteString(" " + pad + cell + " │")
			} else {
				b.WriteString(" " + cell + pad + " │")
			}
		}
		return b.String()
	}

	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.header
	}

	t.printf("%s\n", title)
	t.printf("%s\n", rule("┌", "┬", "┐"))
	t.printf("%s\n", line(headers, true))
	t.printf("%s\n", rule("├", "┼", "┤"))
	for _, row := range rows {
		t.printf("%s\n", line(row, false))
	}
	t.printf("%s\n\n", rule("└", "┴", "┘"))
}
