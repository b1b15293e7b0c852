package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// Table outputs tabular data in text format. Column widths are measured in
// terminal cells so wide characters in ticket summaries stay aligned.
type Table struct {
	writer   io.Writer
	headers  []string
	rows     [][]string
	widths   []int
	maxWidth int
}

// NewTable creates a new table with headers
func NewTable(w io.Writer, headers ...string) *Table {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	return &Table{
		writer:  w,
		headers: headers,
		widths:  widths,
	}
}

// SetMaxColumnWidth caps every column; longer cells are truncated with "...".
func (t *Table) SetMaxColumnWidth(n int) {
	t.maxWidth = n
}

// AddRow adds a row to the table
func (t *Table) AddRow(cols ...string) {
	row := make([]string, len(t.headers))
	for i := range row {
		if i >= len(cols) {
			continue
		}
		c := cols[i]
		if t.maxWidth > 0 {
			c = Truncate(c, t.maxWidth)
		}
		row[i] = c
		if w := runewidth.StringWidth(c); w > t.widths[i] {
			t.widths[i] = w
		}
	}
	t.rows = append(t.rows, row)
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Render outputs the table
func (t *Table) Render() {
	t.renderRow(t.headers)

	seps := make([]string, len(t.widths))
	for i, w := range t.widths {
		seps[i] = strings.Repeat("-", w)
	}
	t.renderRow(seps)

	for _, row := range t.rows {
		t.renderRow(row)
	}
}

func (t *Table) renderRow(cols []string) {
	var b strings.Builder
	b.WriteString("  ")
	for i, c := range cols {
		if i > 0 {
			b.WriteString("  ")
		}
		if i == len(cols)-1 {
			b.WriteString(c)
			continue
		}
		b.WriteString(runewidth.FillRight(c, t.widths[i]))
	}
	fmt.Fprintln(t.writer, strings.TrimRight(b.String(), " "))
}

// Truncate shortens s to at most width terminal cells, adding "..." when cut.
func Truncate(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if runewidth.StringWidth(s) <= width {
		return s
	}
	if width <= 3 {
		return runewidth.Truncate(s, width, "")
	}
	return runewidth.Truncate(s, width, "...")
}

// Pluralize returns singular or plural form based on count
func Pluralize(count int, singular, plural string) string {
	if count == 1 {
		return singular
	}
	return plural
}

// CountStr returns "N item(s)" string
func CountStr(count int, singular, plural string) string {
	return fmt.Sprintf("%d %s", count, Pluralize(count, singular, plural))
}
