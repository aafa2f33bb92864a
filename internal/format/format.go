package format

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/mattn/go-isatty"
)

// Formatter abstracts output formatting.
type Formatter interface {
	Write(w io.Writer, payload any) error
}

// JSONFormatter writes JSON output.
type JSONFormatter struct {
	Indent bool
}

// Write writes JSON payload to a writer.
func (f JSONFormatter) Write(w io.Writer, payload any) error {
	enc := json.NewEncoder(w)
	if f.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(payload)
}

// Table is a header plus rows of already formatted cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// Append adds one row.
func (t *Table) Append(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// TableFormatter renders tables. Styled output uses box drawing; plain
// output is tab separated with no header so it pipes cleanly.
type TableFormatter struct {
	Styled bool
}

// Write renders payload, which must be a Table or *Table.
func (f TableFormatter) Write(w io.Writer, payload any) error {
	var t Table
	switch v := payload.(type) {
	case Table:
		t = v
	case *Table:
		t = *v
	default:
		return fmt.Errorf("table formatter: unsupported payload %T", payload)
	}

	if !f.Styled {
		for _, row := range t.Rows {
			if _, err := fmt.Fprintln(w, strings.Join(row, "\t")); err != nil {
				return err
			}
		}
		return nil
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	if len(t.Header) > 0 {
		tw.AppendHeader(toRow(t.Header))
	}
	for _, row := range t.Rows {
		tw.AppendRow(toRow(row))
	}
	_, err := fmt.Fprintln(w, tw.Render())
	return err
}

func toRow(cells []string) table.Row {
	row := make(table.Row, len(cells))
	for i, cell := range cells {
		row[i] = cell
	}
	return row
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Size renders a byte count with binary units, e.g. "1.5 MiB".
func Size(n int64) string {
	if n < 0 {
		return "-"
	}
	return humanize.IBytes(uint64(n))
}

// Time renders t as RFC 3339 in UTC.
func Time(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

// OptionalTime renders a nullable timestamp, "-" when unset.
func OptionalTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return Time(*t)
}

// Ago renders t relative to now, e.g. "3 hours ago".
func Ago(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.Time(t)
}
