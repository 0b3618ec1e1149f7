package output

import (
	"io"

	"github.com/olekukonko/tablewriter"
)

// Table is a borderless, left-aligned table.
type Table struct {
	headers []string
	rows    [][]string
	kv      bool
}

// NewTable creates a table with the given column headers.
func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// NewDetails creates a two-column key/value table without headers, used
// for single-object views.
func NewDetails() *Table {
	return &Table{kv: true}
}

// Row appends a row.
func (t *Table) Row(cells ...string) *Table {
	t.rows = append(t.rows, cells)
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Render writes the table.
func (t *Table) Render(w io.Writer) {
	table := tablewriter.NewWriter(w)
	if !t.kv {
		table.SetHeader(t.headers)
		table.SetAutoFormatHeaders(true)
		table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
		table.SetColumnSeparator("")
	} else {
		table.SetColumnSeparator(":")
	}
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(t.rows)
	table.Render()
}
