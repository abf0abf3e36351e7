package export

import (
	"errors"
	"time"
)

// ErrNoColumns is returned when a table has nothing to render.
var ErrNoColumns = errors.New("export table has no columns")

// Column describes one exported field. Weight sets the relative PDF width.
type Column struct {
	Label  string
	Weight float64
}

// Table is a titled grid of string cells in column order.
type Table struct {
	Title       string
	Columns     []Column
	Rows        [][]string
	GeneratedAt time.Time
}

// Labels returns the column labels.
func (t Table) Labels() []string {
	labels := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		labels[i] = col.Label
	}
	return labels
}

// AddRow appends a row, padding or truncating it to the column count.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.Columns))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}

func (t Table) validate() error {
	if len(t.Columns) == 0 {
		return ErrNoColumns
	}
	return nil
}
