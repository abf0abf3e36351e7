package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// utf8BOM lets spreadsheet tools detect the encoding of accented names.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSV renders tables as comma separated values.
type CSV struct {
	// BOM prefixes the output with a UTF-8 byte order mark.
	BOM bool
}

// Render writes the label row followed by every data row.
func (e CSV) Render(t Table) ([]byte, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	if e.BOM {
		buf.Write(utf8BOM)
	}
	w := csv.NewWriter(buf)
	if err := w.Write(t.Labels()); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, fmt.Errorf("write csv rows: %w", err)
	}
	return buf.Bytes(), nil
}
