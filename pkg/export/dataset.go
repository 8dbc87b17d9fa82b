package export

import "fmt"

// Dataset is tabular export content. Rows hold cells in header order; Notes
// are rendered below the table.
type Dataset struct {
	Title   string
	Headers []string
	Rows    [][]string
	Notes   []string
}

// Append adds a row, padding or truncating it to the header width.
func (d *Dataset) Append(cells ...string) {
	row := make([]string, len(d.Headers))
	copy(row, cells)
	d.Rows = append(d.Rows, row)
}

func (d Dataset) check(format string) error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("%s requires at least one header", format)
	}
	return nil
}
