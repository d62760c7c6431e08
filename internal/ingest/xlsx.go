package ingest

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/leadsync/internal/lead"
)

// ReadXLSX parses lead rows from the first sheet of an XLSX workbook. The
// first row must be a header; unrecognized columns are ignored.
func ReadXLSX(path string) ([]lead.RawRow, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("xlsx: workbook has no sheets")
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, nil
	}

	cols := headerMap(rowToStrings(sheet.Rows[0]))
	if len(cols) == 0 {
		return nil, eris.New("xlsx: no recognized columns in header")
	}

	var rows []lead.RawRow
	for _, row := range sheet.Rows[1:] {
		rows = append(rows, rowFromCells(rowToStrings(row), cols))
	}
	return rows, nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
