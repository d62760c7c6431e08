package ingest

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadsync/internal/lead"
)

// ReadCSV parses lead rows from a CSV file. The first row must be a header;
// unrecognized columns are ignored.
func ReadCSV(path string) ([]lead.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "csv: open file")
	}
	defer f.Close()

	return ParseCSV(f)
}

// ParseCSV parses lead rows from an open CSV stream.
func ParseCSV(r io.Reader) ([]lead.RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // tolerate ragged rows
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv: read header")
	}
	cols := headerMap(header)
	if len(cols) == 0 {
		return nil, eris.New("csv: no recognized columns in header")
	}

	var rows []lead.RawRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		rows = append(rows, rowFromCells(record, cols))
	}
	return rows, nil
}
