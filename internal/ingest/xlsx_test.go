package ingest

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

func writeWorkbook(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Leads")
	require.NoError(t, err)
	for _, cells := range rows {
		row := sheet.AddRow()
		for _, c := range cells {
			row.AddCell().SetString(c)
		}
	}
	path := filepath.Join(t.TempDir(), "leads.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadXLSX(t *testing.T) {
	path := writeWorkbook(t, [][]string{
		{"Email Address", "First Name", "Last Name", "Company", "Ignored"},
		{"jo@acme.com", "Jo", "Smith", "Acme Corp", "whatever"},
		{"", "Sam", "Reed", "Reed Consulting", "x"},
	})

	rows, err := ReadXLSX(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "jo@acme.com", rows[0].Email)
	assert.Equal(t, "Jo", rows[0].FirstName)
	assert.Equal(t, "Smith", rows[0].LastName)
	assert.Equal(t, "Acme Corp", rows[0].Organization)

	assert.Empty(t, rows[1].Email)
	assert.Equal(t, "Reed Consulting", rows[1].Organization)
}

func TestReadXLSX_RaggedRows(t *testing.T) {
	path := writeWorkbook(t, [][]string{
		{"email", "company"},
		{"jo@acme.com"},
		{"sam@reed.com", "Reed", "extra"},
	})

	rows, err := ReadXLSX(path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "jo@acme.com", rows[0].Email)
	assert.Empty(t, rows[0].Organization)
	assert.Equal(t, "Reed", rows[1].Organization)
}

func TestReadXLSX_NoRecognizedColumns(t *testing.T) {
	path := writeWorkbook(t, [][]string{
		{"foo", "bar"},
		{"1", "2"},
	})

	_, err := ReadXLSX(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recognized columns")
}

func TestReadXLSX_MissingFile(t *testing.T) {
	_, err := ReadXLSX(filepath.Join(t.TempDir(), "absent.xlsx"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open file")
}
