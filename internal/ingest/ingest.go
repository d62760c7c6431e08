// Package ingest parses lead rows out of CSV and XLSX files.
package ingest

import (
	"strings"

	"github.com/sells-group/leadsync/internal/lead"
)

// columnAliases maps recognized header spellings to RawRow fields.
var columnAliases = map[string]string{
	"email":         "email",
	"email address": "email",
	"e-mail":        "email",
	"first name":    "first_name",
	"first_name":    "first_name",
	"firstname":     "first_name",
	"last name":     "last_name",
	"last_name":     "last_name",
	"lastname":      "last_name",
	"organization":  "organization",
	"organisation":  "organization",
	"company":       "organization",
	"company name":  "organization",
	"title":         "title",
	"job title":     "title",
	"phone":         "phone",
	"phone number":  "phone",
	"website":       "website",
	"url":           "website",
	"domain":        "website",
	"city":          "city",
	"state":         "state",
	"country":       "country",
	"lead type":     "lead_type",
	"lead_type":     "lead_type",
	"type":          "lead_type",
}

// headerMap resolves a header row into column index → RawRow field.
func headerMap(header []string) map[int]string {
	m := make(map[int]string, len(header))
	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(h))
		if field, ok := columnAliases[key]; ok {
			m[i] = field
		}
	}
	return m
}

// rowFromCells maps one data row through the header mapping.
func rowFromCells(cells []string, cols map[int]string) lead.RawRow {
	var row lead.RawRow
	for i, cell := range cells {
		field, ok := cols[i]
		if !ok {
			continue
		}
		switch field {
		case "email":
			row.Email = cell
		case "first_name":
			row.FirstName = cell
		case "last_name":
			row.LastName = cell
		case "organization":
			row.Organization = cell
		case "title":
			row.Title = cell
		case "phone":
			row.Phone = cell
		case "website":
			row.Website = cell
		case "city":
			row.City = cell
		case "state":
			row.State = cell
		case "country":
			row.Country = cell
		case "lead_type":
			row.LeadType = cell
		}
	}
	return row
}
