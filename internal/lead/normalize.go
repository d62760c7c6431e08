package lead

import (
	"net/mail"
	"strings"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/leadsync/internal/model"
)

// RawRow is one unvalidated input row from a spreadsheet, CSV, or webhook
// payload. All fields are free-form strings as received.
type RawRow struct {
	Email        string
	FirstName    string
	LastName     string
	Organization string
	Title        string
	Phone        string
	Website      string
	City         string
	State        string
	Country      string
	LeadType     string
}

var titleCaser = cases.Title(language.English)

// Normalize cleans a raw row into a canonical lead record: email lowercased
// and validated, names title-cased with whitespace collapsed, website
// reduced to a bare domain. The fingerprint is computed from the cleaned
// fields. A row with neither an email nor a name+organization pair is
// rejected.
func Normalize(row RawRow, source model.LeadSource) (model.Lead, error) {
	l := model.Lead{
		Email:        normalizeEmail(row.Email),
		FirstName:    titleCaser.String(collapse(row.FirstName)),
		LastName:     titleCaser.String(collapse(row.LastName)),
		Organization: collapse(row.Organization),
		Title:        collapse(row.Title),
		Phone:        strings.TrimSpace(row.Phone),
		Website:      NormalizeDomain(row.Website),
		City:         collapse(row.City),
		State:        strings.ToUpper(collapse(row.State)),
		Country:      collapse(row.Country),
		LeadType:     strings.ToLower(collapse(row.LeadType)),
		Source:       source,
	}

	if row.Email != "" && l.Email == "" {
		return model.Lead{}, eris.Errorf("lead: invalid email %q", row.Email)
	}
	if l.Email == "" && (l.FullName() == "" || l.Organization == "" && l.Website == "") {
		return model.Lead{}, eris.New("lead: row has no email and no name+organization to identify it")
	}

	l.Fingerprint = FingerprintFor(l)
	l.LeadScore = Score(l)
	return l, nil
}

// Score rates lead completeness 0-100. Email and organization dominate
// because they drive CRM matching; contact details fill out the rest.
func Score(l model.Lead) int {
	score := 0
	if l.Email != "" {
		score += 40
	}
	if l.Organization != "" {
		score += 20
	}
	if l.FullName() != "" {
		score += 15
	}
	if l.Phone != "" {
		score += 10
	}
	if l.Website != "" {
		score += 10
	}
	if l.Title != "" {
		score += 5
	}
	return score
}

// NormalizeDomain strips protocol and www prefix from a URL.
func NormalizeDomain(rawURL string) string {
	d := strings.TrimSpace(rawURL)
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexByte(d, '/'); i >= 0 {
		d = d[:i]
	}
	return strings.ToLower(d)
}

// domainFor picks the fingerprint domain: the website if present, otherwise
// the email's domain part.
func domainFor(l model.Lead) string {
	if l.Website != "" {
		return l.Website
	}
	if at := strings.LastIndexByte(l.Email, '@'); at >= 0 {
		return l.Email[at+1:]
	}
	return ""
}

func normalizeEmail(email string) string {
	e := strings.ToLower(strings.TrimSpace(email))
	if e == "" {
		return ""
	}
	addr, err := mail.ParseAddress(e)
	if err != nil {
		return ""
	}
	return addr.Address
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
