package lead

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadsync/internal/model"
)

func TestNormalize_CleansFields(t *testing.T) {
	l, err := Normalize(RawRow{
		Email:        "  JO.SMITH@Acme.COM ",
		FirstName:    "  jo ",
		LastName:     "smith",
		Organization: "Acme   Corp",
		Title:        " VP  Sales ",
		Website:      "https://www.Acme.com/about",
		City:         "austin",
		State:        "tx",
	}, model.SourceManual)
	require.NoError(t, err)

	assert.Equal(t, "jo.smith@acme.com", l.Email)
	assert.Equal(t, "Jo", l.FirstName)
	assert.Equal(t, "Smith", l.LastName)
	assert.Equal(t, "Acme Corp", l.Organization)
	assert.Equal(t, "VP Sales", l.Title)
	assert.Equal(t, "acme.com", l.Website)
	assert.Equal(t, "TX", l.State)
	assert.Equal(t, model.SourceManual, l.Source)
	assert.NotEmpty(t, l.Fingerprint)
}

func TestNormalize_InvalidEmail(t *testing.T) {
	_, err := Normalize(RawRow{Email: "not-an-email", Organization: "Acme"}, model.SourceManual)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid email")
}

func TestNormalize_RejectsUnidentifiableRow(t *testing.T) {
	tests := []struct {
		name    string
		row     RawRow
		wantErr bool
	}{
		{name: "empty row", row: RawRow{}, wantErr: true},
		{name: "name only", row: RawRow{FirstName: "Jo"}, wantErr: true},
		{name: "org only", row: RawRow{Organization: "Acme"}, wantErr: true},
		{name: "email only", row: RawRow{Email: "jo@acme.com"}, wantErr: false},
		{name: "name plus org", row: RawRow{FirstName: "Jo", Organization: "Acme"}, wantErr: false},
		{name: "name plus website", row: RawRow{FirstName: "Jo", Website: "acme.com"}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.row, model.SourceManual)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNormalize_EquivalentRowsShareFingerprint(t *testing.T) {
	a, err := Normalize(RawRow{Email: "JO@ACME.COM", FirstName: "Jo", LastName: "Smith", Organization: "Acme"}, model.SourceManual)
	require.NoError(t, err)
	b, err := Normalize(RawRow{Email: " jo@acme.com", FirstName: " jo", LastName: "SMITH ", Organization: " acme"}, model.SourceWebhook)
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)
}

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://www.acme.com/", "acme.com"},
		{"http://acme.com/about/team", "acme.com"},
		{"WWW.ACME.COM", "acme.com"},
		{" acme.com ", "acme.com"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeDomain(tt.in), "input %q", tt.in)
	}
}

func TestScore(t *testing.T) {
	full := model.Lead{
		Email: "jo@acme.com", FirstName: "Jo", LastName: "Smith",
		Organization: "Acme", Title: "VP", Phone: "555", Website: "acme.com",
	}
	assert.Equal(t, 100, Score(full))
	assert.Equal(t, 0, Score(model.Lead{}))
	assert.Equal(t, 40, Score(model.Lead{Email: "jo@acme.com"}))
}
