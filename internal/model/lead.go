package model

import "time"

// LeadSource identifies where a lead record entered the system.
type LeadSource string

const (
	SourceGoogleDrive LeadSource = "google_drive"
	SourceAnyMail     LeadSource = "anymail"
	SourceManual      LeadSource = "manual"
	SourceWebhook     LeadSource = "webhook"
)

// SyncStatus represents the state of a lead's CRM contact mapping.
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
	SyncStatusDeleted SyncStatus = "deleted"
)

// Lead is a prospective contact. Email may be empty until enrichment fills
// it; such leads cannot be reconciled against the CRM.
type Lead struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	FirstName    string     `json:"first_name"`
	LastName     string     `json:"last_name"`
	Organization string     `json:"organization"`
	Title        string     `json:"title,omitempty"`
	Phone        string     `json:"phone,omitempty"`
	Website      string     `json:"website,omitempty"`
	City         string     `json:"city,omitempty"`
	State        string     `json:"state,omitempty"`
	Country      string     `json:"country,omitempty"`
	LeadType     string     `json:"lead_type,omitempty"`
	LeadScore    int        `json:"lead_score"`
	Fingerprint  string     `json:"fingerprint"`
	Source       LeadSource `json:"source"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// FullName joins the name parts, tolerating either being empty.
func (l Lead) FullName() string {
	switch {
	case l.FirstName == "":
		return l.LastName
	case l.LastName == "":
		return l.FirstName
	default:
		return l.FirstName + " " + l.LastName
	}
}

// ContactMapping associates a local lead with its remote CRM contact.
// At most one active mapping exists per lead; once assigned, the remote id
// only changes if the CRM reports the contact deleted.
type ContactMapping struct {
	LeadID          string     `json:"lead_id"`
	RemoteContactID string     `json:"remote_contact_id"`
	Status          SyncStatus `json:"sync_status"`
	LastSyncAt      *time.Time `json:"last_sync_at,omitempty"`
}

// SyncOutcome records the per-lead result of a reconciliation pass.
type SyncOutcome struct {
	LeadID          string `json:"lead_id"`
	Email           string `json:"email"`
	RemoteContactID string `json:"remote_contact_id,omitempty"`
	Error           string `json:"error,omitempty"`
}

// SyncSummary is the structured result of one reconciliation pass.
// Every input lead appears in exactly one of the three slices.
type SyncSummary struct {
	Created []SyncOutcome `json:"created"`
	Updated []SyncOutcome `json:"updated"`
	Failed  []SyncOutcome `json:"failed"`
}

// Total returns the number of leads accounted for in the summary.
func (s SyncSummary) Total() int {
	return len(s.Created) + len(s.Updated) + len(s.Failed)
}

// EnrichmentHit is the narrow DTO the core keeps from an email-finding
// provider; provider-specific response shapes are adapted into this.
type EnrichmentHit struct {
	Email      string   `json:"email"`
	Confidence int      `json:"confidence"`
	Sources    []string `json:"sources,omitempty"`
}
