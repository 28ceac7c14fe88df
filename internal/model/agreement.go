package model

import "time"

// AgreementInput is the raw form submission.
type AgreementInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Agreed    bool   `json:"agreed"`
}

// Agreement is the stored confirmation record. It is created exactly once
// per successful submission and never modified afterwards.
//
// The JSON names first_name, last_name, confirmation_code and agreed_at are a
// public contract shared with the admin view and exported backups.
type Agreement struct {
	ID               string    `json:"id"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	ConfirmationCode string    `json:"confirmation_code"`
	AgreedAt         time.Time `json:"agreed_at"`
	IPHash           string    `json:"ip_hash,omitempty"`
	UserAgent        string    `json:"user_agent,omitempty"`
	SessionID        string    `json:"session_id,omitempty"`
}

// FullName returns "First Last".
func (a *Agreement) FullName() string {
	return a.FirstName + " " + a.LastName
}

// AgreementFilter selects agreements for listing. Results are always
// ordered newest first.
type AgreementFilter struct {
	Search string     // case-insensitive match on first name, last name or code
	Since  *time.Time // only agreements at or after this instant
	Limit  int        // 0 = no limit
	Offset int
}
