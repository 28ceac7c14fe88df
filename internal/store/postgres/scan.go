package postgres

import (
	"database/sql"

	"github.com/alfredjeanlab/agreements/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanAgreement scans a single row into a model.Agreement.
// The row must contain columns in the order defined by agreementColumns.
func scanAgreement(row scannable) (*model.Agreement, error) {
	var (
		a         model.Agreement
		ipHash    sql.NullString
		userAgent sql.NullString
		sessionID sql.NullString
	)

	err := row.Scan(
		&a.ID,
		&a.FirstName,
		&a.LastName,
		&a.ConfirmationCode,
		&a.AgreedAt,
		&ipHash,
		&userAgent,
		&sessionID,
	)
	if err != nil {
		return nil, err
	}

	a.IPHash = ipHash.String
	a.UserAgent = userAgent.String
	a.SessionID = sessionID.String
	a.AgreedAt = a.AgreedAt.UTC()
	return &a, nil
}

// scanAgreementWithTotal scans a row that has a leading total_count column
// followed by the standard agreement columns.
func scanAgreementWithTotal(row scannable) (*model.Agreement, int, error) {
	var (
		total     int
		a         model.Agreement
		ipHash    sql.NullString
		userAgent sql.NullString
		sessionID sql.NullString
	)

	err := row.Scan(
		&total,
		&a.ID,
		&a.FirstName,
		&a.LastName,
		&a.ConfirmationCode,
		&a.AgreedAt,
		&ipHash,
		&userAgent,
		&sessionID,
	)
	if err != nil {
		return nil, 0, err
	}

	a.IPHash = ipHash.String
	a.UserAgent = userAgent.String
	a.SessionID = sessionID.String
	a.AgreedAt = a.AgreedAt.UTC()
	return &a, total, nil
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
