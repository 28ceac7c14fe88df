package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/alfredjeanlab/agreements/internal/model"
	"github.com/alfredjeanlab/agreements/internal/store"
)

// uniqueViolation is the SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// agreementColumns is the column list used for SELECT statements on the agreements table.
const agreementColumns = `id, first_name, last_name, confirmation_code, agreed_at,
	ip_hash, user_agent, session_id`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryInsertAgreement(ctx context.Context, db executor, a *model.Agreement) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.AgreedAt.IsZero() {
		a.AgreedAt = time.Now().UTC()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO agreements (
			id, first_name, last_name, confirmation_code, agreed_at,
			ip_hash, user_agent, session_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID,
		a.FirstName,
		a.LastName,
		a.ConfirmationCode,
		a.AgreedAt,
		nullString(a.IPHash),
		nullString(a.UserAgent),
		nullString(a.SessionID),
	)
	return classifyError(err)
}

// classifyError maps a duplicate-key failure to store.ErrUniqueViolation and
// passes every other error through unchanged.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("%w: %s", store.ErrUniqueViolation, pqErr.Constraint)
	}
	return err
}

func queryGetAgreementByCode(ctx context.Context, db executor, code string) (*model.Agreement, error) {
	row := db.QueryRowContext(ctx, `SELECT `+agreementColumns+` FROM agreements WHERE confirmation_code = $1`, code)
	a, err := scanAgreement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("agreement %s: %w", code, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// queryGetAgreementBySession returns the newest agreement signed in sessionID.
func queryGetAgreementBySession(ctx context.Context, db executor, sessionID string) (*model.Agreement, error) {
	row := db.QueryRowContext(ctx, `SELECT `+agreementColumns+` FROM agreements
		WHERE session_id = $1 ORDER BY agreed_at DESC LIMIT 1`, sessionID)
	a, err := scanAgreement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("agreement for session %s: %w", sessionID, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// likeEscaper makes search text match literally inside an ILIKE pattern,
// using the default backslash escape character.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func queryListAgreements(ctx context.Context, db executor, filter model.AgreementFilter) ([]*model.Agreement, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.Search != "" {
		p := nextArg()
		whereClauses = append(whereClauses,
			fmt.Sprintf("(first_name ILIKE '%%' || %s || '%%' OR last_name ILIKE '%%' || %s || '%%' OR confirmation_code ILIKE '%%' || %s || '%%')", p, p, p))
		args = append(args, escapeLike(filter.Search))
	}

	if filter.Since != nil {
		whereClauses = append(whereClauses, "agreed_at >= "+nextArg())
		args = append(args, *filter.Since)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + agreementColumns + " FROM agreements" + whereSQL + " ORDER BY agreed_at DESC"

	if filter.Limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		dataQuery += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list agreements: %w", err)
	}
	defer rows.Close()

	var (
		agreements []*model.Agreement
		total      int
	)
	for rows.Next() {
		a, t, err := scanAgreementWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan agreement: %w", err)
		}
		total = t
		agreements = append(agreements, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate agreements: %w", err)
	}

	// An offset past the end returns no rows, and with them no total; count separately.
	if len(agreements) == 0 && filter.Offset > 0 {
		countQuery := "SELECT COUNT(*) FROM agreements" + whereSQL
		countArgs := args[:len(whereClauses)]
		if err := db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
			return nil, 0, fmt.Errorf("count agreements: %w", err)
		}
	}

	return agreements, total, nil
}
