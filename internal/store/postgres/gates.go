package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/alfredjeanlab/agreements/internal/model"
)

// IsUnlocked returns true if the session's rules gate row exists, is
// satisfied and has not expired. A missing row is not an error.
func (s *PostgresStore) IsUnlocked(ctx context.Context, sessionID string) (bool, error) {
	var gateStatus string
	err := s.db.QueryRowContext(ctx, `
		SELECT status FROM session_gates
		WHERE session_id = $1 AND gate_id = $2 AND expires_at > NOW()`,
		sessionID, model.GateRules,
	).Scan(&gateStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return gateStatus == model.GateSatisfied, nil
}

// SetUnlocked marks the session's rules gate satisfied until now+ttl.
// An existing row is overwritten so the expiry slides forward.
func (s *PostgresStore) SetUnlocked(ctx context.Context, sessionID string, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_gates (session_id, gate_id, status, satisfied_at, expires_at)
		VALUES ($1, $2, 'satisfied', NOW(), $3)
		ON CONFLICT (session_id, gate_id) DO UPDATE
		SET status = 'satisfied', satisfied_at = NOW(), expires_at = EXCLUDED.expires_at`,
		sessionID, model.GateRules, time.Now().UTC().Add(ttl),
	)
	return err
}

// ClearUnlocked removes the session's rules gate row.
func (s *PostgresStore) ClearUnlocked(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM session_gates
		WHERE session_id = $1 AND gate_id = $2`,
		sessionID, model.GateRules,
	)
	return err
}

// PurgeExpired deletes every expired gate row.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM session_gates WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
