package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/giftsense/internal/core/domain"
)

// SessionRepository persists recommendation sessions and their results.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082102)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	events JSONB NOT NULL DEFAULT '[]'::jsonb,
	budget JSONB NOT NULL DEFAULT '{}'::jsonb,
	age_prior JSONB NOT NULL DEFAULT '[]'::jsonb,
	hints JSONB NOT NULL DEFAULT '{}'::jsonb,
	status TEXT NOT NULL,
	error_message TEXT,
	result JSONB,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_created_at ON sessions(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.Session) error {
	eventsJSON, err := json.Marshal(session.Events)
	if err != nil {
		return fmt.Errorf("marshal events: %w", err)
	}
	budgetJSON, err := json.Marshal(session.Budget)
	if err != nil {
		return fmt.Errorf("marshal budget: %w", err)
	}
	ageJSON, err := json.Marshal(session.AgePrior)
	if err != nil {
		return fmt.Errorf("marshal age prior: %w", err)
	}
	hintsJSON, err := json.Marshal(session.Hints)
	if err != nil {
		return fmt.Errorf("marshal hints: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO sessions (
	id, events, budget, age_prior, hints, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		session.ID, eventsJSON, budgetJSON, ageJSON, hintsJSON,
		string(session.Status), session.Error, session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, events, budget, age_prior, hints, status, error_message, created_at, updated_at
FROM sessions
WHERE id = $1
`, id)

	var session domain.Session
	var eventsRaw, budgetRaw, ageRaw, hintsRaw []byte
	var status string

	err := row.Scan(
		&session.ID, &eventsRaw, &budgetRaw, &ageRaw, &hintsRaw,
		&status, &session.Error, &session.CreatedAt, &session.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get session", fmt.Errorf("session %s", id))
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	for _, field := range []struct {
		raw []byte
		dst any
	}{
		{eventsRaw, &session.Events},
		{budgetRaw, &session.Budget},
		{ageRaw, &session.AgePrior},
		{hintsRaw, &session.Hints},
	} {
		if len(field.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(field.raw, field.dst); err != nil {
			return nil, fmt.Errorf("unmarshal session field: %w", err)
		}
	}
	session.Status = domain.SessionStatus(status)
	return &session, nil
}

func (r *SessionRepository) UpdateStatus(ctx context.Context, id string, status domain.SessionStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE sessions
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return requireRowAffected(res, "update session status", id)
}

func requireRowAffected(res sql.Result, operation, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, operation, fmt.Errorf("session %s", id))
	}
	return nil
}

func (r *SessionRepository) SaveResult(ctx context.Context, id string, rec domain.Recommendation) error {
	resultJSON, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal recommendation: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE sessions
SET result = $2, updated_at = $3
WHERE id = $1
`, id, resultJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save recommendation: %w", err)
	}
	return requireRowAffected(res, "save recommendation", id)
}

func (r *SessionRepository) GetResult(ctx context.Context, id string) (*domain.Recommendation, error) {
	row := r.db.QueryRowContext(ctx, `SELECT result FROM sessions WHERE id = $1`, id)

	var resultRaw []byte
	if err := row.Scan(&resultRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get result", fmt.Errorf("session %s", id))
		}
		return nil, fmt.Errorf("scan result: %w", err)
	}
	if len(resultRaw) == 0 {
		return nil, domain.WrapError(domain.ErrNotFound, "get result",
			fmt.Errorf("session %s has no result", id))
	}

	var rec domain.Recommendation
	if err := json.Unmarshal(resultRaw, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal recommendation: %w", err)
	}
	return &rec, nil
}
