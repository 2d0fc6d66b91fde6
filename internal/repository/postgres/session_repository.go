package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lib/pq"

	"dcaadvisor/internal/agent"
	"dcaadvisor/internal/domain/session"
	"dcaadvisor/pkg/errors"
	"dcaadvisor/pkg/logger"
)

var _ session.Repository = (*SessionRepository)(nil)

// SessionRepository implements session.Repository on the advisor_sessions table
type SessionRepository struct {
	db  DBTX
	log *logger.Logger
}

// NewSessionRepository accepts *sqlx.DB or *sqlx.Tx
func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{
		db:  db,
		log: logger.Get().With("component", "session_repository"),
	}
}

// sessionRow mirrors advisor_sessions
type sessionRow struct {
	ID           string    `db:"id"`
	Model        string    `db:"model"`
	PortfolioID  string    `db:"portfolio_id"`
	Conversation []byte    `db:"conversation"`
	Turns        int       `db:"turns"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

func toRow(s *session.Session) (sessionRow, error) {
	conv, err := json.Marshal(s.Conversation)
	if err != nil {
		return sessionRow{}, errors.Wrap(err, "failed to marshal conversation")
	}
	return sessionRow{
		ID:           s.ID,
		Model:        s.Model,
		PortfolioID:  s.PortfolioID,
		Conversation: conv,
		Turns:        s.Turns,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}, nil
}

func (row sessionRow) toSession() (*session.Session, error) {
	var conv agent.Conversation
	if err := json.Unmarshal(row.Conversation, &conv); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal conversation of session %s", row.ID)
	}
	return &session.Session{
		ID:           row.ID,
		Model:        row.Model,
		PortfolioID:  row.PortfolioID,
		Conversation: conv,
		Turns:        row.Turns,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}, nil
}

// Create inserts a new session
func (r *SessionRepository) Create(ctx context.Context, s *session.Session) error {
	row, err := toRow(s)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO advisor_sessions (id, model, portfolio_id, conversation, turns, created_at, updated_at)
		VALUES (:id, :model, :portfolio_id, :conversation, :turns, :created_at, :updated_at)
	`
	if _, err := r.db.NamedExecContext(ctx, query, row); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return errors.Wrapf(errors.ErrAlreadyExists, "session %s", s.ID)
		}
		return errors.Wrap(err, "failed to create session")
	}
	return nil
}

// Get retrieves a session by id
func (r *SessionRepository) Get(ctx context.Context, id string) (*session.Session, error) {
	var row sessionRow
	query := `
		SELECT id, model, portfolio_id, conversation, turns, created_at, updated_at
		FROM advisor_sessions
		WHERE id = $1
	`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(errors.ErrNotFound, "session %s", id)
		}
		return nil, errors.Wrap(err, "failed to get session")
	}
	return row.toSession()
}

// Update overwrites the mutable fields of a session
func (r *SessionRepository) Update(ctx context.Context, s *session.Session) error {
	row, err := toRow(s)
	if err != nil {
		return err
	}

	query := `
		UPDATE advisor_sessions SET
			model = :model,
			portfolio_id = :portfolio_id,
			conversation = :conversation,
			turns = :turns,
			updated_at = :updated_at
		WHERE id = :id
	`
	result, err := r.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return errors.Wrap(err, "failed to update session")
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(errors.ErrNotFound, "session %s", s.ID)
	}
	return nil
}

// List returns sessions ordered by last update; limit <= 0 means no limit
func (r *SessionRepository) List(ctx context.Context, limit int) ([]*session.Session, error) {
	var rows []sessionRow
	query := `
		SELECT id, model, portfolio_id, conversation, turns, created_at, updated_at
		FROM advisor_sessions
		ORDER BY updated_at DESC, id
	`
	var err error
	if limit > 0 {
		err = r.db.SelectContext(ctx, &rows, query+" LIMIT $1", limit)
	} else {
		err = r.db.SelectContext(ctx, &rows, query)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to list sessions")
	}

	out := make([]*session.Session, 0, len(rows))
	for _, row := range rows {
		s, err := row.toSession()
		if err != nil {
			r.log.Warnw("Skipping unreadable session", "session_id", row.ID, "error", err)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Delete removes a session
func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM advisor_sessions WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "failed to delete session")
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return errors.Wrapf(errors.ErrNotFound, "session %s", id)
	}
	return nil
}
