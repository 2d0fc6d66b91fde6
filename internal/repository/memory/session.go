package memory

import (
	"context"
	"sort"
	"sync"

	"dcaadvisor/internal/domain/session"
	"dcaadvisor/pkg/errors"
)

var _ session.Repository = (*SessionRepository)(nil)

// SessionRepository keeps sessions in process memory
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// NewSessionRepository creates an empty in-memory session store
func NewSessionRepository() *SessionRepository {
	return &SessionRepository{sessions: make(map[string]*session.Session)}
}

func clone(s *session.Session) *session.Session {
	out := *s
	out.Conversation = s.Conversation.Clone()
	return &out
}

func (r *SessionRepository) Create(ctx context.Context, s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.sessions[s.ID]; exists {
		return errors.Wrapf(errors.ErrAlreadyExists, "session %s", s.ID)
	}
	r.sessions[s.ID] = clone(s)
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "session %s", id)
	}
	return clone(s), nil
}

func (r *SessionRepository) Update(ctx context.Context, s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[s.ID]; !ok {
		return errors.Wrapf(errors.ErrNotFound, "session %s", s.ID)
	}
	r.sessions[s.ID] = clone(s)
	return nil
}

// List returns sessions by most recent update; limit <= 0 returns all
func (r *SessionRepository) List(ctx context.Context, limit int) ([]*session.Session, error) {
	r.mu.RLock()
	out := make([]*session.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, clone(s))
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return errors.Wrapf(errors.ErrNotFound, "session %s", id)
	}
	delete(r.sessions, id)
	return nil
}
