package session

import (
	"context"

	"dcaadvisor/internal/agent"
	"dcaadvisor/pkg/errors"
	"dcaadvisor/pkg/logger"
)

// Service opens and records sessions around agent turns
type Service struct {
	repo       Repository
	maxHistory int
	log        *logger.Logger
}

// NewService creates a session service; maxHistory bounds the conversation
// handed to each turn (0 keeps everything).
func NewService(repo Repository, maxHistory int) *Service {
	return &Service{
		repo:       repo,
		maxHistory: maxHistory,
		log:        logger.Get().With("component", "session_service"),
	}
}

// Open returns the session with id, creating it when id is empty or unknown.
// A non-empty model replaces the one stored on the session.
func (s *Service) Open(ctx context.Context, id, model string) (*Session, error) {
	if id != "" {
		sess, err := s.repo.Get(ctx, id)
		switch {
		case err == nil:
			if model != "" {
				sess.Model = model
			}
			return sess, nil
		case !errors.Is(err, errors.ErrNotFound):
			return nil, errors.Wrapf(err, "load session %s", id)
		}
	}

	sess := New(id, model)
	if err := s.repo.Create(ctx, sess); err != nil {
		return nil, errors.Wrap(err, "create session")
	}
	s.log.Debugw("Session created", "session_id", sess.ID, "model", model)
	return sess, nil
}

// History returns the conversation to hand to the next turn
func (s *Service) History(sess *Session) agent.Conversation {
	return sess.Conversation.TruncateToFit(s.maxHistory)
}

// Save records conv on the session and persists it
func (s *Service) Save(ctx context.Context, sess *Session, conv agent.Conversation) error {
	sess.Record(conv)
	if err := s.repo.Update(ctx, sess); err != nil {
		return errors.Wrapf(err, "save session %s", sess.ID)
	}
	return nil
}

// Get returns a stored session
func (s *Service) Get(ctx context.Context, id string) (*Session, error) {
	return s.repo.Get(ctx, id)
}

// List returns the most recently updated sessions
func (s *Service) List(ctx context.Context, limit int) ([]*Session, error) {
	return s.repo.List(ctx, limit)
}

// Delete removes a session
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}
