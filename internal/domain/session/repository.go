package session

import (
	"context"
)

// Repository persists sessions. Get and Delete wrap errors.ErrNotFound for unknown ids.
type Repository interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, s *Session) error
	List(ctx context.Context, limit int) ([]*Session, error)
	Delete(ctx context.Context, id string) error
}
