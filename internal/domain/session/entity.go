package session

import (
	"time"

	"github.com/google/uuid"

	"dcaadvisor/internal/agent"
)

// Session is one advisor conversation with its history
type Session struct {
	ID           string             `json:"id"`
	Model        string             `json:"model"`
	PortfolioID  string             `json:"portfolio_id,omitempty"`
	Conversation agent.Conversation `json:"conversation"`
	Turns        int                `json:"turns"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// New starts an empty session; an empty id gets a random one
func New(id, model string) *Session {
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Record stores the conversation produced by a turn
func (s *Session) Record(conv agent.Conversation) {
	s.Conversation = conv.Clone()
	s.Turns++
	s.UpdatedAt = time.Now().UTC()
}
