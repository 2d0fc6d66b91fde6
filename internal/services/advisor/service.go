package advisor

import (
	"context"
	"strings"

	"dcaadvisor/internal/agent"
	"dcaadvisor/internal/domain/session"
	"dcaadvisor/internal/events"
	"dcaadvisor/internal/tools"
	"dcaadvisor/pkg/errors"
	"dcaadvisor/pkg/logger"
)

// AskRequest is one user message addressed to the advisor
type AskRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
	Model          string `json:"model,omitempty"`
}

// AskResponse is the advisor reply. On a failed turn Message holds the
// user-facing failure text and Trace the partial trace.
type AskResponse struct {
	Message        string      `json:"message"`
	ConversationID string      `json:"conversation_id"`
	Model          string      `json:"model"`
	Iterations     int         `json:"iterations"`
	Trace          agent.Trace `json:"trace"`
}

// Service runs advisor turns inside persistent sessions
type Service struct {
	sessions  *session.Service
	providers ProviderSource
	tools     agent.ToolExecutor
	cfg       agent.Config
	observers []agent.Observer
	log       *logger.Logger
}

// NewService creates the advisor service
func NewService(sessions *session.Service, providers ProviderSource, executor agent.ToolExecutor, cfg agent.Config, observers ...agent.Observer) *Service {
	return &Service{
		sessions:  sessions,
		providers: providers,
		tools:     executor,
		cfg:       cfg,
		observers: observers,
		log:       logger.Get().With("component", "advisor_service"),
	}
}

// Ask runs one turn. The conversation is saved only when the turn reaches Done.
func (s *Service) Ask(ctx context.Context, req AskRequest) (*AskResponse, error) {
	if strings.TrimSpace(req.Message) == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "message is required")
	}

	sess, err := s.sessions.Open(ctx, req.ConversationID, req.Model)
	if err != nil {
		return nil, err
	}

	provider, model, err := s.providers.Provider(ctx, sess.Model)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve model %q", sess.Model)
	}

	loop, err := agent.New(provider, s.tools, s.cfg, agent.WithObservers(s.observers...))
	if err != nil {
		return nil, err
	}

	ctx = events.WithTurnContext(ctx, events.TurnContext{SessionID: sess.ID, Model: model})
	log := s.log.With("session_id", sess.ID, "provider", provider.Name(), "model", model)

	res, err := loop.RunTurn(ctx, s.sessions.History(sess), req.Message)
	resp := &AskResponse{ConversationID: sess.ID, Model: model}
	if res != nil {
		resp.Message = res.FinalText
		resp.Iterations = res.Iterations
		resp.Trace = res.Trace
	}
	if err != nil {
		var loopErr *agent.LoopError
		if errors.As(err, &loopErr) {
			resp.Message = loopErr.UserMessage()
		}
		log.Warnw("Turn failed", "error", err)
		return resp, err
	}

	sess.Model = model
	if err := s.sessions.Save(ctx, sess, res.Conversation); err != nil {
		return resp, err
	}

	log.Infow("Turn completed", "iterations", res.Iterations, "tool_results", len(res.Trace.ToolResults()), "duration", res.Duration)
	return resp, nil
}

// ListTools returns the tools advertised to every provider
func (s *Service) ListTools() []tools.Schema {
	return s.tools.Schemas()
}

// Session returns a stored session
func (s *Service) Session(ctx context.Context, id string) (*session.Session, error) {
	return s.sessions.Get(ctx, id)
}
