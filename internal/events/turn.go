package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dcaadvisor/internal/agent"
	"dcaadvisor/pkg/errors"
)

// Event type names carried in TurnCompleted.Type
const (
	TypeTurnCompleted = "advisor.turn_completed"
	eventVersion      = "1.0"
)

// TurnCompleted describes one finished agent turn
type TurnCompleted struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Version    string         `json:"version"`
	Timestamp  time.Time      `json:"timestamp"`
	SessionID  string         `json:"session_id"`
	RunID      string         `json:"run_id"`
	Provider   string         `json:"provider"`
	Model      string         `json:"model"`
	Status     string         `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	FinalText  string         `json:"final_text,omitempty"`
	Iterations int            `json:"iterations"`
	ToolCalls  []ToolCallInfo `json:"tool_calls,omitempty"`
	DurationMs int64          `json:"duration_ms"`
}

// ToolCallInfo summarizes one executed tool call
type ToolCallInfo struct {
	Tool       string `json:"tool"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// Turn statuses
const (
	StatusDone   = "done"
	StatusFailed = "failed"
)

// NewTurnCompleted builds the event from a turn outcome. res may be nil when
// the turn failed before it started.
func NewTurnCompleted(tc TurnContext, res *agent.TurnResult, err error) TurnCompleted {
	ev := TurnCompleted{
		ID:        uuid.NewString(),
		Type:      TypeTurnCompleted,
		Version:   eventVersion,
		Timestamp: time.Now().UTC(),
		SessionID: tc.SessionID,
		Model:     tc.Model,
		Status:    StatusDone,
	}

	if res != nil {
		ev.RunID = res.RunID
		ev.Provider = res.Trace.Provider
		ev.FinalText = res.FinalText
		ev.Iterations = res.Iterations
		ev.DurationMs = res.Duration.Milliseconds()
		for _, r := range res.Trace.ToolResults() {
			info := ToolCallInfo{
				Tool:       r.ToolName,
				Status:     string(r.Status),
				DurationMs: r.Duration.Milliseconds(),
			}
			if r.Failure != nil {
				info.Reason = r.Failure.Reason
			}
			ev.ToolCalls = append(ev.ToolCalls, info)
		}
	}

	if err != nil {
		ev.Status = StatusFailed
		ev.Reason = Reason(err)
	}
	return ev
}

// Reason is the stable failure code of a turn error
func Reason(err error) string {
	var loopErr *agent.LoopError
	if errors.As(err, &loopErr) {
		return loopErr.Reason()
	}
	return errors.Code(err)
}

type turnContextKey struct{}

// TurnContext carries request data that the agent loop does not know about
type TurnContext struct {
	SessionID string
	Model     string
}

// WithTurnContext attaches tc to ctx for observers of the turn
func WithTurnContext(ctx context.Context, tc TurnContext) context.Context {
	return context.WithValue(ctx, turnContextKey{}, tc)
}

// TurnContextFrom returns the TurnContext attached to ctx, if any
func TurnContextFrom(ctx context.Context) TurnContext {
	tc, _ := ctx.Value(turnContextKey{}).(TurnContext)
	return tc
}
