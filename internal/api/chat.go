package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"dcaadvisor/internal/services/advisor"
	"dcaadvisor/internal/tools"
	"dcaadvisor/pkg/errors"
	"dcaadvisor/pkg/logger"
)

const maxRequestBody = 64 << 10

// Advisor is the application service behind the chat endpoints
type Advisor interface {
	Ask(ctx context.Context, req advisor.AskRequest) (*advisor.AskResponse, error)
	ListTools() []tools.Schema
}

// ChatHandler serves the JSON chat and tool listing endpoints
type ChatHandler struct {
	advisor Advisor
	log     *logger.Logger
}

// NewChatHandler creates the handler
func NewChatHandler(a Advisor) *ChatHandler {
	return &ChatHandler{
		advisor: a,
		log:     logger.Get().With("component", "chat_api"),
	}
}

// ErrorResponse is the body of every failed request. A failed turn also
// carries the conversation id and the user-facing message.
type ErrorResponse struct {
	Error          string `json:"error"`
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type toolsResponse struct {
	Tools []toolInfo `json:"tools"`
}

type toolInfo struct {
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	Category       string         `json:"category,omitempty"`
	HasSideEffects bool           `json:"has_side_effects"`
	Parameters     map[string]any `json:"parameters"`
}

// HandleTools lists the tools available to the advisor
func (h *ChatHandler) HandleTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, errors.Wrap(errors.ErrInvalidInput, "method not allowed"), nil, http.StatusMethodNotAllowed)
		return
	}

	schemas := h.advisor.ListTools()
	out := toolsResponse{Tools: make([]toolInfo, 0, len(schemas))}
	for _, s := range schemas {
		out.Tools = append(out.Tools, toolInfo{
			Name:           s.Name,
			Description:    s.Description,
			Category:       s.Category,
			HasSideEffects: s.HasSideEffects,
			Parameters:     s.JSONSchema(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleChat runs one advisor turn
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, errors.Wrap(errors.ErrInvalidInput, "method not allowed"), nil, http.StatusMethodNotAllowed)
		return
	}

	var req advisor.AskRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeError(w, errors.Wrapf(errors.ErrInvalidInput, "decode request: %v", err), nil, 0)
		return
	}

	resp, err := h.advisor.Ask(r.Context(), req)
	if err != nil {
		h.log.Warnw("Chat request failed", "conversation_id", req.ConversationID, "error", err)
		writeError(w, err, resp, 0)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// statusFor maps an error chain onto an HTTP status
func statusFor(err error) int {
	switch errors.Code(err) {
	case errors.CodeInvalidInput:
		return http.StatusBadRequest
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeRateLimited:
		return http.StatusTooManyRequests
	case errors.CodeProviderTimeout, errors.CodeTimeout:
		return http.StatusGatewayTimeout
	case errors.CodeUnreachable, errors.CodeMalformedResponse, errors.CodeUnavailable, errors.CodeExternal:
		return http.StatusBadGateway
	case errors.CodeMaxIterations, errors.CodeNoProgress:
		return http.StatusUnprocessableEntity
	case errors.CodeCanceled:
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(err error, resp *advisor.AskResponse) ErrorResponse {
	body := ErrorResponse{Error: errors.Code(err), Message: err.Error()}
	if resp != nil {
		body.ConversationID = resp.ConversationID
		if resp.Message != "" {
			body.Message = resp.Message
		}
	}
	return body
}

// writeError writes err; code 0 derives the status from err
func writeError(w http.ResponseWriter, err error, resp *advisor.AskResponse, code int) {
	if code == 0 {
		code = statusFor(err)
	}
	writeJSON(w, code, errorBody(err, resp))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
