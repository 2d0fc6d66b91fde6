package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcaadvisor/internal/agent"
	"dcaadvisor/internal/api/health"
	"dcaadvisor/internal/services/advisor"
	"dcaadvisor/internal/tools"
	"dcaadvisor/pkg/errors"
	"dcaadvisor/pkg/logger"
)

type fakeAdvisor struct {
	mu       sync.Mutex
	requests []advisor.AskRequest
	resp     *advisor.AskResponse
	err      error
}

func (f *fakeAdvisor) Ask(ctx context.Context, req advisor.AskRequest) (*advisor.AskResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return f.resp, f.err
}

func (f *fakeAdvisor) ListTools() []tools.Schema {
	return []tools.Schema{{
		Name:        "price_lookup",
		Description: "Current price of an asset",
		Category:    "market",
		Params:      []tools.Param{{Name: "symbol", Type: tools.TypeString, Required: true}},
	}}
}

func answered() *advisor.AskResponse {
	return &advisor.AskResponse{
		Message:        "BTC trades at $97,500.",
		ConversationID: "sess-1",
		Model:          "llama3.1",
		Iterations:     2,
		Trace: agent.Trace{
			RunID: "run-1",
			Steps: []agent.Step{
				{Kind: agent.StepToolRequest},
				{Kind: agent.StepToolResult, Result: &tools.Result{
					CallID: "c1", ToolName: "price_lookup", Status: tools.StatusSuccess,
					Payload: map[string]any{"price": "97500"}, Duration: time.Millisecond,
				}},
				{Kind: agent.StepAnswer, Text: "BTC trades at $97,500."},
			},
		},
	}
}

func newTestServer(t *testing.T, a Advisor) *httptest.Server {
	t.Helper()
	h := health.New(logger.Get(), "dcaadvisor", "test")
	srv := httptest.NewServer(NewRouter(ServerConfig{ServiceName: "dcaadvisor", Version: "test"}, h, a))
	t.Cleanup(srv.Close)
	return srv
}

func TestHandleTools(t *testing.T) {
	srv := newTestServer(t, &fakeAdvisor{})

	resp, err := http.Get(srv.URL + "/api/tools")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body toolsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Tools, 1)
	assert.Equal(t, "price_lookup", body.Tools[0].Name)
	assert.Equal(t, "object", body.Tools[0].Parameters["type"])
	assert.Equal(t, []any{"symbol"}, body.Tools[0].Parameters["required"])
}

func TestHandleChat(t *testing.T) {
	fake := &fakeAdvisor{resp: answered()}
	srv := newTestServer(t, fake)

	resp, err := http.Post(srv.URL+"/api/chat", "application/json",
		strings.NewReader(`{"message":"BTC price?","conversation_id":"sess-1","model":"ollama/llama3.1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "BTC trades at $97,500.", body["message"])
	assert.Equal(t, "sess-1", body["conversation_id"])
	assert.Contains(t, body, "trace")

	require.Len(t, fake.requests, 1)
	assert.Equal(t, advisor.AskRequest{Message: "BTC price?", ConversationID: "sess-1", Model: "ollama/llama3.1"}, fake.requests[0])
}

func TestHandleChat_Errors(t *testing.T) {
	tests := []struct {
		name    string
		method  string
		body    string
		resp    *advisor.AskResponse
		err     error
		status  int
		code    string
		message string
	}{
		{
			name:   "method",
			method: http.MethodGet,
			status: http.StatusMethodNotAllowed,
			code:   errors.CodeInvalidInput,
		},
		{
			name:   "bad json",
			method: http.MethodPost,
			body:   `{"message":`,
			status: http.StatusBadRequest,
			code:   errors.CodeInvalidInput,
		},
		{
			name:   "empty message",
			method: http.MethodPost,
			body:   `{"message":""}`,
			err:    errors.Wrap(errors.ErrInvalidInput, "message is required"),
			status: http.StatusBadRequest,
			code:   errors.CodeInvalidInput,
		},
		{
			name:    "iteration cap",
			method:  http.MethodPost,
			body:    `{"message":"loop"}`,
			resp:    &advisor.AskResponse{ConversationID: "sess-9", Message: "The request took too long to process. Please try a simpler query."},
			err:     &agent.LoopError{Kind: agent.LoopMaxIterations, Iterations: 8},
			status:  http.StatusUnprocessableEntity,
			code:    errors.CodeMaxIterations,
			message: "The request took too long to process. Please try a simpler query.",
		},
		{
			name:   "provider timeout",
			method: http.MethodPost,
			body:   `{"message":"hi"}`,
			resp:   &advisor.AskResponse{ConversationID: "sess-9"},
			err: &agent.LoopError{
				Kind: agent.LoopProviderFailed,
				Err:  agent.NewProviderError(agent.ProviderTimeout, "ollama", errors.ErrProviderTimeout),
			},
			status: http.StatusGatewayTimeout,
			code:   errors.CodeProviderTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &fakeAdvisor{resp: tt.resp, err: tt.err})

			req, err := http.NewRequest(tt.method, srv.URL+"/api/chat", strings.NewReader(tt.body))
			require.NoError(t, err)
			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.status, resp.StatusCode)
			var body ErrorResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.code, body.Error)
			if tt.resp != nil {
				assert.Equal(t, tt.resp.ConversationID, body.ConversationID)
			}
			if tt.message != "" {
				assert.Equal(t, tt.message, body.Message)
			}
		})
	}
}

func TestRoutes(t *testing.T) {
	srv := newTestServer(t, &fakeAdvisor{})

	for path, want := range map[string]int{
		"/":        http.StatusOK,
		"/live":    http.StatusOK,
		"/ready":   http.StatusOK,
		"/health":  http.StatusOK,
		"/metrics": http.StatusOK,
		"/nope":    http.StatusNotFound,
	} {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err, path)
		resp.Body.Close()
		assert.Equal(t, want, resp.StatusCode, path)
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func TestWebSocket_AnswerFrames(t *testing.T) {
	srv := newTestServer(t, &fakeAdvisor{resp: answered()})
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(advisor.AskRequest{Message: "BTC price?"}))

	var tool Frame
	require.NoError(t, conn.ReadJSON(&tool))
	assert.Equal(t, FrameTool, tool.Type)
	assert.Equal(t, "price_lookup", tool.Tool)
	assert.Equal(t, "success", tool.Status)

	var answer Frame
	require.NoError(t, conn.ReadJSON(&answer))
	assert.Equal(t, FrameAnswer, answer.Type)
	assert.Equal(t, "BTC trades at $97,500.", answer.Message)
	assert.Equal(t, "sess-1", answer.ConversationID)
}

func TestWebSocket_ErrorFrame(t *testing.T) {
	srv := newTestServer(t, &fakeAdvisor{err: errors.Wrap(errors.ErrInvalidInput, "message is required")})
	conn := dial(t, srv)

	require.NoError(t, conn.WriteJSON(advisor.AskRequest{}))

	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, FrameError, frame.Type)
	assert.Equal(t, errors.CodeInvalidInput, frame.Error)
}

func TestWebSocket_RejectsForeignOrigin(t *testing.T) {
	h := health.New(logger.Get(), "dcaadvisor", "test")
	srv := httptest.NewServer(NewRouter(ServerConfig{AllowedOrigins: []string{"https://app.example.com"}}, h, &fakeAdvisor{}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/chat/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

type slowAdvisor struct {
	fakeAdvisor
	delay time.Duration
}

func (s *slowAdvisor) Ask(ctx context.Context, req advisor.AskRequest) (*advisor.AskResponse, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.fakeAdvisor.Ask(ctx, req)
}

func TestWebSocket_SurvivesTurnsLongerThanPongTimeout(t *testing.T) {
	slow := &slowAdvisor{fakeAdvisor: fakeAdvisor{resp: &advisor.AskResponse{Message: "done", ConversationID: "sess-9"}}, delay: 300 * time.Millisecond}
	h := health.New(logger.Get(), "dcaadvisor", "test")
	srv := httptest.NewServer(NewRouter(ServerConfig{
		WSPingInterval: 20 * time.Millisecond,
		WSPongTimeout:  100 * time.Millisecond,
	}, h, slow))
	defer srv.Close()
	conn := dial(t, srv)

	// the client answers pings while it waits inside ReadJSON
	for i := 0; i < 2; i++ {
		require.NoError(t, conn.WriteJSON(advisor.AskRequest{Message: "plan my DCA", ConversationID: "sess-9"}))

		var frame Frame
		require.NoError(t, conn.ReadJSON(&frame), "turn %d", i)
		assert.Equal(t, FrameAnswer, frame.Type)
		assert.Equal(t, "done", frame.Message)
	}

	slow.mu.Lock()
	defer slow.mu.Unlock()
	assert.Len(t, slow.requests, 2)
}

func TestWebSocket_RejectsWhenQueueIsFull(t *testing.T) {
	slow := &slowAdvisor{fakeAdvisor: fakeAdvisor{resp: &advisor.AskResponse{Message: "done"}}, delay: 500 * time.Millisecond}
	srv := newTestServer(t, slow)
	conn := dial(t, srv)

	// one request is in flight and wsQueueSize more are queued
	for i := 0; i < wsQueueSize+2; i++ {
		require.NoError(t, conn.WriteJSON(advisor.AskRequest{Message: "hi", ConversationID: "sess-busy"}))
	}

	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, FrameError, frame.Type)
	assert.Equal(t, errors.CodeRateLimited, frame.Error)
	assert.Equal(t, "sess-busy", frame.ConversationID)
}
