package agent_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcaadvisor/internal/agent"
	"dcaadvisor/internal/testsupport"
	"dcaadvisor/internal/tools"
	"dcaadvisor/pkg/errors"
)

type fixture struct {
	registry *tools.Registry
	executed atomic.Int32
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{registry: tools.NewRegistry()}

	f.registry.MustRegister(
		tools.New(tools.Schema{
			Name:        "price_lookup",
			Description: "Current price of an asset",
			Params:      []tools.Param{{Name: "symbol", Type: tools.TypeString, Required: true}},
		}, func(ctx context.Context, args tools.Args) (any, error) {
			f.executed.Add(1)
			switch args.String("symbol") {
			case "BTC":
				return map[string]any{"symbol": "BTC", "price": "97500"}, nil
			case "DOWN":
				return nil, errors.Wrap(errors.ErrUnavailable, "exchange unreachable")
			case "SLOW":
				select {
				case <-time.After(50 * time.Millisecond):
				case <-ctx.Done():
					return nil, ctx.Err()
				}
				return map[string]any{"symbol": "SLOW"}, nil
			}
			return map[string]any{"symbol": args.String("symbol"), "price": "1"}, nil
		}),
	)
	return f
}

func fastConfig() agent.Config {
	cfg := agent.DefaultConfig()
	cfg.ProviderBackoff = time.Millisecond
	cfg.SystemPrompt = "You are a test advisor."
	return cfg
}

func lookup(id, symbol string) tools.Call {
	return tools.Call{ID: id, Name: "price_lookup", Arguments: map[string]any{"symbol": symbol}}
}

func newLoop(t *testing.T, p agent.Provider, f *fixture, cfg agent.Config, opts ...agent.Option) *agent.Loop {
	t.Helper()
	loop, err := agent.New(p, f.registry, cfg, opts...)
	require.NoError(t, err)
	return loop
}

func roles(conv agent.Conversation) []agent.Role {
	out := make([]agent.Role, len(conv.Messages))
	for i, m := range conv.Messages {
		out[i] = m.Role
	}
	return out
}

func TestRunTurn_ToolThenAnswer(t *testing.T) {
	f := newFixture(t)
	provider := testsupport.NewScriptedProvider(
		testsupport.Calls(lookup("c1", "BTC")),
		testsupport.Answer("BTC trades at 97,500 USDT."),
	)
	loop := newLoop(t, provider, f, fastConfig())

	res, err := loop.RunTurn(context.Background(), agent.Conversation{}, "What is BTC at?")
	require.NoError(t, err)

	assert.Equal(t, "BTC trades at 97,500 USDT.", res.FinalText)
	assert.Equal(t, agent.StateDone, res.State)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, 2, provider.CallCount())
	assert.Equal(t, 2, res.Trace.ProviderCalls())

	results := res.Trace.ToolResults()
	require.Len(t, results, 1)
	assert.True(t, results[0].OK())
	assert.Equal(t, "c1", results[0].CallID)

	assert.Equal(t, []agent.Role{
		agent.RoleSystem, agent.RoleUser, agent.RoleAssistant, agent.RoleTool, agent.RoleAssistant,
	}, roles(res.Conversation))
	assert.Equal(t, "c1", res.Conversation.Messages[3].ToolCallID)

	var path []agent.State
	for _, tr := range res.Trace.Transitions {
		path = append(path, tr.To)
	}
	assert.Equal(t, []agent.State{
		agent.StateQueryingProvider, agent.StateExecutingTools, agent.StateQueryingProvider, agent.StateDone,
	}, path)
}

func TestRunTurn_ToolFailureContinues(t *testing.T) {
	f := newFixture(t)
	provider := testsupport.NewScriptedProvider(
		testsupport.Calls(lookup("c1", "DOWN")),
		testsupport.Answer("The exchange is unavailable right now."),
	)
	loop := newLoop(t, provider, f, fastConfig())

	res, err := loop.RunTurn(context.Background(), agent.Conversation{}, "Price of DOWN?")
	require.NoError(t, err)

	results := res.Trace.ToolResults()
	require.Len(t, results, 1)
	assert.Equal(t, tools.StatusFailure, results[0].Status)
	assert.Equal(t, tools.FailureExecution, results[0].Failure.Kind)
	assert.Equal(t, errors.CodeUnavailable, results[0].Failure.Reason)

	// the failure is fed back to the model as a tool message
	seen := provider.Seen()
	require.Len(t, seen, 2)
	last := seen[1].Messages[len(seen[1].Messages)-1]
	assert.Equal(t, agent.RoleTool, last.Role)
	assert.Contains(t, last.Content, "Unavailable")
}

func TestRunTurn_NoProgress(t *testing.T) {
	f := newFixture(t)
	provider := testsupport.NewScriptedProvider(
		testsupport.Calls(lookup("c1", "BTC")),
		testsupport.Calls(tools.Call{ID: "c2", Name: "price_lookup", Arguments: map[string]any{"symbol": "BTC"}}),
		testsupport.Answer("never reached"),
	)
	loop := newLoop(t, provider, f, fastConfig())

	res, err := loop.RunTurn(context.Background(), agent.Conversation{}, "BTC?")
	require.Error(t, err)

	var lerr *agent.LoopError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, agent.LoopNoProgress, lerr.Kind)
	assert.Equal(t, "price_lookup", lerr.Tool)
	assert.True(t, errors.Is(err, errors.ErrNoProgress))
	assert.NotEmpty(t, lerr.UserMessage())

	require.NotNil(t, res)
	assert.Equal(t, agent.StateFailed, res.State)
	assert.Equal(t, int32(1), f.executed.Load(), "repeated call must not run again")
	assert.Len(t, res.Trace.ToolResults(), 1)
}

func TestRunTurn_MaxIterations(t *testing.T) {
	f := newFixture(t)
	provider := testsupport.NewScriptedProvider(
		testsupport.Calls(lookup("c1", "A")),
		testsupport.Calls(lookup("c2", "B")),
		testsupport.Calls(lookup("c3", "C")),
		testsupport.Answer("too late"),
	)
	cfg := fastConfig()
	cfg.MaxIterations = 3
	loop := newLoop(t, provider, f, cfg)

	res, err := loop.RunTurn(context.Background(), agent.Conversation{}, "loop forever")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMaxIterationsExceeded))

	assert.Equal(t, 3, provider.CallCount())
	assert.Equal(t, 3, res.Iterations)
	assert.Len(t, res.Trace.ToolResults(), 3)
	assert.Equal(t, agent.StateFailed, res.State)
}

func TestRunTurn_ProviderRetry(t *testing.T) {
	f := newFixture(t)
	provider := testsupport.NewScriptedProvider(
		testsupport.Fail(errors.Wrap(errors.ErrUnavailable, "connection refused")),
		testsupport.Answer("Hello."),
	)
	loop := newLoop(t, provider, f, fastConfig())

	res, err := loop.RunTurn(context.Background(), agent.Conversation{}, "hi")
	require.NoError(t, err)

	assert.Equal(t, "Hello.", res.FinalText)
	assert.Equal(t, 1, res.Iterations)
	require.Len(t, res.Trace.Steps, 2)
	assert.Equal(t, agent.StepProviderError, res.Trace.Steps[0].Kind)
	assert.Equal(t, 2, res.Trace.Steps[1].Attempt)
}

func TestRunTurn_ProviderExhausted(t *testing.T) {
	f := newFixture(t)
	down := errors.Wrap(errors.ErrUnavailable, "connection refused")
	provider := testsupport.NewScriptedProvider(
		testsupport.Fail(down), testsupport.Fail(down), testsupport.Fail(down),
	)
	loop := newLoop(t, provider, f, fastConfig())

	res, err := loop.RunTurn(context.Background(), agent.Conversation{}, "hi")
	require.Error(t, err)

	var lerr *agent.LoopError
	require.True(t, errors.As(err, &lerr))
	assert.Equal(t, agent.LoopProviderFailed, lerr.Kind)
	assert.True(t, errors.Is(err, errors.ErrProviderUnreachable))
	assert.Equal(t, "The AI service is currently unavailable. Please try again.", lerr.UserMessage())
	assert.Equal(t, 3, provider.CallCount())
	assert.Equal(t, agent.StateFailed, res.State)
}

func TestRunTurn_MalformedCalls(t *testing.T) {
	f := newFixture(t)
	bad := testsupport.Calls(lookup("dup", "BTC"), lookup("dup", "ETH"))
	provider := testsupport.NewScriptedProvider(bad, bad, bad)
	loop := newLoop(t, provider, f, fastConfig())

	_, err := loop.RunTurn(context.Background(), agent.Conversation{}, "two prices")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrMalformedResponse))
	assert.Equal(t, int32(0), f.executed.Load())

	var lerr *agent.LoopError
	require.True(t, errors.As(err, &lerr))
	assert.Contains(t, lerr.UserMessage(), "could not understand")
}

func TestRunTurn_Canceled(t *testing.T) {
	f := newFixture(t)
	provider := testsupport.NewScriptedProvider(testsupport.Scripted{Block: true})
	loop := newLoop(t, provider, f, fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res, err := loop.RunTurn(ctx, agent.Conversation{}, "hi")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCanceled))
	assert.Equal(t, agent.StateFailed, res.State)
	assert.Equal(t, 1, provider.CallCount(), "a canceled turn is not retried")
}

func TestRunTurn_ConcurrentToolsKeepRequestOrder(t *testing.T) {
	f := newFixture(t)
	provider := testsupport.NewScriptedProvider(
		testsupport.Calls(lookup("slow", "SLOW"), lookup("fast", "BTC")),
		testsupport.Answer("done"),
	)
	loop := newLoop(t, provider, f, fastConfig())

	res, err := loop.RunTurn(context.Background(), agent.Conversation{}, "both")
	require.NoError(t, err)

	results := res.Trace.ToolResults()
	require.Len(t, results, 2)
	assert.Equal(t, "slow", results[0].CallID)
	assert.Equal(t, "fast", results[1].CallID)

	msgs := res.Conversation.Messages
	assert.Equal(t, "slow", msgs[len(msgs)-3].ToolCallID)
	assert.Equal(t, "fast", msgs[len(msgs)-2].ToolCallID)
}

func TestRunTurn_ToolTimeout(t *testing.T) {
	f := newFixture(t)
	provider := testsupport.NewScriptedProvider(
		testsupport.Calls(lookup("c1", "SLOW")),
		testsupport.Answer("gave up on SLOW"),
	)
	cfg := fastConfig()
	cfg.ToolTimeout = 5 * time.Millisecond
	loop := newLoop(t, provider, f, cfg)

	res, err := loop.RunTurn(context.Background(), agent.Conversation{}, "slow one")
	require.NoError(t, err)

	results := res.Trace.ToolResults()
	require.Len(t, results, 1)
	assert.Equal(t, errors.CodeTimeout, results[0].Failure.Reason)
}

func TestRunTurn_DoesNotMutateInput(t *testing.T) {
	f := newFixture(t)
	provider := testsupport.NewScriptedProvider(
		testsupport.Calls(lookup("c1", "BTC")),
		testsupport.Answer("ok"),
	)
	loop := newLoop(t, provider, f, fastConfig())

	conv := agent.NewConversation("custom system")
	conv.Append(agent.UserMessage("earlier"), agent.AssistantMessage("earlier answer"))

	res, err := loop.RunTurn(context.Background(), conv, "now")
	require.NoError(t, err)

	assert.Equal(t, 3, conv.Len())
	assert.Equal(t, 7, res.Conversation.Len())
	assert.Equal(t, "custom system", res.Conversation.Messages[0].Content)
}

func TestRunTurn_EmptyMessage(t *testing.T) {
	f := newFixture(t)
	loop := newLoop(t, testsupport.NewScriptedProvider(), f, fastConfig())

	_, err := loop.RunTurn(context.Background(), agent.Conversation{}, "   ")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestRunTurn_Observer(t *testing.T) {
	f := newFixture(t)
	provider := testsupport.NewScriptedProvider(testsupport.Answer("hi"))

	var got *agent.TurnResult
	var gotErr error
	loop := newLoop(t, provider, f, fastConfig(), agent.WithObservers(agent.ObserverFunc(
		func(ctx context.Context, res *agent.TurnResult, err error) {
			got, gotErr = res, err
		},
	)))

	res, err := loop.RunTurn(context.Background(), agent.Conversation{}, "hello")
	require.NoError(t, err)
	assert.Same(t, res, got)
	assert.NoError(t, gotErr)
}

func TestNew_TextToolProtocolPrompt(t *testing.T) {
	f := newFixture(t)

	native := newLoop(t, testsupport.NewScriptedProvider(), f, agent.DefaultConfig())
	assert.Contains(t, native.SystemPrompt(), "dca_calculator")
	assert.NotContains(t, native.SystemPrompt(), "### price_lookup")

	text := newLoop(t, testsupport.NewScriptedProvider().WithTextTools(), f, agent.DefaultConfig())
	assert.Contains(t, text.SystemPrompt(), "### price_lookup")
	assert.Contains(t, text.SystemPrompt(), "`symbol` (string) (required)")

	assert.Equal(t, []string{"price_lookup"}, []string{text.ListTools()[0].Name})
}
