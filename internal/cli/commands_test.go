package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dcaadvisor/internal/agent"
	"dcaadvisor/internal/events"
	"dcaadvisor/internal/services/advisor"
	"dcaadvisor/internal/tools"
)

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "ask", "tools", "events", "version"})

	ask, _, err := root.Find([]string{"ask"})
	require.NoError(t, err)
	assert.NotNil(t, ask.Flags().Lookup("model"))
	assert.NotNil(t, ask.Flags().Lookup("session"))
}

func TestVersionCmd(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "dcaadvisor")
}

func TestPrintAnswer(t *testing.T) {
	var out bytes.Buffer
	printAnswer(&out, &advisor.AskResponse{
		Message:        "Split $1000 across 8 assets.",
		ConversationID: "sess-1",
		Model:          "llama3.1",
		Iterations:     2,
		Trace: agent.Trace{Steps: []agent.Step{{
			Kind:   agent.StepToolResult,
			Result: &tools.Result{ToolName: "dca_calculator", Status: tools.StatusSuccess, Duration: time.Millisecond},
		}}},
	}, false)

	s := out.String()
	assert.Contains(t, s, "Split $1000 across 8 assets.")
	assert.Contains(t, s, "dca_calculator success")
	assert.Contains(t, s, "2 iterations")
	assert.Contains(t, s, "sess-1")
}

func TestPrintAnswer_SingleIteration(t *testing.T) {
	var out bytes.Buffer
	printAnswer(&out, &advisor.AskResponse{
		Message:        "BTC trades at $97,500.",
		ConversationID: "sess-2",
		Model:          "gpt-4o-mini",
		Iterations:     1,
	}, true)

	s := out.String()
	assert.Contains(t, s, "· 1 iteration\n")
	assert.NotContains(t, s, "1 iterations")
	assert.Contains(t, s, `"run_id"`)
}

func TestPrintTools(t *testing.T) {
	var out bytes.Buffer
	printTools(&out, []tools.Schema{{
		Name:        "price_lookup",
		Description: "Current prices",
		Params: []tools.Param{
			{Name: "symbols", Type: tools.TypeArray, Required: true},
			{Name: "include_change", Type: tools.TypeBoolean},
		},
	}})
	assert.Contains(t, out.String(), "price_lookup")
	assert.Contains(t, out.String(), "symbols*,include_change")
}

func TestFormatTurn(t *testing.T) {
	line := formatTurn(events.TurnCompleted{
		Timestamp:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		RunID:      "run-1",
		SessionID:  "sess-1",
		Provider:   "ollama",
		Model:      "llama3.1",
		Status:     events.StatusFailed,
		Reason:     "NoProgress",
		Iterations: 3,
		ToolCalls:  []events.ToolCallInfo{{Tool: "price_lookup"}},
		DurationMs: 420,
	})
	assert.Contains(t, line, "03:04:05")
	assert.Contains(t, line, "failed:NoProgress")
	assert.Contains(t, line, "model=ollama/llama3.1")
	assert.Contains(t, line, "tools=1")
}
