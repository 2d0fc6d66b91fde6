package agent

import (
	"dcaadvisor/internal/tools"
	"dcaadvisor/pkg/templates"
)

// PromptData fills the advisor system prompt
type PromptData struct {
	AssetCount    int
	QuoteCurrency string
}

// DefaultPromptData matches the default calculator settings
func DefaultPromptData() PromptData {
	return PromptData{AssetCount: 10, QuoteCurrency: "USDT"}
}

// RenderSystemPrompt renders the advisor persona
func RenderSystemPrompt(data PromptData) (string, error) {
	return templates.Get().Render(templates.AdvisorSystemPrompt, data)
}

// RenderToolSection renders the tool descriptions and call format used by
// providers without native tool calling
func RenderToolSection(schemas []tools.Schema) (string, error) {
	return templates.Get().Render(templates.ToolProtocolPrompt, struct {
		Tools []tools.Schema
	}{Tools: schemas})
}
