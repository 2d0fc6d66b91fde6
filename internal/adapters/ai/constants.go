package ai

// ProviderName represents an AI provider identifier
type ProviderName string

// Provider name constants
const (
	ProviderNameOllama   ProviderName = "ollama"
	ProviderNameOpenAI   ProviderName = "openai"
	ProviderNameGemini   ProviderName = "gemini"
	ProviderNameDeepSeek ProviderName = "deepseek"
	ProviderNameClaude   ProviderName = "claude"
)

// String returns the string representation of the provider name
func (p ProviderName) String() string {
	return string(p)
}

// IsValid checks if the provider name is supported
func (p ProviderName) IsValid() bool {
	switch p {
	case ProviderNameOllama, ProviderNameOpenAI, ProviderNameGemini, ProviderNameDeepSeek, ProviderNameClaude:
		return true
	default:
		return false
	}
}

// AllProviderNames returns all supported provider names
func AllProviderNames() []ProviderName {
	return []ProviderName{
		ProviderNameOllama,
		ProviderNameOpenAI,
		ProviderNameGemini,
		ProviderNameDeepSeek,
		ProviderNameClaude,
	}
}

// Model name constants
const (
	ModelLlama31      = "llama3.1"
	ModelLlama32      = "llama3.2"
	ModelQwen25       = "qwen2.5"
	ModelGPT4oMini    = "gpt-4o-mini"
	ModelGPT4o        = "gpt-4o"
	ModelGemini25     = "gemini-2.5-flash"
	ModelGemini25Pro  = "gemini-2.5-pro"
	ModelDeepSeekChat = "deepseek-chat"
	ModelClaudeSonnet = "claude-sonnet-4-5"
	ModelClaudeHaiku  = "claude-haiku-4-5"
)

const (
	deepseekBaseURL  = "https://api.deepseek.com/v1"
	defaultMaxTokens = 4096
)
