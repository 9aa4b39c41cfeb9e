// DeepSeek and DeepInfra providers.
//
// Information Hiding:
// - Both hosts speak the OpenAI chat completions protocol
// - Base URLs and token parameter differences hidden here

package llm

const (
	deepseekBaseURL  = "https://api.deepseek.com/v1"
	deepinfraBaseURL = "https://api.deepinfra.com/v1/openai"
)

// NewDeepSeekProvider creates a new DeepSeek provider.
func NewDeepSeekProvider(apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	p := NewOpenAICompatibleProvider("deepseek", deepseekBaseURL, apiKey, model, maxTokens, temperature)
	p.completionTokens = true
	return p
}

// NewDeepInfraProvider creates a provider for models hosted on DeepInfra,
// such as Meta Llama 3.
func NewDeepInfraProvider(apiKey, model string, maxTokens uint32, temperature float32) *OpenAIProvider {
	return NewOpenAICompatibleProvider("deepinfra", deepinfraBaseURL, apiKey, model, maxTokens, temperature)
}
