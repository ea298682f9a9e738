package factory

import (
	"fmt"

	"ai-citation-be/pkg/llm"
	"ai-citation-be/pkg/llm/openaicompat"
)

// NewLLMProvider builds a provider for one of the supported backends. Both the
// summarize and citation models speak the OpenAI chat-completions format.
func NewLLMProvider(baseURL, apiKey, modelName string) (llm.LLMProvider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("llm base URL is required")
	}
	return openaicompat.New(baseURL, apiKey, modelName), nil
}
