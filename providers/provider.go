package providers

import "context"

// Message is one turn of conversation context passed to a streaming call.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateOptions tune a single generation request. Search asks the provider
// to augment the response with live web search results.
type GenerateOptions struct {
	Search    bool
	MaxTokens int
}

// TextProvider is the interface every generative text backend must implement.
type TextProvider interface {
	// Generate sends a single prompt and returns the full response text.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// StreamGenerate sends a conversation and delivers the response
	// incrementally. onChunk is invoked zero or more times in arrival order
	// before StreamGenerate returns.
	StreamGenerate(ctx context.Context, messages []Message, opts GenerateOptions, onChunk func(chunk string)) error
}
