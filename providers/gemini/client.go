// Package gemini implements providers.TextProvider against the Google Gemini
// REST API, including SSE streaming and Google Search grounding.
package gemini

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"twils-assistant/config"
	"twils-assistant/providers"
)

const maxRetries = 3

// Client calls the Gemini generateContent endpoints.
type Client struct {
	apiKey          string
	baseURL         string
	model           string
	maxOutputTokens int
	httpClient      *http.Client
	logger          *zap.Logger
}

// NewClient creates a Gemini client from service configuration.
func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	timeout := time.Duration(cfg.GeminiTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		apiKey:          cfg.GeminiAPIKey,
		baseURL:         strings.TrimRight(cfg.GeminiBaseURL, "/"),
		model:           cfg.GeminiModel,
		maxOutputTokens: cfg.GeminiMaxOutputTokens,
		httpClient:      &http.Client{Timeout: timeout},
		logger:          logger,
	}
}

// Generate sends a single-prompt request and returns the concatenated text
// of the first candidate.
func (c *Client) Generate(ctx context.Context, prompt string, opts providers.GenerateOptions) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("gemini: API key not configured")
	}

	reqBody := request{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: prompt}}},
		},
		GenerationConfig: generationConfig{
			Temperature:     1.0,
			MaxOutputTokens: c.resolveMaxTokens(opts),
		},
		Tools: c.buildTools(opts),
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(1<<uint(attempt-1)) * time.Second):
			}
		}

		body, err := c.post(ctx, url, reqBody)
		if err != nil {
			if isRetryable(err) {
				lastErr = err
				continue
			}
			return "", err
		}

		var resp response
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("gemini: parsing response: %w", err)
		}
		if resp.Error != nil {
			return "", fmt.Errorf("gemini: API error: %s", resp.Error.Message)
		}
		if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
			return "", fmt.Errorf("gemini: no completion returned")
		}

		var out strings.Builder
		for _, p := range resp.Candidates[0].Content.Parts {
			out.WriteString(p.Text)
		}
		return strings.TrimSpace(out.String()), nil
	}

	return "", fmt.Errorf("gemini: max retries exceeded: %w", lastErr)
}

// StreamGenerate sends a conversation to the SSE streaming endpoint. Text
// parts are delivered to onChunk in arrival order; the call returns when the
// stream ends. A message with role "system" becomes the system instruction.
func (c *Client) StreamGenerate(ctx context.Context, messages []providers.Message, opts providers.GenerateOptions, onChunk func(chunk string)) error {
	if c.apiKey == "" {
		return fmt.Errorf("gemini: API key not configured")
	}

	var system *content
	var contents []content
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = &content{Parts: []part{{Text: m.Content}}}
		case "assistant":
			contents = append(contents, content{Role: "model", Parts: []part{{Text: m.Content}}})
		default:
			contents = append(contents, content{Role: "user", Parts: []part{{Text: m.Content}}})
		}
	}

	reqBody := request{
		Contents:          contents,
		SystemInstruction: system,
		GenerationConfig: generationConfig{
			Temperature:     1.0,
			MaxOutputTokens: c.resolveMaxTokens(opts),
		},
		Tools: c.buildTools(opts),
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("gemini: marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", c.baseURL, c.model, c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("gemini: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("gemini: API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}

		var chunk response
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			c.logger.Debug("Skipping unparsable stream event", zap.Error(err))
			continue
		}
		if chunk.Error != nil {
			return fmt.Errorf("gemini: API error: %s", chunk.Error.Message)
		}
		if len(chunk.Candidates) == 0 {
			continue
		}
		for _, p := range chunk.Candidates[0].Content.Parts {
			if p.Text == "" {
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			onChunk(p.Text)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("gemini: stream error: %w", err)
	}
	return nil
}

func (c *Client) resolveMaxTokens(opts providers.GenerateOptions) int {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	return c.maxOutputTokens
}

func (c *Client) buildTools(opts providers.GenerateOptions) []tool {
	if !opts.Search {
		return nil
	}
	return []tool{{GoogleSearch: &googleSearch{}}}
}

// post performs one non-streaming call and returns the raw body.
func (c *Client) post(ctx context.Context, url string, reqBody request) ([]byte, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("gemini: marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("gemini: creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, retryableError{fmt.Errorf("gemini: request failed: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retryableError{fmt.Errorf("gemini: reading response: %w", err)}
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, retryableError{fmt.Errorf("gemini: rate limit exceeded (429)")}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini: API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

type retryableError struct{ error }

func isRetryable(err error) bool {
	_, ok := err.(retryableError)
	return ok
}
