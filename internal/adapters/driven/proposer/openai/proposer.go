// Package openai provides an Edit Proposer adapter using OpenAI API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pagecraft/pagecraft/internal/core/domain"
	"github.com/pagecraft/pagecraft/internal/core/ports/driven"
)

// Ensure Proposer implements the interfaces.
var (
	_ driven.EditProposer     = (*Proposer)(nil)
	_ driven.PromptStoreAware = (*Proposer)(nil)
)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the OpenAI proposer.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	// Can be changed for Azure OpenAI or compatible APIs.
	BaseURL string

	// Model is the model to use (default: gpt-4o-mini).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// Proposer obtains edit proposals from the OpenAI chat completions
// API. The unit it receives is already image-encoded; the raw
// response text is returned as-is for the pipeline to decode.
type Proposer struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	model       string
	promptStore driven.PromptStore
}

// chatCompletionRequest is the OpenAI /chat/completions request format.
type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []chatCompletionMsg `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature,omitempty"`
}

// chatCompletionMsg is the OpenAI chat message format.
type chatCompletionMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatCompletionResponse is the OpenAI /chat/completions response format.
type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// New creates a new OpenAI proposer.
func New(cfg Config) (*Proposer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Proposer{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// defaultSystemPrompt is the fallback prompt when no PromptStore is configured.
const defaultSystemPrompt = `You edit worksheet content for children. You receive one document unit as JSON and one edit instruction.

Respond with a single JSON object: {"patch": ..., "changes": [...]}.
The patch contains ONLY the fields that change. For a component, put changed fields under "properties". For a page, you may set "title" and "elements"; when you include "elements" it must list every element the page keeps, in order.

Images appear as markers, never as raw data:
- {{img:<id>|<description>|<width>x<height>}} is an existing image. Copy the marker verbatim to keep it.
- To request a brand-new image write {{new-img:<description>|<width>x<height>}} in the url field.
Never invent an {{img:...}} id and never write raw image data.

Each entry in "changes" is {"targetId": "...", "description": "..."} describing one modification in plain language.`

// defaultUserPrompt frames one edit request. Placeholders: the
// instruction, the context description, the encoded unit JSON.
const defaultUserPrompt = `Instruction: %s

%s

Document unit:
%s`

// Propose asks the model for a patch and returns its raw response text.
func (p *Proposer) Propose(ctx context.Context, req driven.ProposeRequest) (string, error) {
	systemPrompt := p.loadPrompt(driven.PromptEditSystem, defaultSystemPrompt)
	userTemplate := p.loadPrompt(driven.PromptEditUser, defaultUserPrompt)
	userPrompt := fmt.Sprintf(userTemplate, req.Instruction, describeContext(req.Context), req.EncodedUnit)

	reqBody := chatCompletionRequest{
		Model: p.model,
		Messages: []chatCompletionMsg{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: 0.3,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		p.baseURL+"/chat/completions",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("openai error: %s", chatResp.Error.Message)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("openai: %w", domain.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(body))
	}

	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("openai: no response choices returned")
	}

	return chatResp.Choices[0].Message.Content, nil
}

// describeContext renders the worksheet context as prompt lines.
// Optional fields that are unset are omitted entirely.
func describeContext(ec domain.EditContext) string {
	var b strings.Builder
	b.WriteString("Worksheet topic: " + ec.Topic + "\n")
	b.WriteString("Age group: " + ec.AgeGroup)
	if ec.Difficulty != "" {
		b.WriteString("\nDifficulty: " + ec.Difficulty)
	}
	if ec.Language != "" {
		b.WriteString("\nLanguage: " + ec.Language)
	}
	return b.String()
}

// loadPrompt loads a prompt from the store, falling back to the default if unavailable.
func (p *Proposer) loadPrompt(name, fallback string) string {
	if p.promptStore == nil {
		return fallback
	}
	prompt, err := p.promptStore.Load(name)
	if err != nil {
		return fallback
	}
	return prompt
}

// ModelName returns the name of the model being used.
func (p *Proposer) ModelName() string {
	return p.model
}

// SetPromptStore sets the prompt store for loading customisable prompts.
// If not set, the proposer uses hardcoded default prompts.
func (p *Proposer) SetPromptStore(store driven.PromptStore) {
	p.promptStore = store
}

// Ping validates the service is reachable by checking the /models endpoint.
// This is a lightweight check that validates the API key without running inference.
func (p *Proposer) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("openai: failed to create ping request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("openai: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("openai: API returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("openai: API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Close releases resources.
func (p *Proposer) Close() error {
	// HTTP client doesn't need explicit cleanup
	return nil
}
