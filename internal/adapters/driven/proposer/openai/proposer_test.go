package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagecraft/pagecraft/internal/core/domain"
	"github.com/pagecraft/pagecraft/internal/core/ports/driven"
)

func TestNew(t *testing.T) {
	t.Run("requires API key", func(t *testing.T) {
		_, err := New(Config{})
		assert.Error(t, err)
	})

	t.Run("applies defaults", func(t *testing.T) {
		proposer, err := New(Config{APIKey: "test-key"})

		require.NoError(t, err)
		assert.Equal(t, DefaultModel, proposer.ModelName())
	})

	t.Run("honours model override", func(t *testing.T) {
		proposer, err := New(Config{APIKey: "test-key", Model: "gpt-4o"})

		require.NoError(t, err)
		assert.Equal(t, "gpt-4o", proposer.ModelName())
	})
}

func TestProposer_Propose(t *testing.T) {
	var captured chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(body, &captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"patch\":{},\"changes\":[]}"}}]}`))
	}))
	defer server.Close()

	proposer, err := New(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	response, err := proposer.Propose(context.Background(), driven.ProposeRequest{
		EncodedUnit: `{"unitType":"component"}`,
		UnitType:    domain.UnitComponent,
		Instruction: "make it friendlier",
		Context: domain.EditContext{
			Topic:      "Dinosaurs",
			AgeGroup:   "6-8",
			Difficulty: "easy",
		},
	})

	require.NoError(t, err)
	assert.Equal(t, `{"patch":{},"changes":[]}`, response)

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Contains(t, captured.Messages[0].Content, "{{new-img:")
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Contains(t, captured.Messages[1].Content, "make it friendlier")
	assert.Contains(t, captured.Messages[1].Content, "Dinosaurs")
	assert.Contains(t, captured.Messages[1].Content, `{"unitType":"component"}`)
}

func TestProposer_Propose_UsesPromptStore(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var req chatCompletionRequest
		require.NoError(t, json.Unmarshal(body, &req))
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "custom system prompt", req.Messages[0].Content)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	proposer, err := New(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)
	proposer.SetPromptStore(stubPromptStore{
		driven.PromptEditSystem: "custom system prompt",
	})

	_, err = proposer.Propose(context.Background(), driven.ProposeRequest{
		Instruction: "anything",
		Context:     domain.EditContext{Topic: "Space", AgeGroup: "9-11"},
	})
	require.NoError(t, err)
}

func TestProposer_Propose_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"auth"}}`))
	}))
	defer server.Close()

	proposer, err := New(Config{APIKey: "bad-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = proposer.Propose(context.Background(), driven.ProposeRequest{
		Instruction: "anything",
		Context:     domain.EditContext{Topic: "Space", AgeGroup: "9-11"},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestProposer_Propose_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	proposer, err := New(Config{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = proposer.Propose(context.Background(), driven.ProposeRequest{
		Instruction: "anything",
		Context:     domain.EditContext{Topic: "Space", AgeGroup: "9-11"},
	})

	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestDescribeContext(t *testing.T) {
	full := describeContext(domain.EditContext{
		Topic:      "Dinosaurs",
		AgeGroup:   "6-8",
		Difficulty: "easy",
		Language:   "en",
	})
	assert.Contains(t, full, "Dinosaurs")
	assert.Contains(t, full, "easy")
	assert.Contains(t, full, "en")

	minimal := describeContext(domain.EditContext{Topic: "Space", AgeGroup: "9-11"})
	assert.NotContains(t, minimal, "Difficulty")
	assert.NotContains(t, minimal, "Language")
}

// stubPromptStore serves prompts from a map.
type stubPromptStore map[string]string

func (s stubPromptStore) Load(name string) (string, error) {
	prompt, ok := s[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return prompt, nil
}

func (s stubPromptStore) Reload() {}
