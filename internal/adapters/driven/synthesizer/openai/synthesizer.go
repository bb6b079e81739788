// Package openai provides an Image Synthesizer adapter using OpenAI API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/pagecraft/pagecraft/internal/core/domain"
	"github.com/pagecraft/pagecraft/internal/core/ports/driven"
)

// Ensure Synthesizer implements the interface.
var _ driven.ImageSynthesizer = (*Synthesizer)(nil)

// Default configuration values. The rate limit is conservative, well
// below OpenAI's images-per-minute quota.
const (
	DefaultBaseURL           = "https://api.openai.com/v1"
	DefaultModel             = "dall-e-3"
	DefaultTimeout           = 180 * time.Second
	DefaultRequestsPerSecond = 0.5
	DefaultBurstSize         = 2
)

// Config holds configuration for the OpenAI synthesizer.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.openai.com/v1).
	BaseURL string

	// Model is the image model to use (default: dall-e-3).
	Model string

	// Timeout is the request timeout (default: 180s).
	Timeout time.Duration

	// RequestsPerSecond is the sustained request rate. Zero applies
	// the default.
	RequestsPerSecond float64

	// BurstSize is the maximum burst size. Zero applies the default.
	BurstSize int
}

// Synthesizer generates images through the OpenAI images API. A
// token-bucket limiter throttles requests so a batch of concurrent
// synthesis requests cannot exhaust the provider quota.
type Synthesizer struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	limiter *rate.Limiter
}

// imageGenerationRequest is the OpenAI /images/generations request format.
type imageGenerationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
}

// imageGenerationResponse is the OpenAI /images/generations response format.
type imageGenerationResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
		URL     string `json:"url"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// New creates a new OpenAI synthesizer.
func New(cfg Config) (*Synthesizer, error) {
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
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultRequestsPerSecond
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = DefaultBurstSize
	}

	return &Synthesizer{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
	}, nil
}

// Synthesize generates one image and returns it as a PNG data URI.
// The provider only accepts a fixed set of sizes, so the requested
// dimensions are snapped to the nearest supported size; the returned
// image reports the dimensions actually used.
func (s *Synthesizer) Synthesize(ctx context.Context, spec driven.SynthesisSpec) (*driven.SynthesizedImage, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	width, height := supportedSize(spec.Width, spec.Height)
	reqBody := imageGenerationRequest{
		Model:          s.model,
		Prompt:         spec.Prompt,
		N:              1,
		Size:           strconv.Itoa(width) + "x" + strconv.Itoa(height),
		ResponseFormat: "b64_json",
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/images/generations",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var genResp imageGenerationResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("openai: %w", domain.ErrRateLimited)
	}
	if genResp.Error != nil {
		return nil, fmt.Errorf("openai error: %s", genResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(body))
	}
	if len(genResp.Data) == 0 {
		return nil, fmt.Errorf("openai: no image data returned")
	}

	payload := genResp.Data[0].URL
	if genResp.Data[0].B64JSON != "" {
		payload = "data:image/png;base64," + genResp.Data[0].B64JSON
	}

	return &driven.SynthesizedImage{
		Payload: payload,
		Width:   width,
		Height:  height,
	}, nil
}

// supportedSize snaps requested dimensions to the nearest size the
// images API accepts: square, wide or tall.
func supportedSize(width, height int) (int, int) {
	switch {
	case width > height*3/2:
		return 1792, 1024
	case height > width*3/2:
		return 1024, 1792
	default:
		return 1024, 1024
	}
}

// Ping validates the service is reachable by checking the /models endpoint.
func (s *Synthesizer) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("openai: failed to create ping request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("openai: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai: API returned status %d", resp.StatusCode)
	}
	return nil
}

// Close releases resources.
func (s *Synthesizer) Close() error {
	return nil
}
