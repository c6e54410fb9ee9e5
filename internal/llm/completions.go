package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/justsurfingit/resale-lister/internal/analysis"
	"go.uber.org/zap"
)

// CompletionsClient talks to any OpenAI-compatible /chat/completions
// endpoint and hands the raw SSE body to the analysis decoder.
type CompletionsClient struct {
	BaseURL  string
	APIKey   string
	Model    string
	HTTP     *http.Client
	Attempts int
	Backoff  time.Duration
	log      *zap.Logger
}

func NewCompletionsClient(baseURL, apiKey, model string, log *zap.Logger) *CompletionsClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &CompletionsClient{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		// No overall timeout: the body is read for as long as the stream runs.
		HTTP:     &http.Client{Transport: http.DefaultTransport},
		Attempts: 3,
		Backoff:  time.Second,
		log:      log,
	}
}

func (c *CompletionsClient) Provider() string { return "openai" }

type chatRequest struct {
	Model          string          `json:"model"`
	Stream         bool            `json:"stream"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
	Messages       []chatMessage   `json:"messages"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// StatusError is a non-2xx reply to the initial request.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completions endpoint returned %d: %s", e.Code, e.Body)
}

// Retryable is true for throttling and server-side failures.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

func (c *CompletionsClient) StreamAnalysis(ctx context.Context, req Request) (analysis.TokenStream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	parts := []contentPart{{Type: "text", Text: BuildPrompt(req)}}
	for _, p := range req.Photos {
		url := "data:" + p.MimeType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: url}})
	}
	payload, err := json.Marshal(chatRequest{
		Model:          c.Model,
		Stream:         true,
		Temperature:    0.2,
		ResponseFormat: &responseFormat{Type: "json_object"},
		Messages:       []chatMessage{{Role: "user", Content: parts}},
	})
	if err != nil {
		return nil, fmt.Errorf("encode completions request: %w", err)
	}

	var resp *http.Response
	err = retry(ctx, c.Attempts, c.Backoff, c.log, func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(payload))
		if err != nil {
			return err
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Accept", "text/event-stream")
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

		r, err := c.HTTP.Do(httpReq)
		if err != nil {
			return err
		}
		if r.StatusCode < 200 || r.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(r.Body, 512))
			r.Body.Close()
			return &StatusError{Code: r.StatusCode, Body: string(bytes.TrimSpace(body))}
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return analysis.NewSSETokens(resp.Body), nil
}
