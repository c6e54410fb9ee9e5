package llm

import (
	"context"
	"fmt"

	"github.com/justsurfingit/resale-lister/internal/analysis"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"go.uber.org/zap"
)

// GeminiClient streams through langchaingo's Google AI provider.
type GeminiClient struct {
	Client llms.Model
	log    *zap.Logger
}

func NewGeminiClient(ctx context.Context, apiKey, model string, log *zap.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: empty API key")
	}
	client, err := googleai.New(ctx,
		googleai.WithAPIKey(apiKey),
		googleai.WithDefaultModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return NewGeminiClientWithModel(client, log), nil
}

// NewGeminiClientWithModel wraps an existing model, mainly for tests.
func NewGeminiClientWithModel(model llms.Model, log *zap.Logger) *GeminiClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &GeminiClient{Client: model, log: log}
}

func (g *GeminiClient) Provider() string { return "gemini" }

func (g *GeminiClient) StreamAnalysis(ctx context.Context, req Request) (analysis.TokenStream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	parts := []llms.ContentPart{llms.TextContent{Text: BuildPrompt(req)}}
	for _, p := range req.Photos {
		parts = append(parts, llms.BinaryPart(p.MimeType, p.Data))
	}
	messages := []llms.MessageContent{{Role: llms.ChatMessageTypeHuman, Parts: parts}}

	return analysis.NewChanTokens(ctx, func(ctx context.Context, emit func(string) error) error {
		_, err := g.Client.GenerateContent(ctx, messages,
			llms.WithTemperature(0.2),
			llms.WithJSONMode(),
			llms.WithStreamingFunc(func(ctx context.Context, chunk []byte) error {
				if len(chunk) == 0 {
					return nil
				}
				return emit(string(chunk))
			}),
		)
		if err != nil {
			g.log.Warn("gemini generate failed", zap.Error(err))
			return fmt.Errorf("gemini generate: %w", err)
		}
		return nil
	}), nil
}
