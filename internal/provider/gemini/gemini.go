package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/asghar07/genass/internal/provider"
)

const defaultModel = "gemini-2.5-flash-image"

// Provider generates images through the Gemini API. An optional client-side
// limiter paces outgoing requests below the account quota.
type Provider struct {
	client  *genai.Client
	model   string
	limiter *rate.Limiter
}

func New(ctx context.Context, cfg *provider.Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, provider.ErrAPIKeyRequired
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerMinute > 0 {
		// Burst 2 lets the first pair of requests start without waiting.
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 2)
	}

	return &Provider{
		client:  client,
		model:   model,
		limiter: limiter,
	}, nil
}

func (p *Provider) Name() string {
	return "gemini"
}

func (p *Provider) Generate(ctx context.Context, req *provider.GenerationRequest) (*provider.ImageResult, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Prompt)}
	for _, ref := range req.ReferenceImages {
		parts = append(parts, &genai.Part{
			InlineData: &genai.Blob{MIMEType: ref.MimeType, Data: ref.Data},
		})
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	res, err := p.client.Models.GenerateContent(ctx, model, contents, generationConfig(req.AspectRatio))
	if err != nil {
		return nil, classify(err)
	}

	for _, candidate := range res.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return &provider.ImageResult{
					Data:     part.InlineData.Data,
					MimeType: part.InlineData.MIMEType,
				}, nil
			}
		}
	}

	return nil, provider.ErrNoImageReturned
}

// supportedAspectRatios lists the ratios the Gemini image endpoint accepts.
// Anything else is left out of the config; the model then picks its own
// framing and the post-processor crops to the requested dimensions.
var supportedAspectRatios = map[string]bool{
	"1:1":  true,
	"2:3":  true,
	"3:2":  true,
	"3:4":  true,
	"4:3":  true,
	"4:5":  true,
	"5:4":  true,
	"9:16": true,
	"16:9": true,
	"21:9": true,
}

func generationConfig(aspectRatio string) *genai.GenerateContentConfig {
	if !supportedAspectRatios[aspectRatio] {
		return nil
	}
	return &genai.GenerateContentConfig{
		ImageConfig: &genai.ImageConfig{AspectRatio: aspectRatio},
	}
}

// classify maps Gemini API errors onto the pipeline's error taxonomy so the
// retry layer can pick the right backoff base.
func classify(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED" {
			return fmt.Errorf("%w: %v", provider.ErrRateLimited, err)
		}
	}
	if provider.IsRateLimited(err) {
		return fmt.Errorf("%w: %v", provider.ErrRateLimited, err)
	}
	return fmt.Errorf("%w: %v", provider.ErrGenerationFailed, err)
}

var _ provider.Provider = (*Provider)(nil)
