package provider

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/asghar07/genass/pkg/models"
)

// RetryConfig defines the backoff contract around the remote service. The
// base delay depends on whether the failure was classified as rate limiting.
type RetryConfig struct {
	RateLimitBase time.Duration
	ErrorBase     time.Duration
	MaxDelay      time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		RateLimitBase: 5 * time.Second,
		ErrorBase:     2 * time.Second,
		MaxDelay:      60 * time.Second,
	}
}

// BackoffDelay computes the wait before retrying after a failed attempt,
// doubling per attempt and capped at MaxDelay.
func (c RetryConfig) BackoffDelay(attempt int, rateLimited bool) time.Duration {
	base := c.ErrorBase
	if rateLimited {
		base = c.RateLimitBase
	}
	delay := base << (attempt - 1)
	if delay > c.MaxDelay || delay <= 0 {
		delay = c.MaxDelay
	}
	return delay
}

// Client wraps a Provider with the retry/backoff contract. The remote service
// itself is an external collaborator; this type owns only the retries.
type Client struct {
	provider Provider
	retry    RetryConfig
	log      zerolog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	readFile func(path string) ([]byte, error)
}

func NewClient(p Provider, retry RetryConfig, log zerolog.Logger) *Client {
	return &Client{
		provider: p,
		retry:    retry,
		log:      log,
		sleep:    sleepContext,
		readFile: os.ReadFile,
	}
}

// Generate invokes the provider with up to opts.MaxRetries attempts. After
// exhausting all attempts it returns a terminal error carrying the last
// underlying cause.
func (c *Client) Generate(ctx context.Context, prompt string, need models.AssetNeed, opts *models.GenerationOptions) (*ImageResult, error) {
	maxAttempts := opts.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = models.DefaultMaxRetries
	}

	var refs []ReferenceImage
	if opts.EnableCharacterConsistency {
		refs = c.loadReferences(opts.BlendImages)
	}
	req := &GenerationRequest{
		Prompt:          prompt,
		Model:           opts.Model,
		AspectRatio:     need.Dimensions.AspectRatio,
		ReferenceImages: refs,
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := c.provider.Generate(ctx, req)
		if err == nil {
			if attempt > 1 {
				c.log.Info().
					Str("asset_type", need.Type.String()).
					Int("attempt", attempt).
					Msg("generation succeeded after retry")
			}
			return result, nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}

		rateLimited := IsRateLimited(err)
		delay := c.retry.BackoffDelay(attempt, rateLimited)

		c.log.Warn().
			Err(err).
			Str("asset_type", need.Type.String()).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Bool("rate_limited", rateLimited).
			Dur("retry_delay", delay).
			Msg("generation attempt failed, backing off")

		if err := c.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("generation failed after %d attempts: %w", maxAttempts, lastErr)
}

// loadReferences reads blend images from disk. An unreadable reference is
// skipped with a warning, not a hard failure.
func (c *Client) loadReferences(paths []string) []ReferenceImage {
	if len(paths) == 0 {
		return nil
	}

	refs := make([]ReferenceImage, 0, len(paths))
	for _, path := range paths {
		data, err := c.readFile(path)
		if err != nil {
			c.log.Warn().Err(err).Str("path", path).Msg("skipping unreadable reference image")
			continue
		}
		refs = append(refs, ReferenceImage{
			Data:     data,
			MimeType: mimeTypeForPath(path),
		})
	}
	return refs
}

func mimeTypeForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/png"
	}
}

// sleepContext waits for the delay or until the context is cancelled,
// whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
