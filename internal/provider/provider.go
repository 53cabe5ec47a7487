package provider

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrAPIKeyRequired   = errors.New("API key is required")
	ErrGenerationFailed = errors.New("image generation failed")
	ErrRateLimited      = errors.New("rate limited by generation service")
	ErrNoImageReturned  = errors.New("model returned no image data")
)

// GenerationRequest is one logical call to the remote image capability.
type GenerationRequest struct {
	Prompt          string
	Model           string
	AspectRatio     string
	ReferenceImages []ReferenceImage
}

// ReferenceImage is an already-loaded image attached for style or identity
// blending.
type ReferenceImage struct {
	Data     []byte
	MimeType string
}

// ImageResult carries the raw generated bytes before any post-processing.
type ImageResult struct {
	Data     []byte
	MimeType string
}

type Provider interface {
	Name() string
	Generate(ctx context.Context, req *GenerationRequest) (*ImageResult, error)
}

type Config struct {
	APIKey            string
	Model             string
	TimeoutSec        int
	RequestsPerMinute int
}

var rateLimitSignals = []string{
	"429",
	"rate limit",
	"quota",
	"resource_exhausted",
	"too many requests",
}

// IsRateLimited classifies an error as a rate-limit signal from the remote
// service, either via the explicit sentinel or message contents.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, signal := range rateLimitSignals {
		if strings.Contains(msg, signal) {
			return true
		}
	}
	return false
}
