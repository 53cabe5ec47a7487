package generate

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/asghar07/genass/internal/postprocess"
	genprompt "github.com/asghar07/genass/internal/prompt"
	"github.com/asghar07/genass/internal/provider"
	"github.com/asghar07/genass/pkg/models"
)

const regenerationDelay = 2 * time.Second

// GenerationClient produces raw image bytes for a prompt, owning the
// network-level retry contract.
type GenerationClient interface {
	Generate(ctx context.Context, prompt string, need models.AssetNeed, opts *models.GenerationOptions) (*provider.ImageResult, error)
}

// PostProcessor normalizes and persists raw bytes, reporting where the
// artifact landed.
type PostProcessor interface {
	Process(data []byte, need models.AssetNeed, opts *models.GenerationOptions) (*postprocess.Result, error)
}

// QualityChecker scores a written artifact against its need.
type QualityChecker interface {
	Validate(path string, need models.AssetNeed, expected models.OutputFormat) models.QualityCheckResult
}

// Orchestrator drives one asset need through compose, generate, process and
// validate, with a bounded regenerate-on-quality-failure loop.
type Orchestrator struct {
	client    GenerationClient
	processor PostProcessor
	validator QualityChecker
	log       zerolog.Logger

	sleep      func(ctx context.Context, d time.Duration) error
	removeFile func(path string) error
	regenDelay time.Duration
}

func NewOrchestrator(client GenerationClient, processor PostProcessor, validator QualityChecker, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		client:     client,
		processor:  processor,
		validator:  validator,
		log:        log,
		sleep:      sleepContext,
		removeFile: os.Remove,
		regenDelay: regenerationDelay,
	}
}

// GenerateAsset runs the full state machine for one need and always returns a
// terminal GeneratedAsset. Quality shortfalls degrade to a warning; only
// generation or filesystem errors mark the asset as failed.
func (o *Orchestrator) GenerateAsset(ctx context.Context, need models.AssetNeed, opts *models.GenerationOptions) models.GeneratedAsset {
	start := time.Now()

	// Composed once: the prompt is stable across retries within one asset.
	prompt := genprompt.Compose(need)

	costPer := opts.CostPerGeneration
	maxRegen := opts.MaxRegenerationAttempts

	var totalCost float64
	attempts := 0

	fail := func(err error) models.GeneratedAsset {
		o.log.Error().Err(err).
			Str("asset_type", need.Type.String()).
			Str("description", need.Description).
			Msg("asset generation failed")
		return models.GeneratedAsset{
			Need:    need,
			Prompt:  prompt,
			Success: false,
			Error:   err.Error(),
			Metadata: models.AssetMetadata{
				Model:                opts.Model,
				GenerationTimeMs:     time.Since(start).Milliseconds(),
				Cost:                 totalCost,
				RegenerationAttempts: attempts,
			},
		}
	}

	for {
		o.log.Debug().
			Str("asset_type", need.Type.String()).
			Int("attempt", attempts).
			Msg("generating asset")

		img, err := o.client.Generate(ctx, prompt, need, opts)
		if err != nil {
			return fail(err)
		}
		totalCost += costPer

		processed, err := o.processor.Process(img.Data, need, opts)
		if err != nil {
			return fail(err)
		}

		check := o.validator.Validate(processed.Path, need, opts.Format)

		if check.Passed {
			meta := models.AssetMetadata{
				Model:                opts.Model,
				GenerationTimeMs:     time.Since(start).Milliseconds(),
				Cost:                 totalCost,
				QualityScore:         check.Score,
				RegenerationAttempts: attempts,
				Degraded:             processed.Degraded,
			}
			o.log.Info().
				Str("asset_type", need.Type.String()).
				Str("path", processed.Path).
				Float64("score", check.Score).
				Int("regeneration_attempts", attempts).
				Msg("asset generated")
			return models.GeneratedAsset{
				Need:     need,
				FilePath: processed.Path,
				Prompt:   prompt,
				Success:  true,
				Metadata: meta,
			}
		}

		if attempts >= maxRegen {
			// Ship the best available image rather than nothing.
			warning := fmt.Sprintf("quality below threshold after %d regeneration attempts (score %.2f): %s",
				attempts, check.Score, strings.Join(check.Issues, "; "))
			o.log.Warn().
				Str("asset_type", need.Type.String()).
				Str("path", processed.Path).
				Float64("score", check.Score).
				Msg("regeneration attempts exhausted, keeping last artifact")
			return models.GeneratedAsset{
				Need:     need,
				FilePath: processed.Path,
				Prompt:   prompt,
				Success:  true,
				Metadata: models.AssetMetadata{
					Model:                opts.Model,
					GenerationTimeMs:     time.Since(start).Milliseconds(),
					Cost:                 totalCost,
					QualityScore:         check.Score,
					RegenerationAttempts: attempts,
					Warning:              warning,
					Degraded:             processed.Degraded,
				},
			}
		}

		o.log.Info().
			Str("asset_type", need.Type.String()).
			Float64("score", check.Score).
			Strs("issues", check.Issues).
			Int("attempt", attempts).
			Msg("quality check failed, regenerating")

		if err := o.removeFile(processed.Path); err != nil {
			o.log.Warn().Err(err).Str("path", processed.Path).Msg("failed to delete rejected artifact")
		}

		if err := o.sleep(ctx, o.regenDelay); err != nil {
			return fail(err)
		}
		attempts++
	}
}

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
