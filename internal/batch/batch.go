package batch

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/asghar07/genass/pkg/models"
)

// groupDelay spaces consecutive concurrency groups apart to respect the
// aggregate rate limit on the remote service.
const groupDelay = 6 * time.Second

// AssetGenerator runs the per-asset pipeline and always returns a terminal
// result.
type AssetGenerator interface {
	GenerateAsset(ctx context.Context, need models.AssetNeed, opts *models.GenerationOptions) models.GeneratedAsset
}

// Scheduler partitions asset needs into concurrency-limited groups and
// drives the generator over all of them, isolating per-asset failures.
type Scheduler struct {
	generator AssetGenerator
	log       zerolog.Logger

	sleep      func(ctx context.Context, d time.Duration) error
	groupDelay time.Duration
}

func NewScheduler(generator AssetGenerator, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		generator:  generator,
		log:        log,
		sleep:      sleepContext,
		groupDelay: groupDelay,
	}
}

// GenerateMany processes every need and returns exactly one result per need,
// in input order. Individual asset failures surface inside the results, never
// as an error; the error return covers only contract violations and
// cancellation.
func (s *Scheduler) GenerateMany(ctx context.Context, needs []models.AssetNeed, opts *models.GenerationOptions) ([]models.GeneratedAsset, error) {
	opts.ApplyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generation options: %w", err)
	}
	for i := range needs {
		if err := needs[i].Validate(); err != nil {
			return nil, fmt.Errorf("invalid asset need %d: %w", i, err)
		}
	}

	results := make([]models.GeneratedAsset, len(needs))
	concurrency := opts.Concurrency
	groups := (len(needs) + concurrency - 1) / concurrency

	s.log.Info().
		Int("assets", len(needs)).
		Int("concurrency", concurrency).
		Int("groups", groups).
		Msg("starting batch generation")

	for start := 0; start < len(needs); start += concurrency {
		if start > 0 {
			if err := s.sleep(ctx, s.groupDelay); err != nil {
				// Unreached assets still get a meaningful entry so the slice
				// always lines up with the input needs.
				for i := start; i < len(needs); i++ {
					results[i] = models.GeneratedAsset{
						Need:    needs[i],
						Success: false,
						Error:   fmt.Sprintf("generation cancelled: %v", err),
					}
				}
				return results, err
			}
		}

		end := min(start+concurrency, len(needs))
		s.log.Debug().
			Int("group", start/concurrency+1).
			Int("size", end-start).
			Msg("processing group")

		g := new(errgroup.Group)
		for i := start; i < end; i++ {
			g.Go(func() error {
				results[i] = s.runOne(ctx, needs[i], opts)
				return nil
			})
		}
		// Workers never return errors: failures live inside each result.
		_ = g.Wait()
	}

	return results, nil
}

// runOne converts a panicking worker into a failed result so one asset can
// never take down its siblings.
func (s *Scheduler) runOne(ctx context.Context, need models.AssetNeed, opts *models.GenerationOptions) (asset models.GeneratedAsset) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().
				Interface("panic", r).
				Str("description", need.Description).
				Msg("asset generation panicked")
			asset = models.GeneratedAsset{
				Need:    need,
				Success: false,
				Error:   fmt.Sprintf("asset generation panicked: %v", r),
			}
		}
	}()
	return s.generator.GenerateAsset(ctx, need, opts)
}

// Summary aggregates a finished batch. Cost is reduced after the join rather
// than accumulated in shared state while workers run.
type Summary struct {
	Total      int
	Successful int
	Failed     int
	Warnings   int
	Degraded   int
	TotalCost  float64
}

func Summarize(results []models.GeneratedAsset) Summary {
	sum := Summary{Total: len(results)}
	for _, r := range results {
		sum.TotalCost += r.Metadata.Cost
		if !r.Success {
			sum.Failed++
			continue
		}
		sum.Successful++
		if r.Metadata.Warning != "" {
			sum.Warnings++
		}
		if r.Metadata.Degraded {
			sum.Degraded++
		}
	}
	return sum
}

func PrintSummary(w io.Writer, results []models.GeneratedAsset) {
	sum := Summarize(results)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "  Successful: %d/%d assets\n", sum.Successful, sum.Total)
	if sum.Warnings > 0 {
		fmt.Fprintf(w, "  Below quality threshold: %d (kept with warning)\n", sum.Warnings)
	}
	if sum.Degraded > 0 {
		fmt.Fprintf(w, "  Degraded (raw bytes persisted): %d\n", sum.Degraded)
	}
	if sum.Failed > 0 {
		fmt.Fprintf(w, "  Failed: %d (see errors below)\n", sum.Failed)
	}
	fmt.Fprintf(w, "  Total cost: $%.4f\n", sum.TotalCost)

	if sum.Failed > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Errors:")
		for _, r := range results {
			if !r.Success {
				fmt.Fprintf(w, "  [%s] %q: %s\n", r.Need.Type, truncate(r.Need.Description, 40), r.Error)
			}
		}
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
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
