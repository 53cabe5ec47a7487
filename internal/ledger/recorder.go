package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/asghar07/genass/pkg/models"
)

var (
	ErrNoActiveRun = errors.New("no active run")
	ErrRunNotFound = errors.New("run not found")
)

// Recorder tracks one batch run end to end: open the run, record each
// finished asset as it lands, then close the run with its tallies.
type Recorder struct {
	store *Store
	run   *Run
}

func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

func (r *Recorder) CurrentRun() *Run {
	return r.run
}

func (r *Recorder) StartRun(ctx context.Context, project, model string, total int) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		Project:   project,
		Model:     model,
		StartedAt: time.Now(),
		Total:     total,
	}

	if err := r.store.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}

	r.run = run
	return run, nil
}

// RecordAsset persists one finished asset under the active run and logs its
// spend. Cost is logged even for failed assets: attempts were billed.
func (r *Recorder) RecordAsset(ctx context.Context, asset models.GeneratedAsset) error {
	if r.run == nil {
		return ErrNoActiveRun
	}

	rec := &AssetRecord{
		ID:                   uuid.New().String(),
		RunID:                r.run.ID,
		AssetType:            string(asset.Need.Type),
		Description:          asset.Need.Description,
		FilePath:             asset.FilePath,
		Prompt:               asset.Prompt,
		Success:              asset.Success,
		Error:                asset.Error,
		QualityScore:         asset.Metadata.QualityScore,
		RegenerationAttempts: asset.Metadata.RegenerationAttempts,
		Warning:              asset.Metadata.Warning,
		Degraded:             asset.Metadata.Degraded,
		GenerationTimeMs:     asset.Metadata.GenerationTimeMs,
		Cost:                 asset.Metadata.Cost,
		CreatedAt:            time.Now(),
	}

	if err := r.store.CreateAsset(ctx, rec); err != nil {
		return fmt.Errorf("failed to record asset: %w", err)
	}

	if asset.Metadata.Cost > 0 {
		entry := &CostEntry{
			AssetID:    rec.ID,
			RunID:      r.run.ID,
			Model:      asset.Metadata.Model,
			Cost:       asset.Metadata.Cost,
			ImageCount: asset.Metadata.RegenerationAttempts + 1,
			Timestamp:  rec.CreatedAt,
		}
		if err := r.store.LogCost(ctx, entry); err != nil {
			return fmt.Errorf("failed to log cost: %w", err)
		}
	}

	if asset.Success {
		r.run.Successful++
	} else {
		r.run.Failed++
	}
	r.run.TotalCost += asset.Metadata.Cost
	return nil
}

// RecordBatch records every result of a finished batch and closes the run.
func (r *Recorder) RecordBatch(ctx context.Context, results []models.GeneratedAsset) error {
	for i := range results {
		if err := r.RecordAsset(ctx, results[i]); err != nil {
			return err
		}
	}
	return r.FinishRun(ctx)
}

func (r *Recorder) FinishRun(ctx context.Context) error {
	if r.run == nil {
		return ErrNoActiveRun
	}

	r.run.FinishedAt = time.Now()
	if err := r.store.FinishRun(ctx, r.run); err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	r.run = nil
	return nil
}

func (r *Recorder) History(ctx context.Context) ([]*Run, error) {
	return r.store.ListRuns(ctx)
}

func (r *Recorder) RunAssets(ctx context.Context, runID string) ([]*AssetRecord, error) {
	if _, err := r.store.GetRun(ctx, runID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRunNotFound, err)
	}
	return r.store.ListAssets(ctx, runID)
}
