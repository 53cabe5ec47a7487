package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/asghar07/genass/pkg/models"
)

func testRecorder(t *testing.T) (*Recorder, *Store) {
	t.Helper()
	store, err := NewStoreWithPath(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStoreWithPath() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewRecorder(store), store
}

func sampleAsset(success bool, cost float64) models.GeneratedAsset {
	asset := models.GeneratedAsset{
		Need: models.AssetNeed{
			Type:        models.AssetIcon,
			Description: "settings gear icon",
			Dimensions:  models.Dimensions{Width: 24, Height: 24, AspectRatio: "1:1"},
		},
		Prompt:  "a settings gear icon",
		Success: success,
		Metadata: models.AssetMetadata{
			Model:            "gemini-2.5-flash-image",
			Cost:             cost,
			QualityScore:     0.9,
			GenerationTimeMs: 1200,
		},
	}
	if success {
		asset.FilePath = "/out/icon.png"
	} else {
		asset.Error = "generation failed after 3 attempts"
	}
	return asset
}

func TestRecorder_StartRecordFinish(t *testing.T) {
	rec, store := testRecorder(t)
	ctx := context.Background()

	run, err := rec.StartRun(ctx, "demo site", "gemini-2.5-flash-image", 2)
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	if run.ID == "" {
		t.Fatal("StartRun() did not assign an ID")
	}

	if err := rec.RecordAsset(ctx, sampleAsset(true, 0.04)); err != nil {
		t.Fatalf("RecordAsset() error = %v", err)
	}
	if err := rec.RecordAsset(ctx, sampleAsset(false, 0.12)); err != nil {
		t.Fatalf("RecordAsset() error = %v", err)
	}

	if err := rec.FinishRun(ctx); err != nil {
		t.Fatalf("FinishRun() error = %v", err)
	}
	if rec.CurrentRun() != nil {
		t.Error("CurrentRun() should be nil after FinishRun")
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Successful != 1 || got.Failed != 1 {
		t.Errorf("run tallies = %d/%d, want 1/1", got.Successful, got.Failed)
	}
	if got.TotalCost < 0.159 || got.TotalCost > 0.161 {
		t.Errorf("run TotalCost = %v, want 0.16", got.TotalCost)
	}

	assets, err := store.ListAssets(ctx, run.ID)
	if err != nil {
		t.Fatalf("ListAssets() error = %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("ListAssets() returned %d, want 2", len(assets))
	}
	if assets[0].AssetType != "icon" || assets[0].Prompt != "a settings gear icon" {
		t.Errorf("recorded asset = %+v", assets[0])
	}

	cost, err := store.GetRunCost(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRunCost() error = %v", err)
	}
	if cost.EntryCount != 2 {
		t.Errorf("GetRunCost() EntryCount = %v, want 2", cost.EntryCount)
	}
}

func TestRecorder_RecordWithoutRun(t *testing.T) {
	rec, _ := testRecorder(t)

	err := rec.RecordAsset(context.Background(), sampleAsset(true, 0.04))
	if !errors.Is(err, ErrNoActiveRun) {
		t.Errorf("RecordAsset() error = %v, want ErrNoActiveRun", err)
	}
	if err := rec.FinishRun(context.Background()); !errors.Is(err, ErrNoActiveRun) {
		t.Errorf("FinishRun() error = %v, want ErrNoActiveRun", err)
	}
}

func TestRecorder_ZeroCostSkipsCostLog(t *testing.T) {
	rec, store := testRecorder(t)
	ctx := context.Background()

	run, err := rec.StartRun(ctx, "", "gemini-2.5-flash-image", 1)
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}
	if err := rec.RecordAsset(ctx, sampleAsset(false, 0)); err != nil {
		t.Fatalf("RecordAsset() error = %v", err)
	}

	cost, err := store.GetRunCost(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRunCost() error = %v", err)
	}
	if cost.EntryCount != 0 {
		t.Errorf("GetRunCost() EntryCount = %v, want 0 for unbilled failure", cost.EntryCount)
	}
}

func TestRecorder_RecordBatch(t *testing.T) {
	rec, store := testRecorder(t)
	ctx := context.Background()

	run, err := rec.StartRun(ctx, "demo", "gemini-2.5-flash-image", 3)
	if err != nil {
		t.Fatalf("StartRun() error = %v", err)
	}

	results := []models.GeneratedAsset{
		sampleAsset(true, 0.04),
		sampleAsset(true, 0.04),
		sampleAsset(false, 0.12),
	}
	if err := rec.RecordBatch(ctx, results); err != nil {
		t.Fatalf("RecordBatch() error = %v", err)
	}

	got, err := store.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Successful != 2 || got.Failed != 1 {
		t.Errorf("run tallies = %d/%d, want 2/1", got.Successful, got.Failed)
	}
	if got.FinishedAt.IsZero() {
		t.Error("RecordBatch() should close the run")
	}
}

func TestRecorder_History(t *testing.T) {
	rec, _ := testRecorder(t)
	ctx := context.Background()

	for range 2 {
		if _, err := rec.StartRun(ctx, "", "gemini-2.5-flash-image", 0); err != nil {
			t.Fatalf("StartRun() error = %v", err)
		}
		if err := rec.FinishRun(ctx); err != nil {
			t.Fatalf("FinishRun() error = %v", err)
		}
	}

	runs, err := rec.History(ctx)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("History() returned %d runs, want 2", len(runs))
	}
}

func TestRecorder_RunAssetsUnknownRun(t *testing.T) {
	rec, _ := testRecorder(t)

	if _, err := rec.RunAssets(context.Background(), "missing"); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("RunAssets() error = %v, want ErrRunNotFound", err)
	}
}
