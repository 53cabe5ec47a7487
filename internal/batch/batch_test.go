package batch

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/asghar07/genass/pkg/models"
)

type fakeGenerator struct {
	mu       sync.Mutex
	calls    []string
	failFor  map[string]string
	panicFor map[string]bool
	cost     float64
}

func (f *fakeGenerator) GenerateAsset(_ context.Context, need models.AssetNeed, opts *models.GenerationOptions) models.GeneratedAsset {
	f.mu.Lock()
	f.calls = append(f.calls, need.Description)
	f.mu.Unlock()

	if f.panicFor[need.Description] {
		panic("generator blew up")
	}
	if msg, ok := f.failFor[need.Description]; ok {
		return models.GeneratedAsset{
			Need:     need,
			Success:  false,
			Error:    msg,
			Metadata: models.AssetMetadata{Model: opts.Model, Cost: f.cost},
		}
	}
	return models.GeneratedAsset{
		Need:     need,
		FilePath: "out/" + need.Description + ".png",
		Success:  true,
		Metadata: models.AssetMetadata{Model: opts.Model, Cost: f.cost, QualityScore: 0.9},
	}
}

func testScheduler(gen AssetGenerator) (*Scheduler, *[]time.Duration) {
	s := NewScheduler(gen, zerolog.Nop())
	var delays []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return s, &delays
}

func makeNeeds(n int) []models.AssetNeed {
	needs := make([]models.AssetNeed, n)
	for i := range needs {
		needs[i] = models.AssetNeed{
			Type:        models.AssetIcon,
			Description: fmt.Sprintf("asset-%02d", i),
			Dimensions:  models.Dimensions{Width: 24, Height: 24, AspectRatio: "1:1"},
		}
	}
	return needs
}

func TestGenerateManyPreservesOrderAndLength(t *testing.T) {
	gen := &fakeGenerator{cost: 0.04}
	s, _ := testScheduler(gen)

	needs := makeNeeds(7)
	results, err := s.GenerateMany(context.Background(), needs, models.NewOptions("out"))
	if err != nil {
		t.Fatalf("GenerateMany() error: %v", err)
	}

	if len(results) != len(needs) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(needs))
	}
	for i, r := range results {
		if r.Need.Description != needs[i].Description {
			t.Errorf("results[%d] = %q, want %q", i, r.Need.Description, needs[i].Description)
		}
	}
}

func TestGenerateManyGroupDelays(t *testing.T) {
	gen := &fakeGenerator{}
	s, delays := testScheduler(gen)

	// 7 needs with concurrency 3 means groups of 3, 3, 1 and two pauses.
	_, err := s.GenerateMany(context.Background(), makeNeeds(7), models.NewOptions("out"))
	if err != nil {
		t.Fatal(err)
	}

	if len(*delays) != 2 {
		t.Fatalf("inter-group delays = %d, want 2", len(*delays))
	}
	for _, d := range *delays {
		if d != groupDelay {
			t.Errorf("delay = %v, want %v", d, groupDelay)
		}
	}
}

func TestGenerateManySingleGroupNoDelay(t *testing.T) {
	s, delays := testScheduler(&fakeGenerator{})

	if _, err := s.GenerateMany(context.Background(), makeNeeds(3), models.NewOptions("out")); err != nil {
		t.Fatal(err)
	}
	if len(*delays) != 0 {
		t.Errorf("delays = %v, want none for a single group", *delays)
	}
}

func TestGenerateManyIsolatesFailures(t *testing.T) {
	gen := &fakeGenerator{
		failFor:  map[string]string{"asset-01": "generation failed after 3 attempts"},
		panicFor: map[string]bool{"asset-03": true},
	}
	s, _ := testScheduler(gen)

	needs := makeNeeds(5)
	results, err := s.GenerateMany(context.Background(), needs, models.NewOptions("out"))
	if err != nil {
		t.Fatalf("per-asset failures must not fail the batch: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("len(results) = %d, want 5", len(results))
	}

	for i, r := range results {
		switch i {
		case 1:
			if r.Success || r.Error == "" {
				t.Errorf("results[1] should carry the failure, got %+v", r)
			}
		case 3:
			if r.Success || !strings.Contains(r.Error, "panicked") {
				t.Errorf("results[3] should carry the panic, got %+v", r)
			}
		default:
			if !r.Success {
				t.Errorf("results[%d] unexpectedly failed: %s", i, r.Error)
			}
		}
	}
}

func TestGenerateManyRejectsInvalidNeedUpFront(t *testing.T) {
	gen := &fakeGenerator{}
	s, _ := testScheduler(gen)

	needs := makeNeeds(3)
	needs[2].Description = ""

	if _, err := s.GenerateMany(context.Background(), needs, models.NewOptions("out")); err == nil {
		t.Fatal("malformed need must fail synchronously")
	}
	if len(gen.calls) != 0 {
		t.Errorf("no generation should start, got %d calls", len(gen.calls))
	}
}

func TestGenerateManyRejectsInvalidOptions(t *testing.T) {
	s, _ := testScheduler(&fakeGenerator{})

	opts := models.NewOptions("")
	if _, err := s.GenerateMany(context.Background(), makeNeeds(1), opts); err == nil {
		t.Fatal("invalid options must fail synchronously")
	}
}

func TestGenerateManyStopsOnCancelledContext(t *testing.T) {
	gen := &fakeGenerator{}
	s := NewScheduler(gen, zerolog.Nop())
	s.sleep = sleepContext

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := s.GenerateMany(ctx, makeNeeds(7), models.NewOptions("out"))
	if err == nil {
		t.Fatal("expected context error from inter-group delay")
	}
	// The first group ran before the cancelled delay was observed.
	if len(results) != 7 {
		t.Fatalf("partial results slice length = %d, want 7", len(results))
	}
	for i := 3; i < 7; i++ {
		if results[i].Success {
			t.Errorf("results[%d].Success = true, want cancelled failure", i)
		}
		if results[i].Need.Description == "" {
			t.Errorf("results[%d] missing need", i)
		}
		if !strings.Contains(results[i].Error, "cancelled") {
			t.Errorf("results[%d].Error = %q, want cancellation message", i, results[i].Error)
		}
	}
}

func TestGenerateManyEmptyInput(t *testing.T) {
	s, delays := testScheduler(&fakeGenerator{})

	results, err := s.GenerateMany(context.Background(), nil, models.NewOptions("out"))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 0 || len(*delays) != 0 {
		t.Errorf("empty input should do nothing, got %d results, %d delays", len(results), len(*delays))
	}
}

func TestSummarize(t *testing.T) {
	results := []models.GeneratedAsset{
		{Success: true, Metadata: models.AssetMetadata{Cost: 0.04, QualityScore: 0.9}},
		{Success: true, Metadata: models.AssetMetadata{Cost: 0.12, Warning: "below threshold"}},
		{Success: true, Metadata: models.AssetMetadata{Cost: 0.04, Degraded: true}},
		{Success: false, Error: "boom", Metadata: models.AssetMetadata{Cost: 0.08}},
	}

	sum := Summarize(results)
	if sum.Total != 4 || sum.Successful != 3 || sum.Failed != 1 {
		t.Errorf("counts = %+v", sum)
	}
	if sum.Warnings != 1 || sum.Degraded != 1 {
		t.Errorf("warnings/degraded = %d/%d, want 1/1", sum.Warnings, sum.Degraded)
	}
	if want := 0.28; sum.TotalCost < want-1e-9 || sum.TotalCost > want+1e-9 {
		t.Errorf("TotalCost = %g, want %g", sum.TotalCost, want)
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary(&buf, []models.GeneratedAsset{
		{Success: true, Metadata: models.AssetMetadata{Cost: 0.04}},
		{
			Need:    models.AssetNeed{Type: models.AssetIcon, Description: "settings gear"},
			Success: false,
			Error:   "generation failed",
		},
	})

	out := buf.String()
	for _, want := range []string{"Successful: 1/2", "Failed: 1", "Total cost: $0.0400", "settings gear", "generation failed"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
