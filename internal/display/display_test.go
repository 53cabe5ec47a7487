package display

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/asghar07/genass/pkg/models"
)

func writtenAsset(t *testing.T, description string) models.GeneratedAsset {
	t.Helper()
	path := filepath.Join(t.TempDir(), "asset.png")
	if err := os.WriteFile(path, []byte("png bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	return models.GeneratedAsset{
		Need:     models.AssetNeed{Type: models.AssetIcon, Description: description},
		FilePath: path,
		Success:  true,
	}
}

func TestDisplayer_Preview(t *testing.T) {
	var buf bytes.Buffer
	d := New(&buf)

	asset := writtenAsset(t, "settings gear")
	if err := d.Preview(&asset); err != nil {
		t.Fatalf("Preview() error = %v", err)
	}

	if !strings.Contains(buf.String(), "\x1b_G") {
		t.Error("Preview() should emit kitty graphics escape sequences")
	}
}

func TestDisplayer_PreviewMissingFile(t *testing.T) {
	d := New(&bytes.Buffer{})

	asset := models.GeneratedAsset{Success: true}
	if err := d.Preview(&asset); err == nil {
		t.Error("Preview() with no file path should error")
	}

	asset.FilePath = filepath.Join(t.TempDir(), "gone.png")
	if err := d.Preview(&asset); err == nil {
		t.Error("Preview() with missing file should error")
	}
}

func TestDisplayer_PreviewAllSkipsFailures(t *testing.T) {
	var buf bytes.Buffer
	d := New(&buf)

	results := []models.GeneratedAsset{
		writtenAsset(t, "settings gear"),
		{
			Need:    models.AssetNeed{Type: models.AssetBanner, Description: "hero banner"},
			Success: false,
			Error:   "generation failed",
		},
	}

	if err := d.PreviewAll(results); err != nil {
		t.Fatalf("PreviewAll() error = %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "settings gear") {
		t.Error("PreviewAll() should label the successful asset")
	}
	if strings.Contains(out, "hero banner") {
		t.Error("PreviewAll() should skip failed assets")
	}
}
