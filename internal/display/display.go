// Package display renders generated assets inline in terminals that speak
// the kitty graphics protocol.
package display

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/asghar07/genass/pkg/models"
)

type Displayer struct {
	out io.Writer
}

func New(out io.Writer) *Displayer {
	return &Displayer{out: out}
}

// Preview renders one generated asset from its file on disk.
func (d *Displayer) Preview(asset *models.GeneratedAsset) error {
	if asset.FilePath == "" {
		return fmt.Errorf("asset has no file to display")
	}

	data, err := os.ReadFile(asset.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read asset file: %w", err)
	}

	enc := NewKittyEncoder(d.out)
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("failed to encode image: %w", err)
	}

	fmt.Fprintln(d.out)
	return nil
}

// PreviewAll renders every successful asset in the batch, skipping failures.
func (d *Displayer) PreviewAll(results []models.GeneratedAsset) error {
	for i := range results {
		if !results[i].Success || results[i].FilePath == "" {
			continue
		}
		fmt.Fprintf(d.out, "%s (%s)\n", results[i].Need.Description, results[i].Need.Type)
		if err := d.Preview(&results[i]); err != nil {
			return fmt.Errorf("failed to display asset %d: %w", i, err)
		}
	}
	return nil
}

func IsTerminalSupported() bool {
	termProgram := strings.ToLower(os.Getenv("TERM_PROGRAM"))
	supportedPrograms := []string{"kitty", "ghostty", "iterm.app", "wezterm"}

	for _, prog := range supportedPrograms {
		if termProgram == prog {
			return true
		}
	}

	if os.Getenv("KITTY_WINDOW_ID") != "" {
		return true
	}

	if os.Getenv("ITERM_SESSION_ID") != "" {
		return true
	}

	term := strings.ToLower(os.Getenv("TERM"))
	return strings.Contains(term, "kitty") || strings.Contains(term, "ghostty")
}
