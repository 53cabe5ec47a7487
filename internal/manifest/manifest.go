// Package manifest loads asset-need manifests: the JSON files that describe
// which assets a project wants generated.
package manifest

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/asghar07/genass/internal/security"
	"github.com/asghar07/genass/pkg/models"
)

// Manifest is the on-disk shape. Needs may appear either at the top level or
// under an "assets" key so hand-written and tool-exported files both load.
type Manifest struct {
	Project string             `json:"project,omitempty"`
	Assets  []models.AssetNeed `json:"assets"`
}

// LoadFile reads a manifest from path and validates every need in it.
func LoadFile(path string) ([]models.AssetNeed, error) {
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".json" {
		return nil, fmt.Errorf("unsupported manifest format %q: use .json", ext)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer file.Close()

	return Load(file)
}

// Load parses a manifest from r. It accepts either a bare JSON array of
// asset needs or a {"project": ..., "assets": [...]} document.
func Load(r io.Reader) ([]models.AssetNeed, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	needs, err := decode(data)
	if err != nil {
		return nil, err
	}
	if len(needs) == 0 {
		return nil, fmt.Errorf("no asset needs found in manifest")
	}

	for i := range needs {
		if err := needs[i].Validate(); err != nil {
			return nil, fmt.Errorf("asset %d (%q): %w", i+1, needs[i].Description, err)
		}
		if needs[i].FilePath != "" {
			if err := security.ValidateSavePath(needs[i].FilePath); err != nil {
				return nil, fmt.Errorf("asset %d (%q): unsafe file path %q: %w", i+1, needs[i].Description, needs[i].FilePath, err)
			}
		}
	}
	return needs, nil
}

func decode(data []byte) ([]models.AssetNeed, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var needs []models.AssetNeed
		if err := json.Unmarshal(data, &needs); err != nil {
			return nil, fmt.Errorf("failed to parse manifest: %w", err)
		}
		return needs, nil
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return m.Assets, nil
}
