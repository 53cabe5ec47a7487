package cost

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// LocalPricing is the on-disk override file. Per-model flat rates only:
// Gemini image models bill per image regardless of size.
type LocalPricing struct {
	UpdatedAt time.Time          `json:"updated_at"`
	Source    string             `json:"source"`
	Image     map[string]float64 `json:"image"`
}

// SavePricing writes the override file, creating its directory if needed.
func SavePricing(pricing *LocalPricing) error {
	path, err := pricingCachePath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	data, err := json.MarshalIndent(pricing, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pricing: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write pricing cache: %w", err)
	}

	return nil
}

// LoadPricing reads the override file. A missing file is not an error.
func LoadPricing() (*LocalPricing, error) {
	path, err := pricingCachePath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read pricing cache: %w", err)
	}

	var pricing LocalPricing
	if err := json.Unmarshal(data, &pricing); err != nil {
		return nil, fmt.Errorf("failed to parse pricing cache: %w", err)
	}

	return &pricing, nil
}

// DeletePricing removes the override file.
func DeletePricing() error {
	path, err := pricingCachePath()
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete pricing cache: %w", err)
	}
	return nil
}

func pricingCachePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".genass", "pricing.json"), nil
}

// PricingCachePath returns the path to the pricing override file.
func PricingCachePath() (string, error) {
	return pricingCachePath()
}

// SetPrice records a per-image override for model in the local cache.
func SetPrice(model string, price float64) error {
	pricing, err := LoadPricing()
	if err != nil {
		return err
	}

	if pricing == nil {
		pricing = &LocalPricing{
			Source: "manual",
			Image:  make(map[string]float64),
		}
	}
	if pricing.Image == nil {
		pricing.Image = make(map[string]float64)
	}

	pricing.Image[model] = price
	pricing.UpdatedAt = time.Now()
	pricing.Source = "manual"

	return SavePricing(pricing)
}

// GetCachedPrice looks up a per-image override for model.
func GetCachedPrice(model string) (float64, bool) {
	pricing, err := LoadPricing()
	if err != nil || pricing == nil {
		return 0, false
	}

	price, ok := pricing.Image[model]
	return price, ok
}
