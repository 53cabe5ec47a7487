package models

import (
	"errors"
	"math"
	"testing"
)

func TestAssetTypeIsValid(t *testing.T) {
	tests := []struct {
		name string
		typ  AssetType
		want bool
	}{
		{"icon", AssetIcon, true},
		{"logo", AssetLogo, true},
		{"banner", AssetBanner, true},
		{"illustration", AssetIllustration, true},
		{"background", AssetBackground, true},
		{"social media", AssetSocialMedia, true},
		{"ui element", AssetUIElement, true},
		{"unknown", AssetType("sticker"), false},
		{"empty", AssetType(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.typ.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAssetTypeNeedsTransparency(t *testing.T) {
	for _, typ := range ValidAssetTypes() {
		want := typ == AssetIcon || typ == AssetLogo
		if got := typ.NeedsTransparency(); got != want {
			t.Errorf("%s.NeedsTransparency() = %v, want %v", typ, got, want)
		}
	}
}

func TestOutputFormatDefaults(t *testing.T) {
	tests := []struct {
		format      OutputFormat
		wantQuality int
		wantMime    string
	}{
		{FormatPNG, 90, "image/png"},
		{FormatJPG, 85, "image/jpeg"},
		{FormatWebP, 85, "image/webp"},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			if got := tt.format.DefaultQuality(); got != tt.wantQuality {
				t.Errorf("DefaultQuality() = %d, want %d", got, tt.wantQuality)
			}
			if got := tt.format.MimeType(); got != tt.wantMime {
				t.Errorf("MimeType() = %q, want %q", got, tt.wantMime)
			}
		})
	}
}

func TestParseAspectRatio(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    float64
		wantErr bool
	}{
		{"square", "1:1", 1.0, false},
		{"wide", "16:9", 16.0 / 9.0, false},
		{"tall", "9:16", 9.0 / 16.0, false},
		{"with spaces", " 4 : 3 ", 4.0 / 3.0, false},
		{"missing colon", "169", 0, true},
		{"zero height", "16:0", 0, true},
		{"garbage", "a:b", 0, true},
		{"empty", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAspectRatio(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAspectRatio(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("ParseAspectRatio(%q) = %g, want %g", tt.input, got, tt.want)
			}
		})
	}
}

func TestAssetNeedValidate(t *testing.T) {
	valid := AssetNeed{
		Type:        AssetIcon,
		Description: "settings gear",
		Dimensions:  Dimensions{Width: 24, Height: 24, AspectRatio: "1:1"},
	}

	tests := []struct {
		name    string
		mutate  func(n *AssetNeed)
		wantErr error
	}{
		{"valid", func(n *AssetNeed) {}, nil},
		{"empty description", func(n *AssetNeed) { n.Description = "  " }, ErrEmptyDescription},
		{"bad type", func(n *AssetNeed) { n.Type = "poster" }, ErrInvalidAssetType},
		{"zero width", func(n *AssetNeed) { n.Dimensions.Width = 0 }, ErrInvalidDimensions},
		{"negative height", func(n *AssetNeed) { n.Dimensions.Height = -5 }, ErrInvalidDimensions},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			need := valid
			tt.mutate(&need)
			err := need.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerationOptionsApplyDefaults(t *testing.T) {
	opts := &GenerationOptions{OutputDir: "out"}
	opts.ApplyDefaults()

	if opts.Format != FormatPNG {
		t.Errorf("Format = %q, want png", opts.Format)
	}
	if opts.Quality != 90 {
		t.Errorf("Quality = %d, want 90", opts.Quality)
	}
	if opts.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries = %d, want %d", opts.MaxRetries, DefaultMaxRetries)
	}
	if opts.Concurrency != DefaultConcurrency {
		t.Errorf("Concurrency = %d, want %d", opts.Concurrency, DefaultConcurrency)
	}
	if opts.QualityThreshold != DefaultQualityThreshold {
		t.Errorf("QualityThreshold = %g, want %g", opts.QualityThreshold, DefaultQualityThreshold)
	}
	if opts.MaxRegenerationAttempts != DefaultMaxRegenerationAttempts {
		t.Errorf("MaxRegenerationAttempts = %d, want %d", opts.MaxRegenerationAttempts, DefaultMaxRegenerationAttempts)
	}
	if opts.Model != DefaultModel {
		t.Errorf("Model = %q, want %q", opts.Model, DefaultModel)
	}
}

func TestGenerationOptionsApplyDefaultsJPGQuality(t *testing.T) {
	opts := &GenerationOptions{OutputDir: "out", Format: FormatJPG}
	opts.ApplyDefaults()
	if opts.Quality != 85 {
		t.Errorf("Quality = %d, want 85", opts.Quality)
	}
}

func TestGenerationOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *GenerationOptions)
		wantErr error
	}{
		{"valid defaults", func(o *GenerationOptions) {}, nil},
		{"missing output dir", func(o *GenerationOptions) { o.OutputDir = "" }, ErrOutputDirRequired},
		{"bad format", func(o *GenerationOptions) { o.Format = "bmp" }, ErrInvalidFormat},
		{"quality too high", func(o *GenerationOptions) { o.Quality = 101 }, ErrInvalidQuality},
		{"quality too low", func(o *GenerationOptions) { o.Quality = -1 }, ErrInvalidQuality},
		{"zero retries", func(o *GenerationOptions) { o.MaxRetries = -1 }, ErrInvalidRetries},
		{"bad concurrency", func(o *GenerationOptions) { o.Concurrency = -2 }, ErrInvalidConcurrency},
		{"threshold above one", func(o *GenerationOptions) { o.QualityThreshold = 1.5 }, ErrInvalidThreshold},
		{"negative regeneration", func(o *GenerationOptions) { o.MaxRegenerationAttempts = -1 }, ErrNegativeRegeneration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := NewOptions("out")
			tt.mutate(opts)
			err := opts.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
