package models

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

var (
	ErrEmptyDescription     = errors.New("asset description cannot be empty")
	ErrInvalidAssetType     = errors.New("invalid asset type")
	ErrInvalidDimensions    = errors.New("dimensions must be positive")
	ErrInvalidFormat        = errors.New("invalid output format")
	ErrInvalidQuality       = errors.New("quality must be between 1 and 100")
	ErrOutputDirRequired    = errors.New("output directory is required")
	ErrInvalidConcurrency   = errors.New("concurrency must be at least 1")
	ErrInvalidThreshold     = errors.New("quality threshold must be in [0,1]")
	ErrInvalidAspectRatio   = errors.New("invalid aspect ratio")
	ErrInvalidRetries       = errors.New("max retries must be at least 1")
	ErrNegativeRegeneration = errors.New("max regeneration attempts cannot be negative")
)

type AssetType string

const (
	AssetIcon         AssetType = "icon"
	AssetLogo         AssetType = "logo"
	AssetBanner       AssetType = "banner"
	AssetIllustration AssetType = "illustration"
	AssetBackground   AssetType = "background"
	AssetSocialMedia  AssetType = "social-media"
	AssetUIElement    AssetType = "ui-element"
)

func ValidAssetTypes() []AssetType {
	return []AssetType{
		AssetIcon, AssetLogo, AssetBanner, AssetIllustration,
		AssetBackground, AssetSocialMedia, AssetUIElement,
	}
}

func (t AssetType) IsValid() bool {
	return slices.Contains(ValidAssetTypes(), t)
}

func (t AssetType) String() string {
	return string(t)
}

// NeedsTransparency reports whether assets of this type are expected to carry
// an alpha channel.
func (t AssetType) NeedsTransparency() bool {
	return t == AssetIcon || t == AssetLogo
}

type OutputFormat string

const (
	FormatPNG  OutputFormat = "png"
	FormatJPG  OutputFormat = "jpg"
	FormatWebP OutputFormat = "webp"
)

func ValidFormats() []OutputFormat {
	return []OutputFormat{FormatPNG, FormatJPG, FormatWebP}
}

func (f OutputFormat) IsValid() bool {
	return slices.Contains(ValidFormats(), f)
}

func (f OutputFormat) String() string {
	return string(f)
}

func (f OutputFormat) MimeType() string {
	switch f {
	case FormatJPG:
		return "image/jpeg"
	case FormatWebP:
		return "image/webp"
	default:
		return "image/png"
	}
}

func (f OutputFormat) DefaultQuality() int {
	if f == FormatPNG {
		return 90
	}
	return 85
}

type Dimensions struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	AspectRatio string `json:"aspectRatio,omitempty"`
}

func (d Dimensions) PixelCount() int {
	return d.Width * d.Height
}

func (d Dimensions) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// ParseAspectRatio converts a "W:H" string into a width/height ratio.
func ParseAspectRatio(s string) (float64, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAspectRatio, s)
	}
	w, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAspectRatio, s)
	}
	h, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil || h == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAspectRatio, s)
	}
	return w / h, nil
}

// AssetNeed describes one image to be produced. It is immutable input: one
// instance drives exactly one generation attempt sequence.
type AssetNeed struct {
	Type            AssetType  `json:"type"`
	Description     string     `json:"description"`
	Context         string     `json:"context,omitempty"`
	Dimensions      Dimensions `json:"dimensions"`
	Usage           []string   `json:"usage,omitempty"`
	Priority        string     `json:"priority,omitempty"`
	SuggestedPrompt string     `json:"suggestedPrompt,omitempty"`
	FilePath        string     `json:"filePath,omitempty"`
}

func (n *AssetNeed) Validate() error {
	if strings.TrimSpace(n.Description) == "" {
		return ErrEmptyDescription
	}
	if !n.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidAssetType, n.Type)
	}
	if n.Dimensions.Width <= 0 || n.Dimensions.Height <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidDimensions, n.Dimensions)
	}
	return nil
}

// GenerationOptions is supplied once per batch invocation and shared
// read-only across all assets in that batch.
type GenerationOptions struct {
	OutputDir                  string
	Format                     OutputFormat
	Quality                    int
	Model                      string
	MaxRetries                 int
	Concurrency                int
	QualityThreshold           float64
	MaxRegenerationAttempts    int
	CostPerGeneration          float64
	EnableCharacterConsistency bool
	BlendImages                []string
}

const (
	DefaultModel                   = "gemini-2.5-flash-image"
	DefaultMaxRetries              = 3
	DefaultConcurrency             = 3
	DefaultQualityThreshold        = 0.7
	DefaultMaxRegenerationAttempts = 2
)

func NewOptions(outputDir string) *GenerationOptions {
	opts := &GenerationOptions{
		OutputDir: outputDir,
		Format:    FormatPNG,
	}
	opts.ApplyDefaults()
	return opts
}

func (o *GenerationOptions) ApplyDefaults() {
	if o.Format == "" {
		o.Format = FormatPNG
	}
	if o.Quality == 0 {
		o.Quality = o.Format.DefaultQuality()
	}
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.Concurrency == 0 {
		o.Concurrency = DefaultConcurrency
	}
	if o.QualityThreshold == 0 {
		o.QualityThreshold = DefaultQualityThreshold
	}
	if o.MaxRegenerationAttempts == 0 {
		o.MaxRegenerationAttempts = DefaultMaxRegenerationAttempts
	}
}

func (o *GenerationOptions) Validate() error {
	if strings.TrimSpace(o.OutputDir) == "" {
		return ErrOutputDirRequired
	}
	if !o.Format.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, o.Format)
	}
	if o.Quality < 1 || o.Quality > 100 {
		return fmt.Errorf("%w: got %d", ErrInvalidQuality, o.Quality)
	}
	if o.MaxRetries < 1 {
		return ErrInvalidRetries
	}
	if o.Concurrency < 1 {
		return ErrInvalidConcurrency
	}
	if o.QualityThreshold < 0 || o.QualityThreshold > 1 {
		return fmt.Errorf("%w: got %g", ErrInvalidThreshold, o.QualityThreshold)
	}
	if o.MaxRegenerationAttempts < 0 {
		return ErrNegativeRegeneration
	}
	return nil
}

// QualityCheckResult is produced fresh for every generation attempt. Only the
// final one survives, copied into the asset metadata.
type QualityCheckResult struct {
	Passed bool
	Score  float64
	Issues []string
}

type AssetMetadata struct {
	Model                string  `json:"model"`
	GenerationTimeMs     int64   `json:"generationTimeMs"`
	Cost                 float64 `json:"cost"`
	QualityScore         float64 `json:"qualityScore,omitempty"`
	RegenerationAttempts int     `json:"regenerationAttempts,omitempty"`
	Warning              string  `json:"warning,omitempty"`
	Degraded             bool    `json:"degraded,omitempty"`
}

// GeneratedAsset is the terminal result of one asset need. It is created once
// by the orchestrator and never mutated after return.
type GeneratedAsset struct {
	Need     AssetNeed     `json:"need"`
	FilePath string        `json:"filePath,omitempty"`
	Prompt   string        `json:"prompt"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
	Metadata AssetMetadata `json:"metadata"`
}
