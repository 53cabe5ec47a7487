package quality

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/asghar07/genass/pkg/models"
)

// PenaltyPolicy maps each defect onto its score deduction. The weights are a
// tunable heuristic, not a principled model; swap values without touching the
// validation flow.
type PenaltyPolicy struct {
	DimensionMismatch float64
	FileTooSmall      float64
	FileTooLarge      float64
	FlatImage         float64
	BlownHighlights   float64
	CrushedBlacks     float64
	WrongFormat       float64
	MissingAlpha      float64
	AspectDrift       float64
}

func DefaultPolicy() PenaltyPolicy {
	return PenaltyPolicy{
		DimensionMismatch: 0.30,
		FileTooSmall:      0.20,
		FileTooLarge:      0.10,
		FlatImage:         0.15,
		BlownHighlights:   0.10,
		CrushedBlacks:     0.10,
		WrongFormat:       0.15,
		MissingAlpha:      0.10,
		AspectDrift:       0.10,
	}
}

const (
	minStdDev       = 10.0
	blownMeanFloor  = 240.0
	crushedMeanCeil = 15.0
	aspectTolerance = 0.01

	// Expected byte-per-pixel band for an encoded image.
	minBytesDivisor = 1000
	maxBytesDivisor = 50

	escapeScore = 0.5
)

type Validator struct {
	policy    PenaltyPolicy
	threshold float64
	log       zerolog.Logger
}

func NewValidator(policy PenaltyPolicy, threshold float64, log zerolog.Logger) *Validator {
	if threshold == 0 {
		threshold = models.DefaultQualityThreshold
	}
	return &Validator{
		policy:    policy,
		threshold: threshold,
		log:       log,
	}
}

// Validate scores the artifact at path against the need and the encoding the
// batch asked for. If the analysis itself fails the validator must not stall
// the pipeline: it returns a passing middle-of-the-road score carrying the
// diagnostic.
func (v *Validator) Validate(path string, need models.AssetNeed, expected models.OutputFormat) models.QualityCheckResult {
	result, err := v.analyze(path, need, expected)
	if err != nil {
		v.log.Warn().Err(err).Str("path", path).Msg("quality analysis failed, using escape valve")
		return models.QualityCheckResult{
			Passed: true,
			Score:  escapeScore,
			Issues: []string{fmt.Sprintf("quality analysis failed: %v", err)},
		}
	}
	return result
}

func (v *Validator) analyze(path string, need models.AssetNeed, expected models.OutputFormat) (models.QualityCheckResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.QualityCheckResult{}, err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return models.QualityCheckResult{}, fmt.Errorf("failed to decode image: %w", err)
	}

	score := 1.0
	var issues []string
	penalize := func(penalty float64, issue string) {
		score -= penalty
		issues = append(issues, issue)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w != need.Dimensions.Width || h != need.Dimensions.Height {
		penalize(v.policy.DimensionMismatch,
			fmt.Sprintf("dimensions %dx%d do not match target %s", w, h, need.Dimensions))
	}

	pixels := need.Dimensions.PixelCount()
	minBytes := pixels / minBytesDivisor
	maxBytes := pixels / maxBytesDivisor
	if len(data) < minBytes {
		penalize(v.policy.FileTooSmall,
			fmt.Sprintf("file size %s below expected minimum %s", humanize.Bytes(uint64(len(data))), humanize.Bytes(uint64(minBytes))))
	} else if len(data) > maxBytes {
		penalize(v.policy.FileTooLarge,
			fmt.Sprintf("file size %s above expected maximum %s", humanize.Bytes(uint64(len(data))), humanize.Bytes(uint64(maxBytes))))
	}

	stats := computeStats(img)

	if stats.avgStdDev() < minStdDev {
		penalize(v.policy.FlatImage,
			fmt.Sprintf("low color variation (stddev %.1f), image may be flat or empty", stats.avgStdDev()))
	}
	if stats.anyBlown() {
		penalize(v.policy.BlownHighlights, "blown highlights detected")
	}
	if stats.anyCrushed() {
		penalize(v.policy.CrushedBlacks, "crushed blacks detected")
	}

	if expected != "" && format != expectedDecodeFormat(expected) {
		penalize(v.policy.WrongFormat,
			fmt.Sprintf("encoded as %s, expected %s", format, expected))
	}

	if need.Type.NeedsTransparency() && !hasTransparency(img) {
		penalize(v.policy.MissingAlpha,
			fmt.Sprintf("%s assets should carry an alpha channel", need.Type))
	}

	if need.Dimensions.AspectRatio != "" {
		if target, err := models.ParseAspectRatio(need.Dimensions.AspectRatio); err == nil {
			actual := float64(w) / float64(h)
			if math.Abs(actual-target) > aspectTolerance {
				penalize(v.policy.AspectDrift,
					fmt.Sprintf("aspect ratio %.3f deviates from target %s", actual, need.Dimensions.AspectRatio))
			}
		}
	}

	score = math.Max(0, math.Min(1, score))
	return models.QualityCheckResult{
		Passed: score >= v.threshold,
		Score:  score,
		Issues: issues,
	}, nil
}

type channelStats struct {
	mean   [3]float64
	stdDev [3]float64
	min    [3]uint8
	max    [3]uint8
}

func (s channelStats) avgStdDev() float64 {
	return (s.stdDev[0] + s.stdDev[1] + s.stdDev[2]) / 3
}

func (s channelStats) anyBlown() bool {
	for c := 0; c < 3; c++ {
		if s.max[c] == 255 && s.mean[c] > blownMeanFloor {
			return true
		}
	}
	return false
}

func (s channelStats) anyCrushed() bool {
	for c := 0; c < 3; c++ {
		if s.min[c] == 0 && s.mean[c] < crushedMeanCeil {
			return true
		}
	}
	return false
}

func computeStats(img image.Image) channelStats {
	bounds := img.Bounds()
	n := float64(bounds.Dx() * bounds.Dy())

	var sum, sumSq [3]float64
	stats := channelStats{min: [3]uint8{255, 255, 255}}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			for i, v := range [3]uint8{c.R, c.G, c.B} {
				f := float64(v)
				sum[i] += f
				sumSq[i] += f * f
				if v < stats.min[i] {
					stats.min[i] = v
				}
				if v > stats.max[i] {
					stats.max[i] = v
				}
			}
		}
	}

	if n == 0 {
		return stats
	}
	for i := 0; i < 3; i++ {
		stats.mean[i] = sum[i] / n
		variance := sumSq[i]/n - stats.mean[i]*stats.mean[i]
		if variance < 0 {
			variance = 0
		}
		stats.stdDev[i] = math.Sqrt(variance)
	}
	return stats
}

// expectedDecodeFormat maps an output format onto the name the stdlib image
// registry reports after decoding.
func expectedDecodeFormat(f models.OutputFormat) string {
	switch f {
	case models.FormatJPG:
		return "jpeg"
	case models.FormatWebP:
		return "webp"
	default:
		return "png"
	}
}

// hasTransparency reports whether the decoded image actually uses its alpha
// channel. Decoders normalize everything to RGBA-style models, so checking
// the color model alone would never catch an opaque icon.
func hasTransparency(img image.Image) bool {
	type opaquer interface{ Opaque() bool }
	if o, ok := img.(opaquer); ok {
		return !o.Opaque()
	}
	switch img.ColorModel() {
	case color.NRGBAModel, color.RGBAModel, color.NRGBA64Model, color.RGBA64Model:
		return true
	}
	return false
}
