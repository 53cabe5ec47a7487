package cost

// Gemini image generation pricing (USD per generated image).
// Source: https://ai.google.dev/pricing

var geminiImagePricing = map[string]float64{
	"gemini-2.5-flash-image":                    0.039,
	"gemini-2.0-flash-preview-image-generation": 0.039,
	"imagen-3.0-generate-002":                   0.030,
	"imagen-4.0-generate-001":                   0.040,
	"imagen-4.0-ultra-generate-001":             0.060,
}

// DefaultPerImage is the fallback for models missing from the table, pinned
// to the flash-image tier so estimates stay in the right ballpark.
const DefaultPerImage = 0.039

func GetModelPrice(model string) (float64, bool) {
	price, ok := geminiImagePricing[model]
	return price, ok
}
