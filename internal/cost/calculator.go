// Package cost estimates spend for image generation batches. Prices come
// from a baked-in table with a local override cache layered on top.
package cost

const (
	CurrencyUSD = "USD"
)

// Estimate is a priced batch: per-image rate times image count.
type Estimate struct {
	PerImage float64
	Total    float64
	Currency string
}

type Calculator struct{}

func NewCalculator() *Calculator {
	return &Calculator{}
}

// PerGeneration returns the per-image rate for model. Locally cached
// overrides win over the baked-in table.
func (c *Calculator) PerGeneration(model string) float64 {
	if price, ok := GetCachedPrice(model); ok {
		return price
	}
	if price, ok := GetModelPrice(model); ok {
		return price
	}
	return DefaultPerImage
}

// EstimateBatch prices a batch of count images on model, assuming one
// billed generation per image.
func (c *Calculator) EstimateBatch(model string, count int) *Estimate {
	perImage := c.PerGeneration(model)
	return &Estimate{
		PerImage: perImage,
		Total:    perImage * float64(count),
		Currency: CurrencyUSD,
	}
}

// EstimateWorstCase prices a batch assuming every image burns its full
// regeneration budget on top of the initial attempt.
func (c *Calculator) EstimateWorstCase(model string, count, maxRegenerations int) *Estimate {
	perImage := c.PerGeneration(model) * float64(1+maxRegenerations)
	return &Estimate{
		PerImage: perImage,
		Total:    perImage * float64(count),
		Currency: CurrencyUSD,
	}
}
