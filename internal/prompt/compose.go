package prompt

import (
	"fmt"
	"strings"

	"github.com/asghar07/genass/pkg/models"
)

// Per-type guidance tables. An asset type missing from a table falls back to
// genericGuidance for that clause.
const genericGuidance = "professional design"

var styleGuidance = map[models.AssetType]string{
	models.AssetIcon:         "minimalist flat design, crisp edges, pixel-perfect alignment",
	models.AssetLogo:         "distinctive brand mark, balanced negative space, timeless and scalable",
	models.AssetBanner:       "bold hero composition, strong visual hierarchy, eye-catching",
	models.AssetIllustration: "hand-crafted editorial illustration, expressive linework, cohesive palette",
	models.AssetBackground:   "subtle ambient texture, low visual noise, unobtrusive",
	models.AssetSocialMedia:  "scroll-stopping modern aesthetic, vibrant and shareable",
	models.AssetUIElement:    "clean interface component, consistent with contemporary design systems",
}

var compositionGuidance = map[models.AssetType]string{
	models.AssetIcon:         "single centered subject filling the frame with even margins",
	models.AssetLogo:         "centered emblem, geometrically balanced",
	models.AssetBanner:       "wide layout with clear focal point and room for overlay text",
	models.AssetIllustration: "dynamic scene composition following the rule of thirds",
	models.AssetBackground:   "edge-to-edge seamless pattern, no focal point",
	models.AssetSocialMedia:  "central subject with generous safe margins for cropping",
	models.AssetUIElement:    "tight crop on the component, neutral backdrop",
}

var colorGuidance = map[models.AssetType]string{
	models.AssetIcon:         "limited palette of two to three colors, high contrast",
	models.AssetLogo:         "restrained brand palette that works in monochrome",
	models.AssetBanner:       "rich saturated colors with a dominant accent",
	models.AssetIllustration: "harmonious analogous palette with deliberate accents",
	models.AssetBackground:   "muted desaturated tones, soft gradients",
	models.AssetSocialMedia:  "vivid high-energy colors tuned for small screens",
	models.AssetUIElement:    "neutral base with a single accent color",
}

const (
	qualityTerms       = "High quality, professional grade, sharp details, clean rendering."
	negativeTerms      = "Avoid: blurriness, artifacts, distortion, watermarks, text overlays, signatures, low resolution."
	designPrinciples   = "Follow established design principles: visual balance, clear hierarchy, purposeful use of space."
	transparencyClause = "Transparent background required, subject isolated with clean alpha edges."
)

// Compose deterministically expands an asset need into a full generation
// prompt. Pure function: no randomness, no I/O, no error conditions.
func Compose(need models.AssetNeed) string {
	var b strings.Builder

	base := need.SuggestedPrompt
	if base == "" {
		base = need.Description
	}
	b.WriteString(base)

	writeClause(&b, "Style: %s.", lookup(styleGuidance, need.Type))
	writeClause(&b, "Composition: %s.", lookup(compositionGuidance, need.Type))
	writeClause(&b, "Color: %s.", lookup(colorGuidance, need.Type))

	b.WriteString(" " + qualityTerms)
	b.WriteString(" " + negativeTerms)

	writeClause(&b, "Exact dimensions: %d x %d pixels.", need.Dimensions.Width, need.Dimensions.Height)

	if need.Type.NeedsTransparency() {
		b.WriteString(" " + transparencyClause)
	}

	if len(need.Usage) > 0 {
		writeClause(&b, "Intended usage: %s.", strings.Join(need.Usage, ", "))
	}
	if need.Context != "" {
		writeClause(&b, "Project context: %s.", need.Context)
	}

	b.WriteString(" " + designPrinciples)

	return b.String()
}

func lookup(table map[models.AssetType]string, typ models.AssetType) string {
	if s, ok := table[typ]; ok {
		return s
	}
	return genericGuidance
}

func writeClause(b *strings.Builder, format string, args ...interface{}) {
	b.WriteString(" ")
	fmt.Fprintf(b, format, args...)
}
