package postprocess

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/rs/zerolog"

	// Decoders for formats the remote service may return.
	_ "image/gif"

	_ "golang.org/x/image/webp"

	"github.com/asghar07/genass/internal/security"
	"github.com/asghar07/genass/pkg/models"
)

const slugMaxLen = 40

// Result describes where the artifact landed. Degraded marks the raw-bytes
// fallback path: the file exists but is not a verified re-encoded image.
type Result struct {
	Path     string
	Degraded bool
}

// Processor normalizes raw generated bytes to the requested dimensions and
// encoding and persists them under the output directory.
type Processor struct {
	log zerolog.Logger
	now func() time.Time
}

func NewProcessor(log zerolog.Logger) *Processor {
	return &Processor{
		log: log,
		now: time.Now,
	}
}

// Process decodes, fits, re-encodes and writes the image. On any processing
// failure it falls back to persisting the raw bytes unchanged so the
// generation is never lost outright.
func (p *Processor) Process(data []byte, need models.AssetNeed, opts *models.GenerationOptions) (*Result, error) {
	path, err := p.targetPath(need, opts)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	encoded, err := p.render(data, need, opts)
	if err != nil {
		p.log.Warn().Err(err).
			Str("path", path).
			Msg("post-processing failed, persisting raw bytes")
		if werr := writeAtomic(path, data); werr != nil {
			return nil, fmt.Errorf("failed to write raw fallback: %w", werr)
		}
		return &Result{Path: path, Degraded: true}, nil
	}

	if err := writeAtomic(path, encoded); err != nil {
		return nil, fmt.Errorf("failed to write image: %w", err)
	}
	return &Result{Path: path}, nil
}

// targetPath resolves where the artifact goes. A manifest may pin the file
// location through need.FilePath; it is validated and kept relative to the
// output directory. Otherwise the name is derived from the need itself.
func (p *Processor) targetPath(need models.AssetNeed, opts *models.GenerationOptions) (string, error) {
	if need.FilePath == "" {
		return filepath.Join(opts.OutputDir, Filename(need, opts.Format, p.now())), nil
	}

	if err := security.ValidateSavePath(need.FilePath); err != nil {
		return "", fmt.Errorf("unsafe file path %q: %w", need.FilePath, err)
	}

	target := need.FilePath
	if ext := "." + string(opts.Format); !strings.HasSuffix(strings.ToLower(target), ext) {
		target += ext
	}
	return filepath.Join(opts.OutputDir, target), nil
}

func (p *Processor) render(data []byte, need models.AssetNeed, opts *models.GenerationOptions) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	img = fitToBox(img, need.Dimensions)

	quality := opts.Quality
	if quality == 0 {
		quality = opts.Format.DefaultQuality()
	}
	return encode(img, opts.Format, quality)
}

// fitToBox downscales an oversized image to fit within the target box and
// pads the remainder with full transparency. Images already inside the box
// are left untouched rather than enlarged; upscaling only manufactures blur,
// and the quality gate is the place to flag an undersized generation.
func fitToBox(img image.Image, dims models.Dimensions) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if w == dims.Width && h == dims.Height {
		return img
	}
	if w <= dims.Width && h <= dims.Height {
		return img
	}

	fitted := imaging.Fit(img, dims.Width, dims.Height, imaging.Lanczos)
	canvas := imaging.New(dims.Width, dims.Height, color.NRGBA{})
	return imaging.PasteCenter(canvas, fitted)
}

func encode(img image.Image, format models.OutputFormat, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error

	switch format {
	case models.FormatJPG:
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	case models.FormatWebP:
		err = webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)})
	default:
		err = png.Encode(&buf, img)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// writeAtomic stages the bytes in a temp file and renames it into place so a
// crashed write never leaves a truncated artifact.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".genass-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

// Filename builds "{type}-{slug}-{WxH}-{timestamp}.{format}". Timestamps keep
// concurrent assets in a shared output directory from colliding.
func Filename(need models.AssetNeed, format models.OutputFormat, t time.Time) string {
	return fmt.Sprintf("%s-%s-%dx%d-%d.%s",
		need.Type,
		Slug(need.Description),
		need.Dimensions.Width,
		need.Dimensions.Height,
		t.UnixMilli(),
		format,
	)
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases a description down to alphanumerics and hyphens, truncated
// to 40 characters.
func Slug(s string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(s), "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > slugMaxLen {
		slug = slug[:slugMaxLen]
		slug = strings.TrimRight(slug, "-")
	}
	if slug == "" {
		slug = "asset"
	}
	return slug
}
