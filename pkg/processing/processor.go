package processing

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/apex/log"
	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/banana-grader/pkg/types"
)

// Defaults for bounded images
const (
	DefaultMaxDimension  = 800
	DefaultEncodeQuality = 0.7
	DefaultEncodeFormat  = "jpeg"
)

// maxDecodePixels caps the width*height an input header may declare
const maxDecodePixels = 50_000_000

// maxDownloadBytes caps images fetched over HTTP
var maxDownloadBytes int64 = 50 << 20

// ErrTooLarge means a downloaded image exceeded maxDownloadBytes
var ErrTooLarge = errors.New("image too large")

// Processor decodes input photos and produces bounded, re-encoded images
type Processor struct {
	config Config
}

// Config holds downscaling and re-encoding settings
type Config struct {
	MaxDimension int
	// Quality in (0,1], used only for lossy formats
	Quality            float64
	Format             string
	CorrectOrientation bool
}

// NewProcessor creates a new image processor with default settings
func NewProcessor() *Processor {
	return &Processor{
		config: Config{
			MaxDimension:       DefaultMaxDimension,
			Quality:            DefaultEncodeQuality,
			Format:             DefaultEncodeFormat,
			CorrectOrientation: true,
		},
	}
}

// NewProcessorWithConfig creates a processor, filling zero fields with defaults
func NewProcessorWithConfig(config Config) *Processor {
	if config.MaxDimension <= 0 {
		config.MaxDimension = DefaultMaxDimension
	}
	if config.Quality <= 0 || config.Quality > 1 {
		config.Quality = DefaultEncodeQuality
	}
	if config.Format == "" {
		config.Format = DefaultEncodeFormat
	}
	return &Processor{config: config}
}

// Config returns the processor settings
func (p *Processor) Config() Config {
	return p.config
}

// LoadSource reads raw image bytes from a file path or an http(s) URL
func (p *Processor) LoadSource(ctx context.Context, source string) ([]byte, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		return p.LoadFromURL(ctx, source)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read image file: %w", err)
	}
	return data, nil
}

// LoadFromURL downloads raw image bytes
func (p *Processor) LoadFromURL(ctx context.Context, imageURL string) ([]byte, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	client := &http.Client{
		Timeout: 30 * time.Second,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "Banana-Grader/1.0")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: HTTP %d %s", resp.StatusCode, resp.Status)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(data)) > maxDownloadBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrTooLarge, maxDownloadBytes)
	}
	return data, nil
}

// Decode interprets data as an image. Failures wrap types.ErrDecode.
func (p *Processor) Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty input", types.ErrDecode)
	}

	if err := checkDeclaredSize(data); err != nil {
		return nil, "", err
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err == nil {
		return img, format, nil
	}

	// Fallback: explicit WebP decode for variants x/image does not handle
	if wimg, werr := webp.Decode(bytes.NewReader(data)); werr == nil {
		return wimg, "webp", nil
	}

	return nil, "", fmt.Errorf("%w: %v", types.ErrDecode, err)
}

// checkDeclaredSize reads only the image header and rejects inputs whose
// declared dimensions exceed maxDecodePixels, before any pixel buffer is allocated.
func checkDeclaredSize(data []byte) error {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		wcfg, werr := webp.DecodeConfig(bytes.NewReader(data))
		if werr != nil {
			return fmt.Errorf("%w: %v", types.ErrDecode, err)
		}
		cfg = wcfg
	}

	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > maxDecodePixels {
		return fmt.Errorf("%w: declared size %dx%d exceeds the %d pixel limit",
			types.ErrDecode, cfg.Width, cfg.Height, maxDecodePixels)
	}
	return nil
}

// TargetSize applies the bounding rule: landscape images wider than bound are
// scaled to width == bound, otherwise images taller than bound are scaled to
// height == bound. Images within bounds are never upscaled.
func TargetSize(width, height, bound int) (int, int, bool) {
	if bound <= 0 {
		return width, height, false
	}
	if width > height && width > bound {
		h := int(math.Max(1, math.Round(float64(height)*float64(bound)/float64(width))))
		return bound, h, true
	}
	if height > bound {
		w := int(math.Max(1, math.Round(float64(width)*float64(bound)/float64(height))))
		return w, bound, true
	}
	return width, height, false
}

// Downscale resizes img so its larger side fits the configured bound
func (p *Processor) Downscale(img image.Image) (image.Image, bool) {
	b := img.Bounds()
	w, h, scaled := TargetSize(b.Dx(), b.Dy(), p.config.MaxDimension)
	if !scaled {
		return img, false
	}
	return imaging.Resize(img, w, h, imaging.Lanczos), true
}

// Encode writes img in the given format; quality is in (0,1] and ignored for png
func (p *Processor) Encode(img image.Image, format string, quality float64) ([]byte, error) {
	var buf bytes.Buffer
	q := qualityPercent(quality)

	switch normalizeFormat(format) {
	case "png":
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
	case "webp":
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(q)}); err != nil {
			return nil, fmt.Errorf("failed to encode webp: %w", err)
		}
	case "jpeg":
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(q)); err != nil {
			return nil, fmt.Errorf("failed to encode jpeg: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
	return buf.Bytes(), nil
}

// Bound decodes data, corrects orientation, downscales and re-encodes it.
// The returned image is decoded from the re-encoded bytes, so analysis sees
// exactly what would be stored. Cancellation is checked before each stage.
func (p *Processor) Bound(ctx context.Context, data []byte) (types.BoundedImage, error) {
	if err := types.CheckContext(ctx, "decode"); err != nil {
		return types.BoundedImage{}, err
	}
	img, srcFormat, err := p.Decode(data)
	if err != nil {
		return types.BoundedImage{}, err
	}

	if p.config.CorrectOrientation && srcFormat == "jpeg" {
		if o := Orientation(data); o != 1 {
			img = CorrectOrientation(img, o)
			log.WithField("orientation", o).Debug("applied orientation correction")
		}
	}

	if err := types.CheckContext(ctx, "downscale"); err != nil {
		return types.BoundedImage{}, err
	}
	src := img.Bounds()
	resized, scaled := p.Downscale(img)

	format := normalizeFormat(p.config.Format)
	encoded, err := p.Encode(resized, format, p.config.Quality)
	if err != nil {
		return types.BoundedImage{}, err
	}
	reloaded, _, err := p.Decode(encoded)
	if err != nil {
		return types.BoundedImage{}, fmt.Errorf("failed to reload bounded image: %w", err)
	}

	rb := reloaded.Bounds()
	log.WithFields(log.Fields{
		"source":    fmt.Sprintf("%dx%d", src.Dx(), src.Dy()),
		"bounded":   fmt.Sprintf("%dx%d", rb.Dx(), rb.Dy()),
		"format":    format,
		"in_bytes":  len(data),
		"out_bytes": len(encoded),
	}).Debug("image bounded")

	return types.BoundedImage{
		Image:   reloaded,
		Data:    encoded,
		Format:  format,
		Quality: p.config.Quality,
		Width:   rb.Dx(),
		Height:  rb.Dy(),
		Scaled:  scaled,
	}, nil
}

// EncodeForModel returns the bounded image as base64 for vision model requests
func (p *Processor) EncodeForModel(b types.BoundedImage) string {
	return base64.StdEncoding.EncodeToString(b.Data)
}

// SaveImage writes the bounded image bytes to path
func (p *Processor) SaveImage(b types.BoundedImage, path string) error {
	if err := os.WriteFile(path, b.Data, 0o644); err != nil {
		return fmt.Errorf("failed to save bounded image: %w", err)
	}
	return nil
}

// MimeType returns the MIME type for a bounded image format
func MimeType(format string) string {
	switch normalizeFormat(format) {
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// Extension returns the file extension (without dot) for a format
func Extension(format string) string {
	switch normalizeFormat(format) {
	case "png":
		return "png"
	case "webp":
		return "webp"
	default:
		return "jpg"
	}
}

func normalizeFormat(format string) string {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "jpg", "jpeg", "":
		return "jpeg"
	default:
		return f
	}
}

// qualityPercent maps (0,1] onto the 1..100 scale used by the encoders
func qualityPercent(q float64) int {
	pct := int(math.Round(q * 100))
	if pct < 1 {
		return 1
	}
	if pct > 100 {
		return 100
	}
	return pct
}
