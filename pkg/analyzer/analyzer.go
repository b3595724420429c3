package analyzer

import (
	"context"
	"fmt"
	"image"
	"runtime"
	"sync"

	"github.com/apex/log"
	"github.com/disintegration/imaging"

	"github.com/menta2k/banana-grader/pkg/catalog"
	"github.com/menta2k/banana-grader/pkg/types"
	"github.com/menta2k/banana-grader/pkg/vision"
)

// rowsPerCheck is how many rows a worker classifies between cancellation checks
const rowsPerCheck = 64

// ImageAnalyzer builds ripeness histograms from pixel buffers
type ImageAnalyzer struct {
	config Config
}

// Config holds configuration for the image analyzer
type Config struct {
	// Workers is the number of goroutines classifying rows; 0 means GOMAXPROCS
	Workers int
	Catalog *catalog.Catalog
}

// New creates a new ImageAnalyzer with default configuration
func New() *ImageAnalyzer {
	return &ImageAnalyzer{
		config: Config{
			Workers: 0,
			Catalog: catalog.Default(),
		},
	}
}

// NewWithConfig creates a new ImageAnalyzer with custom configuration
func NewWithConfig(config Config) *ImageAnalyzer {
	if config.Catalog == nil {
		config.Catalog = catalog.Default()
	}
	return &ImageAnalyzer{config: config}
}

// Catalog returns the level catalog used to fill LevelInfo
func (a *ImageAnalyzer) Catalog() *catalog.Catalog {
	return a.config.Catalog
}

// Analyze classifies every pixel of img and selects the dominant level.
// It returns ErrInvalidImage for an empty buffer and a cancellation error if ctx
// is done before the histogram is complete; no result is returned in either case.
func (a *ImageAnalyzer) Analyze(ctx context.Context, img image.Image) (types.AnalysisResult, error) {
	if err := a.ValidateImage(img); err != nil {
		return types.AnalysisResult{}, err
	}
	if err := types.CheckContext(ctx, "analyze"); err != nil {
		return types.AnalysisResult{}, err
	}

	buf := toNRGBA(img)
	counts, err := a.classifyPixels(ctx, buf)
	if err != nil {
		return types.AnalysisResult{}, err
	}

	hist := make(types.Histogram)
	for l := types.MinLevel; l <= types.MaxLevel; l++ {
		if n := counts[l]; n > 0 {
			hist[l] = n
		}
	}

	dominant, ok := DominantLevel(hist)
	if !ok {
		return types.AnalysisResult{}, fmt.Errorf("%w: no pixels classified", types.ErrInvalidImage)
	}
	info, ok := a.config.Catalog.Lookup(dominant)
	if !ok {
		return types.AnalysisResult{}, fmt.Errorf("level %d missing from catalog", dominant)
	}

	dims := a.GetImageInfo(buf)
	result := types.AnalysisResult{
		DominantLevel: dominant,
		Distribution:  hist,
		TotalPixels:   dims.Area,
		LevelInfo:     info,
	}

	log.WithFields(log.Fields{
		"width":    dims.Width,
		"height":   dims.Height,
		"dominant": int(dominant),
		"levels":   result.DistinctLevels(),
	}).Debug("image analyzed")

	return result, nil
}

// DominantLevel walks the histogram in ascending level order and keeps the first
// level with the strictly highest count, so ties go to the lowest level.
func DominantLevel(hist types.Histogram) (types.RipenessLevel, bool) {
	var (
		best      types.RipenessLevel
		bestCount int
		found     bool
	)
	for _, l := range hist.Levels() {
		if n := hist[l]; !found || n > bestCount {
			best, bestCount, found = l, n, true
		}
	}
	return best, found
}

// classifyPixels splits the rows into bands, counts per band, then merges.
func (a *ImageAnalyzer) classifyPixels(ctx context.Context, buf *image.NRGBA) ([types.MaxLevel + 1]int, error) {
	var total [types.MaxLevel + 1]int

	height := buf.Rect.Dy()
	workers := a.config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > height {
		workers = height
	}
	band := (height + workers - 1) / workers

	partials := make([][types.MaxLevel + 1]int, workers)
	errs := make([]error, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		y0 := w * band
		y1 := y0 + band
		if y1 > height {
			y1 = height
		}
		if y0 >= y1 {
			continue
		}
		wg.Add(1)
		go func(w, y0, y1 int) {
			defer wg.Done()
			errs[w] = classifyRows(ctx, buf, y0, y1, &partials[w])
		}(w, y0, y1)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return total, err
		}
	}
	for _, p := range partials {
		for l := range p {
			total[l] += p[l]
		}
	}
	return total, nil
}

func classifyRows(ctx context.Context, buf *image.NRGBA, y0, y1 int, counts *[types.MaxLevel + 1]int) error {
	width := buf.Rect.Dx()
	for y := y0; y < y1; y++ {
		if (y-y0)%rowsPerCheck == 0 {
			if err := types.CheckContext(ctx, "pixel loop"); err != nil {
				return err
			}
		}
		i := y * buf.Stride
		for x := 0; x < width; x++ {
			level := vision.ClassifyRGB(buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2])
			counts[level]++
			i += 4
		}
	}
	return nil
}

// toNRGBA returns a zero-origin NRGBA view of img, copying only when needed
func toNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok && n.Rect.Min == (image.Point{}) {
		return n
	}
	return imaging.Clone(img)
}

// GetImageInfo returns basic information about an image
func (a *ImageAnalyzer) GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	var ratio float64
	if height > 0 {
		ratio = float64(width) / float64(height)
	}

	return ImageInfo{
		Width:       width,
		Height:      height,
		AspectRatio: ratio,
		Area:        width * height,
	}
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
	Area        int     `json:"area"`
}

// ValidateImage rejects nil and zero-pixel images
func (a *ImageAnalyzer) ValidateImage(img image.Image) error {
	if img == nil {
		return fmt.Errorf("%w: nil image", types.ErrInvalidImage)
	}
	bounds := img.Bounds()
	if bounds.Dx() <= 0 || bounds.Dy() <= 0 {
		return fmt.Errorf("%w: %dx%d", types.ErrInvalidImage, bounds.Dx(), bounds.Dy())
	}
	return nil
}
