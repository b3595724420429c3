// Package grader grades banana ripeness from a photograph.
//
// An input photo is decoded, corrected for EXIF orientation, downscaled so its
// longer side is at most 800 pixels and re-encoded as a lossy JPEG. Every pixel
// of that bounded image is converted to HSV and classified into one of eight
// ripeness levels (2 = green ... 9 = dark/spoiled). The resulting histogram and
// its dominant level make up the AnalysisResult.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		grader "github.com/menta2k/banana-grader"
//	)
//
//	func main() {
//		g := grader.New()
//
//		outcome, err := g.AnalyzeFile(context.Background(), "banana.jpg")
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		info := outcome.Result.LevelInfo
//		fmt.Printf("Level %d (%s): %s\n", info.Level, info.Name, info.Recommendation)
//	}
//
// The package consists of these main components:
//
// 1. Vision (pkg/vision): RGB to HSV conversion and the pixel classifier
// 2. Analyzer (pkg/analyzer): histogram accumulation and dominant level selection
// 3. Processing (pkg/processing): decoding, orientation, downscaling and re-encoding
// 4. Pipeline (pkg/pipeline): pacing, cancellation and per-inspection sessions
// 5. Report (pkg/report): claim form validation and CSV rows
// 6. Judgment (pkg/judgment): optional vision-model suggestions for the visual judgment
//
// The classifier is a fixed set of hue, saturation and value thresholds. It makes
// no attempt at botanical accuracy and does not compensate for lighting.
package grader

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/menta2k/banana-grader/internal/config"
	"github.com/menta2k/banana-grader/pkg/analyzer"
	"github.com/menta2k/banana-grader/pkg/catalog"
	"github.com/menta2k/banana-grader/pkg/client"
	"github.com/menta2k/banana-grader/pkg/judgment"
	"github.com/menta2k/banana-grader/pkg/llamacpp"
	"github.com/menta2k/banana-grader/pkg/ollama"
	"github.com/menta2k/banana-grader/pkg/pipeline"
	"github.com/menta2k/banana-grader/pkg/processing"
	"github.com/menta2k/banana-grader/pkg/report"
	"github.com/menta2k/banana-grader/pkg/types"
)

// Version of the grader library
const Version = "1.0.0"

// ErrAdvisorDisabled is returned by Suggest when no vision model is configured
var ErrAdvisorDisabled = errors.New("visual judgment advisor is not configured")

// Grader provides a high-level interface for grading photos and building reports
type Grader struct {
	pipeline  *pipeline.Pipeline
	catalog   *catalog.Catalog
	assembler *report.Assembler
	advisor   *judgment.Advisor
}

// Options configures a Grader. Zero values select the defaults.
// Processing.CorrectOrientation is ignored; EXIF orientation is applied
// unless SkipOrientation is set.
type Options struct {
	Processing      processing.Config
	SkipOrientation bool
	Workers         int
	Pacer           pipeline.Pacer
	Report          report.Settings
	Advisor         *judgment.Advisor
}

// New creates a Grader with default settings and no pacing
func New() *Grader {
	return NewWithOptions(Options{})
}

// NewWithOptions creates a Grader from explicit options
func NewWithOptions(opts Options) *Grader {
	cat := catalog.Default()

	pc := opts.Processing
	pc.CorrectOrientation = !opts.SkipOrientation
	proc := processing.NewProcessorWithConfig(pc)

	imgAnalyzer := analyzer.NewWithConfig(analyzer.Config{
		Workers: opts.Workers,
		Catalog: cat,
	})

	return &Grader{
		pipeline:  pipeline.New(proc, imgAnalyzer, opts.Pacer),
		catalog:   cat,
		assembler: report.NewAssembler(cat, opts.Report),
		advisor:   opts.Advisor,
	}
}

// NewFromConfig validates cfg and creates a Grader from it, including the
// advisor client when one is enabled.
func NewFromConfig(cfg *config.Config) (*Grader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	opts := Options{
		Processing:      cfg.ProcessingConfig(),
		SkipOrientation: !cfg.Analysis.CorrectOrientation,
		Workers:         cfg.Analysis.Workers,
		Pacer:           pipeline.PacerFromMillis(cfg.Analysis.PacingMillis),
		Report:          cfg.ReportSettings(),
	}

	if cfg.Advisor.Enabled {
		vc, err := NewVisionClient(cfg.Advisor.Backend, cfg.Advisor.URL, cfg.AdvisorTimeout())
		if err != nil {
			return nil, err
		}
		opts.Advisor = judgment.NewAdvisor(vc, catalog.Default(), cfg.Advisor.Model)
	}

	return NewWithOptions(opts), nil
}

// NewVisionClient creates the client for an advisor backend
func NewVisionClient(backend, url string, timeout time.Duration) (client.VisionClient, error) {
	switch backend {
	case config.BackendOllama:
		c, err := ollama.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		c.SetTimeout(timeout)
		return c, nil
	case config.BackendLlamaCpp:
		c, err := llamacpp.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unknown advisor backend %q", backend)
	}
}

// Pipeline returns the underlying pipeline
func (g *Grader) Pipeline() *pipeline.Pipeline {
	return g.pipeline
}

// Catalog returns the ripeness level catalog
func (g *Grader) Catalog() *catalog.Catalog {
	return g.catalog
}

// Assembler returns the report assembler
func (g *Grader) Assembler() *report.Assembler {
	return g.assembler
}

// HasAdvisor reports whether visual judgment suggestions are available
func (g *Grader) HasAdvisor() bool {
	return g.advisor != nil
}

// Levels returns the catalog in ascending level order
func (g *Grader) Levels() []types.LevelInfo {
	return g.catalog.Entries()
}

// Analyze bounds and analyzes encoded image bytes
func (g *Grader) Analyze(ctx context.Context, data []byte) (*pipeline.Outcome, error) {
	return g.pipeline.Run(ctx, data)
}

// AnalyzeFile loads a file path or http(s) URL and analyzes it
func (g *Grader) AnalyzeFile(ctx context.Context, source string) (*pipeline.Outcome, error) {
	return g.pipeline.RunFile(ctx, source)
}

// AnalyzeImage analyzes an already decoded image as-is, without bounding
func (g *Grader) AnalyzeImage(ctx context.Context, img image.Image) (types.AnalysisResult, error) {
	return g.pipeline.Analyzer().Analyze(ctx, img)
}

// Suggest asks the advisor for a visual judgment of a bounded image
func (g *Grader) Suggest(ctx context.Context, bounded types.BoundedImage) (*judgment.Suggestion, error) {
	if g.advisor == nil {
		return nil, ErrAdvisorDisabled
	}
	return g.advisor.Suggest(ctx, bounded)
}

// NewSession creates an inspection session on this grader's pipeline
func (g *Grader) NewSession() *pipeline.Session {
	return pipeline.NewSession(g.pipeline)
}

// NewForm returns a claim form prefilled with today's dates and the default unit
func (g *Grader) NewForm() report.Form {
	return g.assembler.NewForm(time.Now())
}

// BuildReport combines form fields, the inspector's judgment and an outcome.
// A nil outcome produces a report without analysis columns.
func (g *Grader) BuildReport(form report.Form, vj types.VisualJudgment, outcome *pipeline.Outcome) report.Report {
	r := report.Report{Form: form, Judgment: vj}
	if outcome != nil {
		result := outcome.Result
		r.Analysis = &result
	}
	return r
}
