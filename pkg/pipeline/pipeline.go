// Package pipeline runs decode, downscale and analysis as one cancellable unit.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/apex/log"

	"github.com/menta2k/banana-grader/pkg/analyzer"
	"github.com/menta2k/banana-grader/pkg/metrics"
	"github.com/menta2k/banana-grader/pkg/processing"
	"github.com/menta2k/banana-grader/pkg/types"
)

// Pipeline turns raw image bytes into an AnalysisResult. Each Run is independent;
// a Pipeline holds no per-image state and is safe for concurrent use.
type Pipeline struct {
	processor *processing.Processor
	analyzer  *analyzer.ImageAnalyzer
	pacer     Pacer
}

// Outcome is a completed analysis plus the bounded image it was computed from
type Outcome struct {
	Result  types.AnalysisResult `json:"result"`
	Bounded types.BoundedImage   `json:"bounded"`
	Elapsed time.Duration        `json:"elapsed"`
}

// New creates a pipeline. A nil pacer means NoPacing.
func New(processor *processing.Processor, imgAnalyzer *analyzer.ImageAnalyzer, pacer Pacer) *Pipeline {
	if processor == nil {
		processor = processing.NewProcessor()
	}
	if imgAnalyzer == nil {
		imgAnalyzer = analyzer.New()
	}
	if pacer == nil {
		pacer = NoPacing{}
	}
	return &Pipeline{
		processor: processor,
		analyzer:  imgAnalyzer,
		pacer:     pacer,
	}
}

// Processor returns the processor used for decoding and bounding
func (p *Pipeline) Processor() *processing.Processor {
	return p.processor
}

// Analyzer returns the image analyzer
func (p *Pipeline) Analyzer() *analyzer.ImageAnalyzer {
	return p.analyzer
}

// WithPacer returns a copy of the pipeline using pacer
func (p *Pipeline) WithPacer(pacer Pacer) *Pipeline {
	cp := *p
	if pacer == nil {
		pacer = NoPacing{}
	}
	cp.pacer = pacer
	return &cp
}

// Run paces, bounds and analyzes data. It returns either a complete Outcome or an
// error of kind ErrDecode, ErrInvalidImage or ErrCancelled, never both.
func (p *Pipeline) Run(ctx context.Context, data []byte) (*Outcome, error) {
	metrics.InFlight.Inc()
	defer metrics.InFlight.Dec()

	if err := p.pacer.Pace(ctx); err != nil {
		metrics.AnalysesTotal.WithLabelValues(metrics.ResultLabel(err)).Inc()
		return nil, err
	}

	start := time.Now()
	out, err := p.run(ctx, data)
	elapsed := time.Since(start)

	label := metrics.ResultLabel(err)
	metrics.AnalysesTotal.WithLabelValues(label).Inc()
	metrics.AnalysisDurationSeconds.WithLabelValues(label).Observe(elapsed.Seconds())
	if err != nil {
		return nil, err
	}

	out.Elapsed = elapsed
	metrics.PixelsAnalyzedTotal.Add(float64(out.Result.TotalPixels))
	metrics.DominantLevelTotal.WithLabelValues(metrics.LevelLabel(out.Result.DominantLevel)).Inc()

	log.WithFields(log.Fields{
		"dominant": int(out.Result.DominantLevel),
		"pixels":   out.Result.TotalPixels,
		"size":     fmt.Sprintf("%dx%d", out.Bounded.Width, out.Bounded.Height),
		"elapsed":  elapsed.String(),
	}).Debug("analysis complete")

	return out, nil
}

func (p *Pipeline) run(ctx context.Context, data []byte) (*Outcome, error) {
	bounded, err := p.processor.Bound(ctx, data)
	if err != nil {
		return nil, err
	}

	result, err := p.analyzer.Analyze(ctx, bounded.Image)
	if err != nil {
		return nil, err
	}

	return &Outcome{Result: result, Bounded: bounded}, nil
}

// RunFile loads a file or URL and runs the pipeline on it
func (p *Pipeline) RunFile(ctx context.Context, source string) (*Outcome, error) {
	data, err := p.processor.LoadSource(ctx, source)
	if err != nil {
		return nil, err
	}
	return p.Run(ctx, data)
}
