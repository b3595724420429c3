package types

import (
	"image"
	"sort"
)

// RipenessLevel identifies one of the eight ripeness buckets (2..9)
type RipenessLevel int

// Ripeness levels in ascending order
const (
	Level2 RipenessLevel = iota + 2
	Level3
	Level4
	Level5
	Level6
	Level7
	Level8
	Level9
)

// MinLevel and MaxLevel bound the valid level ids
const (
	MinLevel = Level2
	MaxLevel = Level9
)

// Valid reports whether l is one of the eight known levels
func (l RipenessLevel) Valid() bool {
	return l >= MinLevel && l <= MaxLevel
}

// RGB is an 8-bit color triple; alpha is never considered
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// HSV holds hue in whole degrees [0,360) and saturation/value in [0,1]
type HSV struct {
	H int     `json:"h"`
	S float64 `json:"s"`
	V float64 `json:"v"`
}

// LevelInfo is the immutable catalog entry for a ripeness level
type LevelInfo struct {
	Level          RipenessLevel `json:"level"`
	Name           string        `json:"name"`
	Swatch         RGB           `json:"swatch"`
	Description    string        `json:"description"`
	Recommendation string        `json:"recommendation"`
}

// Histogram maps observed levels to pixel counts. Only observed levels are present.
type Histogram map[RipenessLevel]int

// Levels returns the observed levels in ascending order
func (h Histogram) Levels() []RipenessLevel {
	levels := make([]RipenessLevel, 0, len(h))
	for l := range h {
		levels = append(levels, l)
	}
	sort.Slice(levels, func(i, j int) bool { return levels[i] < levels[j] })
	return levels
}

// Total returns the sum of all bucket counts
func (h Histogram) Total() int {
	total := 0
	for _, n := range h {
		total += n
	}
	return total
}

// Clone returns an independent copy
func (h Histogram) Clone() Histogram {
	out := make(Histogram, len(h))
	for l, n := range h {
		out[l] = n
	}
	return out
}

// AnalysisResult is the outcome of analyzing one bounded image.
// It is never mutated once returned; a re-analysis produces a new value.
type AnalysisResult struct {
	DominantLevel RipenessLevel `json:"dominant_level"`
	Distribution  Histogram     `json:"distribution"`
	TotalPixels   int           `json:"total_pixels"`
	LevelInfo     LevelInfo     `json:"level_info"`
}

// DistinctLevels returns the number of distinct observed levels
func (r AnalysisResult) DistinctLevels() int {
	return len(r.Distribution)
}

// Share returns the fraction of pixels classified as level l
func (r AnalysisResult) Share(l RipenessLevel) float64 {
	if r.TotalPixels == 0 {
		return 0
	}
	return float64(r.Distribution[l]) / float64(r.TotalPixels)
}

// BoundedImage is a re-encoded image whose larger side does not exceed the configured bound
type BoundedImage struct {
	Image   image.Image `json:"-"`
	Data    []byte      `json:"-"`
	Format  string      `json:"format"`
	Quality float64     `json:"quality"`
	Width   int         `json:"width"`
	Height  int         `json:"height"`
	// Scaled is true when the source exceeded the bound and was resized
	Scaled bool `json:"scaled"`
}

// VisualJudgment is the inspector's manually chosen level plus a free-text memo
type VisualJudgment struct {
	Level RipenessLevel `json:"level"`
	Memo  string        `json:"memo"`
}
