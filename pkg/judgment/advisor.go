// Package judgment asks a vision model for a suggested visual judgment.
// Suggestions are advisory: they prefill the inspector's choice and never
// change an AnalysisResult.
package judgment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/apex/log"

	"github.com/menta2k/banana-grader/pkg/catalog"
	"github.com/menta2k/banana-grader/pkg/client"
	"github.com/menta2k/banana-grader/pkg/processing"
	"github.com/menta2k/banana-grader/pkg/types"
)

// maxMemoRunes bounds the memo copied into the report
const maxMemoRunes = 200

// ErrNoSuggestion means the model answer could not be turned into a valid judgment
var ErrNoSuggestion = errors.New("no usable suggestion")

// Suggestion is a model-proposed visual judgment
type Suggestion struct {
	types.VisualJudgment
	Confidence float64 `json:"confidence"`
	Raw        string  `json:"-"`
}

// Advisor builds prompts from the catalog and parses model answers
type Advisor struct {
	client  client.VisionClient
	catalog *catalog.Catalog
	model   string
	prompt  string
}

// NewAdvisor creates an advisor for the given client and model
func NewAdvisor(c client.VisionClient, cat *catalog.Catalog, model string) *Advisor {
	if cat == nil {
		cat = catalog.Default()
	}
	return &Advisor{
		client:  c,
		catalog: cat,
		model:   model,
		prompt:  BuildPrompt(cat),
	}
}

// Prompt returns the prompt sent with every image
func (a *Advisor) Prompt() string {
	return a.prompt
}

// Suggest asks the model to grade the bounded image
func (a *Advisor) Suggest(ctx context.Context, img types.BoundedImage) (*Suggestion, error) {
	if len(img.Data) == 0 {
		return nil, fmt.Errorf("%w: empty bounded image", types.ErrInvalidImage)
	}

	imgB64 := processing.NewProcessor().EncodeForModel(img)
	raw, err := a.client.Query(ctx, a.model, a.prompt, imgB64, processing.MimeType(img.Format))
	if err != nil {
		return nil, fmt.Errorf("vision model query failed: %w", err)
	}

	s, err := a.parse(raw)
	if err != nil {
		log.WithError(err).WithField("model", a.model).Debug("discarding model answer")
		return nil, err
	}
	return s, nil
}

// BuildPrompt lists the catalog levels and asks for a JSON answer
func BuildPrompt(cat *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("You are assisting a banana quality inspector.\n")
	b.WriteString("Grade the ripeness of the bananas in this photo using exactly one of these levels:\n")
	for _, e := range cat.Entries() {
		fmt.Fprintf(&b, "- %d: %s. %s\n", e.Level, e.Name, e.Description)
	}
	b.WriteString(`
Return JSON only:
{"level": 0, "memo": "short factual note (<= 20 words)", "confidence": 0.0}

RULES
- "level" must be one of the integers listed above.
- "confidence" is between 0.0 and 1.0.
- Describe only what is visible: peel color, spots, bruises, mold.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`)
	return b.String()
}

type modelAnswer struct {
	Level      json.Number `json:"level"`
	Memo       string      `json:"memo"`
	Confidence float64     `json:"confidence"`
}

func (a *Advisor) parse(raw string) (*Suggestion, error) {
	clean := sanitizeModelJSON(raw)
	if !strings.HasPrefix(clean, "{") {
		return nil, fmt.Errorf("%w: model returned non-JSON response", ErrNoSuggestion)
	}

	var ans modelAnswer
	dec := json.NewDecoder(strings.NewReader(clean))
	dec.UseNumber()
	if err := dec.Decode(&ans); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoSuggestion, err)
	}

	n, err := wholeNumber(ans.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: level %q is not an integer", ErrNoSuggestion, ans.Level)
	}
	level := types.RipenessLevel(n)
	if _, ok := a.catalog.Lookup(level); !ok {
		return nil, fmt.Errorf("%w: level %d not in catalog", ErrNoSuggestion, n)
	}

	return &Suggestion{
		VisualJudgment: types.VisualJudgment{
			Level: level,
			Memo:  truncateRunes(strings.TrimSpace(ans.Memo), maxMemoRunes),
		},
		Confidence: clamp(ans.Confidence, 0, 1),
		Raw:        raw,
	}, nil
}

// wholeNumber accepts 6 as well as 6.0 or 6e0
func wholeNumber(v json.Number) (int64, error) {
	if n, err := v.Int64(); err == nil {
		return n, nil
	}
	f, err := v.Float64()
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, fmt.Errorf("%s is not a whole number", v)
	}
	return int64(f), nil
}

var (
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment  = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing     = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON removes code fences, comments, and trailing commas from a model answer
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
