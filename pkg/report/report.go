// Package report assembles claim report rows from form fields, the inspector's
// visual judgment and an image analysis result.
package report

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/menta2k/banana-grader/pkg/catalog"
	"github.com/menta2k/banana-grader/pkg/types"
)

// DateLayout is the form date format
const DateLayout = "2006-01-02"

// DefaultClaimTypes are the selectable claim categories
var DefaultClaimTypes = []string{
	"過熟", "未熟", "くされ", "おされ＆傷",
	"カビ", "青ぶく", "黄ぶく", "その他",
}

// DefaultUnits are the selectable claim units
var DefaultUnits = []string{
	"本（個別）", "房（束）", "袋（パック）", "箱（ボックス）",
	"ケース", "パレット", "コンテナ", "キログラム", "その他",
}

// DefaultUnit is preselected on new forms
const DefaultUnit = "袋（パック）"

// Settings are the selectable values for a claim form
type Settings struct {
	ClaimTypes  []string `json:"claim_types"`
	Units       []string `json:"units"`
	DefaultUnit string   `json:"default_unit"`
}

// DefaultSettings returns the standard claim types and units
func DefaultSettings() Settings {
	return Settings{
		ClaimTypes:  append([]string(nil), DefaultClaimTypes...),
		Units:       append([]string(nil), DefaultUnits...),
		DefaultUnit: DefaultUnit,
	}
}

// Form is the fixed set of claim form fields
type Form struct {
	InspectorID   string `json:"inspector_id"`
	DeliveryDate  string `json:"delivery_date"`
	CaptureDate   string `json:"capture_date"`
	Supplier      string `json:"supplier"`
	ProductCode   string `json:"product_code"`
	LotNumber     string `json:"lot_number"`
	ClaimType     string `json:"claim_type"`
	ClaimUnit     string `json:"claim_unit"`
	ClaimQuantity int    `json:"claim_quantity"`
	Notes         string `json:"notes"`
}

// Report is everything that goes into one CSV row
type Report struct {
	Form     Form                  `json:"form"`
	Judgment types.VisualJudgment  `json:"judgment"`
	Analysis *types.AnalysisResult `json:"analysis,omitempty"`
}

// Header is the column order of a report row
var Header = []string{
	"inspector_id",
	"delivery_date",
	"capture_date",
	"supplier",
	"product_code",
	"lot_number",
	"claim_type",
	"claim_unit",
	"claim_quantity",
	"notes",
	"visual_level",
	"visual_level_name",
	"visual_memo",
	"analysis_level",
	"analysis_level_name",
	"analysis_description",
	"analysis_recommendation",
	"total_pixels",
	"distinct_levels",
	"distribution",
}

// ErrInvalidForm wraps every form validation failure
var ErrInvalidForm = errors.New("invalid report form")

// Assembler validates forms and renders report rows
type Assembler struct {
	catalog  *catalog.Catalog
	settings Settings
}

// NewAssembler creates an assembler. Empty settings fall back to the defaults.
func NewAssembler(cat *catalog.Catalog, settings Settings) *Assembler {
	if cat == nil {
		cat = catalog.Default()
	}
	def := DefaultSettings()
	if len(settings.ClaimTypes) == 0 {
		settings.ClaimTypes = def.ClaimTypes
	}
	if len(settings.Units) == 0 {
		settings.Units = def.Units
	}
	if settings.DefaultUnit == "" {
		settings.DefaultUnit = def.DefaultUnit
	}
	return &Assembler{catalog: cat, settings: settings}
}

// Settings returns the selectable values
func (a *Assembler) Settings() Settings {
	return a.settings
}

// NewForm returns a form with today's dates and the default unit
func (a *Assembler) NewForm(now time.Time) Form {
	today := now.Format(DateLayout)
	return Form{
		DeliveryDate: today,
		CaptureDate:  today,
		ClaimUnit:    a.settings.DefaultUnit,
	}
}

// Validate checks dates, selections and the visual judgment level
func (a *Assembler) Validate(r Report) error {
	var problems []string

	f := r.Form
	dates := []struct{ name, value string }{
		{"delivery_date", f.DeliveryDate},
		{"capture_date", f.CaptureDate},
	}
	for _, d := range dates {
		if d.value == "" {
			continue
		}
		if _, err := time.Parse(DateLayout, d.value); err != nil {
			problems = append(problems, fmt.Sprintf("%s %q is not YYYY-MM-DD", d.name, d.value))
		}
	}
	if f.ClaimType != "" && !contains(a.settings.ClaimTypes, f.ClaimType) {
		problems = append(problems, fmt.Sprintf("unknown claim type %q", f.ClaimType))
	}
	if f.ClaimUnit != "" && !contains(a.settings.Units, f.ClaimUnit) {
		problems = append(problems, fmt.Sprintf("unknown claim unit %q", f.ClaimUnit))
	}
	if f.ClaimQuantity < 0 {
		problems = append(problems, "claim quantity must not be negative")
	}
	if r.Judgment.Level != 0 && !r.Judgment.Level.Valid() {
		problems = append(problems, fmt.Sprintf("visual level %d out of range", r.Judgment.Level))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidForm, strings.Join(problems, "; "))
	}
	return nil
}

// Row renders r in Header order
func (a *Assembler) Row(r Report) ([]string, error) {
	if err := a.Validate(r); err != nil {
		return nil, err
	}

	f := r.Form
	row := []string{
		f.InspectorID,
		f.DeliveryDate,
		f.CaptureDate,
		f.Supplier,
		f.ProductCode,
		f.LotNumber,
		f.ClaimType,
		f.ClaimUnit,
		strconv.Itoa(f.ClaimQuantity),
		f.Notes,
	}

	if r.Judgment.Level != 0 {
		info, _ := a.catalog.Lookup(r.Judgment.Level)
		row = append(row, strconv.Itoa(int(r.Judgment.Level)), info.Name, r.Judgment.Memo)
	} else {
		row = append(row, "", "", r.Judgment.Memo)
	}

	if res := r.Analysis; res != nil {
		row = append(row,
			strconv.Itoa(int(res.DominantLevel)),
			res.LevelInfo.Name,
			res.LevelInfo.Description,
			res.LevelInfo.Recommendation,
			strconv.Itoa(res.TotalPixels),
			strconv.Itoa(res.DistinctLevels()),
			FormatDistribution(res.Distribution),
		)
	} else {
		row = append(row, "", "", "", "", "", "", "")
	}

	return row, nil
}

// FormatDistribution renders a histogram as "level:count" pairs in ascending order
func FormatDistribution(h types.Histogram) string {
	parts := make([]string, 0, len(h))
	for _, l := range h.Levels() {
		parts = append(parts, fmt.Sprintf("%d:%d", l, h[l]))
	}
	return strings.Join(parts, ";")
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
