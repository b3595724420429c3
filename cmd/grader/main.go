package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/apex/log"
	"github.com/apex/log/handlers/text"

	grader "github.com/menta2k/banana-grader"
	"github.com/menta2k/banana-grader/internal/config"
	"github.com/menta2k/banana-grader/internal/utils"
	"github.com/menta2k/banana-grader/pkg/pipeline"
	"github.com/menta2k/banana-grader/pkg/processing"
	"github.com/menta2k/banana-grader/pkg/report"
	"github.com/menta2k/banana-grader/pkg/types"
)

func main() {
	var configPath, in, outDir, csvPath string
	var keepBounded, bom, jsonOut, suggest bool
	var maxDim, pacing, level int
	var quality float64
	var format, backend, url, model, logLevel, memo string
	var form report.Form

	flag.StringVar(&configPath, "config", config.GetConfigPath(), "config file (JSON); missing file means defaults")
	flag.StringVar(&in, "in", "", "input image, directory or URL; extra inputs may follow as arguments")
	flag.StringVar(&outDir, "out", "out", "directory for bounded copies (with -keep-bounded)")
	flag.StringVar(&csvPath, "csv", "", "report CSV to append to (default from config)")
	flag.BoolVar(&keepBounded, "keep-bounded", false, "write the bounded, re-encoded image next to the report")
	flag.BoolVar(&bom, "bom", false, "start a new CSV file with a UTF-8 byte order mark")
	flag.BoolVar(&jsonOut, "json", false, "print each analysis as JSON instead of a summary line")

	flag.IntVar(&maxDim, "max", 0, "max long side of the bounded image (0 = config)")
	flag.Float64Var(&quality, "quality", 0, "encode quality in (0,1] (0 = config)")
	flag.StringVar(&format, "format", "", "bounded image format: jpeg|png|webp (empty = config)")
	flag.IntVar(&pacing, "pacing", -1, "delay before each analysis in ms (-1 = config, 0 = none)")

	flag.StringVar(&form.InspectorID, "inspector", "", "inspector id")
	flag.StringVar(&form.Supplier, "supplier", "", "supplier")
	flag.StringVar(&form.ProductCode, "product", "", "product code")
	flag.StringVar(&form.LotNumber, "lot", "", "lot number")
	flag.StringVar(&form.DeliveryDate, "delivery-date", "", "delivery date YYYY-MM-DD (default today)")
	flag.StringVar(&form.ClaimType, "claim-type", "", "claim type")
	flag.StringVar(&form.ClaimUnit, "unit", "", "claim unit (default from config)")
	flag.IntVar(&form.ClaimQuantity, "quantity", 0, "claim quantity")
	flag.StringVar(&form.Notes, "notes", "", "free-text notes")
	flag.IntVar(&level, "level", 0, "visual judgment level 2-9 (0 = none)")
	flag.StringVar(&memo, "memo", "", "visual judgment memo")

	flag.BoolVar(&suggest, "suggest", false, "ask the vision model for a visual judgment when -level is 0")
	flag.StringVar(&backend, "backend", "", "advisor backend: ollama or llamacpp (enables the advisor)")
	flag.StringVar(&url, "url", "", "advisor server URL")
	flag.StringVar(&model, "model", "", "advisor model name")
	flag.StringVar(&logLevel, "log-level", "", "debug|info|warn|error (empty = config)")

	flag.Parse()

	log.SetHandler(text.New(os.Stderr))

	inputs := flag.Args()
	if in != "" {
		inputs = append([]string{in}, inputs...)
	}
	if len(inputs) == 0 {
		log.Fatalf("usage: %s [-config cfg.json] [-csv report.csv] [-keep-bounded] [-level 6 -memo text] -in photo.jpg|dir|URL [more inputs]", filepath.Base(os.Args[0]))
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	applyFlags(cfg, maxDim, quality, format, pacing, backend, url, model, logLevel)

	lvl, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Fatal("invalid log level")
	}
	log.SetLevel(lvl)

	g, err := grader.NewFromConfig(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize grader")
	}

	files, err := expandInputs(inputs)
	if err != nil {
		log.WithError(err).Fatal("failed to collect inputs")
	}
	if keepBounded {
		if err := utils.EnsureDir(outDir); err != nil {
			log.WithError(err).Fatal("failed to create output directory")
		}
	}

	form, judgment, err := prepareReport(g, form, level, memo)
	if err != nil {
		log.WithError(err).Fatal("invalid report fields")
	}

	if csvPath == "" {
		csvPath = cfg.Report.OutputPath
	}
	csvFile, writer, err := openReport(csvPath, g.Assembler(), bom)
	if err != nil {
		log.WithError(err).Fatal("failed to open report")
	}
	defer csvFile.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// dominant level counts across inputs
	summary := types.Histogram{}
	failed := 0
	for _, file := range files {
		outcome, err := g.AnalyzeFile(ctx, file)
		if err != nil {
			failed++
			log.WithError(err).WithField("file", file).Error("analysis failed")
			if types.IsCancelled(err) {
				break
			}
			continue
		}
		summary[outcome.Result.DominantLevel]++

		if keepBounded {
			ext := processing.Extension(outcome.Bounded.Format)
			dst := utils.GenerateOutputFilename(file, outDir, "", "_bounded", ext)
			if err := g.Pipeline().Processor().SaveImage(outcome.Bounded, dst); err != nil {
				log.WithError(err).WithField("file", dst).Warn("failed to keep bounded image")
			} else {
				log.WithFields(log.Fields{
					"file": dst,
					"size": utils.FormatFileSize(int64(len(outcome.Bounded.Data))),
				}).Info("wrote bounded image")
			}
		}

		vj := judgment
		if vj.Level == 0 && suggest {
			vj = suggestJudgment(ctx, g, outcome, vj)
		}

		if err := writer.Write(g.BuildReport(form, vj, outcome)); err != nil {
			if ferr := writer.Flush(); ferr != nil {
				log.WithError(ferr).Error("failed to flush report")
			}
			csvFile.Close()
			log.WithError(err).Fatal("failed to write report row")
		}

		printOutcome(file, outcome, jsonOut)
	}

	if err := writer.Flush(); err != nil {
		log.WithError(err).Fatal("failed to flush report")
	}

	printSummary(summary, failed, csvPath)
	if failed > 0 {
		os.Exit(1)
	}
}

func applyFlags(cfg *config.Config, maxDim int, quality float64, format string, pacing int, backend, url, model, logLevel string) {
	if maxDim > 0 {
		cfg.Analysis.MaxDimension = maxDim
	}
	if quality > 0 {
		cfg.Analysis.EncodeQuality = quality
	}
	if format != "" {
		cfg.Analysis.EncodeFormat = format
	}
	if pacing >= 0 {
		cfg.Analysis.PacingMillis = pacing
	}
	if backend != "" {
		cfg.Advisor.Enabled = true
		cfg.Advisor.Backend = backend
	}
	if url != "" {
		cfg.Advisor.URL = url
	}
	if model != "" {
		cfg.Advisor.Model = model
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
}

// prepareReport fills form defaults and validates the fields shared by every
// row, so a bad flag fails before the report file is touched
func prepareReport(g *grader.Grader, form report.Form, level int, memo string) (report.Form, types.VisualJudgment, error) {
	base := g.NewForm()
	if form.DeliveryDate == "" {
		form.DeliveryDate = base.DeliveryDate
	}
	form.CaptureDate = base.CaptureDate
	if form.ClaimUnit == "" {
		form.ClaimUnit = base.ClaimUnit
	}
	vj := types.VisualJudgment{Level: types.RipenessLevel(level), Memo: memo}

	if err := g.Assembler().Validate(report.Report{Form: form, Judgment: vj}); err != nil {
		return form, vj, err
	}
	return form, vj, nil
}

// expandInputs keeps URLs as they are and expands directories
func expandInputs(inputs []string) ([]string, error) {
	var files []string
	for _, in := range inputs {
		if strings.HasPrefix(in, "http://") || strings.HasPrefix(in, "https://") {
			files = append(files, in)
			continue
		}
		found, err := utils.ExpandInputs([]string{in})
		if err != nil {
			return nil, err
		}
		files = append(files, found...)
	}
	return files, nil
}

// openReport opens path for appending; the header is written only for a new file
func openReport(path string, assembler *report.Assembler, bom bool) (*os.File, *report.Writer, error) {
	exists := utils.FileExists(path)
	if dir := filepath.Dir(path); dir != "." {
		if err := utils.EnsureDir(dir); err != nil {
			return nil, nil, err
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, err
	}

	var opts []report.WriterOption
	if exists {
		opts = append(opts, report.WithoutHeader())
	} else if bom {
		opts = append(opts, report.WithBOM())
	}
	return f, report.NewWriter(f, assembler, opts...), nil
}

func suggestJudgment(ctx context.Context, g *grader.Grader, outcome *pipeline.Outcome, fallback types.VisualJudgment) types.VisualJudgment {
	if !g.HasAdvisor() {
		log.Warn("-suggest needs an advisor backend; leaving visual judgment empty")
		return fallback
	}
	s, err := g.Suggest(ctx, outcome.Bounded)
	if err != nil {
		log.WithError(err).Warn("no visual judgment suggestion")
		return fallback
	}
	log.WithFields(log.Fields{
		"level":      int(s.Level),
		"confidence": s.Confidence,
	}).Info("suggested visual judgment")
	return s.VisualJudgment
}

func printOutcome(file string, outcome *pipeline.Outcome, asJSON bool) {
	if asJSON {
		js, _ := json.Marshal(struct {
			File string `json:"file"`
			*pipeline.Outcome
		}{file, outcome})
		fmt.Println(string(js))
		return
	}

	res := outcome.Result
	fmt.Printf("%s: level %d (%s) %dx%d pixels=%d [%s]\n",
		file, res.DominantLevel, res.LevelInfo.Name,
		outcome.Bounded.Width, outcome.Bounded.Height,
		res.TotalPixels, report.FormatDistribution(res.Distribution))
}

func printSummary(summary types.Histogram, failed int, csvPath string) {
	fmt.Printf("\nGraded %d image(s), %d failed, report: %s\n", summary.Total(), failed, csvPath)
	for _, l := range summary.Levels() {
		fmt.Printf("  level %d: %d\n", l, summary[l])
	}
}
