// Package server exposes the grader over HTTP with gin.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	grader "github.com/menta2k/banana-grader"
	"github.com/menta2k/banana-grader/pkg/judgment"
	"github.com/menta2k/banana-grader/pkg/pipeline"
	"github.com/menta2k/banana-grader/pkg/report"
	"github.com/menta2k/banana-grader/pkg/types"
)

const (
	EndPointHealth         = "/health"
	EndPointMetrics        = "/metrics"
	EndPointLevels         = "/api/v1/levels"
	EndPointAnalyze        = "/api/v1/analyze"
	EndPointSession        = "/api/v1/sessions/:id"
	EndPointSessionAnalyze = "/api/v1/sessions/:id/analyze"
	EndPointReports        = "/api/v1/reports"
)

// imageField is the multipart form field holding the photo
const imageField = "image"

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Handlers holds all HTTP handlers
type Handlers struct {
	grader         *grader.Grader
	sessions       *SessionStore
	maxUploadBytes int64
}

// NewHandlers creates a new handlers instance
func NewHandlers(g *grader.Grader, sessions *SessionStore, maxUploadMB int) *Handlers {
	if maxUploadMB <= 0 {
		maxUploadMB = 20
	}
	return &Handlers{
		grader:         g,
		sessions:       sessions,
		maxUploadBytes: int64(maxUploadMB) << 20,
	}
}

// NewRouter registers every route on a new gin engine
func NewRouter(h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET(EndPointHealth, h.HealthCheck)
	router.GET(EndPointMetrics, gin.WrapH(promhttp.Handler()))

	router.GET(EndPointLevels, h.GetLevels)
	router.POST(EndPointAnalyze, h.Analyze)
	router.POST(EndPointSessionAnalyze, h.AnalyzeInSession)
	router.GET(EndPointSession, h.GetSession)
	router.DELETE(EndPointSession, h.DeleteSession)
	router.POST(EndPointReports, h.CreateReport)

	return router
}

// AnalysisResponse is the JSON body returned for a completed analysis
type AnalysisResponse struct {
	Result     types.AnalysisResult `json:"result"`
	Bounded    types.BoundedImage   `json:"bounded"`
	ElapsedMs  int64                `json:"elapsed_ms"`
	Suggestion *judgment.Suggestion `json:"suggestion,omitempty"`
	Shares     map[string]float64   `json:"shares"`
}

// ReportRequest is a report plus an optional session whose current result
// fills the analysis columns
type ReportRequest struct {
	report.Report
	SessionID string `json:"session_id"`
}

// HealthCheck reports service status
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"service":  "banana-grader",
		"version":  grader.Version,
		"advisor":  h.grader.HasAdvisor(),
		"sessions": h.sessions.Len(),
	})
}

// GetLevels returns the ripeness level catalog and the claim form choices
func (h *Handlers) GetLevels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"data":     h.grader.Levels(),
		"settings": h.grader.Assembler().Settings(),
	})
}

// Analyze grades an uploaded photo without touching any session
func (h *Handlers) Analyze(c *gin.Context) {
	data, ok := h.readImage(c)
	if !ok {
		return
	}

	outcome, err := h.grader.Analyze(c.Request.Context(), data)
	if err != nil {
		h.writeAnalysisError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    h.buildResponse(c.Request.Context(), outcome, c.Query("suggest") == "true"),
	})
}

// AnalyzeInSession grades a photo as the session's new current result,
// superseding any analysis still running for that session
func (h *Handlers) AnalyzeInSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	data, ok := h.readImage(c)
	if !ok {
		return
	}

	// The job outlives the request so a dropped connection still leaves a result
	job := h.sessions.GetOrCreate(id).Submit(context.Background(), data)
	outcome, err := job.Wait(c.Request.Context())
	if err != nil {
		h.writeAnalysisError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"session_id": id,
		"data":       h.buildResponse(c.Request.Context(), outcome, c.Query("suggest") == "true"),
	})
}

// GetSession returns the session's current result, if any
func (h *Handlers) GetSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	sess, found := h.sessions.Get(id)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Session not found",
		})
		return
	}

	resp := gin.H{
		"success":    true,
		"session_id": id,
		"busy":       sess.Busy(),
	}
	if outcome, ok := sess.Current(); ok {
		resp["data"] = h.buildResponse(c.Request.Context(), outcome, false)
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteSession cancels any running analysis and forgets the session
func (h *Handlers) DeleteSession(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}

	if !h.sessions.Delete(id) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "Session not found",
		})
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateReport validates a report and returns it as a CSV header plus row
func (h *Handlers) CreateReport(c *gin.Context) {
	var req ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid request body",
			"error":   err.Error(),
		})
		return
	}

	r := req.Report
	if req.SessionID != "" {
		sess, found := h.sessions.Get(req.SessionID)
		if !found {
			c.JSON(http.StatusNotFound, gin.H{
				"success": false,
				"message": "Session not found",
			})
			return
		}
		if outcome, ok := sess.Current(); ok {
			result := outcome.Result
			r.Analysis = &result
		}
	}

	var buf bytes.Buffer
	opts := []report.WriterOption{}
	if c.Query("bom") == "true" {
		opts = append(opts, report.WithBOM())
	}
	w := report.NewWriter(&buf, h.grader.Assembler(), opts...)
	if err := w.Write(r); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, report.ErrInvalidForm) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"success": false,
			"message": "Failed to build report",
			"error":   err.Error(),
		})
		return
	}
	if err := w.Flush(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "Failed to build report",
			"error":   err.Error(),
		})
		return
	}

	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *Handlers) readImage(c *gin.Context) ([]byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	fh, err := c.FormFile(imageField)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": fmt.Sprintf("Multipart field %q is required", imageField),
			"error":   err.Error(),
		})
		return nil, false
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Failed to open upload",
			"error":   err.Error(),
		})
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Failed to read upload",
			"error":   err.Error(),
		})
		return nil, false
	}
	return data, true
}

func (h *Handlers) buildResponse(ctx context.Context, outcome *pipeline.Outcome, suggest bool) AnalysisResponse {
	resp := AnalysisResponse{
		Result:    outcome.Result,
		Bounded:   outcome.Bounded,
		ElapsedMs: outcome.Elapsed.Milliseconds(),
		Shares:    make(map[string]float64, len(outcome.Result.Distribution)),
	}
	for _, l := range outcome.Result.Distribution.Levels() {
		resp.Shares[fmt.Sprintf("%d", l)] = outcome.Result.Share(l)
	}

	if suggest && h.grader.HasAdvisor() {
		sctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
		defer cancel()
		s, err := h.grader.Suggest(sctx, outcome.Bounded)
		if err != nil {
			log.WithError(err).Warn("visual judgment suggestion failed")
		} else {
			resp.Suggestion = s
		}
	}
	return resp
}

func (h *Handlers) writeAnalysisError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "Analysis failed"

	switch {
	case types.IsCancelled(err):
		status = http.StatusConflict
		message = "Analysis was cancelled or superseded"
	case errors.Is(err, types.ErrDecode):
		status = http.StatusUnprocessableEntity
		message = "Image could not be decoded"
	case errors.Is(err, types.ErrInvalidImage):
		status = http.StatusUnprocessableEntity
		message = "Image has no pixels"
	}

	log.WithError(err).WithField("status", status).Warn(message)
	c.JSON(status, gin.H{
		"success": false,
		"message": message,
		"error":   err.Error(),
	})
}

func sessionID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if !sessionIDPattern.MatchString(id) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "Invalid session id",
		})
		return "", false
	}
	return id, true
}
