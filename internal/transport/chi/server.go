// Package chi exposes pipeline runs over HTTP.
package chi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/pagegen/internal/domain"
	"github.com/kailas-cloud/pagegen/internal/domain/batch"
	"github.com/kailas-cloud/pagegen/internal/domain/run"
	"github.com/kailas-cloud/pagegen/internal/logger"
	"github.com/kailas-cloud/pagegen/internal/metrics"
	healthuc "github.com/kailas-cloud/pagegen/internal/usecase/health"
	"github.com/kailas-cloud/pagegen/internal/usecase/input"
	"github.com/kailas-cloud/pagegen/internal/usecase/pipeline"
	"github.com/kailas-cloud/pagegen/internal/usecase/retrieval"
)

// Run summary headers on archive responses.
const (
	HeaderRunID        = "X-Run-ID"
	HeaderRunTotal     = "X-Run-Total"
	HeaderRunSucceeded = "X-Run-Succeeded"
	HeaderRunFailed    = "X-Run-Failed"
	HeaderRunTokens    = "X-Run-Tokens"
)

// Multipart form fields of POST /v1/runs.
const (
	fieldKeywords  = "keywords"
	fieldPDFs      = "pdfs"
	fieldFormat    = "format"
	fieldLanguage  = "language"
	fieldWordCount = "word_count"
)

const multipartMemory = 32 << 20

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request, progress pipeline.ProgressFunc) (run.Report, []byte, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Config tunes the HTTP front end.
type Config struct {
	ArchiveName    string
	MaxUploadBytes int64
	APIKeys        []string
}

// Server serves pipeline runs, health and metrics.
type Server struct {
	runner Runner
	health HealthChecker
	cfg    Config
	logger *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(runner Runner, health HealthChecker, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ArchiveName == "" {
		cfg.ArchiveName = "generated_files.zip"
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 64 << 20
	}
	return &Server{runner: runner, health: health, cfg: cfg, logger: logger}
}

// Router wires middleware and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(s.cfg.APIKeys))
	r.Use(metrics.Middleware())

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Post("/v1/runs", s.CreateRun)
	return r
}

// ItemResponse is one keyword outcome in RunResponse.
type ItemResponse struct {
	Keyword string    `json:"keyword"`
	Slug    string    `json:"slug,omitempty"`
	Status  string    `json:"status"`
	Code    ErrorCode `json:"code,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// UsageResponse is the token consumption of a run.
type UsageResponse struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	EmbeddingTokens  int `json:"embedding_tokens"`
}

// RunResponse is the JSON reply of POST /v1/runs. Archive is base64 in JSON.
type RunResponse struct {
	RunID       string         `json:"run_id"`
	Total       int            `json:"total"`
	Succeeded   []ItemResponse `json:"succeeded"`
	Failed      []ItemResponse `json:"failed"`
	Usage       UsageResponse  `json:"usage"`
	ArchiveName string         `json:"archive_name"`
	Archive     []byte         `json:"archive"`
}

// HealthResponse is the JSON reply of GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// CreateRun handles POST /v1/runs.
func (s *Server) CreateRun(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodePayloadTooLarge,
				fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid multipart body: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	req, err := runRequestFromForm(r.MultipartForm)
	if err != nil {
		handleRunError(w, r, err)
		return
	}

	log := logger.FromContext(r.Context())
	report, archive, err := s.runner.Run(r.Context(), req, func(p run.Progress) {
		log.Debug("Run progress",
			zap.String("run_id", p.RunID),
			zap.String("state", string(p.State)),
			zap.Int("completed", p.Completed),
			zap.Int("total", p.Total),
			zap.String("keyword", p.Keyword),
			zap.Error(p.Err),
		)
	})
	if report.RunID != "" {
		w.Header().Set(HeaderRunID, report.RunID)
	}
	if err != nil {
		handleRunError(w, r, err)
		return
	}

	if wantsJSON(r) {
		writeJSON(w, http.StatusOK, s.runResponse(report, archive))
		return
	}

	h := w.Header()
	h.Set(HeaderRunTotal, strconv.Itoa(report.Total))
	h.Set(HeaderRunSucceeded, strconv.Itoa(len(report.Succeeded)))
	h.Set(HeaderRunFailed, strconv.Itoa(len(report.Failed)))
	h.Set(HeaderRunTokens, strconv.Itoa(report.Usage.Total()))
	h.Set("Content-Type", "application/zip")
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", s.cfg.ArchiveName))
	h.Set("Content-Length", strconv.Itoa(len(archive)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(archive); err != nil {
		log.Warn("Failed to write archive", zap.Error(err))
	}
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func runRequestFromForm(form *multipart.Form) (pipeline.Request, error) {
	var req pipeline.Request

	kwFiles := form.File[fieldKeywords]
	if len(kwFiles) == 0 {
		return req, fmt.Errorf("form file %q: %w", fieldKeywords, domain.ErrInputMissing)
	}
	data, err := readPart(kwFiles[0])
	if err != nil {
		return req, err
	}
	req.Keywords = data

	format, err := input.ParseFormat(formValue(form, fieldFormat))
	if err != nil {
		return req, fmt.Errorf("%w: %w", domain.ErrDecode, err)
	}
	if format == input.FormatAuto {
		format = input.DetectFormat(kwFiles[0].Filename)
	}
	req.Format = format

	for _, fh := range form.File[fieldPDFs] {
		pdf, err := readPart(fh)
		if err != nil {
			return req, err
		}
		req.PDFs = append(req.PDFs, retrieval.Source{Name: fh.Filename, Data: pdf})
	}

	if v := formValue(form, fieldLanguage); v != "" {
		lang, err := domain.ParseLanguage(v)
		if err != nil {
			return req, err
		}
		req.Language = lang
	}
	if v := formValue(form, fieldWordCount); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return req, fmt.Errorf("word_count %q: %w", v, domain.ErrInvalidWordCount)
		}
		req.WordCount = n
	}
	return req, nil
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	return data, nil
}

func formValue(form *multipart.Form, key string) string {
	if vs := form.Value[key]; len(vs) > 0 {
		return strings.TrimSpace(vs[0])
	}
	return ""
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func (s *Server) runResponse(report run.Report, archive []byte) RunResponse {
	return RunResponse{
		RunID:     report.RunID,
		Total:     report.Total,
		Succeeded: itemsToResponse(report.Succeeded),
		Failed:    itemsToResponse(report.Failed),
		Usage: UsageResponse{
			PromptTokens:     report.Usage.PromptTokens,
			CompletionTokens: report.Usage.CompletionTokens,
			EmbeddingTokens:  report.Usage.EmbeddingTokens,
		},
		ArchiveName: s.cfg.ArchiveName,
		Archive:     archive,
	}
}

func itemsToResponse(results []batch.Result) []ItemResponse {
	out := make([]ItemResponse, len(results))
	for i, r := range results {
		out[i] = ItemResponse{Keyword: r.Keyword(), Slug: r.Slug(), Status: string(r.Status())}
		if err := r.Err(); err != nil {
			out[i].Code = itemErrorCode(err)
			out[i].Error = safeDomainMessage(err)
		}
	}
	return out
}
