package chi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pagegen/internal/domain"
	"github.com/kailas-cloud/pagegen/internal/domain/batch"
	"github.com/kailas-cloud/pagegen/internal/domain/run"
	healthuc "github.com/kailas-cloud/pagegen/internal/usecase/health"
	"github.com/kailas-cloud/pagegen/internal/usecase/input"
	"github.com/kailas-cloud/pagegen/internal/usecase/pipeline"
)

type mockRunner struct {
	RunFn func(ctx context.Context, req pipeline.Request, progress pipeline.ProgressFunc) (run.Report, []byte, error)
	got   []pipeline.Request
}

func (m *mockRunner) Run(ctx context.Context, req pipeline.Request, progress pipeline.ProgressFunc) (run.Report, []byte, error) {
	m.got = append(m.got, req)
	if m.RunFn != nil {
		return m.RunFn(ctx, req, progress)
	}
	return run.Report{}, nil, nil
}

type mockHealth struct {
	report healthuc.Report
}

func (m *mockHealth) Check(context.Context) healthuc.Report { return m.report }

type upload struct {
	field, name string
	data        []byte
}

func multipartBody(t *testing.T, files []upload, values map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := mw.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(f.data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	for k, v := range values {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func postRun(t *testing.T, h http.Handler, files []upload, values map[string]string, accept string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartBody(t, files, values)
	req := httptest.NewRequest(http.MethodPost, "/v1/runs", body)
	req.Header.Set("Content-Type", ct)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func keywordsFile(data string) upload {
	return upload{field: fieldKeywords, name: "keywords.txt", data: []byte(data)}
}

func twoItemReport() run.Report {
	return run.Report{
		RunID:     "run-42",
		Total:     2,
		Succeeded: []batch.Result{batch.NewOK("cats", "cats")},
		Failed: []batch.Result{batch.NewError("dogs", "dogs",
			domain.NewGenerationError("dogs", fmt.Errorf("upstream said no: %w", domain.ErrProviderError)))},
		Usage: run.Usage{PromptTokens: 10, CompletionTokens: 20, EmbeddingTokens: 5},
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp
}

func TestCreateRun_Archive(t *testing.T) {
	archive := []byte("PK-archive-bytes")
	runner := &mockRunner{RunFn: func(_ context.Context, _ pipeline.Request, progress pipeline.ProgressFunc) (run.Report, []byte, error) {
		progress(run.Progress{RunID: "run-42", State: run.StateDone, Completed: 2, Total: 2})
		return twoItemReport(), archive, nil
	}}
	srv := NewServer(runner, &mockHealth{}, Config{ArchiveName: "pages.zip"}, nil)

	rec := postRun(t, srv.Router(), []upload{
		keywordsFile("cats\ndogs\n"),
		{field: fieldPDFs, name: "a.pdf", data: []byte("%PDF-a")},
		{field: fieldPDFs, name: "b.pdf", data: []byte("%PDF-b")},
	}, map[string]string{fieldLanguage: "german", fieldWordCount: "500"}, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !bytes.Equal(rec.Body.Bytes(), archive) {
		t.Errorf("body = %q, want archive bytes", rec.Body.Bytes())
	}
	h := rec.Header()
	checks := map[string]string{
		"Content-Type":        "application/zip",
		"Content-Disposition": `attachment; filename="pages.zip"`,
		HeaderRunID:           "run-42",
		HeaderRunTotal:        "2",
		HeaderRunSucceeded:    "1",
		HeaderRunFailed:       "1",
		HeaderRunTokens:       "35",
	}
	for k, want := range checks {
		if got := h.Get(k); got != want {
			t.Errorf("header %s = %q, want %q", k, got, want)
		}
	}

	if len(runner.got) != 1 {
		t.Fatalf("runner calls = %d, want 1", len(runner.got))
	}
	req := runner.got[0]
	if string(req.Keywords) != "cats\ndogs\n" {
		t.Errorf("keywords = %q", req.Keywords)
	}
	if req.Format != input.FormatText {
		t.Errorf("format = %q, want text from .txt extension", req.Format)
	}
	if req.Language != domain.German {
		t.Errorf("language = %q, want German", req.Language)
	}
	if req.WordCount != 500 {
		t.Errorf("word count = %d, want 500", req.WordCount)
	}
	if len(req.PDFs) != 2 || req.PDFs[0].Name != "a.pdf" || string(req.PDFs[1].Data) != "%PDF-b" {
		t.Errorf("pdfs = %+v", req.PDFs)
	}
}

func TestCreateRun_JSON(t *testing.T) {
	archive := []byte("zip")
	runner := &mockRunner{RunFn: func(context.Context, pipeline.Request, pipeline.ProgressFunc) (run.Report, []byte, error) {
		return twoItemReport(), archive, nil
	}}
	srv := NewServer(runner, &mockHealth{}, Config{}, nil)

	rec := postRun(t, srv.Router(), []upload{keywordsFile("cats\ndogs\n")}, nil, "application/json")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp RunResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.RunID != "run-42" || resp.Total != 2 {
		t.Errorf("run = %s/%d", resp.RunID, resp.Total)
	}
	if resp.ArchiveName != "generated_files.zip" {
		t.Errorf("archive name = %q", resp.ArchiveName)
	}
	if !bytes.Equal(resp.Archive, archive) {
		t.Errorf("archive = %q", resp.Archive)
	}
	if len(resp.Succeeded) != 1 || resp.Succeeded[0].Keyword != "cats" || resp.Succeeded[0].Code != "" {
		t.Errorf("succeeded = %+v", resp.Succeeded)
	}
	if len(resp.Failed) != 1 {
		t.Fatalf("failed = %+v", resp.Failed)
	}
	failed := resp.Failed[0]
	if failed.Code != CodeProviderError {
		t.Errorf("code = %q, want %q", failed.Code, CodeProviderError)
	}
	if failed.Error != domain.ErrProviderError.Error() {
		t.Errorf("error = %q, want sentinel text only", failed.Error)
	}
	if resp.Usage.EmbeddingTokens != 5 {
		t.Errorf("usage = %+v", resp.Usage)
	}
}

func TestCreateRun_Errors(t *testing.T) {
	tests := []struct {
		name     string
		files    []upload
		values   map[string]string
		runErr   error
		wantCode int
		wantErr  ErrorCode
		wantMsg  string
		wantRuns int
	}{
		{
			name:     "missing keywords file",
			values:   map[string]string{fieldLanguage: "english"},
			wantCode: http.StatusBadRequest,
			wantErr:  CodeInputMissing,
		},
		{
			name:     "non numeric word count",
			files:    []upload{keywordsFile("cats")},
			values:   map[string]string{fieldWordCount: "lots"},
			wantCode: http.StatusBadRequest,
			wantErr:  CodeValidationFailed,
		},
		{
			name:     "unknown language",
			files:    []upload{keywordsFile("cats")},
			values:   map[string]string{fieldLanguage: "klingon"},
			wantCode: http.StatusBadRequest,
			wantErr:  CodeValidationFailed,
		},
		{
			name:     "unknown format",
			files:    []upload{keywordsFile("cats")},
			values:   map[string]string{fieldFormat: "xml"},
			wantCode: http.StatusBadRequest,
			wantErr:  CodeDecodeError,
		},
		{
			name:     "no records",
			files:    []upload{keywordsFile("\n\n")},
			runErr:   fmt.Errorf("parse: %w", domain.ErrNoRecords),
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  CodeNoRecords,
			wantRuns: 1,
		},
		{
			name:     "missing template",
			files:    []upload{keywordsFile("cats")},
			runErr:   fmt.Errorf("load /etc/secret/tpl.html: %w", domain.ErrTemplateNotFound),
			wantCode: http.StatusInternalServerError,
			wantErr:  CodeTemplateNotFound,
			wantMsg:  domain.ErrTemplateNotFound.Error(),
			wantRuns: 1,
		},
		{
			name:     "quota exceeded",
			files:    []upload{keywordsFile("cats")},
			runErr:   domain.ErrQuotaExceeded,
			wantCode: http.StatusPaymentRequired,
			wantErr:  CodeQuotaExceeded,
			wantRuns: 1,
		},
		{
			name:     "unknown error hides details",
			files:    []upload{keywordsFile("cats")},
			runErr:   errors.New("redis: connection refused at 10.0.0.3"),
			wantCode: http.StatusInternalServerError,
			wantErr:  CodeInternalError,
			wantMsg:  "internal error",
			wantRuns: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &mockRunner{RunFn: func(context.Context, pipeline.Request, pipeline.ProgressFunc) (run.Report, []byte, error) {
				return run.Report{RunID: "run-1"}, nil, tt.runErr
			}}
			srv := NewServer(runner, &mockHealth{}, Config{}, nil)

			rec := postRun(t, srv.Router(), tt.files, tt.values, "")
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			resp := decodeError(t, rec)
			if resp.Code != tt.wantErr {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantErr)
			}
			if tt.wantMsg != "" && resp.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", resp.Message, tt.wantMsg)
			}
			if len(runner.got) != tt.wantRuns {
				t.Errorf("runner calls = %d, want %d", len(runner.got), tt.wantRuns)
			}
			if tt.wantRuns > 0 && rec.Header().Get(HeaderRunID) != "run-1" {
				t.Errorf("run id header = %q", rec.Header().Get(HeaderRunID))
			}
		})
	}
}

func TestCreateRun_NotMultipart(t *testing.T) {
	srv := NewServer(&mockRunner{}, &mockHealth{}, Config{}, nil)

	req := httptest.NewRequest(http.MethodPost, "/v1/runs", bytes.NewBufferString(`{"keywords":"cats"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != CodeBadRequest {
		t.Errorf("code = %q", resp.Code)
	}
}

func TestCreateRun_RequiresAPIKey(t *testing.T) {
	runner := &mockRunner{}
	srv := NewServer(runner, &mockHealth{}, Config{APIKeys: []string{"secret"}}, nil)

	rec := postRun(t, srv.Router(), []upload{keywordsFile("cats")}, nil, "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(runner.got) != 0 {
		t.Error("runner must not be called without a key")
	}
}

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name     string
		report   healthuc.Report
		wantCode int
	}{
		{
			name: "healthy",
			report: healthuc.Report{Status: healthuc.Healthy, Checks: map[string]healthuc.CheckResult{
				healthuc.ComponentCompletion: healthuc.CheckOK,
			}},
			wantCode: http.StatusOK,
		},
		{
			name: "degraded stays available",
			report: healthuc.Report{Status: healthuc.Degraded, Checks: map[string]healthuc.CheckResult{
				healthuc.ComponentCompletion: healthuc.CheckOK,
				healthuc.ComponentDatabase:   healthuc.CheckError,
			}},
			wantCode: http.StatusOK,
		},
		{
			name: "unhealthy",
			report: healthuc.Report{Status: healthuc.Unhealthy, Checks: map[string]healthuc.CheckResult{
				healthuc.ComponentCompletion: healthuc.CheckError,
			}},
			wantCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := NewServer(&mockRunner{}, &mockHealth{report: tt.report}, Config{APIKeys: []string{"secret"}}, nil)

			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Status != string(tt.report.Status) {
				t.Errorf("status = %q, want %q", resp.Status, tt.report.Status)
			}
			if len(resp.Checks) != len(tt.report.Checks) {
				t.Errorf("checks = %v", resp.Checks)
			}
		})
	}
}

func TestRouter_SetsRequestID(t *testing.T) {
	srv := NewServer(&mockRunner{}, &mockHealth{report: healthuc.Report{Status: healthuc.Healthy}}, Config{}, nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))

	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID not set")
	}
}

func TestJSONRecoverer(t *testing.T) {
	h := JSONRecoverer(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if resp := decodeError(t, rec); resp.Code != CodeInternalError {
		t.Errorf("code = %q", resp.Code)
	}
}
