package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pagegen/internal/domain"
	"github.com/kailas-cloud/pagegen/internal/logger"
)

// ErrorCode is the machine-readable error kind in ErrorResponse.
type ErrorCode string

// Error codes.
const (
	CodeBadRequest       ErrorCode = "bad_request"
	CodeUnauthorized     ErrorCode = "unauthorized"
	CodePayloadTooLarge  ErrorCode = "payload_too_large"
	CodeValidationFailed ErrorCode = "validation_failed"
	CodeInputMissing     ErrorCode = "input_missing"
	CodeDecodeError      ErrorCode = "decode_error"
	CodeNoRecords        ErrorCode = "no_records"
	CodeIndexBuildFailed ErrorCode = "index_build_failed"
	CodeTemplateNotFound ErrorCode = "template_not_found"
	CodeMalformedTmpl    ErrorCode = "malformed_template"
	CodeSlugCollision    ErrorCode = "slug_collision"
	CodeGenerationFailed ErrorCode = "generation_failed"
	CodeRateLimited      ErrorCode = "rate_limited"
	CodeQuotaExceeded    ErrorCode = "quota_exceeded"
	CodeProviderError    ErrorCode = "provider_error"
	CodeEmbeddingError   ErrorCode = "embedding_provider_error"
	CodeRequestCanceled  ErrorCode = "request_canceled"
	CodeInternalError    ErrorCode = "internal_error"
)

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// runErrorHandlers maps systemic run failures to responses; first match wins.
var runErrorHandlers = []errorHandler{
	sentinelHandler(domain.ErrInputMissing, http.StatusBadRequest, CodeInputMissing),
	sentinelHandler(domain.ErrDecode, http.StatusBadRequest, CodeDecodeError),
	sentinelHandler(domain.ErrNoRecords, http.StatusUnprocessableEntity, CodeNoRecords),
	sentinelHandler(domain.ErrInvalidLanguage, http.StatusBadRequest, CodeValidationFailed),
	sentinelHandler(domain.ErrInvalidWordCount, http.StatusBadRequest, CodeValidationFailed),
	sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
	sentinelHandler(domain.ErrQuotaExceeded, http.StatusPaymentRequired, CodeQuotaExceeded),
	sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingError),
	sentinelHandler(domain.ErrIndexBuild, http.StatusUnprocessableEntity, CodeIndexBuildFailed),
	sentinelHandler(domain.ErrTemplateNotFound, http.StatusInternalServerError, CodeTemplateNotFound),
	sentinelHandler(context.DeadlineExceeded, http.StatusGatewayTimeout, CodeRequestCanceled),
	sentinelHandler(context.Canceled, http.StatusServiceUnavailable, CodeRequestCanceled),
}

// sentinels whose message is safe to show to clients, most specific first.
var publicSentinels = []error{
	domain.ErrInputMissing,
	domain.ErrDecode,
	domain.ErrNoRecords,
	domain.ErrInvalidLanguage,
	domain.ErrInvalidWordCount,
	domain.ErrRateLimited,
	domain.ErrQuotaExceeded,
	domain.ErrEmbeddingProviderError,
	domain.ErrProviderError,
	domain.ErrIndexBuild,
	domain.ErrTemplateNotFound,
	domain.ErrMalformedTemplate,
	domain.ErrSlugCollision,
	domain.ErrGeneration,
	context.DeadlineExceeded,
	context.Canceled,
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	for _, s := range publicSentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func handleRunError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	log.Warn("run error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range runErrorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

// itemErrorCode classifies a per-keyword failure for the JSON report.
func itemErrorCode(err error) ErrorCode {
	switch {
	case errors.Is(err, domain.ErrSlugCollision):
		return CodeSlugCollision
	case errors.Is(err, domain.ErrMalformedTemplate):
		return CodeMalformedTmpl
	case errors.Is(err, domain.ErrRateLimited):
		return CodeRateLimited
	case errors.Is(err, domain.ErrQuotaExceeded):
		return CodeQuotaExceeded
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		return CodeEmbeddingError
	case errors.Is(err, domain.ErrProviderError):
		return CodeProviderError
	case errors.Is(err, domain.ErrGeneration):
		return CodeGenerationFailed
	default:
		return CodeInternalError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
