// Package chi exposes the scoring pipeline as a JSON HTTP API.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/oapi-codegen/runtime"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/atscore/internal/domain"
	"github.com/kailas-cloud/atscore/internal/domain/document"
	"github.com/kailas-cloud/atscore/internal/domain/feedback"
	domusage "github.com/kailas-cloud/atscore/internal/domain/usage"
	"github.com/kailas-cloud/atscore/internal/extractor"
	"github.com/kailas-cloud/atscore/internal/logger"
	healthuc "github.com/kailas-cloud/atscore/internal/usecase/health"
	scoringuc "github.com/kailas-cloud/atscore/internal/usecase/scoring"
	usageuc "github.com/kailas-cloud/atscore/internal/usecase/usage"
)

// multipartMemory is how much of a multipart body is kept in memory before spilling to disk.
const multipartMemory = 8 << 20

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server holds the HTTP handlers.
type Server struct {
	scoring       *scoringuc.Service
	extractor     *extractor.Extractor
	usage         *usageuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	scoring *scoringuc.Service,
	ext *extractor.Extractor,
	usage *usageuc.Service,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		scoring:   scoring,
		extractor: ext,
		usage:     usage,
		health:    health,
		logger:    logger,
	}
	s.errorHandlers = []errorHandler{
		parseErrorHandler,
		validationHandler,
		sentinelHandler(domain.ErrEmptyContent, http.StatusUnprocessableEntity, CodeEmptyContent),
		sentinelHandler(domain.ErrUnsupportedFormat, http.StatusUnsupportedMediaType, CodeUnsupportedFormat),
		sentinelHandler(domain.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge, CodePayloadTooLarge),
		sentinelHandler(domain.ErrRateLimited, http.StatusTooManyRequests, CodeRateLimited),
	}
	return s
}

// Score handles POST /v1/score.
func (s *Server) Score(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.extractor.MaxBytes())

	var req ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if isBodyTooLarge(err) {
			s.handleDomainError(w, r, domain.ErrPayloadTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	s.score(w, r, req.ResumeText, req.JobDescription)
}

// ScoreUpload handles POST /v1/score/upload.
// The resume comes from the "resume" file or the "resume_text" field, the job description
// from the "job_description_file" file or the "job_description" field. A file wins over text.
func (s *Server) ScoreUpload(w http.ResponseWriter, r *http.Request) {
	if !s.parseMultipart(w, r, 2) {
		return
	}

	resume, err := s.formText(r, "resume", "resume_text")
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	jobDescription, err := s.formText(r, "job_description_file", "job_description")
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	s.score(w, r, resume, jobDescription)
}

// Extract handles POST /v1/extract.
func (s *Server) Extract(w http.ResponseWriter, r *http.Request) {
	if !s.parseMultipart(w, r, 1) {
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, "file is required")
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid multipart body: "+err.Error())
		return
	}
	defer file.Close()

	ext, err := s.extractor.ExtractFile(r.Context(), header.Filename, file)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	text := document.NewText(ext.Text, s.scoring.MaxChars())
	writeJSON(w, http.StatusOK, ExtractResponse{
		Filename:  ext.Filename,
		Format:    string(ext.Format),
		Text:      ext.Text,
		Chars:     text.Chars(),
		Truncated: text.Truncated(),
	})
}

// GetUsage handles GET /v1/usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	var periodParam *string
	if err := runtime.BindQueryParameter("form", true, false, "period", r.URL.Query(), &periodParam); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid format for parameter period")
		return
	}

	var raw string
	if periodParam != nil {
		raw = *periodParam
	}
	period, err := domusage.ParsePeriod(raw)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	report := s.usage.GetReport(r.Context(), period)

	resp := UsageResponse{
		Period:   string(report.Period),
		Provider: report.Provider,
		Usage:    UsageMetrics{Tokens: report.Tokens},
		Budget: BudgetStatus{
			TokensLimit:     report.Budget.TokensLimit,
			TokensRemaining: report.Budget.TokensRemaining,
			IsExhausted:     report.Budget.Exhausted,
		},
	}
	if report.PeriodStart > 0 {
		start := time.UnixMilli(report.PeriodStart).UTC()
		end := time.UnixMilli(report.PeriodEnd).UTC()
		resp.PeriodStartAt = &start
		resp.PeriodEndAt = &end
	}
	if report.Budget.ResetsAt > 0 {
		resetsAt := time.UnixMilli(report.Budget.ResetsAt).UTC()
		resp.Budget.ResetsAt = &resetsAt
	}

	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// score runs the pipeline and writes a ScoreResponse. A scoring failure is still a 200
// with the degraded flag set; only input errors abort the request.
func (s *Server) score(w http.ResponseWriter, r *http.Request, resume, jobDescription string) {
	ctx, usage := domain.NewContextWithUsage(r.Context())

	res, err := s.scoring.Score(ctx, resume, jobDescription)
	if err != nil && !errors.Is(err, domain.ErrScoring) {
		s.handleDomainError(w, r, err)
		return
	}

	resp := scoreToResponse(res)
	if err != nil {
		resp.Error = scoringFailureMessage(err)
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, resp)
}

// parseMultipart caps the body at files*maxBytes plus form overhead and parses it.
// It writes the error response itself and returns false on failure.
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request, files int64) bool {
	r.Body = http.MaxBytesReader(w, r.Body, files*s.extractor.MaxBytes()+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isBodyTooLarge(err) {
			s.handleDomainError(w, r, domain.ErrPayloadTooLarge)
			return false
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid multipart body: "+err.Error())
		return false
	}
	return true
}

// formText returns the extracted text of fileField when present, otherwise the value of textField.
func (s *Server) formText(r *http.Request, fileField, textField string) (string, error) {
	file, header, err := r.FormFile(fileField)
	if errors.Is(err, http.ErrMissingFile) {
		return r.FormValue(textField), nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", fileField, err)
	}
	defer file.Close()

	ext, err := s.extractor.ExtractFile(r.Context(), header.Filename, file)
	if err != nil {
		return "", fmt.Errorf("%s: %w", fileField, err)
	}
	return ext.Text, nil
}

func scoreToResponse(res scoringuc.Result) ScoreResponse {
	return ScoreResponse{
		ID:                  res.ID,
		Score:               res.Score,
		Tier:                string(res.Tier),
		Message:             res.Message(),
		Note:                feedback.Note,
		ResumeChars:         res.Resume.Chars(),
		JobDescriptionChars: res.JobDescription.Chars(),
		Truncated: TruncationFlags{
			Resume:         res.Resume.Truncated(),
			JobDescription: res.JobDescription.Truncated(),
		},
		Degraded: res.Degraded,
	}
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Used() {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func isBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrValidation,
		domain.ErrUnsupportedFormat,
		domain.ErrParse,
		domain.ErrEmptyContent,
		domain.ErrPayloadTooLarge,
		domain.ErrRateLimited,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// scoringFailureMessage names the cause of a degraded score without provider details.
func scoringFailureMessage(err error) string {
	causes := []error{
		domain.ErrEmbeddingQuotaExceeded,
		domain.ErrEmbeddingUnavailable,
		domain.ErrEmbeddingProviderError,
		domain.ErrDimensionMismatch,
		domain.ErrZeroVector,
	}
	for _, c := range causes {
		if errors.Is(err, c) {
			return domain.ErrScoring.Error() + ": " + c.Error()
		}
	}
	return domain.ErrScoring.Error()
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

// parseErrorHandler reports the declared format but not the parser's cause.
func parseErrorHandler(w http.ResponseWriter, err error, _ string) bool {
	var pe *domain.ParseError
	if !errors.As(err, &pe) {
		return false
	}
	writeError(w, http.StatusUnprocessableEntity, CodeParseError,
		fmt.Sprintf("%s: cannot read %s document", domain.ErrParse.Error(), pe.Format))
	return true
}

// validationHandler passes the message through: validation errors describe client input only.
func validationHandler(w http.ResponseWriter, err error, _ string) bool {
	if !errors.Is(err, domain.ErrValidation) {
		return false
	}
	writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context())
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
