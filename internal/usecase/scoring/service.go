// Package scoring computes the semantic match score between a resume and a job description.
package scoring

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/atscore/internal/domain"
	"github.com/kailas-cloud/atscore/internal/domain/document"
	"github.com/kailas-cloud/atscore/internal/domain/feedback"
	"github.com/kailas-cloud/atscore/internal/domain/similarity"
	"github.com/kailas-cloud/atscore/internal/logger"
	"github.com/kailas-cloud/atscore/internal/metrics"
)

// Config tunes the pipeline. Zero values select the defaults.
type Config struct {
	MaxChars            int
	DocumentInstruction string // prepended to the resume
	QueryInstruction    string // prepended to the job description
	Classifier          *feedback.Classifier
}

// Result is one scored pair.
type Result struct {
	ID             string
	Score          float64
	Tier           feedback.Tier
	Resume         document.Text
	JobDescription document.Text
	Degraded       bool
}

// Message returns the advice for the result's tier.
func (r Result) Message() string { return r.Tier.Message() }

// Service runs validate, truncate, embed, compare, classify.
type Service struct {
	embedder   Embedder
	maxChars   int
	docInstr   string
	queryInstr string
	classifier feedback.Classifier
}

// New creates a scoring service.
func New(embedder Embedder, cfg Config) *Service {
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = document.MaxChars
	}
	classifier := feedback.DefaultClassifier()
	if cfg.Classifier != nil {
		classifier = *cfg.Classifier
	}
	return &Service{
		embedder:   embedder,
		maxChars:   maxChars,
		docInstr:   cfg.DocumentInstruction,
		queryInstr: cfg.QueryInstruction,
		classifier: classifier,
	}
}

// MaxChars returns the truncation limit.
func (s *Service) MaxChars() int { return s.maxChars }

// Score compares resume and job description.
//
// Inputs are capped first; a capped text with no non-whitespace characters fails with
// domain.ErrValidation before any embedding call.
// When embedding or similarity fails the returned Result is still usable (score 0, tier weak,
// Degraded set) and the error wraps domain.ErrScoring together with the cause.
func (s *Service) Score(ctx context.Context, resume, jobDescription string) (Result, error) {
	res := Result{
		Resume:         document.NewText(resume, s.maxChars),
		JobDescription: document.NewText(jobDescription, s.maxChars),
	}
	if res.Resume.IsBlank() {
		return Result{}, fmt.Errorf("resume text is required: %w", domain.ErrValidation)
	}
	if res.JobDescription.IsBlank() {
		return Result{}, fmt.Errorf("job description is required: %w", domain.ErrValidation)
	}
	res.ID = uuid.NewString()

	log := logger.FromContext(ctx).With(zap.String("score_id", res.ID))

	score, err := s.similarity(ctx, res.Resume, res.JobDescription)
	if err != nil {
		reason := failureReason(err)
		metrics.ScoringFailuresTotal.WithLabelValues(reason).Inc()
		log.Warn("Scoring failed, falling back to zero score",
			zap.String("reason", reason),
			zap.Error(err),
		)
		res.Score = 0
		res.Tier = feedback.Weak
		res.Degraded = true
		return res, fmt.Errorf("%w: %w", domain.ErrScoring, err)
	}

	res.Score = score
	res.Tier = s.classifier.Classify(score)

	metrics.ScoreValue.Observe(score)
	metrics.ScoreTierTotal.WithLabelValues(string(res.Tier)).Inc()
	log.Info("Resume scored",
		zap.Float64("score", score),
		zap.String("tier", string(res.Tier)),
		zap.Int("resume_chars", res.Resume.Chars()),
		zap.Int("job_description_chars", res.JobDescription.Chars()),
		zap.Bool("resume_truncated", res.Resume.Truncated()),
		zap.Bool("job_description_truncated", res.JobDescription.Truncated()),
	)
	return res, nil
}

func (s *Service) similarity(ctx context.Context, resume, jobDescription document.Text) (float64, error) {
	texts := []string{
		s.docInstr + resume.String(),
		s.queryInstr + jobDescription.String(),
	}

	emb, err := domain.EmbedAll(ctx, s.embedder, texts)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}

	cos, err := similarity.Cosine(emb.Embeddings[0], emb.Embeddings[1])
	if err != nil {
		return 0, fmt.Errorf("cosine: %w", err)
	}
	return similarity.Percent(cos), nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmbeddingQuotaExceeded):
		return "quota"
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrEmbeddingProviderError):
		return "provider"
	case errors.Is(err, domain.ErrDimensionMismatch), errors.Is(err, domain.ErrZeroVector):
		return "similarity"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
