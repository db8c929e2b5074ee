// Package service ties the pipeline together: parse, aggregate, enrich,
// narrate. One call per question.
package service

import (
	"context"
	"errors"
	"log/slog"

	"devpulse.app/pulse/common/id"
	"devpulse.app/pulse/common/logger"
	"devpulse.app/pulse/internal/aggregator"
	"devpulse.app/pulse/internal/enrich"
	"devpulse.app/pulse/internal/model"
	"devpulse.app/pulse/internal/query"
)

// Activity is the aggregation step, pulled out as an interface so tests
// can answer without network clients.
type Activity interface {
	Aggregate(ctx context.Context, subjectName string, windowDays int) (aggregator.Result, error)
}

// Narrator renders the answer text.
type Narrator interface {
	Generate(ctx context.Context, parsed model.ParsedQuery, enriched model.EnrichedModel, displayName string) string
	ErrorResponse(kind model.ErrorKind, displayName string) string
}

// AnswerResult is everything one question produced. Answer is always
// populated; ErrorKind is set when the pipeline stopped short of a full
// narrative, and Enriched is attached whenever a model was built, the
// no-activity case included.
type AnswerResult struct {
	QueryID   int64
	Parsed    model.ParsedQuery
	Subject   string
	Answer    string
	Enriched  *model.EnrichedModel
	ErrorKind *model.ErrorKind
}

// AnswerService answers free-text questions about a person's recent
// work. It never returns an error: every failure becomes a readable
// answer with an error kind attached.
type AnswerService struct {
	activity Activity
	narrator Narrator
}

func NewAnswerService(activity Activity, narrator Narrator) *AnswerService {
	return &AnswerService{activity: activity, narrator: narrator}
}

func (s *AnswerService) Answer(ctx context.Context, text string) AnswerResult {
	queryID := id.New()
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		QueryID:   logger.Ptr(queryID),
		Component: "pulse.service.answer",
	})

	sc := logger.StartSpan(ctx, "pulse.service.answer")
	defer sc.End()
	ctx = sc.Context()

	parsed := query.Parse(text)
	result := AnswerResult{QueryID: queryID, Parsed: parsed}

	if parsed.SubjectName == nil {
		slog.InfoContext(ctx, "no subject in question", "text", logger.Truncate(text, 200))
		return s.fail(result, model.ErrSubjectNotExtracted, "")
	}
	subject := *parsed.SubjectName
	ctx = logger.WithLogFields(ctx, logger.LogFields{Subject: logger.Ptr(subject)})

	windowDays := parsed.Window()
	slog.InfoContext(ctx, "answering question",
		"window_days", windowDays, "intent", parsed.Intent, "bias", parsed.PlatformBias)

	bundles, err := s.activity.Aggregate(ctx, subject, windowDays)
	if err != nil {
		if errors.Is(err, aggregator.ErrUserNotFound) {
			slog.InfoContext(ctx, "subject resolved on no source")
			return s.fail(result, model.ErrUserNotFound, subject)
		}
		sc.RecordError(err)
		slog.ErrorContext(ctx, "aggregation failed", "error", err)
		return s.fail(result, model.ErrUpstreamFault, subject)
	}

	displayName := bundles.DisplayName()
	result.Subject = displayName

	enriched := enrich.Enrich(bundles.Tracker, bundles.CodeHost, windowDays)
	result.Enriched = &enriched

	if enriched.Metrics.TotalItems == 0 {
		slog.InfoContext(ctx, "no activity in window", "window_days", windowDays)
		kind := model.ErrNoActivity
		result.ErrorKind = &kind
		result.Answer = s.narrator.Generate(ctx, parsed, enriched, displayName)
		return result
	}

	result.Answer = s.narrator.Generate(ctx, parsed, enriched, displayName)
	slog.InfoContext(ctx, "question answered",
		"activity_level", enriched.Metrics.ActivityLevel,
		"total_items", enriched.Metrics.TotalItems)
	return result
}

func (s *AnswerService) fail(result AnswerResult, kind model.ErrorKind, subject string) AnswerResult {
	result.ErrorKind = &kind
	result.Subject = subject
	result.Answer = s.narrator.ErrorResponse(kind, subject)
	return result
}
