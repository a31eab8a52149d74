// Package ask provides the application layer for answering recipe questions
package ask

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/resepqa/web/internal/domain/answer"
	"github.com/resepqa/web/internal/ports/inbound"
	"github.com/resepqa/web/internal/ports/outbound"
	"github.com/resepqa/web/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Outcome labels reported to AskMetrics
const (
	OutcomeAnswered    = "answered"
	OutcomeNotFound    = "not_found"
	OutcomeUnreachable = "unreachable"
)

const serviceName = "ask service"

var tracer = otel.Tracer("github.com/resepqa/web/internal/application/ask")

// Service implements the ask use case
type Service struct {
	client   outbound.AskClient
	metrics  outbound.AskMetrics
	logger   *zap.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewService creates a new ask service. metrics may be nil.
func NewService(client outbound.AskClient, metrics outbound.AskMetrics, logger *zap.Logger) *Service {
	return &Service{
		client:   client,
		metrics:  metrics,
		logger:   logger.Named("ask-service"),
		validate: validator.New(),
		now:      time.Now,
	}
}

var _ inbound.AskService = (*Service)(nil)

// Ask issues exactly one request for the question and returns its
// normalized answer. Failures are returned as *errors.AppError.
func (s *Service) Ask(ctx context.Context, question string) (answer.NormalizedAnswer, error) {
	query := answer.NewQuery(question)
	if err := s.validate.Struct(query); err != nil {
		return answer.NormalizedAnswer{}, invalidQuery(err)
	}

	ctx, span := tracer.Start(ctx, "ask.Ask", trace.WithAttributes(
		attribute.Int("ask.top_k", query.TopK),
		attribute.Int("ask.question_length", len(query.Question)),
	))
	defer span.End()

	start := s.now()
	raw, err := s.client.Ask(ctx, query)
	elapsed := s.now().Sub(start)

	if err != nil {
		s.record(span, OutcomeUnreachable, elapsed)
		span.RecordError(err)
		span.SetStatus(codes.Error, "ask service unreachable")
		s.logger.Error("Ask service request failed",
			zap.String("question", query.Question),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return answer.NormalizedAnswer{}, errors.NewExternalServiceError(serviceName, err)
	}

	if raw.DebugError != nil {
		s.logger.Warn("Ask service reported a search failure",
			zap.String("question", query.Question),
			zap.String("debug_error", *raw.DebugError),
		)
	}

	if raw.NotFound() {
		s.record(span, OutcomeNotFound, elapsed)
		reason := "no results"
		if len(raw.Results) > 0 && raw.Results[0].Error != nil {
			reason = *raw.Results[0].Error
		}
		s.logger.Info("No recipe found",
			zap.String("question", query.Question),
			zap.String("reason", reason),
		)
		return answer.NormalizedAnswer{}, errors.NewRecipeNotFoundError(reason)
	}

	s.record(span, OutcomeAnswered, elapsed)
	span.SetAttributes(attribute.Int("ask.results", len(raw.Results)))

	normStart := s.now()
	out := answer.Normalized(query.Question, *raw)
	if s.metrics != nil {
		s.metrics.Normalized(s.now().Sub(normStart))
	}

	s.logger.Debug("Question answered",
		zap.String("question", query.Question),
		zap.Int("results", len(out.Results)),
		zap.Duration("duration", elapsed),
	)

	return out, nil
}

func (s *Service) record(span trace.Span, outcome string, elapsed time.Duration) {
	span.SetAttributes(attribute.String("ask.outcome", outcome))
	if s.metrics != nil {
		s.metrics.AskRequest(outcome, elapsed)
	}
}

// invalidQuery maps a validation failure on the query to a user-facing error
func invalidQuery(err error) *errors.AppError {
	var verrs validator.ValidationErrors
	if stderrors.As(err, &verrs) {
		for _, fe := range verrs {
			if fe.Field() != "Question" {
				continue
			}
			switch fe.Tag() {
			case "required":
				return errors.NewBadRequestError(errors.MessageEmptyQuestion)
			case "max":
				return errors.NewBadRequestError(errors.MessageQuestionTooLong)
			}
		}
	}
	return errors.NewAppError(errors.CodeBadRequest, errors.MessageInvalidQuestion, err.Error())
}
