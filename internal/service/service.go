// Package service implements the registration rules, input validation and
// orchestration between HTTP handlers and the repository layer.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Shivanand-hulikatti/mergington-activities/internal/model"
)

const tracerName = "github.com/Shivanand-hulikatti/mergington-activities/internal/service"

// Store is the persistence the service needs. SignUp and Unregister must
// apply their check and mutation atomically per activity and return the
// model sentinel errors for business outcomes.
type Store interface {
	Ping(ctx context.Context) error
	ListActivities(ctx context.Context) ([]model.Activity, error)
	GetActivity(ctx context.Context, name string) (*model.Activity, error)
	GetParticipant(ctx context.Context, email string) (*model.Participant, error)
	FindOrCreateParticipant(ctx context.Context, email string) (*model.Participant, error)
	SignUp(ctx context.Context, activityName, email string) (*model.Registration, error)
	Unregister(ctx context.Context, activityName, email string) (*model.Registration, error)
	Seed(ctx context.Context, seeds []model.ActivitySeed) (model.SeedResult, error)
}

// Option configures a RegistrationService.
type Option func(*RegistrationService)

// WithEmailValidation rejects emails that are not structurally valid.
func WithEmailValidation() Option {
	return func(s *RegistrationService) { s.validateEmail = true }
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(s *RegistrationService) { s.tracer = t }
}

// RegistrationService orchestrates sign-up, unregister and listing.
type RegistrationService struct {
	store         Store
	catalog       *Catalog
	logger        zerolog.Logger
	tracer        trace.Tracer
	validateEmail bool
}

// NewRegistrationService constructs a RegistrationService with its dependencies.
func NewRegistrationService(store Store, catalog *Catalog, logger zerolog.Logger, opts ...Option) *RegistrationService {
	s := &RegistrationService{
		store:   store,
		catalog: catalog,
		logger:  logger.With().Str("component", "registration").Logger(),
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ping reports whether the store is reachable.
func (s *RegistrationService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ListActivities returns every activity with its descriptive fields and roster.
func (s *RegistrationService) ListActivities(ctx context.Context) ([]model.Activity, error) {
	ctx, span := s.tracer.Start(ctx, "RegistrationService.ListActivities")
	defer span.End()

	activities, err := s.catalog.GetAll(ctx)
	if err != nil {
		recordError(span, err)
		return nil, fmt.Errorf("list activities: %w", err)
	}
	span.SetAttributes(attribute.Int("activities.count", len(activities)))
	return activities, nil
}

// GetActivity returns a single activity by name or slug.
func (s *RegistrationService) GetActivity(ctx context.Context, name string) (*model.Activity, error) {
	name, err := normalizeActivity(name)
	if err != nil {
		return nil, err
	}
	a, err := s.catalog.FindByName(ctx, name)
	if err != nil {
		if model.KindOf(err) != 0 {
			return nil, err
		}
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return a, nil
}

// GetParticipant returns a participant and the activities they joined.
func (s *RegistrationService) GetParticipant(ctx context.Context, email string) (*model.Participant, error) {
	email, err := s.normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	p, err := s.store.GetParticipant(ctx, email)
	if err != nil {
		if model.KindOf(err) != 0 {
			return nil, err
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

// FindOrCreateParticipant resolves email to a participant, creating it on first use.
func (s *RegistrationService) FindOrCreateParticipant(ctx context.Context, email string) (*model.Participant, error) {
	email, err := s.normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	p, err := s.store.FindOrCreateParticipant(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find or create participant: %w", err)
	}
	return p, nil
}

// SignUp registers email for the named activity and returns the confirmation message.
func (s *RegistrationService) SignUp(ctx context.Context, activityName, email string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "RegistrationService.SignUp",
		trace.WithAttributes(attribute.String("activity.name", activityName)))
	defer span.End()

	activityName, email, err := s.normalize(activityName, email)
	if err != nil {
		recordError(span, err)
		return "", err
	}

	reg, err := s.store.SignUp(ctx, activityName, email)
	if err != nil {
		recordError(span, err)
		return "", s.outcome(err, "sign up", activityName, email)
	}
	s.catalog.Invalidate()

	s.logger.Info().Str("activity", reg.ActivityName).Str("email", reg.Email).Msg("signed up")
	return fmt.Sprintf("Signed up %s for %s", reg.Email, reg.ActivityName), nil
}

// Unregister removes email from the named activity and returns the confirmation message.
func (s *RegistrationService) Unregister(ctx context.Context, activityName, email string) (string, error) {
	ctx, span := s.tracer.Start(ctx, "RegistrationService.Unregister",
		trace.WithAttributes(attribute.String("activity.name", activityName)))
	defer span.End()

	activityName, email, err := s.normalize(activityName, email)
	if err != nil {
		recordError(span, err)
		return "", err
	}

	reg, err := s.store.Unregister(ctx, activityName, email)
	if err != nil {
		recordError(span, err)
		return "", s.outcome(err, "unregister", activityName, email)
	}
	s.catalog.Invalidate()

	s.logger.Info().Str("activity", reg.ActivityName).Str("email", reg.Email).Msg("unregistered")
	return fmt.Sprintf("Unregistered %s from %s", reg.Email, reg.ActivityName), nil
}

// outcome passes business errors through unchanged and wraps the rest.
func (s *RegistrationService) outcome(err error, op, activityName, email string) error {
	if kind := model.KindOf(err); kind != 0 {
		s.logger.Debug().
			Str("op", op).
			Str("activity", activityName).
			Str("email", email).
			Stringer("kind", kind).
			Msg(err.Error())
		return err
	}
	s.logger.Error().Err(err).Str("op", op).Str("activity", activityName).Msg("store failure")
	return fmt.Errorf("%s: %w", op, err)
}

func (s *RegistrationService) normalize(activityName, email string) (string, string, error) {
	activityName, err := normalizeActivity(activityName)
	if err != nil {
		return "", "", err
	}
	email, err = s.normalizeEmail(email)
	if err != nil {
		return "", "", err
	}
	return activityName, email, nil
}

func (s *RegistrationService) normalizeEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", model.Invalid("email", "email is required")
	}
	if s.validateEmail && !isValidEmail(email) {
		return "", model.Invalid("email", "email is not a valid email address")
	}
	return email, nil
}

func normalizeActivity(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", model.Invalid("activity", "activity name is required")
	}
	return name, nil
}

func recordError(span trace.Span, err error) {
	if model.KindOf(err) != 0 {
		span.SetAttributes(attribute.String("outcome", err.Error()))
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// isValidEmail does a basic structural check.
func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".") &&
		!strings.HasPrefix(parts[1], ".") && !strings.HasSuffix(parts[1], ".")
}
