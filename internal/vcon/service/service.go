// Package service orchestrates stored vCon documents: intake with validation,
// tagging, signing with the gateway key, and verification.
package service

import (
	"context"
	"crypto"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"vcon/internal/jws"
	"vcon/internal/vcon/events"
	"vcon/internal/vcon/metrics"
	dErrors "vcon/pkg/domain-errors"
	"vcon/pkg/platform/sentinel"
	"vcon/pkg/requestcontext"
	"vcon/pkg/vcon"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,Publisher

// Store persists documents. Implementations return sentinel.ErrNotFound and
// sentinel.ErrConflict.
type Store interface {
	Create(ctx context.Context, v *vcon.Vcon) error
	Update(ctx context.Context, v *vcon.Vcon) error
	Get(ctx context.Context, id string) (*vcon.Vcon, error)
	GetMany(ctx context.Context, ids []string) (map[string]*vcon.Vcon, error)
}

// Publisher receives lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
}

// MaxBatchSize bounds VerifyBatch.
const MaxBatchSize = 100

// Service orchestrates vCon storage, signing and verification.
type Service struct {
	store     Store
	validator *vcon.Validator
	logger    *slog.Logger
	metrics   *metrics.Metrics
	publisher Publisher
	tracer    trace.Tracer

	signingKey  crypto.Signer
	keyID       string
	verifyLimit int
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = t
	}
}

// WithValidator replaces the default validator, typically to change the
// mimetype allow-list.
func WithValidator(v *vcon.Validator) Option {
	return func(s *Service) {
		s.validator = v
	}
}

// WithSigningKey enables Sign and Verify. kid overrides the key id derived
// from the public key.
func WithSigningKey(key crypto.Signer, kid string) Option {
	return func(s *Service) {
		s.signingKey = key
		s.keyID = kid
	}
}

// WithVerifyConcurrency bounds the goroutines used by VerifyBatch.
func WithVerifyConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.verifyLimit = n
		}
	}
}

// New constructs a Service.
func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		validator:   vcon.NewValidator(),
		logger:      slog.New(slog.DiscardHandler),
		tracer:      otel.Tracer("vcon/internal/vcon/service"),
		verifyLimit: 8,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.signingKey != nil && s.keyID == "" {
		if kid, err := jws.KeyID(s.signingKey.Public()); err == nil {
			s.keyID = kid
		}
	}
	return s
}

// ValidationError carries the validator's messages. It unwraps to a
// CodeValidation domain error.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "invalid vcon: " + strings.Join(e.Errors, "; ")
}

func (e *ValidationError) Unwrap() error {
	return dErrors.New(dErrors.CodeValidation, e.Error())
}

// Create parses, validates and stores a document exactly as submitted.
func (s *Service) Create(ctx context.Context, raw []byte) (*vcon.Vcon, error) {
	start := time.Now()
	defer s.metrics.ObserveOperation("create", start)
	ctx, span := s.tracer.Start(ctx, "vcon.Create")
	defer span.End()

	v, err := vcon.BuildFromJSON(string(raw))
	if err != nil {
		s.metrics.IncrementValidationFailure()
		return nil, s.fail(span, err)
	}
	span.SetAttributes(attribute.String("vcon.uuid", v.UUID()))

	// Validate the submitted text, not the parsed document: parsing fills in
	// a missing created_at.
	if ok, errs := s.validator.ValidateJSON(string(raw)); !ok {
		s.metrics.IncrementValidationFailure()
		s.logger.InfoContext(ctx, "vcon rejected",
			"request_id", requestcontext.RequestID(ctx),
			"uuid", v.UUID(),
			"errors", errs,
		)
		return nil, s.fail(span, &ValidationError{Errors: errs})
	}

	if err := s.store.Create(ctx, v); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, s.fail(span, dErrors.Newf(dErrors.CodeConflict, "vcon %s already exists", v.UUID()))
		}
		return nil, s.fail(span, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store vcon"))
	}

	s.metrics.IncrementCreated()
	s.emit(ctx, events.TypeCreated, v.UUID())
	s.logger.InfoContext(ctx, "vcon created",
		"request_id", requestcontext.RequestID(ctx),
		"uuid", v.UUID(),
		"signed", v.IsSigned(),
	)
	return v, nil
}

// Get loads a stored document.
func (s *Service) Get(ctx context.Context, id string) (*vcon.Vcon, error) {
	ctx, span := s.tracer.Start(ctx, "vcon.Get", trace.WithAttributes(attribute.String("vcon.uuid", id)))
	defer span.End()

	v, err := s.load(ctx, id)
	if err != nil {
		return nil, s.fail(span, err)
	}
	return v, nil
}

// Validate runs the validator over a raw document without storing it.
func (s *Service) Validate(ctx context.Context, raw []byte) (bool, []string) {
	_, span := s.tracer.Start(ctx, "vcon.Validate")
	defer span.End()

	ok, errs := s.validator.ValidateJSON(string(raw))
	span.SetAttributes(attribute.Bool("vcon.valid", ok))
	if !ok {
		s.metrics.IncrementValidationFailure()
	}
	return ok, errs
}

// AddTag sets a tag on a stored, unsigned document.
func (s *Service) AddTag(ctx context.Context, id, key, value string) (*vcon.Vcon, error) {
	start := time.Now()
	defer s.metrics.ObserveOperation("tag", start)
	ctx, span := s.tracer.Start(ctx, "vcon.AddTag", trace.WithAttributes(attribute.String("vcon.uuid", id)))
	defer span.End()

	if strings.TrimSpace(key) == "" {
		return nil, s.fail(span, dErrors.New(dErrors.CodeValidation, "tag key is required"))
	}
	v, err := s.load(ctx, id)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if err := v.AddTag(key, value); err != nil {
		return nil, s.fail(span, err)
	}
	if err := s.update(ctx, v); err != nil {
		return nil, s.fail(span, err)
	}

	s.metrics.IncrementTagged()
	s.emit(ctx, events.TypeTagged, id)
	s.logger.InfoContext(ctx, "vcon tagged",
		"request_id", requestcontext.RequestID(ctx),
		"uuid", id,
		"tag", key,
	)
	return v, nil
}

// Sign signs a stored document with the gateway key, replacing any previous
// signature.
func (s *Service) Sign(ctx context.Context, id string) (*vcon.Vcon, error) {
	start := time.Now()
	defer s.metrics.ObserveOperation("sign", start)
	ctx, span := s.tracer.Start(ctx, "vcon.Sign", trace.WithAttributes(attribute.String("vcon.uuid", id)))
	defer span.End()

	if s.signingKey == nil {
		return nil, s.fail(span, dErrors.New(dErrors.CodeUnavailable, "signing key not configured"))
	}
	v, err := s.load(ctx, id)
	if err != nil {
		return nil, s.fail(span, err)
	}
	if err := v.Sign(s.signingKey, vcon.WithKeyID(s.keyID)); err != nil {
		return nil, s.fail(span, err)
	}
	if err := s.update(ctx, v); err != nil {
		return nil, s.fail(span, err)
	}

	s.metrics.IncrementSigned()
	s.emit(ctx, events.TypeSigned, id)
	s.logger.InfoContext(ctx, "vcon signed",
		"request_id", requestcontext.RequestID(ctx),
		"uuid", id,
		"kid", s.keyID,
	)
	return v, nil
}

// PublicKeyPEM returns the gateway verification key.
func (s *Service) PublicKeyPEM() ([]byte, string, error) {
	if s.signingKey == nil {
		return nil, "", dErrors.New(dErrors.CodeUnavailable, "signing key not configured")
	}
	pemBytes, err := jws.EncodePublicKeyPEM(s.signingKey.Public())
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode public key")
	}
	return pemBytes, s.keyID, nil
}

func (s *Service) load(ctx context.Context, id string) (*vcon.Vcon, error) {
	if strings.TrimSpace(id) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "uuid is required")
	}
	v, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "vcon %s not found", id)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load vcon")
	}
	return v, nil
}

func (s *Service) update(ctx context.Context, v *vcon.Vcon) error {
	if err := s.store.Update(ctx, v); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeNotFound, "vcon %s not found", v.UUID())
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to store vcon")
	}
	return nil
}

// emit publishes best effort; the stored document is the source of truth.
func (s *Service) emit(ctx context.Context, typ events.Type, id string) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.New(typ, id, requestcontext.Now(ctx))); err != nil {
		s.metrics.IncrementEventFailure(string(typ))
		s.logger.WarnContext(ctx, "failed to publish vcon event",
			"request_id", requestcontext.RequestID(ctx),
			"type", typ,
			"uuid", id,
			"error", err,
		)
	}
}

func (s *Service) fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	return err
}
