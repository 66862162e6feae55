// Package verifier decides whether a captured face belongs to the identity a
// token claims, and enrolls reference faces for identities.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kozaktomas/face-auth/internal/auth"
	"github.com/kozaktomas/face-auth/internal/constants"
	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/encoder"
	"github.com/kozaktomas/face-auth/internal/facematch"
	"github.com/kozaktomas/face-auth/internal/metrics"
)

// TokenValidator returns the identity asserted by a signed token.
type TokenValidator interface {
	Validate(token string) (string, error)
}

// VerifyRequest is one event authentication attempt.
type VerifyRequest struct {
	Event      string
	Token      string
	FacialData string // base64, optionally a data URL
}

// VerificationOutcome is the decision for a VerifyRequest.
type VerificationOutcome struct {
	VerificationID string
	Identity       string
	Event          string
	IsMatch        bool
	Confidence     float64
	Duration       time.Duration
}

// EnrollRequest carries a reference image for an identity.
type EnrollRequest struct {
	Identity    string
	ContentType string
	Image       []byte
}

// EnrollmentOutcome reports a stored enrollment. Persisted is false when the
// in-memory store was updated but writing the snapshot failed.
type EnrollmentOutcome struct {
	Identity  string
	Templates int
	Persisted bool
}

// Verifier orchestrates token validation, face encoding and matching.
type Verifier struct {
	store          database.TemplateWriter
	encoder        encoder.Encoder
	tokens         TokenValidator
	matcher        *facematch.Matcher
	allowedEvents  []string
	maxFileSize    int64
	rejectMultiple bool
	logger         *slog.Logger
	recorder       metrics.Recorder
}

// Option configures a Verifier.
type Option func(*Verifier)

// WithMatcher sets the match thresholds and metric.
func WithMatcher(m *facematch.Matcher) Option {
	return func(v *Verifier) {
		if m != nil {
			v.matcher = m
		}
	}
}

// WithAllowedEvents replaces the event allow-list.
func WithAllowedEvents(events []string) Option {
	return func(v *Verifier) {
		v.allowedEvents = slices.Clone(events)
	}
}

// WithMaxFileSize sets the largest accepted image in bytes.
func WithMaxFileSize(n int64) Option {
	return func(v *Verifier) {
		if n > 0 {
			v.maxFileSize = n
		}
	}
}

// WithRejectMultiple makes images with more than one face fail instead of
// using the first face.
func WithRejectMultiple(reject bool) Option {
	return func(v *Verifier) {
		v.rejectMultiple = reject
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(v *Verifier) {
		if r != nil {
			v.recorder = r
		}
	}
}

// DefaultAllowedEvents is the allow-list used when none is configured.
var DefaultAllowedEvents = []string{
	"login-event",
	"transaction-event",
	"payment-event",
	"admin-event",
	"sensitive-operation",
}

// New creates a Verifier.
func New(store database.TemplateWriter, enc encoder.Encoder, tokens TokenValidator, opts ...Option) *Verifier {
	v := &Verifier{
		store:         store,
		encoder:       enc,
		tokens:        tokens,
		matcher:       facematch.DefaultMatcher(),
		allowedEvents: slices.Clone(DefaultAllowedEvents),
		maxFileSize:   constants.DefaultMaxFileSize,
		logger:        slog.Default(),
		recorder:      metrics.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// MaxFileSize returns the largest accepted image in bytes.
func (v *Verifier) MaxFileSize() int64 {
	return v.maxFileSize
}

// VerifyEvent authenticates an event. The event is checked before the token
// is decoded. An identity without stored templates is a non-match with zero
// confidence, not an error.
func (v *Verifier) VerifyEvent(ctx context.Context, req VerifyRequest) (*VerificationOutcome, error) {
	start := time.Now()

	if !slices.Contains(v.allowedEvents, req.Event) {
		v.recorder.RecordVerification("invalid", "rejected", time.Since(start))
		return nil, ErrInvalidEvent.with(
			fmt.Sprintf("Invalid event type. Allowed events: %s", strings.Join(v.allowedEvents, ", ")), nil)
	}

	identity, err := v.tokens.Validate(req.Token)
	if err != nil {
		v.recorder.RecordVerification(req.Event, "rejected", time.Since(start))
		return nil, tokenError(err)
	}

	image, err := DecodeImageData(req.FacialData)
	if err != nil {
		v.recorder.RecordVerification(req.Event, "rejected", time.Since(start))
		return nil, err
	}
	if err := v.checkSize(len(image)); err != nil {
		v.recorder.RecordVerification(req.Event, "rejected", time.Since(start))
		return nil, err
	}

	outcome := &VerificationOutcome{
		VerificationID: uuid.NewString(),
		Identity:       identity,
		Event:          req.Event,
	}
	log := v.logger.With("verification_id", outcome.VerificationID,
		"user_id", sanitizeForLog(identity), "event", req.Event)

	stored, err := v.store.Get(identity)
	if errors.Is(err, database.ErrNotFound) {
		log.Warn("no face encodings found for user")
		return v.finishVerification(log, outcome, start), nil
	}
	if err != nil {
		v.recorder.RecordVerification(req.Event, "error", time.Since(start))
		return nil, ErrInternal.with("", err)
	}

	probe, err := v.encodeOne(ctx, log, image)
	if err != nil {
		result := "rejected"
		if KindOf(err) == KindInternal {
			result = "error"
		}
		v.recorder.RecordVerification(req.Event, result, time.Since(start))
		return nil, err
	}

	match := v.matcher.Compare(stored, probe)
	outcome.IsMatch = match.IsMatch
	outcome.Confidence = match.Confidence
	return v.finishVerification(log, outcome, start), nil
}

func (v *Verifier) finishVerification(log *slog.Logger, outcome *VerificationOutcome, start time.Time) *VerificationOutcome {
	outcome.Duration = time.Since(start)

	result := "no_match"
	if outcome.IsMatch {
		result = "match"
	}
	v.recorder.RecordVerification(outcome.Event, result, outcome.Duration)

	attrs := []any{"match", outcome.IsMatch, "confidence", outcome.Confidence, "duration", outcome.Duration}
	switch {
	case outcome.Duration > constants.SlowVerificationThreshold:
		log.Warn("slow face verification", attrs...)
	case outcome.IsMatch:
		log.Info("face verification successful", attrs...)
	default:
		log.Warn("face verification failed", attrs...)
	}
	return outcome
}

// Enroll stores the face found in req.Image for req.Identity. The store
// mutation is not cancelled with ctx once it has started.
func (v *Verifier) Enroll(ctx context.Context, req EnrollRequest) (*EnrollmentOutcome, error) {
	if req.Identity == "" {
		v.recorder.RecordEnrollment("invalid")
		return nil, ErrMissingIdentity
	}
	if !strings.HasPrefix(req.ContentType, "image/") {
		v.recorder.RecordEnrollment("invalid")
		return nil, ErrNotAnImage
	}
	if err := v.checkSize(len(req.Image)); err != nil {
		v.recorder.RecordEnrollment("invalid")
		return nil, err
	}

	log := v.logger.With("user_id", sanitizeForLog(req.Identity))
	probe, err := v.encodeOne(ctx, log, req.Image)
	if err != nil {
		switch KindOf(err) {
		case KindNoFace:
			v.recorder.RecordEnrollment("no_face")
		default:
			v.recorder.RecordEnrollment("error")
		}
		return nil, err
	}

	templates, persisted := v.store.Add(context.WithoutCancel(ctx), req.Identity, probe)
	v.recorder.RecordEnrollment("success")
	if !persisted {
		log.Warn("face enrolled but snapshot was not persisted")
	}
	log.Info("face enrolled", "templates", templates)

	return &EnrollmentOutcome{
		Identity:  req.Identity,
		Templates: templates,
		Persisted: persisted,
	}, nil
}

// Delete removes every template stored for identity.
func (v *Verifier) Delete(ctx context.Context, identity string) error {
	if !v.store.Delete(context.WithoutCancel(ctx), identity) {
		return ErrNotFound.with(fmt.Sprintf("No face encodings found for user %s", identity), nil)
	}
	v.logger.Info("deleted face encodings", "user_id", sanitizeForLog(identity))
	return nil
}

// Users returns the enrolled identities in sorted order.
func (v *Verifier) Users() []string {
	return v.store.Users()
}

// Count returns the number of enrolled identities.
func (v *Verifier) Count() int {
	return v.store.Count()
}

// checkSize accepts images of exactly maxFileSize bytes.
func (v *Verifier) checkSize(n int) error {
	if int64(n) > v.maxFileSize {
		return ErrImageTooLarge.with(fmt.Sprintf("Image size must be less than %d bytes", v.maxFileSize), nil)
	}
	return nil
}

// encodeOne runs the encoder and selects the face to use.
func (v *Verifier) encodeOne(ctx context.Context, log *slog.Logger, image []byte) (facematch.Embedding, error) {
	embs, err := v.encoder.Encode(ctx, image)
	switch {
	case errors.Is(err, encoder.ErrDecodeFailure):
		log.Warn("failed to decode image", "error", err)
		return nil, ErrDecodeFailure.with("", err)
	case err != nil:
		log.Error("face encoder failed", "error", err)
		return nil, ErrInternal.with("", err)
	}

	switch {
	case len(embs) == 0:
		log.Warn("no faces found in image")
		return nil, ErrNoFaceDetected
	case len(embs) > 1 && v.rejectMultiple:
		log.Warn("multiple faces found, rejecting image", "faces", len(embs))
		return nil, ErrMultipleFaces.with("", fmt.Errorf("%d faces detected", len(embs)))
	case len(embs) > 1:
		log.Warn("multiple faces found, using the first one", "faces", len(embs))
	}
	return embs[0], nil
}

// tokenError maps token validation failures to client-safe errors.
func tokenError(err error) error {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return ErrExpiredToken.with("", err)
	case errors.Is(err, auth.ErrMissingIdentityClaim):
		return ErrMissingIdentityClaim.with("", err)
	default:
		return ErrInvalidToken.with("", err)
	}
}

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}
