package auth

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/xenking/movies-api/internal/domain/auth"

// SignInResult is the outcome of a successful sign-in.
type SignInResult struct {
	Token  string
	User   Identity
	Claims *Claims
}

// SignUpResult is the outcome of a sign-up. Created is false when a user
// with the same email already existed and nothing was written.
type SignUpResult struct {
	ID      string
	Created bool
}

type options struct {
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures a Service.
type Option func(*options)

// WithTracerProvider sets the tracer provider used for sign-in spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithMeterProvider sets the meter provider used for sign-in counters.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) { o.meterProvider = mp }
}

// Service runs the sign-in handshake and sign-up.
type Service struct {
	password Strategy
	keys     APIKeyStore
	issuer   *Issuer
	users    CredentialStore
	hasher   PasswordHasher

	tracer  trace.Tracer
	signIns metric.Int64Counter
	signUps metric.Int64Counter
}

// NewService creates a Service. password authenticates the caller's
// credentials during sign-in.
func NewService(
	password Strategy,
	keys APIKeyStore,
	issuer *Issuer,
	users CredentialStore,
	hasher PasswordHasher,
	opts ...Option,
) (*Service, error) {
	o := options{
		tracerProvider: tracenoop.NewTracerProvider(),
		meterProvider:  metricnoop.NewMeterProvider(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	meter := o.meterProvider.Meter(instrumentationName)
	signIns, err := meter.Int64Counter("auth.sign_in",
		metric.WithDescription("Sign-in attempts by result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create sign-in counter")
	}
	signUps, err := meter.Int64Counter("auth.sign_up",
		metric.WithDescription("Sign-up requests by result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create sign-up counter")
	}

	return &Service{
		password: password,
		keys:     keys,
		issuer:   issuer,
		users:    users,
		hasher:   hasher,
		tracer:   o.tracerProvider.Tracer(instrumentationName),
		signIns:  signIns,
		signUps:  signUps,
	}, nil
}

// SignIn exchanges the credentials of req plus an API key token for a signed
// token. The steps run strictly in order and the first failure ends the
// handshake: missing API key token, bad credentials, unknown API key or a key
// owned by someone else.
func (s *Service) SignIn(ctx context.Context, req *Request, apiKeyToken string) (_ *SignInResult, rerr error) {
	ctx, span := s.tracer.Start(ctx, "auth.SignIn")
	defer func() {
		s.signIns.Add(ctx, 1, metric.WithAttributes(attribute.String("result", resultOf(rerr))))
		endSpan(span, rerr)
	}()

	if strings.TrimSpace(apiKeyToken) == "" {
		return nil, Unauthorized("apiKeyToken is required")
	}

	p, err := s.password.Authenticate(ctx, req)
	if err != nil {
		return nil, err
	}

	key, err := s.keys.Find(ctx, apiKeyToken)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return nil, &Error{Kind: ErrUnauthorized, Message: "invalid api key", Err: err}
		}
		return nil, errors.Wrap(err, "find api key")
	}
	if key.OwnerID != p.Identity.ID {
		return nil, Unauthorized("invalid api key")
	}

	token, claims, err := s.issuer.Issue(p.Identity, key.Scopes)
	if err != nil {
		return nil, errors.Wrap(err, "issue token")
	}
	span.SetAttributes(attribute.String("auth.subject", p.Identity.ID))

	return &SignInResult{Token: token, User: p.Identity, Claims: claims}, nil
}

// SignUp creates a user unless one with the same email exists.
func (s *Service) SignUp(ctx context.Context, u NewUser) (_ *SignUpResult, rerr error) {
	ctx, span := s.tracer.Start(ctx, "auth.SignUp")
	defer func() { endSpan(span, rerr) }()

	exists, err := s.users.Exists(ctx, u.Email)
	if err != nil {
		return nil, errors.Wrap(err, "check user exists")
	}
	if exists {
		s.signUps.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "exists")))
		return &SignUpResult{}, nil
	}

	hash, err := s.hasher.Hash(u.Password)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}

	id, err := s.users.Create(ctx, NewUser{Name: u.Name, Email: u.Email, Password: hash})
	if err != nil {
		// Lost a race with a concurrent sign-up for the same email.
		if errors.Is(err, ErrUserExists) {
			s.signUps.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "exists")))
			return &SignUpResult{}, nil
		}
		return nil, errors.Wrap(err, "create user")
	}

	s.signUps.Add(ctx, 1, metric.WithAttributes(attribute.String("result", "created")))
	return &SignUpResult{ID: id, Created: true}, nil
}

func resultOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	default:
		return "error"
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
