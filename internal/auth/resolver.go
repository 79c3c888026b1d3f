package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"postboard.dev/internal/session"
)

// Scheme is the only accepted credential scheme in token mode.
const Scheme = "Bearer"

var tracer = otel.Tracer("postboard.dev/internal/auth")

// Mode selects how clients prove their identity.
type Mode string

const (
	ModeToken   Mode = "token"
	ModeSession Mode = "session"
)

// ParseMode validates a configured mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeToken:
		return ModeToken, nil
	case ModeSession:
		return ModeSession, nil
	default:
		return "", fmt.Errorf("unknown auth mode %q", s)
	}
}

// Resolver turns a raw client credential into a verified principal. Any
// returned error means the request must not proceed.
type Resolver interface {
	Resolve(ctx context.Context, credential string) (Principal, error)
}

// TokenResolver resolves "Bearer <jwt>" credentials.
type TokenResolver struct {
	signer     *TokenSigner
	principals PrincipalFinder
}

var _ Resolver = (*TokenResolver)(nil)

func NewTokenResolver(signer *TokenSigner, principals PrincipalFinder) *TokenResolver {
	return &TokenResolver{signer: signer, principals: principals}
}

func (r *TokenResolver) Resolve(ctx context.Context, credential string) (p Principal, err error) {
	ctx, span := tracer.Start(ctx, "auth.ResolveToken", trace.WithSpanKind(trace.SpanKindInternal))
	defer func() { endSpan(span, err) }()

	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Principal{}, ErrMissingCredential
	}
	scheme, token, found := strings.Cut(credential, " ")
	if !found || scheme != Scheme {
		return Principal{}, ErrMalformedCredential
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, ErrMalformedCredential
	}

	claims, err := r.signer.Verify(token)
	if err != nil {
		return Principal{}, err
	}
	span.SetAttributes(attribute.Int64("auth.principal_id", claims.UserID))
	return findPrincipal(ctx, r.principals, claims.UserID)
}

// SessionResolver resolves opaque session ids against a session store and
// re-reads the principal on every request.
type SessionResolver struct {
	sessions   session.Store
	principals PrincipalFinder
}

var _ Resolver = (*SessionResolver)(nil)

func NewSessionResolver(sessions session.Store, principals PrincipalFinder) *SessionResolver {
	return &SessionResolver{sessions: sessions, principals: principals}
}

func (r *SessionResolver) Resolve(ctx context.Context, credential string) (p Principal, err error) {
	ctx, span := tracer.Start(ctx, "auth.ResolveSession", trace.WithSpanKind(trace.SpanKindInternal))
	defer func() { endSpan(span, err) }()

	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Principal{}, ErrMissingCredential
	}
	if !session.ValidID(credential) {
		return Principal{}, ErrMalformedCredential
	}

	principalID, err := r.sessions.Resolve(ctx, credential)
	switch {
	case errors.Is(err, session.ErrExpired):
		return Principal{}, ErrCredentialExpired
	case errors.Is(err, session.ErrNotFound):
		return Principal{}, ErrCredentialForged
	case err != nil:
		return Principal{}, fmt.Errorf("resolve session: %w", err)
	}
	span.SetAttributes(attribute.Int64("auth.principal_id", principalID))
	return findPrincipal(ctx, r.principals, principalID)
}

// NewResolver picks the resolver for mode. Token mode needs a signer, session
// mode a session store.
func NewResolver(mode Mode, signer *TokenSigner, sessions session.Store, principals PrincipalFinder) (Resolver, error) {
	if principals == nil {
		return nil, errors.New("principal finder is required")
	}
	switch mode {
	case ModeToken:
		if signer == nil {
			return nil, errors.New("token mode requires a signer")
		}
		return NewTokenResolver(signer, principals), nil
	case ModeSession:
		if sessions == nil {
			return nil, errors.New("session mode requires a session store")
		}
		return NewSessionResolver(sessions, principals), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", mode)
	}
}

func findPrincipal(ctx context.Context, principals PrincipalFinder, id int64) (Principal, error) {
	p, err := principals.FindPrincipalByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrPrincipalNotFound) {
			return Principal{}, ErrPrincipalNotFound
		}
		return Principal{}, fmt.Errorf("find principal: %w", err)
	}
	return p, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.SetAttributes(attribute.String("auth.failure", FailureKind(err)))
		span.SetStatus(codes.Error, FailureKind(err))
	}
	span.End()
}
