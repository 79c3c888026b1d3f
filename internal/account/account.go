// Package account handles registration and sign-in.
package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"postboard.dev/internal/auth"
	"postboard.dev/internal/profile"
	"postboard.dev/internal/session"
)

var (
	ErrDuplicateIdentity  = errors.New("account: email already registered")
	ErrInvalidInput       = errors.New("account: invalid input")
	ErrInvalidCredentials = errors.New("account: invalid email or password")
)

const minPasswordLen = 6

// RegisterRequest carries sign-up input.
type RegisterRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	Age          int    `json:"age"`
	Gender       string `json:"gender"`
	ProfileImage string `json:"profileImage"`
}

// NewAccount is what the store persists at registration.
type NewAccount struct {
	Email        string
	PasswordHash string
	Profile      profile.Snapshot
}

// Store persists principals. CreatePrincipalAndProfile writes both rows in
// one transaction and returns ErrDuplicateIdentity on an email clash.
type Store interface {
	auth.PrincipalFinder
	FindPrincipalByEmail(ctx context.Context, email string) (auth.Principal, error)
	CreatePrincipalAndProfile(ctx context.Context, acct NewAccount) (auth.Principal, profile.Snapshot, error)
}

// Issued is a credential handed out at sign-in.
type Issued struct {
	Mode       auth.Mode
	Credential string
	ExpiresAt  time.Time
	Principal  auth.Principal
}

type Service struct {
	store        Store
	mode         auth.Mode
	signer       *auth.TokenSigner
	sessions     session.Store
	sessionTTL   time.Duration
	passwordCost int
}

// Option configures a Service.
type Option func(*Service) error

// WithTokens enables token issuance.
func WithTokens(signer *auth.TokenSigner) Option {
	return func(s *Service) error {
		if signer == nil {
			return errors.New("signer is nil")
		}
		s.signer = signer
		return nil
	}
}

// WithSessions enables session issuance.
func WithSessions(store session.Store, ttl time.Duration) Option {
	return func(s *Service) error {
		if store == nil {
			return errors.New("session store is nil")
		}
		if ttl <= 0 {
			return errors.New("session ttl must be greater than zero")
		}
		s.sessions = store
		s.sessionTTL = ttl
		return nil
	}
}

// WithPasswordCost overrides the bcrypt cost.
func WithPasswordCost(cost int) Option {
	return func(s *Service) error {
		s.passwordCost = cost
		return nil
	}
}

func NewService(store Store, mode auth.Mode, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("account store is nil")
	}
	s := &Service{store: store, mode: mode}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	switch mode {
	case auth.ModeToken:
		if s.signer == nil {
			return nil, errors.New("token mode requires WithTokens")
		}
	case auth.ModeSession:
		if s.sessions == nil {
			return nil, errors.New("session mode requires WithSessions")
		}
	default:
		return nil, fmt.Errorf("unknown auth mode %q", mode)
	}
	return s, nil
}

// Mode reports which credential kind SignIn issues.
func (s *Service) Mode() auth.Mode { return s.mode }

// Register creates the principal and its profile together.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (auth.Principal, profile.Snapshot, error) {
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return auth.Principal{}, profile.Snapshot{}, err
	}
	if len(req.Password) < minPasswordLen {
		return auth.Principal{}, profile.Snapshot{}, fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, minPasswordLen)
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return auth.Principal{}, profile.Snapshot{}, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if req.Age < 0 || req.Age > 200 {
		return auth.Principal{}, profile.Snapshot{}, fmt.Errorf("%w: age out of range", ErrInvalidInput)
	}

	if _, err := s.store.FindPrincipalByEmail(ctx, email); err == nil {
		return auth.Principal{}, profile.Snapshot{}, ErrDuplicateIdentity
	} else if !errors.Is(err, auth.ErrPrincipalNotFound) {
		return auth.Principal{}, profile.Snapshot{}, fmt.Errorf("lookup email: %w", err)
	}

	hash, err := auth.HashPassword(req.Password, s.passwordCost)
	if err != nil {
		return auth.Principal{}, profile.Snapshot{}, fmt.Errorf("hash password: %w", err)
	}

	p, prof, err := s.store.CreatePrincipalAndProfile(ctx, NewAccount{
		Email:        email,
		PasswordHash: hash,
		Profile: profile.Snapshot{
			Name:         name,
			Age:          req.Age,
			Gender:       strings.TrimSpace(req.Gender),
			ProfileImage: strings.TrimSpace(req.ProfileImage),
		},
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateIdentity) {
			return auth.Principal{}, profile.Snapshot{}, ErrDuplicateIdentity
		}
		return auth.Principal{}, profile.Snapshot{}, fmt.Errorf("%w: %w", profile.ErrTransactionFailed, err)
	}
	return p, prof, nil
}

// SignIn checks the password and issues a credential in the configured mode.
func (s *Service) SignIn(ctx context.Context, email, password string) (Issued, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Issued{}, ErrInvalidCredentials
	}
	p, err := s.store.FindPrincipalByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, auth.ErrPrincipalNotFound) {
			return Issued{}, ErrInvalidCredentials
		}
		return Issued{}, fmt.Errorf("lookup email: %w", err)
	}
	if err := auth.VerifyPassword(p.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return Issued{}, ErrInvalidCredentials
		}
		return Issued{}, fmt.Errorf("verify password: %w", err)
	}

	switch s.mode {
	case auth.ModeSession:
		id, expires, err := s.sessions.Create(ctx, p.ID, s.sessionTTL)
		if err != nil {
			return Issued{}, fmt.Errorf("create session: %w", err)
		}
		return Issued{Mode: auth.ModeSession, Credential: id, ExpiresAt: expires, Principal: p}, nil
	default:
		token, expires, err := s.signer.Sign(p.ID)
		if err != nil {
			return Issued{}, err
		}
		return Issued{Mode: auth.ModeToken, Credential: token, ExpiresAt: expires, Principal: p}, nil
	}
}

// SignOut revokes the presented session. Tokens cannot be revoked; in token
// mode the client simply drops its cookie.
func (s *Service) SignOut(ctx context.Context, credential string) error {
	if s.mode != auth.ModeSession || credential == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, credential); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	return email, nil
}
