package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultIssuer is written into every token this service signs.
const DefaultIssuer = "postboard"

var errMissingSecret = errors.New("auth secret is not configured")

// TokenConfig is the immutable signing configuration. It is built once at
// startup and handed to NewTokenSigner.
type TokenConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
}

// Claims represents JWT claims carried by access tokens.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenSigner issues and verifies HS256 access tokens.
type TokenSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// SignerOption configures a TokenSigner.
type SignerOption func(*TokenSigner)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) SignerOption {
	return func(s *TokenSigner) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTokenSigner validates cfg and returns a signer bound to it.
func NewTokenSigner(cfg TokenConfig, opts ...SignerOption) (*TokenSigner, error) {
	if len(strings.TrimSpace(string(cfg.Secret))) == 0 {
		return nil, errMissingSecret
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("token ttl must be greater than zero")
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = DefaultIssuer
	}
	s := &TokenSigner{
		secret: append([]byte(nil), cfg.Secret...),
		issuer: issuer,
		ttl:    cfg.TTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL reports how long issued tokens stay valid.
func (s *TokenSigner) TTL() time.Duration { return s.ttl }

// Sign issues a token for the principal and returns it with its expiry.
func (s *TokenSigner) Sign(principalID int64) (string, time.Time, error) {
	if principalID <= 0 {
		return "", time.Time{}, errors.New("principal id is required")
	}
	now := s.now().UTC().Truncate(time.Second)
	expires := now.Add(s.ttl)
	claims := Claims{
		UserID: principalID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   strconv.FormatInt(principalID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify checks the signature, algorithm, issuer and expiry of token.
// The signature is checked first; an expired token is reported as
// ErrCredentialExpired only when its signature is valid.
func (s *TokenSigner) Verify(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrMissingCredential
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrCredentialExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrCredentialForged, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrCredentialForged
	}
	if claims.UserID <= 0 || claims.Subject != strconv.FormatInt(claims.UserID, 10) {
		return nil, fmt.Errorf("%w: principal id missing", ErrCredentialForged)
	}
	return claims, nil
}
