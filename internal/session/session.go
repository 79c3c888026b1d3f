// Package session implements server-side sessions: opaque random ids handed
// to the client, with the principal binding and expiry kept in a store.
package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("session: not found")
	ErrExpired  = errors.New("session: expired")
)

const idBytes = 32

// Store persists sessions. Resolve returns ErrNotFound for ids that were never
// issued (or were deleted) and ErrExpired once the expiry has passed.
type Store interface {
	Create(ctx context.Context, principalID int64, ttl time.Duration) (id string, expiresAt time.Time, err error)
	Resolve(ctx context.Context, id string) (principalID int64, err error)
	Delete(ctx context.Context, id string) error
}

// NewID returns a fresh url-safe session id.
func NewID() (string, error) {
	buf := make([]byte, idBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// HashID is the storage key for a session id. Raw ids are never persisted.
func HashID(id string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(id)))
	return hex.EncodeToString(sum[:])
}

// ValidID reports whether id has the shape produced by NewID.
func ValidID(id string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(id)
	return err == nil && len(raw) == idBytes
}
