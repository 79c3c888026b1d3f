package auth

import (
	"context"
	"time"
)

// Principal is an authenticated user account.
type Principal struct {
	ID           int64     `json:"userId"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// PrincipalFinder loads principals from storage. Implementations return
// ErrPrincipalNotFound when no row matches.
type PrincipalFinder interface {
	FindPrincipalByID(ctx context.Context, id int64) (Principal, error)
}
