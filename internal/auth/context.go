package auth

import "context"

type ctxKey int

const (
	principalKey ctxKey = iota
	credentialKey
)

// ContextWithPrincipal attaches the resolved principal to ctx.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext reports the principal set by the gate. A zero ID
// counts as absent.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalKey).(Principal)
	if !ok || p.ID <= 0 {
		return Principal{}, false
	}
	return p, true
}

// ContextWithCredential keeps the raw credential the principal was resolved
// from, so sign-out can revoke exactly that session.
func ContextWithCredential(ctx context.Context, credential string) context.Context {
	if credential == "" {
		return ctx
	}
	return context.WithValue(ctx, credentialKey, credential)
}

func CredentialFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(credentialKey).(string)
	return v, ok && v != ""
}
