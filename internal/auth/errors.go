package auth

import "errors"

// Credential failures. Each one stops the request before any protected
// handler runs.
var (
	ErrMissingCredential   = errors.New("auth: missing credential")
	ErrMalformedCredential = errors.New("auth: malformed credential")
	ErrCredentialExpired   = errors.New("auth: credential expired")
	ErrCredentialForged    = errors.New("auth: credential forged")
	ErrPrincipalNotFound   = errors.New("auth: principal not found")
)

// FailureKind returns a stable label for err, suitable for metrics and logs.
func FailureKind(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrMissingCredential):
		return "missing_credential"
	case errors.Is(err, ErrMalformedCredential):
		return "malformed_credential"
	case errors.Is(err, ErrCredentialExpired):
		return "credential_expired"
	case errors.Is(err, ErrCredentialForged):
		return "credential_forged"
	case errors.Is(err, ErrPrincipalNotFound):
		return "principal_not_found"
	default:
		return "internal"
	}
}

// IsCredentialFailure reports whether err describes a rejected credential
// rather than an infrastructure problem.
func IsCredentialFailure(err error) bool {
	k := FailureKind(err)
	return k != "none" && k != "internal"
}
