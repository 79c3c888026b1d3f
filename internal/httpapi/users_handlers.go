package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"postboard.dev/internal/account"
	"postboard.dev/internal/audit"
	"postboard.dev/internal/auth"
	"postboard.dev/internal/obs"
	"postboard.dev/internal/profile"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signInResponse struct {
	UserID    int64     `json:"userId"`
	Mode      auth.Mode `json:"mode"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type userResponse struct {
	auth.Principal
	Profile profile.Snapshot `json:"profile"`
}

type updateResponse struct {
	Profile profile.Snapshot       `json:"profile"`
	Changes []profile.HistoryEntry `json:"changes"`
}

func (a *API) signUp(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.accounts == nil {
		writeError(w, r, http.StatusServiceUnavailable, "accounts unavailable")
		return
	}
	var req account.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	p, prof, err := a.accounts.Register(r.Context(), req)
	if err != nil {
		a.writeAccountError(w, r, "register failed", err)
		return
	}
	ctx := auth.ContextWithPrincipal(r.Context(), p)
	_ = audit.LogEvent(ctx, "account.registered", map[string]any{"email": p.Email})
	writeJSON(w, http.StatusCreated, userResponse{Principal: p, Profile: prof})
}

func (a *API) signIn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if a.accounts == nil {
		writeError(w, r, http.StatusServiceUnavailable, "accounts unavailable")
		return
	}
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	issued, err := a.accounts.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) {
			_ = audit.LogEvent(r.Context(), "account.sign_in_failed", nil)
			writeError(w, r, http.StatusUnauthorized, "invalid email or password")
			return
		}
		writeInternal(w, r, "sign in failed", err)
		return
	}

	a.setCredentialCookie(w, issued.Mode, issued.Credential, issued.ExpiresAt)
	ctx := auth.ContextWithPrincipal(r.Context(), issued.Principal)
	_ = audit.LogEvent(ctx, "account.signed_in", map[string]any{"mode": string(issued.Mode)})

	resp := signInResponse{
		UserID:    issued.Principal.ID,
		Mode:      issued.Mode,
		ExpiresAt: issued.ExpiresAt,
	}
	if issued.Mode == auth.ModeToken {
		resp.Token = issued.Credential
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) signOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	credential, _ := auth.CredentialFromContext(r.Context())
	if err := a.accounts.SignOut(r.Context(), credential); err != nil {
		writeInternal(w, r, "sign out failed", err)
		return
	}
	a.clearCredentialCookie(w, a.accounts.Mode())
	_ = audit.LogEvent(r.Context(), "account.signed_out", nil)
	w.WriteHeader(http.StatusNoContent)
}

// users serves the caller's own profile: GET reads it, PATCH updates it.
func (a *API) users(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.getUser(w, r)
	case http.MethodPatch:
		a.patchUser(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPatch)
	}
}

func (a *API) getUser(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	prof, err := a.profiles.Profile(r.Context(), p.ID)
	if err != nil {
		a.writeProfileError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{Principal: p, Profile: prof})
}

func (a *API) patchUser(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())

	var patch profile.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	var current *profile.Snapshot
	prof, err := a.profiles.Profile(r.Context(), p.ID)
	switch {
	case err == nil:
		current = &prof
	case errors.Is(err, profile.ErrProfileNotFound):
	default:
		writeInternal(w, r, "load profile failed", err)
		return
	}

	res, err := a.profiles.Update(r.Context(), p.ID, current, patch)
	obs.ObserveProfileMutation(string(res.Outcome), len(res.Changes))
	if err != nil {
		a.writeProfileError(w, r, err)
		return
	}

	if len(res.Changes) > 0 {
		fields := make([]string, 0, len(res.Changes))
		for _, c := range res.Changes {
			fields = append(fields, c.ChangedField)
		}
		_ = audit.LogEvent(r.Context(), "profile.updated", map[string]any{"fields": fields})
	}
	writeJSON(w, http.StatusOK, updateResponse{Profile: res.Profile, Changes: res.Changes})
}

func (a *API) userHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	entries, err := a.profiles.History(r.Context(), p.ID, limit)
	if err != nil {
		writeInternal(w, r, "list history failed", err)
		return
	}
	if entries == nil {
		entries = []profile.HistoryEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": entries})
}

func (a *API) writeAccountError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, account.ErrDuplicateIdentity):
		writeError(w, r, http.StatusConflict, "email already registered")
	case errors.Is(err, account.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeInternal(w, r, msg, err)
	}
}

func (a *API) writeProfileError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, profile.ErrProfileNotFound):
		writeError(w, r, http.StatusNotFound, "profile not found")
	case errors.Is(err, profile.ErrInvalidPatch):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, profile.ErrTransactionFailed):
		writeInternal(w, r, "profile update rolled back", err)
	default:
		writeInternal(w, r, "profile error", err)
	}
}

func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return n, nil
}
