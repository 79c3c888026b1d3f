package httpapi

import (
	"errors"
	"net/http"
	"strconv"

	"postboard.dev/internal/audit"
	"postboard.dev/internal/auth"
	"postboard.dev/internal/board"
)

type postRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type commentRequest struct {
	Content string `json:"content"`
}

func (a *API) posts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit, err := queryLimit(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		items, err := a.board.ListPosts(r.Context(), limit)
		if err != nil {
			writeInternal(w, r, "list posts failed", err)
			return
		}
		if items == nil {
			items = []board.Post{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		a.createPostHandler.ServeHTTP(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) createPost(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	post, err := a.board.CreatePost(r.Context(), p.ID, req.Title, req.Content)
	if err != nil {
		a.writeBoardError(w, r, "create post failed", err)
		return
	}
	_ = audit.LogEvent(r.Context(), "post.created", map[string]any{"post_id": post.ID})
	writeJSON(w, http.StatusCreated, post)
}

func (a *API) post(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	id, ok := postIDFrom(w, r)
	if !ok {
		return
	}
	post, err := a.board.GetPost(r.Context(), id)
	if err != nil {
		a.writeBoardError(w, r, "get post failed", err)
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (a *API) comments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		id, ok := postIDFrom(w, r)
		if !ok {
			return
		}
		limit, err := queryLimit(r)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		items, err := a.board.ListComments(r.Context(), id, limit)
		if err != nil {
			a.writeBoardError(w, r, "list comments failed", err)
			return
		}
		if items == nil {
			items = []board.Comment{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	case http.MethodPost:
		a.createCommentHandler.ServeHTTP(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) createComment(w http.ResponseWriter, r *http.Request) {
	id, ok := postIDFrom(w, r)
	if !ok {
		return
	}
	var req commentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())
	c, err := a.board.CreateComment(r.Context(), p.ID, id, req.Content)
	if err != nil {
		a.writeBoardError(w, r, "create comment failed", err)
		return
	}
	_ = audit.LogEvent(r.Context(), "comment.created", map[string]any{"post_id": id, "comment_id": c.ID})
	writeJSON(w, http.StatusCreated, c)
}

func postIDFrom(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("postId"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, r, http.StatusBadRequest, "invalid post id")
		return 0, false
	}
	return id, true
}

func (a *API) writeBoardError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	switch {
	case errors.Is(err, board.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "post not found")
	case errors.Is(err, board.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		writeInternal(w, r, msg, err)
	}
}
