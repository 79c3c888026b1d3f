// Package board implements posts and their comments.
package board

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrNotFound     = errors.New("board: not found")
	ErrInvalidInput = errors.New("board: invalid input")
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
	maxTitleLen      = 200
)

type Post struct {
	ID          int64     `json:"postId"`
	PrincipalID int64     `json:"userId"`
	Title       string    `json:"title"`
	Content     string    `json:"content,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type Comment struct {
	ID          int64     `json:"commentId"`
	PostID      int64     `json:"postId"`
	PrincipalID int64     `json:"userId"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Store persists posts and comments. Lists are newest first.
// CreateComment returns ErrNotFound when the post does not exist.
type Store interface {
	CreatePost(ctx context.Context, p Post) (Post, error)
	ListPosts(ctx context.Context, limit int) ([]Post, error)
	GetPost(ctx context.Context, id int64) (Post, error)
	CreateComment(ctx context.Context, c Comment) (Comment, error)
	ListComments(ctx context.Context, postID int64, limit int) ([]Comment, error)
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) CreatePost(ctx context.Context, principalID int64, title, content string) (Post, error) {
	title = strings.TrimSpace(title)
	if title == "" || len(title) > maxTitleLen {
		return Post{}, fmt.Errorf("%w: title must be 1-%d characters", ErrInvalidInput, maxTitleLen)
	}
	if strings.TrimSpace(content) == "" {
		return Post{}, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	return s.store.CreatePost(ctx, Post{PrincipalID: principalID, Title: title, Content: content})
}

// ListPosts returns post headers; content is only served by GetPost.
func (s *Service) ListPosts(ctx context.Context, limit int) ([]Post, error) {
	posts, err := s.store.ListPosts(ctx, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	for i := range posts {
		posts[i].Content = ""
	}
	return posts, nil
}

func (s *Service) GetPost(ctx context.Context, id int64) (Post, error) {
	if id <= 0 {
		return Post{}, ErrNotFound
	}
	return s.store.GetPost(ctx, id)
}

func (s *Service) CreateComment(ctx context.Context, principalID, postID int64, content string) (Comment, error) {
	if postID <= 0 {
		return Comment{}, ErrNotFound
	}
	if strings.TrimSpace(content) == "" {
		return Comment{}, fmt.Errorf("%w: content is required", ErrInvalidInput)
	}
	return s.store.CreateComment(ctx, Comment{PostID: postID, PrincipalID: principalID, Content: content})
}

// ListComments returns ErrNotFound for unknown posts rather than an empty list.
func (s *Service) ListComments(ctx context.Context, postID int64, limit int) ([]Comment, error) {
	if _, err := s.GetPost(ctx, postID); err != nil {
		return nil, err
	}
	return s.store.ListComments(ctx, postID, clampLimit(limit))
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
