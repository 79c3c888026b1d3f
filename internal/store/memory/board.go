package memory

import (
	"context"

	"postboard.dev/internal/board"
)

func (s *Store) CreatePost(ctx context.Context, p board.Post) (board.Post, error) {
	if err := ctx.Err(); err != nil {
		return board.Post{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.postSeq++
	now := s.now().UTC()
	p.ID = s.postSeq
	p.CreatedAt = now
	p.UpdatedAt = now
	s.posts = append(s.posts, p)
	return p, nil
}

func (s *Store) ListPosts(ctx context.Context, limit int) ([]board.Post, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []board.Post{}
	for i := len(s.posts) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.posts[i])
	}
	return out, nil
}

func (s *Store) GetPost(ctx context.Context, id int64) (board.Post, error) {
	if err := ctx.Err(); err != nil {
		return board.Post{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.posts {
		if p.ID == id {
			return p, nil
		}
	}
	return board.Post{}, board.ErrNotFound
}

func (s *Store) CreateComment(ctx context.Context, c board.Comment) (board.Comment, error) {
	if err := ctx.Err(); err != nil {
		return board.Comment{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for _, p := range s.posts {
		if p.ID == c.PostID {
			found = true
			break
		}
	}
	if !found {
		return board.Comment{}, board.ErrNotFound
	}
	s.commentSeq++
	now := s.now().UTC()
	c.ID = s.commentSeq
	c.CreatedAt = now
	c.UpdatedAt = now
	s.comments = append(s.comments, c)
	return c, nil
}

func (s *Store) ListComments(ctx context.Context, postID int64, limit int) ([]board.Comment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []board.Comment{}
	for i := len(s.comments) - 1; i >= 0 && len(out) < limit; i-- {
		if s.comments[i].PostID == postID {
			out = append(out, s.comments[i])
		}
	}
	return out, nil
}
