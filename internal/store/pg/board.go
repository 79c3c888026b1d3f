package pg

import (
	"context"
	"database/sql"
	"errors"

	"postboard.dev/internal/board"
)

func (s *Store) CreatePost(ctx context.Context, p board.Post) (board.Post, error) {
	if s.db == nil {
		return board.Post{}, errNoDB
	}
	err := s.db.QueryRowContext(ctx, `
		insert into posts(user_id, title, content)
		values ($1, $2, $3)
		returning post_id, created_at, updated_at
	`, p.PrincipalID, p.Title, p.Content).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return board.Post{}, err
	}
	return p, nil
}

func (s *Store) ListPosts(ctx context.Context, limit int) ([]board.Post, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select post_id, user_id, title, created_at, updated_at
		from posts
		order by created_at desc, post_id desc
		limit $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []board.Post{}
	for rows.Next() {
		var p board.Post
		if err := rows.Scan(&p.ID, &p.PrincipalID, &p.Title, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) GetPost(ctx context.Context, id int64) (board.Post, error) {
	if s.db == nil {
		return board.Post{}, errNoDB
	}
	var p board.Post
	err := s.db.QueryRowContext(ctx, `
		select post_id, user_id, title, content, created_at, updated_at
		from posts where post_id = $1
	`, id).Scan(&p.ID, &p.PrincipalID, &p.Title, &p.Content, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return board.Post{}, board.ErrNotFound
	}
	if err != nil {
		return board.Post{}, err
	}
	return p, nil
}

// CreateComment relies on the posts foreign key to reject unknown posts.
func (s *Store) CreateComment(ctx context.Context, c board.Comment) (board.Comment, error) {
	if s.db == nil {
		return board.Comment{}, errNoDB
	}
	err := s.db.QueryRowContext(ctx, `
		insert into comments(post_id, user_id, content)
		values ($1, $2, $3)
		returning comment_id, created_at, updated_at
	`, c.PostID, c.PrincipalID, c.Content).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return board.Comment{}, board.ErrNotFound
		}
		return board.Comment{}, err
	}
	return c, nil
}

func (s *Store) ListComments(ctx context.Context, postID int64, limit int) ([]board.Comment, error) {
	if s.db == nil {
		return nil, errNoDB
	}
	rows, err := s.db.QueryContext(ctx, `
		select comment_id, post_id, user_id, content, created_at, updated_at
		from comments
		where post_id = $1
		order by created_at desc, comment_id desc
		limit $2
	`, postID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []board.Comment{}
	for rows.Next() {
		var c board.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.PrincipalID, &c.Content, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
