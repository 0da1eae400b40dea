package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"boardsync/internal/models"
)

func scanComment(row interface{ Scan(...any) error }) (models.Comment, error) {
	var c models.Comment
	err := row.Scan(&c.ID, &c.ItemID, &c.AuthorID, &c.Content, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// ListComments returns the comments of an item, oldest first.
func (s *Store) ListComments(ctx context.Context, itemID int64) ([]models.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, item_id, author_id, content, created_at, updated_at
        FROM comments WHERE item_id = ? ORDER BY created_at ASC, id ASC`, itemID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// GetComment fetches a single comment.
func (s *Store) GetComment(ctx context.Context, id int64) (models.Comment, error) {
	c, err := scanComment(s.db.QueryRowContext(ctx, `SELECT id, item_id, author_id, content, created_at, updated_at
        FROM comments WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Comment{}, fmt.Errorf("comment %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Comment{}, fmt.Errorf("get comment: %w", err)
	}
	return c, nil
}

// CreateComment appends a comment to an item.
func (s *Store) CreateComment(ctx context.Context, itemID, authorID int64, content string) (models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Comment{}, fmt.Errorf("comment must not be empty: %w", ErrInvalid)
	}
	if _, err := s.GetItem(ctx, itemID); err != nil {
		return models.Comment{}, err
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO comments(item_id, author_id, content) VALUES(?, ?, ?)`, itemID, authorID, content)
	if err != nil {
		return models.Comment{}, fmt.Errorf("insert comment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Comment{}, fmt.Errorf("comment id: %w", err)
	}
	return s.GetComment(ctx, id)
}

// UpdateComment rewrites a comment. Only its author may do so.
func (s *Store) UpdateComment(ctx context.Context, id, authorID int64, content string) (models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Comment{}, fmt.Errorf("comment must not be empty: %w", ErrInvalid)
	}
	c, err := s.GetComment(ctx, id)
	if err != nil {
		return models.Comment{}, err
	}
	if c.AuthorID != authorID {
		return models.Comment{}, fmt.Errorf("comment %d: %w", id, ErrForbidden)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE comments SET content = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, content, id); err != nil {
		return models.Comment{}, fmt.Errorf("update comment: %w", err)
	}
	return s.GetComment(ctx, id)
}
