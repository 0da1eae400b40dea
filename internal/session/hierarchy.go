package session

import (
	"context"
	"fmt"
	"strings"

	"boardsync/internal/idempotency"
	"boardsync/internal/models"
	"boardsync/internal/perm"
)

// Subtasks returns the children of an epic.
func (s *Session) Subtasks(ctx context.Context, epicID int64) ([]models.Item, error) {
	subs, err := s.api.ListSubtasks(ctx, epicID)
	if err != nil {
		return nil, s.failed(fmt.Errorf("subtasks of %d: %w", epicID, err))
	}
	return subs, nil
}

// CreateSubtask adds a child item below an epic.
func (s *Session) CreateSubtask(ctx context.Context, epicID int64, fields models.ItemFields) (models.Item, error) {
	fields.ParentID = &epicID
	return s.CreateItem(ctx, fields)
}

// Epic returns the parent epic of a subtask with its subtasks attached.
func (s *Session) Epic(ctx context.Context, it models.Item) (models.Item, error) {
	if !it.IsSubtask() {
		return models.Item{}, fmt.Errorf("item %d: %w", it.ID, ErrNoParent)
	}
	parent, err := s.item(ctx, *it.ParentID)
	if err != nil {
		return models.Item{}, err
	}
	if err := models.ValidateParent(parent); err != nil {
		return models.Item{}, err
	}
	subs, err := s.Subtasks(ctx, parent.ID)
	if err != nil {
		return models.Item{}, err
	}
	return models.AttachSubtasks(parent, subs), nil
}

// Comments returns the comments on an item.
func (s *Session) Comments(ctx context.Context, itemID int64) ([]models.Comment, error) {
	cs, err := s.api.ListComments(ctx, itemID)
	if err != nil {
		return nil, s.failed(fmt.Errorf("comments of %d: %w", itemID, err))
	}
	return cs, nil
}

// AddComment appends a comment as the current user.
func (s *Session) AddComment(ctx context.Context, itemID int64, content string) (models.Comment, error) {
	if err := s.writable(); err != nil {
		return models.Comment{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Comment{}, invalid("comment is empty")
	}
	ctx, _ = idempotency.WithNewKey(ctx)
	c, err := s.api.CreateComment(ctx, itemID, content)
	if err != nil {
		return models.Comment{}, s.failed(fmt.Errorf("add comment: %w", err))
	}
	return c, nil
}

// EditComment replaces the content of a comment. Only its author may.
func (s *Session) EditComment(ctx context.Context, c models.Comment, content string) (models.Comment, error) {
	if err := s.writable(); err != nil {
		return models.Comment{}, err
	}
	if !perm.CanEditComment(s.user, c) {
		return models.Comment{}, fmt.Errorf("edit comment %d: %w", c.ID, ErrNotPermitted)
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return models.Comment{}, invalid("comment is empty")
	}
	ctx, _ = idempotency.WithNewKey(ctx)
	out, err := s.api.UpdateComment(ctx, c.ID, content)
	if err != nil {
		return models.Comment{}, s.failed(fmt.Errorf("edit comment %d: %w", c.ID, err))
	}
	return out, nil
}
