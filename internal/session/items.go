package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"boardsync/internal/apiclient"
	"boardsync/internal/idempotency"
	"boardsync/internal/models"
	"boardsync/internal/perm"
	"boardsync/internal/reconcile"
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", apiclient.ErrValidation, fmt.Sprintf(format, args...))
}

// item returns the board copy of an item, fetching it when it is not shown.
func (s *Session) item(ctx context.Context, itemID int64) (models.Item, error) {
	if it, ok := s.store.Item(itemID); ok {
		return it, nil
	}
	it, err := s.api.GetItem(ctx, itemID)
	if err != nil {
		return models.Item{}, s.failed(fmt.Errorf("item %d: %w", itemID, err))
	}
	return it, nil
}

// settle refreshes after a mutation made outside the drag flow.
func (s *Session) settle(ctx context.Context) {
	err := s.recon.Refresh(ctx, reconcile.TriggerManual)
	if err != nil && !errors.Is(err, reconcile.ErrGated) {
		s.logger.Warn("refresh after mutation failed", slog.String("error", err.Error()))
		_ = s.failed(err)
	}
}

func (s *Session) validateFields(priority *models.Priority, dueDate *string, assignee *int64) error {
	if priority != nil && *priority != "" && !priority.Valid() {
		return invalid("unknown priority %q", *priority)
	}
	if dueDate != nil {
		if _, err := models.ParseDueDate(*dueDate); err != nil {
			return invalid("%v", err)
		}
	}
	if assignee != nil && !s.isMember(*assignee) {
		return fmt.Errorf("user %d: %w", *assignee, ErrNotMember)
	}
	return nil
}

// resolveColumn fills in whichever of status and column is missing so the
// two always travel together.
func (s *Session) resolveColumn(status string, columnID int64) (string, int64, error) {
	switch {
	case status != "" && columnID != 0:
		col, ok := s.store.Column(status)
		if !ok || col.ID != columnID {
			return "", 0, invalid("status %q does not match column %d", status, columnID)
		}
		return status, columnID, nil
	case status != "":
		col, ok := s.store.Column(status)
		if !ok {
			return "", 0, invalid("unknown status %q", status)
		}
		return status, col.ID, nil
	case columnID != 0:
		for _, col := range s.store.Columns() {
			if col.ID == columnID {
				return col.Status, col.ID, nil
			}
		}
		return "", 0, invalid("unknown column %d", columnID)
	}
	cols := s.store.Columns()
	if len(cols) == 0 {
		return "", 0, invalid("project has no columns")
	}
	return cols[0].Status, cols[0].ID, nil
}

// CreateItem adds an item to the project. It lands in the first column
// unless a status or column is given.
func (s *Session) CreateItem(ctx context.Context, fields models.ItemFields) (models.Item, error) {
	if err := s.writable(); err != nil {
		return models.Item{}, err
	}
	if !s.ProjectPermissions().Can(perm.CreateItem) {
		return models.Item{}, fmt.Errorf("create item: %w", ErrNotPermitted)
	}
	fields.Title = strings.TrimSpace(fields.Title)
	if fields.Title == "" {
		return models.Item{}, invalid("title is required")
	}
	if fields.Type == "" {
		fields.Type = models.TypeTask
	}
	if _, ok := models.ValidItemTypes[fields.Type]; !ok {
		return models.Item{}, invalid("unknown item type %q", fields.Type)
	}
	if err := s.validateFields(&fields.Priority, &fields.DueDate, fields.AssigneeID); err != nil {
		return models.Item{}, err
	}
	if fields.ParentID != nil {
		parent, err := s.item(ctx, *fields.ParentID)
		if err != nil {
			return models.Item{}, err
		}
		if err := models.ValidateParent(parent); err != nil {
			return models.Item{}, err
		}
	}
	status, columnID, err := s.resolveColumn(fields.Status, fields.ColumnID)
	if err != nil {
		return models.Item{}, err
	}
	fields.Status, fields.ColumnID = status, columnID

	ctx, _ = idempotency.WithNewKey(ctx)
	it, err := s.api.CreateItem(ctx, s.project.ID, fields)
	if err != nil {
		return models.Item{}, s.failed(fmt.Errorf("create item: %w", err))
	}
	s.settle(ctx)
	return it, nil
}

// UpdateItem edits an item. A patch that changes status or column needs the
// move right, any other patch the edit right.
func (s *Session) UpdateItem(ctx context.Context, itemID int64, patch models.ItemPatch) (models.Item, error) {
	if err := s.writable(); err != nil {
		return models.Item{}, err
	}
	if patch.Empty() {
		return models.Item{}, invalid("nothing to update")
	}
	if err := patch.Validate(); err != nil {
		return models.Item{}, invalid("%v", err)
	}
	cur, err := s.item(ctx, itemID)
	if err != nil {
		return models.Item{}, err
	}
	grant := s.Grant(cur)
	if !grant.Can(perm.EditFields) || (patch.IsMove() && !grant.Can(perm.MoveColumn)) {
		return models.Item{}, fmt.Errorf("update item %d: %w", itemID, ErrNotPermitted)
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return models.Item{}, invalid("title is required")
	}
	if err := s.validateFields(patch.Priority, patch.DueDate, patch.AssigneeID); err != nil {
		return models.Item{}, err
	}
	if patch.IsMove() {
		var status string
		var columnID int64
		if patch.Status != nil {
			status = *patch.Status
		}
		if patch.ColumnID != nil {
			columnID = *patch.ColumnID
		}
		status, columnID, err = s.resolveColumn(status, columnID)
		if err != nil {
			return models.Item{}, err
		}
		patch.Status, patch.ColumnID = &status, &columnID
	}

	ctx, _ = idempotency.WithNewKey(ctx)
	it, err := s.api.UpdateItem(ctx, itemID, patch)
	if err != nil {
		return models.Item{}, s.failed(fmt.Errorf("update item %d: %w", itemID, err))
	}
	s.settle(ctx)
	return it, nil
}

// DeleteItem removes an item.
func (s *Session) DeleteItem(ctx context.Context, itemID int64) error {
	if err := s.writable(); err != nil {
		return err
	}
	cur, err := s.item(ctx, itemID)
	if err != nil {
		return err
	}
	if !s.Grant(cur).Can(perm.DeleteItem) {
		return fmt.Errorf("delete item %d: %w", itemID, ErrNotPermitted)
	}
	ctx, _ = idempotency.WithNewKey(ctx)
	if err := s.api.DeleteItem(ctx, itemID); err != nil {
		return s.failed(fmt.Errorf("delete item %d: %w", itemID, err))
	}
	s.settle(ctx)
	return nil
}
