package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"boardsync/internal/models"
)

const itemColumns = `id, project_id, column_id, status, type, title, description, priority, due_date,
    assignee_id, reporter_id, parent_id, severity, steps_to_reproduce, created_at, updated_at`

func scanItem(row interface{ Scan(...any) error }) (models.Item, error) {
	var it models.Item
	var assignee, parent sql.NullInt64
	err := row.Scan(&it.ID, &it.ProjectID, &it.ColumnID, &it.Status, &it.Type, &it.Title, &it.Description,
		&it.Priority, &it.DueDate, &assignee, &it.ReporterID, &parent, &it.Severity, &it.StepsToReproduce,
		&it.CreatedAt, &it.UpdatedAt)
	if err != nil {
		return models.Item{}, err
	}
	if assignee.Valid {
		it.AssigneeID = &assignee.Int64
	}
	if parent.Valid {
		it.ParentID = &parent.Int64
	}
	return it, nil
}

func scanItems(rows *sql.Rows) ([]models.Item, error) {
	defer rows.Close()
	items := []models.Item{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListItems returns the items of a project, optionally filtered by type.
// Within a status the most recently placed item comes first.
func (s *Store) ListItems(ctx context.Context, projectID int64, itemType models.ItemType) ([]models.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items WHERE project_id = ?`
	args := []any{projectID}
	if itemType != "" {
		query += ` AND type = ?`
		args = append(args, itemType)
	}
	query += ` ORDER BY position DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return scanItems(rows)
}

// ListSubtasks returns the children of an epic.
func (s *Store) ListSubtasks(ctx context.Context, parentID int64) ([]models.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items WHERE parent_id = ? ORDER BY id ASC`, parentID)
	if err != nil {
		return nil, fmt.Errorf("list subtasks: %w", err)
	}
	return scanItems(rows)
}

// GetItem fetches a single item by id.
func (s *Store) GetItem(ctx context.Context, id int64) (models.Item, error) {
	return getItem(ctx, s.db, id)
}

func getItem(ctx context.Context, q queryer, id int64) (models.Item, error) {
	it, err := scanItem(q.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Item{}, fmt.Errorf("item %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Item{}, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}

// CreateItem inserts an item reported by reporterID at the head of its column.
func (s *Store) CreateItem(ctx context.Context, projectID, reporterID int64, f models.ItemFields) (models.Item, error) {
	title := strings.TrimSpace(f.Title)
	if title == "" {
		return models.Item{}, fmt.Errorf("title must not be empty: %w", ErrInvalid)
	}
	if f.Type == "" {
		f.Type = models.TypeTask
	}
	if _, ok := models.ValidItemTypes[f.Type]; !ok {
		return models.Item{}, fmt.Errorf("type %q: %w", f.Type, ErrInvalid)
	}
	if f.Priority == "" {
		f.Priority = models.PriorityMedium
	}
	if err := checkFields(f.Priority, f.DueDate); err != nil {
		return models.Item{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Item{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	col, err := resolveColumn(ctx, tx, projectID, f.Status, f.ColumnID)
	if err != nil {
		return models.Item{}, err
	}
	if f.ParentID != nil {
		parent, err := getItem(ctx, tx, *f.ParentID)
		if errors.Is(err, ErrNotFound) {
			return models.Item{}, fmt.Errorf("parent %d: %w", *f.ParentID, ErrInvalid)
		}
		if err != nil {
			return models.Item{}, err
		}
		if parent.ProjectID != projectID {
			return models.Item{}, fmt.Errorf("parent %d is in another project: %w", parent.ID, ErrInvalid)
		}
		if err := models.ValidateParent(parent); err != nil {
			return models.Item{}, fmt.Errorf("%v: %w", err, ErrInvalid)
		}
	}
	if err := checkAssignee(ctx, tx, projectID, f.AssigneeID); err != nil {
		return models.Item{}, err
	}

	pos, err := nextPosition(ctx, tx, projectID)
	if err != nil {
		return models.Item{}, err
	}

	res, err := tx.ExecContext(ctx, `INSERT INTO items(project_id, column_id, status, type, title, description, priority,
        due_date, assignee_id, reporter_id, parent_id, severity, steps_to_reproduce, position)
        VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		projectID, col.ID, col.Status, f.Type, title, strings.TrimSpace(f.Description), f.Priority,
		strings.TrimSpace(f.DueDate), f.AssigneeID, reporterID, f.ParentID, f.Severity, f.StepsToReproduce, pos)
	if err != nil {
		return models.Item{}, fmt.Errorf("insert item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Item{}, fmt.Errorf("item id: %w", err)
	}
	it, err := getItem(ctx, tx, id)
	if err != nil {
		return models.Item{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Item{}, fmt.Errorf("commit item: %w", err)
	}
	return it, nil
}

// UpdateItem applies a partial update. A move changes status and column in
// the same statement and puts the item at the head of its new column.
func (s *Store) UpdateItem(ctx context.Context, id int64, patch models.ItemPatch) (models.Item, error) {
	if err := patch.Validate(); err != nil {
		return models.Item{}, fmt.Errorf("%v: %w", err, ErrInvalid)
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return models.Item{}, fmt.Errorf("title must not be empty: %w", ErrInvalid)
	}
	var priority models.Priority
	var due string
	if patch.Priority != nil {
		priority = *patch.Priority
	}
	if patch.DueDate != nil {
		due = *patch.DueDate
	}
	if err := checkFields(priority, due); err != nil {
		return models.Item{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.Item{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	cur, err := getItem(ctx, tx, id)
	if err != nil {
		return models.Item{}, err
	}
	next := patch.Apply(cur)
	pos := int64(-1)
	if patch.IsMove() {
		var status string
		var columnID int64
		if patch.Status != nil {
			status = *patch.Status
		}
		if patch.ColumnID != nil {
			columnID = *patch.ColumnID
		}
		if status == "" && columnID == 0 {
			return models.Item{}, fmt.Errorf("move without status or column: %w", ErrInvalid)
		}
		col, err := resolveColumn(ctx, tx, cur.ProjectID, status, columnID)
		if err != nil {
			return models.Item{}, err
		}
		next.Status, next.ColumnID = col.Status, col.ID
		if col.ID != cur.ColumnID {
			if pos, err = nextPosition(ctx, tx, cur.ProjectID); err != nil {
				return models.Item{}, err
			}
		}
	}
	if patch.AssigneeID != nil {
		if err := checkAssignee(ctx, tx, cur.ProjectID, patch.AssigneeID); err != nil {
			return models.Item{}, err
		}
	}

	_, err = tx.ExecContext(ctx, `UPDATE items SET column_id = ?, status = ?, title = ?, description = ?, priority = ?,
        due_date = ?, assignee_id = ?, severity = ?, steps_to_reproduce = ?,
        position = CASE WHEN ? >= 0 THEN ? ELSE position END
        WHERE id = ?`,
		next.ColumnID, next.Status, strings.TrimSpace(next.Title), next.Description, next.Priority,
		strings.TrimSpace(next.DueDate), next.AssigneeID, next.Severity, next.StepsToReproduce, pos, pos, id)
	if err != nil {
		return models.Item{}, fmt.Errorf("update item: %w", err)
	}
	updated, err := getItem(ctx, tx, id)
	if err != nil {
		return models.Item{}, err
	}
	if err := tx.Commit(); err != nil {
		return models.Item{}, fmt.Errorf("commit item: %w", err)
	}
	return updated, nil
}

// DeleteItem removes an item with its subtasks and comments.
func (s *Store) DeleteItem(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return checkAffected(res, fmt.Sprintf("item %d", id))
}

func checkFields(priority models.Priority, due string) error {
	if priority != "" && !priority.Valid() {
		return fmt.Errorf("priority %q: %w", priority, ErrInvalid)
	}
	if _, err := models.ParseDueDate(due); err != nil {
		return fmt.Errorf("%v: %w", err, ErrInvalid)
	}
	return nil
}

// checkAssignee accepts the project owner, a member row or a member of the
// owning team.
func checkAssignee(ctx context.Context, q queryer, projectID int64, id *int64) error {
	if id == nil {
		return nil
	}
	var ok int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM projects p WHERE p.id = ? AND (
            p.owner_id = ?
            OR EXISTS(SELECT 1 FROM project_members m WHERE m.project_id = p.id AND m.user_id = ?)
            OR EXISTS(SELECT 1 FROM team_members t WHERE t.team_id = p.owner_team_id AND t.user_id = ?))`,
		projectID, *id, *id, *id).Scan(&ok)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("user %d is not a member of project %d: %w", *id, projectID, ErrInvalid)
	}
	if err != nil {
		return fmt.Errorf("check assignee: %w", err)
	}
	return nil
}

func nextPosition(ctx context.Context, q queryer, projectID int64) (int64, error) {
	var pos sql.NullInt64
	if err := q.QueryRowContext(ctx, `SELECT MAX(position) FROM items WHERE project_id = ?`, projectID).Scan(&pos); err != nil {
		return 0, fmt.Errorf("next position: %w", err)
	}
	if !pos.Valid {
		return 1, nil
	}
	return pos.Int64 + 1, nil
}
