package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"boardsync/internal/columns"
	"boardsync/internal/models"
)

// ListColumns returns the columns of a project ordered by sort order.
func (s *Store) ListColumns(ctx context.Context, projectID int64) ([]models.Column, error) {
	return listColumns(ctx, s.db, projectID)
}

func listColumns(ctx context.Context, q queryer, projectID int64) ([]models.Column, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, project_id, name, status, sort_order FROM board_columns
        WHERE project_id = ? ORDER BY sort_order ASC, id ASC`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer rows.Close()

	cols := []models.Column{}
	for rows.Next() {
		var c models.Column
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.Name, &c.Status, &c.Order); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// CreateColumn adds a column. The status defaults to the slug of the name;
// a second column with the same status in a project is a conflict.
func (s *Store) CreateColumn(ctx context.Context, projectID int64, spec models.ColumnSpec) (models.Column, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return models.Column{}, fmt.Errorf("column name must not be empty: %w", ErrInvalid)
	}
	status := columns.StatusKey(models.Column{Name: name, Status: spec.Status})

	res, err := s.db.ExecContext(ctx, `INSERT INTO board_columns(project_id, name, status, sort_order) VALUES(?, ?, ?, ?)`,
		projectID, name, status, spec.Order)
	if isUnique(err) {
		return models.Column{}, fmt.Errorf("column %q: %w", status, ErrConflict)
	}
	if err != nil {
		return models.Column{}, fmt.Errorf("insert column: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Column{}, fmt.Errorf("column id: %w", err)
	}

	s.logger.Debug("column created", "project_id", projectID, "status", status)
	return models.Column{ID: id, ProjectID: projectID, Name: name, Status: status, Order: spec.Order}, nil
}

func getColumn(ctx context.Context, q queryer, projectID, columnID int64) (models.Column, error) {
	var c models.Column
	err := q.QueryRowContext(ctx, `SELECT id, project_id, name, status, sort_order FROM board_columns
        WHERE id = ? AND project_id = ?`, columnID, projectID).
		Scan(&c.ID, &c.ProjectID, &c.Name, &c.Status, &c.Order)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Column{}, fmt.Errorf("column %d is not in project %d: %w", columnID, projectID, ErrInvalid)
	}
	if err != nil {
		return models.Column{}, fmt.Errorf("get column: %w", err)
	}
	return c, nil
}

// resolveColumn picks the column an item lands in. Status and column must
// agree when both are given; either alone determines the other; neither
// means the first column.
func resolveColumn(ctx context.Context, q queryer, projectID int64, status string, columnID int64) (models.Column, error) {
	status = strings.TrimSpace(status)
	if columnID != 0 {
		col, err := getColumn(ctx, q, projectID, columnID)
		if err != nil {
			return models.Column{}, err
		}
		if status != "" && status != col.Status {
			return models.Column{}, fmt.Errorf("status %q does not match column %q: %w", status, col.Status, ErrInvalid)
		}
		return col, nil
	}

	cols, err := listColumns(ctx, q, projectID)
	if err != nil {
		return models.Column{}, err
	}
	if len(cols) == 0 {
		return models.Column{}, fmt.Errorf("project %d has no columns: %w", projectID, ErrInvalid)
	}
	if status == "" {
		return cols[0], nil
	}
	for _, c := range cols {
		if c.Status == status {
			return c, nil
		}
	}
	return models.Column{}, fmt.Errorf("no column with status %q: %w", status, ErrInvalid)
}
