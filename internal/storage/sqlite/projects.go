package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"boardsync/internal/models"
)

const projectColumns = `id, name, description, owner_id, owner_team_id, created_at, updated_at`

func scanProject(row interface{ Scan(...any) error }) (models.Project, error) {
	var p models.Project
	var team sql.NullInt64
	if err := row.Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &team, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return models.Project{}, err
	}
	if team.Valid {
		p.OwnerTeamID = &team.Int64
	}
	return p, nil
}

// ListProjects returns the projects a user owns, is a member of, or owns
// through a team.
func (s *Store) ListProjects(ctx context.Context, userID int64) ([]models.Project, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects
        WHERE owner_id = ?
           OR id IN (SELECT project_id FROM project_members WHERE user_id = ?)
           OR owner_team_id IN (SELECT team_id FROM team_members WHERE user_id = ?)
        ORDER BY created_at ASC, id ASC`, userID, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []models.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// CreateProject persists a new project owned by its creator.
func (s *Store) CreateProject(ctx context.Context, ownerID int64, name, description string, ownerTeamID *int64) (models.Project, error) {
	if strings.TrimSpace(name) == "" {
		return models.Project{}, fmt.Errorf("project name must not be empty: %w", ErrInvalid)
	}

	res, err := s.db.ExecContext(ctx, `INSERT INTO projects(name, description, owner_id, owner_team_id) VALUES(?, ?, ?, ?)`,
		strings.TrimSpace(name), strings.TrimSpace(description), ownerID, ownerTeamID)
	if err != nil {
		return models.Project{}, fmt.Errorf("insert project: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.Project{}, fmt.Errorf("project id: %w", err)
	}
	return s.GetProject(ctx, id)
}

// GetProject fetches a single project by id.
func (s *Store) GetProject(ctx context.Context, id int64) (models.Project, error) {
	p, err := scanProject(s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Project{}, fmt.Errorf("project %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Project{}, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// SetOwnerTeam assigns or clears the owning team of a project.
func (s *Store) SetOwnerTeam(ctx context.Context, projectID int64, teamID *int64) (models.Project, error) {
	res, err := s.db.ExecContext(ctx, `UPDATE projects SET owner_team_id = ? WHERE id = ?`, teamID, projectID)
	if err != nil {
		return models.Project{}, fmt.Errorf("update project: %w", err)
	}
	if err := checkAffected(res, fmt.Sprintf("project %d", projectID)); err != nil {
		return models.Project{}, err
	}
	return s.GetProject(ctx, projectID)
}

// DeleteProject removes a project along with its columns, items and members.
func (s *Store) DeleteProject(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	return checkAffected(res, fmt.Sprintf("project %d", id))
}

// AddMember gives a user a role in a project. A user has at most one row
// per project.
func (s *Store) AddMember(ctx context.Context, projectID, userID int64, role models.Role) (models.Member, error) {
	if _, ok := models.ValidRoles[role]; !ok {
		return models.Member{}, fmt.Errorf("role %q: %w", role, ErrInvalid)
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO project_members(project_id, user_id, role) VALUES(?, ?, ?)`, projectID, userID, role)
	if isUnique(err) {
		return models.Member{}, fmt.Errorf("member %d of project %d: %w", userID, projectID, ErrConflict)
	}
	if err != nil {
		return models.Member{}, fmt.Errorf("insert member: %w", err)
	}
	m, _, err := s.Member(ctx, projectID, userID)
	return m, err
}

// Member returns the member row of a user, reporting false if there is none.
func (s *Store) Member(ctx context.Context, projectID, userID int64) (models.Member, bool, error) {
	var m models.Member
	err := s.db.QueryRowContext(ctx, `SELECT pm.project_id, pm.user_id, u.username, pm.role
        FROM project_members pm JOIN users u ON u.id = pm.user_id
        WHERE pm.project_id = ? AND pm.user_id = ?`, projectID, userID).
		Scan(&m.ProjectID, &m.UserID, &m.Username, &m.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Member{}, false, nil
	}
	if err != nil {
		return models.Member{}, false, fmt.Errorf("get member: %w", err)
	}
	return m, true, nil
}

// ListMembers returns the member rows of a project.
func (s *Store) ListMembers(ctx context.Context, projectID int64) ([]models.Member, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT pm.project_id, pm.user_id, u.username, pm.role
        FROM project_members pm JOIN users u ON u.id = pm.user_id
        WHERE pm.project_id = ? ORDER BY u.username`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	members := []models.Member{}
	for rows.Next() {
		var m models.Member
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.Username, &m.Role); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// RemoveMember drops a user's role in a project.
func (s *Store) RemoveMember(ctx context.Context, projectID, userID int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM project_members WHERE project_id = ? AND user_id = ?`, projectID, userID)
	if err != nil {
		return fmt.Errorf("delete member: %w", err)
	}
	return checkAffected(res, fmt.Sprintf("member %d", userID))
}
