package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"boardsync/internal/models"
)

// CreateUser registers a user with a global role such as "user" or "admin".
func (s *Store) CreateUser(ctx context.Context, username, role string) (models.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return models.User{}, fmt.Errorf("username must not be empty: %w", ErrInvalid)
	}
	if role == "" {
		role = "user"
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO users(username, role) VALUES(?, ?)`, username, role)
	if isUnique(err) {
		return models.User{}, fmt.Errorf("user %q: %w", username, ErrConflict)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return models.User{}, fmt.Errorf("user id: %w", err)
	}
	return s.GetUser(ctx, id)
}

// GetUser fetches a user with the teams it belongs to.
func (s *Store) GetUser(ctx context.Context, id int64) (models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, `SELECT id, username, role FROM users WHERE id = ?`, id).Scan(&u.ID, &u.Username, &u.Role)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("user %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("get user: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT team_id FROM team_members WHERE user_id = ? ORDER BY team_id`, id)
	if err != nil {
		return models.User{}, fmt.Errorf("list user teams: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var teamID int64
		if err := rows.Scan(&teamID); err != nil {
			return models.User{}, fmt.Errorf("scan team: %w", err)
		}
		u.TeamIDs = append(u.TeamIDs, teamID)
	}
	return u, rows.Err()
}

// CreateTeam adds a team and returns its id.
func (s *Store) CreateTeam(ctx context.Context, name string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("team name must not be empty: %w", ErrInvalid)
	}
	res, err := s.db.ExecContext(ctx, `INSERT INTO teams(name) VALUES(?)`, name)
	if isUnique(err) {
		return 0, fmt.Errorf("team %q: %w", name, ErrConflict)
	}
	if err != nil {
		return 0, fmt.Errorf("insert team: %w", err)
	}
	return res.LastInsertId()
}

// AddTeamMember puts a user in a team.
func (s *Store) AddTeamMember(ctx context.Context, teamID, userID int64) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO team_members(team_id, user_id) VALUES(?, ?)`, teamID, userID)
	if isUnique(err) {
		return fmt.Errorf("team member: %w", ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("insert team member: %w", err)
	}
	return nil
}

// UserByName looks a user up by username.
func (s *Store) UserByName(ctx context.Context, username string) (models.User, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE username = ?`, strings.TrimSpace(username)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("find user: %w", err)
	}
	return s.GetUser(ctx, id)
}
