package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/onlyif-au/onlyif/internal/directory"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const selectUserColumns = `id, name, email, role, created_at, updated_at`

func scanUser(s scanner) (*directory.User, error) {
	var user directory.User
	var roleStr string

	if err := s.Scan(
		&user.ID, &user.Name, &user.Email, &roleStr, &user.CreatedAt, &user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, directory.ErrNotFound
		}
		return nil, err
	}

	user.Role = directory.Role(roleStr)

	return &user, nil
}

func (s *Store) GetUser(ctx context.Context, id uuid.UUID) (*directory.User, error) {
	query := `SELECT ` + selectUserColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}

	return user, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*directory.User, error) {
	query := `SELECT ` + selectUserColumns + ` FROM users WHERE lower(email) = lower($1)`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("getting user by email: %w", err)
	}

	return user, nil
}

func (s *Store) ListUsersByRole(ctx context.Context, role directory.Role) ([]*directory.User, error) {
	query := `SELECT ` + selectUserColumns + ` FROM users WHERE role = $1 ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, role)
	if err != nil {
		return nil, fmt.Errorf("querying users by role: %w", err)
	}
	defer rows.Close()

	var users []*directory.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}
