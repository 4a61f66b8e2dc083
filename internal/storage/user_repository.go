package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/property-booking/backend/internal/storage/models"
)

// UserRepository provides read access to users and their role permissions.
// Accounts are provisioned outside this service.
type UserRepository struct {
	BaseRepository
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{
		BaseRepository: NewBaseRepository(db),
	}
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, u *models.User) error {
	id, err := insertReturningID(ctx, r.DB(), `
		INSERT INTO users (name, email, role_id) VALUES (?, ?, ?) RETURNING id
	`, u.Name, u.Email, u.RoleID)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	u.ID = id
	return nil
}

// GetByID retrieves a user by its ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	u := &models.User{}

	err := r.DB().QueryRowContext(ctx, `
		SELECT id, name, email, role_id FROM users WHERE id = ?
	`, id).Scan(&u.ID, &u.Name, &u.Email, &u.RoleID)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}

	return u, nil
}

// PermissionNames returns the names of the permissions granted to a user
// through their role.
func (r *UserRepository) PermissionNames(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.DB().QueryContext(ctx, `
		SELECT p.name
		FROM users u
		JOIN permission_role pr ON pr.role_id = u.role_id
		JOIN permissions p ON p.id = pr.permission_id
		WHERE u.id = ?
		ORDER BY p.name
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying permissions: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning permission: %w", err)
		}
		names = append(names, name)
	}

	return names, rows.Err()
}
