package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vcscsvcscs/Healthcare-challenge-GDE-MIT/apps/adherence-engine/pkg/model"
	"go.uber.org/zap"
)

// UserRepository reads patient accounts
type UserRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewUserRepository creates a new UserRepository
func NewUserRepository(db *pgxpool.Pool, logger *zap.Logger) *UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a user
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	query := `
		INSERT INTO users (id, name, email, phone, timezone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
	`

	_, err := r.db.Exec(ctx, query, user.ID, user.Name, user.Email, user.Phone, user.Timezone)
	if err != nil {
		r.logger.Error("failed to create user", zap.Error(err), zap.String("user_id", user.ID))
		return fmt.Errorf("failed to create user: %w", err)
	}

	return nil
}

// FindByID retrieves a non-deleted user
func (r *UserRepository) FindByID(ctx context.Context, userID string) (*model.User, error) {
	query := `
		SELECT id, name, email, phone, timezone, created_at, updated_at, deleted_at
		FROM users
		WHERE id = $1 AND deleted_at IS NULL
	`

	var user model.User
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Phone,
		&user.Timezone,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.DeletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		r.logger.Error("failed to find user", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	return &user, nil
}

// ListWithActiveMedications returns the IDs of users owning at least one
// active medication
func (r *UserRepository) ListWithActiveMedications(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT u.id
		FROM users u
		JOIN medications m ON m.user_id = u.id
		WHERE m.active AND u.deleted_at IS NULL
		ORDER BY u.id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		r.logger.Error("failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}

	return ids, nil
}
