package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/onboarding-api/internal/models"
)

// UserRepository reads and activates employee accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT id, email, full_name, role, job_role, department, account_status, activated_at, created_at, updated_at FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// ActivateAccount moves an onboarding account to active. It reports false when the
// account was not in the onboarding state, which makes repeated calls harmless.
func (r *UserRepository) ActivateAccount(ctx context.Context, id string, at time.Time) (bool, error) {
	const query = `UPDATE users SET account_status = $2, activated_at = $3, updated_at = $3 WHERE id = $1 AND account_status = $4`
	res, err := r.db.ExecContext(ctx, query, id, models.AccountStatusActive, at, models.AccountStatusOnboarding)
	if err != nil {
		return false, fmt.Errorf("activate account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("activate account rows: %w", err)
	}
	return affected == 1, nil
}
