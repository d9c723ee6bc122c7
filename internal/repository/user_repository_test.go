package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/onboarding-api/internal/models"
	appErrors "github.com/noah-isme/onboarding-api/pkg/errors"
)

func TestUserRepositoryFindByID(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "email", "full_name", "role", "job_role", "department", "account_status", "activated_at", "created_at", "updated_at"}).
		AddRow("emp-1", "a@example.com", "Ana", "EMPLOYEE", "manager", "sales", "ONBOARDING", nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1")).WithArgs("emp-1").WillReturnRows(rows)

	user, err := repo.FindByID(context.Background(), "emp-1")
	require.NoError(t, err)
	assert.Equal(t, "manager", user.JobRole)
	require.NotNil(t, user.Department)
	assert.Equal(t, "sales", *user.Department)
	assert.Equal(t, models.AccountStatusOnboarding, user.AccountStatus)
}

func TestUserRepositoryActivateAccount(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET account_status = $2")).
		WithArgs("emp-1", models.AccountStatusActive, now, models.AccountStatusOnboarding).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET account_status = $2")).
		WithArgs("emp-1", models.AccountStatusActive, now, models.AccountStatusOnboarding).
		WillReturnResult(sqlmock.NewResult(0, 0))

	activated, err := repo.ActivateAccount(context.Background(), "emp-1", now)
	require.NoError(t, err)
	assert.True(t, activated)

	activated, err = repo.ActivateAccount(context.Background(), "emp-1", now)
	require.NoError(t, err)
	assert.False(t, activated)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAuditRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO audit_logs")).WillReturnResult(sqlmock.NewResult(1, 1))

	log := &models.AuditLog{Action: models.AuditActionChecklistCreate, Resource: models.AuditResourceChecklist}
	require.NoError(t, repo.Create(context.Background(), log))
	assert.NotEmpty(t, log.ID)
	assert.False(t, log.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "onboarding:", nil)
	var dest map[string]string
	assert.ErrorIs(t, repo.Get(context.Background(), "k", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(context.Background(), "k", map[string]string{"a": "b"}, time.Minute))
	assert.NoError(t, repo.Delete(context.Background(), "k"))
	assert.NoError(t, repo.DeleteByPattern(context.Background(), "*"))
	assert.NoError(t, repo.Close())
}
