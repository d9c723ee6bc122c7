package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/onboarding-api/internal/models"
)

// ErrChecklistExists is returned when an employee already owns a checklist.
var ErrChecklistExists = errors.New("checklist already exists for employee")

const uniqueViolation = "23505"

const checklistColumns = `id, employee_id, role, department, catalog_version, total_items, completed_items, percentage, activated_at, created_at, updated_at`

const itemColumns = `id, checklist_id, position, template_ref, title, description, sort_order, due_date,
requires_document, document_kind, requires_psychometric_test, test_id, is_completed, completed_by, completed_at,
document_url, document_name, is_document_verified, verified_by, verified_at, verification_notes,
psychometric_test_attempt_id, psychometric_test_completed, psychometric_test_score, updated_at`

// ItemMutator mutates target, which points into snapshot.Items, and updates snapshot progress.
// It reports whether anything changed; unchanged snapshots are not written back.
type ItemMutator func(snapshot *models.ChecklistInstance, target *models.ChecklistItem) (bool, error)

// ChecklistRepository persists onboarding checklists and their items.
type ChecklistRepository struct {
	db *sqlx.DB
}

// NewChecklistRepository constructs the repository.
func NewChecklistRepository(db *sqlx.DB) *ChecklistRepository {
	return &ChecklistRepository{db: db}
}

// Create stores the checklist and all of its items atomically.
func (r *ChecklistRepository) Create(ctx context.Context, checklist *models.ChecklistInstance) error {
	if checklist.ID == "" {
		checklist.ID = uuid.NewString()
	}
	for i := range checklist.Items {
		if checklist.Items[i].ID == "" {
			checklist.Items[i].ID = uuid.NewString()
		}
		checklist.Items[i].ChecklistID = checklist.ID
		checklist.Items[i].Position = i + 1
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create checklist tx: %w", err)
	}
	const insertChecklist = `INSERT INTO onboarding_checklists (id, employee_id, role, department, catalog_version, total_items, completed_items, percentage, created_at, updated_at)
VALUES (:id, :employee_id, :role, :department, :catalog_version, :total_items, :completed_items, :percentage, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertChecklist, checklist); err != nil {
		_ = tx.Rollback()
		if isUniqueViolation(err) {
			return ErrChecklistExists
		}
		return fmt.Errorf("insert checklist: %w", err)
	}

	const insertItem = `INSERT INTO onboarding_checklist_items (id, checklist_id, position, template_ref, title, description, sort_order, due_date,
requires_document, document_kind, requires_psychometric_test, test_id, updated_at)
VALUES (:id, :checklist_id, :position, :template_ref, :title, :description, :sort_order, :due_date,
:requires_document, :document_kind, :requires_psychometric_test, :test_id, :updated_at)`
	for i := range checklist.Items {
		if _, err := tx.NamedExecContext(ctx, insertItem, checklist.Items[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert checklist item %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create checklist tx: %w", err)
	}
	return nil
}

// ExistsForEmployee reports whether the employee already has a checklist.
func (r *ChecklistRepository) ExistsForEmployee(ctx context.Context, employeeID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM onboarding_checklists WHERE employee_id = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, employeeID); err != nil {
		return false, fmt.Errorf("check checklist exists: %w", err)
	}
	return exists, nil
}

// GetByEmployee returns the employee's checklist with items in position order.
func (r *ChecklistRepository) GetByEmployee(ctx context.Context, employeeID string) (*models.ChecklistInstance, error) {
	query := `SELECT ` + checklistColumns + ` FROM onboarding_checklists WHERE employee_id = $1`
	return r.getWithItems(ctx, query, employeeID)
}

// GetByID returns a checklist by identifier with its items.
func (r *ChecklistRepository) GetByID(ctx context.Context, id string) (*models.ChecklistInstance, error) {
	query := `SELECT ` + checklistColumns + ` FROM onboarding_checklists WHERE id = $1`
	return r.getWithItems(ctx, query, id)
}

func (r *ChecklistRepository) getWithItems(ctx context.Context, query string, arg string) (*models.ChecklistInstance, error) {
	var checklist models.ChecklistInstance
	if err := r.db.GetContext(ctx, &checklist, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get checklist: %w", err)
	}
	items, err := r.ListItems(ctx, checklist.ID)
	if err != nil {
		return nil, err
	}
	checklist.Items = items
	return &checklist, nil
}

// ListItems returns items of a checklist ordered by position.
func (r *ChecklistRepository) ListItems(ctx context.Context, checklistID string) ([]models.ChecklistItem, error) {
	query := `SELECT ` + itemColumns + ` FROM onboarding_checklist_items WHERE checklist_id = $1 ORDER BY position`
	var items []models.ChecklistItem
	if err := r.db.SelectContext(ctx, &items, query, checklistID); err != nil {
		return nil, fmt.Errorf("list checklist items: %w", err)
	}
	return items, nil
}

// FindItem returns a single item by identifier.
func (r *ChecklistRepository) FindItem(ctx context.Context, itemID string) (*models.ChecklistItem, error) {
	query := `SELECT ` + itemColumns + ` FROM onboarding_checklist_items WHERE id = $1`
	var item models.ChecklistItem
	if err := r.db.GetContext(ctx, &item, query, itemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find checklist item: %w", err)
	}
	return &item, nil
}

// List returns checklists (without items) matching the filter together with the total count.
func (r *ChecklistRepository) List(ctx context.Context, filter models.ChecklistFilter) ([]models.ChecklistInstance, int, error) {
	var conditions []string
	var args []interface{}
	if filter.Role != "" {
		args = append(args, strings.ToLower(filter.Role))
		conditions = append(conditions, fmt.Sprintf("LOWER(role) = $%d", len(args)))
	}
	if filter.Department != "" {
		args = append(args, strings.ToLower(filter.Department))
		conditions = append(conditions, fmt.Sprintf("LOWER(department) = $%d", len(args)))
	}
	switch filter.Status {
	case models.ChecklistStatusCompleted:
		conditions = append(conditions, "total_items > 0 AND completed_items = total_items")
	case models.ChecklistStatusInProgress:
		conditions = append(conditions, "(total_items = 0 OR completed_items < total_items)")
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM onboarding_checklists`+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count checklists: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	query := fmt.Sprintf(`SELECT %s FROM onboarding_checklists%s ORDER BY created_at DESC, id LIMIT %d OFFSET %d`, checklistColumns, where, pageSize, offset)
	var checklists []models.ChecklistInstance
	if err := r.db.SelectContext(ctx, &checklists, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list checklists: %w", err)
	}
	return checklists, total, nil
}

// MutateItem applies mutate to one item while holding a row lock on its checklist.
// The mutator sees every item of the checklist as read inside the same transaction.
func (r *ChecklistRepository) MutateItem(ctx context.Context, itemID string, mutate ItemMutator) (*models.ChecklistInstance, *models.ChecklistItem, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin mutate item tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var checklistID string
	if err := tx.GetContext(ctx, &checklistID, `SELECT checklist_id FROM onboarding_checklist_items WHERE id = $1`, itemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("resolve item checklist: %w", err)
	}

	var snapshot models.ChecklistInstance
	lockQuery := `SELECT ` + checklistColumns + ` FROM onboarding_checklists WHERE id = $1 FOR UPDATE`
	if err := tx.GetContext(ctx, &snapshot, lockQuery, checklistID); err != nil {
		return nil, nil, fmt.Errorf("lock checklist: %w", err)
	}
	itemsQuery := `SELECT ` + itemColumns + ` FROM onboarding_checklist_items WHERE checklist_id = $1 ORDER BY position`
	if err := tx.SelectContext(ctx, &snapshot.Items, itemsQuery, checklistID); err != nil {
		return nil, nil, fmt.Errorf("read checklist snapshot: %w", err)
	}

	var target *models.ChecklistItem
	for i := range snapshot.Items {
		if snapshot.Items[i].ID == itemID {
			target = &snapshot.Items[i]
			break
		}
	}
	if target == nil {
		return nil, nil, sql.ErrNoRows
	}

	changed, err := mutate(&snapshot, target)
	if err != nil {
		return nil, nil, err
	}
	if changed {
		if err := updateItem(ctx, tx, target); err != nil {
			return nil, nil, err
		}
		if err := updateProgress(ctx, tx, &snapshot); err != nil {
			return nil, nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit mutate item tx: %w", err)
	}
	committed = true
	return &snapshot, target, nil
}

func updateItem(ctx context.Context, tx *sqlx.Tx, item *models.ChecklistItem) error {
	const query = `UPDATE onboarding_checklist_items SET
is_completed = :is_completed, completed_by = :completed_by, completed_at = :completed_at,
document_url = :document_url, document_name = :document_name,
is_document_verified = :is_document_verified, verified_by = :verified_by, verified_at = :verified_at, verification_notes = :verification_notes,
psychometric_test_attempt_id = :psychometric_test_attempt_id, psychometric_test_completed = :psychometric_test_completed, psychometric_test_score = :psychometric_test_score,
updated_at = :updated_at
WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("update checklist item: %w", err)
	}
	return nil
}

// updateProgress never clears an activation marker once set.
func updateProgress(ctx context.Context, tx *sqlx.Tx, checklist *models.ChecklistInstance) error {
	const query = `UPDATE onboarding_checklists SET total_items = $2, completed_items = $3, percentage = $4, updated_at = $5,
activated_at = COALESCE(activated_at, $6) WHERE id = $1`
	if _, err := tx.ExecContext(ctx, query, checklist.ID, checklist.TotalItems, checklist.CompletedItems, checklist.Percentage, checklist.UpdatedAt, checklist.ActivatedAt); err != nil {
		return fmt.Errorf("update checklist progress: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}
