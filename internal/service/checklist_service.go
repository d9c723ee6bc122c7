package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/onboarding-api/internal/dto"
	"github.com/noah-isme/onboarding-api/internal/models"
	"github.com/noah-isme/onboarding-api/internal/repository"
	appErrors "github.com/noah-isme/onboarding-api/pkg/errors"
)

type checklistStore interface {
	Create(ctx context.Context, checklist *models.ChecklistInstance) error
	ExistsForEmployee(ctx context.Context, employeeID string) (bool, error)
	GetByEmployee(ctx context.Context, employeeID string) (*models.ChecklistInstance, error)
	GetByID(ctx context.Context, id string) (*models.ChecklistInstance, error)
	FindItem(ctx context.Context, itemID string) (*models.ChecklistItem, error)
	List(ctx context.Context, filter models.ChecklistFilter) ([]models.ChecklistInstance, int, error)
	MutateItem(ctx context.Context, itemID string, mutate repository.ItemMutator) (*models.ChecklistInstance, *models.ChecklistItem, error)
}

type accountReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type activationDispatcher interface {
	Dispatch(ctx context.Context, signal models.ActivationSignal) error
}

type documentKeeper interface {
	Save(itemID string, kind models.DocumentKind, name string, r io.Reader) (DocumentRef, error)
	Discard(ref DocumentRef) error
}

// DocumentUpload carries either uploaded bytes or an external URL.
type DocumentUpload struct {
	Name    string
	URL     string
	Content io.Reader
}

type permission int

const (
	permOwnerOrHR permission = iota
	permHR
	permAssessor
)

// ChecklistServiceDeps groups the collaborators of ChecklistService.
type ChecklistServiceDeps struct {
	Store      checklistStore
	Accounts   accountReader
	Composer   *Composer
	Activation activationDispatcher
	Documents  documentKeeper
	Audit      auditWriter
	Cache      *CacheService
	Metrics    *MetricsService
	Validator  *validator.Validate
	Logger     *zap.Logger
	CacheTTL   time.Duration
}

// ChecklistService implements the onboarding checklist workflow.
type ChecklistService struct {
	store      checklistStore
	accounts   accountReader
	composer   *Composer
	engine     CompletionEngine
	activation activationDispatcher
	documents  documentKeeper
	audit      auditWriter
	cache      *CacheService
	metrics    *MetricsService
	validator  *validator.Validate
	logger     *zap.Logger
	cacheTTL   time.Duration
	now        func() time.Time
}

// NewChecklistService constructs the service.
func NewChecklistService(deps ChecklistServiceDeps) *ChecklistService {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	return &ChecklistService{
		store:      deps.Store,
		accounts:   deps.Accounts,
		composer:   deps.Composer,
		activation: deps.Activation,
		documents:  deps.Documents,
		audit:      deps.Audit,
		cache:      deps.Cache,
		metrics:    deps.Metrics,
		validator:  deps.Validator,
		logger:     deps.Logger,
		cacheTTL:   deps.CacheTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateChecklist composes and persists the checklist for an employee.
// Missing role or department are taken from the employee's account.
func (s *ChecklistService) CreateChecklist(ctx context.Context, req dto.CreateChecklistRequest, actor models.Actor) (*models.ChecklistInstance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid checklist payload")
	}
	role, department, err := s.resolveIdentity(ctx, req)
	if err != nil {
		return nil, err
	}

	exists, err := s.store.ExistsForEmployee(ctx, req.EmployeeID)
	if err != nil {
		return nil, storeError(err, "")
	}
	if exists {
		return nil, appErrors.ErrAlreadyExists
	}

	now := s.now()
	items := s.composer.Compose(role, department, now)
	checklist := &models.ChecklistInstance{
		EmployeeID:     req.EmployeeID,
		Role:           role,
		Department:     department,
		CatalogVersion: s.composer.CatalogVersion(),
		Progress:       Recompute(items),
		CreatedAt:      now,
		UpdatedAt:      now,
		Items:          items,
	}
	if err := s.store.Create(ctx, checklist); err != nil {
		if errors.Is(err, repository.ErrChecklistExists) {
			return nil, appErrors.ErrAlreadyExists
		}
		return nil, storeError(err, "")
	}

	s.metrics.ChecklistCreated()
	s.cache.InvalidateChecklist(ctx, "")
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionChecklistCreate, models.AuditResourceChecklist, checklist.ID, map[string]interface{}{
		"employee_id": checklist.EmployeeID,
		"role":        checklist.Role,
		"department":  checklist.Department,
		"items":       checklist.TotalItems,
	})
	s.logger.Info("checklist created", zap.String("employee_id", checklist.EmployeeID), zap.String("role", role), zap.Int("items", checklist.TotalItems))

	markOverdue(checklist, now)
	return checklist, nil
}

func (s *ChecklistService) resolveIdentity(ctx context.Context, req dto.CreateChecklistRequest) (string, *string, error) {
	role := strings.TrimSpace(req.Role)
	department := normalizeDepartment(req.Department)
	if role != "" && department != nil {
		return role, department, nil
	}
	if s.accounts == nil {
		if role == "" {
			return "", nil, appErrors.Clone(appErrors.ErrValidation, "role is required")
		}
		return role, department, nil
	}

	user, err := s.accounts.FindByID(ctx, req.EmployeeID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return "", nil, appErrors.Transient(err, "account lookup failed")
		}
		if role == "" {
			return "", nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return role, department, nil
	}
	if role == "" {
		role = strings.TrimSpace(user.JobRole)
	}
	if department == nil {
		department = normalizeDepartment(user.Department)
	}
	if role == "" {
		return "", nil, appErrors.Clone(appErrors.ErrValidation, "role is required")
	}
	return role, department, nil
}

// GetChecklist returns the employee's checklist.
func (s *ChecklistService) GetChecklist(ctx context.Context, employeeID string, actor models.Actor) (*models.ChecklistInstance, error) {
	checklist, _, err := s.GetChecklistCached(ctx, employeeID, actor)
	return checklist, err
}

// GetChecklistCached is GetChecklist that also reports whether the cache served it.
func (s *ChecklistService) GetChecklistCached(ctx context.Context, employeeID string, actor models.Actor) (*models.ChecklistInstance, bool, error) {
	if err := authorize(actor, employeeID, permOwnerOrHR); err != nil {
		return nil, false, err
	}
	checklist, hit, err := s.loadChecklist(ctx, employeeID)
	if err != nil {
		return nil, false, err
	}
	markOverdue(checklist, s.now())
	return checklist, hit, nil
}

func (s *ChecklistService) loadChecklist(ctx context.Context, employeeID string) (*models.ChecklistInstance, bool, error) {
	key := ChecklistKey(employeeID)
	var cached models.ChecklistInstance
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}
	checklist, err := s.store.GetByEmployee(ctx, employeeID)
	if err != nil {
		return nil, false, storeError(err, "checklist not found")
	}
	s.cache.Set(ctx, key, checklist, s.cacheTTL)
	return checklist, false, nil
}

// ListChecklists returns the HR overview page.
func (s *ChecklistService) ListChecklists(ctx context.Context, query dto.ChecklistQuery) ([]models.ChecklistInstance, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid list query")
	}
	filter := models.ChecklistFilter{
		Role:       strings.TrimSpace(query.Role),
		Department: strings.TrimSpace(query.Department),
		Status:     models.ChecklistStatus(query.Status),
		Page:       query.Page,
		PageSize:   query.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}

	type page struct {
		Items []models.ChecklistInstance `json:"items"`
		Total int                        `json:"total"`
	}
	key := ChecklistListKey(filter)
	var cached page
	if !s.cache.Get(ctx, key, &cached) {
		items, total, err := s.store.List(ctx, filter)
		if err != nil {
			return nil, nil, storeError(err, "")
		}
		cached = page{Items: items, Total: total}
		s.cache.Set(ctx, key, cached, s.cacheTTL)
	}
	if cached.Items == nil {
		cached.Items = []models.ChecklistInstance{}
	}
	return cached.Items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: cached.Total}, nil
}

// ToggleItem marks an item completed. Un-completing is not supported.
func (s *ChecklistService) ToggleItem(ctx context.Context, itemID string, isCompleted bool, actor models.Actor) (*models.ItemMutationResult, error) {
	var completedNow bool
	out, err := s.mutate(ctx, itemID, actor, permOwnerOrHR, false, func(_ *models.ChecklistInstance, item *models.ChecklistItem, now time.Time) (bool, error) {
		if !isCompleted {
			if item.IsCompleted {
				return false, appErrors.Clone(appErrors.ErrInvalidTransition, "completed items cannot be reopened")
			}
			return false, nil
		}
		changed, err := s.engine.AttemptComplete(item, nil, actor.UserID, now)
		completedNow = changed
		return changed, err
	})
	if err != nil {
		s.observeGate(err)
		return nil, err
	}

	message := "Item is still pending"
	switch {
	case completedNow:
		message = "Item marked as completed"
		s.metrics.ItemCompleted()
		recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionItemComplete, models.AuditResourceChecklistItem, itemID, map[string]interface{}{
			"checklist_id": out.checklist.ID,
			"percentage":   out.checklist.Percentage,
		})
	case out.item.IsCompleted:
		message = "Item already completed"
	}
	return s.result(out, message), nil
}

// UploadDocumentForItem stores a document on the item and then attempts completion.
// A failed completion gate other than the document itself leaves the document stored.
func (s *ChecklistService) UploadDocumentForItem(ctx context.Context, itemID string, upload DocumentUpload, actor models.Actor) (*models.ItemMutationResult, error) {
	ref, err := s.prepareDocument(ctx, itemID, upload, actor)
	if err != nil {
		return nil, err
	}

	var previous *DocumentRef
	var completedNow bool
	var gateErr error
	out, err := s.mutate(ctx, itemID, actor, permOwnerOrHR, false, func(_ *models.ChecklistInstance, item *models.ChecklistItem, now time.Time) (bool, error) {
		var old *DocumentRef
		if item.HasDocument() {
			old = &DocumentRef{URL: *item.DocumentURL, Name: deref(item.DocumentName)}
		}
		stored, err := s.engine.StoreDocument(item, ref, now)
		if err != nil {
			return false, err
		}
		if stored && old != nil && old.URL != ref.URL {
			previous = old
		}
		completed, err := s.engine.AttemptComplete(item, nil, actor.UserID, now)
		if err != nil {
			if !errors.Is(err, appErrors.ErrAssessmentRequired) {
				return false, err
			}
			gateErr = err
		}
		completedNow = completed
		return stored || completed, nil
	})
	if err != nil {
		s.discard(ref)
		s.observeGate(err)
		return nil, err
	}
	if previous != nil {
		s.discard(*previous)
	}

	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDocumentUpload, models.AuditResourceChecklistItem, itemID, map[string]interface{}{
		"document_name": ref.Name,
		"stored":        strings.HasPrefix(ref.URL, models.StoredDocumentPrefix),
	})

	message := "Document uploaded"
	switch {
	case completedNow:
		message = "Document uploaded and item marked as completed"
		s.metrics.ItemCompleted()
	case gateErr != nil:
		s.observeGate(gateErr)
		message = "Document uploaded; " + appErrors.FromError(gateErr).Message
	}
	return s.result(out, message), nil
}

func (s *ChecklistService) prepareDocument(ctx context.Context, itemID string, upload DocumentUpload, actor models.Actor) (DocumentRef, error) {
	if upload.Content == nil {
		url := strings.TrimSpace(upload.URL)
		if url == "" {
			return DocumentRef{}, appErrors.ErrDocumentRequired
		}
		if err := s.validator.Var(url, "http_url,max=2048"); err != nil {
			return DocumentRef{}, appErrors.Clone(appErrors.ErrValidation, "document_url must be an http(s) URL")
		}
		return DocumentRef{URL: url, Name: strings.TrimSpace(upload.Name)}, nil
	}
	if s.documents == nil {
		return DocumentRef{}, appErrors.Clone(appErrors.ErrValidation, "document uploads are not enabled")
	}
	item, err := s.store.FindItem(ctx, itemID)
	if err != nil {
		return DocumentRef{}, storeError(err, "checklist item not found")
	}
	if !item.RequiresDocument {
		return DocumentRef{}, appErrors.Clone(appErrors.ErrInvalidTransition, "item does not accept documents")
	}
	// Checked before bytes hit storage; mutate re-checks under the lock.
	if !actor.Role.HasHRCapability() {
		checklist, err := s.store.GetByID(ctx, item.ChecklistID)
		if err != nil {
			return DocumentRef{}, storeError(err, "checklist not found")
		}
		if err := authorize(actor, checklist.EmployeeID, permOwnerOrHR); err != nil {
			return DocumentRef{}, err
		}
	}
	return s.documents.Save(itemID, item.DocumentKind, upload.Name, upload.Content)
}

// RecordAssessmentResult stores a psychometric test outcome on the item.
func (s *ChecklistService) RecordAssessmentResult(ctx context.Context, itemID string, req dto.RecordAssessmentRequest, actor models.Actor) (*models.ChecklistItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assessment payload")
	}
	out, err := s.mutate(ctx, itemID, actor, permAssessor, false, func(_ *models.ChecklistInstance, item *models.ChecklistItem, now time.Time) (bool, error) {
		return s.engine.RecordPsychometricResult(item, req.AttemptID, *req.Score, now)
	})
	if err != nil {
		return nil, err
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionAssessmentRecord, models.AuditResourceChecklistItem, itemID, map[string]interface{}{
		"attempt_id": req.AttemptID,
		"score":      *req.Score,
	})
	return out.item, nil
}

// VerifyDocument records HR verification of the item's document. It is allowed on retired checklists.
func (s *ChecklistService) VerifyDocument(ctx context.Context, itemID, notes string, actor models.Actor) (*models.ChecklistItem, error) {
	out, err := s.mutate(ctx, itemID, actor, permHR, true, func(_ *models.ChecklistInstance, item *models.ChecklistItem, now time.Time) (bool, error) {
		return s.engine.VerifyDocument(item, notes, actor.UserID, now)
	})
	if err != nil {
		return nil, err
	}
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionDocumentVerify, models.AuditResourceChecklistItem, itemID, map[string]interface{}{
		"notes": notes,
	})
	return out.item, nil
}

// GetItem returns a single item the actor may see.
func (s *ChecklistService) GetItem(ctx context.Context, itemID string, actor models.Actor) (*models.ChecklistItem, error) {
	item, err := s.store.FindItem(ctx, itemID)
	if err != nil {
		return nil, storeError(err, "checklist item not found")
	}
	if !actor.Role.HasHRCapability() {
		checklist, err := s.store.GetByID(ctx, item.ChecklistID)
		if err != nil {
			return nil, storeError(err, "checklist not found")
		}
		if err := authorize(actor, checklist.EmployeeID, permOwnerOrHR); err != nil {
			return nil, err
		}
	}
	item.MarkOverdue(s.now())
	return item, nil
}

// PreviewTemplate composes the catalog for a role/department pair without persisting anything.
func (s *ChecklistService) PreviewTemplate(role string, department *string) dto.TemplatePreview {
	department = normalizeDepartment(department)
	return dto.TemplatePreview{
		CatalogVersion: s.composer.CatalogVersion(),
		Role:           strings.TrimSpace(role),
		Department:     department,
		Items:          s.composer.Templates(role, department),
	}
}

type itemMutation func(checklist *models.ChecklistInstance, item *models.ChecklistItem, now time.Time) (bool, error)

type mutationOutcome struct {
	checklist *models.ChecklistInstance
	item      *models.ChecklistItem
}

// mutate runs fn under the checklist lock, recomputes progress from the locked snapshot
// and sets the activation marker the first time the checklist completes.
func (s *ChecklistService) mutate(ctx context.Context, itemID string, actor models.Actor, perm permission, allowRetired bool, fn itemMutation) (*mutationOutcome, error) {
	now := s.now()
	var signal *models.ActivationSignal
	var changed bool

	checklist, item, err := s.store.MutateItem(ctx, itemID, func(snapshot *models.ChecklistInstance, target *models.ChecklistItem) (bool, error) {
		if err := authorize(actor, snapshot.EmployeeID, perm); err != nil {
			return false, err
		}
		retired := snapshot.Retired()
		ok, err := fn(snapshot, target, now)
		if err != nil || !ok {
			return false, err
		}
		if retired && !allowRetired {
			return false, appErrors.Clone(appErrors.ErrInvalidTransition, "checklist is completed and read-only")
		}
		snapshot.Progress = Recompute(snapshot.Items)
		snapshot.UpdatedAt = now
		if snapshot.Progress.Complete() && snapshot.ActivatedAt == nil {
			snapshot.ActivatedAt = timePtr(now)
			signal = &models.ActivationSignal{ChecklistID: snapshot.ID, EmployeeID: snapshot.EmployeeID, ActivatedAt: now}
		}
		changed = true
		return true, nil
	})
	if err != nil {
		return nil, storeError(err, "checklist item not found")
	}

	if changed {
		s.cache.InvalidateChecklist(ctx, checklist.EmployeeID)
	}
	if signal != nil {
		s.logger.Info("checklist completed", zap.String("employee_id", signal.EmployeeID), zap.String("checklist_id", signal.ChecklistID))
		if s.activation != nil {
			if err := s.activation.Dispatch(ctx, *signal); err != nil {
				s.logger.Warn("activation dispatch failed", zap.String("employee_id", signal.EmployeeID), zap.Error(err))
			}
		}
	}
	return &mutationOutcome{checklist: checklist, item: item}, nil
}

func (s *ChecklistService) result(out *mutationOutcome, message string) *models.ItemMutationResult {
	now := s.now()
	item := *out.item
	item.MarkOverdue(now)
	return &models.ItemMutationResult{
		Item:         item,
		Message:      message,
		AllCompleted: out.checklist.Progress.Complete(),
		Progress:     out.checklist.Progress,
	}
}

func (s *ChecklistService) observeGate(err error) {
	switch {
	case errors.Is(err, appErrors.ErrDocumentRequired):
		s.metrics.GatingFailure("document")
	case errors.Is(err, appErrors.ErrAssessmentRequired):
		s.metrics.GatingFailure("assessment")
	}
}

func (s *ChecklistService) discard(ref DocumentRef) {
	if s.documents == nil {
		return
	}
	if err := s.documents.Discard(ref); err != nil {
		s.logger.Warn("failed to discard document", zap.String("url", ref.URL), zap.Error(err))
	}
}

func authorize(actor models.Actor, employeeID string, perm permission) error {
	switch perm {
	case permHR:
		if actor.Role.HasHRCapability() && !actor.Public {
			return nil
		}
	case permAssessor:
		if (actor.Role.HasHRCapability() || actor.Role == models.RoleService) && !actor.Public {
			return nil
		}
	default:
		if (actor.Role.HasHRCapability() && !actor.Public) || (actor.UserID != "" && actor.UserID == employeeID) {
			return nil
		}
	}
	return appErrors.ErrForbidden
}

// storeError maps repository failures onto the error taxonomy.
func storeError(err error, notFound string) error {
	if errors.Is(err, sql.ErrNoRows) {
		if notFound == "" {
			return appErrors.ErrNotFound
		}
		return appErrors.Clone(appErrors.ErrNotFound, notFound)
	}
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return appErrors.Transient(err, "checklist store unavailable")
}

func markOverdue(checklist *models.ChecklistInstance, now time.Time) {
	for i := range checklist.Items {
		checklist.Items[i].MarkOverdue(now)
	}
}
