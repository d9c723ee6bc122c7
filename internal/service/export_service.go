package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/onboarding-api/internal/dto"
	"github.com/noah-isme/onboarding-api/internal/models"
	appErrors "github.com/noah-isme/onboarding-api/pkg/errors"
	"github.com/noah-isme/onboarding-api/pkg/export"
)

const exportPageSize = 100

type checklistReader interface {
	ListChecklists(ctx context.Context, query dto.ChecklistQuery) ([]models.ChecklistInstance, *models.Pagination, error)
	GetChecklist(ctx context.Context, employeeID string, actor models.Actor) (*models.ChecklistInstance, error)
}

type rendererRegistry interface {
	Renderer(format export.Format) (export.Renderer, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	Title   string
	MaxRows int
}

// ExportFile is a rendered export ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders HR overview and per-employee checklist exports.
type ExportService struct {
	checklists checklistReader
	renderers  rendererRegistry
	audit      auditWriter
	metrics    *MetricsService
	logger     *zap.Logger
	cfg        ExportConfig
	now        func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(checklists checklistReader, renderers rendererRegistry, audit auditWriter, metrics *MetricsService, logger *zap.Logger, cfg ExportConfig) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderers == nil {
		renderers = export.NewRegistry()
	}
	if cfg.Title == "" {
		cfg.Title = "Onboarding Progress"
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = 5000
	}
	return &ExportService{
		checklists: checklists,
		renderers:  renderers,
		audit:      audit,
		metrics:    metrics,
		logger:     logger,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ExportOverview renders every checklist matching the query filters. Paging fields are ignored.
func (s *ExportService) ExportOverview(ctx context.Context, query dto.ChecklistQuery, rawFormat string, actor models.Actor) (*ExportFile, error) {
	format, renderer, err := s.renderer(rawFormat)
	if err != nil {
		return nil, err
	}

	var rows []map[string]string
	query.PageSize = exportPageSize
	for page := 1; ; page++ {
		query.Page = page
		items, pagination, err := s.checklists.ListChecklists(ctx, query)
		if err != nil {
			return nil, err
		}
		for _, c := range items {
			rows = append(rows, overviewRow(c))
		}
		if len(items) < exportPageSize || len(rows) >= pagination.TotalCount {
			break
		}
		if len(rows) >= s.cfg.MaxRows {
			s.logger.Warn("export truncated", zap.Int("max_rows", s.cfg.MaxRows), zap.Int("total", pagination.TotalCount))
			rows = rows[:s.cfg.MaxRows]
			break
		}
	}

	dataset := export.Dataset{
		Title: s.cfg.Title,
		Columns: []export.Column{
			{Key: "employee_id", Title: "Employee"},
			{Key: "role", Title: "Role", Width: 30},
			{Key: "department", Title: "Department", Width: 35},
			{Key: "completed", Title: "Completed", Width: 25},
			{Key: "percentage", Title: "Progress %", Width: 25},
			{Key: "status", Title: "Status", Width: 25},
			{Key: "created_at", Title: "Started"},
			{Key: "activated_at", Title: "Activated"},
		},
		Rows: rows,
	}
	file, err := s.render(renderer, dataset, "onboarding_overview")
	if err != nil {
		return nil, err
	}
	s.metrics.ExportRendered(string(format))
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionChecklistExport, models.AuditResourceChecklist, "", map[string]interface{}{
		"format": format,
		"rows":   len(rows),
		"filter": query,
	})
	return file, nil
}

// ExportChecklist renders one employee's items.
func (s *ExportService) ExportChecklist(ctx context.Context, employeeID, rawFormat string, actor models.Actor) (*ExportFile, error) {
	format, renderer, err := s.renderer(rawFormat)
	if err != nil {
		return nil, err
	}
	checklist, err := s.checklists.GetChecklist(ctx, employeeID, actor)
	if err != nil {
		return nil, err
	}

	rows := make([]map[string]string, 0, len(checklist.Items))
	for _, item := range checklist.Items {
		rows = append(rows, itemRow(item))
	}
	dataset := export.Dataset{
		Title: fmt.Sprintf("%s - %s (%d%%)", s.cfg.Title, checklist.EmployeeID, checklist.Percentage),
		Columns: []export.Column{
			{Key: "position", Title: "#", Width: 10},
			{Key: "title", Title: "Task"},
			{Key: "due_date", Title: "Due", Width: 25},
			{Key: "status", Title: "Status", Width: 25},
			{Key: "document", Title: "Document"},
			{Key: "verified", Title: "Verified", Width: 20},
			{Key: "assessment", Title: "Assessment", Width: 25},
		},
		Rows: rows,
	}
	file, err := s.render(renderer, dataset, "onboarding_"+sanitizeFilename(checklist.EmployeeID))
	if err != nil {
		return nil, err
	}
	s.metrics.ExportRendered(string(format))
	recordAudit(ctx, s.audit, s.logger, actor, models.AuditActionChecklistExport, models.AuditResourceChecklist, checklist.ID, map[string]interface{}{
		"format":      format,
		"employee_id": checklist.EmployeeID,
	})
	return file, nil
}

func (s *ExportService) renderer(raw string) (export.Format, export.Renderer, error) {
	format, err := export.ParseFormat(raw)
	if err != nil {
		return "", nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	renderer, err := s.renderers.Renderer(format)
	if err != nil {
		return "", nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	return format, renderer, nil
}

func (s *ExportService) render(renderer export.Renderer, dataset export.Dataset, base string) (*ExportFile, error) {
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("%s_%s.%s", base, s.now().Format("20060102_150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Data:        payload,
	}, nil
}

func overviewRow(c models.ChecklistInstance) map[string]string {
	status := string(models.ChecklistStatusInProgress)
	if c.Retired() {
		status = string(models.ChecklistStatusCompleted)
	}
	return map[string]string{
		"employee_id":  c.EmployeeID,
		"role":         c.Role,
		"department":   deref(c.Department),
		"completed":    fmt.Sprintf("%d/%d", c.CompletedItems, c.TotalItems),
		"percentage":   strconv.Itoa(c.Percentage),
		"status":       status,
		"created_at":   c.CreatedAt.UTC().Format("2006-01-02"),
		"activated_at": formatTime(c.ActivatedAt),
	}
}

func itemRow(item models.ChecklistItem) map[string]string {
	status := "pending"
	switch {
	case item.IsCompleted:
		status = "completed"
	case item.IsOverdue:
		status = "overdue"
	}
	document := "-"
	if item.RequiresDocument {
		document = "missing"
		if item.HasDocument() {
			document = deref(item.DocumentName)
		}
	}
	verified := "-"
	if item.RequiresDocument {
		verified = strconv.FormatBool(item.IsDocumentVerified)
	}
	assessment := "-"
	if item.RequiresPsychometricTest {
		assessment = "pending"
		if item.PsychometricTestScore != nil {
			assessment = strconv.FormatFloat(*item.PsychometricTestScore, 'f', -1, 64)
		}
	}
	return map[string]string{
		"position":   strconv.Itoa(item.Position),
		"title":      item.Title,
		"due_date":   item.DueDate.UTC().Format("2006-01-02"),
		"status":     status,
		"document":   document,
		"verified":   verified,
		"assessment": assessment,
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_", "\"", "")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
