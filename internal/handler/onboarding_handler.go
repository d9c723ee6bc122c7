package handler

import (
	"context"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/onboarding-api/internal/dto"
	"github.com/noah-isme/onboarding-api/internal/models"
	"github.com/noah-isme/onboarding-api/internal/service"
	appErrors "github.com/noah-isme/onboarding-api/pkg/errors"
	"github.com/noah-isme/onboarding-api/pkg/response"
)

const documentFormField = "file"

type checklistService interface {
	CreateChecklist(ctx context.Context, req dto.CreateChecklistRequest, actor models.Actor) (*models.ChecklistInstance, error)
	GetChecklistCached(ctx context.Context, employeeID string, actor models.Actor) (*models.ChecklistInstance, bool, error)
	ListChecklists(ctx context.Context, query dto.ChecklistQuery) ([]models.ChecklistInstance, *models.Pagination, error)
	ToggleItem(ctx context.Context, itemID string, isCompleted bool, actor models.Actor) (*models.ItemMutationResult, error)
	UploadDocumentForItem(ctx context.Context, itemID string, upload service.DocumentUpload, actor models.Actor) (*models.ItemMutationResult, error)
	RecordAssessmentResult(ctx context.Context, itemID string, req dto.RecordAssessmentRequest, actor models.Actor) (*models.ChecklistItem, error)
	VerifyDocument(ctx context.Context, itemID, notes string, actor models.Actor) (*models.ChecklistItem, error)
	GetItem(ctx context.Context, itemID string, actor models.Actor) (*models.ChecklistItem, error)
	PreviewTemplate(role string, department *string) dto.TemplatePreview
}

type linkIssuer interface {
	Issue(employeeID string) (*dto.PublicLink, error)
}

type documentLinker interface {
	Link(item *models.ChecklistItem) (*dto.DocumentLink, error)
}

type checklistExporter interface {
	ExportOverview(ctx context.Context, query dto.ChecklistQuery, format string, actor models.Actor) (*service.ExportFile, error)
	ExportChecklist(ctx context.Context, employeeID, format string, actor models.Actor) (*service.ExportFile, error)
}

// OnboardingHandler exposes the authenticated checklist endpoints.
type OnboardingHandler struct {
	checklists checklistService
	links      linkIssuer
	documents  documentLinker
	exports    checklistExporter
	logger     *zap.Logger
}

// NewOnboardingHandler constructs the handler. exports may be nil when exports are disabled.
func NewOnboardingHandler(checklists checklistService, links linkIssuer, documents documentLinker, exports checklistExporter, logger *zap.Logger) *OnboardingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OnboardingHandler{checklists: checklists, links: links, documents: documents, exports: exports, logger: logger}
}

// Create godoc
// @Summary Create an onboarding checklist
// @Tags Onboarding
// @Accept json
// @Produce json
// @Param payload body dto.CreateChecklistRequest true "Checklist payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /onboarding/checklists [post]
func (h *OnboardingHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.CreateChecklistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	checklist, err := h.checklists.CreateChecklist(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	out := dto.CreateChecklistResponse{Checklist: checklist}
	if h.links != nil {
		link, err := h.links.Issue(checklist.EmployeeID)
		if err != nil {
			h.logger.Warn("public link not issued", zap.String("employee_id", checklist.EmployeeID), zap.Error(err))
		} else {
			out.PublicLink = link
		}
	}
	response.Created(c, out)
}

// List godoc
// @Summary HR onboarding overview
// @Tags Onboarding
// @Produce json
// @Param role query string false "Role"
// @Param department query string false "Department"
// @Param status query string false "in_progress or completed"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /onboarding/checklists [get]
func (h *OnboardingHandler) List(c *gin.Context) {
	var query dto.ChecklistQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	items, pagination, err := h.checklists.ListChecklists(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get an employee's checklist
// @Tags Onboarding
// @Produce json
// @Param employeeId path string true "Employee ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /onboarding/checklists/{employeeId} [get]
func (h *OnboardingHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	checklist, hit, err := h.checklists.GetChecklistCached(c.Request.Context(), c.Param("employeeId"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, checklist, nil, cacheMeta(c, hit))
}

// Link godoc
// @Summary Issue a public checklist link
// @Tags Onboarding
// @Produce json
// @Param employeeId path string true "Employee ID"
// @Success 200 {object} response.Envelope
// @Router /onboarding/checklists/{employeeId}/link [get]
func (h *OnboardingHandler) Link(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	checklist, _, err := h.checklists.GetChecklistCached(c.Request.Context(), c.Param("employeeId"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	link, err := h.links.Issue(checklist.EmployeeID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// Toggle godoc
// @Summary Mark a checklist item completed
// @Tags Onboarding
// @Accept json
// @Produce json
// @Param itemId path string true "Item ID"
// @Param payload body dto.ToggleItemRequest true "Toggle payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /onboarding/items/{itemId}/toggle [post]
func (h *OnboardingHandler) Toggle(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	toggleItem(c, h.checklists, actor)
}

// UploadDocument godoc
// @Summary Attach a document to a checklist item
// @Description Accepts a multipart "file" upload or a JSON body with document_url.
// @Tags Onboarding
// @Accept json,mpfd
// @Produce json
// @Param itemId path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Router /onboarding/items/{itemId}/document [post]
func (h *OnboardingHandler) UploadDocument(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	uploadDocument(c, h.checklists, actor)
}

// DocumentLink godoc
// @Summary Get a download link for an item's document
// @Tags Onboarding
// @Produce json
// @Param itemId path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Router /onboarding/items/{itemId}/document [get]
func (h *OnboardingHandler) DocumentLink(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	documentLink(c, h.checklists, h.documents, actor)
}

// RecordAssessment godoc
// @Summary Record a psychometric test result
// @Tags Onboarding
// @Accept json
// @Produce json
// @Param itemId path string true "Item ID"
// @Param payload body dto.RecordAssessmentRequest true "Assessment result"
// @Success 200 {object} response.Envelope
// @Router /onboarding/items/{itemId}/assessment [post]
func (h *OnboardingHandler) RecordAssessment(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.RecordAssessmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
		return
	}
	item, err := h.checklists.RecordAssessmentResult(c.Request.Context(), c.Param("itemId"), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// VerifyDocument godoc
// @Summary Verify an uploaded document
// @Tags Onboarding
// @Accept json
// @Produce json
// @Param itemId path string true "Item ID"
// @Param payload body dto.VerifyDocumentRequest false "Verification notes"
// @Success 200 {object} response.Envelope
// @Router /onboarding/items/{itemId}/verify [post]
func (h *OnboardingHandler) VerifyDocument(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req dto.VerifyDocumentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
			return
		}
	}
	if len(req.Notes) > 2000 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "notes must be at most 2000 characters"))
		return
	}
	item, err := h.checklists.VerifyDocument(c.Request.Context(), c.Param("itemId"), req.Notes, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, item, nil)
}

// Templates godoc
// @Summary Preview the composed template for a role and department
// @Tags Onboarding
// @Produce json
// @Param role query string false "Role"
// @Param department query string false "Department"
// @Success 200 {object} response.Envelope
// @Router /onboarding/templates [get]
func (h *OnboardingHandler) Templates(c *gin.Context) {
	preview := h.checklists.PreviewTemplate(c.Query("role"), optionalString(c, "department"))
	response.JSON(c, http.StatusOK, preview, nil)
}

// ExportOverview godoc
// @Summary Export the HR overview
// @Tags Onboarding
// @Produce octet-stream
// @Param format query string false "csv, pdf or xlsx"
// @Success 200 {file} file
// @Router /onboarding/checklists/export [get]
func (h *OnboardingHandler) ExportOverview(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var query dto.ChecklistQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	file, err := h.exports.ExportOverview(c.Request.Context(), query, c.Query("format"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// ExportChecklist godoc
// @Summary Export one employee's checklist
// @Tags Onboarding
// @Produce octet-stream
// @Param employeeId path string true "Employee ID"
// @Param format query string false "csv, pdf or xlsx"
// @Success 200 {file} file
// @Router /onboarding/checklists/{employeeId}/export [get]
func (h *OnboardingHandler) ExportChecklist(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	file, err := h.exports.ExportChecklist(c.Request.Context(), c.Param("employeeId"), c.Query("format"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

func toggleItem(c *gin.Context, checklists checklistService, actor models.Actor) {
	var req dto.ToggleItemRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsCompleted == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "is_completed is required"))
		return
	}
	result, err := checklists.ToggleItem(c.Request.Context(), c.Param("itemId"), *req.IsCompleted, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func uploadDocument(c *gin.Context, checklists checklistService, actor models.Actor) {
	var upload service.DocumentUpload
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		header, err := c.FormFile(documentFormField)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "multipart field \"file\" is required"))
			return
		}
		file, err := header.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read upload"))
			return
		}
		defer closeUpload(file)
		upload.Content = file
		upload.Name = c.PostForm("document_name")
		if upload.Name == "" {
			upload.Name = header.Filename
		}
	} else {
		var req dto.UploadDocumentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid payload"))
			return
		}
		upload.URL = req.DocumentURL
		upload.Name = req.DocumentName
	}

	result, err := checklists.UploadDocumentForItem(c.Request.Context(), c.Param("itemId"), upload, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

func documentLink(c *gin.Context, checklists checklistService, documents documentLinker, actor models.Actor) {
	item, err := checklists.GetItem(c.Request.Context(), c.Param("itemId"), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	link, err := documents.Link(item)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

func closeUpload(f multipart.File) {
	_ = f.Close()
}
