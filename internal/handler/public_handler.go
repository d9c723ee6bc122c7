package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/onboarding-api/pkg/response"
)

// PublicHandler serves checklist access through signed links. Routes must sit behind
// middleware.ChecklistLink, which resolves the employee from the :token parameter.
type PublicHandler struct {
	checklists checklistService
	documents  documentLinker
}

// NewPublicHandler constructs the handler.
func NewPublicHandler(checklists checklistService, documents documentLinker) *PublicHandler {
	return &PublicHandler{checklists: checklists, documents: documents}
}

// Get godoc
// @Summary Read a checklist through a public link
// @Tags Public
// @Produce json
// @Param token path string true "Checklist link token"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /public/checklists/{token} [get]
func (h *PublicHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	checklist, hit, err := h.checklists.GetChecklistCached(c.Request.Context(), actor.UserID, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, checklist, nil, cacheMeta(c, hit))
}

// Toggle godoc
// @Summary Mark an item completed through a public link
// @Tags Public
// @Accept json
// @Produce json
// @Param token path string true "Checklist link token"
// @Param itemId path string true "Item ID"
// @Param payload body dto.ToggleItemRequest true "Toggle payload"
// @Success 200 {object} response.Envelope
// @Router /public/checklists/{token}/items/{itemId}/toggle [post]
func (h *PublicHandler) Toggle(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	toggleItem(c, h.checklists, actor)
}

// UploadDocument godoc
// @Summary Attach a document through a public link
// @Tags Public
// @Accept json,mpfd
// @Produce json
// @Param token path string true "Checklist link token"
// @Param itemId path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Router /public/checklists/{token}/items/{itemId}/document [post]
func (h *PublicHandler) UploadDocument(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	uploadDocument(c, h.checklists, actor)
}

// DocumentLink godoc
// @Summary Get a document download link through a public link
// @Tags Public
// @Produce json
// @Param token path string true "Checklist link token"
// @Param itemId path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Router /public/checklists/{token}/items/{itemId}/document [get]
func (h *PublicHandler) DocumentLink(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	documentLink(c, h.checklists, h.documents, actor)
}
