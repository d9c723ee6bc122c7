package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/onboarding-api/internal/middleware"
	"github.com/noah-isme/onboarding-api/internal/models"
	"github.com/noah-isme/onboarding-api/internal/service"
)

// Routes bundles everything RegisterRoutes mounts.
type Routes struct {
	Auth        *service.AuthService
	Links       *service.LinkService
	Audit       middleware.AuditWriter
	Logger      *zap.Logger
	Onboarding  *OnboardingHandler
	Public      *PublicHandler
	Documents   *DocumentHandler
	Metrics     *MetricsHandler
	ExportsOpen bool
}

// RegisterRoutes mounts the API under api.
func RegisterRoutes(root *gin.Engine, api *gin.RouterGroup, rt Routes) {
	root.GET("/health", rt.Metrics.Health)
	root.GET("/metrics", rt.Metrics.Prometheus)

	api.GET("/onboarding/documents/download",
		middleware.Audit(rt.Audit, rt.Logger, models.AuditActionDocumentDownload, models.AuditResourceChecklistItem, ""),
		rt.Documents.Download)

	public := api.Group("/public/checklists/:token", middleware.ChecklistLink(rt.Links))
	public.GET("", rt.Public.Get)
	public.POST("/items/:itemId/toggle", rt.Public.Toggle)
	public.POST("/items/:itemId/document", rt.Public.UploadDocument)
	public.GET("/items/:itemId/document", rt.Public.DocumentLink)

	secured := api.Group("", middleware.JWT(rt.Auth))
	secured.GET("/metrics/summary", middleware.RequireHR(), rt.Metrics.Summary)

	onboarding := secured.Group("/onboarding")
	hr := middleware.RequireHR()
	hrOrSelf := middleware.RBAC(append(roleNames(models.HRRoles), middleware.RoleSelf)...)
	assessor := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleHR, models.RoleService)

	onboarding.GET("/templates", hr, rt.Onboarding.Templates)
	onboarding.POST("/checklists", hr, rt.Onboarding.Create)
	onboarding.GET("/checklists", hr, rt.Onboarding.List)
	onboarding.GET("/checklists/:employeeId", hrOrSelf, rt.Onboarding.Get)
	onboarding.GET("/checklists/:employeeId/link", hr, rt.Onboarding.Link)
	if rt.ExportsOpen {
		onboarding.GET("/checklists/export", hr, rt.Onboarding.ExportOverview)
		onboarding.GET("/checklists/:employeeId/export", hrOrSelf, rt.Onboarding.ExportChecklist)
	}

	onboarding.POST("/items/:itemId/toggle", rt.Onboarding.Toggle)
	onboarding.POST("/items/:itemId/document", rt.Onboarding.UploadDocument)
	onboarding.GET("/items/:itemId/document", rt.Onboarding.DocumentLink)
	onboarding.POST("/items/:itemId/assessment", assessor, rt.Onboarding.RecordAssessment)
	onboarding.POST("/items/:itemId/verify", hr, rt.Onboarding.VerifyDocument)
}

func roleNames(roles []models.UserRole) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}
