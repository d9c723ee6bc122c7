package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/onboarding-api/internal/models"
	"github.com/noah-isme/onboarding-api/internal/service"
	appErrors "github.com/noah-isme/onboarding-api/pkg/errors"
	"github.com/noah-isme/onboarding-api/pkg/middleware/requestid"
	"github.com/noah-isme/onboarding-api/pkg/response"
)

// ContextUserKey is the gin context key storing JWT claims.
const ContextUserKey = "currentUser"

// ContextLinkEmployeeKey stores the employee resolved from a checklist link token.
const ContextLinkEmployeeKey = "linkEmployee"

// JWT protects routes by requiring a valid access token.
func JWT(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := authService.ValidateToken(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Next()
	}
}

// ChecklistLink authenticates public routes with the signed token in the :token path parameter.
func ChecklistLink(links *service.LinkService) gin.HandlerFunc {
	return func(c *gin.Context) {
		employeeID, err := links.Resolve(c.Param("token"))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(ContextLinkEmployeeKey, employeeID)
		c.Next()
	}
}

// Actor builds the acting identity from whichever credential authenticated the request.
func Actor(c *gin.Context) (models.Actor, bool) {
	var actor models.Actor
	if value, ok := c.Get(ContextUserKey); ok {
		claims, ok := value.(*models.JWTClaims)
		if !ok {
			return actor, false
		}
		actor = models.ActorFromClaims(claims)
	} else if value, ok := c.Get(ContextLinkEmployeeKey); ok {
		employeeID, _ := value.(string)
		if employeeID == "" {
			return actor, false
		}
		actor = models.Actor{UserID: employeeID, Public: true}
	} else {
		return actor, false
	}
	actor.IP = c.ClientIP()
	actor.UserAgent = c.GetHeader("User-Agent")
	actor.RequestID = requestid.Value(c)
	return actor, true
}
