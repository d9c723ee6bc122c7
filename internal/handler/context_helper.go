package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/onboarding-api/internal/middleware"
	"github.com/noah-isme/onboarding-api/internal/models"
	appErrors "github.com/noah-isme/onboarding-api/pkg/errors"
	"github.com/noah-isme/onboarding-api/pkg/response"
)

// actorFromContext writes a 401 and returns false when the request carries no identity.
func actorFromContext(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.Actor(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}

func cacheMeta(c *gin.Context, hit bool) map[string]interface{} {
	middleware.SetCacheHit(c, hit)
	return middleware.ExtractMeta(c)
}

func optionalString(c *gin.Context, key string) *string {
	value, ok := c.GetQuery(key)
	if !ok || value == "" {
		return nil
	}
	return &value
}
