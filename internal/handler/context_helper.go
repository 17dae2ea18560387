package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-roster-api/internal/dto"
	"github.com/noah-isme/sma-roster-api/internal/middleware"
	"github.com/noah-isme/sma-roster-api/internal/models"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
	"github.com/noah-isme/sma-roster-api/pkg/response"
)

// requireClaims returns the caller's claims, rendering 401 when absent.
func requireClaims(c *gin.Context) (*models.JWTClaims, bool) {
	claims, ok := middleware.ClaimsFromContext(c)
	if !ok || claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil, false
	}
	return claims, true
}

func bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return false
	}
	return true
}

func auditMeta(c *gin.Context) dto.AuditMeta {
	return dto.AuditMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
}

func pageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		page = 1
	}
	sizeParam := c.Query("page_size")
	if sizeParam == "" {
		sizeParam = c.DefaultQuery("limit", "20")
	}
	size, err := strconv.Atoi(sizeParam)
	if err != nil {
		size = 20
	}
	return page, size
}

func boolQuery(c *gin.Context, key string) *bool {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &v
}
