package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-roster-api/internal/dto"
	"github.com/noah-isme/sma-roster-api/internal/models"
	"github.com/noah-isme/sma-roster-api/pkg/response"
)

type settingsService interface {
	Settings(ctx context.Context) (models.SchoolSettings, error)
	Items(ctx context.Context) ([]dto.ConfigurationItem, error)
	UpdateIndexNumberScheme(ctx context.Context, req dto.UpdateIndexNumberSettingsRequest, actor *models.JWTClaims) (models.SchoolSettings, error)
	SetDataEntryLock(ctx context.Context, locked bool, actor *models.JWTClaims) (models.SchoolSettings, error)
}

// SettingsHandler exposes the school settings endpoints.
type SettingsHandler struct {
	service settingsService
}

// NewSettingsHandler builds a new handler.
func NewSettingsHandler(service settingsService) *SettingsHandler {
	return &SettingsHandler{service: service}
}

// Get godoc
// @Summary Get school settings
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings [get]
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.service.Settings(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	items, err := h.service.Items(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.SettingsResponse{Settings: settings, Items: items}, nil)
}

// UpdateIndexNumber godoc
// @Summary Update the index number scheme
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body dto.UpdateIndexNumberSettingsRequest true "Index number settings"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /settings/index-number [put]
func (h *SettingsHandler) UpdateIndexNumber(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.UpdateIndexNumberSettingsRequest
	if !bindJSON(c, &req) {
		return
	}
	settings, err := h.service.UpdateIndexNumberScheme(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}

// UpdateLock godoc
// @Summary Toggle the data-entry lock
// @Tags Settings
// @Accept json
// @Produce json
// @Param payload body dto.UpdateDataEntryLockRequest true "Lock state"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /settings/lock [put]
func (h *SettingsHandler) UpdateLock(c *gin.Context) {
	claims, ok := requireClaims(c)
	if !ok {
		return
	}
	var req dto.UpdateDataEntryLockRequest
	if !bindJSON(c, &req) {
		return
	}
	settings, err := h.service.SetDataEntryLock(c.Request.Context(), *req.Locked, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, settings, nil)
}
