package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-roster-api/internal/dto"
	"github.com/noah-isme/sma-roster-api/internal/middleware"
	"github.com/noah-isme/sma-roster-api/internal/models"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
)

type settingsServiceStub struct {
	settings  models.SchoolSettings
	patch     dto.UpdateIndexNumberSettingsRequest
	locked    *bool
	updateErr error
}

func (s *settingsServiceStub) Settings(ctx context.Context) (models.SchoolSettings, error) {
	return s.settings, nil
}

func (s *settingsServiceStub) Items(ctx context.Context) ([]dto.ConfigurationItem, error) {
	return []dto.ConfigurationItem{{Key: models.SettingIndexNumberPadding, Value: "3", Type: "INTEGER"}}, nil
}

func (s *settingsServiceStub) UpdateIndexNumberScheme(ctx context.Context, req dto.UpdateIndexNumberSettingsRequest, actor *models.JWTClaims) (models.SchoolSettings, error) {
	s.patch = req
	if s.updateErr != nil {
		return models.SchoolSettings{}, s.updateErr
	}
	if req.Padding != nil {
		s.settings.IndexNumberPadding = *req.Padding
	}
	return s.settings, nil
}

func (s *settingsServiceStub) SetDataEntryLock(ctx context.Context, locked bool, actor *models.JWTClaims) (models.SchoolSettings, error) {
	s.locked = &locked
	s.settings.IsDataEntryLocked = locked
	return s.settings, nil
}

func settingsContext(method string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	req := httptest.NewRequest(method, "/settings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin})
	return c, rec
}

func TestSettingsHandlerGet(t *testing.T) {
	h := NewSettingsHandler(&settingsServiceStub{settings: models.SchoolSettings{IndexNumberGlobalPrefix: "SCH-"}})
	c, rec := settingsContext(http.MethodGet, nil)

	h.Get(c)
	require.Equal(t, http.StatusOK, rec.Code)

	var payload dto.SettingsResponse
	require.NoError(t, json.Unmarshal(decodeTestEnvelope(t, rec).Data, &payload))
	assert.Equal(t, "SCH-", payload.Settings.IndexNumberGlobalPrefix)
	assert.Len(t, payload.Items, 1)
}

func TestSettingsHandlerUpdateIndexNumber(t *testing.T) {
	svc := &settingsServiceStub{}
	h := NewSettingsHandler(svc)
	c, rec := settingsContext(http.MethodPut, []byte(`{"index_number_padding":4}`))

	h.UpdateIndexNumber(c)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.patch.Padding)
	assert.Equal(t, 4, *svc.patch.Padding)
	assert.Nil(t, svc.patch.GlobalPrefix)

	svc.updateErr = appErrors.Clone(appErrors.ErrValidation, "index number padding must be between 0 and 12")
	c, rec = settingsContext(http.MethodPut, []byte(`{"index_number_padding":40}`))
	h.UpdateIndexNumber(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSettingsHandlerUpdateLock(t *testing.T) {
	svc := &settingsServiceStub{}
	h := NewSettingsHandler(svc)

	c, rec := settingsContext(http.MethodPut, []byte(`{}`))
	h.UpdateLock(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Nil(t, svc.locked)

	c, rec = settingsContext(http.MethodPut, []byte(`{"locked":false}`))
	h.UpdateLock(c)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.locked)
	assert.False(t, *svc.locked)
}
