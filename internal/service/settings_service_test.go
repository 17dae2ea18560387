package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-roster-api/internal/dto"
	"github.com/noah-isme/sma-roster-api/internal/models"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
)

type settingsRepoStub struct {
	rows      map[string]models.Configuration
	listCalls int
	upserts   [][]models.Configuration
	seeded    bool
}

func newSettingsRepoStub(values map[string]string) *settingsRepoStub {
	repo := &settingsRepoStub{rows: map[string]models.Configuration{}}
	for key, value := range values {
		repo.rows[key] = models.Configuration{Key: key, Value: value}
	}
	return repo
}

func (r *settingsRepoStub) ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error) {
	r.listCalls++
	var out []models.Configuration
	for _, key := range keys {
		if row, ok := r.rows[key]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (r *settingsRepoStub) BulkUpsert(ctx context.Context, cfgs []models.Configuration) error {
	r.upserts = append(r.upserts, cfgs)
	for _, cfg := range cfgs {
		r.rows[cfg.Key] = cfg
	}
	return nil
}

func (r *settingsRepoStub) LockKey(ctx context.Context, exec sqlx.ExtContext, key string) (*models.Configuration, error) {
	row, ok := r.rows[key]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &row, nil
}

func (r *settingsRepoStub) InsertIfMissing(ctx context.Context, exec sqlx.ExtContext, cfg *models.Configuration) error {
	r.seeded = true
	if _, ok := r.rows[cfg.Key]; !ok {
		r.rows[cfg.Key] = *cfg
	}
	return nil
}

func (r *settingsRepoStub) UpsertWith(ctx context.Context, exec sqlx.ExtContext, cfg *models.Configuration) error {
	r.rows[cfg.Key] = *cfg
	return nil
}

type settingsCacheStub struct {
	value       *models.SchoolSettings
	sets        int
	invalidated []string
}

func (c *settingsCacheStub) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if c.value == nil {
		return false, nil
	}
	*(dest.(*models.SchoolSettings)) = *c.value
	return true, nil
}

func (c *settingsCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	settings := value.(models.SchoolSettings)
	c.value = &settings
	c.sets++
	return nil
}

func (c *settingsCacheStub) Invalidate(ctx context.Context, pattern string) error {
	c.invalidated = append(c.invalidated, pattern)
	c.value = nil
	return nil
}

func newSettingsFixture(values map[string]string) (*SettingsService, *settingsRepoStub, *settingsCacheStub, *auditTrailStub) {
	repo := newSettingsRepoStub(values)
	cache := &settingsCacheStub{}
	audit := &auditTrailStub{}
	svc := NewSettingsService(repo, cache, audit, nil, nil, SettingsServiceConfig{
		CacheTTL:          time.Minute,
		DefaultPrefix:     "SCH-",
		DefaultPadding:    3,
		SchoolDisplayName: "SMA Negeri 1",
	})
	return svc, repo, cache, audit
}

func TestSettingsServiceMergesDefaults(t *testing.T) {
	svc, _, _, _ := newSettingsFixture(map[string]string{
		models.SettingIndexNumberPerClass: "true",
		models.SettingIndexNumberPadding:  "5",
	})

	settings, err := svc.Settings(context.Background())
	require.NoError(t, err)
	assert.True(t, settings.IndexNumberPerClass)
	assert.Equal(t, 5, settings.IndexNumberPadding)
	assert.Equal(t, "SCH-", settings.IndexNumberGlobalPrefix)
	assert.Equal(t, 1, settings.IndexNumberGlobalCounter)
	assert.True(t, settings.IndexNumberAutoAssign)
	assert.False(t, settings.IsDataEntryLocked)
	assert.Equal(t, "SMA Negeri 1", settings.SchoolDisplayName)
}

func TestSettingsServiceServesFromCache(t *testing.T) {
	svc, repo, cache, _ := newSettingsFixture(nil)

	_, err := svc.Settings(context.Background())
	require.NoError(t, err)
	_, err = svc.Settings(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, repo.listCalls)
	assert.Equal(t, 1, cache.sets)
}

func TestSettingsServiceItems(t *testing.T) {
	svc, _, _, _ := newSettingsFixture(map[string]string{models.SettingIndexNumberGlobalCounter: "42"})

	items, err := svc.Items(context.Background())
	require.NoError(t, err)
	require.Len(t, items, len(settingKeys))
	for _, item := range items {
		if item.Key == models.SettingIndexNumberGlobalCounter {
			assert.Equal(t, "42", item.Value)
			assert.Equal(t, string(models.ConfigurationTypeInteger), item.Type)
			assert.NotEmpty(t, item.Description)
		}
	}
}

func TestSettingsServiceUpdateIndexNumberScheme(t *testing.T) {
	svc, repo, cache, audit := newSettingsFixture(map[string]string{models.SettingIndexNumberGlobalPrefix: "SCH-"})
	actor := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

	prefix := "SCH-"
	suffix := "/2024"
	padding := 4
	perClass := true
	settings, err := svc.UpdateIndexNumberScheme(context.Background(), dto.UpdateIndexNumberSettingsRequest{
		GlobalPrefix: &prefix,
		GlobalSuffix: &suffix,
		Padding:      &padding,
		PerClass:     &perClass,
	}, actor)
	require.NoError(t, err)
	assert.Equal(t, "/2024", settings.IndexNumberGlobalSuffix)
	assert.Equal(t, 4, settings.IndexNumberPadding)
	assert.True(t, settings.IndexNumberPerClass)

	require.Len(t, repo.upserts, 1)
	assert.Len(t, repo.upserts[0], 4)
	assert.Equal(t, []string{settingsCachePattern}, cache.invalidated)

	// the unchanged prefix is written but not audited
	require.Len(t, audit.logs, 3)
	for _, log := range audit.logs {
		assert.Equal(t, models.AuditActionConfigUpdate, log.Action)
		assert.NotEqual(t, models.SettingIndexNumberGlobalPrefix, *log.ResourceID)
		assert.Equal(t, "admin-1", *log.UserID)
	}
}

func TestSettingsServiceRejectsInvalidScheme(t *testing.T) {
	svc, repo, _, _ := newSettingsFixture(nil)
	actor := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

	padding := 13
	_, err := svc.UpdateIndexNumberScheme(context.Background(), dto.UpdateIndexNumberSettingsRequest{Padding: &padding}, actor)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	counter := 0
	_, err = svc.UpdateIndexNumberScheme(context.Background(), dto.UpdateIndexNumberSettingsRequest{GlobalCounter: &counter}, actor)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	counter = 1_000_000_000
	_, err = svc.UpdateIndexNumberScheme(context.Background(), dto.UpdateIndexNumberSettingsRequest{GlobalCounter: &counter}, actor)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	prefix := strings.Repeat("x", 33)
	_, err = svc.UpdateIndexNumberScheme(context.Background(), dto.UpdateIndexNumberSettingsRequest{GlobalPrefix: &prefix}, actor)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.UpdateIndexNumberScheme(context.Background(), dto.UpdateIndexNumberSettingsRequest{}, actor)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	padding = 2
	_, err = svc.UpdateIndexNumberScheme(context.Background(), dto.UpdateIndexNumberSettingsRequest{Padding: &padding}, nil)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))

	assert.Empty(t, repo.upserts)
}

func TestSettingsServiceSetDataEntryLock(t *testing.T) {
	svc, repo, _, audit := newSettingsFixture(nil)
	actor := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}

	settings, err := svc.SetDataEntryLock(context.Background(), true, actor)
	require.NoError(t, err)
	assert.True(t, settings.IsDataEntryLocked)
	assert.Equal(t, "true", repo.rows[models.SettingDataEntryLocked].Value)
	require.Len(t, audit.logs, 1)

	locked, err := svc.DataEntryLocked(context.Background())
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestSettingsServiceLockGlobalCounter(t *testing.T) {
	t.Run("seeds missing row", func(t *testing.T) {
		svc, repo, _, _ := newSettingsFixture(nil)
		counter, err := svc.LockGlobalCounter(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, 1, counter)
		assert.True(t, repo.seeded)
	})

	t.Run("reads stored counter", func(t *testing.T) {
		svc, repo, _, _ := newSettingsFixture(map[string]string{models.SettingIndexNumberGlobalCounter: "17"})
		counter, err := svc.LockGlobalCounter(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, 17, counter)
		assert.False(t, repo.seeded)
	})

	t.Run("invalid value falls back to one", func(t *testing.T) {
		svc, _, _, _ := newSettingsFixture(map[string]string{models.SettingIndexNumberGlobalCounter: "abc"})
		counter, err := svc.LockGlobalCounter(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, 1, counter)
	})
}

func TestSettingsServiceStoreGlobalCounter(t *testing.T) {
	svc, repo, cache, _ := newSettingsFixture(nil)
	actor := &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher}

	require.NoError(t, svc.StoreGlobalCounter(context.Background(), nil, 9, actor))
	row := repo.rows[models.SettingIndexNumberGlobalCounter]
	assert.Equal(t, "9", row.Value)
	assert.Equal(t, models.ConfigurationTypeInteger, row.Type)
	assert.Equal(t, "teacher-1", *row.UpdatedBy)

	svc.InvalidateCache(context.Background())
	assert.Equal(t, []string{settingsCachePattern}, cache.invalidated)
}
