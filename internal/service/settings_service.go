package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-roster-api/internal/dto"
	"github.com/noah-isme/sma-roster-api/internal/indexnumber"
	"github.com/noah-isme/sma-roster-api/internal/models"
	appErrors "github.com/noah-isme/sma-roster-api/pkg/errors"
)

const (
	settingsCacheKey     = "settings:school"
	settingsCachePattern = "settings:*"
	maxIndexNumberPad    = 12
	maxAffixLength       = 32
)

type settingsRepository interface {
	ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error)
	BulkUpsert(ctx context.Context, cfgs []models.Configuration) error
	LockKey(ctx context.Context, exec sqlx.ExtContext, key string) (*models.Configuration, error)
	InsertIfMissing(ctx context.Context, exec sqlx.ExtContext, cfg *models.Configuration) error
	UpsertWith(ctx context.Context, exec sqlx.ExtContext, cfg *models.Configuration) error
}

type settingsCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type settingDefinition struct {
	Key         string
	Type        models.ConfigurationType
	Description string
}

var settingKeys = []string{
	models.SettingIndexNumberPerClass,
	models.SettingIndexNumberGlobalPrefix,
	models.SettingIndexNumberGlobalSuffix,
	models.SettingIndexNumberGlobalCounter,
	models.SettingIndexNumberPadding,
	models.SettingIndexNumberAutoAssign,
	models.SettingDataEntryLocked,
	models.SettingSchoolDisplayName,
}

var settingDefinitions = map[string]settingDefinition{
	models.SettingIndexNumberPerClass: {
		Key:         models.SettingIndexNumberPerClass,
		Type:        models.ConfigurationTypeBoolean,
		Description: "Number students per class instead of school-wide",
	},
	models.SettingIndexNumberGlobalPrefix: {
		Key:         models.SettingIndexNumberGlobalPrefix,
		Type:        models.ConfigurationTypeString,
		Description: "Prefix placed before every index number",
	},
	models.SettingIndexNumberGlobalSuffix: {
		Key:         models.SettingIndexNumberGlobalSuffix,
		Type:        models.ConfigurationTypeString,
		Description: "Suffix placed after every index number",
	},
	models.SettingIndexNumberGlobalCounter: {
		Key:         models.SettingIndexNumberGlobalCounter,
		Type:        models.ConfigurationTypeInteger,
		Description: "Next school-wide index number counter",
	},
	models.SettingIndexNumberPadding: {
		Key:         models.SettingIndexNumberPadding,
		Type:        models.ConfigurationTypeInteger,
		Description: "Zero padding width of the counter, 0 disables padding",
	},
	models.SettingIndexNumberAutoAssign: {
		Key:         models.SettingIndexNumberAutoAssign,
		Type:        models.ConfigurationTypeBoolean,
		Description: "Assign index numbers automatically when students are created",
	},
	models.SettingDataEntryLocked: {
		Key:         models.SettingDataEntryLocked,
		Type:        models.ConfigurationTypeBoolean,
		Description: "Freeze data entry for every non-admin user",
	},
	models.SettingSchoolDisplayName: {
		Key:         models.SettingSchoolDisplayName,
		Type:        models.ConfigurationTypeString,
		Description: "Display name for the school shown in headers and exports",
	},
}

// SettingsServiceConfig seeds values for settings that were never stored.
type SettingsServiceConfig struct {
	CacheTTL          time.Duration
	DefaultPrefix     string
	DefaultSuffix     string
	DefaultPadding    int
	DefaultPerClass   bool
	SchoolDisplayName string
}

// SettingsService reads and writes the school-wide settings rows.
type SettingsService struct {
	repo      settingsRepository
	cache     settingsCache
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
	defaults  map[string]string
	cacheTTL  time.Duration
}

// NewSettingsService constructs a SettingsService.
func NewSettingsService(repo settingsRepository, cache settingsCache, audit auditLogger, validate *validator.Validate, logger *zap.Logger, cfg SettingsServiceConfig) *SettingsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	padding := cfg.DefaultPadding
	if padding < 0 || padding > maxIndexNumberPad {
		padding = 0
	}
	defaults := map[string]string{
		models.SettingIndexNumberPerClass:      strconv.FormatBool(cfg.DefaultPerClass),
		models.SettingIndexNumberGlobalPrefix:  cfg.DefaultPrefix,
		models.SettingIndexNumberGlobalSuffix:  cfg.DefaultSuffix,
		models.SettingIndexNumberGlobalCounter: "1",
		models.SettingIndexNumberPadding:       strconv.Itoa(padding),
		models.SettingIndexNumberAutoAssign:    "true",
		models.SettingDataEntryLocked:          "false",
		models.SettingSchoolDisplayName:        cfg.SchoolDisplayName,
	}
	return &SettingsService{
		repo:      repo,
		cache:     cache,
		audit:     audit,
		validator: validate,
		logger:    logger,
		defaults:  defaults,
		cacheTTL:  cfg.CacheTTL,
	}
}

// Settings returns the typed school settings, served from cache when possible.
func (s *SettingsService) Settings(ctx context.Context) (models.SchoolSettings, error) {
	if s.cache != nil {
		var cached models.SchoolSettings
		if hit, err := s.cache.Get(ctx, settingsCacheKey, &cached); err == nil && hit {
			return cached, nil
		}
	}

	values, _, err := s.load(ctx)
	if err != nil {
		return models.SchoolSettings{}, err
	}
	settings := parseSettings(values)

	if s.cache != nil {
		if err := s.cache.Set(ctx, settingsCacheKey, settings, s.cacheTTL); err != nil {
			s.logger.Debug("settings cache write skipped", zap.Error(err))
		}
	}
	return settings, nil
}

// DataEntryLocked reports the current state of the global data-entry lock.
func (s *SettingsService) DataEntryLocked(ctx context.Context) (bool, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return false, err
	}
	return settings.IsDataEntryLocked, nil
}

// Items returns the raw settings rows with their defaults applied.
func (s *SettingsService) Items(ctx context.Context) ([]dto.ConfigurationItem, error) {
	values, descriptions, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]dto.ConfigurationItem, 0, len(settingKeys))
	for _, key := range settingKeys {
		def := settingDefinitions[key]
		item := dto.ConfigurationItem{
			Key:         key,
			Value:       values[key],
			Type:        string(def.Type),
			Description: def.Description,
		}
		if d, ok := descriptions[key]; ok && d != "" {
			item.Description = d
		}
		items = append(items, item)
	}
	return items, nil
}

// UpdateIndexNumberScheme applies a partial update of the numbering scheme.
func (s *SettingsService) UpdateIndexNumberScheme(ctx context.Context, req dto.UpdateIndexNumberSettingsRequest, actor *models.JWTClaims) (models.SchoolSettings, error) {
	if err := s.validator.Struct(req); err != nil {
		return models.SchoolSettings{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid index number settings")
	}

	patch := map[string]string{}
	if req.PerClass != nil {
		patch[models.SettingIndexNumberPerClass] = strconv.FormatBool(*req.PerClass)
	}
	if req.GlobalPrefix != nil {
		patch[models.SettingIndexNumberGlobalPrefix] = *req.GlobalPrefix
	}
	if req.GlobalSuffix != nil {
		patch[models.SettingIndexNumberGlobalSuffix] = *req.GlobalSuffix
	}
	if req.GlobalCounter != nil {
		patch[models.SettingIndexNumberGlobalCounter] = strconv.Itoa(*req.GlobalCounter)
	}
	if req.Padding != nil {
		patch[models.SettingIndexNumberPadding] = strconv.Itoa(*req.Padding)
	}
	if req.AutoAssign != nil {
		patch[models.SettingIndexNumberAutoAssign] = strconv.FormatBool(*req.AutoAssign)
	}
	if req.SchoolDisplayName != nil {
		patch[models.SettingSchoolDisplayName] = *req.SchoolDisplayName
	}
	if len(patch) == 0 {
		return models.SchoolSettings{}, appErrors.Clone(appErrors.ErrValidation, "no settings to update")
	}
	return s.apply(ctx, patch, actor)
}

// SetDataEntryLock switches the global data-entry lock.
func (s *SettingsService) SetDataEntryLock(ctx context.Context, locked bool, actor *models.JWTClaims) (models.SchoolSettings, error) {
	return s.apply(ctx, map[string]string{models.SettingDataEntryLocked: strconv.FormatBool(locked)}, actor)
}

// LockGlobalCounter reads the school-wide counter and holds its row lock
// until exec's transaction ends. A missing row is seeded with the default
// first so there is always a row to lock.
func (s *SettingsService) LockGlobalCounter(ctx context.Context, exec sqlx.ExtContext) (int, error) {
	cfg, err := s.repo.LockKey(ctx, exec, models.SettingIndexNumberGlobalCounter)
	if errors.Is(err, sql.ErrNoRows) {
		seed := s.row(models.SettingIndexNumberGlobalCounter, s.defaults[models.SettingIndexNumberGlobalCounter], nil)
		if err = s.repo.InsertIfMissing(ctx, exec, &seed); err != nil {
			return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed index number counter")
		}
		cfg, err = s.repo.LockKey(ctx, exec, models.SettingIndexNumberGlobalCounter)
	}
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock index number counter")
	}
	counter, convErr := strconv.Atoi(strings.TrimSpace(cfg.Value))
	if convErr != nil || counter < 1 {
		s.logger.Warn("stored global counter is invalid, falling back to 1", zap.String("value", cfg.Value))
		counter = 1
	}
	return counter, nil
}

// StoreGlobalCounter writes the next school-wide counter inside exec's
// transaction. Callers must hold the lock taken by LockGlobalCounter and
// call InvalidateCache after commit.
func (s *SettingsService) StoreGlobalCounter(ctx context.Context, exec sqlx.ExtContext, next int, actor *models.JWTClaims) error {
	row := s.row(models.SettingIndexNumberGlobalCounter, strconv.Itoa(next), actor)
	if err := s.repo.UpsertWith(ctx, exec, &row); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store index number counter")
	}
	return nil
}

// InvalidateCache drops cached settings.
func (s *SettingsService) InvalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, settingsCachePattern); err != nil {
		s.logger.Warn("failed to invalidate settings cache", zap.Error(err))
	}
}

func (s *SettingsService) apply(ctx context.Context, patch map[string]string, actor *models.JWTClaims) (models.SchoolSettings, error) {
	if actor == nil {
		return models.SchoolSettings{}, appErrors.ErrUnauthorized
	}
	current, _, err := s.load(ctx)
	if err != nil {
		return models.SchoolSettings{}, err
	}

	rows := make([]models.Configuration, 0, len(patch))
	for _, key := range settingKeys {
		raw, ok := patch[key]
		if !ok {
			continue
		}
		value, err := validateSettingValue(settingDefinitions[key], raw)
		if err != nil {
			return models.SchoolSettings{}, err
		}
		rows = append(rows, s.row(key, value, actor))
	}

	if err := s.repo.BulkUpsert(ctx, rows); err != nil {
		return models.SchoolSettings{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update settings")
	}
	s.InvalidateCache(ctx)

	for _, row := range rows {
		previous := current[row.Key]
		current[row.Key] = row.Value
		if previous != row.Value {
			s.emitAudit(ctx, actor, row.Key, previous, row.Value)
		}
	}

	s.logger.Info("settings updated", zap.Int("keys", len(rows)), zap.String("actor", actor.UserID))
	return parseSettings(current), nil
}

func (s *SettingsService) load(ctx context.Context) (map[string]string, map[string]string, error) {
	rows, err := s.repo.ListByKeys(ctx, settingKeys)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
	}
	values := make(map[string]string, len(settingKeys))
	for key, value := range s.defaults {
		values[key] = value
	}
	descriptions := make(map[string]string)
	for _, row := range rows {
		if _, known := settingDefinitions[row.Key]; !known {
			continue
		}
		values[row.Key] = row.Value
		if row.Description != nil {
			descriptions[row.Key] = *row.Description
		}
	}
	return values, descriptions, nil
}

func (s *SettingsService) row(key, value string, actor *models.JWTClaims) models.Configuration {
	def := settingDefinitions[key]
	return models.Configuration{
		Key:         key,
		Value:       value,
		Type:        def.Type,
		Description: strPtr(def.Description),
		UpdatedBy:   userIDPtr(actor),
	}
}

func (s *SettingsService) emitAudit(ctx context.Context, actor *models.JWTClaims, key, oldValue, newValue string) {
	if s.audit == nil {
		return
	}
	oldBytes, _ := json.Marshal(map[string]string{"key": key, "value": oldValue})
	newBytes, _ := json.Marshal(map[string]string{"key": key, "value": newValue})
	log := &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     models.AuditActionConfigUpdate,
		Resource:   "settings",
		ResourceID: &key,
		OldValues:  oldBytes,
		NewValues:  newBytes,
		IPAddress:  "system",
		UserAgent:  "settings-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record settings audit", zap.String("key", key), zap.Error(err))
	}
}

func validateSettingValue(def settingDefinition, value string) (string, error) {
	switch def.Type {
	case models.ConfigurationTypeBoolean:
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "true":
			return "true", nil
		case "false":
			return "false", nil
		default:
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s expects boolean value", def.Key))
		}
	case models.ConfigurationTypeInteger:
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s expects integer value", def.Key))
		}
		switch def.Key {
		case models.SettingIndexNumberGlobalCounter:
			if n < 1 || n > indexnumber.MaxCounter {
				return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("index number counter must be between 1 and %d", indexnumber.MaxCounter))
			}
		case models.SettingIndexNumberPadding:
			if n < 0 || n > maxIndexNumberPad {
				return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("index number padding must be between 0 and %d", maxIndexNumberPad))
			}
		}
		return strconv.Itoa(n), nil
	case models.ConfigurationTypeString:
		if def.Key == models.SettingSchoolDisplayName {
			return strings.TrimSpace(value), nil
		}
		// Affixes are kept verbatim: spaces and separators are significant.
		if len(value) > maxAffixLength {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s exceeds %d characters", def.Key, maxAffixLength))
		}
		return value, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "unsupported configuration type")
	}
}

func parseSettings(values map[string]string) models.SchoolSettings {
	return models.SchoolSettings{
		IndexNumberPerClass:      parseBool(values[models.SettingIndexNumberPerClass], false),
		IndexNumberGlobalPrefix:  values[models.SettingIndexNumberGlobalPrefix],
		IndexNumberGlobalSuffix:  values[models.SettingIndexNumberGlobalSuffix],
		IndexNumberGlobalCounter: parseInt(values[models.SettingIndexNumberGlobalCounter], 1),
		IndexNumberPadding:       parseInt(values[models.SettingIndexNumberPadding], 0),
		IndexNumberAutoAssign:    parseBool(values[models.SettingIndexNumberAutoAssign], true),
		IsDataEntryLocked:        parseBool(values[models.SettingDataEntryLocked], false),
		SchoolDisplayName:        values[models.SettingSchoolDisplayName],
	}
}

func parseBool(raw string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return v
}

func parseInt(raw string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fallback
	}
	return v
}

func userIDPtr(actor *models.JWTClaims) *string {
	if actor == nil || actor.UserID == "" {
		return nil
	}
	return &actor.UserID
}

func strPtr(value string) *string {
	if value == "" {
		return nil
	}
	result := value
	return &result
}
