package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/noah-isme/holiday-tracker-api/internal/dto"
	"github.com/noah-isme/holiday-tracker-api/internal/models"
	appErrors "github.com/noah-isme/holiday-tracker-api/pkg/errors"
)

type configurationRepository interface {
	ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error)
	Get(ctx context.Context, key string) (*models.Configuration, error)
	Upsert(ctx context.Context, cfg *models.Configuration) error
	BulkUpsert(ctx context.Context, cfgs []models.Configuration) error
}

type allowedConfiguration struct {
	Key         string
	Type        models.ConfigurationType
	Description string
	Enum        []string
	Min, Max    int
}

var allowedConfigurationKeys = []string{
	models.ConfigKeyVisibilityMode,
	models.ConfigKeyShowNames,
	models.ConfigKeyShowDetails,
	models.ConfigKeyDefaultHolidayAllowance,
}

var allowedConfigurations = map[string]allowedConfiguration{
	models.ConfigKeyVisibilityMode: {
		Key:         models.ConfigKeyVisibilityMode,
		Type:        models.ConfigurationTypeString,
		Description: "Default holiday scope for non-admin users",
		Enum: []string{
			string(models.VisibilityAllSeeAll),
			string(models.VisibilityDepartmentOnly),
			string(models.VisibilityAdminOnly),
		},
	},
	models.ConfigKeyShowNames: {
		Key:         models.ConfigKeyShowNames,
		Type:        models.ConfigurationTypeBoolean,
		Description: "Display hint: show colleague names on shared calendars",
	},
	models.ConfigKeyShowDetails: {
		Key:         models.ConfigKeyShowDetails,
		Type:        models.ConfigurationTypeBoolean,
		Description: "Display hint: show holiday type and notes on shared calendars",
	},
	models.ConfigKeyDefaultHolidayAllowance: {
		Key:         models.ConfigKeyDefaultHolidayAllowance,
		Type:        models.ConfigurationTypeInteger,
		Description: "Working days of holiday allowance given to new users",
		Min:         0,
		Max:         365,
	},
}

var builtinConfigurationDefaults = map[string]string{
	models.ConfigKeyVisibilityMode:          string(models.VisibilityAllSeeAll),
	models.ConfigKeyShowNames:               "true",
	models.ConfigKeyShowDetails:             "false",
	models.ConfigKeyDefaultHolidayAllowance: "25",
}

const visibilityFlightKey = "visibility"

// ConfigurationServiceConfig tunes runtime behaviour.
type ConfigurationServiceConfig struct {
	Defaults map[string]string
}

// ConfigurationService orchestrates CRUD workflow for configuration entries
// and resolves the runtime holiday settings.
type ConfigurationService struct {
	repo      configurationRepository
	audit     auditLogger
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	defaults  map[string]string
	group     singleflight.Group
}

// NewConfigurationService constructs a ConfigurationService.
func NewConfigurationService(repo configurationRepository, audit auditLogger, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cfg ConfigurationServiceConfig) *ConfigurationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := make(map[string]string, len(builtinConfigurationDefaults))
	for key, value := range builtinConfigurationDefaults {
		defaults[key] = value
	}
	for key, value := range cfg.Defaults {
		if value == "" {
			continue
		}
		defaults[key] = value
	}
	return &ConfigurationService{
		repo:      repo,
		audit:     audit,
		cache:     cache,
		validator: validate,
		logger:    logger,
		defaults:  defaults,
	}
}

// List returns configuration items scoped to allowed keys.
func (s *ConfigurationService) List(ctx context.Context) ([]dto.ConfigurationItem, error) {
	keys := allowedKeys()
	rows, err := s.repo.ListByKeys(ctx, keys)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list configurations")
	}
	existing := make(map[string]models.Configuration, len(rows))
	for _, row := range rows {
		existing[row.Key] = row
	}

	items := make([]dto.ConfigurationItem, 0, len(keys))
	for _, key := range keys {
		meta := allowedConfigurations[key]
		item := dto.ConfigurationItem{
			Key:         key,
			Type:        string(meta.Type),
			Description: meta.Description,
		}
		if row, ok := existing[key]; ok {
			item.Value = row.Value
			if row.Description != nil && *row.Description != "" {
				item.Description = *row.Description
			}
		} else if def, ok := s.defaultValue(key); ok {
			item.Value = def
		}
		items = append(items, item)
	}
	return items, nil
}

// Get retrieves a single configuration.
func (s *ConfigurationService) Get(ctx context.Context, key string) (*dto.ConfigurationItem, error) {
	meta, err := s.requireAllowedKey(key)
	if err != nil {
		return nil, err
	}
	cfg, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if def, ok := s.defaultValue(key); ok {
				return &dto.ConfigurationItem{
					Key:         key,
					Value:       def,
					Type:        string(meta.Type),
					Description: meta.Description,
				}, nil
			}
			return nil, appErrors.Clone(appErrors.ErrNotFound, "configuration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get configuration")
	}
	description := meta.Description
	if cfg.Description != nil && *cfg.Description != "" {
		description = *cfg.Description
	}
	return &dto.ConfigurationItem{
		Key:         cfg.Key,
		Value:       cfg.Value,
		Type:        string(cfg.Type),
		Description: description,
	}, nil
}

// Update upserts a configuration entry.
func (s *ConfigurationService) Update(ctx context.Context, key string, value string, actor *models.JWTClaims) (*dto.ConfigurationItem, error) {
	meta, err := s.requireAllowedKey(key)
	if err != nil {
		return nil, err
	}
	value, err = validateConfigurationValue(meta, value)
	if err != nil {
		return nil, err
	}

	prev, err := s.repo.Get(ctx, key)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch configuration")
	}
	if prev != nil && prev.Type != meta.Type {
		return nil, appErrors.Clone(appErrors.ErrValidation, "configuration type mismatch")
	}

	cfg := &models.Configuration{
		Key:         key,
		Value:       value,
		Type:        meta.Type,
		Description: strPtr(meta.Description),
		UpdatedBy:   userIDPtr(actor),
	}
	if err := s.repo.Upsert(ctx, cfg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update configuration")
	}

	s.emitAudit(ctx, actor, key, prevValue(prev), value)
	s.settingsChanged(ctx)

	return &dto.ConfigurationItem{
		Key:         key,
		Value:       value,
		Type:        string(meta.Type),
		Description: meta.Description,
	}, nil
}

// BulkUpdate applies multiple updates transactionally.
func (s *ConfigurationService) BulkUpdate(ctx context.Context, req dto.BulkUpdateConfigurationRequest, actor *models.JWTClaims) ([]dto.ConfigurationItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk payload")
	}
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}

	keys := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		keys = append(keys, item.Key)
	}
	existing, err := s.repo.ListByKeys(ctx, keys)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing configurations")
	}
	existingMap := make(map[string]models.Configuration, len(existing))
	for _, cfg := range existing {
		existingMap[cfg.Key] = cfg
	}

	toUpsert := make([]models.Configuration, 0, len(req.Items))
	for _, item := range req.Items {
		meta, err := s.requireAllowedKey(item.Key)
		if err != nil {
			return nil, err
		}
		normalizedValue, err := validateConfigurationValue(meta, item.Value)
		if err != nil {
			return nil, err
		}
		if prev, ok := existingMap[item.Key]; ok && prev.Type != meta.Type {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("configuration type mismatch for %s", item.Key))
		}
		toUpsert = append(toUpsert, models.Configuration{
			Key:         item.Key,
			Value:       normalizedValue,
			Type:        meta.Type,
			Description: strPtr(meta.Description),
			UpdatedBy:   userIDPtr(actor),
		})
	}

	if err := s.repo.BulkUpsert(ctx, toUpsert); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to bulk update configurations")
	}

	result := make([]dto.ConfigurationItem, 0, len(toUpsert))
	for _, cfg := range toUpsert {
		result = append(result, dto.ConfigurationItem{
			Key:         cfg.Key,
			Value:       cfg.Value,
			Type:        string(cfg.Type),
			Description: allowedConfigurations[cfg.Key].Description,
		})
		var prev *models.Configuration
		if row, ok := existingMap[cfg.Key]; ok {
			prev = &row
		}
		s.emitAudit(ctx, actor, cfg.Key, prevValue(prev), cfg.Value)
	}
	s.settingsChanged(ctx)
	return result, nil
}

// VisibilitySettings reads the current visibility mode and display hints.
// Concurrent callers share one repository round trip.
func (s *ConfigurationService) VisibilitySettings(ctx context.Context) (models.VisibilitySettings, error) {
	v, err, _ := s.group.Do(visibilityFlightKey, func() (interface{}, error) {
		values, err := s.valuesOrDefault(ctx, []string{
			models.ConfigKeyVisibilityMode,
			models.ConfigKeyShowNames,
			models.ConfigKeyShowDetails,
		})
		if err != nil {
			return models.VisibilitySettings{}, err
		}
		mode := models.VisibilityMode(values[models.ConfigKeyVisibilityMode])
		if !mode.Valid() {
			s.logger.Warn("unknown visibility mode stored, falling back to admin_only", zap.String("mode", string(mode)))
			mode = models.VisibilityAdminOnly
		}
		return models.VisibilitySettings{
			Mode:        mode,
			ShowNames:   values[models.ConfigKeyShowNames] == "true",
			ShowDetails: values[models.ConfigKeyShowDetails] == "true",
		}, nil
	})
	if err != nil {
		return models.VisibilitySettings{}, err
	}
	return v.(models.VisibilitySettings), nil
}

// DefaultHolidayAllowance returns the allowance granted to new users.
func (s *ConfigurationService) DefaultHolidayAllowance(ctx context.Context) (int, error) {
	v, err, _ := s.group.Do(models.ConfigKeyDefaultHolidayAllowance, func() (interface{}, error) {
		values, err := s.valuesOrDefault(ctx, []string{models.ConfigKeyDefaultHolidayAllowance})
		if err != nil {
			return 0, err
		}
		raw := values[models.ConfigKeyDefaultHolidayAllowance]
		allowance, convErr := strconv.Atoi(raw)
		if convErr != nil || allowance < 0 {
			return 0, appErrors.Wrap(convErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored default allowance is not a valid integer")
		}
		return allowance, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (s *ConfigurationService) requireAllowedKey(key string) (allowedConfiguration, error) {
	meta, ok := allowedConfigurations[key]
	if !ok {
		return allowedConfiguration{}, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "unsupported configuration key"), map[string]interface{}{"key": key})
	}
	return meta, nil
}

func validateConfigurationValue(meta allowedConfiguration, value string) (string, error) {
	value = strings.TrimSpace(value)
	switch meta.Type {
	case models.ConfigurationTypeBoolean:
		switch strings.ToLower(value) {
		case "true":
			return "true", nil
		case "false":
			return "false", nil
		default:
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s expects boolean value", meta.Key))
		}
	case models.ConfigurationTypeInteger:
		n, err := strconv.Atoi(value)
		if err != nil || n < meta.Min || n > meta.Max {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s expects an integer between %d and %d", meta.Key, meta.Min, meta.Max))
		}
		return strconv.Itoa(n), nil
	case models.ConfigurationTypeString:
		if len(meta.Enum) == 0 {
			return value, nil
		}
		lowered := strings.ToLower(value)
		for _, allowed := range meta.Enum {
			if lowered == allowed {
				return allowed, nil
			}
		}
		return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be one of %s", meta.Key, strings.Join(meta.Enum, ", ")))
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "unsupported configuration type")
	}
}

// settingsChanged drops cached holiday listings, which embed the scope and
// display hints derived from these settings.
func (s *ConfigurationService) settingsChanged(ctx context.Context) {
	s.group.Forget(visibilityFlightKey)
	s.group.Forget(models.ConfigKeyDefaultHolidayAllowance)
	if err := s.cache.Invalidate(ctx, holidayCachePattern); err != nil {
		s.logger.Warn("failed to invalidate holiday cache after settings change", zap.Error(err))
	}
}

func (s *ConfigurationService) emitAudit(ctx context.Context, actor *models.JWTClaims, key, oldValue, newValue string) {
	if s.audit == nil {
		return
	}
	oldPayload := map[string]string{"key": key, "value": oldValue}
	newPayload := map[string]string{"key": key, "value": newValue}
	oldBytes, _ := json.Marshal(oldPayload)
	newBytes, _ := json.Marshal(newPayload)
	log := &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     models.AuditActionConfigUpdate,
		Resource:   models.AuditResourceConfiguration,
		ResourceID: &key,
		OldValues:  oldBytes,
		NewValues:  newBytes,
		IPAddress:  "system",
		UserAgent:  "configuration-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record configuration audit", zap.Error(err))
	}
}

func allowedKeys() []string {
	keys := make([]string, len(allowedConfigurationKeys))
	copy(keys, allowedConfigurationKeys)
	return keys
}

func prevValue(cfg *models.Configuration) string {
	if cfg == nil {
		return ""
	}
	return cfg.Value
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

func (s *ConfigurationService) defaultValue(key string) (string, bool) {
	if s.defaults == nil {
		return "", false
	}
	value, ok := s.defaults[key]
	return value, ok
}

func (s *ConfigurationService) valuesOrDefault(ctx context.Context, keys []string) (map[string]string, error) {
	rows, err := s.repo.ListByKeys(ctx, keys)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load settings")
	}
	values := make(map[string]string, len(keys))
	for _, key := range keys {
		if def, ok := s.defaultValue(key); ok {
			values[key] = def
		}
	}
	for _, row := range rows {
		values[row.Key] = row.Value
	}
	return values, nil
}
