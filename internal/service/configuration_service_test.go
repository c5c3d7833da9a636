package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/holiday-tracker-api/internal/dto"
	"github.com/noah-isme/holiday-tracker-api/internal/models"
	appErrors "github.com/noah-isme/holiday-tracker-api/pkg/errors"
)

type configurationRepoStub struct {
	items     map[string]models.Configuration
	err       error
	listCalls int
}

func (s *configurationRepoStub) ListByKeys(ctx context.Context, keys []string) ([]models.Configuration, error) {
	s.listCalls++
	if s.err != nil {
		return nil, s.err
	}
	result := []models.Configuration{}
	for _, key := range keys {
		if cfg, ok := s.items[key]; ok {
			result = append(result, cfg)
		}
	}
	return result, nil
}

func (s *configurationRepoStub) Get(ctx context.Context, key string) (*models.Configuration, error) {
	if s.err != nil {
		return nil, s.err
	}
	if cfg, ok := s.items[key]; ok {
		return &cfg, nil
	}
	return nil, sql.ErrNoRows
}

func (s *configurationRepoStub) Upsert(ctx context.Context, cfg *models.Configuration) error {
	if s.err != nil {
		return s.err
	}
	if s.items == nil {
		s.items = make(map[string]models.Configuration)
	}
	s.items[cfg.Key] = *cfg
	return nil
}

func (s *configurationRepoStub) BulkUpsert(ctx context.Context, cfgs []models.Configuration) error {
	if s.err != nil {
		return s.err
	}
	if s.items == nil {
		s.items = make(map[string]models.Configuration)
	}
	for _, cfg := range cfgs {
		s.items[cfg.Key] = cfg
	}
	return nil
}

func newConfigurationService(repo *configurationRepoStub, audit *auditLoggerStub, cache *CacheService, defaults map[string]string) *ConfigurationService {
	return NewConfigurationService(repo, audit, cache, validator.New(), zap.NewNop(), ConfigurationServiceConfig{Defaults: defaults})
}

var adminClaims = &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}

func TestConfigurationServiceUpdateBoolean(t *testing.T) {
	repo := &configurationRepoStub{}
	audit := &auditLoggerStub{}
	svc := newConfigurationService(repo, audit, nil, nil)

	item, err := svc.Update(context.Background(), models.ConfigKeyShowDetails, " TRUE ", adminClaims)
	require.NoError(t, err)
	assert.Equal(t, "true", item.Value)
	assert.Equal(t, "BOOLEAN", item.Type)
	assert.Equal(t, "true", repo.items[models.ConfigKeyShowDetails].Value)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionConfigUpdate, audit.logs[0].Action)
	assert.JSONEq(t, `{"key":"show_details","value":""}`, string(audit.logs[0].OldValues))
}

func TestConfigurationServiceUpdateVisibilityMode(t *testing.T) {
	svc := newConfigurationService(&configurationRepoStub{}, &auditLoggerStub{}, nil, nil)

	item, err := svc.Update(context.Background(), models.ConfigKeyVisibilityMode, "Department_Only", adminClaims)
	require.NoError(t, err)
	assert.Equal(t, string(models.VisibilityDepartmentOnly), item.Value)

	_, err = svc.Update(context.Background(), models.ConfigKeyVisibilityMode, "everyone", adminClaims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestConfigurationServiceUpdateAllowanceRange(t *testing.T) {
	svc := newConfigurationService(&configurationRepoStub{}, &auditLoggerStub{}, nil, nil)

	for _, value := range []string{"-1", "366", "twenty"} {
		_, err := svc.Update(context.Background(), models.ConfigKeyDefaultHolidayAllowance, value, adminClaims)
		require.Error(t, err, value)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	}

	item, err := svc.Update(context.Background(), models.ConfigKeyDefaultHolidayAllowance, "030", adminClaims)
	require.NoError(t, err)
	assert.Equal(t, "30", item.Value)
}

func TestConfigurationServiceUpdateInvalidKey(t *testing.T) {
	svc := newConfigurationService(&configurationRepoStub{}, &auditLoggerStub{}, nil, nil)
	_, err := svc.Update(context.Background(), "unknown_key", "abc", adminClaims)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Equal(t, map[string]interface{}{"key": "unknown_key"}, appErr.Details)
}

func TestConfigurationServiceUpdateHandlesRepoError(t *testing.T) {
	repo := &configurationRepoStub{err: errors.New("db down")}
	svc := newConfigurationService(repo, &auditLoggerStub{}, nil, nil)
	_, err := svc.Update(context.Background(), models.ConfigKeyShowNames, "false", adminClaims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestConfigurationServiceBulkUpdateRollbackOnValidation(t *testing.T) {
	repo := &configurationRepoStub{}
	audit := &auditLoggerStub{}
	svc := newConfigurationService(repo, audit, nil, nil)
	req := dto.BulkUpdateConfigurationRequest{
		Items: []dto.UpdateConfigurationRequest{
			{Key: models.ConfigKeyShowNames, Value: "false"},
			{Key: models.ConfigKeyVisibilityMode, Value: "nobody"},
		},
	}
	_, err := svc.BulkUpdate(context.Background(), req, adminClaims)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Len(t, repo.items, 0)
	assert.Empty(t, audit.logs)
}

func TestConfigurationServiceBulkUpdate(t *testing.T) {
	repo := &configurationRepoStub{items: map[string]models.Configuration{
		models.ConfigKeyShowNames: {Key: models.ConfigKeyShowNames, Value: "true", Type: models.ConfigurationTypeBoolean},
	}}
	audit := &auditLoggerStub{}
	svc := newConfigurationService(repo, audit, nil, nil)
	req := dto.BulkUpdateConfigurationRequest{
		Items: []dto.UpdateConfigurationRequest{
			{Key: models.ConfigKeyShowNames, Value: "false"},
			{Key: models.ConfigKeyVisibilityMode, Value: "admin_only"},
		},
	}
	items, err := svc.BulkUpdate(context.Background(), req, adminClaims)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "false", repo.items[models.ConfigKeyShowNames].Value)
	assert.Equal(t, "admin_only", repo.items[models.ConfigKeyVisibilityMode].Value)
	require.Len(t, audit.logs, 2)
	assert.JSONEq(t, `{"key":"show_names","value":"true"}`, string(audit.logs[0].OldValues))
}

func TestConfigurationServiceBulkUpdateRequiresActor(t *testing.T) {
	svc := newConfigurationService(&configurationRepoStub{}, &auditLoggerStub{}, nil, nil)
	req := dto.BulkUpdateConfigurationRequest{
		Items: []dto.UpdateConfigurationRequest{{Key: models.ConfigKeyShowNames, Value: "false"}},
	}
	_, err := svc.BulkUpdate(context.Background(), req, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestConfigurationServiceListFiltersKeys(t *testing.T) {
	repo := &configurationRepoStub{
		items: map[string]models.Configuration{
			models.ConfigKeyShowDetails: {Key: models.ConfigKeyShowDetails, Value: "true", Type: models.ConfigurationTypeBoolean},
			"other_key":                 {Key: "other_key", Value: "secret", Type: models.ConfigurationTypeString},
		},
	}
	svc := newConfigurationService(repo, &auditLoggerStub{}, nil, nil)
	items, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, len(allowedConfigurationKeys))

	values := map[string]string{}
	for _, item := range items {
		values[item.Key] = item.Value
	}
	assert.NotContains(t, values, "other_key")
	assert.Equal(t, "true", values[models.ConfigKeyShowDetails])
	assert.Equal(t, "all_see_all", values[models.ConfigKeyVisibilityMode])
	assert.Equal(t, "25", values[models.ConfigKeyDefaultHolidayAllowance])
}

func TestConfigurationServiceGetUsesDefaults(t *testing.T) {
	svc := newConfigurationService(&configurationRepoStub{}, &auditLoggerStub{}, nil, map[string]string{
		models.ConfigKeyVisibilityMode: "department_only",
	})

	item, err := svc.Get(context.Background(), models.ConfigKeyVisibilityMode)
	require.NoError(t, err)
	assert.Equal(t, "department_only", item.Value)
	assert.Equal(t, "STRING", item.Type)
}

func TestConfigurationServiceVisibilitySettings(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		svc := newConfigurationService(&configurationRepoStub{}, &auditLoggerStub{}, nil, nil)
		settings, err := svc.VisibilitySettings(context.Background())
		require.NoError(t, err)
		assert.Equal(t, models.VisibilitySettings{Mode: models.VisibilityAllSeeAll, ShowNames: true, ShowDetails: false}, settings)
	})

	t.Run("stored", func(t *testing.T) {
		repo := &configurationRepoStub{items: map[string]models.Configuration{
			models.ConfigKeyVisibilityMode: {Key: models.ConfigKeyVisibilityMode, Value: "department_only"},
			models.ConfigKeyShowNames:      {Key: models.ConfigKeyShowNames, Value: "false"},
			models.ConfigKeyShowDetails:    {Key: models.ConfigKeyShowDetails, Value: "true"},
		}}
		svc := newConfigurationService(repo, &auditLoggerStub{}, nil, nil)
		settings, err := svc.VisibilitySettings(context.Background())
		require.NoError(t, err)
		assert.Equal(t, models.VisibilitySettings{Mode: models.VisibilityDepartmentOnly, ShowNames: false, ShowDetails: true}, settings)
	})

	t.Run("unknown mode fails closed", func(t *testing.T) {
		repo := &configurationRepoStub{items: map[string]models.Configuration{
			models.ConfigKeyVisibilityMode: {Key: models.ConfigKeyVisibilityMode, Value: "open_house"},
		}}
		svc := newConfigurationService(repo, &auditLoggerStub{}, nil, nil)
		settings, err := svc.VisibilitySettings(context.Background())
		require.NoError(t, err)
		assert.Equal(t, models.VisibilityAdminOnly, settings.Mode)
	})

	t.Run("repository failure", func(t *testing.T) {
		svc := newConfigurationService(&configurationRepoStub{err: errors.New("db down")}, &auditLoggerStub{}, nil, nil)
		_, err := svc.VisibilitySettings(context.Background())
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	})
}

func TestConfigurationServiceDefaultHolidayAllowance(t *testing.T) {
	svc := newConfigurationService(&configurationRepoStub{}, &auditLoggerStub{}, nil, map[string]string{
		models.ConfigKeyDefaultHolidayAllowance: "20",
	})
	allowance, err := svc.DefaultHolidayAllowance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 20, allowance)

	_, err = svc.Update(context.Background(), models.ConfigKeyDefaultHolidayAllowance, "28", adminClaims)
	require.NoError(t, err)
	allowance, err = svc.DefaultHolidayAllowance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 28, allowance)
}

func TestConfigurationServiceDefaultHolidayAllowanceCorrupt(t *testing.T) {
	repo := &configurationRepoStub{items: map[string]models.Configuration{
		models.ConfigKeyDefaultHolidayAllowance: {Key: models.ConfigKeyDefaultHolidayAllowance, Value: "lots"},
	}}
	svc := newConfigurationService(repo, &auditLoggerStub{}, nil, nil)
	_, err := svc.DefaultHolidayAllowance(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestConfigurationServiceUpdateInvalidatesHolidayCache(t *testing.T) {
	cacheRepo := &memoryCacheRepo{}
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	ctx := context.Background()
	require.NoError(t, cache.Set(ctx, "holidays:list:abc", []string{"cached"}, 0))
	require.NoError(t, cache.Set(ctx, "users:other", []string{"kept"}, 0))

	svc := newConfigurationService(&configurationRepoStub{}, &auditLoggerStub{}, cache, nil)
	_, err := svc.Update(ctx, models.ConfigKeyVisibilityMode, "admin_only", adminClaims)
	require.NoError(t, err)

	var out []string
	hit, err := cache.Get(ctx, "holidays:list:abc", &out)
	require.NoError(t, err)
	assert.False(t, hit)
	hit, err = cache.Get(ctx, "users:other", &out)
	require.NoError(t, err)
	assert.True(t, hit)
}
