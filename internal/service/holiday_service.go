package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/holiday-tracker-api/internal/dto"
	"github.com/noah-isme/holiday-tracker-api/internal/holiday"
	"github.com/noah-isme/holiday-tracker-api/internal/models"
	"github.com/noah-isme/holiday-tracker-api/internal/repository"
	"github.com/noah-isme/holiday-tracker-api/pkg/calendar"
	appErrors "github.com/noah-isme/holiday-tracker-api/pkg/errors"
	"github.com/noah-isme/holiday-tracker-api/pkg/export"
)

const (
	holidayCachePrefix  = "holidays:list"
	holidayCachePattern = "holidays:*"
	exportPageSize      = 100
	maxExportRows       = 5000
	historyLimit        = 100
)

type holidayStore interface {
	List(ctx context.Context, filter models.HolidayFilter) ([]models.HolidayDetail, int, error)
	Summary(ctx context.Context, filter models.HolidayFilter) (models.HolidaySummary, error)
	FindDetailByID(ctx context.Context, id string) (*models.HolidayDetail, error)
	ListByOwnerYear(ctx context.Context, ownerID string, year int) ([]models.Holiday, error)
	WithOwnerLock(ctx context.Context, ownerID string, fn func(repository.HolidayWriter) error) error
}

type holidayAuditTrail interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
	ListByResource(ctx context.Context, resource, resourceID string, limit int) ([]models.AuditLog, error)
}

type holidayUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type visibilitySettingsProvider interface {
	VisibilitySettings(ctx context.Context) (models.VisibilitySettings, error)
}

// HolidayServiceConfig tunes the holiday workflow.
type HolidayServiceConfig struct {
	// Location is the company timezone used to derive today's date.
	Location *time.Location
	CacheTTL time.Duration
	Now      func() time.Time
}

// HolidayService runs holiday requests through the validation, transition and
// visibility rules and persists the outcome.
type HolidayService struct {
	store     holidayStore
	users     holidayUserReader
	settings  visibilitySettingsProvider
	audit     holidayAuditTrail
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	location  *time.Location
	cacheTTL  time.Duration
	now       func() time.Time
}

// NewHolidayService constructs a HolidayService.
func NewHolidayService(store holidayStore, users holidayUserReader, settings visibilitySettingsProvider, audit holidayAuditTrail, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg HolidayServiceConfig) *HolidayService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	svc := &HolidayService{
		store:     store,
		users:     users,
		settings:  settings,
		audit:     audit,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		location:  cfg.Location,
		cacheTTL:  cfg.CacheTTL,
		now:       cfg.Now,
	}
	svc.validator.RegisterTagNameFunc(fieldNameFromTag)
	svc.validator.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := calendar.Parse(fl.Field().String())
		return err == nil
	})
	return svc
}

// Today returns the current company-local date.
func (s *HolidayService) Today() calendar.Date {
	return calendar.Today(s.now(), s.location)
}

// Create validates and stores a new request owned by the actor.
func (s *HolidayService) Create(ctx context.Context, actor *models.JWTClaims, req dto.HolidayRequest, meta models.LoginRequest) (*models.HolidayDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, translateValidation(err, "invalid holiday payload")
	}
	user, err := s.loadActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	today := s.Today()

	var created *models.Holiday
	err = s.store.WithOwnerLock(ctx, user.ID, func(w repository.HolidayWriter) error {
		existing, err := w.ListActiveByOwner(ctx, user.ID, calendar.StartOfYear(today.Year()))
		if err != nil {
			return err
		}
		candidate, err := holiday.Validate(holiday.ValidationInput{
			OwnerID:   user.ID,
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
			Type:      req.Type,
			Notes:     req.Notes,
			Today:     today,
			Allowance: user.HolidayAllowance,
			Existing:  existing,
		})
		if err != nil {
			return err
		}
		if err := w.Insert(ctx, candidate); err != nil {
			return err
		}
		created = candidate
		return nil
	})
	if err != nil {
		s.recordRequestFailure("create", user.ID, err)
		return nil, s.internal(err, "failed to create holiday request")
	}

	s.metrics.RecordHolidayRequest("create", OutcomeAccepted, "", created.WorkingDays)
	s.logger.Info("holiday request created",
		zap.String("holiday_id", created.ID),
		zap.String("owner_id", user.ID),
		zap.Int("working_days", created.WorkingDays))
	s.recordAudit(ctx, user.ID, models.AuditActionHolidayCreate, created.ID, nil, created, meta)
	s.invalidate(ctx)

	return s.reload(ctx, user.AsViewer(), created.ID)
}

// Edit revalidates and updates one of the actor's own requests. Rejected
// requests return to pending.
func (s *HolidayService) Edit(ctx context.Context, actor *models.JWTClaims, id string, req dto.HolidayRequest, meta models.LoginRequest) (*models.HolidayDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, translateValidation(err, "invalid holiday payload")
	}
	user, err := s.loadActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	today := s.Today()

	var before, after *models.Holiday
	err = s.store.WithOwnerLock(ctx, user.ID, func(w repository.HolidayWriter) error {
		current, err := s.findLocked(ctx, w, id)
		if err != nil {
			return err
		}
		if current.OwnerID != user.ID {
			if user.IsAdmin() {
				return appErrors.Clone(appErrors.ErrForbidden, "only the owner can edit a holiday request")
			}
			return appErrors.Clone(appErrors.ErrNotFound, "holiday request not found")
		}
		existing, err := w.ListActiveByOwner(ctx, user.ID, calendar.StartOfYear(today.Year()))
		if err != nil {
			return err
		}
		updated, err := holiday.Validate(holiday.ValidationInput{
			OwnerID:   user.ID,
			StartDate: req.StartDate,
			EndDate:   req.EndDate,
			Type:      req.Type,
			Notes:     req.Notes,
			Today:     today,
			Allowance: user.HolidayAllowance,
			Existing:  existing,
			Editing:   current,
		})
		if err != nil {
			return err
		}
		if err := w.Update(ctx, updated); err != nil {
			return err
		}
		before, after = current, updated
		return nil
	})
	if err != nil {
		s.recordRequestFailure("edit", user.ID, err)
		return nil, s.internal(err, "failed to update holiday request")
	}

	s.metrics.RecordHolidayRequest("edit", OutcomeAccepted, "", after.WorkingDays)
	s.logger.Info("holiday request edited",
		zap.String("holiday_id", after.ID),
		zap.String("previous_status", string(before.Status)))
	s.recordAudit(ctx, user.ID, models.AuditActionHolidayUpdate, after.ID, before, after, meta)
	s.invalidate(ctx)

	return s.reload(ctx, user.AsViewer(), after.ID)
}

// Decide approves or rejects a pending request.
func (s *HolidayService) Decide(ctx context.Context, actor *models.JWTClaims, id string, req dto.HolidayDecisionRequest, meta models.LoginRequest) (*models.HolidayDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, translateValidation(err, "invalid decision payload")
	}
	user, err := s.loadActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	detail, err := s.visibleDetail(ctx, user.AsViewer(), id)
	if err != nil {
		return nil, err
	}

	action := holiday.Action(strings.ToLower(strings.TrimSpace(req.Action)))
	var before, after *models.Holiday
	err = s.store.WithOwnerLock(ctx, detail.OwnerID, func(w repository.HolidayWriter) error {
		current, err := s.findLocked(ctx, w, id)
		if err != nil {
			return err
		}
		decided, err := holiday.Decide(holiday.DecisionInput{
			Actor:   user.AsViewer(),
			Holiday: current,
			Action:  action,
			Reason:  req.RejectionReason,
			Today:   s.Today(),
			Now:     s.now(),
		})
		if err != nil {
			return err
		}
		if err := w.Update(ctx, decided); err != nil {
			return err
		}
		before, after = current, decided
		return nil
	})
	if err != nil {
		s.logRuleFailure("decide", user.ID, err)
		return nil, s.internal(err, "failed to record holiday decision")
	}

	auditAction := models.AuditActionHolidayApprove
	if action == holiday.ActionReject {
		auditAction = models.AuditActionHolidayReject
	}
	s.metrics.RecordHolidayDecision(string(action))
	s.logger.Info("holiday request decided",
		zap.String("holiday_id", id),
		zap.String("action", string(action)),
		zap.String("approver_id", user.ID))
	s.recordAudit(ctx, user.ID, auditAction, id, before, after, meta)
	s.invalidate(ctx)

	return s.reload(ctx, user.AsViewer(), id)
}

// Cancel withdraws a request. Owners and admins may cancel.
func (s *HolidayService) Cancel(ctx context.Context, actor *models.JWTClaims, id string, meta models.LoginRequest) (*models.HolidayDetail, error) {
	user, err := s.loadActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	detail, err := s.visibleDetail(ctx, user.AsViewer(), id)
	if err != nil {
		return nil, err
	}

	var before, after *models.Holiday
	err = s.store.WithOwnerLock(ctx, detail.OwnerID, func(w repository.HolidayWriter) error {
		current, err := s.findLocked(ctx, w, id)
		if err != nil {
			return err
		}
		cancelled, err := holiday.Cancel(holiday.CancelInput{Actor: user.AsViewer(), Holiday: current})
		if err != nil {
			return err
		}
		if err := w.Update(ctx, cancelled); err != nil {
			return err
		}
		before, after = current, cancelled
		return nil
	})
	if err != nil {
		s.logRuleFailure("cancel", user.ID, err)
		return nil, s.internal(err, "failed to cancel holiday request")
	}

	s.metrics.RecordHolidayDecision("cancel")
	s.logger.Info("holiday request cancelled", zap.String("holiday_id", id), zap.String("actor_id", user.ID))
	s.recordAudit(ctx, user.ID, models.AuditActionHolidayCancel, id, before, after, meta)
	s.invalidate(ctx)

	return s.reload(ctx, user.AsViewer(), id)
}

// Get returns a single request when the actor may see it.
func (s *HolidayService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.HolidayDetail, error) {
	user, err := s.loadActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	detail, err := s.visibleDetail(ctx, user.AsViewer(), id)
	if err != nil {
		return nil, err
	}
	projected := holiday.ProjectOne(user.AsViewer(), *detail)
	return &projected, nil
}

// History returns the audit trail of a request, newest first. Only the owner
// and admins may read it.
func (s *HolidayService) History(ctx context.Context, actor *models.JWTClaims, id string) ([]models.AuditEntry, error) {
	user, err := s.loadActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	detail, err := s.visibleDetail(ctx, user.AsViewer(), id)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() && detail.OwnerID != user.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the owner or an admin can view request history")
	}
	if s.audit == nil {
		return []models.AuditEntry{}, nil
	}
	logs, err := s.audit.ListByResource(ctx, models.AuditResourceHoliday, detail.ID, historyLimit)
	if err != nil {
		return nil, s.internal(err, "failed to load holiday history")
	}
	entries := make([]models.AuditEntry, 0, len(logs))
	for _, log := range logs {
		entries = append(entries, models.NewAuditEntry(log))
	}
	return entries, nil
}

// List returns one page of the requests visible to the actor, the summary of
// the full visible set and the display hints. The boolean reports a cache hit.
func (s *HolidayService) List(ctx context.Context, actor *models.JWTClaims, query dto.HolidayListQuery) (*models.HolidayList, *models.Pagination, bool, error) {
	user, err := s.loadActor(ctx, actor)
	if err != nil {
		return nil, nil, false, err
	}
	viewer := user.AsViewer()
	filter, effective, hints, err := s.buildListFilter(ctx, viewer, query)
	if err != nil {
		return nil, nil, false, err
	}

	key := holidayListCacheKey(viewer, effective, filter)
	var cached cachedHolidayPage
	if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
		return &cached.List, &cached.Pagination, true, nil
	}

	start := time.Now()
	items, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, false, s.internal(err, "failed to list holiday requests")
	}
	summary, err := s.store.Summary(ctx, filter)
	if err != nil {
		return nil, nil, false, s.internal(err, "failed to summarize holiday requests")
	}
	s.metrics.ObserveDBQuery("holiday_list", time.Since(start))

	visible := holiday.Project(viewer, holiday.FilterVisible(effective, items))
	list := &models.HolidayList{
		Items:    visible,
		Summary:  summary,
		Scope:    string(effective.Scope),
		Settings: hints,
	}
	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}

	if err := s.cache.Set(ctx, key, cachedHolidayPage{List: *list, Pagination: *pagination}, s.cacheTTL); err != nil {
		s.logger.Debug("holiday list not cached", zap.Error(err))
	}
	return list, pagination, false, nil
}

// Balance reports allowance usage for a year. Only admins may ask about
// another user.
func (s *HolidayService) Balance(ctx context.Context, actor *models.JWTClaims, query dto.HolidayBalanceQuery) (*models.AllowanceBalance, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, translateValidation(err, "invalid balance query")
	}
	user, err := s.loadActor(ctx, actor)
	if err != nil {
		return nil, err
	}
	target := user
	if query.UserID != "" && query.UserID != user.ID {
		if !user.IsAdmin() {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can view other users' balances")
		}
		target, err = s.users.FindByID(ctx, query.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
			}
			return nil, s.internal(err, "failed to load user")
		}
	}
	year := query.Year
	if year == 0 {
		year = s.Today().Year()
	}

	requests, err := s.store.ListByOwnerYear(ctx, target.ID, year)
	if err != nil {
		return nil, s.internal(err, "failed to load holiday requests")
	}
	balance := holiday.Balance(target.ID, target.HolidayAllowance, requests, year)
	return &balance, nil
}

// Export renders every request visible to the actor under the list filters.
// It returns the encoded document, its content type and a file name.
func (s *HolidayService) Export(ctx context.Context, actor *models.JWTClaims, query dto.HolidayExportQuery) ([]byte, string, string, error) {
	format, err := export.ParseFormat(strings.ToLower(strings.TrimSpace(query.Format)))
	if err != nil {
		return nil, "", "", appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, err.Error()), map[string]interface{}{"field": "format"})
	}
	user, err := s.loadActor(ctx, actor)
	if err != nil {
		return nil, "", "", err
	}
	viewer := user.AsViewer()
	filter, effective, hints, err := s.buildListFilter(ctx, viewer, query.HolidayListQuery)
	if err != nil {
		return nil, "", "", err
	}

	var rows []models.HolidayDetail
	filter.PageSize = exportPageSize
	for page := 1; ; page++ {
		filter.Page = page
		items, total, err := s.store.List(ctx, filter)
		if err != nil {
			return nil, "", "", s.internal(err, "failed to load holiday requests for export")
		}
		rows = append(rows, holiday.FilterVisible(effective, items)...)
		if len(items) < exportPageSize || page*exportPageSize >= total || len(rows) >= maxExportRows {
			break
		}
	}
	if len(rows) > maxExportRows {
		rows = rows[:maxExportRows]
	}
	rows = holiday.Project(viewer, rows)

	dataset := holidayDataset(rows, effective, hints, s.Today())
	content, err := export.RendererFor(format).Render(dataset)
	if err != nil {
		return nil, "", "", s.internal(err, "failed to render export")
	}
	filename := fmt.Sprintf("holidays-%s-%s.%s", effective.Scope, s.Today(), format)
	s.logger.Info("holiday export generated",
		zap.String("format", string(format)),
		zap.Int("rows", len(rows)),
		zap.String("actor_id", user.ID))
	return content, format.ContentType(), filename, nil
}

func (s *HolidayService) buildListFilter(ctx context.Context, viewer models.Viewer, query dto.HolidayListQuery) (models.HolidayFilter, holiday.EffectiveScope, models.DisplayHints, error) {
	var filter models.HolidayFilter
	if err := s.validator.Struct(query); err != nil {
		return filter, holiday.EffectiveScope{}, models.DisplayHints{}, translateValidation(err, "invalid holiday filters")
	}
	scope, err := holiday.ParseScope(query.Scope)
	if err != nil {
		return filter, holiday.EffectiveScope{}, models.DisplayHints{}, err
	}
	if query.UserID != "" && query.UserID != viewer.ID && !viewer.IsAdmin() {
		return filter, holiday.EffectiveScope{}, models.DisplayHints{}, appErrors.Clone(appErrors.ErrForbidden, "only admins can filter by user_id")
	}

	if query.From != "" {
		from := calendar.MustParse(query.From)
		filter.From = &from
	}
	if query.To != "" {
		to := calendar.MustParse(query.To)
		filter.To = &to
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, holiday.EffectiveScope{}, models.DisplayHints{}, appErrors.WithDetails(appErrors.ErrInvalidRange, map[string]interface{}{"field": "to"})
	}
	for _, raw := range query.Statuses() {
		status := models.HolidayStatus(raw)
		if !status.Valid() {
			return filter, holiday.EffectiveScope{}, models.DisplayHints{}, appErrors.WithDetails(
				appErrors.Clone(appErrors.ErrValidation, "status must be one of pending, approved, rejected, cancelled"),
				map[string]interface{}{"field": "status", "value": raw})
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	for _, raw := range query.Types() {
		kind := models.HolidayType(raw)
		if !kind.Valid() {
			return filter, holiday.EffectiveScope{}, models.DisplayHints{}, appErrors.WithDetails(appErrors.ErrInvalidType, map[string]interface{}{"field": "type", "value": raw})
		}
		filter.Types = append(filter.Types, kind)
	}
	filter.Page = query.Page
	filter.PageSize = query.PageSize

	settings, err := s.settings.VisibilitySettings(ctx)
	if err != nil {
		return filter, holiday.EffectiveScope{}, models.DisplayHints{}, s.internal(err, "failed to load visibility settings")
	}
	effective := holiday.Resolve(viewer, scope, settings)
	effective.Apply(&filter)

	if query.UserID != "" {
		if filter.OwnerID != nil && *filter.OwnerID != query.UserID {
			// scope=own for someone else matches nothing
			nobody := ""
			filter.OwnerID = &nobody
		} else {
			owner := query.UserID
			filter.OwnerID = &owner
		}
	}
	return filter, effective, models.DisplayHints{ShowNames: settings.ShowNames, ShowDetails: settings.ShowDetails}, nil
}

func (s *HolidayService) loadActor(ctx context.Context, actor *models.JWTClaims) (*models.User, error) {
	if actor == nil || actor.UserID == "" {
		return nil, appErrors.ErrUnauthorized
	}
	user, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "user no longer exists")
		}
		return nil, s.internal(err, "failed to load user")
	}
	if !user.Active {
		return nil, appErrors.Clone(appErrors.ErrInactiveAccount, "account is inactive")
	}
	return user, nil
}

// visibleDetail loads a request and hides it behind NOT_FOUND when the viewer
// could not list it with scope=all.
func (s *HolidayService) visibleDetail(ctx context.Context, viewer models.Viewer, id string) (*models.HolidayDetail, error) {
	detail, err := s.store.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "holiday request not found")
		}
		return nil, s.internal(err, "failed to load holiday request")
	}
	if viewer.IsAdmin() {
		return detail, nil
	}
	settings, err := s.settings.VisibilitySettings(ctx)
	if err != nil {
		return nil, s.internal(err, "failed to load visibility settings")
	}
	if !holiday.Resolve(viewer, holiday.ScopeAll, settings).Admits(*detail) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "holiday request not found")
	}
	return detail, nil
}

func (s *HolidayService) findLocked(ctx context.Context, w repository.HolidayWriter, id string) (*models.Holiday, error) {
	current, err := w.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "holiday request not found")
		}
		return nil, err
	}
	return current, nil
}

func (s *HolidayService) reload(ctx context.Context, viewer models.Viewer, id string) (*models.HolidayDetail, error) {
	detail, err := s.store.FindDetailByID(ctx, id)
	if err != nil {
		return nil, s.internal(err, "failed to reload holiday request")
	}
	projected := holiday.ProjectOne(viewer, *detail)
	return &projected, nil
}

func (s *HolidayService) recordRequestFailure(operation, ownerID string, err error) {
	appErr := asAppError(err)
	if appErr == nil || appErr.Category == appErrors.CategoryInternal {
		s.metrics.RecordHolidayRequest(operation, OutcomeError, appErrors.ErrInternal.Code, 0)
		return
	}
	s.metrics.RecordHolidayRequest(operation, OutcomeRejected, appErr.Code, 0)
	s.logRuleFailure(operation, ownerID, err)
}

func (s *HolidayService) logRuleFailure(operation, actorID string, err error) {
	appErr := asAppError(err)
	if appErr == nil || appErr.Category == appErrors.CategoryInternal {
		return
	}
	s.logger.Info("holiday request rejected",
		zap.String("operation", operation),
		zap.String("actor_id", actorID),
		zap.String("code", appErr.Code),
		zap.Any("details", appErr.Details))
}

func (s *HolidayService) internal(err error, message string) error {
	if appErr := asAppError(err); appErr != nil {
		return appErr
	}
	s.logger.Error(message, zap.Error(err))
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func (s *HolidayService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, holidayCachePattern); err != nil {
		s.logger.Warn("failed to invalidate holiday cache", zap.Error(err))
	}
}

func (s *HolidayService) recordAudit(ctx context.Context, actorID, action, holidayID string, before, after *models.Holiday, meta models.LoginRequest) {
	if s.audit == nil {
		return
	}
	entry := &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   models.AuditResourceHoliday,
		ResourceID: &holidayID,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if before != nil {
		entry.OldValues, _ = json.Marshal(before)
	}
	if after != nil {
		entry.NewValues, _ = json.Marshal(after)
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record holiday audit log", zap.String("action", action), zap.Error(err))
	}
}

type cachedHolidayPage struct {
	List       models.HolidayList `json:"list"`
	Pagination models.Pagination  `json:"pagination"`
}

func holidayListCacheKey(viewer models.Viewer, effective holiday.EffectiveScope, filter models.HolidayFilter) string {
	statuses := make([]string, len(filter.Statuses))
	for i, status := range filter.Statuses {
		statuses[i] = string(status)
	}
	types := make([]string, len(filter.Types))
	for i, kind := range filter.Types {
		types[i] = string(kind)
	}
	parts := []string{
		viewer.ID,
		string(viewer.Role),
		string(effective.Scope),
		effective.DepartmentID,
		strconv.FormatBool(effective.Narrowed),
		optionalString(filter.OwnerID),
		optionalDate(filter.From),
		optionalDate(filter.To),
		strings.Join(statuses, ","),
		strings.Join(types, ","),
		strconv.Itoa(filter.Page),
		strconv.Itoa(filter.PageSize),
	}
	var builder strings.Builder
	builder.WriteString(holidayCachePrefix)
	for _, part := range parts {
		builder.WriteByte(':')
		builder.WriteString(strings.ReplaceAll(part, ":", "|"))
	}
	return builder.String()
}

func holidayDataset(rows []models.HolidayDetail, effective holiday.EffectiveScope, hints models.DisplayHints, today calendar.Date) export.Dataset {
	columns := []export.Column{
		{Key: "owner", Title: "Employee", Weight: 2},
		{Key: "department", Title: "Department", Weight: 1.5},
		{Key: "start_date", Title: "Start", Weight: 1},
		{Key: "end_date", Title: "End", Weight: 1},
		{Key: "working_days", Title: "Days", Weight: 0.6},
		{Key: "type", Title: "Type", Weight: 1},
		{Key: "status", Title: "Status", Weight: 1},
	}
	if hints.ShowDetails {
		columns = append(columns, export.Column{Key: "notes", Title: "Notes", Weight: 2.5})
	}
	data := make([]map[string]string, 0, len(rows))
	for _, row := range rows {
		record := map[string]string{
			"owner":        row.OwnerName,
			"department":   optionalString(row.DepartmentName),
			"start_date":   row.StartDate.String(),
			"end_date":     row.EndDate.String(),
			"working_days": strconv.Itoa(row.WorkingDays),
			"type":         string(row.Type),
			"status":       string(row.Status),
		}
		if hints.ShowDetails {
			record["notes"] = optionalString(row.Notes)
		}
		data = append(data, record)
	}
	return export.Dataset{
		Title:    "Holiday requests",
		Subtitle: fmt.Sprintf("Scope: %s, generated %s", effective.Scope, today),
		Columns:  columns,
		Rows:     data,
	}
}

// translateValidation maps validator failures to typed errors; isodate
// failures become INVALID_DATE so clients see the same code the holiday rules
// produce.
func translateValidation(err error, message string) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	}
	first := fieldErrs[0]
	field := first.Field()
	if first.Tag() == "isodate" {
		return appErrors.WithDetails(appErrors.ErrInvalidDate, map[string]interface{}{"field": field})
	}
	fields := make(map[string]interface{}, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = fe.Tag()
	}
	wrapped := appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
	return appErrors.WithDetails(wrapped, map[string]interface{}{"field": field, "fields": fields})
}

// fieldNameFromTag reports validation failures under the name clients send:
// the json tag for bodies, the form tag for queries.
func fieldNameFromTag(field reflect.StructField) string {
	for _, key := range []string{"json", "form"} {
		name := strings.SplitN(field.Tag.Get(key), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return field.Name
}

func asAppError(err error) *appErrors.Error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

func optionalString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func optionalDate(value *calendar.Date) string {
	if value == nil {
		return ""
	}
	return value.String()
}
