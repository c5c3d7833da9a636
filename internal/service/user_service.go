package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/holiday-tracker-api/internal/dto"
	"github.com/noah-isme/holiday-tracker-api/internal/models"
	"github.com/noah-isme/holiday-tracker-api/pkg/database"
	appErrors "github.com/noah-isme/holiday-tracker-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SetActive(ctx context.Context, id string, active bool) error
}

// UserService handles user administration: listing, creation, department and
// allowance changes, activation of registered accounts and soft deletion.
type UserService struct {
	repo        userRepository
	departments departmentReader
	defaults    allowanceDefaults
	audit       auditLogger
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, departments departmentReader, defaults allowanceDefaults, audit auditLogger, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{
		repo:        repo,
		departments: departments,
		defaults:    defaults,
		audit:       audit,
		cache:       cache,
		validator:   validate,
		logger:      logger,
	}
}

// List returns paginated users and pagination metadata.
func (s *UserService) List(ctx context.Context, query dto.UserListQuery) ([]models.User, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid user filters")
	}
	filter := models.UserFilter{
		Active:    query.Active,
		Search:    strings.TrimSpace(query.Search),
		Page:      query.Page,
		PageSize:  query.PageSize,
		SortBy:    query.SortBy,
		SortOrder: query.SortOrder,
	}
	if query.Role != "" {
		role := models.UserRole(query.Role)
		filter.Role = &role
	}
	if query.DepartmentID != "" {
		dept := query.DepartmentID
		filter.DepartmentID = &dept
	}

	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	return users, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Create adds a new user. Admin-created users are active unless stated
// otherwise.
func (s *UserService) Create(ctx context.Context, req dto.CreateUserRequest, actorID string, meta models.LoginRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid create user payload")
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check email uniqueness")
	}

	if err := s.ensureDepartment(ctx, req.DepartmentID); err != nil {
		return nil, err
	}

	allowance := 0
	if req.HolidayAllowance != nil {
		allowance = *req.HolidayAllowance
	} else if s.defaults != nil {
		value, err := s.defaults.DefaultHolidayAllowance(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load default allowance")
		}
		allowance = value
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}
	user := &models.User{
		ID:               uuid.NewString(),
		Email:            email,
		FullName:         strings.TrimSpace(req.FullName),
		Role:             models.UserRole(req.Role),
		DepartmentID:     req.DepartmentID,
		HolidayAllowance: allowance,
		Active:           active,
		PasswordHash:     string(passwordHash),
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if database.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "email already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create user")
	}

	newPayload, _ := json.Marshal(userAuditView(user))
	s.recordAudit(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionUserCreate,
		Resource:   models.AuditResourceUser,
		ResourceID: &user.ID,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})

	return user, nil
}

// Update modifies role, department, allowance or activation of a user.
func (s *UserService) Update(ctx context.Context, id string, req dto.UpdateUserRequest, actorID string, meta models.LoginRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid update payload")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	oldPayload, _ := json.Marshal(userAuditView(user))

	if req.FullName != nil {
		name := strings.TrimSpace(*req.FullName)
		if name == "" {
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "full_name cannot be empty"), map[string]interface{}{"field": "full_name"})
		}
		user.FullName = name
	}
	if req.Role != nil {
		if id == actorID && models.UserRole(*req.Role) != user.Role {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "admins cannot change their own role")
		}
		user.Role = models.UserRole(*req.Role)
	}
	if req.DepartmentID != nil {
		dept := strings.TrimSpace(*req.DepartmentID)
		if dept == "" {
			user.DepartmentID = nil
		} else {
			if err := s.ensureDepartment(ctx, &dept); err != nil {
				return nil, err
			}
			user.DepartmentID = &dept
		}
	}
	if req.HolidayAllowance != nil {
		user.HolidayAllowance = *req.HolidayAllowance
	}
	if req.Active != nil {
		user.Active = *req.Active
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	newPayload, _ := json.Marshal(userAuditView(user))
	s.recordAudit(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionUserUpdate,
		Resource:   models.AuditResourceUser,
		ResourceID: &user.ID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	s.invalidateHolidays(ctx)

	return s.Get(ctx, id)
}

// Activate approves a pending registration.
func (s *UserService) Activate(ctx context.Context, id string, actorID string, meta models.LoginRequest) (*models.User, error) {
	user, err := s.setActive(ctx, id, true, models.AuditActionUserActivate, actorID, meta)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user activated", zap.String("user_id", id), zap.String("actor_id", actorID))
	return user, nil
}

// Delete performs a soft delete (inactive) on a user.
func (s *UserService) Delete(ctx context.Context, id string, actorID string, meta models.LoginRequest) error {
	if id == actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "admins cannot deactivate themselves")
	}
	_, err := s.setActive(ctx, id, false, models.AuditActionUserDelete, actorID, meta)
	return err
}

func (s *UserService) setActive(ctx context.Context, id string, active bool, action string, actorID string, meta models.LoginRequest) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := user.Active

	if err := s.repo.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user status")
	}
	user.Active = active

	oldPayload, _ := json.Marshal(map[string]interface{}{"active": previous})
	newPayload, _ := json.Marshal(map[string]interface{}{"active": active})
	s.recordAudit(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   models.AuditResourceUser,
		ResourceID: &user.ID,
		OldValues:  oldPayload,
		NewValues:  newPayload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	})
	s.invalidateHolidays(ctx)
	return user, nil
}

func (s *UserService) ensureDepartment(ctx context.Context, id *string) error {
	if id == nil || s.departments == nil {
		return nil
	}
	if _, err := s.departments.FindByID(ctx, *id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "department does not exist"), map[string]interface{}{"field": "department_id"})
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load department")
	}
	return nil
}

// invalidateHolidays drops cached listings, which embed owner names and
// departments.
func (s *UserService) invalidateHolidays(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, holidayCachePattern); err != nil {
		s.logger.Warn("failed to invalidate holiday cache", zap.Error(err))
	}
}

func (s *UserService) recordAudit(ctx context.Context, entry *models.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record user audit log", zap.String("action", entry.Action), zap.Error(err))
	}
}

func userAuditView(u *models.User) map[string]interface{} {
	return map[string]interface{}{
		"email":             u.Email,
		"role":              u.Role,
		"department_id":     u.DepartmentID,
		"holiday_allowance": u.HolidayAllowance,
		"active":            u.Active,
	}
}
