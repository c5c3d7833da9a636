package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/holiday-tracker-api/internal/dto"
	"github.com/noah-isme/holiday-tracker-api/internal/middleware"
	"github.com/noah-isme/holiday-tracker-api/internal/models"
	appErrors "github.com/noah-isme/holiday-tracker-api/pkg/errors"
	"github.com/noah-isme/holiday-tracker-api/pkg/response"
)

type holidayService interface {
	Create(ctx context.Context, actor *models.JWTClaims, req dto.HolidayRequest, meta models.LoginRequest) (*models.HolidayDetail, error)
	Edit(ctx context.Context, actor *models.JWTClaims, id string, req dto.HolidayRequest, meta models.LoginRequest) (*models.HolidayDetail, error)
	Decide(ctx context.Context, actor *models.JWTClaims, id string, req dto.HolidayDecisionRequest, meta models.LoginRequest) (*models.HolidayDetail, error)
	Cancel(ctx context.Context, actor *models.JWTClaims, id string, meta models.LoginRequest) (*models.HolidayDetail, error)
	Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.HolidayDetail, error)
	History(ctx context.Context, actor *models.JWTClaims, id string) ([]models.AuditEntry, error)
	List(ctx context.Context, actor *models.JWTClaims, query dto.HolidayListQuery) (*models.HolidayList, *models.Pagination, bool, error)
	Balance(ctx context.Context, actor *models.JWTClaims, query dto.HolidayBalanceQuery) (*models.AllowanceBalance, error)
	Export(ctx context.Context, actor *models.JWTClaims, query dto.HolidayExportQuery) ([]byte, string, string, error)
}

// HolidayHandler exposes holiday request endpoints.
type HolidayHandler struct {
	service holidayService
}

// NewHolidayHandler creates a new holiday handler.
func NewHolidayHandler(svc holidayService) *HolidayHandler {
	return &HolidayHandler{service: svc}
}

// Create godoc
// @Summary Submit a holiday request
// @Tags Holidays
// @Accept json
// @Produce json
// @Param payload body dto.HolidayRequest true "Holiday payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /holidays [post]
func (h *HolidayHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.HolidayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid holiday payload"))
		return
	}
	created, err := h.service.Create(c.Request.Context(), claims, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Update godoc
// @Summary Edit a pending or rejected holiday request
// @Tags Holidays
// @Accept json
// @Produce json
// @Param id path string true "Holiday ID"
// @Param payload body dto.HolidayRequest true "Holiday payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /holidays/{id} [put]
func (h *HolidayHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.HolidayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid holiday payload"))
		return
	}
	updated, err := h.service.Edit(c.Request.Context(), claims, c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, updated)
}

// Decide godoc
// @Summary Approve or reject a holiday request
// @Tags Holidays
// @Accept json
// @Produce json
// @Param id path string true "Holiday ID"
// @Param payload body dto.HolidayDecisionRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /holidays/{id}/decision [post]
func (h *HolidayHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.HolidayDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid decision payload"))
		return
	}
	decided, err := h.service.Decide(c.Request.Context(), claims, c.Param("id"), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, decided)
}

// Cancel godoc
// @Summary Cancel a holiday request
// @Tags Holidays
// @Produce json
// @Param id path string true "Holiday ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /holidays/{id}/cancel [post]
func (h *HolidayHandler) Cancel(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	cancelled, err := h.service.Cancel(c.Request.Context(), claims, c.Param("id"), requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, cancelled)
}

// Get godoc
// @Summary Get a holiday request
// @Tags Holidays
// @Produce json
// @Param id path string true "Holiday ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /holidays/{id} [get]
func (h *HolidayHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	detail, err := h.service.Get(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, detail)
}

// History godoc
// @Summary Audit trail of a holiday request
// @Tags Holidays
// @Produce json
// @Param id path string true "Holiday ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /holidays/{id}/history [get]
func (h *HolidayHandler) History(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	entries, err := h.service.History(c.Request.Context(), claims, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, entries)
}

// List godoc
// @Summary List visible holiday requests
// @Description Items are limited to what the caller may see under the current visibility mode.
// @Tags Holidays
// @Produce json
// @Param scope query string false "own, team or all"
// @Param from query string false "Range start (YYYY-MM-DD)"
// @Param to query string false "Range end (YYYY-MM-DD)"
// @Param status query []string false "Status filter"
// @Param type query []string false "Type filter"
// @Param user_id query string false "Owner filter (admin only)"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /holidays [get]
func (h *HolidayHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var query dto.HolidayListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	list, pagination, cacheHit, err := h.service.List(c.Request.Context(), claims, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, list, pagination, middleware.ExtractMeta(c))
}

// Balance godoc
// @Summary Holiday allowance balance
// @Tags Holidays
// @Produce json
// @Param year query int false "Year, defaults to the current year"
// @Param user_id query string false "User (admin only)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /holidays/balance [get]
func (h *HolidayHandler) Balance(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var query dto.HolidayBalanceQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	balance, err := h.service.Balance(c.Request.Context(), claims, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, balance)
}

// Export godoc
// @Summary Export visible holiday requests
// @Tags Holidays
// @Produce text/csv
// @Produce application/pdf
// @Param format query string true "csv or pdf"
// @Param scope query string false "own, team or all"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /holidays/export [get]
func (h *HolidayHandler) Export(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var query dto.HolidayExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid query parameters"))
		return
	}
	content, contentType, filename, err := h.service.Export(c.Request.Context(), claims, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, contentType, content)
}
