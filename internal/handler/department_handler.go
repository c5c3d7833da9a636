package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/holiday-tracker-api/internal/models"
	appErrors "github.com/noah-isme/holiday-tracker-api/pkg/errors"
	"github.com/noah-isme/holiday-tracker-api/pkg/response"
)

type departmentLister interface {
	List(ctx context.Context) ([]models.Department, error)
}

// DepartmentHandler lists departments for registration and user forms.
type DepartmentHandler struct {
	repo departmentLister
}

// NewDepartmentHandler creates a department handler.
func NewDepartmentHandler(repo departmentLister) *DepartmentHandler {
	return &DepartmentHandler{repo: repo}
}

// List godoc
// @Summary List departments
// @Tags Departments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /departments [get]
func (h *DepartmentHandler) List(c *gin.Context) {
	departments, err := h.repo.List(c.Request.Context())
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list departments"))
		return
	}
	response.OK(c, departments)
}
