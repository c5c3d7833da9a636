package dto

// UserListQuery carries GET /users filters.
type UserListQuery struct {
	Role         string `form:"role" validate:"omitempty,oneof=admin employee"`
	Active       *bool  `form:"active"`
	DepartmentID string `form:"department_id" validate:"omitempty,uuid"`
	Search       string `form:"search"`
	Page         int    `form:"page" validate:"omitempty,min=1"`
	PageSize     int    `form:"page_size" validate:"omitempty,min=1,max=100"`
	SortBy       string `form:"sort_by"`
	SortOrder    string `form:"sort_order" validate:"omitempty,oneof=asc desc"`
}

// CreateUserRequest is the admin payload for creating a user directly.
type CreateUserRequest struct {
	Email            string  `json:"email" validate:"required,email"`
	Password         string  `json:"password" validate:"required,min=8"`
	FullName         string  `json:"full_name" validate:"required,max=255"`
	Role             string  `json:"role" validate:"required,oneof=admin employee"`
	DepartmentID     *string `json:"department_id,omitempty" validate:"omitempty,uuid"`
	HolidayAllowance *int    `json:"holiday_allowance,omitempty" validate:"omitempty,min=0,max=365"`
	Active           *bool   `json:"active,omitempty"`
}

// UpdateUserRequest changes role, department, allowance or activation.
// Omitted fields are left unchanged; an empty department_id clears it.
type UpdateUserRequest struct {
	FullName         *string `json:"full_name,omitempty" validate:"omitempty,max=255"`
	Role             *string `json:"role,omitempty" validate:"omitempty,oneof=admin employee"`
	DepartmentID     *string `json:"department_id,omitempty" validate:"omitempty,max=64"`
	HolidayAllowance *int    `json:"holiday_allowance,omitempty" validate:"omitempty,min=0,max=365"`
	Active           *bool   `json:"active,omitempty"`
}
