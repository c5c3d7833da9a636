package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin    UserRole = "admin"
	RoleEmployee UserRole = "employee"
)

// Valid reports whether the role is one the system knows about.
func (r UserRole) Valid() bool {
	return r == RoleAdmin || r == RoleEmployee
}

// User represents an application user stored in the users table. Inactive
// users have registered but have not been activated by an admin yet.
type User struct {
	ID               string     `db:"id" json:"id"`
	Email            string     `db:"email" json:"email"`
	PasswordHash     string     `db:"password_hash" json:"-"`
	FullName         string     `db:"full_name" json:"full_name"`
	Role             UserRole   `db:"role" json:"role"`
	DepartmentID     *string    `db:"department_id" json:"department_id,omitempty"`
	DepartmentName   *string    `db:"department_name" json:"department_name,omitempty"`
	HolidayAllowance int        `db:"holiday_allowance" json:"holiday_allowance"`
	Active           bool       `db:"active" json:"active"`
	LastLogin        *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt        time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at" json:"updated_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// Viewer is the identity the visibility rules are evaluated against.
type Viewer struct {
	ID           string
	Role         UserRole
	DepartmentID *string
}

// IsAdmin reports whether the viewer holds the admin role.
func (v Viewer) IsAdmin() bool { return v.Role == RoleAdmin }

// HasDepartment reports whether the viewer belongs to a department.
func (v Viewer) HasDepartment() bool { return v.DepartmentID != nil && *v.DepartmentID != "" }

// AsViewer returns the viewer identity of the user.
func (u *User) AsViewer() Viewer {
	return Viewer{ID: u.ID, Role: u.Role, DepartmentID: u.DepartmentID}
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role         *UserRole
	Active       *bool
	DepartmentID *string
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
