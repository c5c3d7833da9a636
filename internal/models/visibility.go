package models

// VisibilityMode controls what non-admin viewers see when they do not ask for
// a scope explicitly.
type VisibilityMode string

const (
	VisibilityAllSeeAll      VisibilityMode = "all_see_all"
	VisibilityDepartmentOnly VisibilityMode = "department_only"
	VisibilityAdminOnly      VisibilityMode = "admin_only"
)

// Valid reports whether the mode is recognised.
func (m VisibilityMode) Valid() bool {
	switch m {
	case VisibilityAllSeeAll, VisibilityDepartmentOnly, VisibilityAdminOnly:
		return true
	}
	return false
}

// VisibilitySettings is the process-wide holiday visibility configuration.
// ShowNames and ShowDetails are display hints for clients only.
type VisibilitySettings struct {
	Mode        VisibilityMode `json:"visibility_mode"`
	ShowNames   bool           `json:"show_names"`
	ShowDetails bool           `json:"show_details"`
}

// DisplayHints is the subset of the visibility settings returned with listings.
type DisplayHints struct {
	ShowNames   bool `json:"show_names"`
	ShowDetails bool `json:"show_details"`
}
