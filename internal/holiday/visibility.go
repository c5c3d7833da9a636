package holiday

import (
	"strings"

	"github.com/noah-isme/holiday-tracker-api/internal/models"
	appErrors "github.com/noah-isme/holiday-tracker-api/pkg/errors"
)

// Scope is the breadth of a holiday listing.
type Scope string

const (
	ScopeOwn  Scope = "own"
	ScopeTeam Scope = "team"
	ScopeAll  Scope = "all"
)

// ParseScope parses a requested scope. An empty value means no scope was
// requested and is returned as the empty Scope.
func ParseScope(raw string) (Scope, error) {
	scope := Scope(strings.ToLower(strings.TrimSpace(raw)))
	switch scope {
	case "", ScopeOwn, ScopeTeam, ScopeAll:
		return scope, nil
	}
	return "", appErrors.WithDetails(appErrors.ErrInvalidScope, map[string]interface{}{"field": "scope"})
}

// EffectiveScope is the resolved visibility of a listing for one viewer.
type EffectiveScope struct {
	Scope        Scope
	ViewerID     string
	DepartmentID string
	// Narrowed hides other users' requests unless they are approved.
	Narrowed bool
}

// Resolve computes what viewer may see given the requested scope and the
// current settings.
func Resolve(viewer models.Viewer, requested Scope, settings models.VisibilitySettings) EffectiveScope {
	scope := requested
	if scope == "" {
		scope = ScopeAll
		if !viewer.IsAdmin() {
			scope = defaultScope(viewer, settings.Mode)
		}
	}

	effective := EffectiveScope{Scope: scope, ViewerID: viewer.ID}
	if scope == ScopeTeam {
		if !viewer.HasDepartment() {
			effective.Scope = ScopeOwn
		} else {
			effective.DepartmentID = *viewer.DepartmentID
		}
	}
	if !viewer.IsAdmin() && effective.Scope != ScopeOwn {
		effective.Narrowed = true
	}
	return effective
}

func defaultScope(viewer models.Viewer, mode models.VisibilityMode) Scope {
	switch mode {
	case models.VisibilityAllSeeAll:
		return ScopeAll
	case models.VisibilityDepartmentOnly:
		if viewer.HasDepartment() {
			return ScopeTeam
		}
		return ScopeOwn
	default:
		return ScopeOwn
	}
}

// Admits reports whether the record is visible under the effective scope.
func (e EffectiveScope) Admits(d models.HolidayDetail) bool {
	switch e.Scope {
	case ScopeOwn:
		if d.OwnerID != e.ViewerID {
			return false
		}
	case ScopeTeam:
		if d.OwnerDepartment == nil || *d.OwnerDepartment != e.DepartmentID {
			return false
		}
	}
	if e.Narrowed && d.OwnerID != e.ViewerID && d.Status != models.HolidayStatusApproved {
		return false
	}
	return true
}

// Apply pushes the scope predicate into a repository filter.
func (e EffectiveScope) Apply(filter *models.HolidayFilter) {
	switch e.Scope {
	case ScopeOwn:
		owner := e.ViewerID
		filter.OwnerID = &owner
	case ScopeTeam:
		dept := e.DepartmentID
		filter.DepartmentID = &dept
	}
	if e.Narrowed {
		filter.VisibleTo = e.ViewerID
	}
}

// FilterVisible returns the records admitted by the scope, preserving order.
func FilterVisible(scope EffectiveScope, items []models.HolidayDetail) []models.HolidayDetail {
	visible := make([]models.HolidayDetail, 0, len(items))
	for _, item := range items {
		if scope.Admits(item) {
			visible = append(visible, item)
		}
	}
	return visible
}
