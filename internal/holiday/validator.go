package holiday

import (
	"strings"

	"github.com/noah-isme/holiday-tracker-api/internal/models"
	"github.com/noah-isme/holiday-tracker-api/pkg/calendar"
	appErrors "github.com/noah-isme/holiday-tracker-api/pkg/errors"
)

// MaxLeadYears bounds how far ahead a request may start.
const MaxLeadYears = 1

// ValidationInput carries everything Validate needs. Editing is nil when a new
// request is being created.
type ValidationInput struct {
	OwnerID   string
	StartDate string
	EndDate   string
	Type      string
	Notes     *string
	Today     calendar.Date
	Allowance int
	Existing  []models.Holiday
	Editing   *models.Holiday
}

// Validate checks a proposed request and returns the record to persist. Rules
// are applied in a fixed order and the first failure is returned.
func Validate(in ValidationInput) (*models.Holiday, error) {
	if in.Editing != nil {
		if err := checkEditable(in.Editing.Status); err != nil {
			return nil, err
		}
	}

	start, err := parseField("start_date", in.StartDate)
	if err != nil {
		return nil, err
	}
	end, err := parseField("end_date", in.EndDate)
	if err != nil {
		return nil, err
	}
	kind := models.HolidayType(strings.ToLower(strings.TrimSpace(in.Type)))
	if !kind.Valid() {
		return nil, appErrors.WithDetails(appErrors.ErrInvalidType, map[string]interface{}{"field": "type"})
	}

	rng, err := NewRange(start, end)
	if err != nil {
		return nil, err
	}
	if start.Before(in.Today) {
		if in.Editing != nil {
			return nil, appErrors.ErrPastDateEdit
		}
		return nil, appErrors.ErrPastDate
	}
	if start.After(in.Today.AddYears(MaxLeadYears)) {
		return nil, appErrors.ErrTooFarInFuture
	}

	workingDays := rng.WorkingDays()
	if workingDays == 0 {
		return nil, appErrors.ErrZeroDuration
	}

	excludeID := ""
	if in.Editing != nil {
		excludeID = in.Editing.ID
	}
	if conflict := FindOverlap(in.OwnerID, rng, in.Existing, excludeID); conflict != nil {
		return nil, appErrors.WithDetails(appErrors.ErrDateOverlap, map[string]interface{}{
			"conflict_id":    conflict.ID,
			"conflict_start": conflict.StartDate.String(),
			"conflict_end":   conflict.EndDate.String(),
		})
	}

	if kind == models.HolidayTypeVacation {
		used := UsedAllowance(in.Existing, in.OwnerID, start.Year(), excludeID)
		remaining := in.Allowance - used
		if workingDays > remaining {
			available := remaining
			if available < 0 {
				available = 0
			}
			return nil, appErrors.WithDetails(appErrors.ErrInsufficientAllowance, map[string]interface{}{
				"requested": workingDays,
				"available": available,
			})
		}
	}

	var result models.Holiday
	if in.Editing != nil {
		result = *in.Editing
		if err := applyEdit(&result); err != nil {
			return nil, err
		}
	} else {
		result = models.Holiday{OwnerID: in.OwnerID, Status: models.HolidayStatusPending}
	}
	result.StartDate = start
	result.EndDate = end
	result.Type = kind
	result.WorkingDays = workingDays
	result.Notes = normalizeNotes(in.Notes)
	return &result, nil
}

func parseField(field, value string) (calendar.Date, error) {
	d, err := calendar.Parse(value)
	if err != nil {
		return calendar.Date{}, appErrors.WithDetails(appErrors.ErrInvalidDate, map[string]interface{}{"field": field})
	}
	return d, nil
}

func normalizeNotes(notes *string) *string {
	if notes == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*notes)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
