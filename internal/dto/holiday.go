package dto

import "strings"

// HolidayRequest is the create and edit payload. Dates are validated by the
// holiday rules so that malformed values surface as INVALID_DATE.
type HolidayRequest struct {
	StartDate string  `json:"start_date"`
	EndDate   string  `json:"end_date"`
	Type      string  `json:"type"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// HolidayDecisionRequest approves or rejects a pending request.
type HolidayDecisionRequest struct {
	Action          string `json:"action" validate:"required"`
	RejectionReason string `json:"rejection_reason" validate:"max=1000"`
}

// HolidayListQuery carries GET /holidays filters. Status and Type accept
// repeated parameters and comma separated lists.
type HolidayListQuery struct {
	Scope    string   `form:"scope"`
	From     string   `form:"from" validate:"omitempty,isodate"`
	To       string   `form:"to" validate:"omitempty,isodate"`
	Status   []string `form:"status"`
	Type     []string `form:"type"`
	UserID   string   `form:"user_id" validate:"omitempty,uuid"`
	Page     int      `form:"page" validate:"omitempty,min=1"`
	PageSize int      `form:"page_size" validate:"omitempty,min=1,max=100"`
}

// Statuses returns the requested statuses with comma lists expanded.
func (q HolidayListQuery) Statuses() []string { return splitList(q.Status) }

// Types returns the requested types with comma lists expanded.
func (q HolidayListQuery) Types() []string { return splitList(q.Type) }

// HolidayExportQuery is HolidayListQuery plus the output format.
type HolidayExportQuery struct {
	HolidayListQuery
	Format string `form:"format"`
}

// HolidayBalanceQuery selects the owner and year of an allowance balance.
type HolidayBalanceQuery struct {
	Year   int    `form:"year" validate:"omitempty,min=1970,max=9999"`
	UserID string `form:"user_id" validate:"omitempty,uuid"`
}

func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.ToLower(strings.TrimSpace(part))
			if part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
