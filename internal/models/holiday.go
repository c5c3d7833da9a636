package models

import (
	"time"

	"github.com/noah-isme/holiday-tracker-api/pkg/calendar"
)

// HolidayType classifies a holiday request.
type HolidayType string

const (
	HolidayTypeVacation HolidayType = "vacation"
	HolidayTypeSick     HolidayType = "sick"
	HolidayTypePersonal HolidayType = "personal"
)

// HolidayTypes lists every known type in display order.
var HolidayTypes = []HolidayType{HolidayTypeVacation, HolidayTypeSick, HolidayTypePersonal}

// Valid reports whether the type is known.
func (t HolidayType) Valid() bool {
	switch t {
	case HolidayTypeVacation, HolidayTypeSick, HolidayTypePersonal:
		return true
	}
	return false
}

// HolidayStatus is the lifecycle state of a holiday request.
type HolidayStatus string

const (
	HolidayStatusPending   HolidayStatus = "pending"
	HolidayStatusApproved  HolidayStatus = "approved"
	HolidayStatusRejected  HolidayStatus = "rejected"
	HolidayStatusCancelled HolidayStatus = "cancelled"
)

// HolidayStatuses lists every known status in display order.
var HolidayStatuses = []HolidayStatus{HolidayStatusPending, HolidayStatusApproved, HolidayStatusRejected, HolidayStatusCancelled}

// Valid reports whether the status is known.
func (s HolidayStatus) Valid() bool {
	switch s {
	case HolidayStatusPending, HolidayStatusApproved, HolidayStatusRejected, HolidayStatusCancelled:
		return true
	}
	return false
}

// Active reports whether a request in this status blocks overlapping requests
// and consumes allowance.
func (s HolidayStatus) Active() bool {
	return s == HolidayStatusPending || s == HolidayStatusApproved
}

// Holiday represents a row in the holidays table.
type Holiday struct {
	ID              string        `db:"id" json:"id"`
	OwnerID         string        `db:"owner_id" json:"owner_id"`
	StartDate       calendar.Date `db:"start_date" json:"start_date"`
	EndDate         calendar.Date `db:"end_date" json:"end_date"`
	Type            HolidayType   `db:"type" json:"type"`
	Status          HolidayStatus `db:"status" json:"status"`
	WorkingDays     int           `db:"working_days" json:"working_days"`
	Notes           *string       `db:"notes" json:"notes,omitempty"`
	ApproverID      *string       `db:"approver_id" json:"approver_id,omitempty"`
	ApprovedAt      *time.Time    `db:"approved_at" json:"approved_at,omitempty"`
	RejectionReason *string       `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// HolidayDetail is a holiday joined with its owner and approver.
type HolidayDetail struct {
	Holiday
	OwnerName       string  `db:"owner_name" json:"owner_name"`
	OwnerEmail      string  `db:"owner_email" json:"owner_email,omitempty"`
	OwnerDepartment *string `db:"owner_department_id" json:"owner_department_id,omitempty"`
	DepartmentName  *string `db:"department_name" json:"department_name,omitempty"`
	ApproverName    *string `db:"approver_name" json:"approver_name,omitempty"`
	ApproverEmail   *string `db:"approver_email" json:"approver_email,omitempty"`
}

// HolidayFilter captures filtering criteria for listing holidays. Visibility
// fields are populated from the viewer's effective scope, never from input.
type HolidayFilter struct {
	OwnerID      *string
	DepartmentID *string
	From         *calendar.Date
	To           *calendar.Date
	Statuses     []HolidayStatus
	Types        []HolidayType
	Page         int
	PageSize     int

	// Privacy narrowing: when set, rows owned by someone other than
	// VisibleTo are returned only when approved.
	VisibleTo string
}

// HolidaySummary aggregates counts over the full filtered set.
type HolidaySummary struct {
	Total    int                   `json:"total"`
	ByStatus map[HolidayStatus]int `json:"by_status"`
	ByType   map[HolidayType]int   `json:"by_type"`
}

// NewHolidaySummary returns a summary with every status and type present.
func NewHolidaySummary() HolidaySummary {
	summary := HolidaySummary{
		ByStatus: make(map[HolidayStatus]int, len(HolidayStatuses)),
		ByType:   make(map[HolidayType]int, len(HolidayTypes)),
	}
	for _, s := range HolidayStatuses {
		summary.ByStatus[s] = 0
	}
	for _, t := range HolidayTypes {
		summary.ByType[t] = 0
	}
	return summary
}

// Add counts a holiday into the summary.
func (s *HolidaySummary) Add(status HolidayStatus, kind HolidayType, n int) {
	s.Total += n
	s.ByStatus[status] += n
	s.ByType[kind] += n
}

// HolidayList is the payload of the list endpoint.
type HolidayList struct {
	Items    []HolidayDetail `json:"items"`
	Summary  HolidaySummary  `json:"summary"`
	Scope    string          `json:"scope"`
	Settings DisplayHints    `json:"settings"`
}

// AllowanceBalance reports allowance usage for a single owner and year.
type AllowanceBalance struct {
	UserID    string `json:"user_id"`
	Year      int    `json:"year"`
	Allowance int    `json:"allowance"`
	Used      int    `json:"used"`
	Approved  int    `json:"approved"`
	Pending   int    `json:"pending"`
	Remaining int    `json:"remaining"`
}
