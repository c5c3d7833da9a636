package holiday

import (
	"strings"
	"time"

	"github.com/noah-isme/holiday-tracker-api/internal/models"
	"github.com/noah-isme/holiday-tracker-api/pkg/calendar"
	appErrors "github.com/noah-isme/holiday-tracker-api/pkg/errors"
)

// Action is an admin decision on a pending request.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// transitions lists the allowed status changes. Editing a pending or rejected
// request moves it to pending.
var transitions = map[models.HolidayStatus][]models.HolidayStatus{
	models.HolidayStatusPending:  {models.HolidayStatusPending, models.HolidayStatusApproved, models.HolidayStatusRejected, models.HolidayStatusCancelled},
	models.HolidayStatusApproved: {models.HolidayStatusCancelled},
	models.HolidayStatusRejected: {models.HolidayStatusPending, models.HolidayStatusCancelled},
}

// CanTransition reports whether a request may move from one status to another.
func CanTransition(from, to models.HolidayStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

func checkEditable(status models.HolidayStatus) error {
	if status == models.HolidayStatusApproved {
		return appErrors.ErrApprovedNotEditable
	}
	if !CanTransition(status, models.HolidayStatusPending) {
		return appErrors.ErrInvalidTransition
	}
	return nil
}

func applyEdit(h *models.Holiday) error {
	if err := checkEditable(h.Status); err != nil {
		return err
	}
	h.Status = models.HolidayStatusPending
	h.ApproverID = nil
	h.ApprovedAt = nil
	h.RejectionReason = nil
	return nil
}

// DecisionInput describes an approve or reject attempt.
type DecisionInput struct {
	Actor   models.Viewer
	Holiday *models.Holiday
	Action  Action
	Reason  string
	Today   calendar.Date
	Now     time.Time
}

// Decide applies an admin decision and returns the updated copy.
func Decide(in DecisionInput) (*models.Holiday, error) {
	if in.Action != ActionApprove && in.Action != ActionReject {
		return nil, appErrors.WithDetails(
			appErrors.Clone(appErrors.ErrValidation, "action must be approve or reject"),
			map[string]interface{}{"field": "action"},
		)
	}
	if !in.Actor.IsAdmin() {
		return nil, appErrors.ErrForbidden
	}
	if in.Holiday.OwnerID == in.Actor.ID {
		return nil, appErrors.ErrSelfApproval
	}
	if in.Holiday.Status != models.HolidayStatusPending {
		return nil, appErrors.ErrNotPending
	}

	reason := strings.TrimSpace(in.Reason)
	target := models.HolidayStatusApproved
	switch in.Action {
	case ActionApprove:
		if in.Holiday.StartDate.Before(in.Today) {
			return nil, appErrors.ErrPastDateApproval
		}
	case ActionReject:
		if reason == "" {
			return nil, appErrors.ErrMissingRejectionReason
		}
		target = models.HolidayStatusRejected
	}

	updated := *in.Holiday
	approver := in.Actor.ID
	decidedAt := in.Now.UTC()
	updated.Status = target
	updated.ApproverID = &approver
	updated.ApprovedAt = &decidedAt
	updated.RejectionReason = nil
	if target == models.HolidayStatusRejected {
		updated.RejectionReason = &reason
	}
	return &updated, nil
}

// CancelInput describes a cancellation attempt.
type CancelInput struct {
	Actor   models.Viewer
	Holiday *models.Holiday
}

// Cancel moves a request to cancelled. Only the owner or an admin may cancel;
// approval metadata is kept.
func Cancel(in CancelInput) (*models.Holiday, error) {
	if !in.Actor.IsAdmin() && in.Holiday.OwnerID != in.Actor.ID {
		return nil, appErrors.ErrForbidden
	}
	if !CanTransition(in.Holiday.Status, models.HolidayStatusCancelled) {
		return nil, appErrors.ErrInvalidTransition
	}
	updated := *in.Holiday
	updated.Status = models.HolidayStatusCancelled
	return &updated, nil
}
