package holiday

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/holiday-tracker-api/internal/models"
	"github.com/noah-isme/holiday-tracker-api/pkg/calendar"
	appErrors "github.com/noah-isme/holiday-tracker-api/pkg/errors"
)

var (
	admin    = models.Viewer{ID: "admin-1", Role: models.RoleAdmin}
	employee = models.Viewer{ID: "u1", Role: models.RoleEmployee}
	decideAt = time.Date(2025, 8, 1, 10, 30, 0, 0, time.UTC)
)

func decision(h models.Holiday, actor models.Viewer, action Action, reason string) DecisionInput {
	return DecisionInput{
		Actor:   actor,
		Holiday: &h,
		Action:  action,
		Reason:  reason,
		Today:   calendar.Of(decideAt),
		Now:     decideAt,
	}
}

func TestDecideApprove(t *testing.T) {
	h := holidayFixture("h1", "u1", "2025-08-18", "2025-08-22", models.HolidayTypeVacation, models.HolidayStatusPending)

	got, err := Decide(decision(h, admin, ActionApprove, ""))
	require.NoError(t, err)
	assert.Equal(t, models.HolidayStatusApproved, got.Status)
	require.NotNil(t, got.ApproverID)
	assert.Equal(t, "admin-1", *got.ApproverID)
	require.NotNil(t, got.ApprovedAt)
	assert.True(t, decideAt.Equal(*got.ApprovedAt))
	assert.Nil(t, got.RejectionReason)
}

func TestDecideReject(t *testing.T) {
	h := holidayFixture("h1", "u1", "2025-08-18", "2025-08-22", models.HolidayTypeVacation, models.HolidayStatusPending)

	got, err := Decide(decision(h, admin, ActionReject, "  release week "))
	require.NoError(t, err)
	assert.Equal(t, models.HolidayStatusRejected, got.Status)
	require.NotNil(t, got.RejectionReason)
	assert.Equal(t, "release week", *got.RejectionReason)
	require.NotNil(t, got.ApproverID)
	assert.Equal(t, "admin-1", *got.ApproverID)
}

func TestDecideFailures(t *testing.T) {
	pending := holidayFixture("h1", "u1", "2025-08-18", "2025-08-22", models.HolidayTypeVacation, models.HolidayStatusPending)
	approved := holidayFixture("h2", "u1", "2025-08-18", "2025-08-22", models.HolidayTypeVacation, models.HolidayStatusApproved)
	started := holidayFixture("h3", "u1", "2025-07-30", "2025-08-05", models.HolidayTypeVacation, models.HolidayStatusPending)
	ownByAdmin := holidayFixture("h4", "admin-1", "2025-08-18", "2025-08-22", models.HolidayTypeVacation, models.HolidayStatusPending)

	cases := []struct {
		name string
		in   DecisionInput
		want *appErrors.Error
	}{
		{"unknown action", decision(pending, admin, "maybe", ""), appErrors.ErrValidation},
		{"non admin", decision(pending, employee, ActionApprove, ""), appErrors.ErrForbidden},
		{"self approval", decision(ownByAdmin, admin, ActionApprove, ""), appErrors.ErrSelfApproval},
		{"self rejection", decision(ownByAdmin, admin, ActionReject, "no"), appErrors.ErrSelfApproval},
		{"not pending", decision(approved, admin, ActionReject, "late"), appErrors.ErrNotPending},
		{"already started", decision(started, admin, ActionApprove, ""), appErrors.ErrPastDateApproval},
		{"blank reason", decision(pending, admin, ActionReject, "   "), appErrors.ErrMissingRejectionReason},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decide(tc.in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDecideCategories(t *testing.T) {
	ownByAdmin := holidayFixture("h4", "admin-1", "2025-08-18", "2025-08-22", models.HolidayTypeVacation, models.HolidayStatusPending)
	_, err := Decide(decision(ownByAdmin, admin, ActionApprove, ""))
	assert.True(t, appErrors.IsCategory(err, appErrors.CategoryAuthorization))

	started := holidayFixture("h3", "u1", "2025-07-30", "2025-08-05", models.HolidayTypeVacation, models.HolidayStatusPending)
	_, err = Decide(decision(started, admin, ActionApprove, ""))
	assert.True(t, appErrors.IsCategory(err, appErrors.CategoryBusinessRule))
}

func TestStartedRequestCanStillBeRejected(t *testing.T) {
	started := holidayFixture("h3", "u1", "2025-07-30", "2025-08-05", models.HolidayTypeVacation, models.HolidayStatusPending)
	got, err := Decide(decision(started, admin, ActionReject, "too late"))
	require.NoError(t, err)
	assert.Equal(t, models.HolidayStatusRejected, got.Status)
}

func TestCancel(t *testing.T) {
	statuses := []models.HolidayStatus{models.HolidayStatusPending, models.HolidayStatusApproved, models.HolidayStatusRejected}
	for _, status := range statuses {
		h := holidayFixture("h1", "u1", "2025-08-18", "2025-08-22", models.HolidayTypeVacation, status)
		for _, actor := range []models.Viewer{employee, admin} {
			got, err := Cancel(CancelInput{Actor: actor, Holiday: &h})
			require.NoError(t, err)
			assert.Equal(t, models.HolidayStatusCancelled, got.Status)
		}
	}

	h := holidayFixture("h1", "u1", "2025-08-18", "2025-08-22", models.HolidayTypeVacation, models.HolidayStatusPending)
	_, err := Cancel(CancelInput{Actor: models.Viewer{ID: "u2", Role: models.RoleEmployee}, Holiday: &h})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	cancelled := holidayFixture("h2", "u1", "2025-08-18", "2025-08-22", models.HolidayTypeVacation, models.HolidayStatusCancelled)
	_, err = Cancel(CancelInput{Actor: employee, Holiday: &cancelled})
	assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(models.HolidayStatusRejected, models.HolidayStatusPending))
	assert.False(t, CanTransition(models.HolidayStatusApproved, models.HolidayStatusPending))
	assert.False(t, CanTransition(models.HolidayStatusRejected, models.HolidayStatusApproved))
	for _, to := range models.HolidayStatuses {
		assert.False(t, CanTransition(models.HolidayStatusCancelled, to))
	}
}
