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

var validatorToday = calendar.MustParse("2025-08-01")

func createInput(start, end string, kind models.HolidayType) ValidationInput {
	return ValidationInput{
		OwnerID:   "u1",
		StartDate: start,
		EndDate:   end,
		Type:      string(kind),
		Today:     validatorToday,
		Allowance: 20,
	}
}

func TestValidateCreatesPendingRequest(t *testing.T) {
	notes := "  beach  "
	in := createInput("2025-08-15", "2025-08-19", models.HolidayTypeVacation)
	in.Notes = &notes

	got, err := Validate(in)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.OwnerID)
	assert.Equal(t, models.HolidayStatusPending, got.Status)
	assert.Equal(t, 3, got.WorkingDays)
	assert.Equal(t, "2025-08-15", got.StartDate.String())
	assert.Equal(t, "2025-08-19", got.EndDate.String())
	require.NotNil(t, got.Notes)
	assert.Equal(t, "beach", *got.Notes)
}

func TestValidateRuleOrder(t *testing.T) {
	cases := []struct {
		name  string
		in    ValidationInput
		want  *appErrors.Error
		field string
	}{
		{"unknown type", createInput("2025-08-15", "2025-08-19", "holiday"), appErrors.ErrInvalidType, "type"},
		{"bad start", createInput("15/08/2025", "2025-08-19", models.HolidayTypeVacation), appErrors.ErrInvalidDate, "start_date"},
		{"bad end", createInput("2025-08-15", "2025-02-30", models.HolidayTypeVacation), appErrors.ErrInvalidDate, "end_date"},
		{"bad date and bad type", createInput("2025-13-01", "2025-08-19", "holiday"), appErrors.ErrInvalidDate, "start_date"},
		{"bad end and bad type", createInput("2025-08-15", "tomorrow", "holiday"), appErrors.ErrInvalidDate, "end_date"},
		{"inverted range", createInput("2025-08-19", "2025-08-15", models.HolidayTypeVacation), appErrors.ErrInvalidRange, ""},
		{"inverted and past", createInput("2025-07-10", "2025-07-01", models.HolidayTypeVacation), appErrors.ErrInvalidRange, ""},
		{"past start", createInput("2025-07-31", "2025-08-04", models.HolidayTypeVacation), appErrors.ErrPastDate, ""},
		{"too far ahead", createInput("2026-08-03", "2026-08-04", models.HolidayTypeVacation), appErrors.ErrTooFarInFuture, ""},
		{"weekend only", createInput("2025-08-16", "2025-08-17", models.HolidayTypeVacation), appErrors.ErrZeroDuration, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate(tc.in)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.want)
			if tc.field != "" {
				assert.Equal(t, tc.field, appErrors.FromError(err).Details["field"])
			}
		})
	}
}

func TestValidateAcceptsBoundaryDates(t *testing.T) {
	_, err := Validate(createInput("2025-08-01", "2025-08-01", models.HolidayTypePersonal))
	assert.NoError(t, err, "today is allowed")

	_, err = Validate(createInput("2026-07-31", "2026-07-31", models.HolidayTypePersonal))
	assert.NoError(t, err, "within one year")
}

func TestValidateRejectsOverlap(t *testing.T) {
	in := createInput("2025-08-20", "2025-08-21", models.HolidayTypeVacation)
	in.Existing = []models.Holiday{
		holidayFixture("h1", "u1", "2025-08-18", "2025-08-22", models.HolidayTypeVacation, models.HolidayStatusPending),
	}

	_, err := Validate(in)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrDateOverlap)
	details := appErrors.FromError(err).Details
	assert.Equal(t, "h1", details["conflict_id"])
	assert.Equal(t, "2025-08-18", details["conflict_start"])
	assert.Equal(t, "2025-08-22", details["conflict_end"])
}

func TestValidateInsufficientAllowance(t *testing.T) {
	in := createInput("2025-10-06", "2025-10-10", models.HolidayTypeVacation)
	in.Existing = []models.Holiday{
		holidayFixture("h1", "u1", "2025-09-01", "2025-09-24", models.HolidayTypeVacation, models.HolidayStatusApproved),
	}
	require.Equal(t, 18, in.Existing[0].WorkingDays)

	_, err := Validate(in)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInsufficientAllowance)
	details := appErrors.FromError(err).Details
	assert.Equal(t, 5, details["requested"])
	assert.Equal(t, 2, details["available"])
}

func TestValidateAllowanceRules(t *testing.T) {
	existing := []models.Holiday{
		holidayFixture("approved", "u1", "2025-09-01", "2025-09-12", models.HolidayTypeVacation, models.HolidayStatusApproved),
		holidayFixture("pending", "u1", "2025-09-15", "2025-09-19", models.HolidayTypeVacation, models.HolidayStatusPending),
		holidayFixture("rejected", "u1", "2025-09-22", "2025-09-26", models.HolidayTypeVacation, models.HolidayStatusRejected),
		holidayFixture("sick", "u1", "2025-09-29", "2025-10-03", models.HolidayTypeSick, models.HolidayStatusApproved),
		holidayFixture("next-year", "u1", "2026-01-05", "2026-01-09", models.HolidayTypeVacation, models.HolidayStatusApproved),
	}
	assert.Equal(t, 15, UsedAllowance(existing, "u1", 2025, ""))
	assert.Equal(t, 10, UsedAllowance(existing, "u1", 2025, "pending"))
	assert.Equal(t, 5, UsedAllowance(existing, "u1", 2026, ""))
	assert.Equal(t, 0, UsedAllowance(existing, "u2", 2025, ""))

	t.Run("vacation fills remaining allowance", func(t *testing.T) {
		in := createInput("2025-10-06", "2025-10-10", models.HolidayTypeVacation)
		in.Existing = existing
		_, err := Validate(in)
		assert.NoError(t, err)
	})

	t.Run("sick leave ignores allowance", func(t *testing.T) {
		in := createInput("2025-10-06", "2025-10-17", models.HolidayTypeSick)
		in.Existing = existing
		in.Allowance = 0
		_, err := Validate(in)
		assert.NoError(t, err)
	})

	t.Run("overdrawn allowance reports zero available", func(t *testing.T) {
		in := createInput("2025-10-06", "2025-10-06", models.HolidayTypeVacation)
		in.Existing = existing
		in.Allowance = 10
		_, err := Validate(in)
		require.Error(t, err)
		assert.Equal(t, 0, appErrors.FromError(err).Details["available"])
	})
}

func TestValidateEdit(t *testing.T) {
	approver := "admin-1"
	reason := "busy period"
	decidedAt := time.Date(2025, 7, 20, 9, 0, 0, 0, time.UTC)
	rejected := holidayFixture("h1", "u1", "2025-08-18", "2025-08-22", models.HolidayTypeVacation, models.HolidayStatusRejected)
	rejected.ApproverID = &approver
	rejected.ApprovedAt = &decidedAt
	rejected.RejectionReason = &reason

	t.Run("rejected request returns to pending", func(t *testing.T) {
		in := createInput("2025-08-25", "2025-08-29", models.HolidayTypeVacation)
		in.Allowance = 5
		in.Editing = &rejected
		in.Existing = []models.Holiday{rejected}

		got, err := Validate(in)
		require.NoError(t, err)
		assert.Equal(t, "h1", got.ID)
		assert.Equal(t, models.HolidayStatusPending, got.Status)
		assert.Nil(t, got.ApproverID)
		assert.Nil(t, got.ApprovedAt)
		assert.Nil(t, got.RejectionReason)
		assert.Equal(t, 5, got.WorkingDays)
		assert.Equal(t, models.HolidayStatusRejected, rejected.Status, "input is not mutated")
	})

	t.Run("pending edit excludes itself from overlap and allowance", func(t *testing.T) {
		pending := holidayFixture("h2", "u1", "2025-08-18", "2025-08-22", models.HolidayTypeVacation, models.HolidayStatusPending)
		in := createInput("2025-08-19", "2025-08-25", models.HolidayTypeVacation)
		in.Allowance = 5
		in.Editing = &pending
		in.Existing = []models.Holiday{pending}

		got, err := Validate(in)
		require.NoError(t, err)
		assert.Equal(t, 5, got.WorkingDays)
	})

	t.Run("new start in the past", func(t *testing.T) {
		pending := holidayFixture("h3", "u1", "2025-08-18", "2025-08-22", models.HolidayTypeVacation, models.HolidayStatusPending)
		in := createInput("2025-07-28", "2025-08-04", models.HolidayTypeVacation)
		in.Editing = &pending
		_, err := Validate(in)
		assert.ErrorIs(t, err, appErrors.ErrPastDateEdit)
	})

	t.Run("approved request is not editable", func(t *testing.T) {
		approved := holidayFixture("h4", "u1", "2025-08-18", "2025-08-22", models.HolidayTypeVacation, models.HolidayStatusApproved)
		in := createInput("2025-08-25", "2025-08-29", models.HolidayTypeVacation)
		in.Editing = &approved
		_, err := Validate(in)
		assert.ErrorIs(t, err, appErrors.ErrApprovedNotEditable)
	})

	t.Run("cancelled request is not editable", func(t *testing.T) {
		cancelled := holidayFixture("h5", "u1", "2025-08-18", "2025-08-22", models.HolidayTypeVacation, models.HolidayStatusCancelled)
		in := createInput("2025-08-25", "2025-08-29", models.HolidayTypeVacation)
		in.Editing = &cancelled
		_, err := Validate(in)
		assert.ErrorIs(t, err, appErrors.ErrInvalidTransition)
	})
}

func TestAllowanceRoundTrip(t *testing.T) {
	var existing []models.Holiday
	before := Balance("u1", 20, existing, 2025)
	assert.Equal(t, 20, before.Remaining)

	created, err := Validate(createInput("2025-08-15", "2025-08-19", models.HolidayTypeVacation))
	require.NoError(t, err)
	created.ID = "h1"
	existing = append(existing, *created)

	during := Balance("u1", 20, existing, 2025)
	assert.Equal(t, 3, during.Used)
	assert.Equal(t, 3, during.Pending)
	assert.Equal(t, 17, during.Remaining)

	cancelled, err := Cancel(CancelInput{Actor: models.Viewer{ID: "u1", Role: models.RoleEmployee}, Holiday: &existing[0]})
	require.NoError(t, err)
	existing[0] = *cancelled

	after := Balance("u1", 20, existing, 2025)
	assert.Equal(t, before.Used, after.Used)
	assert.Equal(t, before.Remaining, after.Remaining)
}
