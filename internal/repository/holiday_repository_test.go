package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/holiday-tracker-api/internal/models"
	"github.com/noah-isme/holiday-tracker-api/pkg/calendar"
)

var holidayRowColumns = []string{"id", "owner_id", "start_date", "end_date", "type", "status", "working_days", "notes",
	"approver_id", "approved_at", "rejection_reason", "created_at", "updated_at"}

var holidayDetailRowColumns = append(append([]string{}, holidayRowColumns...),
	"owner_name", "owner_email", "owner_department_id", "department_name", "approver_name", "approver_email")

func TestBuildHolidayWhere(t *testing.T) {
	owner := "u1"
	dept := "d1"
	from := calendar.MustParse("2025-08-01")
	to := calendar.MustParse("2025-08-31")

	where, args := buildHolidayWhere(models.HolidayFilter{
		OwnerID:      &owner,
		DepartmentID: &dept,
		From:         &from,
		To:           &to,
		Statuses:     []models.HolidayStatus{models.HolidayStatusPending, models.HolidayStatusApproved},
		Types:        []models.HolidayType{models.HolidayTypeVacation},
		VisibleTo:    "u1",
	})
	assert.Equal(t, "WHERE h.owner_id = $1 AND o.department_id = $2 AND h.end_date >= $3 AND h.start_date <= $4"+
		" AND h.status = ANY($5) AND h.type = ANY($6) AND (h.owner_id = $7 OR h.status = 'approved')", where)
	assert.Len(t, args, 7)

	where, args = buildHolidayWhere(models.HolidayFilter{})
	assert.Equal(t, "WHERE 1=1", where)
	assert.Empty(t, args)
}

func TestHolidayRepositoryList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHolidayRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows(holidayDetailRowColumns).
		AddRow("h1", "u1", "2025-08-15", "2025-08-19", "vacation", "approved", 3, nil,
			"a1", now, nil, now, now,
			"Ada", "ada@example.com", "d1", "Engineering", "Boss", "boss@example.com")
	mock.ExpectQuery(regexp.QuoteMeta("WHERE (h.owner_id = $1 OR h.status = 'approved') ORDER BY h.start_date ASC, h.created_at ASC LIMIT 10 OFFSET 10")).
		WithArgs("u1").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM holidays h")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	items, total, err := repo.List(context.Background(), models.HolidayFilter{VisibleTo: "u1", Page: 2, PageSize: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 11, total)
	assert.Equal(t, "2025-08-15", items[0].StartDate.String())
	assert.Equal(t, 3, items[0].WorkingDays)
	assert.Equal(t, "Ada", items[0].OwnerName)
	require.NotNil(t, items[0].OwnerDepartment)
	assert.Equal(t, "d1", *items[0].OwnerDepartment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHolidayRepositorySummary(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHolidayRepository(db)

	rows := sqlmock.NewRows([]string{"status", "type", "count"}).
		AddRow("pending", "vacation", 2).
		AddRow("approved", "vacation", 3).
		AddRow("approved", "sick", 1)
	mock.ExpectQuery(regexp.QuoteMeta("GROUP BY h.status, h.type")).WillReturnRows(rows)

	summary, err := repo.Summary(context.Background(), models.HolidayFilter{})
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Total)
	assert.Equal(t, 2, summary.ByStatus[models.HolidayStatusPending])
	assert.Equal(t, 4, summary.ByStatus[models.HolidayStatusApproved])
	assert.Equal(t, 0, summary.ByStatus[models.HolidayStatusRejected])
	assert.Equal(t, 5, summary.ByType[models.HolidayTypeVacation])
	assert.Equal(t, 0, summary.ByType[models.HolidayTypePersonal])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHolidayRepositoryWithOwnerLockInsert(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHolidayRepository(db)
	fixed := time.Date(2025, 8, 1, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users WHERE id = $1 FOR UPDATE")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))
	mock.ExpectQuery(regexp.QuoteMeta("status IN ('pending', 'approved') AND end_date >= $2")).
		WithArgs("u1", "2025-01-01").
		WillReturnRows(sqlmock.NewRows(holidayRowColumns))
	mock.ExpectExec("INSERT INTO holidays").
		WithArgs(sqlmock.AnyArg(), "u1", "2025-08-15", "2025-08-19", "vacation", "pending", 3, nil,
			nil, nil, nil, fixed, fixed).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	holiday := &models.Holiday{
		OwnerID:     "u1",
		StartDate:   calendar.MustParse("2025-08-15"),
		EndDate:     calendar.MustParse("2025-08-19"),
		Type:        models.HolidayTypeVacation,
		Status:      models.HolidayStatusPending,
		WorkingDays: 3,
	}
	err := repo.WithOwnerLock(context.Background(), "u1", func(w HolidayWriter) error {
		existing, err := w.ListActiveByOwner(context.Background(), "u1", calendar.StartOfYear(2025))
		if err != nil {
			return err
		}
		assert.Empty(t, existing)
		return w.Insert(context.Background(), holiday)
	})
	require.NoError(t, err)
	assert.NotEmpty(t, holiday.ID)
	assert.Equal(t, fixed, holiday.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHolidayRepositoryWithOwnerLockRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHolidayRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))
	mock.ExpectRollback()

	rule := errors.New("overlap")
	err := repo.WithOwnerLock(context.Background(), "u1", func(w HolidayWriter) error { return rule })
	assert.ErrorIs(t, err, rule)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHolidayRepositoryWithOwnerLockMissingOwner(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHolidayRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs("ghost").WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	called := false
	err := repo.WithOwnerLock(context.Background(), "ghost", func(w HolidayWriter) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHolidayRepositoryUpdateInsideLock(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHolidayRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM holidays WHERE id = $1 FOR UPDATE")).
		WithArgs("h1").
		WillReturnRows(sqlmock.NewRows(holidayRowColumns).
			AddRow("h1", "u1", "2025-08-15", "2025-08-19", "vacation", "pending", 3, nil, nil, nil, nil, now, now))
	mock.ExpectExec("UPDATE holidays SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.WithOwnerLock(context.Background(), "u1", func(w HolidayWriter) error {
		holiday, err := w.FindByID(context.Background(), "h1")
		if err != nil {
			return err
		}
		holiday.Status = models.HolidayStatusCancelled
		return w.Update(context.Background(), holiday)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHolidayRepositoryListByOwnerYear(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewHolidayRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("start_date BETWEEN $2 AND $3")).
		WithArgs("u1", "2025-01-01", "2025-12-31").
		WillReturnRows(sqlmock.NewRows(holidayRowColumns).
			AddRow("h1", "u1", "2025-08-15", "2025-08-19", "vacation", "approved", 3, nil, nil, nil, nil, now, now))

	items, err := repo.ListByOwnerYear(context.Background(), "u1", 2025)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.HolidayStatusApproved, items[0].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHolidayRepositoryUpdateReportsRowCountFailures(t *testing.T) {
	holiday := &models.Holiday{
		ID:        "h1",
		OwnerID:   "u1",
		StartDate: calendar.MustParse("2025-08-15"),
		EndDate:   calendar.MustParse("2025-08-19"),
		Type:      models.HolidayTypeVacation,
		Status:    models.HolidayStatusCancelled,
	}
	cases := []struct {
		name   string
		result sql.Result
		check  func(t *testing.T, err error)
	}{
		{
			name:   "rows affected error",
			result: sqlmock.NewErrorResult(errors.New("driver lost result")),
			check: func(t *testing.T, err error) {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "update holiday rows affected")
				assert.Contains(t, err.Error(), "driver lost result")
			},
		},
		{
			name:   "no rows",
			result: sqlmock.NewResult(0, 0),
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, sql.ErrNoRows)
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, cleanup := newMock(t)
			defer cleanup()
			repo := NewHolidayRepository(db)

			mock.ExpectBegin()
			mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users")).
				WithArgs("u1").
				WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("u1"))
			mock.ExpectExec("UPDATE holidays SET").WillReturnResult(tc.result)
			mock.ExpectRollback()

			err := repo.WithOwnerLock(context.Background(), "u1", func(w HolidayWriter) error {
				return w.Update(context.Background(), holiday)
			})
			tc.check(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
