package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/holiday-tracker-api/internal/models"
	"github.com/noah-isme/holiday-tracker-api/pkg/calendar"
	"github.com/noah-isme/holiday-tracker-api/pkg/database"
)

const holidayColumns = `id, owner_id, start_date, end_date, type, status, working_days, notes,
approver_id, approved_at, rejection_reason, created_at, updated_at`

const holidayDetailSelect = `SELECT h.id, h.owner_id, h.start_date, h.end_date, h.type, h.status, h.working_days, h.notes,
h.approver_id, h.approved_at, h.rejection_reason, h.created_at, h.updated_at,
o.full_name AS owner_name, o.email AS owner_email, o.department_id AS owner_department_id, d.name AS department_name,
a.full_name AS approver_name, a.email AS approver_email`

const holidayDetailFrom = `FROM holidays h
JOIN users o ON o.id = h.owner_id
LEFT JOIN departments d ON d.id = o.department_id
LEFT JOIN users a ON a.id = h.approver_id`

// HolidayWriter is the set of operations available while the owner row is
// locked. Every read sees rows committed by earlier lock holders.
type HolidayWriter interface {
	ListActiveByOwner(ctx context.Context, ownerID string, since calendar.Date) ([]models.Holiday, error)
	FindByID(ctx context.Context, id string) (*models.Holiday, error)
	Insert(ctx context.Context, holiday *models.Holiday) error
	Update(ctx context.Context, holiday *models.Holiday) error
}

// HolidayRepository provides database access for holiday requests.
type HolidayRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewHolidayRepository constructs a HolidayRepository.
func NewHolidayRepository(db *sqlx.DB) *HolidayRepository {
	return &HolidayRepository{db: db, now: time.Now}
}

// List returns one page of holidays matching the filter plus the total count.
func (r *HolidayRepository) List(ctx context.Context, filter models.HolidayFilter) ([]models.HolidayDetail, int, error) {
	where, args := buildHolidayWhere(filter)
	page, pageSize := normalizePage(filter.Page, filter.PageSize)
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("%s %s %s ORDER BY h.start_date ASC, h.created_at ASC LIMIT %d OFFSET %d",
		holidayDetailSelect, holidayDetailFrom, where, pageSize, offset)
	var items []models.HolidayDetail
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list holidays: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s %s", holidayDetailFrom, where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count holidays: %w", err)
	}
	return items, total, nil
}

type summaryRow struct {
	Status models.HolidayStatus `db:"status"`
	Type   models.HolidayType   `db:"type"`
	Count  int                  `db:"count"`
}

// Summary counts every holiday matching the filter by status and type,
// ignoring pagination.
func (r *HolidayRepository) Summary(ctx context.Context, filter models.HolidayFilter) (models.HolidaySummary, error) {
	where, args := buildHolidayWhere(filter)
	query := fmt.Sprintf("SELECT h.status, h.type, COUNT(*) AS count %s %s GROUP BY h.status, h.type", holidayDetailFrom, where)
	var rows []summaryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return models.HolidaySummary{}, fmt.Errorf("summarize holidays: %w", err)
	}
	summary := models.NewHolidaySummary()
	for _, row := range rows {
		summary.Add(row.Status, row.Type, row.Count)
	}
	return summary, nil
}

// FindDetailByID returns a holiday with owner and approver details.
func (r *HolidayRepository) FindDetailByID(ctx context.Context, id string) (*models.HolidayDetail, error) {
	query := fmt.Sprintf("%s %s WHERE h.id = $1", holidayDetailSelect, holidayDetailFrom)
	var detail models.HolidayDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find holiday detail: %w", err)
	}
	return &detail, nil
}

// ListByOwnerYear returns the owner's holidays starting in year.
func (r *HolidayRepository) ListByOwnerYear(ctx context.Context, ownerID string, year int) ([]models.Holiday, error) {
	query := fmt.Sprintf(`SELECT %s FROM holidays WHERE owner_id = $1 AND start_date BETWEEN $2 AND $3 ORDER BY start_date ASC`, holidayColumns)
	var items []models.Holiday
	if err := r.db.SelectContext(ctx, &items, query, ownerID, calendar.StartOfYear(year), calendar.EndOfYear(year)); err != nil {
		return nil, fmt.Errorf("list holidays by owner year: %w", err)
	}
	return items, nil
}

// WithOwnerLock locks the owner's user row and runs fn in the same
// transaction, serialising every write for that owner. sql.ErrNoRows is
// returned when the owner does not exist.
func (r *HolidayRepository) WithOwnerLock(ctx context.Context, ownerID string, fn func(HolidayWriter) error) error {
	return database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var locked string
		if err := tx.GetContext(ctx, &locked, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, ownerID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return err
			}
			return fmt.Errorf("lock owner: %w", err)
		}
		return fn(&holidayTx{tx: tx, now: r.now})
	})
}

type holidayTx struct {
	tx  *sqlx.Tx
	now func() time.Time
}

func (w *holidayTx) ListActiveByOwner(ctx context.Context, ownerID string, since calendar.Date) ([]models.Holiday, error) {
	query := fmt.Sprintf(`SELECT %s FROM holidays WHERE owner_id = $1 AND status IN ('pending', 'approved') AND end_date >= $2 ORDER BY start_date ASC`, holidayColumns)
	var items []models.Holiday
	if err := w.tx.SelectContext(ctx, &items, query, ownerID, since); err != nil {
		return nil, fmt.Errorf("list active holidays: %w", err)
	}
	return items, nil
}

func (w *holidayTx) FindByID(ctx context.Context, id string) (*models.Holiday, error) {
	query := fmt.Sprintf(`SELECT %s FROM holidays WHERE id = $1 FOR UPDATE`, holidayColumns)
	var holiday models.Holiday
	if err := w.tx.GetContext(ctx, &holiday, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find holiday: %w", err)
	}
	return &holiday, nil
}

func (w *holidayTx) Insert(ctx context.Context, holiday *models.Holiday) error {
	if holiday.ID == "" {
		holiday.ID = uuid.NewString()
	}
	now := w.now().UTC()
	holiday.CreatedAt = now
	holiday.UpdatedAt = now
	query := fmt.Sprintf(`INSERT INTO holidays (%s) VALUES (:id, :owner_id, :start_date, :end_date, :type, :status, :working_days, :notes,
:approver_id, :approved_at, :rejection_reason, :created_at, :updated_at)`, holidayColumns)
	if _, err := w.tx.NamedExecContext(ctx, query, holiday); err != nil {
		return fmt.Errorf("insert holiday: %w", err)
	}
	return nil
}

func (w *holidayTx) Update(ctx context.Context, holiday *models.Holiday) error {
	holiday.UpdatedAt = w.now().UTC()
	const query = `UPDATE holidays SET start_date = :start_date, end_date = :end_date, type = :type, status = :status,
working_days = :working_days, notes = :notes, approver_id = :approver_id, approved_at = :approved_at,
rejection_reason = :rejection_reason, updated_at = :updated_at WHERE id = :id`
	res, err := w.tx.NamedExecContext(ctx, query, holiday)
	if err != nil {
		return fmt.Errorf("update holiday: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update holiday rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func buildHolidayWhere(filter models.HolidayFilter) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	next := func(value interface{}) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.OwnerID != nil {
		conditions = append(conditions, "h.owner_id = "+next(*filter.OwnerID))
	}
	if filter.DepartmentID != nil {
		conditions = append(conditions, "o.department_id = "+next(*filter.DepartmentID))
	}
	if filter.From != nil {
		conditions = append(conditions, "h.end_date >= "+next(*filter.From))
	}
	if filter.To != nil {
		conditions = append(conditions, "h.start_date <= "+next(*filter.To))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		conditions = append(conditions, "h.status = ANY("+next(pq.Array(statuses))+")")
	}
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		conditions = append(conditions, "h.type = ANY("+next(pq.Array(types))+")")
	}
	if filter.VisibleTo != "" {
		conditions = append(conditions, fmt.Sprintf("(h.owner_id = %s OR h.status = 'approved')", next(filter.VisibleTo)))
	}

	if len(conditions) == 0 {
		return "WHERE 1=1", args
	}
	return "WHERE " + strings.Join(conditions, " AND "), args
}
