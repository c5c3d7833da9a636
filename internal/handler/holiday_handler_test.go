package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/holiday-tracker-api/internal/dto"
	"github.com/noah-isme/holiday-tracker-api/internal/middleware"
	"github.com/noah-isme/holiday-tracker-api/internal/models"
	"github.com/noah-isme/holiday-tracker-api/pkg/calendar"
	appErrors "github.com/noah-isme/holiday-tracker-api/pkg/errors"
)

type holidayServiceMock struct {
	err       error
	cacheHit  bool
	lastReq   dto.HolidayRequest
	lastID    string
	lastQuery dto.HolidayListQuery
	lastDec   dto.HolidayDecisionRequest
	lastMeta  models.LoginRequest
	export    dto.HolidayExportQuery
}

func (m *holidayServiceMock) detail(id string) *models.HolidayDetail {
	start, _ := calendar.Parse("2025-08-18")
	end, _ := calendar.Parse("2025-08-19")
	return &models.HolidayDetail{Holiday: models.Holiday{
		ID:          id,
		OwnerID:     "u1",
		StartDate:   start,
		EndDate:     end,
		Type:        models.HolidayTypeVacation,
		Status:      models.HolidayStatusPending,
		WorkingDays: 2,
	}}
}

func (m *holidayServiceMock) Create(ctx context.Context, actor *models.JWTClaims, req dto.HolidayRequest, meta models.LoginRequest) (*models.HolidayDetail, error) {
	m.lastReq, m.lastMeta = req, meta
	if m.err != nil {
		return nil, m.err
	}
	return m.detail("h-new"), nil
}

func (m *holidayServiceMock) Edit(ctx context.Context, actor *models.JWTClaims, id string, req dto.HolidayRequest, meta models.LoginRequest) (*models.HolidayDetail, error) {
	m.lastID, m.lastReq = id, req
	if m.err != nil {
		return nil, m.err
	}
	return m.detail(id), nil
}

func (m *holidayServiceMock) Decide(ctx context.Context, actor *models.JWTClaims, id string, req dto.HolidayDecisionRequest, meta models.LoginRequest) (*models.HolidayDetail, error) {
	m.lastID, m.lastDec = id, req
	if m.err != nil {
		return nil, m.err
	}
	return m.detail(id), nil
}

func (m *holidayServiceMock) Cancel(ctx context.Context, actor *models.JWTClaims, id string, meta models.LoginRequest) (*models.HolidayDetail, error) {
	m.lastID = id
	if m.err != nil {
		return nil, m.err
	}
	return m.detail(id), nil
}

func (m *holidayServiceMock) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.HolidayDetail, error) {
	m.lastID = id
	if m.err != nil {
		return nil, m.err
	}
	return m.detail(id), nil
}

func (m *holidayServiceMock) History(ctx context.Context, actor *models.JWTClaims, id string) ([]models.AuditEntry, error) {
	m.lastID = id
	if m.err != nil {
		return nil, m.err
	}
	return []models.AuditEntry{{ID: "a1", Action: models.AuditActionHolidayCreate}}, nil
}

func (m *holidayServiceMock) List(ctx context.Context, actor *models.JWTClaims, query dto.HolidayListQuery) (*models.HolidayList, *models.Pagination, bool, error) {
	m.lastQuery = query
	if m.err != nil {
		return nil, nil, false, m.err
	}
	list := &models.HolidayList{
		Items:   []models.HolidayDetail{*m.detail("h1")},
		Summary: models.NewHolidaySummary(),
		Scope:   "own",
	}
	return list, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 1}, m.cacheHit, nil
}

func (m *holidayServiceMock) Balance(ctx context.Context, actor *models.JWTClaims, query dto.HolidayBalanceQuery) (*models.AllowanceBalance, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &models.AllowanceBalance{UserID: actor.UserID, Year: query.Year}, nil
}

func (m *holidayServiceMock) Export(ctx context.Context, actor *models.JWTClaims, query dto.HolidayExportQuery) ([]byte, string, string, error) {
	m.export = query
	if m.err != nil {
		return nil, "", "", m.err
	}
	return []byte("id,owner\n"), "text/csv", "holidays-own-2025-08-01.csv", nil
}

var employeeClaims = &models.JWTClaims{UserID: "u1", Role: models.RoleEmployee}

func newHolidayRouter(svc *holidayServiceMock, claims *models.JWTClaims) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHolidayHandler(svc)
	router := gin.New()
	router.Use(middleware.WithResponseMeta(), func(c *gin.Context) {
		if claims != nil {
			c.Set(middleware.ContextUserKey, claims)
		}
		c.Next()
	})
	router.POST("/holidays", h.Create)
	router.GET("/holidays", h.List)
	router.GET("/holidays/balance", h.Balance)
	router.GET("/holidays/export", h.Export)
	router.GET("/holidays/:id", h.Get)
	router.PUT("/holidays/:id", h.Update)
	router.POST("/holidays/:id/decision", h.Decide)
	router.POST("/holidays/:id/cancel", h.Cancel)
	router.GET("/holidays/:id/history", h.History)
	return router
}

func serve(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "handler-test")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data       json.RawMessage        `json:"data"`
	Error      *appErrors.Error       `json:"error"`
	Pagination *models.Pagination     `json:"pagination"`
	Meta       map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestHolidayHandlerCreate(t *testing.T) {
	svc := &holidayServiceMock{}
	rec := serve(newHolidayRouter(svc, employeeClaims), http.MethodPost, "/holidays",
		`{"start_date":"2025-08-18","end_date":"2025-08-19","type":"vacation","notes":"beach"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "2025-08-18", svc.lastReq.StartDate)
	require.NotNil(t, svc.lastReq.Notes)
	assert.Equal(t, "beach", *svc.lastReq.Notes)
	assert.Equal(t, "handler-test", svc.lastMeta.UserAgent)

	env := decodeEnvelope(t, rec)
	var detail models.HolidayDetail
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	assert.Equal(t, "h-new", detail.ID)
	assert.Equal(t, 2, detail.WorkingDays)
}

func TestHolidayHandlerCreateErrors(t *testing.T) {
	t.Run("malformed body", func(t *testing.T) {
		rec := serve(newHolidayRouter(&holidayServiceMock{}, employeeClaims), http.MethodPost, "/holidays", `{`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		rec := serve(newHolidayRouter(&holidayServiceMock{}, nil), http.MethodPost, "/holidays", `{}`)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("business rule", func(t *testing.T) {
		ruleErr := appErrors.WithDetails(appErrors.ErrInsufficientAllowance, map[string]interface{}{"requested": 5, "available": 2})
		rec := serve(newHolidayRouter(&holidayServiceMock{err: ruleErr}, employeeClaims), http.MethodPost, "/holidays",
			`{"start_date":"2025-08-18","end_date":"2025-08-22","type":"vacation"}`)
		require.Equal(t, ruleErr.Status, rec.Code)
		env := decodeEnvelope(t, rec)
		require.NotNil(t, env.Error)
		assert.Equal(t, ruleErr.Code, env.Error.Code)
		assert.EqualValues(t, 5, env.Error.Details["requested"])
		assert.EqualValues(t, 2, env.Error.Details["available"])
	})
}

func TestHolidayHandlerListReportsCacheHit(t *testing.T) {
	svc := &holidayServiceMock{cacheHit: true}
	rec := serve(newHolidayRouter(svc, employeeClaims), http.MethodGet,
		"/holidays?scope=team&status=pending,approved&status=rejected&type=vacation&from=2025-08-01&to=2025-08-31&page=2&page_size=10", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "team", svc.lastQuery.Scope)
	assert.Equal(t, []string{"pending", "approved", "rejected"}, svc.lastQuery.Statuses())
	assert.Equal(t, []string{"vacation"}, svc.lastQuery.Types())
	assert.Equal(t, "2025-08-01", svc.lastQuery.From)
	assert.Equal(t, 2, svc.lastQuery.Page)
	assert.Equal(t, 10, svc.lastQuery.PageSize)

	env := decodeEnvelope(t, rec)
	assert.Equal(t, true, env.Meta["cache_hit"])
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)
}

func TestHolidayHandlerListRejectsBadPage(t *testing.T) {
	rec := serve(newHolidayRouter(&holidayServiceMock{}, employeeClaims), http.MethodGet, "/holidays?page=first", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHolidayHandlerRoutesByID(t *testing.T) {
	svc := &holidayServiceMock{}
	router := newHolidayRouter(svc, employeeClaims)

	rec := serve(router, http.MethodGet, "/holidays/h7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "h7", svc.lastID)

	rec = serve(router, http.MethodPut, "/holidays/h8", `{"start_date":"2025-09-01","end_date":"2025-09-02","type":"personal"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "h8", svc.lastID)
	assert.Equal(t, "personal", svc.lastReq.Type)

	rec = serve(router, http.MethodPost, "/holidays/h9/decision", `{"action":"reject","rejection_reason":"coverage"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, dto.HolidayDecisionRequest{Action: "reject", RejectionReason: "coverage"}, svc.lastDec)

	rec = serve(router, http.MethodPost, "/holidays/h10/cancel", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "h10", svc.lastID)

	rec = serve(router, http.MethodGet, "/holidays/h11/history", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "h11", svc.lastID)
}

func TestHolidayHandlerGetNotFound(t *testing.T) {
	svc := &holidayServiceMock{err: appErrors.Clone(appErrors.ErrNotFound, "holiday request not found")}
	rec := serve(newHolidayRouter(svc, employeeClaims), http.MethodGet, "/holidays/hidden", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHolidayHandlerBalance(t *testing.T) {
	rec := serve(newHolidayRouter(&holidayServiceMock{}, employeeClaims), http.MethodGet, "/holidays/balance?year=2025", "")
	require.Equal(t, http.StatusOK, rec.Code)
	env := decodeEnvelope(t, rec)
	var balance models.AllowanceBalance
	require.NoError(t, json.Unmarshal(env.Data, &balance))
	assert.Equal(t, 2025, balance.Year)
	assert.Equal(t, "u1", balance.UserID)
}

func TestHolidayHandlerExport(t *testing.T) {
	svc := &holidayServiceMock{}
	rec := serve(newHolidayRouter(svc, employeeClaims), http.MethodGet, "/holidays/export?format=csv&scope=own&status=approved", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", svc.export.Format)
	assert.Equal(t, "own", svc.export.Scope)
	assert.Equal(t, []string{"approved"}, svc.export.Statuses())
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="holidays-own-2025-08-01.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "id,owner\n", rec.Body.String())
}
