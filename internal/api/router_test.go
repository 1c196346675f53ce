package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"table-ordering-service/internal/entity"
	"table-ordering-service/internal/events"
	"table-ordering-service/internal/repository/memory"
	"table-ordering-service/internal/service"
)

const (
	testSecret = "0123456789abcdef-test"
	testAPIKey = "cleanup-key"
	testCron   = "cron-secret"
)

type harness struct {
	e     *echo.Echo
	store *memory.Store
	svc   service.Services
}

// newHarness wires the real services over the in-memory store.
func newHarness(t *testing.T) *harness {
	t.Helper()
	store := memory.New()
	deps := service.Deps{Store: store, Publisher: events.NoopPublisher{}}
	svc := service.NewServices(deps, service.Options{
		JWTSecret: testSecret,
		BaseURL:   "http://tables.test",
		CartTTL:   time.Hour,
	})
	e := NewRouter(RouterConfig{
		JWTSecret:     testSecret,
		CleanupAPIKey: testAPIKey,
		CronSecret:    testCron,
		RateLimit:     1000,
		RateBurst:     1000,
	}, svc)
	return &harness{e: e, store: store, svc: svc}
}

type response struct {
	Code    int             `json:"-"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Message string          `json:"message"`
}

func (h *harness) do(t *testing.T, method, path, body string, headers ...string) response {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)

	var out response
	if strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	out.Code = rec.Code
	return out
}

func (h *harness) seedTable(t *testing.T, id string, number int, pin string) {
	t.Helper()
	now := time.Now()
	tbl := &entity.Table{ID: id, TableNumber: number, Capacity: 4, IsActive: true, CreatedAt: now, UpdatedAt: now}
	if pin != "" {
		tbl.CurrentPIN = &pin
	}
	require.NoError(t, h.store.CreateTable(context.Background(), tbl))
}

func (h *harness) seedMenu(t *testing.T, id, price string) {
	t.Helper()
	require.NoError(t, h.store.CreateMenuItem(context.Background(), &entity.MenuItem{
		ID: id, Name: id, Category: "main", Price: decimal.RequireFromString(price), IsAvailable: true, CreatedAt: time.Now(),
	}))
}

// login creates a staff member and returns a bearer header value for them.
func (h *harness) login(t *testing.T, email string, role entity.StaffRole) string {
	t.Helper()
	_, err := h.svc.Staff.Create(context.Background(), service.CreateStaffRequest{
		Email: email, Name: "Staff", Role: role, Password: "correct horse",
	})
	require.NoError(t, err)
	res := h.do(t, http.MethodPost, "/api/staff/login", `{"email":"`+email+`","password":"correct horse"}`)
	require.Equal(t, http.StatusOK, res.Code, res.Error)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &login))
	return "Bearer " + login.Token
}

func TestHealthAndUnknownRoutes(t *testing.T) {
	h := newHarness(t)

	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)

	res := h.do(t, http.MethodGet, "/api/nope", "")
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.False(t, res.Success)
	assert.NotEmpty(t, res.Error)
}

func TestGuestFlowOverHTTP(t *testing.T) {
	h := newHarness(t)
	h.seedTable(t, "t1", 1, "4821")
	h.seedMenu(t, "burger", "12.75")

	res := h.do(t, http.MethodPost, "/api/tables/verify-pin", `{"tableId":"1","pin":"0000"}`)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.Equal(t, "invalid PIN", res.Error)

	res = h.do(t, http.MethodPost, "/api/sessions", `{"tableId":"t1","pin":"4821","guestName":"Ana"}`)
	require.Equal(t, http.StatusCreated, res.Code, res.Error)
	var view struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
		Action string `json:"action"`
	}
	require.NoError(t, json.Unmarshal(res.Data, &view))
	assert.Equal(t, service.ActionStart, view.Action)
	sid := view.Session.ID

	res = h.do(t, http.MethodPost, "/api/sessions", `{"tableId":"t1","pin":"4821"}`)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, string(res.Data), `"action":"join"`)

	res = h.do(t, http.MethodPost, "/api/sessions/"+sid+"/cart", `{"menuItemId":"burger","quantity":2}`)
	require.Equal(t, http.StatusCreated, res.Code, res.Error)

	res = h.do(t, http.MethodPost, "/api/sessions/"+sid+"/orders", "", "Idempotency-Key", "k1")
	require.Equal(t, http.StatusCreated, res.Code, res.Error)
	res = h.do(t, http.MethodPost, "/api/sessions/"+sid+"/orders", "", "Idempotency-Key", "k1")
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = h.do(t, http.MethodGet, "/api/sessions/"+sid+"/total", "")
	require.Equal(t, http.StatusOK, res.Code)
	var total map[string]any
	require.NoError(t, json.Unmarshal(res.Data, &total))
	// money is rendered as JSON numbers
	assert.Equal(t, 25.5, total["subtotal"])
	assert.Equal(t, 3.57, total["tax"])
	assert.Equal(t, 29.07, total["total"])

	res = h.do(t, http.MethodPost, "/api/sessions/"+sid+"/help", `{"requestType":"water"}`)
	assert.Equal(t, http.StatusCreated, res.Code, res.Error)

	res = h.do(t, http.MethodPost, "/api/sessions/"+sid+"/help", `{"requestType":"karaoke"}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestStaffRoutesRequireTokenAndRole(t *testing.T) {
	h := newHarness(t)

	res := h.do(t, http.MethodGet, "/api/staff/me", "")
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	assert.False(t, res.Success)

	res = h.do(t, http.MethodGet, "/api/staff/me", "", "Authorization", "Bearer not-a-token")
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	waiter := h.login(t, "waiter@example.com", entity.RoleWaiter)
	res = h.do(t, http.MethodGet, "/api/staff/me", "", "Authorization", waiter)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Contains(t, string(res.Data), "waiter@example.com")

	res = h.do(t, http.MethodGet, "/api/staff/members", "", "Authorization", waiter)
	assert.Equal(t, http.StatusForbidden, res.Code)
	res = h.do(t, http.MethodPost, "/api/staff/tables", `{"tableNumber":9}`, "Authorization", waiter)
	assert.Equal(t, http.StatusForbidden, res.Code)

	admin := h.login(t, "admin@example.com", entity.RoleAdmin)
	res = h.do(t, http.MethodGet, "/api/staff/members", "", "Authorization", admin)
	assert.Equal(t, http.StatusOK, res.Code)
	res = h.do(t, http.MethodPost, "/api/staff/tables", `{"tableNumber":9}`, "Authorization", admin)
	require.Equal(t, http.StatusCreated, res.Code, res.Error)
	assert.Contains(t, string(res.Data), "http://tables.test/table/")
}

func TestTransferOverHTTP(t *testing.T) {
	h := newHarness(t)
	h.seedTable(t, "t1", 1, "1111")
	h.seedTable(t, "t2", 2, "")
	view, err := h.svc.Sessions.Start(context.Background(), service.StartSessionRequest{TableID: "t1", PIN: "1111"})
	require.NoError(t, err)
	body := `{"sourceTableId":"t1","destinationTableId":"t2","sessionId":"` + view.Session.ID + `"}`

	res := h.do(t, http.MethodPost, "/api/tables/transfer", body)
	assert.Equal(t, http.StatusUnauthorized, res.Code)

	waiter := h.login(t, "w@example.com", entity.RoleWaiter)
	res = h.do(t, http.MethodPost, "/api/staff/tables/transfer", body, "Authorization", waiter)
	require.Equal(t, http.StatusOK, res.Code, res.Error)
	assert.Equal(t, "table transferred", res.Message)

	dst, err := h.store.GetTable(context.Background(), "t2")
	require.NoError(t, err)
	assert.True(t, dst.Occupied)

	// the session has already moved, so the same request is now rejected
	res = h.do(t, http.MethodPost, "/api/tables/transfer", body, "Authorization", waiter)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestMachineEndpointsCheckSecrets(t *testing.T) {
	h := newHarness(t)

	res := h.do(t, http.MethodPost, "/api/cart/cleanup", "")
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	res = h.do(t, http.MethodPost, "/api/cart/cleanup", "", "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	res = h.do(t, http.MethodPost, "/api/cart/cleanup", "", "X-API-Key", testAPIKey)
	require.Equal(t, http.StatusOK, res.Code, res.Error)
	assert.Contains(t, string(res.Data), `"ran":true`)

	res = h.do(t, http.MethodPost, "/api/cart/cleanup", "", "X-API-Key", testAPIKey)
	assert.Equal(t, "cleanup ran recently, skipped", res.Message)

	res = h.do(t, http.MethodPost, "/api/admin/stale-sweep", "", "Authorization", testCron)
	assert.Equal(t, http.StatusUnauthorized, res.Code)
	res = h.do(t, http.MethodPost, "/api/admin/stale-sweep", "", "Authorization", "Bearer "+testCron)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "stale session sweep is disabled", res.Message)
}

func TestPINEndpointHasItsOwnLimit(t *testing.T) {
	h := newHarness(t)
	h.seedTable(t, "t1", 1, "4821")

	var last int
	for i := 0; i < pinRateBurst+1; i++ {
		last = h.do(t, http.MethodPost, "/api/tables/verify-pin", `{"tableId":"t1","pin":"4821"}`).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
