package handlers

import (
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"worldlotto/internal/models"
	"worldlotto/internal/scheduler"
	"worldlotto/internal/services"
)

const testAdminToken = "test-token"

func TestMain(m *testing.M) {
	logger.Init("test", false, false, io.Discard)
	os.Exit(m.Run())
}

type apiResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func newTestRouter(t *testing.T, adminToken string, limiter *rate.Limiter) (*gin.Engine, *services.LotteryService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()

	accounts := services.NewMemoryAccountStore()
	_, err := accounts.Create(ctx, models.Account{ID: "alice", Balance: 100})
	require.NoError(t, err)

	service := services.NewLotteryService(services.NewMemoryTicketStore(), services.NewMemoryDrawingStore(), accounts, services.Options{
		Rand: rand.New(rand.NewSource(1)),
	})
	_, err = service.EnsureActiveDrawing(ctx)
	require.NoError(t, err)

	cfg := scheduler.DefaultConfig()
	cfg.Location = time.UTC
	autoDrawing, err := scheduler.New(service, cfg, nil)
	require.NoError(t, err)

	router := gin.New()
	NewHTTPHandler(service, autoDrawing, adminToken, limiter).RegisterRoutes(router)
	return router, service
}

func doRequest(t *testing.T, router *gin.Engine, method, path, body string, headers map[string]string) (int, apiResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp apiResponse
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp
}

var (
	asAlice = map[string]string{userIDHeader: "alice"}
	asAdmin = map[string]string{adminTokenHeader: testAdminToken}
)

func TestPublicRoutes(t *testing.T) {
	router, _ := newTestRouter(t, testAdminToken, nil)

	code, resp := doRequest(t, router, http.MethodGet, "/api/lottery/current", "", nil)
	require.Equal(t, http.StatusOK, code)
	var current models.Drawing
	require.NoError(t, json.Unmarshal(resp.Data, &current))
	assert.True(t, current.IsActive)
	assert.Equal(t, services.DefaultBaseJackpot, current.JackpotAmount)

	code, resp = doRequest(t, router, http.MethodGet, "/api/lottery/latest", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
	assert.Equal(t, "null", string(resp.Data))

	code, resp = doRequest(t, router, http.MethodGet, "/api/lottery/classes", "", nil)
	require.Equal(t, http.StatusOK, code)
	var classes []models.WinningClass
	require.NoError(t, json.Unmarshal(resp.Data, &classes))
	assert.Len(t, classes, 12)

	code, _ = doRequest(t, router, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestPurchaseTickets(t *testing.T) {
	t.Run("requires a user", func(t *testing.T) {
		router, _ := newTestRouter(t, testAdminToken, nil)
		code, _ := doRequest(t, router, http.MethodPost, "/api/lottery/tickets", `{"tickets":[{"quickPick":true}]}`, nil)
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("buys and debits", func(t *testing.T) {
		router, _ := newTestRouter(t, testAdminToken, nil)
		body := `{"tickets":[{"mainNumbers":[5,4,3,2,1],"worldNumbers":[2,1]},{"quickPick":true}]}`
		code, resp := doRequest(t, router, http.MethodPost, "/api/lottery/tickets", body, asAlice)
		require.Equal(t, http.StatusOK, code, resp.Error)

		var tickets []models.Ticket
		require.NoError(t, json.Unmarshal(resp.Data, &tickets))
		require.Len(t, tickets, 2)
		assert.Equal(t, []int{1, 2, 3, 4, 5}, tickets[0].MainNumbers)
		assert.Equal(t, "alice", tickets[0].UserID)

		code, resp = doRequest(t, router, http.MethodGet, "/api/account/balance", "", asAlice)
		require.Equal(t, http.StatusOK, code)
		assert.JSONEq(t, `{"balance":96}`, string(resp.Data))

		code, resp = doRequest(t, router, http.MethodGet, "/api/lottery/tickets/current", "", asAlice)
		require.Equal(t, http.StatusOK, code)
		require.NoError(t, json.Unmarshal(resp.Data, &tickets))
		assert.Len(t, tickets, 2)
	})

	t.Run("rejects invalid numbers", func(t *testing.T) {
		router, _ := newTestRouter(t, testAdminToken, nil)
		body := `{"tickets":[{"mainNumbers":[1,2,3,4,51],"worldNumbers":[1,2]}]}`
		code, resp := doRequest(t, router, http.MethodPost, "/api/lottery/tickets", body, asAlice)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.False(t, resp.Success)
		assert.NotEmpty(t, resp.Error)
	})

	t.Run("insufficient funds", func(t *testing.T) {
		router, _ := newTestRouter(t, testAdminToken, nil)
		picks := strings.Repeat(`{"quickPick":true},`, 10)
		body := `{"tickets":[` + strings.TrimSuffix(picks, ",") + `]}`
		code, _ := doRequest(t, router, http.MethodPost, "/api/lottery/tickets", body, asAlice)
		require.Equal(t, http.StatusOK, code)

		code, _ = doRequest(t, router, http.MethodPost, "/api/lottery/tickets", body, asAlice)
		require.Equal(t, http.StatusOK, code)

		for i := 0; i < 3; i++ {
			doRequest(t, router, http.MethodPost, "/api/lottery/tickets", body, asAlice)
		}
		code, _ = doRequest(t, router, http.MethodPost, "/api/lottery/tickets", body, asAlice)
		assert.Equal(t, http.StatusPaymentRequired, code)
	})

	t.Run("rate limited", func(t *testing.T) {
		router, _ := newTestRouter(t, testAdminToken, rate.NewLimiter(rate.Every(time.Hour), 1))
		body := `{"tickets":[{"quickPick":true}]}`
		code, _ := doRequest(t, router, http.MethodPost, "/api/lottery/tickets", body, asAlice)
		require.Equal(t, http.StatusOK, code)
		code, _ = doRequest(t, router, http.MethodPost, "/api/lottery/tickets", body, asAlice)
		assert.Equal(t, http.StatusTooManyRequests, code)
	})
}

func TestAdminAuth(t *testing.T) {
	router, _ := newTestRouter(t, testAdminToken, nil)
	code, _ := doRequest(t, router, http.MethodGet, "/api/admin/stats", "", nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = doRequest(t, router, http.MethodGet, "/api/admin/stats", "", map[string]string{adminTokenHeader: "wrong"})
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = doRequest(t, router, http.MethodGet, "/api/admin/stats", "", asAdmin)
	assert.Equal(t, http.StatusOK, code)

	disabled, _ := newTestRouter(t, "", nil)
	code, _ = doRequest(t, disabled, http.MethodGet, "/api/admin/stats", "", map[string]string{adminTokenHeader: ""})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestAdminDrawing(t *testing.T) {
	t.Run("manual numbers", func(t *testing.T) {
		router, service := newTestRouter(t, testAdminToken, nil)
		code, _ := doRequest(t, router, http.MethodPost, "/api/lottery/tickets",
			`{"tickets":[{"mainNumbers":[1,2,3,4,5],"worldNumbers":[1,2]}]}`, asAlice)
		require.Equal(t, http.StatusOK, code)

		code, resp := doRequest(t, router, http.MethodPost, "/api/admin/drawing",
			`{"manualNumbers":{"mainNumbers":[1,2,3,4,5],"worldNumbers":[1,2]}}`, asAdmin)
		require.Equal(t, http.StatusOK, code, resp.Error)

		var closed models.Drawing
		require.NoError(t, json.Unmarshal(resp.Data, &closed))
		assert.False(t, closed.IsActive)
		assert.Equal(t, 1, closed.WinnersByClass[1])

		balance, err := service.Balance(context.Background(), "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(98)+services.DefaultBaseJackpot, balance)

		code, resp = doRequest(t, router, http.MethodGet, "/api/lottery/latest", "", nil)
		require.Equal(t, http.StatusOK, code)
		var latest models.Drawing
		require.NoError(t, json.Unmarshal(resp.Data, &latest))
		assert.Equal(t, closed.ID, latest.ID)
	})

	t.Run("heuristic with empty body", func(t *testing.T) {
		router, _ := newTestRouter(t, testAdminToken, nil)
		code, resp := doRequest(t, router, http.MethodPost, "/api/admin/drawing", "", asAdmin)
		require.Equal(t, http.StatusOK, code, resp.Error)

		code, resp = doRequest(t, router, http.MethodGet, "/api/admin/drawings", "", asAdmin)
		require.Equal(t, http.StatusOK, code)
		var history []models.Drawing
		require.NoError(t, json.Unmarshal(resp.Data, &history))
		assert.Len(t, history, 2)
	})

	t.Run("invalid manual numbers", func(t *testing.T) {
		router, _ := newTestRouter(t, testAdminToken, nil)
		code, _ := doRequest(t, router, http.MethodPost, "/api/admin/drawing",
			`{"manualNumbers":{"mainNumbers":[1,2,3,4],"worldNumbers":[1,2]}}`, asAdmin)
		assert.Equal(t, http.StatusBadRequest, code)
	})
}

func TestAdminJackpotAndOverrides(t *testing.T) {
	router, _ := newTestRouter(t, testAdminToken, nil)

	code, resp := doRequest(t, router, http.MethodPost, "/api/admin/jackpot", `{"newAmount":2500000}`, asAdmin)
	require.Equal(t, http.StatusOK, code, resp.Error)
	var drawing models.Drawing
	require.NoError(t, json.Unmarshal(resp.Data, &drawing))
	assert.Equal(t, int64(2_500_000), drawing.JackpotAmount)

	code, _ = doRequest(t, router, http.MethodPost, "/api/admin/jackpot", `{"newAmount":-5}`, asAdmin)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = doRequest(t, router, http.MethodPost, "/api/admin/display-overrides", `{"title":"Halloween draw"}`, asAdmin)
	require.Equal(t, http.StatusOK, code)
	code, resp = doRequest(t, router, http.MethodGet, "/api/admin/display-overrides", "", asAdmin)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"manualTitle":"Halloween draw"}`, string(resp.Data))

	code, _ = doRequest(t, router, http.MethodDelete, "/api/admin/display-overrides", "", asAdmin)
	require.Equal(t, http.StatusOK, code)
	_, resp = doRequest(t, router, http.MethodGet, "/api/admin/display-overrides", "", asAdmin)
	assert.JSONEq(t, `{}`, string(resp.Data))
}

func TestAdminAutoDrawing(t *testing.T) {
	router, _ := newTestRouter(t, testAdminToken, nil)

	code, resp := doRequest(t, router, http.MethodGet, "/api/admin/auto-drawing", "", asAdmin)
	require.Equal(t, http.StatusOK, code)
	var status scheduler.Status
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	assert.True(t, status.Enabled)
	assert.Equal(t, time.Friday, status.Weekday)

	code, resp = doRequest(t, router, http.MethodPost, "/api/admin/auto-drawing", `{"enabled":false}`, asAdmin)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	assert.False(t, status.Enabled)

	code, _ = doRequest(t, router, http.MethodPost, "/api/admin/auto-drawing", `{}`, asAdmin)
	assert.Equal(t, http.StatusBadRequest, code)

	code, resp = doRequest(t, router, http.MethodPost, "/api/admin/auto-drawing/trigger", "", asAdmin)
	require.Equal(t, http.StatusOK, code, resp.Error)
	var closed models.Drawing
	require.NoError(t, json.Unmarshal(resp.Data, &closed))
	assert.False(t, closed.IsActive)
	assert.Len(t, closed.MainNumbers, services.MainNumberCount)
}

func TestExportTicketsCSV(t *testing.T) {
	router, _ := newTestRouter(t, testAdminToken, nil)
	code, _ := doRequest(t, router, http.MethodPost, "/api/lottery/tickets",
		`{"tickets":[{"mainNumbers":[1,2,3,4,5],"worldNumbers":[1,2]}]}`, asAlice)
	require.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/tickets/export", nil)
	req.Header.Set(adminTokenHeader, testAdminToken)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "ticket_id,user_id,"))
	assert.Contains(t, lines[1], ",alice,")
	assert.Contains(t, lines[1], ",1 2 3 4 5,1 2,2,false,0,0,")
}

func TestPublicScheduleAndOverrides(t *testing.T) {
	router, _ := newTestRouter(t, testAdminToken, nil)

	code, resp := doRequest(t, router, http.MethodGet, "/api/lottery/auto-drawing", "", nil)
	require.Equal(t, http.StatusOK, code)
	var status scheduler.Status
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	assert.True(t, status.Enabled)
	assert.Positive(t, status.Countdown.TotalMs)

	code, _ = doRequest(t, router, http.MethodPost, "/api/admin/display-overrides", `{"title":"Grand draw","time":"21:00"}`, asAdmin)
	require.Equal(t, http.StatusOK, code)
	code, resp = doRequest(t, router, http.MethodGet, "/api/lottery/display-overrides", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"manualTitle":"Grand draw","manualTime":"21:00"}`, string(resp.Data))

	code, _ = doRequest(t, router, http.MethodPost, "/api/lottery/display-overrides", `{"title":"x"}`, nil)
	assert.Equal(t, http.StatusNotFound, code, "overrides stay read-only for the public")
}

func TestLookups(t *testing.T) {
	router, _ := newTestRouter(t, testAdminToken, nil)
	code, resp := doRequest(t, router, http.MethodPost, "/api/lottery/tickets", `{"tickets":[{"quickPick":true}]}`, asAlice)
	require.Equal(t, http.StatusOK, code)
	var tickets []models.Ticket
	require.NoError(t, json.Unmarshal(resp.Data, &tickets))
	require.Len(t, tickets, 1)

	code, resp = doRequest(t, router, http.MethodGet, "/api/lottery/ticket/"+tickets[0].ID, "", asAlice)
	require.Equal(t, http.StatusOK, code)
	var ticket models.Ticket
	require.NoError(t, json.Unmarshal(resp.Data, &ticket))
	assert.Equal(t, tickets[0].ID, ticket.ID)

	code, _ = doRequest(t, router, http.MethodGet, "/api/lottery/ticket/"+tickets[0].ID, "", map[string]string{userIDHeader: "mallory"})
	assert.Equal(t, http.StatusNotFound, code, "tickets of other users are hidden")

	code, resp = doRequest(t, router, http.MethodGet, "/api/account", "", asAlice)
	require.Equal(t, http.StatusOK, code)
	var account models.Account
	require.NoError(t, json.Unmarshal(resp.Data, &account))
	assert.Equal(t, int64(98), account.Balance)

	code, _ = doRequest(t, router, http.MethodGet, "/api/account", "", map[string]string{userIDHeader: "mallory"})
	assert.Equal(t, http.StatusNotFound, code)

	code, resp = doRequest(t, router, http.MethodGet, "/api/admin/users", "", asAdmin)
	require.Equal(t, http.StatusOK, code)
	var accounts []models.Account
	require.NoError(t, json.Unmarshal(resp.Data, &accounts))
	require.Len(t, accounts, 1)
	assert.Equal(t, "alice", accounts[0].ID)

	code, resp = doRequest(t, router, http.MethodGet, "/api/admin/drawing/drawing-001", "", asAdmin)
	require.Equal(t, http.StatusOK, code)
	var drawing models.Drawing
	require.NoError(t, json.Unmarshal(resp.Data, &drawing))
	assert.True(t, drawing.IsActive)

	code, _ = doRequest(t, router, http.MethodGet, "/api/admin/drawing/drawing-999", "", asAdmin)
	assert.Equal(t, http.StatusNotFound, code)
}
