package handlers

import (
	"crypto/subtle"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"golang.org/x/time/rate"
	"worldlotto/internal/metrics"
	"worldlotto/internal/models"
	"worldlotto/internal/scheduler"
	"worldlotto/internal/services"
)

const (
	userIDHeader     = "X-User-ID"
	adminTokenHeader = "X-Admin-Token"
	userIDKey        = "userID"
)

// HTTPHandler holds the dependencies for the HTTP handlers.
type HTTPHandler struct {
	service         *services.LotteryService
	autoDrawing     *scheduler.AutoDrawing
	adminToken      string
	purchaseLimiter *rate.Limiter
}

// NewHTTPHandler creates a new HTTPHandler. An empty admin token disables the admin routes
// and a nil limiter disables purchase throttling.
func NewHTTPHandler(service *services.LotteryService, autoDrawing *scheduler.AutoDrawing, adminToken string, purchaseLimiter *rate.Limiter) *HTTPHandler {
	return &HTTPHandler{
		service:         service,
		autoDrawing:     autoDrawing,
		adminToken:      adminToken,
		purchaseLimiter: purchaseLimiter,
	}
}

// response is the JSON envelope of every API reply.
type response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, response{Success: true, Data: data})
}

func respondError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, response{Success: false, Error: msg})
}

// respondServiceError maps service errors to HTTP statuses.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNoActiveDrawing), errors.Is(err, services.ErrDrawingNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrAccountNotFound), errors.Is(err, services.ErrTicketNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidNumbers),
		errors.Is(err, services.ErrInvalidJackpot),
		errors.Is(err, services.ErrNoTickets),
		errors.Is(err, services.ErrTooManyTickets):
		respondError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrInsufficientFunds):
		respondError(c, http.StatusPaymentRequired, err.Error())
	default:
		logger.Errorf("Request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		respondError(c, http.StatusInternalServerError, "internal server error")
	}
}

// RegisterRoutes registers all the application routes.
func (h *HTTPHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := router.Group("/api")
	api.GET("/lottery/current", h.GetCurrentDrawing)
	api.GET("/lottery/latest", h.GetLatestCompletedDrawing)
	api.GET("/lottery/classes", h.GetWinningClasses)
	api.GET("/lottery/auto-drawing", h.GetAutoDrawingStatus)
	api.GET("/lottery/display-overrides", h.GetDisplayOverrides)

	user := api.Group("/", h.UserMiddleware())
	user.GET("/lottery/tickets", h.GetMyTickets)
	user.GET("/lottery/tickets/current", h.GetCurrentDrawingTickets)
	user.GET("/lottery/ticket/:id", h.GetMyTicket)
	user.POST("/lottery/tickets", h.RateLimit(), h.PurchaseTickets)
	user.GET("/account", h.GetAccount)
	user.GET("/account/balance", h.GetBalance)

	admin := api.Group("/admin", h.AdminMiddleware())
	admin.POST("/drawing", h.PerformDrawing)
	admin.POST("/jackpot", h.UpdateJackpot)
	admin.GET("/stats", h.GetAdminStats)
	admin.GET("/tickets", h.GetAllTickets)
	admin.GET("/tickets/export", h.ExportTicketsCSV)
	admin.GET("/drawings", h.GetDrawingHistory)
	admin.GET("/drawing/:id", h.GetDrawing)
	admin.GET("/users", h.GetAllAccounts)
	admin.GET("/auto-drawing", h.GetAutoDrawingStatus)
	admin.POST("/auto-drawing", h.SetAutoDrawing)
	admin.POST("/auto-drawing/trigger", h.TriggerAutoDrawing)
	admin.GET("/display-overrides", h.GetDisplayOverrides)
	admin.POST("/display-overrides", h.UpdateDisplayOverrides)
	admin.DELETE("/display-overrides", h.ResetDisplayOverrides)
}

// UserMiddleware requires the caller's user id, which the authentication proxy puts in X-User-ID.
func (h *HTTPHandler) UserMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetHeader(userIDHeader)
		if userID == "" {
			respondError(c, http.StatusUnauthorized, "missing user id")
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

// AdminMiddleware requires X-Admin-Token to match the configured token.
func (h *HTTPHandler) AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.adminToken == "" {
			respondError(c, http.StatusForbidden, "admin API disabled")
			return
		}
		token := c.GetHeader(adminTokenHeader)
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.adminToken)) != 1 {
			respondError(c, http.StatusForbidden, "admin access required")
			return
		}
		c.Next()
	}
}

// RateLimit throttles ticket purchases across all users.
func (h *HTTPHandler) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.purchaseLimiter != nil && !h.purchaseLimiter.Allow() {
			respondError(c, http.StatusTooManyRequests, "too many requests")
			return
		}
		c.Next()
	}
}

// GetCurrentDrawing returns the drawing open for ticket sales.
func (h *HTTPHandler) GetCurrentDrawing(c *gin.Context) {
	drawing, err := h.service.CurrentDrawing(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, drawing)
}

// GetLatestCompletedDrawing returns the last closed drawing, or null before the first drawing.
func (h *HTTPHandler) GetLatestCompletedDrawing(c *gin.Context) {
	drawing, err := h.service.LatestCompletedDrawing(c.Request.Context())
	if errors.Is(err, services.ErrDrawingNotFound) {
		c.JSON(http.StatusOK, gin.H{"success": true, "data": nil})
		return
	}
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, drawing)
}

// GetWinningClasses returns the prize table.
func (h *HTTPHandler) GetWinningClasses(c *gin.Context) {
	respondOK(c, services.WinningClasses)
}

// GetMyTickets returns all tickets of the caller.
func (h *HTTPHandler) GetMyTickets(c *gin.Context) {
	tickets, err := h.service.TicketsByUser(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, tickets)
}

// GetCurrentDrawingTickets returns the caller's tickets for the active and the latest completed drawing.
func (h *HTTPHandler) GetCurrentDrawingTickets(c *gin.Context) {
	tickets, err := h.service.CurrentTicketsForUser(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, tickets)
}

// GetMyTicket returns one ticket of the caller.
func (h *HTTPHandler) GetMyTicket(c *gin.Context) {
	ticket, err := h.service.Ticket(c.Request.Context(), c.GetString(userIDKey), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, ticket)
}

type purchaseRequest struct {
	Tickets []models.NumberPick `json:"tickets"`
}

// PurchaseTickets buys tickets for the active drawing.
func (h *HTTPHandler) PurchaseTickets(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	for _, pick := range req.Tickets {
		if pick.QuickPick {
			continue
		}
		if err := services.ValidateNumbers(pick.MainNumbers, pick.WorldNumbers); err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	tickets, err := h.service.BuyTickets(c.Request.Context(), c.GetString(userIDKey), req.Tickets)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, tickets)
}

// GetAccount returns the caller's account.
func (h *HTTPHandler) GetAccount(c *gin.Context) {
	account, err := h.service.Account(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, account)
}

// GetBalance returns the caller's balance.
func (h *HTTPHandler) GetBalance(c *gin.Context) {
	balance, err := h.service.Balance(c.Request.Context(), c.GetString(userIDKey))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, gin.H{"balance": balance})
}

type drawingRequest struct {
	ManualNumbers *models.DrawNumbers `json:"manualNumbers"`
}

// PerformDrawing closes the active drawing, with manual numbers if given.
func (h *HTTPHandler) PerformDrawing(c *gin.Context) {
	var req drawingRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ManualNumbers != nil {
		if err := services.ValidateDrawNumbers(*req.ManualNumbers); err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	drawing, err := h.service.PerformDrawing(c.Request.Context(), req.ManualNumbers)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, drawing)
}

type jackpotRequest struct {
	NewAmount   *int64 `json:"newAmount"`
	IsSimulated *bool  `json:"isSimulated"`
}

// UpdateJackpot overrides the jackpot of the active drawing.
func (h *HTTPHandler) UpdateJackpot(c *gin.Context) {
	var req jackpotRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.NewAmount == nil || *req.NewAmount < 0 {
		respondError(c, http.StatusBadRequest, "invalid jackpot amount")
		return
	}
	isSimulated := true
	if req.IsSimulated != nil {
		isSimulated = *req.IsSimulated
	}

	drawing, err := h.service.UpdateJackpot(c.Request.Context(), *req.NewAmount, isSimulated)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, drawing)
}

// GetAdminStats returns the sales statistics.
func (h *HTTPHandler) GetAdminStats(c *gin.Context) {
	stats, err := h.service.AdminStats(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, stats)
}

// GetAllTickets returns every ticket sold.
func (h *HTTPHandler) GetAllTickets(c *gin.Context) {
	tickets, err := h.service.AllTickets(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, tickets)
}

// GetDrawingHistory returns all drawings, newest first.
func (h *HTTPHandler) GetDrawingHistory(c *gin.Context) {
	history, err := h.service.DrawingHistory(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, history)
}

// GetDrawing returns a single drawing.
func (h *HTTPHandler) GetDrawing(c *gin.Context) {
	drawing, err := h.service.Drawing(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, drawing)
}

// GetAllAccounts returns every account with its balance.
func (h *HTTPHandler) GetAllAccounts(c *gin.Context) {
	accounts, err := h.service.Accounts(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, accounts)
}

// GetAutoDrawingStatus returns the scheduler state and countdown.
func (h *HTTPHandler) GetAutoDrawingStatus(c *gin.Context) {
	respondOK(c, h.autoDrawing.Status())
}

type autoDrawingRequest struct {
	Enabled *bool `json:"enabled"`
}

// SetAutoDrawing enables or disables the scheduler.
func (h *HTTPHandler) SetAutoDrawing(c *gin.Context) {
	var req autoDrawingRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		respondError(c, http.StatusBadRequest, "enabled flag required")
		return
	}
	h.autoDrawing.SetEnabled(*req.Enabled)
	respondOK(c, h.autoDrawing.Status())
}

// TriggerAutoDrawing runs a heuristic drawing now without changing the schedule.
func (h *HTTPHandler) TriggerAutoDrawing(c *gin.Context) {
	if !h.autoDrawing.TriggerManualDrawing(c.Request.Context()) {
		respondError(c, http.StatusConflict, "drawing could not be performed")
		return
	}
	drawing, err := h.service.LatestCompletedDrawing(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, drawing)
}

// GetDisplayOverrides returns the presentation overrides of the active drawing.
func (h *HTTPHandler) GetDisplayOverrides(c *gin.Context) {
	overrides, err := h.service.DisplayOverrides(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, overrides)
}

type displayOverridesRequest struct {
	Title string `json:"title"`
	Date  string `json:"date"`
	Time  string `json:"time"`
}

// UpdateDisplayOverrides sets the presentation overrides of the active drawing.
func (h *HTTPHandler) UpdateDisplayOverrides(c *gin.Context) {
	var req displayOverridesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	drawing, err := h.service.UpdateDisplayOverrides(c.Request.Context(), models.DisplayOverrides{
		ManualTitle: req.Title,
		ManualDate:  req.Date,
		ManualTime:  req.Time,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, drawing.DisplayOverrides)
}

// ResetDisplayOverrides clears the presentation overrides of the active drawing.
func (h *HTTPHandler) ResetDisplayOverrides(c *gin.Context) {
	if _, err := h.service.ResetDisplayOverrides(c.Request.Context()); err != nil {
		respondServiceError(c, err)
		return
	}
	respondOK(c, models.DisplayOverrides{})
}
