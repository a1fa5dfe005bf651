package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"shop-service/internal/models"
	"shop-service/internal/service"
	"shop-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Pinger is a dependency the readiness probe checks
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler contains HTTP handlers
type Handler struct {
	orders    *service.OrderService
	referrals *service.ReferralService
	ledger    *service.LedgerService
	jwtSecret []byte
	checks    map[string]Pinger
}

// NewHandler creates a new HTTP handler. checks feed /ready.
func NewHandler(
	orders *service.OrderService,
	referrals *service.ReferralService,
	ledger *service.LedgerService,
	jwtSecret []byte,
	checks map[string]Pinger,
) *Handler {
	return &Handler{
		orders:    orders,
		referrals: referrals,
		ledger:    ledger,
		jwtSecret: jwtSecret,
		checks:    checks,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(requestLogger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1", authRequired(h.jwtSecret))
	{
		v1.POST("/orders", h.placeOrder)
		v1.GET("/orders/me", h.getMyOrders)
		v1.GET("/orders/:id", h.getOrder)
		v1.POST("/orders/:id/cancel", h.cancelOrder)

		v1.POST("/coupons/preview", h.previewCoupon)

		v1.GET("/referrals/me", h.getMyReferrals)
		v1.GET("/referrals/me/earnings", h.getReferralEarnings)

		v1.GET("/ledger/me", h.getMyLedger)
		v1.GET("/ledger/me/balance", h.getMyBalance)

		v1.POST("/withdrawals", h.requestWithdrawal)
		v1.GET("/withdrawals/me", h.getMyWithdrawals)
		v1.GET("/withdrawals/:id", h.getWithdrawal)
	}

	admin := v1.Group("/admin", adminOnly())
	{
		admin.GET("/orders", h.getAllOrders)
		admin.PATCH("/orders/:id/status", h.updateOrderStatus)
		admin.POST("/orders/:id/deliver", h.markDelivered)
		admin.POST("/referrals", h.createReferral)
		admin.POST("/referrals/process-holds", h.processHolds)
		admin.POST("/withdrawals/:id/complete", h.completeWithdrawal)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck pings every dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check.Ping(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "failed": failed})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func pathUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		badRequest(c, "invalid "+name, nil)
		return uuid.Nil, false
	}
	return id, true
}

func pagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "10"))
	return page, limit
}

// placeOrder handles order creation
func (h *Handler) placeOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}
	req.UserID = principal(c).UserID
	req.IdempotencyKey = c.GetHeader("Idempotency-Key")

	summary, err := h.orders.PlaceOrder(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, summary)
}

func (h *Handler) getMyOrders(c *gin.Context) {
	page, limit := pagination(c)
	status := models.OrderStatus(c.Query("status"))

	result, err := h.orders.GetMyOrders(c.Request.Context(), principal(c).UserID, status, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// getOrder handles get order by ID
func (h *Handler) getOrder(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	summary, err := h.orders.GetOrder(c.Request.Context(), id, principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) cancelOrder(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	summary, err := h.orders.CancelOrder(c.Request.Context(), id, principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type previewCouponRequest struct {
	Code       string          `json:"code" binding:"required"`
	ItemsTotal decimal.Decimal `json:"items_total"`
}

func (h *Handler) previewCoupon(c *gin.Context) {
	var req previewCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}

	preview, err := h.orders.PreviewCoupon(c.Request.Context(), req.Code, principal(c).UserID, req.ItemsTotal)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

func (h *Handler) getMyReferrals(c *gin.Context) {
	referrals, err := h.referrals.GetMyReferrals(c.Request.Context(), principal(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"referrals": referrals})
}

func (h *Handler) getReferralEarnings(c *gin.Context) {
	total, err := h.referrals.GetReferralEarnings(c.Request.Context(), principal(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total_earnings": total})
}

func (h *Handler) getMyLedger(c *gin.Context) {
	entries, err := h.ledger.GetUserLedger(c.Request.Context(), principal(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *Handler) getMyBalance(c *gin.Context) {
	balance, err := h.ledger.GetBalanceBreakdown(c.Request.Context(), principal(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, balance)
}

type withdrawalRequest struct {
	Amount decimal.Decimal         `json:"amount"`
	Method models.WithdrawalMethod `json:"method" binding:"required"`
}

func (h *Handler) requestWithdrawal(c *gin.Context) {
	var req withdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}

	w, err := h.ledger.RequestWithdrawal(c.Request.Context(), principal(c).UserID, req.Amount, req.Method)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, w)
}

func (h *Handler) getMyWithdrawals(c *gin.Context) {
	withdrawals, err := h.ledger.GetMyWithdrawals(c.Request.Context(), principal(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": withdrawals})
}

func (h *Handler) getWithdrawal(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	w, err := h.ledger.GetWithdrawal(c.Request.Context(), id, principal(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// admin

func (h *Handler) getAllOrders(c *gin.Context) {
	page, limit := pagination(c)
	filter := models.OrderFilter{
		Status: models.OrderStatus(c.Query("status")),
		Page:   page,
		Limit:  limit,
	}
	if raw := c.Query("user_id"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			badRequest(c, "invalid user_id", nil)
			return
		}
		filter.UserID = uuid.NullUUID{UUID: userID, Valid: true}
	}

	result, err := h.orders.GetAllOrders(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type updateStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

func (h *Handler) updateOrderStatus(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}

	summary, err := h.orders.UpdateOrderStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) markDelivered(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	summary, err := h.orders.MarkDelivered(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

type createReferralRequest struct {
	InviterID uuid.UUID `json:"inviter_id" binding:"required"`
	InviteeID uuid.UUID `json:"invitee_id" binding:"required"`
	Code      *string   `json:"referral_code"`
}

func (h *Handler) createReferral(c *gin.Context) {
	var req createReferralRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}

	referral, err := h.referrals.CreateReferral(c.Request.Context(), req.InviterID, req.InviteeID, req.Code)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, referral)
}

func (h *Handler) processHolds(c *gin.Context) {
	completed, err := h.referrals.ProcessHoldExpired(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"completed": completed})
}

type completeWithdrawalRequest struct {
	Success     *bool   `json:"success" binding:"required"`
	ReferenceID *string `json:"reference_id"`
}

func (h *Handler) completeWithdrawal(c *gin.Context) {
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	var req completeWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body", err)
		return
	}

	w, err := h.ledger.CompleteWithdrawal(c.Request.Context(), id, *req.Success, req.ReferenceID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, w)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

// requestLogger writes one structured line per request
func requestLogger() gin.HandlerFunc {
	logger := util.GetLogger()
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			fields = append(fields, zap.String("errors", errs.String()))
		}
		logger.Info("HTTP request", fields...)
	}
}
