package handlers

import (
	"log/slog"
	"net/http"

	"github.com/SscSPs/hotel_billing/internal/core/domain"
	portssvc "github.com/SscSPs/hotel_billing/internal/core/ports/services"
	"github.com/SscSPs/hotel_billing/internal/dto"
	"github.com/SscSPs/hotel_billing/internal/middleware"
	"github.com/SscSPs/hotel_billing/internal/utils/pagination"
	"github.com/gin-gonic/gin"
)

// paymentHandler handles payment capture and reconciliation requests.
type paymentHandler struct {
	paymentService portssvc.PaymentSvcFacade
}

// RegisterPaymentRoutes registers routes related to payments.
func RegisterPaymentRoutes(rg *gin.RouterGroup, paymentService portssvc.PaymentSvcFacade) {
	h := &paymentHandler{paymentService: paymentService}

	payments := rg.Group("/payments")
	{
		payments.POST("", h.recordPayment)
		payments.GET("", h.listPayments)
		payments.GET("/:paymentID", h.getPayment)
		payments.POST("/:paymentID/apply", h.applyPayment)
		payments.POST("/:paymentID/reverse", h.reversePayment)
	}
}

// recordPayment godoc
// @Summary Record a payment
// @Description Appends a ledger entry. With invoiceID it is applied in the same transaction; without it the payment is held as a deposit.
// @Tags payments
// @Accept  json
// @Produce  json
// @Param   Idempotency-Key header string false "Retry key; repeats return the original payment"
// @Param   payment body dto.RecordPaymentRequest true "Payment details"
// @Success 201 {object} dto.PaymentResultResponse
// @Failure 400 {object} map[string]string "Invalid input or guest mismatch"
// @Failure 404 {object} map[string]string "Currency or invoice not found"
// @Failure 409 {object} map[string]string "Invoice cannot accept payments or key in progress"
// @Failure 422 {object} map[string]string "Overpayment"
// @Security BearerAuth
// @Router /payments [post]
func (h *paymentHandler) recordPayment(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, "Invalid request format", err)
		return
	}
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	key := c.GetHeader(dto.IdempotencyKeyHeader)
	if key != "" {
		logger = logger.With(slog.String("idempotency_key", key))
	}

	result, err := h.paymentService.RecordPayment(c.Request.Context(), req, key, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to record payment")
		return
	}
	c.JSON(http.StatusCreated, dto.ToPaymentResultResponse(result))
}

// listPayments godoc
// @Summary List payments
// @Tags payments
// @Produce  json
// @Param   invoiceID query string false "Invoice ID"
// @Param   guestRef query string false "Guest reference"
// @Param   depositsOnly query bool false "Only deposits"
// @Param   limit query int false "Page size"
// @Param   nextToken query string false "Token from a previous page"
// @Success 200 {object} dto.ListPaymentsResponse
// @Failure 400 {object} map[string]string "Invalid query"
// @Security BearerAuth
// @Router /payments [get]
func (h *paymentHandler) listPayments(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var q dto.ListPaymentsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, logger, "Invalid query", err)
		return
	}
	offset, err := pagination.DecodeOffsetToken(q.NextToken)
	if err != nil {
		badRequest(c, logger, "Invalid nextToken", err)
		return
	}
	limit := pagination.ClampLimit(q.Limit)

	payments, err := h.paymentService.ListPayments(c.Request.Context(), domain.PaymentFilter{
		InvoiceID:    q.InvoiceID,
		GuestRef:     q.GuestRef,
		DepositsOnly: q.DepositsOnly,
		Limit:        limit,
		Offset:       offset,
	})
	if err != nil {
		respondError(c, logger, err, "Failed to list payments")
		return
	}
	c.JSON(http.StatusOK, dto.ListPaymentsResponse{
		Payments:  dto.ToListPaymentResponse(payments),
		NextToken: pagination.NextToken(offset, limit, len(payments)),
	})
}

// getPayment godoc
// @Summary Get a payment
// @Tags payments
// @Produce  json
// @Param   paymentID path string true "Payment ID"
// @Success 200 {object} dto.PaymentResponse
// @Failure 404 {object} map[string]string "Payment not found"
// @Security BearerAuth
// @Router /payments/{paymentID} [get]
func (h *paymentHandler) getPayment(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	payment, err := h.paymentService.GetPayment(c.Request.Context(), c.Param("paymentID"))
	if err != nil {
		respondError(c, logger, err, "Failed to retrieve payment")
		return
	}
	c.JSON(http.StatusOK, dto.ToPaymentResponse(payment))
}

// applyPayment godoc
// @Summary Apply a held payment to an invoice
// @Tags payments
// @Accept  json
// @Produce  json
// @Param   paymentID path string true "Payment ID"
// @Param   apply body dto.ApplyPaymentRequest true "Target invoice"
// @Success 200 {object} dto.PaymentResultResponse
// @Failure 409 {object} map[string]string "Already applied or invoice cannot accept payments"
// @Failure 422 {object} map[string]string "Overpayment"
// @Security BearerAuth
// @Router /payments/{paymentID}/apply [post]
func (h *paymentHandler) applyPayment(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.ApplyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, "Invalid request format", err)
		return
	}
	userID, _ := middleware.GetUserIDFromContext(c)

	result, err := h.paymentService.ApplyPayment(c.Request.Context(), c.Param("paymentID"), req.InvoiceID, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to apply payment")
		return
	}
	c.JSON(http.StatusOK, dto.ToPaymentResultResponse(result))
}

// reversePayment godoc
// @Summary Reverse a payment
// @Description Appends a reversing entry and removes the applied amount from the invoice, if any.
// @Tags payments
// @Accept  json
// @Produce  json
// @Param   paymentID path string true "Payment ID"
// @Param   reverse body dto.ReversePaymentRequest true "Reason"
// @Success 201 {object} dto.PaymentResultResponse
// @Failure 400 {object} map[string]string "A reversal cannot be reversed"
// @Failure 409 {object} map[string]string "Already reversed or invoice frozen"
// @Security BearerAuth
// @Router /payments/{paymentID}/reverse [post]
func (h *paymentHandler) reversePayment(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.ReversePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, "Invalid request format", err)
		return
	}
	userID, _ := middleware.GetUserIDFromContext(c)

	result, err := h.paymentService.ReversePayment(c.Request.Context(), c.Param("paymentID"), req.Reason, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to reverse payment")
		return
	}
	c.JSON(http.StatusCreated, dto.ToPaymentResultResponse(result))
}
