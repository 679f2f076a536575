package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/SscSPs/hotel_billing/internal/core/domain"
	portssvc "github.com/SscSPs/hotel_billing/internal/core/ports/services"
	"github.com/SscSPs/hotel_billing/internal/dto"
	"github.com/SscSPs/hotel_billing/internal/middleware"
	"github.com/SscSPs/hotel_billing/internal/utils/pagination"
	"github.com/gin-gonic/gin"
)

// invoiceHandler handles invoice lifecycle requests.
type invoiceHandler struct {
	invoiceService portssvc.InvoiceSvcFacade
	paymentService portssvc.PaymentSvcFacade
}

// RegisterInvoiceRoutes registers routes related to invoices.
func RegisterInvoiceRoutes(rg *gin.RouterGroup, invoiceService portssvc.InvoiceSvcFacade, paymentService portssvc.PaymentSvcFacade) {
	h := &invoiceHandler{invoiceService: invoiceService, paymentService: paymentService}

	invoices := rg.Group("/invoices")
	{
		invoices.POST("", h.createInvoice)
		invoices.GET("", h.listInvoices)
		invoices.GET("/:invoiceID", h.getInvoice)
		invoices.PUT("/:invoiceID/lines", h.updateLines)
		invoices.POST("/:invoiceID/issue", h.issueInvoice)
		invoices.POST("/:invoiceID/cancel", h.cancelInvoice)
		invoices.POST("/:invoiceID/overdue", h.markOverdue)
		invoices.GET("/:invoiceID/balance", h.getBalance)
		invoices.POST("/:invoiceID/reconcile-deposits", h.reconcileDeposits)
	}
}

// bindOptionalJSON binds the body if there is one.
func bindOptionalJSON(c *gin.Context, obj any) error {
	if err := c.ShouldBindJSON(obj); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// createInvoice godoc
// @Summary Create a draft invoice
// @Description Prices the line items with the hotel's default rates unless overridden.
// @Tags invoices
// @Accept  json
// @Produce  json
// @Param   invoice body dto.CreateInvoiceRequest true "Invoice details"
// @Success 201 {object} dto.InvoiceResponse
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 404 {object} map[string]string "Currency not found"
// @Security BearerAuth
// @Router /invoices [post]
func (h *invoiceHandler) createInvoice(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, "Invalid request format", err)
		return
	}
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	invoice, err := h.invoiceService.CreateInvoice(c.Request.Context(), req, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to create invoice")
		return
	}
	c.JSON(http.StatusCreated, dto.ToInvoiceResponse(invoice))
}

// listInvoices godoc
// @Summary List invoices
// @Tags invoices
// @Produce  json
// @Param   guestRef query string false "Guest reference"
// @Param   status query string false "Invoice status"
// @Param   limit query int false "Page size"
// @Param   nextToken query string false "Token from a previous page"
// @Success 200 {object} dto.ListInvoicesResponse
// @Failure 400 {object} map[string]string "Invalid query"
// @Security BearerAuth
// @Router /invoices [get]
func (h *invoiceHandler) listInvoices(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var q dto.ListInvoicesQuery
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

	invoices, err := h.invoiceService.ListInvoices(c.Request.Context(), domain.InvoiceFilter{
		GuestRef: q.GuestRef,
		Status:   domain.InvoiceStatus(q.Status),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		respondError(c, logger, err, "Failed to list invoices")
		return
	}
	c.JSON(http.StatusOK, dto.ListInvoicesResponse{
		Invoices:  dto.ToListInvoiceResponse(invoices),
		NextToken: pagination.NextToken(offset, limit, len(invoices)),
	})
}

// getInvoice godoc
// @Summary Get an invoice
// @Tags invoices
// @Produce  json
// @Param   invoiceID path string true "Invoice ID"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 404 {object} map[string]string "Invoice not found"
// @Security BearerAuth
// @Router /invoices/{invoiceID} [get]
func (h *invoiceHandler) getInvoice(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	invoice, err := h.invoiceService.GetInvoice(c.Request.Context(), c.Param("invoiceID"))
	if err != nil {
		respondError(c, logger, err, "Failed to retrieve invoice")
		return
	}
	c.JSON(http.StatusOK, dto.ToInvoiceResponse(invoice))
}

// updateLines godoc
// @Summary Replace the lines of a draft
// @Tags invoices
// @Accept  json
// @Produce  json
// @Param   invoiceID path string true "Invoice ID"
// @Param   lines body dto.UpdateInvoiceLinesRequest true "New lines and optional rate overrides"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 409 {object} map[string]string "Invoice is no longer a draft"
// @Security BearerAuth
// @Router /invoices/{invoiceID}/lines [put]
func (h *invoiceHandler) updateLines(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.UpdateInvoiceLinesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, "Invalid request format", err)
		return
	}
	userID, _ := middleware.GetUserIDFromContext(c)

	invoice, err := h.invoiceService.UpdateInvoiceLines(c.Request.Context(), c.Param("invoiceID"), req, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to update invoice")
		return
	}
	c.JSON(http.StatusOK, dto.ToInvoiceResponse(invoice))
}

// issueInvoice godoc
// @Summary Issue a draft invoice
// @Description Freezes the charges and sets the due date (payment terms when omitted).
// @Tags invoices
// @Accept  json
// @Produce  json
// @Param   invoiceID path string true "Invoice ID"
// @Param   issue body dto.IssueInvoiceRequest false "Optional due date"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 400 {object} map[string]string "Empty invoice or invalid due date"
// @Failure 409 {object} map[string]string "Invoice is no longer a draft"
// @Security BearerAuth
// @Router /invoices/{invoiceID}/issue [post]
func (h *invoiceHandler) issueInvoice(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.IssueInvoiceRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, logger, "Invalid request format", err)
		return
	}
	userID, _ := middleware.GetUserIDFromContext(c)

	invoice, err := h.invoiceService.IssueInvoice(c.Request.Context(), c.Param("invoiceID"), req, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to issue invoice")
		return
	}
	c.JSON(http.StatusOK, dto.ToInvoiceResponse(invoice))
}

// cancelInvoice godoc
// @Summary Cancel an invoice
// @Tags invoices
// @Accept  json
// @Produce  json
// @Param   invoiceID path string true "Invoice ID"
// @Param   cancel body dto.CancelInvoiceRequest true "Reason"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 409 {object} map[string]string "Paid or already cancelled"
// @Security BearerAuth
// @Router /invoices/{invoiceID}/cancel [post]
func (h *invoiceHandler) cancelInvoice(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CancelInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, "Invalid request format", err)
		return
	}
	userID, _ := middleware.GetUserIDFromContext(c)

	invoice, err := h.invoiceService.CancelInvoice(c.Request.Context(), c.Param("invoiceID"), req.Reason, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to cancel invoice")
		return
	}
	c.JSON(http.StatusOK, dto.ToInvoiceResponse(invoice))
}

// markOverdue godoc
// @Summary Mark an invoice overdue
// @Description Idempotent; invoices that are not past due are returned unchanged.
// @Tags invoices
// @Produce  json
// @Param   invoiceID path string true "Invoice ID"
// @Success 200 {object} dto.InvoiceResponse
// @Failure 404 {object} map[string]string "Invoice not found"
// @Security BearerAuth
// @Router /invoices/{invoiceID}/overdue [post]
func (h *invoiceHandler) markOverdue(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, _ := middleware.GetUserIDFromContext(c)

	invoice, err := h.invoiceService.MarkOverdue(c.Request.Context(), c.Param("invoiceID"), time.Time{}, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to mark invoice overdue")
		return
	}
	c.JSON(http.StatusOK, dto.ToInvoiceResponse(invoice))
}

// getBalance godoc
// @Summary Get an invoice balance
// @Description Compares the cached amount paid with a replay of the payment ledger.
// @Tags invoices
// @Produce  json
// @Param   invoiceID path string true "Invoice ID"
// @Success 200 {object} domain.InvoiceBalance
// @Failure 404 {object} map[string]string "Invoice not found"
// @Security BearerAuth
// @Router /invoices/{invoiceID}/balance [get]
func (h *invoiceHandler) getBalance(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	balance, err := h.invoiceService.GetInvoiceBalance(c.Request.Context(), c.Param("invoiceID"))
	if err != nil {
		respondError(c, logger, err, "Failed to compute invoice balance")
		return
	}
	c.JSON(http.StatusOK, balance)
}

// reconcileDeposits godoc
// @Summary Apply a guest's held deposits
// @Description Applies unattached deposits oldest first; those that would overpay are skipped.
// @Tags invoices
// @Accept  json
// @Produce  json
// @Param   invoiceID path string true "Invoice ID"
// @Param   reconcile body dto.ReconcileDepositsRequest false "Guest (defaults to the invoice's guest)"
// @Success 200 {object} dto.ReconciliationResponse
// @Failure 400 {object} map[string]string "Guest mismatch"
// @Failure 409 {object} map[string]string "Invoice cannot accept payments"
// @Security BearerAuth
// @Router /invoices/{invoiceID}/reconcile-deposits [post]
func (h *invoiceHandler) reconcileDeposits(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.ReconcileDepositsRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		badRequest(c, logger, "Invalid request format", err)
		return
	}
	userID, _ := middleware.GetUserIDFromContext(c)

	result, err := h.paymentService.ReconcileOrphanDeposits(c.Request.Context(), req.GuestRef, c.Param("invoiceID"), userID)
	if err != nil {
		respondError(c, logger, err, "Failed to reconcile deposits")
		return
	}
	c.JSON(http.StatusOK, dto.ToReconciliationResponse(result))
}
