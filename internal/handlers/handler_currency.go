package handlers

import (
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/hotel_billing/internal/core/ports/services"
	"github.com/SscSPs/hotel_billing/internal/dto"
	"github.com/SscSPs/hotel_billing/internal/middleware"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// currencyHandler handles HTTP requests related to currencies.
type currencyHandler struct {
	currencyService portssvc.CurrencySvcFacade
}

// newCurrencyHandler creates a new currencyHandler.
func newCurrencyHandler(cs portssvc.CurrencySvcFacade) *currencyHandler {
	return &currencyHandler{
		currencyService: cs,
	}
}

// RegisterCurrencyRoutes registers routes related to currencies.
func RegisterCurrencyRoutes(rg *gin.RouterGroup, currencyService portssvc.CurrencySvcFacade) {
	h := newCurrencyHandler(currencyService)

	currencies := rg.Group("/currencies")
	{
		currencies.POST("", h.createCurrency)
		currencies.GET("", h.listCurrencies)
		currencies.GET("/convert", h.convert)
		currencies.GET("/:code", h.getCurrencyByCode)
		currencies.PUT("/:code", h.updateCurrency)
		currencies.PUT("/:code/rate", h.updateRate)
		currencies.POST("/:code/default", h.setDefault)
		currencies.DELETE("/:code", h.deleteCurrency)
	}
}

// createCurrency godoc
// @Summary Create a new currency
// @Description Adds a currency to the registry. With isDefault the registry is rebased onto it.
// @Tags currencies
// @Accept  json
// @Produce  json
// @Param   currency body dto.CreateCurrencyRequest true "Currency details"
// @Success 201 {object} dto.CurrencyResponse
// @Failure 400 {object} map[string]string "Invalid input or duplicate code"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 500 {object} map[string]string "Failed to create currency"
// @Security BearerAuth
// @Router /currencies [post]
func (h *currencyHandler) createCurrency(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreateCurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, "Invalid request format", err)
		return
	}

	creatorUserID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		logger.Error("Creator user ID not found in context")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	createdCurrency, err := h.currencyService.CreateCurrency(c.Request.Context(), req, creatorUserID)
	if err != nil {
		respondError(c, logger, err, "Failed to create currency")
		return
	}

	c.JSON(http.StatusCreated, dto.ToCurrencyResponse(createdCurrency))
}

// getCurrencyByCode godoc
// @Summary Get a currency by code
// @Description Retrieves details for a specific currency by its 3-letter code
// @Tags currencies
// @Produce  json
// @Param   code path string true "Currency Code (3 letters)" MinLength(3) MaxLength(3)
// @Success 200 {object} dto.CurrencyResponse
// @Failure 404 {object} map[string]string "Currency not found"
// @Failure 500 {object} map[string]string "Failed to retrieve currency"
// @Security BearerAuth
// @Router /currencies/{code} [get]
func (h *currencyHandler) getCurrencyByCode(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	currencyCode := c.Param("code")

	// Basic validation - service likely does more thorough validation
	if len(currencyCode) != 3 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Currency code must be 3 letters"})
		return
	}

	currency, err := h.currencyService.GetCurrencyByCode(c.Request.Context(), currencyCode)
	if err != nil {
		respondError(c, logger, err, "Failed to retrieve currency")
		return
	}

	c.JSON(http.StatusOK, dto.ToCurrencyResponse(currency))
}

// listCurrencies godoc
// @Summary List all currencies
// @Description Retrieves a list of all available currencies
// @Tags currencies
// @Produce  json
// @Success 200 {array} dto.CurrencyResponse
// @Failure 500 {object} map[string]string "Failed to list currencies"
// @Security BearerAuth
// @Router /currencies [get]
func (h *currencyHandler) listCurrencies(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	currencies, err := h.currencyService.ListCurrencies(c.Request.Context())
	if err != nil {
		respondError(c, logger, err, "Failed to list currencies")
		return
	}

	c.JSON(http.StatusOK, dto.ToListCurrencyResponse(currencies))
}

// updateCurrency godoc
// @Summary Update currency display fields
// @Tags currencies
// @Accept  json
// @Produce  json
// @Param   code path string true "Currency Code"
// @Param   currency body dto.UpdateCurrencyRequest true "Fields to change"
// @Success 200 {object} dto.CurrencyResponse
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 404 {object} map[string]string "Currency not found"
// @Security BearerAuth
// @Router /currencies/{code} [put]
func (h *currencyHandler) updateCurrency(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.UpdateCurrencyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, "Invalid request format", err)
		return
	}
	userID, _ := middleware.GetUserIDFromContext(c)

	currency, err := h.currencyService.UpdateCurrency(c.Request.Context(), c.Param("code"), req, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to update currency")
		return
	}
	c.JSON(http.StatusOK, dto.ToCurrencyResponse(currency))
}

// updateRate godoc
// @Summary Update an exchange rate
// @Description Sets the rate of a non-base currency relative to the base. The base is fixed at 1.
// @Tags currencies
// @Accept  json
// @Produce  json
// @Param   code path string true "Currency Code"
// @Param   rate body dto.UpdateRateRequest true "New rate"
// @Success 200 {object} dto.CurrencyResponse
// @Failure 400 {object} map[string]string "Invalid rate"
// @Failure 404 {object} map[string]string "Currency not found"
// @Failure 409 {object} map[string]string "Base currency rate is immutable"
// @Security BearerAuth
// @Router /currencies/{code}/rate [put]
func (h *currencyHandler) updateRate(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.UpdateRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, logger, "Invalid request format", err)
		return
	}
	userID, _ := middleware.GetUserIDFromContext(c)

	currency, err := h.currencyService.UpdateRate(c.Request.Context(), c.Param("code"), req.ExchangeRate, userID)
	if err != nil {
		respondError(c, logger, err, "Failed to update exchange rate")
		return
	}
	c.JSON(http.StatusOK, dto.ToCurrencyResponse(currency))
}

// setDefault godoc
// @Summary Make a currency the base
// @Description Rebases every stored rate onto the chosen currency in one transaction.
// @Tags currencies
// @Produce  json
// @Param   code path string true "Currency Code"
// @Success 200 {object} dto.CurrencyResponse
// @Failure 404 {object} map[string]string "Currency not found"
// @Security BearerAuth
// @Router /currencies/{code}/default [post]
func (h *currencyHandler) setDefault(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	userID, _ := middleware.GetUserIDFromContext(c)

	currency, err := h.currencyService.SetDefault(c.Request.Context(), c.Param("code"), userID)
	if err != nil {
		respondError(c, logger, err, "Failed to set default currency")
		return
	}
	c.JSON(http.StatusOK, dto.ToCurrencyResponse(currency))
}

// deleteCurrency godoc
// @Summary Delete a currency
// @Tags currencies
// @Param   code path string true "Currency Code"
// @Success 204
// @Failure 404 {object} map[string]string "Currency not found"
// @Failure 409 {object} map[string]string "Protected or in use"
// @Security BearerAuth
// @Router /currencies/{code} [delete]
func (h *currencyHandler) deleteCurrency(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	if err := h.currencyService.DeleteCurrency(c.Request.Context(), c.Param("code")); err != nil {
		respondError(c, logger, err, "Failed to delete currency")
		return
	}
	c.Status(http.StatusNoContent)
}

// convert godoc
// @Summary Convert an amount between currencies
// @Tags currencies
// @Produce  json
// @Param   amount query string true "Amount"
// @Param   from query string true "Source currency"
// @Param   to query string true "Target currency"
// @Success 200 {object} dto.ConvertResponse
// @Failure 400 {object} map[string]string "Invalid input"
// @Failure 404 {object} map[string]string "Currency not found"
// @Security BearerAuth
// @Router /currencies/convert [get]
func (h *currencyHandler) convert(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var q dto.ConvertQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, logger, "Invalid query", err)
		return
	}
	amount, err := decimal.NewFromString(q.Amount)
	if err != nil {
		badRequest(c, logger, "Invalid amount", err)
		return
	}

	ctx := c.Request.Context()
	converted, rate, err := h.currencyService.ConvertAmount(ctx, amount, q.From, q.To)
	if err != nil {
		respondError(c, logger, err, "Failed to convert amount")
		return
	}
	logger.Debug("Converted amount", slog.String("from", q.From), slog.String("to", q.To))
	c.JSON(http.StatusOK, dto.ConvertResponse{
		Amount:    amount,
		From:      q.From,
		To:        q.To,
		Rate:      rate,
		Converted: converted,
		Formatted: h.currencyService.FormatAmount(ctx, converted, q.To),
	})
}
