package handlers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/SscSPs/hotel_billing/internal/core/domain"
	"github.com/SscSPs/hotel_billing/internal/core/services"
	"github.com/SscSPs/hotel_billing/internal/dto"
	"github.com/SscSPs/hotel_billing/internal/handlers"
	"github.com/SscSPs/hotel_billing/internal/middleware"
	"github.com/SscSPs/hotel_billing/internal/platform/config"
	"github.com/SscSPs/hotel_billing/internal/platform/metrics"
	"github.com/SscSPs/hotel_billing/internal/repositories/idempotency"
	"github.com/SscSPs/hotel_billing/internal/repositories/memory"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

const (
	testSecret = "handler-test-secret"
	testUser   = "cashier-1"
	guestRef   = "guest-1"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type HandlersTestSuite struct {
	suite.Suite
	router *gin.Engine
	idem   *idempotency.MemoryStore
	token  string
}

func testConfig() *config.Config {
	return &config.Config{
		Port:      "8080",
		Store:     config.StoreMemory,
		JWTSecret: testSecret,
		Billing: config.BillingConfig{
			DefaultTaxRate:        decimal.RequireFromString("18"),
			DefaultServiceCharge:  decimal.RequireFromString("10"),
			DefaultDiscount:       decimal.RequireFromString("10"),
			TaxRateCeiling:        decimal.RequireFromString("100"),
			PaymentTerms:          14 * 24 * time.Hour,
			AutoReconcileDeposits: true,
			BaseCurrency:          config.SystemCurrency{Code: "USD", Name: "US Dollar", Symbol: "$"},
			SecondaryCurrency:     config.SystemCurrency{Code: "UGX", Name: "Ugandan Shilling", Symbol: "USh", Rate: decimal.RequireFromString("3800")},
			IdempotencyTTL:        time.Hour,
			InvoiceNumberNode:     2,
		},
	}
}

func signToken(secret, subject string) string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}
	return signed
}

func (suite *HandlersTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	suite.token = signToken(testSecret, testUser)
}

func (suite *HandlersTestSuite) SetupTest() {
	cfg := testConfig()
	registry := prometheus.NewRegistry()
	suite.idem = idempotency.NewMemoryStore(0)

	container, err := services.NewServiceContainer(cfg, memory.NewStore().Provider(suite.idem), metrics.NewBillingMetrics(registry))
	suite.Require().NoError(err)
	suite.Require().NoError(container.Currency.InitializeStaticData(suite.T().Context()))

	r := gin.New()
	r.Use(middleware.StructuredLoggingMiddleware(slog.New(slog.NewTextHandler(io.Discard, nil))))
	handlers.RegisterRoutes(r, cfg, container, registry)
	suite.router = r
}

func (suite *HandlersTestSuite) TearDownTest() {
	suite.Require().NoError(suite.idem.Close())
}

func (suite *HandlersTestSuite) request(method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		suite.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+suite.token)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *HandlersTestSuite) decode(w *httptest.ResponseRecorder, target any) {
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), target), w.Body.String())
}

func (suite *HandlersTestSuite) requireError(w *httptest.ResponseRecorder, status int, code string) {
	suite.Require().Equal(status, w.Code, w.Body.String())
	var body errorBody
	suite.decode(w, &body)
	suite.NotEmpty(body.Error)
	suite.Equal(code, body.Code)
}

func (suite *HandlersTestSuite) createInvoice(price string) dto.InvoiceResponse {
	w := suite.request(http.MethodPost, "/api/v1/invoices", dto.CreateInvoiceRequest{
		GuestRef:     guestRef,
		CurrencyCode: "USD",
		LineItems:    []dto.LineItemRequest{{Description: "Room 101", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString(price)}},
	}, nil)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var inv dto.InvoiceResponse
	suite.decode(w, &inv)
	return inv
}

func (suite *HandlersTestSuite) issueInvoice(id string) dto.InvoiceResponse {
	w := suite.request(http.MethodPost, "/api/v1/invoices/"+id+"/issue", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var inv dto.InvoiceResponse
	suite.decode(w, &inv)
	return inv
}

func (suite *HandlersTestSuite) pay(invoiceID, amount, key string) *httptest.ResponseRecorder {
	header := http.Header{}
	if key != "" {
		header.Set(dto.IdempotencyKeyHeader, key)
	}
	return suite.request(http.MethodPost, "/api/v1/payments", dto.RecordPaymentRequest{
		GuestRef:     guestRef,
		InvoiceID:    &invoiceID,
		Amount:       decimal.RequireFromString(amount),
		CurrencyCode: "USD",
		Method:       domain.MethodCard,
	}, header)
}

func (suite *HandlersTestSuite) TestAuthRequired() {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/currencies", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	suite.Equal(http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/currencies", nil)
	req.Header.Set("Authorization", "Bearer "+signToken("some-other-secret", testUser))
	w = httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	suite.Equal(http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/currencies", nil)
	req.Header.Set("Authorization", "Token abc")
	w = httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *HandlersTestSuite) TestHealthIsPublic() {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	suite.Equal(http.StatusOK, w.Code)
}

func (suite *HandlersTestSuite) TestCurrencyEndpoints() {
	w := suite.request(http.MethodGet, "/api/v1/currencies", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var list []dto.CurrencyResponse
	suite.decode(w, &list)
	suite.Len(list, 2)

	w = suite.request(http.MethodGet, "/api/v1/currencies/USD", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var usd dto.CurrencyResponse
	suite.decode(w, &usd)
	suite.True(usd.IsDefault)
	suite.True(usd.ExchangeRate.Equal(decimal.NewFromInt(1)))

	suite.requireError(suite.request(http.MethodGet, "/api/v1/currencies/XYZ", nil, nil), http.StatusNotFound, "CurrencyNotFound")
	suite.Equal(http.StatusBadRequest, suite.request(http.MethodGet, "/api/v1/currencies/US", nil, nil).Code)

	q := url.Values{"amount": {"100"}, "from": {"USD"}, "to": {"UGX"}}
	w = suite.request(http.MethodGet, "/api/v1/currencies/convert?"+q.Encode(), nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var conv dto.ConvertResponse
	suite.decode(w, &conv)
	suite.True(conv.Converted.Equal(decimal.RequireFromString("380000")), conv.Converted.String())
	suite.Equal("USh380000.00", conv.Formatted)

	create := dto.CreateCurrencyRequest{CurrencyCode: "EUR", Symbol: "€", Name: "Euro", ExchangeRate: decimal.RequireFromString("0.9")}
	suite.Equal(http.StatusCreated, suite.request(http.MethodPost, "/api/v1/currencies", create, nil).Code)
	suite.requireError(suite.request(http.MethodPost, "/api/v1/currencies", create, nil), http.StatusBadRequest, "DuplicateCurrency")

	suite.requireError(suite.request(http.MethodPut, "/api/v1/currencies/EUR/rate", dto.UpdateRateRequest{ExchangeRate: decimal.Zero}, nil), http.StatusBadRequest, "InvalidRate")
	suite.requireError(suite.request(http.MethodPut, "/api/v1/currencies/USD/rate", dto.UpdateRateRequest{ExchangeRate: decimal.NewFromInt(2)}, nil), http.StatusConflict, "ImmutableBaseCurrency")
	suite.requireError(suite.request(http.MethodDelete, "/api/v1/currencies/USD", nil, nil), http.StatusConflict, "ProtectedCurrency")

	suite.Equal(http.StatusNoContent, suite.request(http.MethodDelete, "/api/v1/currencies/EUR", nil, nil).Code)
}

func (suite *HandlersTestSuite) TestInvoicePaymentLifecycle() {
	inv := suite.createInvoice("100")
	suite.Equal(domain.InvoiceDraft, inv.Status)
	suite.True(inv.Total.Equal(decimal.RequireFromString("116.82")), inv.Total.String())
	suite.Equal(testUser, inv.CreatedBy)

	suite.requireError(suite.pay(inv.InvoiceID, "10", ""), http.StatusConflict, "InvoiceNotIssued")

	inv = suite.issueInvoice(inv.InvoiceID)
	suite.Equal(domain.InvoiceIssued, inv.Status)
	suite.NotNil(inv.DueDate)

	suite.requireError(suite.pay(inv.InvoiceID, "200", ""), http.StatusUnprocessableEntity, "OverpaymentNotAllowed")

	w := suite.pay(inv.InvoiceID, "16.82", "front-desk-42")
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var first dto.PaymentResultResponse
	suite.decode(w, &first)
	suite.Require().NotNil(first.Application)
	suite.Require().NotNil(first.Invoice)
	suite.Equal(domain.InvoicePartiallyPaid, first.Invoice.Status)

	w = suite.pay(inv.InvoiceID, "16.82", "front-desk-42")
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var replay dto.PaymentResultResponse
	suite.decode(w, &replay)
	suite.Equal(first.Payment.PaymentID, replay.Payment.PaymentID)

	suite.requireError(suite.pay(inv.InvoiceID, "5", "front-desk-42"), http.StatusConflict, "IdempotencyKeyReused")
	suite.requireError(suite.pay(inv.InvoiceID, "10.005", ""), http.StatusBadRequest, "InvalidAmount")

	w = suite.pay(inv.InvoiceID, "100", "")
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var second dto.PaymentResultResponse
	suite.decode(w, &second)
	suite.Equal(domain.InvoicePaid, second.Invoice.Status)
	suite.True(second.Invoice.Outstanding.IsZero())

	w = suite.request(http.MethodGet, "/api/v1/invoices/"+inv.InvoiceID+"/balance", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var balance domain.InvoiceBalance
	suite.decode(w, &balance)
	suite.True(balance.Consistent)
	suite.True(balance.AmountPaid.Equal(decimal.RequireFromString("116.82")))

	suite.requireError(suite.request(http.MethodPost, "/api/v1/invoices/"+inv.InvoiceID+"/cancel", dto.CancelInvoiceRequest{Reason: "guest left"}, nil),
		http.StatusConflict, "CannotCancelPaidInvoice")
	suite.requireError(suite.pay(inv.InvoiceID, "1", ""), http.StatusConflict, "InvoiceAlreadyPaid")

	w = suite.request(http.MethodGet, "/api/v1/payments?invoiceID="+inv.InvoiceID, nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var payments dto.ListPaymentsResponse
	suite.decode(w, &payments)
	suite.Len(payments.Payments, 2)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	suite.router.ServeHTTP(rec, req)
	suite.Equal(http.StatusOK, rec.Code)
	suite.Contains(rec.Body.String(), "billing_payments_recorded_total")
	suite.Contains(rec.Body.String(), "billing_rejections_total")
}

func (suite *HandlersTestSuite) TestReversePayment() {
	inv := suite.createInvoice("100")
	suite.issueInvoice(inv.InvoiceID)

	w := suite.pay(inv.InvoiceID, "16.82", "")
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var paid dto.PaymentResultResponse
	suite.decode(w, &paid)

	path := "/api/v1/payments/" + paid.Payment.PaymentID + "/reverse"
	suite.Equal(http.StatusBadRequest, suite.request(http.MethodPost, path, map[string]string{}, nil).Code)

	w = suite.request(http.MethodPost, path, dto.ReversePaymentRequest{Reason: "card chargeback"}, nil)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var reversal dto.PaymentResultResponse
	suite.decode(w, &reversal)
	suite.Require().NotNil(reversal.Payment.ReversesPaymentID)
	suite.Equal(paid.Payment.PaymentID, *reversal.Payment.ReversesPaymentID)

	w = suite.request(http.MethodGet, "/api/v1/invoices/"+inv.InvoiceID, nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var after dto.InvoiceResponse
	suite.decode(w, &after)
	suite.Equal(domain.InvoiceIssued, after.Status)
	suite.True(after.AmountPaid.IsZero())

	suite.requireError(suite.request(http.MethodPost, path, dto.ReversePaymentRequest{Reason: "again"}, nil), http.StatusConflict, "PaymentAlreadyReversed")
	suite.requireError(suite.request(http.MethodPost, "/api/v1/payments/"+reversal.Payment.PaymentID+"/reverse", dto.ReversePaymentRequest{Reason: "undo"}, nil),
		http.StatusBadRequest, "InvalidReversal")
}

func (suite *HandlersTestSuite) TestDepositReconciledOnIssue() {
	w := suite.request(http.MethodPost, "/api/v1/payments", dto.RecordPaymentRequest{
		GuestRef:     guestRef,
		Amount:       decimal.NewFromInt(50),
		CurrencyCode: "USD",
		Method:       domain.MethodCash,
		IsDeposit:    true,
	}, nil)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var deposit dto.PaymentResultResponse
	suite.decode(w, &deposit)
	suite.Nil(deposit.Application)
	suite.Nil(deposit.Invoice)

	inv := suite.createInvoice("100")
	suite.issueInvoice(inv.InvoiceID)

	w = suite.request(http.MethodGet, "/api/v1/invoices/"+inv.InvoiceID, nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var got dto.InvoiceResponse
	suite.decode(w, &got)
	suite.Equal(domain.InvoicePartiallyPaid, got.Status)
	suite.True(got.AmountPaid.Equal(decimal.NewFromInt(50)))

	w = suite.request(http.MethodPost, "/api/v1/invoices/"+inv.InvoiceID+"/reconcile-deposits", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var rec dto.ReconciliationResponse
	suite.decode(w, &rec)
	suite.Empty(rec.Applied)

	suite.requireError(suite.request(http.MethodPost, "/api/v1/payments/"+deposit.Payment.PaymentID+"/apply", dto.ApplyPaymentRequest{InvoiceID: inv.InvoiceID}, nil),
		http.StatusConflict, "DuplicatePaymentApplication")
}

func (suite *HandlersTestSuite) TestInvoiceValidation() {
	w := suite.request(http.MethodPost, "/api/v1/invoices", map[string]any{"guestRef": guestRef, "currencyCode": "usd"}, nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.request(http.MethodPost, "/api/v1/invoices", dto.CreateInvoiceRequest{GuestRef: guestRef, CurrencyCode: "USD"}, nil)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var empty dto.InvoiceResponse
	suite.decode(w, &empty)
	suite.requireError(suite.request(http.MethodPost, "/api/v1/invoices/"+empty.InvoiceID+"/issue", nil, nil), http.StatusBadRequest, "EmptyInvoice")

	suite.Equal(http.StatusBadRequest, suite.request(http.MethodPost, "/api/v1/invoices/"+empty.InvoiceID+"/cancel", map[string]string{}, nil).Code)
	suite.requireError(suite.request(http.MethodGet, "/api/v1/invoices/does-not-exist", nil, nil), http.StatusNotFound, "InvoiceNotFound")
	suite.Equal(http.StatusBadRequest, suite.request(http.MethodGet, "/api/v1/invoices?status=UNKNOWN", nil, nil).Code)
}

func (suite *HandlersTestSuite) TestListInvoicesPaginates() {
	a := suite.createInvoice("10")
	b := suite.createInvoice("20")

	w := suite.request(http.MethodGet, "/api/v1/invoices?limit=1&guestRef="+guestRef, nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var page1 dto.ListInvoicesResponse
	suite.decode(w, &page1)
	suite.Require().Len(page1.Invoices, 1)
	suite.Require().NotEmpty(page1.NextToken)

	w = suite.request(http.MethodGet, "/api/v1/invoices?limit=1&guestRef="+guestRef+"&nextToken="+url.QueryEscape(page1.NextToken), nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var page2 dto.ListInvoicesResponse
	suite.decode(w, &page2)
	suite.Require().Len(page2.Invoices, 1)

	suite.NotEqual(page1.Invoices[0].InvoiceID, page2.Invoices[0].InvoiceID)
	suite.ElementsMatch([]string{a.InvoiceID, b.InvoiceID}, []string{page1.Invoices[0].InvoiceID, page2.Invoices[0].InvoiceID})
}

func TestHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(HandlersTestSuite))
}
