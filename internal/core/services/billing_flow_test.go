package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/SscSPs/hotel_billing/internal/apperrors"
	"github.com/SscSPs/hotel_billing/internal/core/domain"
	portssvc "github.com/SscSPs/hotel_billing/internal/core/ports/services"
	"github.com/SscSPs/hotel_billing/internal/core/services"
	"github.com/SscSPs/hotel_billing/internal/dto"
	"github.com/SscSPs/hotel_billing/internal/platform/config"
	"github.com/SscSPs/hotel_billing/internal/repositories/idempotency"
	"github.com/SscSPs/hotel_billing/internal/repositories/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

const (
	guest   = "guest-1"
	cashier = "cashier-1"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

type BillingFlowTestSuite struct {
	suite.Suite
	ctx   context.Context
	store *memory.Store
	idem  *idempotency.MemoryStore
	svc   *portssvc.ServiceContainer
}

func testConfig() *config.Config {
	return &config.Config{
		Store: config.StoreMemory,
		Billing: config.BillingConfig{
			DefaultTaxRate:        dec("18"),
			DefaultServiceCharge:  dec("10"),
			DefaultDiscount:       dec("10"),
			TaxRateCeiling:        dec("100"),
			OverpaymentTolerance:  decimal.Zero,
			PaymentTerms:          14 * 24 * time.Hour,
			AutoReconcileDeposits: true,
			BaseCurrency:          config.SystemCurrency{Code: "USD", Name: "US Dollar", Symbol: "$"},
			SecondaryCurrency:     config.SystemCurrency{Code: "UGX", Name: "Ugandan Shilling", Symbol: "USh", Rate: dec("3800")},
			IdempotencyTTL:        time.Hour,
			InvoiceNumberNode:     1,
		},
	}
}

func (suite *BillingFlowTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.store = memory.NewStore()
	suite.idem = idempotency.NewMemoryStore(0)

	container, err := services.NewServiceContainer(testConfig(), suite.store.Provider(suite.idem), nil)
	suite.Require().NoError(err)
	suite.svc = container
	suite.Require().NoError(suite.svc.Currency.InitializeStaticData(suite.ctx))
}

func (suite *BillingFlowTestSuite) TearDownTest() {
	suite.Require().NoError(suite.idem.Close())
}

// draft creates a draft with one line of the given price using the configured
// 10% discount, 10% service charge and 18% tax unless rates are overridden.
func (suite *BillingFlowTestSuite) draft(price string, overrides dto.ChargeOverrides) *domain.Invoice {
	inv, err := suite.svc.Invoice.CreateInvoice(suite.ctx, dto.CreateInvoiceRequest{
		GuestRef:        guest,
		CurrencyCode:    "USD",
		LineItems:       []dto.LineItemRequest{{Description: "Room 101", Quantity: dec("1"), UnitPrice: dec(price)}},
		ChargeOverrides: overrides,
	}, cashier)
	suite.Require().NoError(err)
	return inv
}

func (suite *BillingFlowTestSuite) issued(price string, overrides dto.ChargeOverrides) *domain.Invoice {
	inv := suite.draft(price, overrides)
	inv, err := suite.svc.Invoice.IssueInvoice(suite.ctx, inv.InvoiceID, dto.IssueInvoiceRequest{}, cashier)
	suite.Require().NoError(err)
	return inv
}

func noCharges() dto.ChargeOverrides {
	return dto.ChargeOverrides{DiscountPercentage: decPtr("0"), ServiceChargePercentage: decPtr("0"), TaxRate: decPtr("0")}
}

func (suite *BillingFlowTestSuite) pay(invoiceID, amount, currency string) (*domain.PaymentResult, error) {
	id := invoiceID
	return suite.svc.Payment.RecordPayment(suite.ctx, dto.RecordPaymentRequest{
		GuestRef:     guest,
		InvoiceID:    &id,
		Amount:       dec(amount),
		CurrencyCode: currency,
		Method:       domain.MethodCash,
	}, "", cashier)
}

func (suite *BillingFlowTestSuite) TestStaticDataSeeded() {
	base, err := suite.svc.Currency.GetDefaultCurrency(suite.ctx)
	suite.Require().NoError(err)
	suite.Equal("USD", base.CurrencyCode)
	suite.True(base.IsSystem)

	ugx, err := suite.svc.Currency.GetCurrencyByCode(suite.ctx, "UGX")
	suite.Require().NoError(err)
	suite.True(ugx.ExchangeRate.Equal(dec("3800")))

	// Seeding twice leaves existing rows alone.
	suite.Require().NoError(suite.svc.Currency.InitializeStaticData(suite.ctx))
	all, err := suite.svc.Currency.ListCurrencies(suite.ctx)
	suite.Require().NoError(err)
	suite.Len(all, 2)
}

func (suite *BillingFlowTestSuite) TestChargePipelineTotals() {
	inv := suite.draft("100", dto.ChargeOverrides{})

	suite.Equal(domain.InvoiceDraft, inv.Status)
	suite.Equal("100.00", inv.Subtotal.StringFixed(2))
	suite.Equal("10.00", inv.DiscountAmount.StringFixed(2))
	suite.Equal("9.00", inv.ServiceChargeAmount.StringFixed(2))
	suite.Equal("17.82", inv.TaxAmount.StringFixed(2))
	suite.Equal("116.82", inv.Total.StringFixed(2))
	suite.Contains(inv.InvoiceNumber, "INV-")
}

func (suite *BillingFlowTestSuite) TestConversionBothWays() {
	toUGX, _, err := suite.svc.Currency.ConvertAmount(suite.ctx, dec("100"), "USD", "UGX")
	suite.Require().NoError(err)
	suite.Equal("380000.00", toUGX.StringFixed(2))

	toUSD, _, err := suite.svc.Currency.ConvertAmount(suite.ctx, dec("380000"), "UGX", "USD")
	suite.Require().NoError(err)
	suite.Equal("100.00", toUSD.StringFixed(2))
}

func (suite *BillingFlowTestSuite) TestPartialThenFullPayment() {
	inv := suite.issued("100", dto.ChargeOverrides{})
	suite.Equal(domain.InvoiceIssued, inv.Status)
	suite.Require().NotNil(inv.DueDate)

	first, err := suite.pay(inv.InvoiceID, "50.00", "USD")
	suite.Require().NoError(err)
	suite.Equal(domain.InvoicePartiallyPaid, first.Invoice.Status)
	suite.Equal("50.00", first.Invoice.AmountPaid.StringFixed(2))

	second, err := suite.pay(inv.InvoiceID, "66.82", "USD")
	suite.Require().NoError(err)
	suite.Equal(domain.InvoicePaid, second.Invoice.Status)
	suite.Equal("116.82", second.Invoice.AmountPaid.StringFixed(2))

	_, err = suite.pay(inv.InvoiceID, "1", "USD")
	suite.ErrorIs(err, apperrors.ErrInvoiceAlreadyPaid)

	balance, err := suite.svc.Invoice.GetInvoiceBalance(suite.ctx, inv.InvoiceID)
	suite.Require().NoError(err)
	suite.True(balance.Consistent)
	suite.True(balance.Outstanding.IsZero())
}

func (suite *BillingFlowTestSuite) TestForeignOverpaymentRejectedAtomically() {
	inv := suite.issued("100", noCharges())
	suite.Equal("100.00", inv.Total.StringFixed(2))

	_, err := suite.pay(inv.InvoiceID, "500000", "UGX")
	suite.ErrorIs(err, apperrors.ErrOverpaymentNotAllowed)
	suite.ErrorIs(err, apperrors.ErrBusinessRule)

	payments, err := suite.svc.Payment.ListPayments(suite.ctx, domain.PaymentFilter{GuestRef: guest})
	suite.Require().NoError(err)
	suite.Empty(payments)

	reloaded, err := suite.svc.Invoice.GetInvoice(suite.ctx, inv.InvoiceID)
	suite.Require().NoError(err)
	suite.Equal(domain.InvoiceIssued, reloaded.Status)
	suite.True(reloaded.AmountPaid.IsZero())
}

func (suite *BillingFlowTestSuite) TestForeignPaymentRecordsRate() {
	inv := suite.issued("100", noCharges())

	result, err := suite.pay(inv.InvoiceID, "190000", "UGX")
	suite.Require().NoError(err)
	suite.Require().NotNil(result.Application)
	suite.Equal("50.00", result.Application.AppliedAmount.StringFixed(2))
	suite.Equal("0.000263157895", result.Application.ExchangeRate.String())
	suite.Equal("190000", result.Payment.Amount.String())
	suite.Equal("UGX", result.Payment.CurrencyCode)
}

func (suite *BillingFlowTestSuite) TestSetDefaultRescales() {
	_, err := suite.svc.Currency.CreateCurrency(suite.ctx, dto.CreateCurrencyRequest{
		CurrencyCode: "EUR", Symbol: "€", Name: "Euro", ExchangeRate: dec("0.90"),
	}, cashier)
	suite.Require().NoError(err)

	eur, err := suite.svc.Currency.SetDefault(suite.ctx, "EUR", cashier)
	suite.Require().NoError(err)
	suite.True(eur.IsDefault)
	suite.Equal("1", eur.ExchangeRate.String())

	usd, err := suite.svc.Currency.GetCurrencyByCode(suite.ctx, "USD")
	suite.Require().NoError(err)
	suite.False(usd.IsDefault)
	suite.Equal("1.111111111111", usd.ExchangeRate.String())

	_, err = suite.svc.Currency.UpdateRate(suite.ctx, "EUR", dec("2"), cashier)
	suite.ErrorIs(err, apperrors.ErrImmutableBaseCurrency)
}

func (suite *BillingFlowTestSuite) TestCurrencyInUseCannotBeDeleted() {
	_, err := suite.svc.Currency.CreateCurrency(suite.ctx, dto.CreateCurrencyRequest{
		CurrencyCode: "KES", Name: "Kenyan Shilling", ExchangeRate: dec("130"),
	}, cashier)
	suite.Require().NoError(err)

	_, err = suite.svc.Payment.RecordPayment(suite.ctx, dto.RecordPaymentRequest{
		GuestRef: guest, Amount: dec("1000"), CurrencyCode: "KES", Method: domain.MethodMobileMoney, IsDeposit: true,
	}, "", cashier)
	suite.Require().NoError(err)

	suite.ErrorIs(suite.svc.Currency.DeleteCurrency(suite.ctx, "KES"), apperrors.ErrCurrencyInUse)
	suite.ErrorIs(suite.svc.Currency.DeleteCurrency(suite.ctx, "UGX"), apperrors.ErrProtectedCurrency)
}

func (suite *BillingFlowTestSuite) TestDraftRules() {
	inv := suite.draft("100", dto.ChargeOverrides{})

	updated, err := suite.svc.Invoice.UpdateInvoiceLines(suite.ctx, inv.InvoiceID, dto.UpdateInvoiceLinesRequest{
		LineItems: []dto.LineItemRequest{
			{Description: "Room 101", Quantity: dec("2"), UnitPrice: dec("100")},
			{Description: "Minibar", Quantity: dec("3"), UnitPrice: dec("4.50")},
		},
	}, cashier)
	suite.Require().NoError(err)
	suite.Equal("213.50", updated.Subtotal.StringFixed(2))
	suite.Equal(inv.InvoiceNumber, updated.InvoiceNumber)

	_, err = suite.pay(inv.InvoiceID, "10", "USD")
	suite.ErrorIs(err, apperrors.ErrInvoiceNotIssued)

	_, err = suite.svc.Invoice.IssueInvoice(suite.ctx, inv.InvoiceID, dto.IssueInvoiceRequest{}, cashier)
	suite.Require().NoError(err)

	_, err = suite.svc.Invoice.UpdateInvoiceLines(suite.ctx, inv.InvoiceID, dto.UpdateInvoiceLinesRequest{}, cashier)
	suite.ErrorIs(err, apperrors.ErrInvoiceNotDraft)
}

func (suite *BillingFlowTestSuite) TestIssueValidation() {
	empty, err := suite.svc.Invoice.CreateInvoice(suite.ctx, dto.CreateInvoiceRequest{GuestRef: guest, CurrencyCode: "USD"}, cashier)
	suite.Require().NoError(err)
	_, err = suite.svc.Invoice.IssueInvoice(suite.ctx, empty.InvoiceID, dto.IssueInvoiceRequest{}, cashier)
	suite.ErrorIs(err, apperrors.ErrEmptyInvoice)

	inv := suite.draft("100", dto.ChargeOverrides{})
	past := time.Now().Add(-48 * time.Hour)
	_, err = suite.svc.Invoice.IssueInvoice(suite.ctx, inv.InvoiceID, dto.IssueInvoiceRequest{DueDate: &past}, cashier)
	suite.ErrorIs(err, apperrors.ErrInvalidDueDate)

	_, err = suite.svc.Invoice.CreateInvoice(suite.ctx, dto.CreateInvoiceRequest{
		GuestRef:        guest,
		CurrencyCode:    "USD",
		ChargeOverrides: dto.ChargeOverrides{TaxRate: decPtr("150")},
	}, cashier)
	suite.ErrorIs(err, apperrors.ErrInvalidPercentage)

	_, err = suite.svc.Invoice.CreateInvoice(suite.ctx, dto.CreateInvoiceRequest{GuestRef: guest, CurrencyCode: "XYZ"}, cashier)
	suite.ErrorIs(err, apperrors.ErrCurrencyNotFound)
}

func (suite *BillingFlowTestSuite) TestCancel() {
	inv := suite.issued("100", dto.ChargeOverrides{})

	_, err := suite.svc.Invoice.CancelInvoice(suite.ctx, inv.InvoiceID, "  ", cashier)
	suite.ErrorIs(err, apperrors.ErrValidation)

	cancelled, err := suite.svc.Invoice.CancelInvoice(suite.ctx, inv.InvoiceID, "guest no-show", cashier)
	suite.Require().NoError(err)
	suite.Equal(domain.InvoiceCancelled, cancelled.Status)
	suite.Equal("guest no-show", cancelled.CancellationReason)
	suite.NotNil(cancelled.CancelledAt)

	_, err = suite.svc.Invoice.CancelInvoice(suite.ctx, inv.InvoiceID, "again", cashier)
	suite.ErrorIs(err, apperrors.ErrInvoiceCancelled)

	_, err = suite.pay(inv.InvoiceID, "10", "USD")
	suite.ErrorIs(err, apperrors.ErrInvoiceCancelled)

	paid := suite.issued("10", noCharges())
	_, err = suite.pay(paid.InvoiceID, "10", "USD")
	suite.Require().NoError(err)
	_, err = suite.svc.Invoice.CancelInvoice(suite.ctx, paid.InvoiceID, "mistake", cashier)
	suite.ErrorIs(err, apperrors.ErrCannotCancelPaidInvoice)
}

func (suite *BillingFlowTestSuite) TestReversal() {
	inv := suite.issued("100", dto.ChargeOverrides{})
	paid, err := suite.pay(inv.InvoiceID, "50", "USD")
	suite.Require().NoError(err)

	_, err = suite.svc.Payment.ReversePayment(suite.ctx, paid.Payment.PaymentID, "", cashier)
	suite.ErrorIs(err, apperrors.ErrValidation)

	reversed, err := suite.svc.Payment.ReversePayment(suite.ctx, paid.Payment.PaymentID, "card chargeback", cashier)
	suite.Require().NoError(err)
	suite.Require().NotNil(reversed.Payment.ReversesPaymentID)
	suite.Equal(paid.Payment.PaymentID, *reversed.Payment.ReversesPaymentID)
	suite.True(reversed.Payment.Amount.Equal(paid.Payment.Amount))
	suite.Require().NotNil(reversed.Application)
	suite.Equal("-50.00", reversed.Application.AppliedAmount.StringFixed(2))
	suite.Equal(domain.InvoiceIssued, reversed.Invoice.Status)
	suite.True(reversed.Invoice.AmountPaid.IsZero())

	_, err = suite.svc.Payment.ReversePayment(suite.ctx, paid.Payment.PaymentID, "again", cashier)
	suite.ErrorIs(err, apperrors.ErrPaymentAlreadyReversed)

	_, err = suite.svc.Payment.ReversePayment(suite.ctx, reversed.Payment.PaymentID, "undo", cashier)
	suite.ErrorIs(err, apperrors.ErrInvalidReversal)

	_, err = suite.svc.Payment.ApplyPayment(suite.ctx, reversed.Payment.PaymentID, inv.InvoiceID, cashier)
	suite.ErrorIs(err, apperrors.ErrInvalidReversal)

	_, err = suite.svc.Payment.ReversePayment(suite.ctx, "missing", "x", cashier)
	suite.ErrorIs(err, apperrors.ErrPaymentNotFound)

	balance, err := suite.svc.Invoice.GetInvoiceBalance(suite.ctx, inv.InvoiceID)
	suite.Require().NoError(err)
	suite.True(balance.Consistent)
	suite.True(balance.LedgerAmountPaid.IsZero())
}

func (suite *BillingFlowTestSuite) TestReversalOfPaidInvoiceRefused() {
	inv := suite.issued("10", noCharges())
	paid, err := suite.pay(inv.InvoiceID, "10", "USD")
	suite.Require().NoError(err)

	_, err = suite.svc.Payment.ReversePayment(suite.ctx, paid.Payment.PaymentID, "refund", cashier)
	suite.ErrorIs(err, apperrors.ErrInvoiceAlreadyPaid)

	payments, err := suite.svc.Payment.ListPayments(suite.ctx, domain.PaymentFilter{InvoiceID: inv.InvoiceID})
	suite.Require().NoError(err)
	suite.Len(payments, 1)
}

func (suite *BillingFlowTestSuite) deposit(amount string, paidAt time.Time) *domain.PaymentResult {
	result, err := suite.svc.Payment.RecordPayment(suite.ctx, dto.RecordPaymentRequest{
		GuestRef:     guest,
		Amount:       dec(amount),
		CurrencyCode: "USD",
		Method:       domain.MethodCard,
		IsDeposit:    true,
		PaidAt:       &paidAt,
	}, "", cashier)
	suite.Require().NoError(err)
	suite.Nil(result.Application)
	return result
}

func (suite *BillingFlowTestSuite) TestDepositsReconciledOnIssue() {
	start := time.Now().Add(-72 * time.Hour)
	first := suite.deposit("50", start)
	second := suite.deposit("100", start.Add(time.Hour))
	third := suite.deposit("5", start.Add(2*time.Hour))

	inv := suite.draft("100", dto.ChargeOverrides{})
	issued, err := suite.svc.Invoice.IssueInvoice(suite.ctx, inv.InvoiceID, dto.IssueInvoiceRequest{}, cashier)
	suite.Require().NoError(err)
	suite.Equal(domain.InvoicePartiallyPaid, issued.Status)
	suite.Equal("50.00", issued.AmountPaid.StringFixed(2))

	// The 100 deposit would overpay, so it and everything after it stay held.
	result, err := suite.svc.Payment.ReconcileOrphanDeposits(suite.ctx, "", inv.InvoiceID, cashier)
	suite.Require().NoError(err)
	suite.Empty(result.Applied)
	suite.Equal([]string{second.Payment.PaymentID, third.Payment.PaymentID}, result.Skipped)

	app, err := suite.svc.Payment.ApplyPayment(suite.ctx, third.Payment.PaymentID, inv.InvoiceID, cashier)
	suite.Require().NoError(err)
	suite.Equal("55.00", app.Invoice.AmountPaid.StringFixed(2))

	_, err = suite.svc.Payment.ApplyPayment(suite.ctx, first.Payment.PaymentID, inv.InvoiceID, cashier)
	suite.ErrorIs(err, apperrors.ErrDuplicatePaymentApplication)

	// Deposits applied after capture still list under the invoice they settled.
	settled, err := suite.svc.Payment.ListPayments(suite.ctx, domain.PaymentFilter{InvoiceID: inv.InvoiceID})
	suite.Require().NoError(err)
	ids := make([]string, 0, len(settled))
	for _, p := range settled {
		ids = append(ids, p.PaymentID)
	}
	suite.ElementsMatch([]string{first.Payment.PaymentID, third.Payment.PaymentID}, ids)

	_, err = suite.svc.Payment.ReconcileOrphanDeposits(suite.ctx, "someone-else", inv.InvoiceID, cashier)
	suite.ErrorIs(err, apperrors.ErrGuestMismatch)
}

func (suite *BillingFlowTestSuite) TestReconcileStopsOncePaid() {
	start := time.Now().Add(-time.Hour)
	suite.deposit("10", start)
	suite.deposit("1", start.Add(time.Minute))

	inv := suite.draft("10", noCharges())
	result, err := suite.svc.Payment.ReconcileOrphanDeposits(suite.ctx, guest, inv.InvoiceID, cashier)
	suite.ErrorIs(err, apperrors.ErrInvoiceNotIssued)
	suite.Nil(result)

	issued, err := suite.svc.Invoice.IssueInvoice(suite.ctx, inv.InvoiceID, dto.IssueInvoiceRequest{}, cashier)
	suite.Require().NoError(err)
	suite.Equal(domain.InvoicePaid, issued.Status)

	held, err := suite.svc.Payment.ListPayments(suite.ctx, domain.PaymentFilter{GuestRef: guest, DepositsOnly: true})
	suite.Require().NoError(err)
	suite.Len(held, 2)
}

func (suite *BillingFlowTestSuite) TestDepositOrderFollowsCapture() {
	now := time.Now()
	earlier := suite.deposit("60", now)
	backdated := suite.deposit("50", now.Add(-time.Hour))

	inv := suite.draft("100", noCharges())
	issued, err := suite.svc.Invoice.IssueInvoice(suite.ctx, inv.InvoiceID, dto.IssueInvoiceRequest{}, cashier)
	suite.Require().NoError(err)
	suite.Equal("60.00", issued.AmountPaid.StringFixed(2))

	applied, err := suite.store.FindApplication(suite.ctx, earlier.Payment.PaymentID)
	suite.Require().NoError(err)
	suite.NotNil(applied)

	result, err := suite.svc.Payment.ReconcileOrphanDeposits(suite.ctx, "", inv.InvoiceID, cashier)
	suite.Require().NoError(err)
	suite.Equal([]string{backdated.Payment.PaymentID}, result.Skipped)
}

func (suite *BillingFlowTestSuite) TestWorthlessDepositDoesNotBlockReconcile() {
	_, err := suite.svc.Currency.CreateCurrency(suite.ctx, dto.CreateCurrencyRequest{
		CurrencyCode: "EUR", Name: "Euro", Symbol: "€", ExchangeRate: dec("0.9"),
	}, cashier)
	suite.Require().NoError(err)

	// 20 UGX is 0.01 in the base currency but 0.00 in EUR.
	tiny, err := suite.svc.Payment.RecordPayment(suite.ctx, dto.RecordPaymentRequest{
		GuestRef: guest, Amount: dec("20"), CurrencyCode: "UGX", Method: domain.MethodMobileMoney, IsDeposit: true,
	}, "", cashier)
	suite.Require().NoError(err)
	_, err = suite.svc.Payment.RecordPayment(suite.ctx, dto.RecordPaymentRequest{
		GuestRef: guest, Amount: dec("50"), CurrencyCode: "EUR", Method: domain.MethodCard, IsDeposit: true,
	}, "", cashier)
	suite.Require().NoError(err)

	inv, err := suite.svc.Invoice.CreateInvoice(suite.ctx, dto.CreateInvoiceRequest{
		GuestRef:        guest,
		CurrencyCode:    "EUR",
		LineItems:       []dto.LineItemRequest{{Description: "Room 101", Quantity: dec("1"), UnitPrice: dec("100")}},
		ChargeOverrides: noCharges(),
	}, cashier)
	suite.Require().NoError(err)
	issued, err := suite.svc.Invoice.IssueInvoice(suite.ctx, inv.InvoiceID, dto.IssueInvoiceRequest{}, cashier)
	suite.Require().NoError(err)
	suite.Equal(domain.InvoicePartiallyPaid, issued.Status)
	suite.Equal("50.00", issued.AmountPaid.StringFixed(2))

	result, err := suite.svc.Payment.ReconcileOrphanDeposits(suite.ctx, "", inv.InvoiceID, cashier)
	suite.Require().NoError(err)
	suite.Empty(result.Applied)
	suite.Equal([]string{tiny.Payment.PaymentID}, result.Skipped)
}

func (suite *BillingFlowTestSuite) TestCaptureRejectsFractionalCents() {
	inv := suite.issued("100", noCharges())

	_, err := suite.pay(inv.InvoiceID, "99.999", "USD")
	suite.ErrorIs(err, apperrors.ErrInvalidAmount)
	_, err = suite.pay(inv.InvoiceID, "0.004", "USD")
	suite.ErrorIs(err, apperrors.ErrInvalidAmount)

	got, err := suite.svc.Invoice.GetInvoice(suite.ctx, inv.InvoiceID)
	suite.Require().NoError(err)
	suite.Equal(domain.InvoiceIssued, got.Status)
	suite.True(got.AmountPaid.IsZero())

	_, err = suite.pay(inv.InvoiceID, "99.99", "USD")
	suite.Require().NoError(err)
	last, err := suite.pay(inv.InvoiceID, "0.01", "USD")
	suite.Require().NoError(err)
	suite.Equal(domain.InvoicePaid, last.Invoice.Status)
}

func (suite *BillingFlowTestSuite) TestCaptureRejectsWorthlessForeignAmount() {
	req := dto.RecordPaymentRequest{GuestRef: guest, Amount: dec("10"), CurrencyCode: "UGX", Method: domain.MethodCash, IsDeposit: true}
	_, err := suite.svc.Payment.RecordPayment(suite.ctx, req, "", cashier)
	suite.ErrorIs(err, apperrors.ErrInvalidAmount)

	req.Amount = dec("20")
	_, err = suite.svc.Payment.RecordPayment(suite.ctx, req, "", cashier)
	suite.NoError(err)
}

func (suite *BillingFlowTestSuite) TestGuestMismatch() {
	inv := suite.issued("100", dto.ChargeOverrides{})
	id := inv.InvoiceID

	_, err := suite.svc.Payment.RecordPayment(suite.ctx, dto.RecordPaymentRequest{
		GuestRef: "guest-2", InvoiceID: &id, Amount: dec("10"), CurrencyCode: "USD", Method: domain.MethodCash,
	}, "", cashier)
	suite.ErrorIs(err, apperrors.ErrGuestMismatch)
}

func (suite *BillingFlowTestSuite) TestCaptureValidation() {
	base := dto.RecordPaymentRequest{GuestRef: guest, Amount: dec("10"), CurrencyCode: "USD", Method: domain.MethodCash}

	req := base
	req.Amount = decimal.Zero
	_, err := suite.svc.Payment.RecordPayment(suite.ctx, req, "", cashier)
	suite.ErrorIs(err, apperrors.ErrInvalidAmount)

	req = base
	req.Method = "CHEQUE"
	_, err = suite.svc.Payment.RecordPayment(suite.ctx, req, "", cashier)
	suite.ErrorIs(err, apperrors.ErrInvalidPaymentMethod)

	req = base
	req.CurrencyCode = "XYZ"
	_, err = suite.svc.Payment.RecordPayment(suite.ctx, req, "", cashier)
	suite.ErrorIs(err, apperrors.ErrCurrencyNotFound)
}

func (suite *BillingFlowTestSuite) TestIdempotentCapture() {
	inv := suite.issued("100", dto.ChargeOverrides{})
	id := inv.InvoiceID
	req := dto.RecordPaymentRequest{GuestRef: guest, InvoiceID: &id, Amount: dec("20"), CurrencyCode: "USD", Method: domain.MethodCard}

	first, err := suite.svc.Payment.RecordPayment(suite.ctx, req, "key-1", cashier)
	suite.Require().NoError(err)
	retry, err := suite.svc.Payment.RecordPayment(suite.ctx, req, "key-1", cashier)
	suite.Require().NoError(err)

	suite.Equal(first.Payment.PaymentID, retry.Payment.PaymentID)
	suite.Require().NotNil(retry.Application)
	suite.Equal("20.00", retry.Invoice.AmountPaid.StringFixed(2))

	payments, err := suite.svc.Payment.ListPayments(suite.ctx, domain.PaymentFilter{InvoiceID: inv.InvoiceID})
	suite.Require().NoError(err)
	suite.Len(payments, 1)

	changed := req
	changed.Amount = dec("25")
	_, err = suite.svc.Payment.RecordPayment(suite.ctx, changed, "key-1", cashier)
	suite.ErrorIs(err, apperrors.ErrIdempotencyKeyReused)

	other := suite.issued("10", noCharges())
	otherID := other.InvoiceID
	moved := req
	moved.InvoiceID = &otherID
	_, err = suite.svc.Payment.RecordPayment(suite.ctx, moved, "key-1", cashier)
	suite.ErrorIs(err, apperrors.ErrIdempotencyKeyReused)

	// A failed capture releases its key so a corrected retry goes through.
	bad := req
	bad.Amount = dec("5000")
	_, err = suite.svc.Payment.RecordPayment(suite.ctx, bad, "key-2", cashier)
	suite.ErrorIs(err, apperrors.ErrOverpaymentNotAllowed)
	_, err = suite.svc.Payment.RecordPayment(suite.ctx, req, "key-2", cashier)
	suite.Require().NoError(err)
}

func (suite *BillingFlowTestSuite) TestIdempotencyKeyInProgress() {
	claimed, err := suite.idem.Claim(suite.ctx, "payment:busy", time.Minute)
	suite.Require().NoError(err)
	suite.Require().True(claimed)

	_, err = suite.svc.Payment.RecordPayment(suite.ctx, dto.RecordPaymentRequest{
		GuestRef: guest, Amount: dec("10"), CurrencyCode: "USD", Method: domain.MethodCash, IsDeposit: true,
	}, "busy", cashier)
	suite.ErrorIs(err, apperrors.ErrIdempotencyKeyInProgress)
}

func (suite *BillingFlowTestSuite) TestOverdueSweep() {
	inv := suite.issued("100", dto.ChargeOverrides{})
	suite.issued("50", dto.ChargeOverrides{})
	draft := suite.draft("10", dto.ChargeOverrides{})

	early, err := suite.svc.Invoice.SweepOverdue(suite.ctx, time.Now(), cashier)
	suite.Require().NoError(err)
	suite.Empty(early.Marked)

	later := time.Now().Add(30 * 24 * time.Hour)
	summary, err := suite.svc.Invoice.SweepOverdue(suite.ctx, later, cashier)
	suite.Require().NoError(err)
	suite.Equal(2, summary.Checked)
	suite.Len(summary.Marked, 2)
	suite.Empty(summary.Failures)

	again, err := suite.svc.Invoice.SweepOverdue(suite.ctx, later, cashier)
	suite.Require().NoError(err)
	suite.Empty(again.Marked)

	// Overdue stays overdue until settled.
	partial, err := suite.pay(inv.InvoiceID, "16.82", "USD")
	suite.Require().NoError(err)
	suite.Equal(domain.InvoiceOverdue, partial.Invoice.Status)
	settled, err := suite.pay(inv.InvoiceID, "100", "USD")
	suite.Require().NoError(err)
	suite.Equal(domain.InvoicePaid, settled.Invoice.Status)

	unchanged, err := suite.svc.Invoice.MarkOverdue(suite.ctx, draft.InvoiceID, later, cashier)
	suite.Require().NoError(err)
	suite.Equal(domain.InvoiceDraft, unchanged.Status)

	overdue, err := suite.svc.Invoice.ListInvoices(suite.ctx, domain.InvoiceFilter{Status: domain.InvoiceOverdue})
	suite.Require().NoError(err)
	suite.Len(overdue, 1)
}

func (suite *BillingFlowTestSuite) TestConcurrentPaymentsSettleOnce() {
	inv := suite.issued("100", dto.ChargeOverrides{})

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		paidSeen  int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := suite.pay(inv.InvoiceID, "116.82", "USD")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				return
			}
			succeeded++
			if result.Invoice.Status == domain.InvoicePaid {
				paidSeen++
			}
		}()
	}
	wg.Wait()

	suite.Equal(1, succeeded)
	suite.Equal(1, paidSeen)

	balance, err := suite.svc.Invoice.GetInvoiceBalance(suite.ctx, inv.InvoiceID)
	suite.Require().NoError(err)
	suite.True(balance.Consistent)
	suite.Equal("116.82", balance.LedgerAmountPaid.StringFixed(2))
}

func TestBillingFlow(t *testing.T) {
	suite.Run(t, new(BillingFlowTestSuite))
}
