package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates that a requested resource could not be found.
var ErrNotFound = errors.New("resource not found")

// ErrValidation indicates that input data failed validation checks.
var ErrValidation = errors.New("validation error")

// ErrDuplicate indicates that an attempt was made to create a resource that already exists.
var ErrDuplicate = errors.New("resource already exists")

// ErrStateConflict indicates the caller's view of an aggregate's state is stale.
// Callers should re-fetch and reconcile rather than blindly retry.
var ErrStateConflict = errors.New("state conflict")

// ErrReferential indicates the operation was rejected because of a reference
// to (or from) another record.
var ErrReferential = errors.New("referential error")

// ErrBusinessRule indicates a business rule refused the operation; the caller
// decides how to proceed (for example, issue a credit instead).
var ErrBusinessRule = errors.New("business rule violation")

// Error is a named failure with a stable Code that API layers can render
// without inspecting messages. It unwraps to its category sentinel(s).
type Error struct {
	Code    string
	Message string
	kinds   []error
}

func newError(code, message string, kinds ...error) *Error {
	return &Error{Code: code, Message: message, kinds: kinds}
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the category sentinels so errors.Is(err, ErrValidation) works.
func (e *Error) Unwrap() []error {
	return e.kinds
}

// Validation errors.
var (
	ErrInvalidRate          = newError("InvalidRate", "exchange rate must be positive", ErrValidation)
	ErrInvalidPercentage    = newError("InvalidPercentage", "percentage out of range", ErrValidation)
	ErrInvalidLineItem      = newError("InvalidLineItem", "invalid line item", ErrValidation)
	ErrInvalidAmount        = newError("InvalidAmount", "amount must be positive", ErrValidation)
	ErrInvalidCurrencyCode  = newError("InvalidCurrencyCode", "currency code must be 3 uppercase letters", ErrValidation)
	ErrInvalidDueDate       = newError("InvalidDueDate", "due date cannot precede the issue date", ErrValidation)
	ErrInvalidPaymentMethod = newError("InvalidPaymentMethod", "unsupported payment method", ErrValidation)
	ErrEmptyInvoice         = newError("EmptyInvoice", "invoice has no line items", ErrValidation)
	ErrDuplicateCurrency    = newError("DuplicateCurrency", "currency code already exists", ErrValidation, ErrDuplicate)
	ErrGuestMismatch        = newError("GuestMismatch", "invoice belongs to a different guest", ErrValidation)
	ErrInvalidReversal      = newError("InvalidReversal", "a reversal entry cannot be reversed or applied", ErrValidation)
)

// State-conflict errors.
var (
	ErrInvoiceNotIssued            = newError("InvoiceNotIssued", "invoice has not been issued", ErrStateConflict)
	ErrInvoiceNotDraft             = newError("InvoiceNotDraft", "invoice is no longer a draft", ErrStateConflict)
	ErrInvoiceCancelled            = newError("InvoiceCancelled", "invoice is cancelled", ErrStateConflict)
	ErrInvoiceAlreadyPaid          = newError("InvoiceAlreadyPaid", "invoice is already paid", ErrStateConflict)
	ErrCannotCancelPaidInvoice     = newError("CannotCancelPaidInvoice", "a paid invoice cannot be cancelled", ErrStateConflict)
	ErrDuplicatePaymentApplication = newError("DuplicatePaymentApplication", "payment has already been applied", ErrStateConflict)
	ErrPaymentAlreadyReversed      = newError("PaymentAlreadyReversed", "payment has already been reversed", ErrStateConflict)
	ErrIdempotencyKeyInProgress    = newError("IdempotencyKeyInProgress", "a request with this idempotency key is still in progress", ErrStateConflict)
	ErrIdempotencyKeyReused        = newError("IdempotencyKeyReused", "idempotency key was already used for a different request", ErrStateConflict)
)

// Referential errors.
var (
	ErrCurrencyNotFound      = newError("CurrencyNotFound", "currency not found", ErrReferential, ErrNotFound)
	ErrInvoiceNotFound       = newError("InvoiceNotFound", "invoice not found", ErrReferential, ErrNotFound)
	ErrPaymentNotFound       = newError("PaymentNotFound", "payment not found", ErrReferential, ErrNotFound)
	ErrProtectedCurrency     = newError("ProtectedCurrency", "system or default currency cannot be deleted", ErrReferential)
	ErrCurrencyInUse         = newError("CurrencyInUse", "currency is referenced by invoices or payments", ErrReferential)
	ErrImmutableBaseCurrency = newError("ImmutableBaseCurrency", "the base currency rate is fixed at 1", ErrReferential)
)

// Business-rule errors.
var (
	ErrOverpaymentNotAllowed = newError("OverpaymentNotAllowed", "payment exceeds the outstanding balance", ErrBusinessRule)
)

// Code returns the named error code carried by err, or "" if there is none.
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// AppError wraps an infrastructure failure with the HTTP status it should map to.
type AppError struct {
	Status  int
	Message string
	Err     error
}

// NewAppError creates a new AppError.
func NewAppError(status int, message string, err error) *AppError {
	return &AppError{Status: status, Message: message, Err: err}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewValidationError returns an ErrValidation-wrapped error with the given detail.
func NewValidationError(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// NewNotFoundError returns an ErrNotFound-wrapped error with the given detail.
func NewNotFoundError(msg string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, msg)
}
