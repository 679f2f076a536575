package services

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"github.com/SscSPs/hotel_billing/internal/apperrors"
	"github.com/SscSPs/hotel_billing/internal/core/domain"
	"github.com/SscSPs/hotel_billing/internal/middleware"
	"github.com/SscSPs/hotel_billing/internal/platform/metrics"
)

var currencyCodePattern = regexp.MustCompile(`^[A-Z]{3}$`)

// BaseService provides common functionality for all services
type BaseService struct {
	Metrics *metrics.BillingMetrics
	Clock   func() time.Time
}

// Now returns the service clock, UTC.
func (s *BaseService) Now() time.Time {
	if s.Clock != nil {
		return s.Clock().UTC()
	}
	return time.Now().UTC()
}

// GetLogger gets the logger from context or returns a default one
func (s *BaseService) GetLogger(ctx context.Context) *slog.Logger {
	return middleware.GetLoggerFromCtx(ctx)
}

// LogError logs an error with consistent formatting
func (s *BaseService) LogError(ctx context.Context, err error, msg string, keyvals ...any) {
	args := make([]any, 0, len(keyvals)+1)
	args = append(args, slog.String("error", err.Error()))
	args = append(args, keyvals...)
	s.GetLogger(ctx).Error(msg, args...)
}

// LogWarn logs a rejected operation
func (s *BaseService) LogWarn(ctx context.Context, err error, msg string, keyvals ...any) {
	args := make([]any, 0, len(keyvals)+2)
	args = append(args, slog.String("error", err.Error()), slog.String("code", apperrors.Code(err)))
	args = append(args, keyvals...)
	s.GetLogger(ctx).Warn(msg, args...)
}

// LogInfo logs an info message with consistent formatting
func (s *BaseService) LogInfo(ctx context.Context, msg string, keyvals ...any) {
	s.GetLogger(ctx).Info(msg, keyvals...)
}

// LogDebug logs a debug message with consistent formatting
func (s *BaseService) LogDebug(ctx context.Context, msg string, keyvals ...any) {
	s.GetLogger(ctx).Debug(msg, keyvals...)
}

// Reject records and logs a failed operation, then returns err unchanged.
// Named domain errors log at Warn, everything else at Error.
func (s *BaseService) Reject(ctx context.Context, operation string, err error, keyvals ...any) error {
	s.Metrics.Rejected(operation, err)
	if apperrors.Code(err) != "" {
		s.LogWarn(ctx, err, "Rejected "+operation, keyvals...)
	} else {
		s.LogError(ctx, err, "Failed "+operation, keyvals...)
	}
	return err
}

func newAuditFields(now time.Time, userID string) domain.AuditFields {
	return domain.AuditFields{
		CreatedAt:     now,
		CreatedBy:     userID,
		LastUpdatedAt: now,
		LastUpdatedBy: userID,
	}
}

func touch(a *domain.AuditFields, now time.Time, userID string) {
	a.LastUpdatedAt = now
	a.LastUpdatedBy = userID
}

func validCurrencyCode(code string) bool {
	return currencyCodePattern.MatchString(code)
}
