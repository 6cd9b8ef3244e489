package logging

import (
	"context"
	"log/slog"

	"winnow/internal/services"
)

// Shared field names keep log output consistent across components.
const (
	FieldComponent     = "component"
	FieldItemID        = "item_id"
	FieldUserID        = "user_id"
	FieldStep          = "step"
	FieldStatus        = "status"
	FieldRoot          = "root"
	FieldPath          = "path"
	FieldEventType     = "event_type"
	FieldErrorHint     = "error_hint"
	FieldImpact        = "impact"
	FieldCorrelationID = "correlation_id"
	FieldDryRun        = "dry_run"
	FieldDuration      = "duration"
)

// ContextFields extracts logging attributes from context values set by the
// services package. Missing values produce no attribute.
func ContextFields(ctx context.Context) []Attr {
	if ctx == nil {
		return nil
	}
	attrs := make([]Attr, 0, 4)
	if itemID, ok := services.ItemIDFromContext(ctx); ok {
		attrs = append(attrs, Int64(FieldItemID, itemID))
	}
	if userID, ok := services.UserIDFromContext(ctx); ok {
		attrs = append(attrs, Int64(FieldUserID, userID))
	}
	if step, ok := services.StepFromContext(ctx); ok && step != "" {
		attrs = append(attrs, String(FieldStep, step))
	}
	if requestID, ok := services.RequestIDFromContext(ctx); ok && requestID != "" {
		attrs = append(attrs, String(FieldCorrelationID, requestID))
	}
	return attrs
}

// WithContext returns a logger enriched with any attributes found in ctx.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(Args(fields...)...)
}
