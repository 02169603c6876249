package logging

import (
	"context"
	"log/slog"

	"cloudpose/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldCorrelationID is the standardized key for request envelope identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldOperation is the standardized key for the remote operation (keypoints/annotated).
	FieldOperation = "operation"
	// FieldEventType classifies warnings and errors for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint suggests a next step for the operator.
	FieldErrorHint = "error_hint"
)

// WithContext tags logger with the operation and request id carried by ctx.
// The logger is returned unchanged when ctx carries neither.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	if ctx == nil {
		return logger
	}
	var args []any
	if op, ok := services.OperationFromContext(ctx); ok {
		args = append(args, slog.String(FieldOperation, op))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		args = append(args, slog.String(FieldCorrelationID, rid))
	}
	if len(args) == 0 {
		return logger
	}
	return logger.With(args...)
}
