package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ContextWithLogger stores a logger in the context.
func ContextWithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext extracts a logger from the context.
// Returns zap.NewNop() if no logger is found.
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// ForTenant returns the context logger tagged with a tenant id.
func ForTenant(ctx context.Context, tenantID int64) *zap.Logger {
	return FromContext(ctx).With(zap.Int64("tenant_id", tenantID))
}

// ForEntity returns the context logger tagged with a tenant and entity id.
// Extra fields are appended after the ids.
func ForEntity(ctx context.Context, tenantID, entityID int64, fields ...zap.Field) *zap.Logger {
	return FromContext(ctx).With(append([]zap.Field{
		zap.Int64("tenant_id", tenantID),
		zap.Int64("entity_id", entityID),
	}, fields...)...)
}
