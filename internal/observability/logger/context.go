package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ToContext fija el logger del request.
func ToContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From devuelve el logger del request o, fuera de un request, el global.
func From(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok {
			return l
		}
	}
	return L()
}

// Enrich suma campos al logger del request para todo lo que corra más adentro.
func Enrich(ctx context.Context, fields ...zap.Field) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	return ToContext(ctx, From(ctx).With(fields...))
}
