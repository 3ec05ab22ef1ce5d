package log

import (
	"context"

	"github.com/rs/zerolog"
)

type ctxKey struct{}

// WithLogger stores a logger in the context.
func WithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// WithConnection returns a context whose logger carries the websocket
// connection id, so every event handled for that connection logs it.
func WithConnection(ctx context.Context, connectionID string) context.Context {
	logger := Ctx(ctx).With().Str(FieldConnectionID, connectionID).Logger()
	return WithLogger(ctx, logger)
}

// Ctx retrieves the logger from the context, falling back to the
// global logger.
func Ctx(ctx context.Context) zerolog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(zerolog.Logger); ok {
		return l
	}
	return L()
}
