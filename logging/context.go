package logging

import "context"

type ctxKey struct{}

// ToContext returns a copy of ctx carrying logger.
func ToContext(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger carried by ctx, or Global.
func FromContext(ctx context.Context) Logger {
	if l := carried(ctx); l != nil {
		return l
	}
	return Global()
}

// NamedFromContext returns the logger carried by ctx, or the named logger of
// the default registry.
func NamedFromContext(ctx context.Context, name string) Logger {
	if l := carried(ctx); l != nil {
		return l
	}
	return GetLogger(name)
}

func carried(ctx context.Context) Logger {
	if ctx == nil {
		return nil
	}
	l, _ := ctx.Value(ctxKey{}).(Logger)
	return l
}
