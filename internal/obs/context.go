package obs

import "context"

type ctxKey int

const routePatternKey ctxKey = iota

// WithRoutePattern stores the matched router pattern on the context.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternKey, pattern)
}

// RoutePatternFromContext returns the stored pattern, or "" when the request
// never passed through RoutePatternMiddleware.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	pattern, _ := ctx.Value(routePatternKey).(string)
	return pattern
}
