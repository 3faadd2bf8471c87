package gigauth

import "context"

type requestIDContextKey struct{}

// WithRequestID makes [Client.Send] use id as the X-Request-ID of requests sent
// with ctx instead of generating one. Useful for correlating a user action with
// backend logs.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDContextKey{}, id)
}

func requestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(requestIDContextKey{}).(string)
	return id
}
