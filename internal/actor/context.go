package actor

import "context"

type contextKey struct{}

// WithRequester returns a context carrying the given requester ID (e.g. the
// operator's login or CI identity). Use Requester(ctx) to retrieve it. When
// the request has no identified requester, do not call WithRequester.
func WithRequester(ctx context.Context, requesterID string) context.Context {
	if requesterID == "" {
		return ctx
	}
	return context.WithValue(ctx, contextKey{}, requesterID)
}

// Requester returns the requester ID from the context, or empty string if not set.
func Requester(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v := ctx.Value(contextKey{})
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}
