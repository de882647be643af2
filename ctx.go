package signin

import "context"

var fallbackSignInCtxKey = &contextKey{"fallback_sign_in"}

type contextKey struct {
	name string
}

// WithFallbackSignIn marks ctx as the primary sign-in that follows an
// approving fallback. Backend decorators use it to tell the follow-up apart
// from a fresh attempt.
func WithFallbackSignIn(ctx context.Context) context.Context {
	return context.WithValue(ctx, fallbackSignInCtxKey, true)
}

// IsFallbackSignIn reports whether ctx carries the WithFallbackSignIn mark.
func IsFallbackSignIn(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	marked, _ := ctx.Value(fallbackSignInCtxKey).(bool)
	return marked
}
