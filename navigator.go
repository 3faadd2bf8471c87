package gigauth

import "context"

// Navigator is the application's navigation surface. The coordinator calls
// RedirectToLogin after a session ends, once the new state is committed and
// observers have been notified. It runs on the goroutine that ended the
// session and must not call back into the coordinator synchronously.
type Navigator interface {
	RedirectToLogin(ctx context.Context, reason Reason)
}

// NavigatorFunc adapts a function to [Navigator].
type NavigatorFunc func(ctx context.Context, reason Reason)

func (f NavigatorFunc) RedirectToLogin(ctx context.Context, reason Reason) {
	f(ctx, reason)
}

type noopNavigator struct{}

func (noopNavigator) RedirectToLogin(context.Context, Reason) {}
