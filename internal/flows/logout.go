package flows

import (
	"context"
	"net/http"
)

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Path     string
	Exchange Exchange
}

// RunLogout asks the backend to revoke the session. The reply is informational:
// local eviction happens whatever the backend says.
func RunLogout(ctx context.Context, accessToken, refreshToken string, deps LogoutDeps) Reply {
	var body any
	if refreshToken != "" {
		body = map[string]string{"refreshToken": refreshToken}
	}
	return deps.Exchange(ctx, Call{
		Method:   http.MethodPost,
		Path:     deps.Path,
		Body:     body,
		Bearer:   accessToken,
		Exchange: true,
	})
}
