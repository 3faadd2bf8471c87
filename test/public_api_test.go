package test

import (
	"context"
	"net/http"
	"testing"

	"github.com/MrEthical07/gigauth"
	"github.com/MrEthical07/gigauth/jwt"
	"github.com/MrEthical07/gigauth/middleware"
	"github.com/MrEthical07/gigauth/session"
)

// Guards public API compile compatibility for consumers.
func TestPublicAPISurfaceCompile(t *testing.T) {
	_ = gigauth.New
	_ = gigauth.NewClient
	_ = gigauth.ConfigFromEnv

	var _ *gigauth.Engine
	var _ *gigauth.Client
	var _ *gigauth.Coordinator
	var _ gigauth.Config
	var _ gigauth.Request
	var _ gigauth.RegisterInput
	var _ gigauth.Navigator = gigauth.NavigatorFunc(nil)
	var _ session.KV = session.NewMemoryKV()
	var _ session.KV = session.NewFileKV("")

	var _ gigauth.Outcome = gigauth.Success{}
	var _ gigauth.Outcome = gigauth.ClientError{}
	var _ gigauth.Outcome = gigauth.AuthExpired{}
	var _ gigauth.Outcome = gigauth.NetworkUnavailable{}
	var _ gigauth.Outcome = gigauth.ServerFault{}

	var _ error = gigauth.ErrCredentialRejected
	var _ error = gigauth.ErrValidationFailed
	var _ error = gigauth.ErrRefreshFailed
	var _ error = gigauth.ErrSessionExpired
	var _ error = gigauth.ErrAuthFailed
	var _ error = gigauth.ErrStoreUnavailable
	var _ error = &gigauth.AuthError{}
	var _ error = &gigauth.OutcomeError{}

	var _ func(middleware.Verifier) func(http.Handler) http.Handler = middleware.Guard
	var _ func(*jwt.Manager) func(http.Handler) http.Handler = middleware.RequireJWT

	var _ func(*gigauth.Client, context.Context, gigauth.Request) gigauth.Outcome = (*gigauth.Client).Send
	var _ func(*gigauth.Coordinator, context.Context, string, string) (*session.Session, error) = (*gigauth.Coordinator).Login
	var _ func(*gigauth.Coordinator, context.Context) error = (*gigauth.Coordinator).Logout
	var _ func(*gigauth.Coordinator, context.Context, string) error = (*gigauth.Coordinator).HandleAuthExpired
	var _ func(*gigauth.Coordinator) gigauth.State = (*gigauth.Coordinator).State
}
