package flows

import (
	"context"
	"net/http"
	"strings"
	"time"
)

// LoginFailureKind classifies login failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	// LoginFailureRejected means the backend answered 401 to the submitted
	// credentials.
	LoginFailureRejected
	// LoginFailureTransport covers every other non-success reply.
	LoginFailureTransport
	LoginFailureMalformed
)

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Path            string
	IdentifierField string
	Exchange        Exchange
	Now             func() time.Time
}

// LoginResult carries either the issued credentials or failure metadata.
type LoginResult struct {
	Failure     LoginFailureKind
	Err         error
	Reply       Reply
	Credentials Credentials
}

// RunLogin exchanges an identifier and secret for credentials.
func RunLogin(ctx context.Context, identifier, secret string, deps LoginDeps) LoginResult {
	field := deps.IdentifierField
	if field == "" {
		field = "email"
	}

	reply := deps.Exchange(ctx, Call{
		Method:   http.MethodPost,
		Path:     deps.Path,
		Body:     map[string]string{field: strings.TrimSpace(identifier), "password": secret},
		Exchange: true,
	})
	return loginResultFrom(reply, now(deps.Now))
}

func loginResultFrom(reply Reply, at time.Time) LoginResult {
	switch reply.Class {
	case ClassSuccess:
	case ClassRejected, ClassExpired:
		kind := LoginFailureTransport
		if reply.Status == http.StatusUnauthorized {
			kind = LoginFailureRejected
		}
		return LoginResult{Failure: kind, Err: reply.Err, Reply: reply}
	default:
		return LoginResult{Failure: LoginFailureTransport, Err: reply.Err, Reply: reply}
	}

	creds, err := ParseAuthResponse(reply.Body, at)
	if err != nil {
		return LoginResult{Failure: LoginFailureMalformed, Err: err, Reply: reply}
	}
	return LoginResult{Reply: reply, Credentials: creds}
}

func now(fn func() time.Time) time.Time {
	if fn != nil {
		return fn()
	}
	return time.Now()
}
