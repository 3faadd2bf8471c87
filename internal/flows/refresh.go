package flows

import (
	"context"
	"net/http"
	"time"
)

// RefreshFailureKind classifies refresh failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureRejected
	RefreshFailureTransport
	RefreshFailureMalformed
)

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Path      string
	BodyField string
	Exchange  Exchange
	Now       func() time.Time
}

// RefreshResult carries either the new credentials or failure metadata. An
// empty Credentials.RefreshToken means the backend did not rotate it.
type RefreshResult struct {
	Failure     RefreshFailureKind
	Err         error
	Reply       Reply
	Credentials Credentials
}

// RunRefresh exchanges a refresh credential for a new access credential.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	field := deps.BodyField
	if field == "" {
		field = "refreshToken"
	}

	reply := deps.Exchange(ctx, Call{
		Method:   http.MethodPost,
		Path:     deps.Path,
		Body:     map[string]string{field: refreshToken},
		Exchange: true,
	})
	switch reply.Class {
	case ClassSuccess:
	case ClassRejected, ClassExpired:
		return RefreshResult{Failure: RefreshFailureRejected, Err: reply.Err, Reply: reply}
	default:
		return RefreshResult{Failure: RefreshFailureTransport, Err: reply.Err, Reply: reply}
	}

	creds, err := ParseAuthResponse(reply.Body, now(deps.Now))
	if err != nil {
		return RefreshResult{Failure: RefreshFailureMalformed, Err: err, Reply: reply}
	}
	return RefreshResult{Reply: reply, Credentials: creds}
}
