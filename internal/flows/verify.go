package flows

import (
	"context"
	"net/http"

	"github.com/MrEthical07/gigauth/session"
)

// VerifyFailureKind classifies verification failures for root-level mapping.
type VerifyFailureKind int

const (
	VerifyFailureNone VerifyFailureKind = iota
	VerifyFailureExpired
	VerifyFailureRejected
	VerifyFailureTransport
)

// VerifyDeps captures verification flow dependencies.
type VerifyDeps struct {
	Path     string
	Exchange Exchange
}

// VerifyResult carries the identity the backend reports for the current
// credential. Identity is zero when the response has no user object.
type VerifyResult struct {
	Failure  VerifyFailureKind
	Err      error
	Reply    Reply
	Identity session.Identity
}

// RunVerify checks the current credential against the backend. The call goes
// through the regular transport path, so an expired credential triggers the
// refresh protocol before a verdict is returned.
func RunVerify(ctx context.Context, deps VerifyDeps) VerifyResult {
	reply := deps.Exchange(ctx, Call{
		Method: http.MethodGet,
		Path:   deps.Path,
	})
	switch reply.Class {
	case ClassSuccess:
		return VerifyResult{Reply: reply, Identity: ParseIdentity(reply.Body)}
	case ClassExpired:
		return VerifyResult{Failure: VerifyFailureExpired, Err: reply.Err, Reply: reply}
	case ClassRejected:
		return VerifyResult{Failure: VerifyFailureRejected, Err: reply.Err, Reply: reply}
	default:
		return VerifyResult{Failure: VerifyFailureTransport, Err: reply.Err, Reply: reply}
	}
}
