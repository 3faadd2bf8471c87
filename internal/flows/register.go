package flows

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/gigauth/password"
)

// RegisterFailureKind classifies registration failures for root-level mapping.
type RegisterFailureKind int

const (
	RegisterFailureNone RegisterFailureKind = iota
	// RegisterFailureInvalid means the form failed local checks; no request was
	// sent.
	RegisterFailureInvalid
	RegisterFailureRejected
	RegisterFailureTransport
	RegisterFailureMalformed
)

// RegisterForm is the registration payload.
type RegisterForm struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
	Role            string
	Extra           map[string]any
}

// RegisterDeps captures registration flow dependencies.
type RegisterDeps struct {
	Path            string
	IdentifierField string
	Policy          password.Policy
	Exchange        Exchange
	Now             func() time.Time

	// LoginAfter, when set, is used to obtain credentials if the backend
	// acknowledges the registration without issuing any.
	LoginAfter *LoginDeps
}

// RegisterResult carries either the issued credentials or failure metadata.
type RegisterResult struct {
	Failure     RegisterFailureKind
	Err         error
	Fields      map[string]string
	Reply       Reply
	Credentials Credentials
}

// RunRegister validates form locally, then creates the account.
func RunRegister(ctx context.Context, form RegisterForm, deps RegisterDeps) RegisterResult {
	if fields := deps.Policy.CheckRegistration(form.Email, form.Password, form.ConfirmPassword); fields != nil {
		return RegisterResult{Failure: RegisterFailureInvalid, Fields: fields}
	}

	field := deps.IdentifierField
	if field == "" {
		field = "email"
	}
	body := make(map[string]any, len(form.Extra)+4)
	for k, v := range form.Extra {
		body[k] = v
	}
	body[field] = strings.TrimSpace(form.Email)
	body["password"] = form.Password
	if name := strings.TrimSpace(form.Name); name != "" {
		body["name"] = name
	}
	if role := strings.TrimSpace(form.Role); role != "" {
		body["role"] = strings.ToUpper(role)
	}

	reply := deps.Exchange(ctx, Call{
		Method:   http.MethodPost,
		Path:     deps.Path,
		Body:     body,
		Exchange: true,
	})
	switch reply.Class {
	case ClassSuccess:
	case ClassRejected, ClassExpired:
		return RegisterResult{Failure: RegisterFailureRejected, Err: reply.Err, Reply: reply}
	default:
		return RegisterResult{Failure: RegisterFailureTransport, Err: reply.Err, Reply: reply}
	}

	creds, err := ParseAuthResponse(reply.Body, now(deps.Now))
	if err == nil {
		return RegisterResult{Reply: reply, Credentials: creds}
	}
	if deps.LoginAfter == nil {
		return RegisterResult{Failure: RegisterFailureMalformed, Err: err, Reply: reply}
	}

	login := RunLogin(ctx, form.Email, form.Password, *deps.LoginAfter)
	switch login.Failure {
	case LoginFailureNone:
		return RegisterResult{Reply: login.Reply, Credentials: login.Credentials}
	case LoginFailureMalformed:
		return RegisterResult{Failure: RegisterFailureMalformed, Err: login.Err, Reply: login.Reply}
	case LoginFailureRejected:
		return RegisterResult{Failure: RegisterFailureRejected, Err: login.Err, Reply: login.Reply}
	default:
		return RegisterResult{Failure: RegisterFailureTransport, Err: login.Err, Reply: login.Reply}
	}
}
