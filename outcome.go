package gigauth

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/elnormous/contenttype"
)

// OutcomeKind enumerates the [Outcome] variants for logs and metrics.
type OutcomeKind uint8

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeClientError
	OutcomeAuthExpired
	OutcomeNetworkUnavailable
	OutcomeServerFault
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeClientError:
		return "client_error"
	case OutcomeAuthExpired:
		return "auth_expired"
	case OutcomeNetworkUnavailable:
		return "network_unavailable"
	case OutcomeServerFault:
		return "server_fault"
	default:
		return "unknown"
	}
}

// Outcome is the classified result of [Client.Send]. It is exactly one of
// [Success], [ClientError], [AuthExpired], [NetworkUnavailable] or [ServerFault];
// callers type-switch on it.
type Outcome interface {
	Kind() OutcomeKind
	sealed()
}

// Success is a 2xx response.
type Success struct {
	Status  int
	Header  http.Header
	Payload []byte
}

// ClientError is a 4xx response other than an expiry signal, or a call whose
// result could not be used (Status 0, Cause set): the request could not be
// built, or a 2xx body exceeded the response limit.
type ClientError struct {
	Status int
	Body   []byte
	Cause  error
}

// AuthExpired is a 401 on a bearer-authenticated request. Refresh holds the
// coordinator's verdict: nil means a session is still live (a refresh
// succeeded, or another login replaced the credential) but the request was not
// replayed; non-nil means the session has ended or the wait was abandoned.
type AuthExpired struct {
	Refresh error
}

// NetworkUnavailable means no response was received.
type NetworkUnavailable struct {
	Cause error
}

// ServerFault is a 5xx response, or a status no other variant covers. Cause is
// set when the body was discarded.
type ServerFault struct {
	Status int
	Body   []byte
	Cause  error
}

func (Success) Kind() OutcomeKind            { return OutcomeSuccess }
func (ClientError) Kind() OutcomeKind        { return OutcomeClientError }
func (AuthExpired) Kind() OutcomeKind        { return OutcomeAuthExpired }
func (NetworkUnavailable) Kind() OutcomeKind { return OutcomeNetworkUnavailable }
func (ServerFault) Kind() OutcomeKind        { return OutcomeServerFault }

func (Success) sealed()            {}
func (ClientError) sealed()        {}
func (AuthExpired) sealed()        {}
func (NetworkUnavailable) sealed() {}
func (ServerFault) sealed()        {}

var jsonMediaType = contenttype.NewMediaType("application/json")

// IsJSON reports whether the response declared a JSON content type.
func (s Success) IsJSON() bool {
	if s.Header == nil {
		return false
	}
	ct := s.Header.Get("Content-Type")
	if ct == "" {
		return false
	}
	return contenttype.NewMediaType(ct).Matches(jsonMediaType)
}

// Decode unmarshals the JSON payload into v. An empty payload leaves v untouched.
func (s Success) Decode(v any) error {
	if len(s.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(s.Payload, v)
}

// Message returns the "message" or "error" string of a JSON error body, if any.
func (c ClientError) Message() string {
	return errorMessage(c.Body)
}

func errorMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

// OutcomeError adapts a non-success [Outcome] to the error interface for
// callers that prefer (value, error) returns.
type OutcomeError struct {
	Method  string
	Path    string
	Outcome Outcome
}

func (e *OutcomeError) Error() string {
	return fmt.Sprintf("gigauth: %s %s: %s", e.Method, e.Path, describeOutcome(e.Outcome))
}

func (e *OutcomeError) Unwrap() error {
	switch o := e.Outcome.(type) {
	case NetworkUnavailable:
		return o.Cause
	case ClientError:
		return o.Cause
	case ServerFault:
		return o.Cause
	case AuthExpired:
		return o.Refresh
	}
	return nil
}

// StatusCode returns the HTTP status of err's outcome, or 0.
func StatusCode(err error) int {
	var outErr *OutcomeError
	if !errors.As(err, &outErr) {
		return 0
	}
	return statusOf(outErr.Outcome)
}

func statusOf(o Outcome) int {
	switch v := o.(type) {
	case Success:
		return v.Status
	case ClientError:
		return v.Status
	case AuthExpired:
		return http.StatusUnauthorized
	case ServerFault:
		return v.Status
	}
	return 0
}

func describeOutcome(o Outcome) string {
	switch v := o.(type) {
	case nil:
		return "no outcome"
	case Success:
		return "success " + strconv.Itoa(v.Status)
	case ClientError:
		if v.Status == 0 {
			if errors.Is(v.Cause, ErrResponseTooLarge) {
				return "response discarded: " + v.Cause.Error()
			}
			if v.Cause != nil {
				return "request not sent: " + v.Cause.Error()
			}
			return "request not sent"
		}
		if msg := v.Message(); msg != "" {
			return fmt.Sprintf("client error %d: %s", v.Status, msg)
		}
		return "client error " + strconv.Itoa(v.Status)
	case AuthExpired:
		return "auth expired"
	case NetworkUnavailable:
		if v.Cause != nil {
			return "network unavailable: " + v.Cause.Error()
		}
		return "network unavailable"
	case ServerFault:
		return "server fault " + strconv.Itoa(v.Status)
	default:
		return o.Kind().String()
	}
}
