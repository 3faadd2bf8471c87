package gigauth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/gigauth/internal/audit"
	"github.com/google/uuid"
)

// ErrResponseTooLarge is the cause attached to an outcome whose body exceeded
// TransportConfig.MaxResponseBytes.
var ErrResponseTooLarge = errors.New("response body too large")

// errAbsolutePath is the cause attached when a request path is a full URL.
// The bearer credential is only ever sent to the configured base URL.
var errAbsolutePath = errors.New("request path must be relative to the base URL")

// credentialSource is the coordinator as the client sees it.
type credentialSource interface {
	CurrentCredential() string
	renewCredential(ctx context.Context, failedCredential string) (string, error)
	rejectReplayed(ctx context.Context, credential string) error
}

// Client sends requests to the marketplace API and classifies every result
// into an [Outcome]. It is safe for concurrent use.
//
// A Client built by [Builder.Build] is bound to a [Coordinator]: it attaches the
// coordinator's current credential and reports 401 responses to it. A
// standalone Client from [NewClient] sends anonymous requests only.
type Client struct {
	cfg     TransportConfig
	base    *url.URL
	http    *http.Client
	creds   credentialSource
	log     *audit.Dispatcher
	debug   bool
	metrics *Metrics
}

// NewClient describes the newclient operation and its observable behavior.
//
// NewClient returns an error when cfg.BaseURL is not an absolute http(s) URL.
// A nil httpClient selects a dedicated client without a global timeout;
// per-call timeouts come from cfg.Timeout or [Request.Timeout].
func NewClient(cfg TransportConfig, httpClient *http.Client) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || base.Host == "" || (base.Scheme != "http" && base.Scheme != "https") {
		return nil, errors.New("gigauth: base URL must be an absolute http(s) URL")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Transport.Timeout
	}
	if cfg.MaxResponseBytes <= 0 {
		cfg.MaxResponseBytes = DefaultConfig().Transport.MaxResponseBytes
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, base: base, http: httpClient}, nil
}

func (c *Client) bind(creds credentialSource, log *audit.Dispatcher, debug bool, metrics *Metrics) {
	c.creds = creds
	c.log = log
	c.debug = debug
	c.metrics = metrics
}

// BaseURL returns the API root requests are resolved against.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// Send describes the send operation and its observable behavior.
//
// Send builds the request, attaches the live credential, dispatches it under a
// timeout, and classifies the result. It never panics and never returns a raw
// transport error. On a 401 it reports the credential it used to the
// coordinator and waits for the verdict; if a refresh of that very credential
// produced a new one and replay is enabled, the request is sent once more with
// it. A 401 on the replay ends the session.
func (c *Client) Send(ctx context.Context, req Request) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	req = req.clone()

	credential := c.bearerFor(req)
	outcome := c.dispatch(ctx, req, credential, false)

	expired, ok := outcome.(AuthExpired)
	if !ok || c.creds == nil {
		return outcome
	}

	next, err := c.creds.renewCredential(ctx, credential)
	if err != nil {
		expired.Refresh = err
		return expired
	}
	if !c.cfg.ReplayAfterRefresh || next == "" || next == credential {
		return expired
	}

	c.metrics.Inc(MetricRequestReplayed)
	replayed := c.dispatch(ctx, req, next, true)
	if again, ok := replayed.(AuthExpired); ok {
		// The refreshed credential was refused too. The session ends; there is
		// no second refresh and no second replay.
		again.Refresh = c.creds.rejectReplayed(ctx, next)
		return again
	}
	return replayed
}

// Do sends req and decodes a successful JSON payload into out, which may be
// nil. Any other outcome is returned as an *[OutcomeError].
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	outcome := c.Send(ctx, req)
	success, ok := outcome.(Success)
	if !ok {
		return &OutcomeError{Method: methodOf(req), Path: req.Path, Outcome: outcome}
	}
	if out == nil {
		return nil
	}
	if err := success.Decode(out); err != nil {
		return fmt.Errorf("gigauth: decode %s %s: %w", methodOf(req), req.Path, err)
	}
	return nil
}

func (c *Client) bearerFor(req Request) string {
	if req.exchange {
		return req.bearer
	}
	if c.creds == nil {
		return ""
	}
	return c.creds.CurrentCredential()
}

func (c *Client) dispatch(ctx context.Context, req Request, credential string, replayed bool) Outcome {
	start := time.Now()
	requestID := requestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var outcome Outcome
	httpReq, err := c.build(callCtx, req, credential, requestID)
	if err != nil {
		outcome = ClientError{Cause: err}
	} else {
		outcome = c.roundTrip(httpReq, req.exchange)
	}

	c.observe(ctx, req, requestID, outcome, time.Since(start), replayed)
	return outcome
}

func (c *Client) build(ctx context.Context, req Request, credential, requestID string) (*http.Request, error) {
	target, err := c.resolve(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	switch b := req.Body.(type) {
	case nil:
	case json.RawMessage:
		body = bytes.NewReader(b)
	case []byte:
		body = bytes.NewReader(b)
	default:
		encoded, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, methodOf(req), target, body)
	if err != nil {
		return nil, err
	}
	for k, v := range req.Header {
		for _, s := range v {
			httpReq.Header.Add(k, s)
		}
	}
	httpReq.Header.Del("Authorization")
	if credential != "" {
		httpReq.Header.Set("Authorization", "Bearer "+credential)
	}
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", jsonMediaType.String())
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", jsonMediaType.String())
	}
	if c.cfg.UserAgent != "" {
		httpReq.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	httpReq.Header.Set("X-Request-ID", requestID)
	return httpReq, nil
}

func (c *Client) resolve(path string, query url.Values) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse path: %w", err)
	}
	if ref.IsAbs() || ref.Host != "" {
		return "", errAbsolutePath
	}

	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	u.RawPath = ""
	q := ref.Query()
	for k, v := range query {
		for _, s := range v {
			q.Add(k, s)
		}
	}
	u.RawQuery = q.Encode()
	u.Fragment = ""
	return u.String(), nil
}

func (c *Client) roundTrip(httpReq *http.Request, exchange bool) Outcome {
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return NetworkUnavailable{Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResponseBytes+1))
	if err != nil {
		return NetworkUnavailable{Cause: err}
	}
	if int64(len(body)) > c.cfg.MaxResponseBytes {
		return classifyOversized(resp.StatusCode, resp.Header, exchange)
	}
	return classify(resp.StatusCode, resp.Header, body, exchange)
}

// classifyOversized classifies a response whose body was discarded. The status
// still picks the variant, so a 401 remains an expiry signal and a 5xx remains
// a ServerFault. A 2xx is useless without its payload and becomes an unusable
// ClientError with Status 0.
func classifyOversized(status int, header http.Header, exchange bool) Outcome {
	switch o := classify(status, header, nil, exchange).(type) {
	case Success:
		return ClientError{Cause: fmt.Errorf("%w: status %d", ErrResponseTooLarge, o.Status)}
	case ClientError:
		o.Cause = ErrResponseTooLarge
		return o
	case ServerFault:
		o.Cause = ErrResponseTooLarge
		return o
	default:
		return o
	}
}

// classify maps an HTTP status to an outcome. On credential-exchange endpoints
// a 401 means the submitted credentials were refused, not that a session
// expired.
func classify(status int, header http.Header, body []byte, exchange bool) Outcome {
	switch {
	case status >= 200 && status < 300:
		return Success{Status: status, Header: header, Payload: body}
	case status == http.StatusUnauthorized && !exchange:
		return AuthExpired{}
	case status >= 400 && status < 500:
		return ClientError{Status: status, Body: body}
	default:
		return ServerFault{Status: status, Body: body}
	}
}

func (c *Client) observe(ctx context.Context, req Request, requestID string, outcome Outcome, d time.Duration, replayed bool) {
	c.metrics.recordOutcome(outcome, d)
	if !c.debug || c.log == nil {
		return
	}

	event := audit.Event{
		Kind:      audit.KindRequest,
		RequestID: requestID,
		Method:    methodOf(req),
		Path:      req.Path,
		Status:    statusOf(outcome),
		Outcome:   outcome.Kind().String(),
		Duration:  d,
		Replayed:  replayed,
	}
	switch o := outcome.(type) {
	case NetworkUnavailable:
		if o.Cause != nil {
			event.Error = o.Cause.Error()
		}
	case ClientError:
		if o.Cause != nil {
			event.Error = o.Cause.Error()
		}
	}
	c.log.Emit(ctx, event)
}

func methodOf(req Request) string {
	if req.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(req.Method)
}
