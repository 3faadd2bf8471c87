package stubserver

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tidwall/gjson"
)

func newTestServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new stub: %v", err)
	}
	if _, err := s.AddUser("a@b.co", "secret1", "Ada", "freelancer"); err != nil {
		t.Fatalf("add user: %v", err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func call(t *testing.T, method, url, bearer, body string) (int, gjson.Result) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, gjson.ParseBytes(data)
}

func TestLoginIssuesTokens(t *testing.T) {
	_, ts := newTestServer(t, Config{})

	status, body := call(t, http.MethodPost, ts.URL+"/auth/login", "", `{"email":"A@B.co","password":"secret1"}`)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body.Get("accessToken").String() == "" || body.Get("refreshToken").String() == "" {
		t.Fatalf("expected both tokens, got %s", body.Raw)
	}
	if body.Get("user.role").String() != "FREELANCER" {
		t.Fatalf("unexpected role %q", body.Get("user.role").String())
	}
	if body.Get("expiresIn").Int() != int64((15 * time.Minute).Seconds()) {
		t.Fatalf("unexpected expiresIn %d", body.Get("expiresIn").Int())
	}

	status, me := call(t, http.MethodGet, ts.URL+"/me", body.Get("accessToken").String(), "")
	if status != http.StatusOK || me.Get("user.email").String() != "a@b.co" {
		t.Fatalf("unexpected /me %d %s", status, me.Raw)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	status, _ := call(t, http.MethodPost, ts.URL+"/auth/login", "", `{"email":"a@b.co","password":"nope"}`)
	if status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
}

func TestRejectsNonJSONBody(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	resp, err := http.Post(ts.URL+"/auth/login", "text/plain", bytes.NewBufferString("hi"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", resp.StatusCode)
	}
}

func TestExpireAccessTokensKeepsRefresh(t *testing.T) {
	s, ts := newTestServer(t, Config{})
	_, login := call(t, http.MethodPost, ts.URL+"/auth/login", "", `{"email":"a@b.co","password":"secret1"}`)
	access := login.Get("accessToken").String()
	refresh := login.Get("refreshToken").String()

	s.ExpireAccessTokens()
	if status, _ := call(t, http.MethodGet, ts.URL+"/me", access, ""); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 after expiry, got %d", status)
	}

	status, body := call(t, http.MethodPost, ts.URL+"/auth/refresh", "", `{"refreshToken":"`+refresh+`"}`)
	if status != http.StatusOK {
		t.Fatalf("expected refresh 200, got %d", status)
	}
	if body.Get("refreshToken").Exists() {
		t.Fatal("refresh must not rotate unless configured")
	}
	if body.Get("user").Exists() {
		t.Fatal("refresh response carries no user")
	}
	if status, _ := call(t, http.MethodGet, ts.URL+"/me", body.Get("accessToken").String(), ""); status != http.StatusOK {
		t.Fatalf("expected refreshed token accepted, got %d", status)
	}
}

func TestRotateRefreshRevokesOldToken(t *testing.T) {
	s, ts := newTestServer(t, Config{RotateRefresh: true})
	_, login := call(t, http.MethodPost, ts.URL+"/auth/login", "", `{"email":"a@b.co","password":"secret1"}`)
	old := login.Get("refreshToken").String()

	_, first := call(t, http.MethodPost, ts.URL+"/auth/refresh", "", `{"refreshToken":"`+old+`"}`)
	if next := first.Get("refreshToken").String(); next == "" || next == old {
		t.Fatalf("expected a rotated refresh token, got %q", next)
	}
	if status, _ := call(t, http.MethodPost, ts.URL+"/auth/refresh", "", `{"refreshToken":"`+old+`"}`); status != http.StatusUnauthorized {
		t.Fatalf("expected old refresh token refused, got %d", status)
	}
	if got := s.LiveRefreshTokens(); got != 1 {
		t.Fatalf("expected one live refresh token, got %d", got)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	_, ts := newTestServer(t, Config{})
	status, _ := call(t, http.MethodPost, ts.URL+"/auth/register", "", `{"email":"a@b.co","password":"x"}`)
	if status != http.StatusConflict {
		t.Fatalf("expected 409, got %d", status)
	}

	status, body := call(t, http.MethodPost, ts.URL+"/auth/register", "", `{"email":"new@b.co","password":"secret1","role":"client"}`)
	if status != http.StatusCreated || body.Get("user.role").String() != "CLIENT" {
		t.Fatalf("unexpected register %d %s", status, body.Raw)
	}
}

func TestAdminStatsRequiresRole(t *testing.T) {
	s, ts := newTestServer(t, Config{})
	if _, err := s.AddUser("root@b.co", "secret1", "Root", "ADMIN"); err != nil {
		t.Fatalf("add admin: %v", err)
	}
	_, user := call(t, http.MethodPost, ts.URL+"/auth/login", "", `{"email":"a@b.co","password":"secret1"}`)
	_, admin := call(t, http.MethodPost, ts.URL+"/auth/login", "", `{"email":"root@b.co","password":"secret1"}`)

	if status, _ := call(t, http.MethodGet, ts.URL+"/admin/stats", user.Get("accessToken").String(), ""); status != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", status)
	}
	status, stats := call(t, http.MethodGet, ts.URL+"/admin/stats", admin.Get("accessToken").String(), "")
	if status != http.StatusOK || stats.Get("accounts").Int() != 2 {
		t.Fatalf("unexpected stats %d %s", status, stats.Raw)
	}
}

func TestControls(t *testing.T) {
	s, ts := newTestServer(t, Config{})

	s.ForceStatus("GET /services", http.StatusServiceUnavailable)
	if status, _ := call(t, http.MethodGet, ts.URL+"/services", "tok", ""); status != http.StatusServiceUnavailable {
		t.Fatalf("expected forced 503, got %d", status)
	}
	s.ForceStatus("GET /services", 0)
	if status, _ := call(t, http.MethodGet, ts.URL+"/services", "", ""); status != http.StatusOK {
		t.Fatalf("expected 200 after override removed, got %d", status)
	}

	if got := s.Hits("GET /services"); got != 2 {
		t.Fatalf("expected 2 hits, got %d", got)
	}
	if got := s.LastAuthorization("GET /services"); got != "" {
		t.Fatalf("expected no authorization on last call, got %q", got)
	}

	s.SetRefreshFailure(http.StatusBadGateway)
	if status, _ := call(t, http.MethodPost, ts.URL+"/auth/refresh", "", `{"refreshToken":"x"}`); status != http.StatusBadGateway {
		t.Fatalf("expected forced refresh failure, got %d", status)
	}
}
