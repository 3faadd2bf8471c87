package gigauth

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/gigauth/internal/stubserver"
)

const (
	testEmail    = "a@b.co"
	testPassword = "secret1"
)

func newStub(t *testing.T, cfg stubserver.Config) (*stubserver.Server, *httptest.Server) {
	t.Helper()

	stub, err := stubserver.New(cfg)
	if err != nil {
		t.Fatalf("stub server: %v", err)
	}
	srv := httptest.NewServer(stub.Handler())
	t.Cleanup(srv.Close)

	if _, err := stub.AddUser(testEmail, testPassword, "Ada", "FREELANCER"); err != nil {
		t.Fatalf("add user: %v", err)
	}
	return stub, srv
}

func testConfig(baseURL string) Config {
	cfg := DefaultConfig()
	cfg.Transport.BaseURL = baseURL
	cfg.Transport.Timeout = 5 * time.Second
	cfg.Session.WatchExternal = false
	return cfg
}

func buildEngine(t *testing.T, cfg Config, opts ...func(*Builder)) *Engine {
	t.Helper()

	b := New().WithConfig(cfg)
	for _, opt := range opts {
		opt(b)
	}
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func loginTestUser(t *testing.T, e *Engine) {
	t.Helper()
	if _, err := e.Login(context.Background(), testEmail, testPassword); err != nil {
		t.Fatalf("login: %v", err)
	}
}

type recordingNavigator struct {
	mu      sync.Mutex
	reasons []Reason
}

func (n *recordingNavigator) RedirectToLogin(_ context.Context, reason Reason) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reasons = append(n.reasons, reason)
}

func (n *recordingNavigator) Reasons() []Reason {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Reason(nil), n.reasons...)
}
