//go:build integration
// +build integration

package test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrEthical07/gigauth"
	"github.com/MrEthical07/gigauth/internal/stubserver"
	"github.com/MrEthical07/gigauth/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	userEmail    = "ada@example.com"
	userPassword = "secret1"
)

type fixture struct {
	mr   *miniredis.Miniredis
	rdb  *redis.Client
	stub *stubserver.Server
	api  *httptest.Server
}

func newFixture(t *testing.T, cfg stubserver.Config) *fixture {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	stub, err := stubserver.New(cfg)
	if err != nil {
		t.Fatalf("stub server: %v", err)
	}
	if _, err := stub.AddUser(userEmail, userPassword, "Ada", "FREELANCER"); err != nil {
		t.Fatalf("add user: %v", err)
	}
	api := httptest.NewServer(stub.Handler())

	t.Cleanup(func() {
		api.Close()
		_ = rdb.Close()
		mr.Close()
	})
	return &fixture{mr: mr, rdb: rdb, stub: stub, api: api}
}

func (f *fixture) config() gigauth.Config {
	cfg := gigauth.DefaultConfig()
	cfg.Transport.BaseURL = f.api.URL
	cfg.Transport.Timeout = 5 * time.Second
	cfg.Session.WatchExternal = false
	return cfg
}

// engine builds an engine persisting to the fixture's Redis. Engines built
// from the same fixture share one session, like tabs of one browser.
func (f *fixture) engine(t *testing.T, ttl time.Duration) *gigauth.Engine {
	t.Helper()
	return f.engineWith(t, f.config(), ttl)
}

func (f *fixture) engineWith(t *testing.T, cfg gigauth.Config, ttl time.Duration) *gigauth.Engine {
	t.Helper()
	engine, err := gigauth.New().
		WithConfig(cfg).
		WithRedis(f.rdb, ttl).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func login(t *testing.T, e *gigauth.Engine) {
	t.Helper()
	if _, err := e.Login(context.Background(), userEmail, userPassword); err != nil {
		t.Fatalf("login: %v", err)
	}
}

func sessionKeys(e *gigauth.Engine) (access, refresh, user string) {
	return session.NewStore(nil, e.Config().Session.KeyPrefix).Keys()
}
