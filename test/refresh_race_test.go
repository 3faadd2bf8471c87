//go:build integration
// +build integration

package test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/gigauth"
	"github.com/MrEthical07/gigauth/internal/stubserver"
)

func TestRefreshRaceSingleRefresh(t *testing.T) {
	f := newFixture(t, stubserver.Config{RotateRefresh: true})
	engine := f.engine(t, time.Hour)
	login(t, engine)

	f.stub.ExpireAccessTokens()
	f.stub.SetRefreshDelay(50 * time.Millisecond)

	const workers = 16
	start := make(chan struct{})
	var wg sync.WaitGroup
	outcomes := make(chan gigauth.Outcome, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			outcomes <- engine.Send(context.Background(), gigauth.Request{Method: http.MethodGet, Path: "/me"})
		}()
	}
	close(start)
	wg.Wait()
	close(outcomes)

	for o := range outcomes {
		if o.Kind() != gigauth.OutcomeSuccess {
			t.Fatalf("expected every request to succeed after the refresh, got %v", o.Kind())
		}
	}
	if got := f.stub.Hits("POST /auth/refresh"); got != 1 {
		t.Fatalf("expected exactly one refresh call, got %d", got)
	}
	if got := f.stub.LiveRefreshTokens(); got != 1 {
		t.Fatalf("expected the rotated refresh token to be the only live one, got %d", got)
	}
}

func TestRefreshRaceFailureEndsSessionOnce(t *testing.T) {
	f := newFixture(t, stubserver.Config{})

	var mu sync.Mutex
	var redirects int
	engine, err := gigauth.New().
		WithConfig(f.config()).
		WithRedis(f.rdb, time.Hour).
		WithNavigator(gigauth.NavigatorFunc(func(context.Context, gigauth.Reason) {
			mu.Lock()
			redirects++
			mu.Unlock()
		})).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	t.Cleanup(engine.Close)
	login(t, engine)

	f.stub.ExpireAccessTokens()
	f.stub.RevokeRefreshTokens()
	f.stub.SetRefreshDelay(30 * time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = engine.Send(context.Background(), gigauth.Request{Path: "/services/mine"})
		}()
	}
	wg.Wait()

	if engine.State() != gigauth.StateAnonymous {
		t.Fatalf("expected anonymous, got %v", engine.State())
	}
	if got := f.stub.Hits("POST /auth/refresh"); got != 1 {
		t.Fatalf("expected one refresh attempt, got %d", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if redirects != 1 {
		t.Fatalf("expected one redirect, got %d", redirects)
	}
	access, _, _ := sessionKeys(engine)
	if f.mr.Exists(access) {
		t.Fatal("expected access key removed from redis")
	}
}
