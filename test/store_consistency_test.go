//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/gigauth"
	"github.com/MrEthical07/gigauth/internal/stubserver"
)

func TestStoreConsistencyLoginVisibleToSecondEngine(t *testing.T) {
	f := newFixture(t, stubserver.Config{})
	first := f.engine(t, time.Hour)
	second := f.engine(t, time.Hour)
	ctx := context.Background()

	login(t, first)
	if second.State() != gigauth.StateAnonymous {
		t.Fatal("second engine must not see the login before syncing")
	}
	if err := second.Coordinator().Sync(ctx); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !second.Coordinator().IsAuthenticated() {
		t.Fatal("expected second engine authenticated after sync")
	}
	if got, want := second.Coordinator().CurrentCredential(), first.Coordinator().CurrentCredential(); got != want {
		t.Fatal("engines disagree on the credential")
	}
}

func TestStoreConsistencyLogoutEndsEverySession(t *testing.T) {
	f := newFixture(t, stubserver.Config{})
	first := f.engine(t, time.Hour)
	login(t, first)

	// Built after the login, so it restores the session at startup.
	second := f.engine(t, time.Hour)
	if !second.Coordinator().IsAuthenticated() {
		t.Fatal("expected restored session")
	}

	var changes []gigauth.StateChange
	second.Coordinator().Subscribe(func(c gigauth.StateChange) { changes = append(changes, c) })

	if err := first.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if err := second.Coordinator().Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if second.State() != gigauth.StateAnonymous {
		t.Fatalf("expected anonymous, got %v", second.State())
	}
	if len(changes) != 1 || changes[0].Reason != gigauth.ReasonExternal {
		t.Fatalf("expected one external transition, got %+v", changes)
	}

	access, refresh, user := sessionKeys(first)
	for _, key := range []string{access, refresh, user} {
		if f.mr.Exists(key) {
			t.Fatalf("expected %s removed", key)
		}
	}
}

func TestStoreConsistencyRefreshIsPersisted(t *testing.T) {
	f := newFixture(t, stubserver.Config{})
	engine := f.engine(t, time.Hour)
	login(t, engine)
	before := engine.Coordinator().CurrentCredential()

	f.stub.ExpireAccessTokens()
	if o := engine.Send(context.Background(), gigauth.Request{Path: "/me"}); o.Kind() != gigauth.OutcomeSuccess {
		t.Fatalf("expected success after refresh, got %v", o.Kind())
	}

	access, _, _ := sessionKeys(engine)
	stored, err := f.mr.Get(access)
	if err != nil {
		t.Fatalf("read access key: %v", err)
	}
	if stored == before || stored != engine.Coordinator().CurrentCredential() {
		t.Fatal("expected the refreshed credential persisted")
	}
}

func TestStoreConsistencyRedisExpiryEndsSessionOnRestore(t *testing.T) {
	f := newFixture(t, stubserver.Config{})
	login(t, f.engine(t, time.Minute))

	f.mr.FastForward(2 * time.Minute)

	restored := f.engine(t, time.Minute)
	if restored.Coordinator().IsAuthenticated() {
		t.Fatal("expected keys expired by redis to restore as anonymous")
	}
}

func TestStoreConsistencyRedisDownFailsLogin(t *testing.T) {
	f := newFixture(t, stubserver.Config{})
	engine := f.engine(t, time.Hour)

	f.mr.Close()

	_, err := engine.Login(context.Background(), userEmail, userPassword)
	if !errors.Is(err, gigauth.ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	if engine.State() != gigauth.StateAnonymous {
		t.Fatalf("expected anonymous after failed commit, got %v", engine.State())
	}
}
