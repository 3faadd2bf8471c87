//go:build integration
// +build integration

package test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/MrEthical07/gigauth/session"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// redisMode describes which Redis backend the compatibility suite runs against.
type redisMode struct {
	name string
	// prefix keeps the three session keys in one hash slot where that matters.
	prefix string
	setup  func(t *testing.T) (redis.UniversalClient, func())
}

// redisModes returns the Redis backends to test. miniredis is always
// available; a standalone server is used when REDIS_ADDR is set, a cluster
// when REDIS_CLUSTER_ADDRS is set.
func redisModes(t *testing.T) []redisMode {
	t.Helper()
	modes := []redisMode{
		{
			name:   "miniredis",
			prefix: session.DefaultPrefix,
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				mr, err := miniredis.Run()
				if err != nil {
					t.Fatalf("miniredis: %v", err)
				}
				rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
				return rdb, func() { _ = rdb.Close(); mr.Close() }
			},
		},
	}

	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		modes = append(modes, redisMode{
			name:   "standalone:" + addr,
			prefix: "gigauth-test:",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClient(&redis.Options{Addr: addr})
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis at %s: %v", addr, err)
				}
				rdb.FlushDB(context.Background())
				return rdb, func() { rdb.FlushDB(context.Background()); _ = rdb.Close() }
			},
		})
	}

	if addrs := os.Getenv("REDIS_CLUSTER_ADDRS"); addrs != "" {
		modes = append(modes, redisMode{
			name: "cluster",
			// MULTI/EXEC across slots fails with CROSSSLOT.
			prefix: "{gigauth-test}:",
			setup: func(t *testing.T) (redis.UniversalClient, func()) {
				t.Helper()
				rdb := redis.NewClusterClient(&redis.ClusterOptions{Addrs: splitAddrs(addrs)})
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := rdb.Ping(ctx).Err(); err != nil {
					t.Skipf("cannot connect to Redis cluster: %v", err)
				}
				return rdb, func() { _ = rdb.Close() }
			},
		})
	}

	return modes
}

func splitAddrs(s string) []string {
	var addrs []string
	for _, a := range strings.Split(s, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	return addrs
}

func compatSession() *session.Session {
	return &session.Session{
		AccessToken:  "access-compat",
		RefreshToken: "refresh-compat",
		Identity:     session.Identity{ID: "u-compat", Email: userEmail, Role: session.RoleClient, Name: "Ada"},
	}
}

func TestRedisCompat_SaveLoadRoundTrip(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			store := session.NewStore(session.NewRedisKV(rdb, time.Hour), mode.prefix)
			ctx := context.Background()

			want := compatSession()
			if err := store.Save(ctx, want); err != nil {
				t.Fatalf("save: %v", err)
			}
			got, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if got.AccessToken != want.AccessToken || got.RefreshToken != want.RefreshToken || got.Identity != want.Identity {
				t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
			}
			_ = store.Clear(ctx)
		})
	}
}

func TestRedisCompat_TTLApplied(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			store := session.NewStore(session.NewRedisKV(rdb, 10*time.Minute), mode.prefix)
			ctx := context.Background()
			if err := store.Save(ctx, compatSession()); err != nil {
				t.Fatalf("save: %v", err)
			}

			access, refresh, user := store.Keys()
			for _, key := range []string{access, refresh, user} {
				ttl, err := rdb.TTL(ctx, key).Result()
				if err != nil {
					t.Fatalf("ttl %s: %v", key, err)
				}
				if ttl <= 0 || ttl > 10*time.Minute {
					t.Errorf("key %s has TTL %v; want (0, 10m]", key, ttl)
				}
			}
			_ = store.Clear(ctx)
		})
	}
}

func TestRedisCompat_EmptyRefreshRemovesKey(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			store := session.NewStore(session.NewRedisKV(rdb, 0), mode.prefix)
			ctx := context.Background()

			sess := compatSession()
			if err := store.Save(ctx, sess); err != nil {
				t.Fatalf("save: %v", err)
			}
			sess.RefreshToken = ""
			if err := store.Save(ctx, sess); err != nil {
				t.Fatalf("save without refresh: %v", err)
			}

			_, refresh, _ := store.Keys()
			if n, _ := rdb.Exists(ctx, refresh).Result(); n != 0 {
				t.Fatal("expected refresh key removed")
			}
			got, err := store.Load(ctx)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if got.CanRefresh() {
				t.Fatal("loaded session should carry no refresh credential")
			}
			_ = store.Clear(ctx)
		})
	}
}

func TestRedisCompat_CorruptIdentity(t *testing.T) {
	for _, mode := range redisModes(t) {
		t.Run(mode.name, func(t *testing.T) {
			rdb, cleanup := mode.setup(t)
			defer cleanup()

			store := session.NewStore(session.NewRedisKV(rdb, 0), mode.prefix)
			ctx := context.Background()
			access, _, user := store.Keys()

			if err := rdb.Set(ctx, access, "access-compat", 0).Err(); err != nil {
				t.Fatalf("seed access: %v", err)
			}
			if err := rdb.Set(ctx, user, "{not json", 0).Err(); err != nil {
				t.Fatalf("seed user: %v", err)
			}

			if _, err := store.Load(ctx); !errors.Is(err, session.ErrCorrupt) {
				t.Fatalf("expected ErrCorrupt, got %v", err)
			}
			_ = store.Clear(ctx)
		})
	}
}

func TestRedisCompat_Unavailable(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	store := session.NewStore(session.NewRedisKV(rdb, 0), "")
	if _, err := store.Load(context.Background()); !errors.Is(err, session.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
