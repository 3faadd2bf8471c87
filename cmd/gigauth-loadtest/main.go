package main

import (
	"context"
	"fmt"
	"net/http/httptest"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/gigauth"
	"github.com/MrEthical07/gigauth/internal/stubserver"
	"github.com/MrEthical07/gigauth/metrics/export/prometheus"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
)

const (
	loadEmail    = "load@example.com"
	loadPassword = "load-test-secret"
)

func main() {
	var (
		concurrency = flag.IntP("concurrency", "c", 64, "number of concurrent workers")
		ops         = flag.IntP("ops", "n", 20000, "requests per phase")
		expireEvery = flag.Duration("expire-every", 50*time.Millisecond, "how often the expiry phase invalidates access tokens")
		refreshLag  = flag.Duration("refresh-delay", 20*time.Millisecond, "artificial latency of the refresh endpoint")
		redisAddr   = flag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		showMetrics = flag.Bool("metrics", false, "print client metrics in Prometheus format at the end")
	)
	flag.Parse()

	if *concurrency <= 0 || *ops <= 0 || *expireEvery <= 0 {
		fmt.Fprintln(os.Stderr, "concurrency, ops, and expire-every must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	backend, err := stubserver.New(stubserver.Config{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "stub backend: %v\n", err)
		os.Exit(1)
	}
	if _, err := backend.AddUser(loadEmail, loadPassword, "Load", "CLIENT"); err != nil {
		fmt.Fprintf(os.Stderr, "seed user: %v\n", err)
		os.Exit(1)
	}
	backend.SetRefreshDelay(*refreshLag)
	srv := httptest.NewServer(backend.Handler())
	defer srv.Close()

	cfg := gigauth.DefaultConfig()
	cfg.Transport.BaseURL = srv.URL
	cfg.Session.WatchExternal = false
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := gigauth.New().
		WithConfig(cfg).
		WithRedis(client, time.Hour).
		Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "build: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	if _, err := engine.Login(ctx, loadEmail, loadPassword); err != nil {
		fmt.Fprintf(os.Stderr, "login: %v\n", err)
		os.Exit(1)
	}

	steady := runPhase(ctx, engine, *ops, *concurrency, nil)

	var expirations atomic.Int64
	storm := runPhase(ctx, engine, *ops, *concurrency, func(stop <-chan struct{}) {
		ticker := time.NewTicker(*expireEvery)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				backend.ExpireAccessTokens()
				expirations.Add(1)
			}
		}
	})

	fmt.Println("---- results ----")
	printStats("steady", steady)
	printStats("expiry", storm)

	refreshes := backend.Hits("POST /auth/refresh")
	fmt.Printf("expirations=%d refresh_calls=%d state=%s\n", expirations.Load(), refreshes, engine.State())
	if int64(refreshes) > expirations.Load() {
		fmt.Fprintln(os.Stderr, "more refresh calls than expiry events: refresh is not single-flight")
		os.Exit(1)
	}

	if *showMetrics {
		fmt.Println("---- metrics ----")
		fmt.Print(prometheus.New(engine).Render())
	}
}

func runPhase(ctx context.Context, engine *gigauth.Engine, ops, concurrency int, disrupt func(stop <-chan struct{})) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	stop := make(chan struct{})
	disrupted := make(chan struct{})
	if disrupt != nil {
		go func() {
			defer close(disrupted)
			disrupt(stop)
		}()
	} else {
		close(disrupted)
	}

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				out := engine.Send(ctx, gigauth.Get("/services/mine"))
				d := time.Since(t0)
				if out.Kind() != gigauth.OutcomeSuccess {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)
	close(stop)
	<-disrupted
	return computeStats(total, latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
