package gigauth

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/MrEthical07/gigauth/internal/audit"
	"github.com/MrEthical07/gigauth/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine].
//
// Builder instances are configured during initialization and used once.
type Builder struct {
	config     Config
	kv         session.KV
	httpClient *http.Client
	navigator  Navigator
	logSink    LogSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig replaces the whole configuration; later With* calls adjust it.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStore sets the durable backend for the session. Without one, sessions
// live in process memory and do not survive a restart.
func (b *Builder) WithStore(kv session.KV) *Builder {
	b.kv = kv
	return b
}

// WithRedis stores the session in Redis. A positive ttl bounds how long a
// persisted session outlives its last write.
func (b *Builder) WithRedis(client redis.UniversalClient, ttl time.Duration) *Builder {
	b.kv = session.NewRedisKV(client, ttl)
	return b
}

// WithFile stores the session in a JSON file at path, shared by every process
// that opens the same path.
func (b *Builder) WithFile(path string) *Builder {
	b.kv = session.NewFileKV(path)
	return b
}

// WithHTTPClient sets the underlying HTTP client, for custom transports or
// proxies.
func (b *Builder) WithHTTPClient(c *http.Client) *Builder {
	b.httpClient = c
	return b
}

// WithNavigator sets the hook told to show the login screen.
func (b *Builder) WithNavigator(n Navigator) *Builder {
	b.navigator = n
	return b
}

// WithLogSink sets where request and transition records go, and turns the
// traffic log on.
func (b *Builder) WithLogSink(sink LogSink) *Builder {
	b.logSink = sink
	b.config.Log.Debug = true
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms describes the withlatencyhistograms operation and its observable behavior.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build validates the configuration, wires client and coordinator together,
// and restores any persisted session. It fails with [ErrStoreUnavailable] when
// the store cannot be read. A corrupt persisted session is discarded and the
// engine starts anonymous.
func (b *Builder) Build() (*Engine, error) {
	return b.BuildContext(context.Background())
}

// BuildContext is [Builder.Build] with a context bounding the initial restore.
func (b *Builder) BuildContext(ctx context.Context) (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	kv := b.kv
	if kv == nil {
		kv = session.NewMemoryKV()
	}
	store := session.NewStore(kv, cfg.Session.KeyPrefix)

	client, err := NewClient(cfg.Transport, b.httpClient)
	if err != nil {
		return nil, err
	}

	var dispatcher *audit.Dispatcher
	if cfg.Log.Debug {
		sink := b.logSink
		if sink == nil {
			sink = NewConsoleSink(os.Stderr)
		}
		dispatcher = audit.NewDispatcher(audit.Config{
			Enabled:    true,
			BufferSize: cfg.Log.BufferSize,
			DropIfFull: cfg.Log.DropIfFull,
		}, sink)
	}
	metrics := NewMetrics(cfg.Metrics)

	coordinator := newCoordinator(cfg, store, client, b.navigator, metrics, dispatcher)
	client.bind(coordinator, dispatcher, cfg.Log.Debug, metrics)

	if err := coordinator.Restore(ctx); err != nil {
		coordinator.Close()
		return nil, err
	}
	if cfg.Session.WatchExternal {
		coordinator.startWatch()
	}

	b.built = true

	return &Engine{
		config:      cfg,
		client:      client,
		coordinator: coordinator,
		log:         dispatcher,
		metrics:     metrics,
	}, nil
}
