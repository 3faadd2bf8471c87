package gigauth

import (
	"context"

	"github.com/MrEthical07/gigauth/internal/audit"
	"github.com/MrEthical07/gigauth/session"
)

// Engine is the assembled client: a [Client] bound to a [Coordinator]. Build
// one with [New]. All methods are safe for concurrent use.
type Engine struct {
	config      Config
	client      *Client
	coordinator *Coordinator
	log         *audit.Dispatcher
	metrics     *Metrics
}

// Client returns the transport client. Requests sent through it carry the
// session's credential.
func (e *Engine) Client() *Client { return e.client }

// Coordinator returns the session coordinator.
func (e *Engine) Coordinator() *Coordinator { return e.coordinator }

// Config returns the configuration the engine was built with.
func (e *Engine) Config() Config { return e.config }

// Send is shorthand for e.Client().Send.
func (e *Engine) Send(ctx context.Context, req Request) Outcome {
	return e.client.Send(ctx, req)
}

// Do is shorthand for e.Client().Do.
func (e *Engine) Do(ctx context.Context, req Request, out any) error {
	return e.client.Do(ctx, req, out)
}

// Login is shorthand for e.Coordinator().Login.
func (e *Engine) Login(ctx context.Context, identifier, secret string) (*session.Session, error) {
	return e.coordinator.Login(ctx, identifier, secret)
}

// Register is shorthand for e.Coordinator().Register.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*session.Session, error) {
	return e.coordinator.Register(ctx, in)
}

// Logout is shorthand for e.Coordinator().Logout.
func (e *Engine) Logout(ctx context.Context) error {
	return e.coordinator.Logout(ctx)
}

// State is shorthand for e.Coordinator().State.
func (e *Engine) State() State {
	return e.coordinator.State()
}

// Close describes the close operation and its observable behavior.
//
// Close stops the store watcher and flushes the traffic log. The persisted
// session is kept, so a new Engine over the same store resumes it.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.coordinator.Close()
}

// LogDropped describes the logdropped operation and its observable behavior.
//
// LogDropped reports how many log records were discarded because the buffer
// was full.
func (e *Engine) LogDropped() uint64 {
	if e == nil || e.log == nil {
		return 0
	}
	return e.log.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}
