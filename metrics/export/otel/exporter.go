package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/gigauth"
	"github.com/MrEthical07/gigauth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// MetricsSource is what the exporter reads. [gigauth.Engine] implements it.
type MetricsSource interface {
	MetricsSnapshot() gigauth.MetricsSnapshot
	LogDropped() uint64
}

// StateSource is optionally implemented by a MetricsSource. When it is, the
// exporter publishes gigauth_session_state, one point per state with value 1
// for the current state and 0 for the others.
type StateSource interface {
	State() gigauth.State
}

var sessionStates = [...]gigauth.State{
	gigauth.StateAnonymous,
	gigauth.StateAuthenticating,
	gigauth.StateAuthenticated,
	gigauth.StateRefreshing,
}

type observedCounter struct {
	id         gigauth.MetricID
	instrument metric.Int64ObservableCounter
}

type observedHistogram struct {
	id      gigauth.MetricID
	buckets [8]metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// Exporter publishes client metrics through OTel observable instruments.
type Exporter struct {
	source       MetricsSource
	registration metric.Registration
	counters     []observedCounter
	histograms   []observedHistogram
	logDropped   metric.Int64ObservableCounter
	state        metric.Int64ObservableGauge
	stateAttrs   [len(sessionStates)]metric.ObserveOption
}

// New registers one instrument per metric on meter and a single callback
// that reads source on each collection.
func New(meter metric.Meter, source MetricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &Exporter{
		source:     source,
		counters:   make([]observedCounter, 0, len(internaldefs.CounterDefs)),
		histograms: make([]observedHistogram, 0, len(internaldefs.HistogramDefs)),
	}

	observables := make([]metric.Observable, 0, len(internaldefs.CounterDefs)+len(internaldefs.HistogramDefs)*9+1)

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", def.Name, err)
		}
		exporter.counters = append(exporter.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h := observedHistogram{id: def.ID}
		for i := 0; i < len(internaldefs.HistogramBoundSuffix); i++ {
			name := def.Name + "_bucket_le_" + internaldefs.HistogramBoundSuffix[i]
			ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
			if err != nil {
				return nil, fmt.Errorf("create histogram bucket gauge %s: %w", name, err)
			}
			h.buckets[i] = ins
			observables = append(observables, ins)
		}
		countName := def.Name + "_count"
		countIns, err := meter.Int64ObservableGauge(countName, metric.WithDescription("Histogram total sample count."))
		if err != nil {
			return nil, fmt.Errorf("create histogram count gauge %s: %w", countName, err)
		}
		h.count = countIns
		observables = append(observables, countIns)
		exporter.histograms = append(exporter.histograms, h)
	}

	logDropped, err := meter.Int64ObservableCounter(
		"gigauth_log_dropped_total",
		metric.WithDescription("Log records discarded because the buffer was full."),
	)
	if err != nil {
		return nil, fmt.Errorf("create log dropped counter: %w", err)
	}
	exporter.logDropped = logDropped
	observables = append(observables, logDropped)

	if _, ok := source.(StateSource); ok {
		state, err := meter.Int64ObservableGauge(
			"gigauth_session_state",
			metric.WithDescription("1 for the coordinator's current session state, 0 otherwise."),
		)
		if err != nil {
			return nil, fmt.Errorf("create session state gauge: %w", err)
		}
		exporter.state = state
		for i, st := range sessionStates {
			exporter.stateAttrs[i] = metric.WithAttributes(attribute.String("state", st.String()))
		}
		observables = append(observables, state)
	}

	registration, err := meter.RegisterCallback(func(_ context.Context, observer metric.Observer) error {
		snapshot := exporter.source.MetricsSnapshot()
		for _, c := range exporter.counters {
			observer.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
		}
		for _, h := range exporter.histograms {
			raw, ok := snapshot.Histograms[h.id]
			if !ok {
				continue
			}
			cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
			for i := 0; i < len(cumulative); i++ {
				observer.ObserveInt64(h.buckets[i], int64(cumulative[i]))
			}
			observer.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
		}
		observer.ObserveInt64(exporter.logDropped, int64(exporter.source.LogDropped()))
		if exporter.state != nil {
			current := exporter.source.(StateSource).State()
			for i, st := range sessionStates {
				var v int64
				if st == current {
					v = 1
				}
				observer.ObserveInt64(exporter.state, v, exporter.stateAttrs[i])
			}
		}
		return nil
	}, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

// Close unregisters the callback. Instruments stay registered on the meter.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
