// Package otel publishes gigauth client metrics through OpenTelemetry.
//
// [New] registers an Int64ObservableCounter for each counter and an
// Int64ObservableGauge per histogram bucket. A single callback reads
// [gigauth.Engine.MetricsSnapshot] on each collection cycle.
//
// Callers own the MeterProvider and supply the Meter.
package otel
