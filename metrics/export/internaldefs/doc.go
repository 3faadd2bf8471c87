// Package internaldefs holds the metric names and bucket bounds shared by the
// exporters.
//
// Both the Prometheus and OTel exporters read these definitions, so they
// publish identical names and boundaries. A change here affects every
// exporter at once.
//
// This package performs no I/O.
package internaldefs
