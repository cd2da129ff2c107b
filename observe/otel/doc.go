// Package otel provides an OpenTelemetry observer plugin for the coop
// library. It emits span events (submit, dispatch, suspend, finish) with
// low overhead.
package otel
