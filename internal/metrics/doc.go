// Package metrics provides observability hooks for the rebuild loop.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so callers never nil-check. The serve command swaps in a
// PrometheusRecorder and exposes its Handler on the control listener.
package metrics
