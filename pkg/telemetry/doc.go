// Package telemetry provides observability wiring for the SDK: an optional
// OpenTelemetry tracer bootstrap, OTel meter instruments recorded per
// governed request, and a Prometheus collector set scoped to one client
// instance. Everything here is opt-in; a client built without telemetry
// performs no recording.
package telemetry
