// Package o11y provides the ambient observability stack shared by every
// WikiGR package: a dependency-light structured logger, and tracing/metrics
// helpers wrapping the OpenTelemetry SDK already in the module's
// dependency graph.
package o11y
