// Package server implements the HTTP API for monitoring the engine and
// adjusting mixing levels at runtime, plus the Prometheus metrics endpoint.
package server
