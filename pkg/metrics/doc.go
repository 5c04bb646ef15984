// Package metrics exposes fbksd-server's Prometheus metrics: registry
// size, queue depth, RPC request counts/latency, and container exit
// codes. Metrics are additive — the loopback /metrics endpoint may be
// disabled without affecting any operation's correctness.
package metrics
