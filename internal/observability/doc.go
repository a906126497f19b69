/*
Package observability turns lifecycle hooks into structured logs and
Prometheus metrics.

Components publish graph mutations, proposal state transitions and backend
calls through domain.LifecycleHooks. Metrics.Hooks returns a hook set that
records each event; Combine fans one event out to several hook sets.
*/
package observability
