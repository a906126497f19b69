/*
Package session implements workspace persistence orchestration.

A Manager wraps a ports.SnapshotStore and serializes access per workspace,
combining an in-process lock with an optional distributed lock so replicas
sharing a Redis store never interleave a load-modify-save cycle.
*/
package session
