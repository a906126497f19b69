// Package redis provides Redis-backed adapters: a workspace snapshot store,
// a distributed locker and a backend response cache.
package redis
