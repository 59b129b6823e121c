// Package taskrt is a small, multi-threaded asynchronous task runtime:
// cooperative task scheduling on a fixed pool of worker OS threads, a
// per-worker timer service, an epoll-backed I/O reactor, and an elastic
// pool of blocking threads for work that cannot be expressed as a
// non-blocking future.
//
// Build a Runtime with Build, then Spawn futures onto it. A future is
// any type implementing Future[T]; SpawnFunc wraps a plain closure for
// callers that don't need their own Poll method.
package taskrt
