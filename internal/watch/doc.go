// Package watch defines Point, the immutable record of one observed
// diagnostic event.
//
// A Point is built once through New and never mutated afterwards. Every
// component downstream of the event source (finder, composer, resolver)
// passes Points by value, so a partially initialised or concurrently
// modified point is never observable.
//
// Timestamps are milliseconds since the Unix epoch. Seq is the store
// sequence number assigned when the event was persisted; zero means the
// point was never stored (for example a point built from a raw event that
// bypassed the store).
package watch
