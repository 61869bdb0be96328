// Package engine turns incoming events into delayed resolution tasks.
//
// Event Flow:
//  1. Plugin.OnEvent drops events the rule table does not track, builds a
//     watch point and drops points without a log path.
//  2. Principals are scheduled on the Scheduler after the largest forward
//     window of their edges, so that companions reported later can land in
//     the store first.
//  3. A worker runs the resolver for the point. Outcomes are logged and
//     counted, never propagated back to the event source.
//
// The dispatching goroutine never blocks: RunAfter arms a timer and the
// timer callback moves the task onto an unbounded ready queue drained by a
// fixed worker pool.
package engine
