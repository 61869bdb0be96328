// Package report merges the evidence of a completed freeze into a single
// report file and submits a fault record for it.
//
// Report names are deterministic: {appfreeze|sysfreeze}-{name}-{uid}-{time}
// where name is the principal's process name, falling back to its package
// name and then its event id, and time is the principal timestamp
// formatted as yyyyMMddHHmmss in the composer's location. Composing the
// same principal twice finds the finished file and returns its path
// without rewriting it or submitting again.
//
// The report body is a header block for the principal followed by one
// section per matched point in timestamp order. A section holds the
// contents of the point's evidence file, or the point's header block when
// the point has no readable evidence.
package report
