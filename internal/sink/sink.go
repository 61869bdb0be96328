// Package sink delivers fault records for composed freeze reports.
//
// Every implementation is fire-and-forget from the caller's point of view:
// Submit returns an error for logging, and callers never retry.
package sink

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
)

// Kind is the fault category of a composed report.
type Kind string

const (
	KindAppFreeze    Kind = "APP_FREEZE"
	KindSystemFreeze Kind = "SYSTEM_FREEZE"
)

// Record describes one composed report.
type Record struct {
	ID          string `json:"id"`
	Time        int64  `json:"time"` // principal timestamp, ms
	Kind        Kind   `json:"kind"`
	ReportPath  string `json:"report_path"`
	ProcessName string `json:"process_name"`
	Pid         int64  `json:"pid"`
	Uid         int64  `json:"uid"`
	Reason      string `json:"reason"`
	Summary     string `json:"summary"`
	ResultID    uint64 `json:"result_id"`
}

// NewID returns a time-ordered record identifier.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Sink accepts fault records.
type Sink interface {
	Submit(ctx context.Context, rec Record) error
}

// Multi submits to every sink and joins their errors.
type Multi []Sink

// Submit implements Sink.
func (m Multi) Submit(ctx context.Context, rec Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Submit(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes records to the default logger. Used when no other sink is
// configured.
type Log struct{}

// Submit implements Sink.
func (Log) Submit(_ context.Context, rec Record) error {
	slog.Info("fault record",
		"id", rec.ID,
		"kind", rec.Kind,
		"report", rec.ReportPath,
		"process", rec.ProcessName,
		"pid", rec.Pid,
		"uid", rec.Uid,
		"reason", rec.Reason)
	return nil
}
