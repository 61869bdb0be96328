package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrSeqConflict is returned by Append when an explicit seq already holds a
// different event.
var ErrSeqConflict = errors.New("seq holds a different event")

// Record is one stored system event.
type Record struct {
	Seq         int64
	Domain      string
	EventID     string
	Timestamp   int64
	Pid         int64
	Tid         int64
	Uid         int64
	PackageName string
	ProcessName string
	Message     string
	Info        string // key:value,... pairs; carries logPath
	HitraceTime string
	SysrqTime   string

	// ConsumedBy lists the result codes that have claimed this record,
	// ascending. Populated on reads only.
	ConsumedBy []uint64
}

// IsConsumedBy reports whether the record was claimed by resultID.
func (r Record) IsConsumedBy(resultID uint64) bool {
	for _, id := range r.ConsumedBy {
		if id == resultID {
			return true
		}
	}
	return false
}

// Append inserts an event and returns its seq.
//
// When rec.Seq is non-zero the row is written with that seq. Re-appending
// an event already stored under it (same domain, event id and timestamp)
// is a no-op that returns the same seq; any other occupant yields
// ErrSeqConflict.
func (s *Store) Append(ctx context.Context, rec Record) (int64, error) {
	if rec.Domain == "" || rec.EventID == "" {
		return 0, fmt.Errorf("append event: domain and event id are required")
	}

	if rec.Seq != 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO events
			(seq, domain, event_id, ts, pid, tid, uid, package_name, process_name, msg, info, hitrace_time, sysrq_time)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(seq) DO NOTHING
		`,
			rec.Seq, rec.Domain, rec.EventID, rec.Timestamp,
			rec.Pid, rec.Tid, rec.Uid,
			rec.PackageName, rec.ProcessName, rec.Message, rec.Info,
			rec.HitraceTime, rec.SysrqTime,
		)
		if err != nil {
			return 0, fmt.Errorf("append event: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("append event: rows affected: %w", err)
		}
		if n == 0 {
			if err := s.checkSameEvent(ctx, rec); err != nil {
				return 0, err
			}
		}
		return rec.Seq, nil
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO events
		(domain, event_id, ts, pid, tid, uid, package_name, process_name, msg, info, hitrace_time, sysrq_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Domain, rec.EventID, rec.Timestamp,
		rec.Pid, rec.Tid, rec.Uid,
		rec.PackageName, rec.ProcessName, rec.Message, rec.Info,
		rec.HitraceTime, rec.SysrqTime,
	)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append event: last insert id: %w", err)
	}
	return seq, nil
}

// checkSameEvent verifies that the row stored under rec.Seq is rec.
func (s *Store) checkSameEvent(ctx context.Context, rec Record) error {
	got, err := s.Get(ctx, rec.Seq)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	if got.Domain != rec.Domain || got.EventID != rec.EventID || got.Timestamp != rec.Timestamp {
		return fmt.Errorf("append event %d (%s/%s): %w: stored %s/%s at %d",
			rec.Seq, rec.Domain, rec.EventID, ErrSeqConflict, got.Domain, got.EventID, got.Timestamp)
	}
	return nil
}

// MarkConsumed records that the event at seq contributed to a composed
// report for resultID. Uses ON CONFLICT DO NOTHING, so repeated marks are
// silently ignored.
//
// Note: The event must exist (foreign key constraint).
func (s *Store) MarkConsumed(ctx context.Context, seq int64, resultID uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO consumptions (seq, result_id)
		VALUES (?, ?)
		ON CONFLICT DO NOTHING
	`, seq, int64(resultID))
	if err != nil {
		return fmt.Errorf("mark consumed: %w", err)
	}
	return nil
}

// Prune deletes events with ts strictly before the cutoff together with
// their consumption marks. Returns the number of events removed.
func (s *Store) Prune(ctx context.Context, before int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE ts < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("prune events: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune events: rows affected: %w", err)
	}
	return n, nil
}
