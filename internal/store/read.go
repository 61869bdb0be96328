package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrNotFound is returned by Get when no event has the requested seq.
var ErrNotFound = errors.New("event not found")

const selectEvents = `
	SELECT e.seq, e.domain, e.event_id, e.ts, e.pid, e.tid, e.uid,
		e.package_name, e.process_name, e.msg, e.info, e.hitrace_time, e.sysrq_time,
		(SELECT group_concat(c.result_id) FROM consumptions c WHERE c.seq = e.seq)
	FROM events e
`

// Query returns events of domain whose event id is one of eventIDs and
// whose timestamp lies in the inclusive range [start, end].
// Results are ordered deterministically: ORDER BY ts ASC, seq ASC.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Query(ctx context.Context, domain string, eventIDs []string, start, end int64) ([]Record, error) {
	if len(eventIDs) == 0 || start > end {
		return []Record{}, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(eventIDs)), ",")
	args := make([]any, 0, len(eventIDs)+3)
	args = append(args, domain)
	for _, id := range eventIDs {
		args = append(args, id)
	}
	args = append(args, start, end)

	rows, err := s.db.QueryContext(ctx, selectEvents+`
		WHERE e.domain = ? AND e.event_id IN (`+placeholders+`) AND e.ts BETWEEN ? AND ?
		ORDER BY e.ts ASC, e.seq ASC
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return records, nil
}

// Get returns the event stored under seq, or ErrNotFound.
func (s *Store) Get(ctx context.Context, seq int64) (Record, error) {
	row := s.db.QueryRowContext(ctx, selectEvents+`WHERE e.seq = ?`, seq)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("get event %d: %w", seq, ErrNotFound)
	}
	if err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Count returns the number of stored events.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec      Record
		consumed sql.NullString
	)
	err := row.Scan(
		&rec.Seq, &rec.Domain, &rec.EventID, &rec.Timestamp,
		&rec.Pid, &rec.Tid, &rec.Uid,
		&rec.PackageName, &rec.ProcessName, &rec.Message, &rec.Info,
		&rec.HitraceTime, &rec.SysrqTime,
		&consumed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, err
	}
	if err != nil {
		return Record{}, fmt.Errorf("scan event: %w", err)
	}

	rec.ConsumedBy, err = parseConsumed(consumed)
	if err != nil {
		return Record{}, fmt.Errorf("scan event %d: %w", rec.Seq, err)
	}
	return rec, nil
}

// parseConsumed decodes the group_concat list of result ids.
func parseConsumed(v sql.NullString) ([]uint64, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	parts := strings.Split(v.String, ",")
	ids := make([]uint64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse result id %q: %w", p, err)
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}
