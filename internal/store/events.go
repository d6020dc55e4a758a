package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/liquidator/internal/ir"
)

// StoredEvent is an event read back from the log with its position.
type StoredEvent struct {
	Seq    int64
	Family ir.Family
	Event  ir.Event
}

// Envelope returns the event stamped with its log position.
func (e StoredEvent) Envelope() ir.Envelope {
	return ir.Envelope{Seq: e.Seq, Event: e.Event}
}

// AppendEvent appends an event to the log and returns its seq.
func (s *Store) AppendEvent(ctx context.Context, ev ir.Event) (int64, error) {
	row, err := eventRow(ev)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}

	res, err := s.db.ExecContext(ctx, insertEventSQL, row...)
	if err != nil {
		return 0, fmt.Errorf("append event: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append event: last insert id: %w", err)
	}
	return seq, nil
}

// AppendEvents appends events in order within one transaction.
// Either all events are appended or none are.
func (s *Store) AppendEvents(ctx context.Context, events []ir.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append events: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, insertEventSQL)
	if err != nil {
		return fmt.Errorf("append events: prepare: %w", err)
	}
	defer stmt.Close()

	for i, ev := range events {
		row, err := eventRow(ev)
		if err != nil {
			return fmt.Errorf("append events: event %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("append events: event %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append events: commit: %w", err)
	}
	return nil
}

// ReadEvents returns up to limit events with seq > after, in seq order.
// An empty family reads both families; limit <= 0 means no limit.
//
// Returns an empty slice (not nil) if there are no matching events.
func (s *Store) ReadEvents(ctx context.Context, family ir.Family, after int64, limit int) ([]StoredEvent, error) {
	if limit <= 0 {
		limit = -1 // SQLite: negative LIMIT means unbounded
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, family, payload
		FROM events
		WHERE seq > ? AND (? = '' OR family = ?)
		ORDER BY seq ASC
		LIMIT ?
	`, after, string(family), string(family), limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []StoredEvent{}
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

// LastEventSeq returns the highest seq in the log for family (or for
// both families if family is empty). Returns 0 for an empty log.
func (s *Store) LastEventSeq(ctx context.Context, family ir.Family) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM events WHERE (? = '' OR family = ?)
	`, string(family), string(family)).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last event seq: %w", err)
	}
	return seq.Int64, nil
}

// CountEvents returns the number of events in the log.
func (s *Store) CountEvents(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return n, nil
}

const insertEventSQL = `
	INSERT INTO events (family, name, key, payload, record_hash)
	VALUES (?, ?, ?, ?, ?)
`

func eventRow(ev ir.Event) ([]any, error) {
	rec := ir.RecordOf(ev)
	payload, err := ir.MarshalRecord(rec)
	if err != nil {
		return nil, err
	}
	hash, err := ir.RecordHash(rec)
	if err != nil {
		return nil, err
	}
	return []any{
		string(ev.Family()),
		string(ev.Name()),
		ev.Key().Hex(),
		string(payload),
		hash,
	}, nil
}

func scanEvent(rows *sql.Rows) (StoredEvent, error) {
	var (
		seq     int64
		family  string
		payload string
	)
	if err := rows.Scan(&seq, &family, &payload); err != nil {
		return StoredEvent{}, fmt.Errorf("scan event: %w", err)
	}

	rec, err := ir.UnmarshalRecord([]byte(payload))
	if err != nil {
		return StoredEvent{}, fmt.Errorf("event seq %d: %w", seq, err)
	}
	ev, err := rec.ToEvent()
	if err != nil {
		return StoredEvent{}, fmt.Errorf("event seq %d: %w", seq, err)
	}
	return StoredEvent{Seq: seq, Family: ir.Family(family), Event: ev}, nil
}
