package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/roach88/liquidator/internal/ir"
)

// ActionRecord is one row of the action journal.
type ActionRecord struct {
	Seq    int64
	Action ir.Action
	Status ir.ActionStatus
	Error  string
}

// ActionFilter narrows ListActions. Zero fields match everything.
type ActionFilter struct {
	Target *common.Address
	Status ir.ActionStatus
	Limit  int
}

// ClaimAction records a pending action. It returns true if the action was
// newly inserted and false if an action with the same ID already exists,
// in which case the caller must not submit it again.
func (s *Store) ClaimAction(ctx context.Context, a ir.Action) (bool, error) {
	args, err := marshalArgs(a)
	if err != nil {
		return false, fmt.Errorf("claim action: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (id, kind, target, args, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		a.ID,
		string(a.Kind),
		a.Target.Hex(),
		args,
		string(ir.StatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("claim action: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim action: rows affected: %w", err)
	}
	return n > 0, nil
}

// SettleAction records the submission outcome of a claimed action:
// submitted if submitErr is nil, failed otherwise.
func (s *Store) SettleAction(ctx context.Context, id string, submitErr error) error {
	status, msg := ir.StatusSubmitted, ""
	if submitErr != nil {
		status, msg = ir.StatusFailed, submitErr.Error()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE actions SET status = ?, error = ? WHERE id = ?
	`, string(status), msg, id)
	if err != nil {
		return fmt.Errorf("settle action: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("settle action: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("settle action %s: %w", id, sql.ErrNoRows)
	}
	return nil
}

// ReadAction retrieves a single journal row by action ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadAction(ctx context.Context, id string) (ActionRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT seq, id, args, status, error FROM actions WHERE id = ?
	`, id)
	return scanAction(row)
}

// ListActions returns journal rows in seq order.
//
// Returns an empty slice (not nil) if no rows match.
func (s *Store) ListActions(ctx context.Context, filter ActionFilter) ([]ActionRecord, error) {
	target := ""
	if filter.Target != nil {
		target = filter.Target.Hex()
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, id, args, status, error
		FROM actions
		WHERE (? = '' OR target = ?) AND (? = '' OR status = ?)
		ORDER BY seq ASC
		LIMIT ?
	`, target, target, string(filter.Status), string(filter.Status), limit)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	records := []ActionRecord{}
	for rows.Next() {
		rec, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate actions: %w", err)
	}
	return records, nil
}

// scanner is implemented by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAction(row scanner) (ActionRecord, error) {
	var (
		rec    ActionRecord
		id     string
		args   string
		status string
	)
	if err := row.Scan(&rec.Seq, &id, &args, &status, &rec.Error); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ActionRecord{}, err
		}
		return ActionRecord{}, fmt.Errorf("scan action: %w", err)
	}

	action, err := unmarshalAction(id, args)
	if err != nil {
		return ActionRecord{}, fmt.Errorf("action seq %d: %w", rec.Seq, err)
	}
	rec.Action = action
	rec.Status = ir.ActionStatus(status)
	return rec, nil
}
