// Package sequence issues strictly increasing integers per named domain,
// backed by a durable counter row. Reference numbers are formatted by the
// caller; only integer uniqueness is guaranteed here.
package sequence

import (
	"context"
	"database/sql"
	"fmt"
)

// Domain names one counter. The set is open for extension.
type Domain string

const (
	DomainTask    Domain = "TASK"
	DomainReceive Domain = "RECEIVE"
)

type Issuer struct {
	DB *sql.DB
}

type execer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Next atomically increments the counter for the domain and returns the new
// value, creating the row at 1 on first issue. The increment and read are a
// single statement, so concurrent callers see a contiguous gap-free run.
// On storage failure no value is fabricated; the error is fatal to the call.
func (i Issuer) Next(ctx context.Context, domain Domain) (int64, error) {
	return next(ctx, i.DB, domain)
}

// NextTx issues inside the caller's transaction so the number commits or
// rolls back with the row that uses it.
func (i Issuer) NextTx(ctx context.Context, tx *sql.Tx, domain Domain) (int64, error) {
	return next(ctx, tx, domain)
}

func next(ctx context.Context, q execer, domain Domain) (int64, error) {
	var value int64
	err := q.QueryRowContext(ctx, `INSERT INTO sequence_counters(name, value) VALUES (?, 1)
ON CONFLICT(name) DO UPDATE SET value = value + 1
RETURNING value`, string(domain)).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("issue sequence %s: %w", domain, err)
	}
	return value, nil
}

// Current reads the last issued value without consuming one; 0 if the
// domain has never been issued.
func (i Issuer) Current(ctx context.Context, domain Domain) (int64, error) {
	var value int64
	err := i.DB.QueryRowContext(ctx, `SELECT value FROM sequence_counters WHERE name=?`, string(domain)).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read sequence %s: %w", domain, err)
	}
	return value, nil
}

// Format renders a reference number with prefix and zero padding, e.g.
// Format("TSK", 4, 7) -> "TSK-0007".
func Format(prefix string, pad int, value int64) string {
	return fmt.Sprintf("%s-%0*d", prefix, pad, value)
}
