package repo

import (
	"context"
	"database/sql"
	"strings"

	"taskdesk/internal/domain"
)

const receiveColumns = `id,reference_number,subject,COALESCE(source,''),status,created_by_id,closed_by_id,closed_at,created_at`

func scanReceive(row taskScanner) (domain.Receive, error) {
	var rc domain.Receive
	var status string
	var closedBy, closedAt sql.NullString
	err := row.Scan(&rc.ID, &rc.ReferenceNumber, &rc.Subject, &rc.Source, &status,
		&rc.CreatedByID, &closedBy, &closedAt, &rc.CreatedAt)
	if err == sql.ErrNoRows {
		return rc, ErrNotFound
	}
	if err != nil {
		return rc, err
	}
	rc.Status = domain.ReceiveStatus(status)
	rc.ClosedByID = fromNull(closedBy)
	rc.ClosedAt = fromNull(closedAt)
	return rc, nil
}

func (r Repo) InsertReceive(ctx context.Context, tx *sql.Tx, rc domain.Receive) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO receives(id,reference_number,subject,source,status,created_by_id,closed_by_id,closed_at,created_at) VALUES (?,?,?,?,?,?,?,?,?)`,
		rc.ID, rc.ReferenceNumber, rc.Subject, nullable(rc.Source), string(rc.Status),
		rc.CreatedByID, nullablePtr(rc.ClosedByID), nullablePtr(rc.ClosedAt), rc.CreatedAt)
	return err
}

func (r Repo) GetReceive(ctx context.Context, id string) (domain.Receive, error) {
	return scanReceive(r.DB.QueryRowContext(ctx, `SELECT `+receiveColumns+` FROM receives WHERE id=?`, id))
}

func (r Repo) GetReceiveTx(ctx context.Context, tx *sql.Tx, id string) (domain.Receive, error) {
	return scanReceive(tx.QueryRowContext(ctx, `SELECT `+receiveColumns+` FROM receives WHERE id=?`, id))
}

// UpdateReceiveStatus writes status and the closed fields as one unit:
// CLOSED sets both, anything else clears both.
func (r Repo) UpdateReceiveStatus(ctx context.Context, tx *sql.Tx, id string, status domain.ReceiveStatus, closedByID, closedAt *string) error {
	res, err := tx.ExecContext(ctx, `UPDATE receives SET status=?, closed_by_id=?, closed_at=? WHERE id=?`,
		string(status), nullablePtr(closedByID), nullablePtr(closedAt), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type ReceiveFilters struct {
	Status      string
	CreatedByID string
	Limit       int
}

func (r Repo) ListReceives(ctx context.Context, f ReceiveFilters) ([]domain.Receive, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.CreatedByID != "" {
		clauses = append(clauses, "created_by_id=?")
		args = append(args, f.CreatedByID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + receiveColumns + ` FROM receives ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Receive
	for rows.Next() {
		rc, err := scanReceive(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, rc)
	}
	return res, rows.Err()
}
