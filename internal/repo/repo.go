package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"taskdesk/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

const taskColumns = `id,record_number,title,COALESCE(description,''),status,priority,complexity,workcenter,assigned_to_id,created_by_id,receive_id,version,created_at,updated_at`

type taskScanner interface {
	Scan(dest ...any) error
}

func scanTask(row taskScanner) (domain.Task, error) {
	var t domain.Task
	var status string
	var priority, complexity, workcenter, assignedTo, receiveID sql.NullString
	err := row.Scan(&t.ID, &t.RecordNumber, &t.Title, &t.Description, &status,
		&priority, &complexity, &workcenter, &assignedTo, &t.CreatedByID, &receiveID,
		&t.Version, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	t.Status = domain.TaskStatus(status)
	t.Priority = fromNull(priority)
	t.Complexity = fromNull(complexity)
	t.Workcenter = fromNull(workcenter)
	t.AssignedToID = fromNull(assignedTo)
	t.ReceiveID = fromNull(receiveID)
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(id,record_number,title,description,status,priority,complexity,workcenter,assigned_to_id,created_by_id,receive_id,version,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.RecordNumber, t.Title, nullable(t.Description), string(t.Status),
		nullablePtr(t.Priority), nullablePtr(t.Complexity), nullablePtr(t.Workcenter),
		nullablePtr(t.AssignedToID), t.CreatedByID, nullablePtr(t.ReceiveID),
		t.Version, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	return scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id))
}

// UpdateTaskStatus applies a conditional status write keyed on the expected
// prior status and bumps the version. Returns ErrStale when another
// transition got there first.
var ErrStale = errors.New("task status changed concurrently")

func (r Repo) UpdateTaskStatus(ctx context.Context, tx *sql.Tx, id string, from, to domain.TaskStatus, assignedTo *string, updatedAt string) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET status=?, assigned_to_id=COALESCE(?, assigned_to_id), version=version+1, updated_at=? WHERE id=? AND status=?`,
		string(to), nullablePtr(assignedTo), updatedAt, id, string(from))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStale
	}
	return nil
}

// UpdateTaskFields rewrites non-status fields only.
func (r Repo) UpdateTaskFields(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET title=?, description=?, priority=?, complexity=?, workcenter=?, version=version+1, updated_at=? WHERE id=? AND version=?`,
		t.Title, nullable(t.Description), nullablePtr(t.Priority), nullablePtr(t.Complexity),
		nullablePtr(t.Workcenter), t.UpdatedAt, t.ID, t.Version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrStale
	}
	return nil
}

type TaskFilters struct {
	Status          string
	AssignedToID    string
	CreatedByID     string
	ReceiveID       string
	Workcenter      string
	Limit           int
	CursorCreatedAt string
	CursorID        string
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	if f.AssignedToID != "" {
		clauses = append(clauses, "assigned_to_id=?")
		args = append(args, f.AssignedToID)
	}
	if f.CreatedByID != "" {
		clauses = append(clauses, "created_by_id=?")
		args = append(args, f.CreatedByID)
	}
	if f.ReceiveID != "" {
		clauses = append(clauses, "receive_id=?")
		args = append(args, f.ReceiveID)
	}
	if f.Workcenter != "" {
		clauses = append(clauses, "workcenter=?")
		args = append(args, f.Workcenter)
	}
	if f.CursorCreatedAt != "" && f.CursorID != "" {
		clauses = append(clauses, "(created_at < ? OR (created_at = ? AND id < ?))")
		args = append(args, f.CursorCreatedAt, f.CursorCreatedAt, f.CursorID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	query := `SELECT ` + taskColumns + ` FROM tasks ` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) CountTasksByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT status, count(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}

func (r Repo) CountTasksForReceive(ctx context.Context, receiveID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM tasks WHERE receive_id=?`, receiveID).Scan(&n)
	return n, err
}

func (r Repo) InsertAttachment(ctx context.Context, tx *sql.Tx, a domain.Attachment) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO attachments(id,task_id,file_name,file_ref,actor_id,created_at) VALUES (?,?,?,?,?,?)`,
		a.ID, a.TaskID, a.FileName, a.FileRef, a.ActorID, a.CreatedAt)
	return err
}

func (r Repo) ListAttachments(ctx context.Context, taskID string) ([]domain.Attachment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,task_id,file_name,file_ref,actor_id,created_at FROM attachments WHERE task_id=? ORDER BY created_at`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Attachment
	for rows.Next() {
		var a domain.Attachment
		if err := rows.Scan(&a.ID, &a.TaskID, &a.FileName, &a.FileRef, &a.ActorID, &a.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullablePtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func fromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
