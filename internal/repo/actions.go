package repo

import (
	"context"
	"database/sql"

	"taskdesk/internal/domain"
)

// Task actions and history are append-only; there are deliberately no
// update or delete operations for either table.

func (r Repo) AppendTaskAction(ctx context.Context, tx *sql.Tx, a domain.TaskAction) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO task_actions(task_id,action_type,actor_id,forwarded_to,note,ts) VALUES (?,?,?,?,?,?)`,
		a.TaskID, string(a.ActionType), a.ActorID, nullablePtr(a.ForwardedTo), nullable(a.Note), a.TS)
	return err
}

func (r Repo) ListTaskActions(ctx context.Context, taskID string) ([]domain.TaskAction, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,task_id,action_type,actor_id,forwarded_to,COALESCE(note,''),ts FROM task_actions WHERE task_id=? ORDER BY id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TaskAction
	for rows.Next() {
		var a domain.TaskAction
		var actionType string
		var forwardedTo sql.NullString
		if err := rows.Scan(&a.ID, &a.TaskID, &actionType, &a.ActorID, &forwardedTo, &a.Note, &a.TS); err != nil {
			return nil, err
		}
		a.ActionType = domain.ActionType(actionType)
		a.ForwardedTo = fromNull(forwardedTo)
		res = append(res, a)
	}
	return res, rows.Err()
}

func (r Repo) AppendTaskHistory(ctx context.Context, tx *sql.Tx, h domain.TaskHistory) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO task_history(task_id,field,old_value,new_value,actor_id,ts) VALUES (?,?,?,?,?,?)`,
		h.TaskID, h.Field, nullable(h.OldValue), nullable(h.NewValue), h.ActorID, h.TS)
	return err
}

func (r Repo) ListTaskHistory(ctx context.Context, taskID string) ([]domain.TaskHistory, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,task_id,field,COALESCE(old_value,''),COALESCE(new_value,''),actor_id,ts FROM task_history WHERE task_id=? ORDER BY id`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.TaskHistory
	for rows.Next() {
		var h domain.TaskHistory
		if err := rows.Scan(&h.ID, &h.TaskID, &h.Field, &h.OldValue, &h.NewValue, &h.ActorID, &h.TS); err != nil {
			return nil, err
		}
		res = append(res, h)
	}
	return res, rows.Err()
}
