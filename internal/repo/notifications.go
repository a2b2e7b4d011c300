package repo

import (
	"context"
	"database/sql"

	"taskdesk/internal/domain"
)

func (r Repo) InsertNotification(ctx context.Context, tx *sql.Tx, n domain.Notification) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO notifications(id,user_id,task_id,type,message,read,created_at) VALUES (?,?,?,?,?,?,?)`,
		n.ID, n.UserID, nullablePtr(n.TaskID), n.Type, n.Message, n.Read, n.CreatedAt)
	return err
}

type NotificationFilters struct {
	UserID     string
	UnreadOnly bool
	Limit      int
}

func (r Repo) ListNotifications(ctx context.Context, f NotificationFilters) ([]domain.Notification, error) {
	query := `SELECT id,user_id,task_id,type,message,read,created_at FROM notifications WHERE user_id=?`
	args := []any{f.UserID}
	if f.UnreadOnly {
		query += ` AND read=0`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Notification
	for rows.Next() {
		var n domain.Notification
		var taskID sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &taskID, &n.Type, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.TaskID = fromNull(taskID)
		res = append(res, n)
	}
	return res, rows.Err()
}

// UnreadCount uses the same read=0 predicate as the unreadOnly listing.
func (r Repo) UnreadCount(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT count(*) FROM notifications WHERE user_id=? AND read=0`, userID).Scan(&n)
	return n, err
}

// SetNotificationRead toggles read state, scoped to the owning recipient.
func (r Repo) SetNotificationRead(ctx context.Context, id, userID string, read bool) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE notifications SET read=? WHERE id=? AND user_id=?`, read, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
