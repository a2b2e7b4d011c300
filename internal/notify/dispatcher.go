// Package notify fans a notification row out to each user targeted by a
// lifecycle event. Rows are written inside the transition's transaction, so
// a committed transition always carries its notifications and a rolled-back
// one leaves none behind.
package notify

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"taskdesk/internal/domain"
	"taskdesk/internal/repo"
)

// Notification types, one per user-targeted action category.
const (
	TypeTaskAssigned  = "TASK_ASSIGNED"
	TypeTaskForwarded = "TASK_FORWARDED"
	TypeTaskSubmitted = "TASK_SUBMITTED"
	TypeTaskRejected  = "TASK_REJECTED"
	TypeTaskClosed    = "TASK_CLOSED"
	TypeTaskReverted  = "TASK_REVERTED"
)

type Dispatcher struct {
	DB  *sql.DB
	Now func() time.Time
}

// Dispatch writes one notification row addressed to userID. Empty recipient
// means the event targets no one and is skipped.
func (d Dispatcher) Dispatch(ctx context.Context, tx *sql.Tx, userID, taskID, notifType, message string) error {
	if userID == "" {
		return nil
	}
	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	n := domain.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      notifType,
		Message:   message,
		CreatedAt: now().UTC().Format(time.RFC3339),
	}
	if taskID != "" {
		n.TaskID = &taskID
	}
	return repo.Repo{DB: d.DB}.InsertNotification(ctx, tx, n)
}
