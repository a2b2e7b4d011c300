package engine

import (
	"context"
	"errors"

	"taskdesk/internal/domain"
	"taskdesk/internal/repo"
)

// NotificationFilter controls listing; the unread-count query shares the
// same read=false predicate.
type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
}

func (e Engine) ListNotifications(ctx context.Context, actorID string, f NotificationFilter) ([]domain.Notification, error) {
	actor, err := e.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	limit := f.Limit
	if limit <= 0 && e.Config != nil {
		limit = e.Config.Notifications.ListLimit
	}
	items, err := e.Repo.ListNotifications(ctx, repo.NotificationFilters{
		UserID:     actor.User.ID,
		UnreadOnly: f.UnreadOnly,
		Limit:      limit,
	})
	if err != nil {
		return nil, infra("list notifications", err)
	}
	return items, nil
}

func (e Engine) UnreadNotificationCount(ctx context.Context, actorID string) (int, error) {
	actor, err := e.actor(ctx, actorID)
	if err != nil {
		return 0, err
	}
	n, err := e.Repo.UnreadCount(ctx, actor.User.ID)
	if err != nil {
		return 0, infra("count notifications", err)
	}
	return n, nil
}

// MarkNotificationRead toggles read state. Only the owning recipient may
// touch it; anyone else sees not-found rather than a hint the row exists.
func (e Engine) MarkNotificationRead(ctx context.Context, id, actorID string, read bool) error {
	actor, err := e.actor(ctx, actorID)
	if err != nil {
		return err
	}
	err = e.Repo.SetNotificationRead(ctx, id, actor.User.ID, read)
	if errors.Is(err, repo.ErrNotFound) {
		return err
	}
	if err != nil {
		return infra("mark notification", err)
	}
	return nil
}
