package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"taskdesk/internal/authz"
	"taskdesk/internal/domain"
	"taskdesk/internal/repo"
	"taskdesk/internal/sequence"
)

// ReceiveCreateOptions are parameters for creating an intake record.
type ReceiveCreateOptions struct {
	Subject string
	Source  string
	ActorID string
}

func canManageReceives(a Actor) bool {
	return a.User.Role == domain.RoleSuperadmin || a.Caps.Has(authz.CapManageReceives)
}

func (e Engine) CreateReceive(ctx context.Context, opts ReceiveCreateOptions) (domain.Receive, error) {
	actor, err := e.actor(ctx, opts.ActorID)
	if err != nil {
		return domain.Receive{}, err
	}
	if !canManageReceives(actor) && !authz.HasPermission(actor.User.Role, domain.RoleIncharge) {
		return domain.Receive{}, AuthorizationError{}
	}
	if opts.Subject == "" {
		return domain.Receive{}, ValidationError{Field: "subject", Message: "required"}
	}
	now := e.nowStr()
	rc := domain.Receive{
		ID:          uuid.New().String(),
		Subject:     opts.Subject,
		Source:      opts.Source,
		Status:      domain.ReceiveOpen,
		CreatedByID: actor.User.ID,
		CreatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Receive{}, infra("begin tx", err)
	}
	defer tx.Rollback()
	seq, err := e.Seq.NextTx(ctx, tx, sequence.DomainReceive)
	if err != nil {
		e.logger().Printf("ERROR: receive sequence unavailable: %v", err)
		return domain.Receive{}, infra("issue reference number", err)
	}
	ref := e.Config.References.Receive
	rc.ReferenceNumber = sequence.Format(ref.Prefix, ref.Pad, seq)
	if err := e.Repo.InsertReceive(ctx, tx, rc); err != nil {
		return domain.Receive{}, infra("insert receive", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Receive{}, infra("commit", err)
	}
	return rc, nil
}

// SetReceiveStatus applies an explicit status. CLOSED stamps closedAt and
// closedById together; any other status clears both in the same write. A
// closed receive may be reopened through this operation.
func (e Engine) SetReceiveStatus(ctx context.Context, id string, status domain.ReceiveStatus, actorID string) (domain.Receive, error) {
	actor, err := e.actor(ctx, actorID)
	if err != nil {
		return domain.Receive{}, err
	}
	if !canManageReceives(actor) {
		return domain.Receive{}, AuthorizationError{}
	}
	switch status {
	case domain.ReceiveOpen, domain.ReceiveAssigned, domain.ReceiveClosed:
	default:
		return domain.Receive{}, ValidationError{Field: "status", Message: fmt.Sprintf("invalid status %q", status)}
	}
	rc, err := e.Repo.GetReceive(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Receive{}, err
	}
	if err != nil {
		return domain.Receive{}, infra("load receive", err)
	}
	var closedBy, closedAt *string
	if status == domain.ReceiveClosed {
		now := e.nowStr()
		closedBy = &actor.User.ID
		closedAt = &now
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Receive{}, infra("begin tx", err)
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateReceiveStatus(ctx, tx, rc.ID, status, closedBy, closedAt); err != nil {
		return domain.Receive{}, infra("update receive", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Receive{}, infra("commit", err)
	}
	rc.Status = status
	rc.ClosedByID = closedBy
	rc.ClosedAt = closedAt
	return e.withDerivedStatus(ctx, rc)
}

// withDerivedStatus computes ASSIGNED from the linked-task count instead of
// trusting a stored field that could drift.
func (e Engine) withDerivedStatus(ctx context.Context, rc domain.Receive) (domain.Receive, error) {
	n, err := e.Repo.CountTasksForReceive(ctx, rc.ID)
	if err != nil {
		return rc, infra("count receive tasks", err)
	}
	rc.TaskCount = n
	if rc.Status != domain.ReceiveClosed {
		if n > 0 {
			rc.Status = domain.ReceiveAssigned
		} else {
			rc.Status = domain.ReceiveOpen
		}
	}
	return rc, nil
}

func (e Engine) GetReceive(ctx context.Context, id string) (domain.Receive, error) {
	rc, err := e.Repo.GetReceive(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Receive{}, err
	}
	if err != nil {
		return domain.Receive{}, infra("load receive", err)
	}
	return e.withDerivedStatus(ctx, rc)
}

func (e Engine) ListReceives(ctx context.Context, f repo.ReceiveFilters) ([]domain.Receive, error) {
	items, err := e.Repo.ListReceives(ctx, f)
	if err != nil {
		return nil, infra("list receives", err)
	}
	for i, rc := range items {
		items[i], err = e.withDerivedStatus(ctx, rc)
		if err != nil {
			return nil, err
		}
	}
	return items, nil
}
