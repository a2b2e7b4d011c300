package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"taskdesk/internal/authz"
	"taskdesk/internal/domain"
	"taskdesk/internal/repo"
)

// UserCreateOptions are parameters for account creation.
type UserCreateOptions struct {
	Name         string
	Email        string
	Role         domain.Role
	Capabilities []string
	Workcenter   string
	ActorID      string
}

// CreateUser creates an account. The target role must be strictly below the
// actor's rank; accounts are never created at or above it.
func (e Engine) CreateUser(ctx context.Context, opts UserCreateOptions) (domain.User, error) {
	actor, err := e.actor(ctx, opts.ActorID)
	if err != nil {
		return domain.User{}, err
	}
	if !authz.ValidRole(opts.Role) {
		return domain.User{}, ValidationError{Field: "role", Message: "unknown role"}
	}
	assignable := false
	for _, r := range authz.AssignableRoles(actor.User.Role) {
		if r == opts.Role {
			assignable = true
			break
		}
	}
	if !assignable {
		return domain.User{}, AuthorizationError{}
	}
	if opts.Name == "" {
		return domain.User{}, ValidationError{Field: "name", Message: "required"}
	}
	if !strings.Contains(opts.Email, "@") {
		return domain.User{}, ValidationError{Field: "email", Message: "invalid email"}
	}
	caps, err := authz.NewCapabilitySet(opts.Capabilities)
	if err != nil {
		return domain.User{}, ValidationError{Field: "capabilities", Message: err.Error()}
	}
	now := e.nowStr()
	u := domain.User{
		ID:           uuid.New().String(),
		Name:         opts.Name,
		Email:        opts.Email,
		Role:         opts.Role,
		Capabilities: caps.Names(),
		Workcenter:   optional(opts.Workcenter),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, infra("begin tx", err)
	}
	defer tx.Rollback()
	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return domain.User{}, ConflictError{Message: "email already registered"}
		}
		return domain.User{}, infra("insert user", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, infra("commit", err)
	}
	return u, nil
}

// targetBelowActor loads the target user and enforces the strict-rank rule
// for role and capability mutation.
func (e Engine) targetBelowActor(ctx context.Context, actor Actor, targetID string) (domain.User, error) {
	target, err := e.Repo.GetUser(ctx, targetID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}
	if err != nil {
		return domain.User{}, infra("load user", err)
	}
	if !authz.CanModifyUserRole(actor.User.Role, target.Role) {
		return domain.User{}, AuthorizationError{}
	}
	return target, nil
}

// SetUserRole changes a user's role. Requires strictly higher rank over the
// target, both before and after the change.
func (e Engine) SetUserRole(ctx context.Context, targetID string, role domain.Role, actorID string) (domain.User, error) {
	actor, err := e.actor(ctx, actorID)
	if err != nil {
		return domain.User{}, err
	}
	if !authz.ValidRole(role) {
		return domain.User{}, ValidationError{Field: "role", Message: "unknown role"}
	}
	target, err := e.targetBelowActor(ctx, actor, targetID)
	if err != nil {
		return domain.User{}, err
	}
	if !authz.CanModifyUserRole(actor.User.Role, role) {
		return domain.User{}, AuthorizationError{}
	}
	now := e.nowStr()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, infra("begin tx", err)
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateUserRole(ctx, tx, target.ID, role, now); err != nil {
		return domain.User{}, infra("update role", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, infra("commit", err)
	}
	target.Role = role
	target.UpdatedAt = now
	return target, nil
}

// SetUserCapabilities replaces the grant set wholesale.
func (e Engine) SetUserCapabilities(ctx context.Context, targetID string, capabilities []string, actorID string) (domain.User, error) {
	actor, err := e.actor(ctx, actorID)
	if err != nil {
		return domain.User{}, err
	}
	target, err := e.targetBelowActor(ctx, actor, targetID)
	if err != nil {
		return domain.User{}, err
	}
	caps, err := authz.NewCapabilitySet(capabilities)
	if err != nil {
		return domain.User{}, ValidationError{Field: "capabilities", Message: err.Error()}
	}
	now := e.nowStr()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, infra("begin tx", err)
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateUserCapabilities(ctx, tx, target.ID, caps.Names(), now); err != nil {
		return domain.User{}, infra("update capabilities", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, infra("commit", err)
	}
	target.Capabilities = caps.Names()
	target.UpdatedAt = now
	return target, nil
}

// SetUserActive soft-disables or re-enables an account. Users are never
// deleted.
func (e Engine) SetUserActive(ctx context.Context, targetID string, active bool, actorID string) (domain.User, error) {
	actor, err := e.actor(ctx, actorID)
	if err != nil {
		return domain.User{}, err
	}
	target, err := e.targetBelowActor(ctx, actor, targetID)
	if err != nil {
		return domain.User{}, err
	}
	now := e.nowStr()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, infra("begin tx", err)
	}
	defer tx.Rollback()
	if err := e.Repo.SetUserActive(ctx, tx, target.ID, active, now); err != nil {
		return domain.User{}, infra("update active", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, infra("commit", err)
	}
	target.Active = active
	target.UpdatedAt = now
	return target, nil
}

func (e Engine) GetUser(ctx context.Context, id string) (domain.User, error) {
	return e.Repo.GetUser(ctx, id)
}

// ListUsers returns accounts visible to the actor: peers and subordinates
// by rank, never superiors.
func (e Engine) ListUsers(ctx context.Context, actorID string) ([]domain.User, error) {
	actor, err := e.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	return e.Repo.ListUsers(ctx, repo.UserFilters{Roles: authz.VisibleRoles(actor.User.Role)})
}
