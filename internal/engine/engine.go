package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"taskdesk/internal/authz"
	"taskdesk/internal/config"
	"taskdesk/internal/domain"
	"taskdesk/internal/notify"
	"taskdesk/internal/repo"
	"taskdesk/internal/sequence"
)

// ErrUnauthenticated means no resolved identity reached the engine.
var ErrUnauthenticated = errors.New("authentication required")

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Seq    sequence.Issuer
	Notify notify.Dispatcher
	Config *config.Config
	Logger *log.Logger
	Now    func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Seq:    sequence.Issuer{DB: db},
		Notify: notify.Dispatcher{DB: db},
		Config: cfg,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) nowStr() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

// Actor is a resolved identity with its capability grants loaded. The
// identity provider has already verified the credential; the engine trusts
// the pair and only loads the grant set.
type Actor struct {
	User domain.User
	Caps authz.CapabilitySet
}

func (e Engine) actor(ctx context.Context, actorID string) (Actor, error) {
	if actorID == "" {
		return Actor{}, ErrUnauthenticated
	}
	u, err := e.Repo.GetUser(ctx, actorID)
	if errors.Is(err, repo.ErrNotFound) {
		return Actor{}, ErrUnauthenticated
	}
	if err != nil {
		return Actor{}, infra("load actor", err)
	}
	if !u.Active {
		return Actor{}, AuthorizationError{}
	}
	caps, err := authz.NewCapabilitySet(u.Capabilities)
	if err != nil {
		return Actor{}, infra("load actor capabilities", err)
	}
	return Actor{User: u, Caps: caps}, nil
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	Title       string
	Description string
	Priority    string
	Complexity  string
	Workcenter  string
	ReceiveID   string
	ActorID     string
}

// CreateTask creates a task in ACTIVE with a freshly issued record number
// and one CREATED action, all in a single transaction.
func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	actor, err := e.actor(ctx, opts.ActorID)
	if err != nil {
		return domain.Task{}, err
	}
	if !actor.Caps.Has(authz.CapCreateTasks) && !authz.HasPermission(actor.User.Role, domain.RoleManager) {
		return domain.Task{}, AuthorizationError{}
	}
	if opts.Title == "" {
		return domain.Task{}, ValidationError{Field: "title", Message: "required"}
	}
	now := e.nowStr()
	t := domain.Task{
		ID:          uuid.New().String(),
		Title:       opts.Title,
		Description: opts.Description,
		Status:      domain.TaskActive,
		Priority:    optional(opts.Priority),
		Complexity:  optional(opts.Complexity),
		Workcenter:  optional(opts.Workcenter),
		CreatedByID: actor.User.ID,
		ReceiveID:   optional(opts.ReceiveID),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, infra("begin tx", err)
	}
	defer tx.Rollback()

	if opts.ReceiveID != "" {
		if _, err := e.Repo.GetReceiveTx(ctx, tx, opts.ReceiveID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return domain.Task{}, err
			}
			return domain.Task{}, infra("load receive", err)
		}
	}
	seq, err := e.Seq.NextTx(ctx, tx, sequence.DomainTask)
	if err != nil {
		e.logger().Printf("ERROR: task sequence unavailable: %v", err)
		return domain.Task{}, infra("issue record number", err)
	}
	ref := e.Config.References.Task
	t.RecordNumber = sequence.Format(ref.Prefix, ref.Pad, seq)
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, infra("insert task", err)
	}
	if err := e.Repo.AppendTaskAction(ctx, tx, domain.TaskAction{
		TaskID:     t.ID,
		ActionType: domain.ActionCreated,
		ActorID:    actor.User.ID,
		TS:         now,
	}); err != nil {
		return domain.Task{}, infra("append action", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, infra("commit", err)
	}
	return t, nil
}

// TransitionTask applies one lifecycle event. The status write is
// conditional on the prior status observed here, so a concurrent transition
// surfaces as a ConflictError with no state change and no log entry.
func (e Engine) TransitionTask(ctx context.Context, taskID string, event Event, actorID string, p TransitionPayload) (domain.Task, error) {
	actor, err := e.actor(ctx, actorID)
	if err != nil {
		return domain.Task{}, err
	}
	spec, ok := transitions[event]
	if !ok {
		return domain.Task{}, ValidationError{Field: "event", Message: fmt.Sprintf("unknown event %q", event)}
	}
	t, err := e.Repo.GetTask(ctx, taskID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Task{}, err
	}
	if err != nil {
		return domain.Task{}, infra("load task", err)
	}
	if t.Status != spec.from {
		return domain.Task{}, ConflictError{Message: fmt.Sprintf("cannot %s task in status %s", event, t.Status)}
	}
	if !spec.guard(actor, t) {
		return domain.Task{}, AuthorizationError{}
	}
	var newAssignee *string
	if spec.needsAssignee {
		if p.AssigneeID == "" {
			return domain.Task{}, ValidationError{Field: "assignee_id", Message: "required"}
		}
		assignee, err := e.Repo.GetUser(ctx, p.AssigneeID)
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Task{}, err
		}
		if err != nil {
			return domain.Task{}, infra("load assignee", err)
		}
		if !assignee.Active {
			return domain.Task{}, ValidationError{Field: "assignee_id", Message: "user is disabled"}
		}
		newAssignee = &assignee.ID
	}
	now := e.nowStr()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, infra("begin tx", err)
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateTaskStatus(ctx, tx, t.ID, spec.from, spec.to, newAssignee, now); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return domain.Task{}, ConflictError{Message: fmt.Sprintf("task no longer in status %s", spec.from)}
		}
		return domain.Task{}, infra("update status", err)
	}
	action := domain.TaskAction{
		TaskID:     t.ID,
		ActionType: spec.action,
		ActorID:    actor.User.ID,
		ForwardedTo: func() *string {
			if event == EventForward {
				return newAssignee
			}
			return nil
		}(),
		Note: p.Note,
		TS:   now,
	}
	if err := e.Repo.AppendTaskAction(ctx, tx, action); err != nil {
		return domain.Task{}, infra("append action", err)
	}
	if event == EventAcknowledge {
		// acknowledgement closes the task; both entries land in order
		if err := e.Repo.AppendTaskAction(ctx, tx, domain.TaskAction{
			TaskID:     t.ID,
			ActionType: domain.ActionClosed,
			ActorID:    actor.User.ID,
			TS:         now,
		}); err != nil {
			return domain.Task{}, infra("append action", err)
		}
	}

	next := t
	next.Status = spec.to
	next.Version = t.Version + 1
	next.UpdatedAt = now
	if newAssignee != nil {
		next.AssignedToID = newAssignee
	}
	if target := spec.notifyTarget(next); target != "" && target != actor.User.ID {
		msg := fmt.Sprintf("Task %s %s", next.RecordNumber, pastTense(spec.action))
		if err := e.Notify.Dispatch(ctx, tx, target, next.ID, spec.notifyType, msg); err != nil {
			return domain.Task{}, infra("dispatch notification", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, infra("commit", err)
	}
	return next, nil
}

func pastTense(a domain.ActionType) string {
	switch a {
	case domain.ActionAssigned:
		return "was assigned to you"
	case domain.ActionForwarded:
		return "was forwarded to you"
	case domain.ActionSubmitted:
		return "was submitted for completion review"
	case domain.ActionRejected:
		return "was rejected and returned to you"
	case domain.ActionAcknowledged:
		return "was acknowledged and closed"
	case domain.ActionReverted:
		return "was reverted and reopened"
	default:
		return "was updated"
	}
}

// TaskEditOptions patches non-status fields; nil means leave unchanged.
type TaskEditOptions struct {
	Title       *string
	Description *string
	Priority    *string
	Complexity  *string
	Workcenter  *string
	ActorID     string
}

// EditTaskFields updates non-status fields, appending one history diff per
// changed field plus a single EDITED action. Status is untouched.
func (e Engine) EditTaskFields(ctx context.Context, taskID string, opts TaskEditOptions) (domain.Task, error) {
	actor, err := e.actor(ctx, opts.ActorID)
	if err != nil {
		return domain.Task{}, err
	}
	if !authz.CanEditTask(actor.User.Role) {
		return domain.Task{}, AuthorizationError{}
	}
	t, err := e.Repo.GetTask(ctx, taskID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Task{}, err
	}
	if err != nil {
		return domain.Task{}, infra("load task", err)
	}
	now := e.nowStr()
	var diffs []domain.TaskHistory
	record := func(field, oldV, newV string) {
		if oldV == newV {
			return
		}
		diffs = append(diffs, domain.TaskHistory{
			TaskID: t.ID, Field: field, OldValue: oldV, NewValue: newV,
			ActorID: actor.User.ID, TS: now,
		})
	}
	next := t
	if opts.Title != nil {
		if *opts.Title == "" {
			return domain.Task{}, ValidationError{Field: "title", Message: "must not be empty"}
		}
		record("title", t.Title, *opts.Title)
		next.Title = *opts.Title
	}
	if opts.Description != nil {
		record("description", t.Description, *opts.Description)
		next.Description = *opts.Description
	}
	if opts.Priority != nil {
		record("priority", deref(t.Priority), *opts.Priority)
		next.Priority = optional(*opts.Priority)
	}
	if opts.Complexity != nil {
		record("complexity", deref(t.Complexity), *opts.Complexity)
		next.Complexity = optional(*opts.Complexity)
	}
	if opts.Workcenter != nil {
		record("workcenter", deref(t.Workcenter), *opts.Workcenter)
		next.Workcenter = optional(*opts.Workcenter)
	}
	if len(diffs) == 0 {
		return t, nil
	}
	next.UpdatedAt = now
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, infra("begin tx", err)
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTaskFields(ctx, tx, next); err != nil {
		if errors.Is(err, repo.ErrStale) {
			return domain.Task{}, ConflictError{Message: "task changed concurrently"}
		}
		return domain.Task{}, infra("update fields", err)
	}
	for _, d := range diffs {
		if err := e.Repo.AppendTaskHistory(ctx, tx, d); err != nil {
			return domain.Task{}, infra("append history", err)
		}
	}
	if err := e.Repo.AppendTaskAction(ctx, tx, domain.TaskAction{
		TaskID:     t.ID,
		ActionType: domain.ActionEdited,
		ActorID:    actor.User.ID,
		TS:         now,
	}); err != nil {
		return domain.Task{}, infra("append action", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, infra("commit", err)
	}
	next.Version = t.Version + 1
	return next, nil
}

// AddAttachment records file metadata against a task; file content storage
// is external to the engine.
func (e Engine) AddAttachment(ctx context.Context, taskID, fileName, fileRef, actorID string) (domain.Attachment, error) {
	actor, err := e.actor(ctx, actorID)
	if err != nil {
		return domain.Attachment{}, err
	}
	if fileName == "" || fileRef == "" {
		return domain.Attachment{}, ValidationError{Field: "file", Message: "file_name and file_ref required"}
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Attachment{}, infra("begin tx", err)
	}
	defer tx.Rollback()
	t, err := e.Repo.GetTaskTx(ctx, tx, taskID)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Attachment{}, err
	}
	if err != nil {
		return domain.Attachment{}, infra("load task", err)
	}
	a := domain.Attachment{
		ID:        uuid.New().String(),
		TaskID:    t.ID,
		FileName:  fileName,
		FileRef:   fileRef,
		ActorID:   actor.User.ID,
		CreatedAt: e.nowStr(),
	}
	if err := e.Repo.InsertAttachment(ctx, tx, a); err != nil {
		return domain.Attachment{}, infra("insert attachment", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Attachment{}, infra("commit", err)
	}
	return a, nil
}

func (e Engine) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return e.Repo.GetTask(ctx, id)
}

func (e Engine) ListTasks(ctx context.Context, f repo.TaskFilters) ([]domain.Task, error) {
	return e.Repo.ListTasks(ctx, f)
}

func (e Engine) ListTaskActions(ctx context.Context, taskID string) ([]domain.TaskAction, error) {
	return e.Repo.ListTaskActions(ctx, taskID)
}

func (e Engine) ListTaskHistory(ctx context.Context, taskID string) ([]domain.TaskHistory, error) {
	return e.Repo.ListTaskHistory(ctx, taskID)
}

func (e Engine) ListAttachments(ctx context.Context, taskID string) ([]domain.Attachment, error) {
	if _, err := e.Repo.GetTask(ctx, taskID); err != nil {
		return nil, err
	}
	return e.Repo.ListAttachments(ctx, taskID)
}

// TaskStatusCounts reports how many tasks sit in each lifecycle state.
func (e Engine) TaskStatusCounts(ctx context.Context) (map[string]int, error) {
	counts, err := e.Repo.CountTasksByStatus(ctx)
	if err != nil {
		return nil, infra("count tasks", err)
	}
	for _, s := range []domain.TaskStatus{domain.TaskActive, domain.TaskInProgress, domain.TaskCompleted, domain.TaskClosed} {
		if _, ok := counts[string(s)]; !ok {
			counts[string(s)] = 0
		}
	}
	return counts, nil
}

// --- helpers ---

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
