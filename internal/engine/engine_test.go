package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskdesk/internal/app"
	"taskdesk/internal/config"
	"taskdesk/internal/db"
	"taskdesk/internal/domain"
	"taskdesk/internal/engine"
	"taskdesk/internal/migrate"
	"taskdesk/internal/notify"
	"taskdesk/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	Admin  domain.User
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	ctx := context.Background()
	admin, err := app.EnsureAdmin(ctx, conn, "", "")
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	eng := engine.New(conn, config.Default())
	eng.Now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }
	return testEnv{Engine: eng, Ctx: ctx, Admin: admin}
}

func (env testEnv) mustCreateUser(t *testing.T, name string, role domain.Role, caps ...string) domain.User {
	t.Helper()
	u, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{
		Name:         name,
		Email:        name + "@example.org",
		Role:         role,
		Capabilities: caps,
		ActorID:      env.Admin.ID,
	})
	if err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return u
}

func (env testEnv) mustCreateTask(t *testing.T, actorID, title string) domain.Task {
	t.Helper()
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: title, ActorID: actorID})
	if err != nil {
		t.Fatalf("create task %s: %v", title, err)
	}
	return task
}

func TestCreateTaskIssuesRecordNumber(t *testing.T) {
	env := newTestEnv(t)
	manager := env.mustCreateUser(t, "manager", domain.RoleManager, "create_tasks")

	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "File the report", ActorID: manager.ID})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Status != domain.TaskActive {
		t.Fatalf("status = %s, want ACTIVE", task.Status)
	}
	if task.RecordNumber != "TSK-0001" {
		t.Fatalf("record number = %s", task.RecordNumber)
	}
	actions, err := env.Engine.ListTaskActions(env.Ctx, task.ID)
	if err != nil {
		t.Fatalf("actions: %v", err)
	}
	if len(actions) != 1 || actions[0].ActionType != domain.ActionCreated {
		t.Fatalf("expected one CREATED action, got %v", actions)
	}
	second := env.mustCreateTask(t, manager.ID, "Another")
	if second.RecordNumber != "TSK-0002" {
		t.Fatalf("second record number = %s", second.RecordNumber)
	}
}

func TestCreateTaskRequiresCapabilityOrRank(t *testing.T) {
	env := newTestEnv(t)
	worker := env.mustCreateUser(t, "worker", domain.RoleEmployee)
	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "nope", ActorID: worker.ID})
	var authErr engine.AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	granted := env.mustCreateUser(t, "granted", domain.RoleEmployee, "create_tasks")
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "ok", ActorID: granted.ID}); err != nil {
		t.Fatalf("capability grant should allow create: %v", err)
	}
}

func TestAssignMovesToInProgressAndNotifies(t *testing.T) {
	env := newTestEnv(t)
	manager := env.mustCreateUser(t, "manager", domain.RoleManager)
	worker := env.mustCreateUser(t, "worker", domain.RoleEmployee)
	task := env.mustCreateTask(t, manager.ID, "Assignable")

	task, err := env.Engine.TransitionTask(env.Ctx, task.ID, engine.EventAssign, manager.ID, engine.TransitionPayload{AssigneeID: worker.ID})
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if task.Status != domain.TaskInProgress {
		t.Fatalf("status = %s", task.Status)
	}
	if task.AssignedToID == nil || *task.AssignedToID != worker.ID {
		t.Fatalf("assignee not set")
	}
	actions, _ := env.Engine.ListTaskActions(env.Ctx, task.ID)
	if len(actions) != 2 || actions[1].ActionType != domain.ActionAssigned {
		t.Fatalf("expected ASSIGNED action, got %v", actions)
	}
	notes, err := env.Engine.ListNotifications(env.Ctx, worker.ID, engine.NotificationFilter{})
	if err != nil {
		t.Fatalf("notifications: %v", err)
	}
	if len(notes) != 1 || notes[0].Type != notify.TypeTaskAssigned {
		t.Fatalf("expected one TASK_ASSIGNED notification, got %v", notes)
	}
	if notes[0].TaskID == nil || *notes[0].TaskID != task.ID {
		t.Fatalf("notification missing task link")
	}
}

func TestForwardKeepsInProgressWithNewAssignee(t *testing.T) {
	env := newTestEnv(t)
	manager := env.mustCreateUser(t, "manager", domain.RoleManager)
	first := env.mustCreateUser(t, "first", domain.RoleEmployee)
	second := env.mustCreateUser(t, "second", domain.RoleEmployee)
	task := env.mustCreateTask(t, manager.ID, "Forwardable")
	task, _ = env.Engine.TransitionTask(env.Ctx, task.ID, engine.EventAssign, manager.ID, engine.TransitionPayload{AssigneeID: first.ID})

	// current assignee may forward
	task, err := env.Engine.TransitionTask(env.Ctx, task.ID, engine.EventForward, first.ID, engine.TransitionPayload{AssigneeID: second.ID})
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if task.Status != domain.TaskInProgress || *task.AssignedToID != second.ID {
		t.Fatalf("forward result: %s / %v", task.Status, task.AssignedToID)
	}
	actions, _ := env.Engine.ListTaskActions(env.Ctx, task.ID)
	last := actions[len(actions)-1]
	if last.ActionType != domain.ActionForwarded || last.ForwardedTo == nil || *last.ForwardedTo != second.ID {
		t.Fatalf("forward action not recorded: %+v", last)
	}
	// an uninvolved employee may not forward
	outsider := env.mustCreateUser(t, "outsider", domain.RoleEmployee)
	_, err = env.Engine.TransitionTask(env.Ctx, task.ID, engine.EventForward, outsider.ID, engine.TransitionPayload{AssigneeID: first.ID})
	var authErr engine.AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestSubmitAcknowledgeClosesInOrder(t *testing.T) {
	env := newTestEnv(t)
	manager := env.mustCreateUser(t, "manager", domain.RoleManager)
	worker := env.mustCreateUser(t, "worker", domain.RoleEmployee)
	director := env.mustCreateUser(t, "director", domain.RoleDirector, "approve_completions")
	task := env.mustCreateTask(t, manager.ID, "Full cycle")
	task, _ = env.Engine.TransitionTask(env.Ctx, task.ID, engine.EventAssign, manager.ID, engine.TransitionPayload{AssigneeID: worker.ID})

	task, err := env.Engine.TransitionTask(env.Ctx, task.ID, engine.EventSubmit, worker.ID, engine.TransitionPayload{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if task.Status != domain.TaskCompleted {
		t.Fatalf("status after submit = %s", task.Status)
	}
	task, err = env.Engine.TransitionTask(env.Ctx, task.ID, engine.EventAcknowledge, director.ID, engine.TransitionPayload{})
	if err != nil {
		t.Fatalf("acknowledge: %v", err)
	}
	if task.Status != domain.TaskClosed {
		t.Fatalf("status after acknowledge = %s", task.Status)
	}
	actions, _ := env.Engine.ListTaskActions(env.Ctx, task.ID)
	var types []domain.ActionType
	for _, a := range actions {
		types = append(types, a.ActionType)
	}
	want := []domain.ActionType{domain.ActionCreated, domain.ActionAssigned, domain.ActionSubmitted, domain.ActionAcknowledged, domain.ActionClosed}
	if len(types) != len(want) {
		t.Fatalf("action trail = %v", types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("action[%d] = %s, want %s", i, types[i], want[i])
		}
	}
}

func TestOnlyAssigneeSubmits(t *testing.T) {
	env := newTestEnv(t)
	manager := env.mustCreateUser(t, "manager", domain.RoleManager)
	worker := env.mustCreateUser(t, "worker", domain.RoleEmployee)
	task := env.mustCreateTask(t, manager.ID, "Submit guard")
	task, _ = env.Engine.TransitionTask(env.Ctx, task.ID, engine.EventAssign, manager.ID, engine.TransitionPayload{AssigneeID: worker.ID})

	_, err := env.Engine.TransitionTask(env.Ctx, task.ID, engine.EventSubmit, manager.ID, engine.TransitionPayload{})
	var authErr engine.AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("manager must not submit for assignee, got %v", err)
	}
	// guard failure leaves no log entry behind
	actions, _ := env.Engine.ListTaskActions(env.Ctx, task.ID)
	if len(actions) != 2 {
		t.Fatalf("rejected transition must not log, trail = %v", actions)
	}
}

func TestRejectReturnsToAssignee(t *testing.T) {
	env := newTestEnv(t)
	manager := env.mustCreateUser(t, "manager", domain.RoleManager)
	worker := env.mustCreateUser(t, "worker", domain.RoleEmployee)
	approver := env.mustCreateUser(t, "approver", domain.RoleIncharge, "approve_completions")
	task := env.mustCreateTask(t, manager.ID, "Rejectable")
	task, _ = env.Engine.TransitionTask(env.Ctx, task.ID, engine.EventAssign, manager.ID, engine.TransitionPayload{AssigneeID: worker.ID})
	task, _ = env.Engine.TransitionTask(env.Ctx, task.ID, engine.EventSubmit, worker.ID, engine.TransitionPayload{})

	task, err := env.Engine.TransitionTask(env.Ctx, task.ID, engine.EventReject, approver.ID, engine.TransitionPayload{Note: "incomplete"})
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if task.Status != domain.TaskInProgress {
		t.Fatalf("status after reject = %s", task.Status)
	}
	notes, _ := env.Engine.ListNotifications(env.Ctx, worker.ID, engine.NotificationFilter{UnreadOnly: true})
	var rejected bool
	for _, n := range notes {
		if n.Type == notify.TypeTaskRejected {
			rejected = true
		}
	}
	if !rejected {
		t.Fatalf("assignee should be notified about rejection, got %v", notes)
	}
}

func TestRevertClosedTask(t *testing.T) {
	env := newTestEnv(t)
	manager := env.mustCreateUser(t, "manager", domain.RoleManager)
	worker := env.mustCreateUser(t, "worker", domain.RoleEmployee)
	task := env.mustCreateTask(t, manager.ID, "Revertable")
	task, _ = env.Engine.TransitionTask(env.Ctx, task.ID, engine.EventAssign, manager.ID, engine.TransitionPayload{AssigneeID: worker.ID})
	task, _ = env.Engine.TransitionTask(env.Ctx, task.ID, engine.EventSubmit, worker.ID, engine.TransitionPayload{})
	task, _ = env.Engine.TransitionTask(env.Ctx, task.ID, engine.EventAcknowledge, env.Admin.ID, engine.TransitionPayload{})

	recordBefore := task.RecordNumber
	task, err := env.Engine.TransitionTask(env.Ctx, task.ID, engine.EventRevert, env.Admin.ID, engine.TransitionPayload{})
	if err != nil {
		t.Fatalf("revert: %v", err)
	}
	if task.Status != domain.TaskInProgress {
		t.Fatalf("status after revert = %s", task.Status)
	}
	if task.RecordNumber != recordBefore {
		t.Fatalf("record number must never be reissued")
	}
	actions, _ := env.Engine.ListTaskActions(env.Ctx, task.ID)
	if actions[len(actions)-1].ActionType != domain.ActionReverted {
		t.Fatalf("REVERTED action missing")
	}
	// employee without the grant cannot revert
	task, _ = env.Engine.TransitionTask(env.Ctx, task.ID, engine.EventSubmit, worker.ID, engine.TransitionPayload{})
	task, _ = env.Engine.TransitionTask(env.Ctx, task.ID, engine.EventAcknowledge, env.Admin.ID, engine.TransitionPayload{})
	_, err = env.Engine.TransitionTask(env.Ctx, task.ID, engine.EventRevert, worker.ID, engine.TransitionPayload{})
	var authErr engine.AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestStaleTransitionConflicts(t *testing.T) {
	env := newTestEnv(t)
	manager := env.mustCreateUser(t, "manager", domain.RoleManager)
	worker := env.mustCreateUser(t, "worker", domain.RoleEmployee)
	task := env.mustCreateTask(t, manager.ID, "Race")
	// task is still ACTIVE; submitting requires IN_PROGRESS
	_, err := env.Engine.TransitionTask(env.Ctx, task.ID, engine.EventSubmit, worker.ID, engine.TransitionPayload{})
	var conflict engine.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	got, _ := env.Engine.GetTask(env.Ctx, task.ID)
	if got.Status != domain.TaskActive || got.Version != task.Version {
		t.Fatalf("conflicting transition must leave the task unchanged")
	}
}

func TestEditWritesHistoryDiffs(t *testing.T) {
	env := newTestEnv(t)
	manager := env.mustCreateUser(t, "manager", domain.RoleManager)
	director := env.mustCreateUser(t, "director", domain.RoleDirector)
	task := env.mustCreateTask(t, manager.ID, "Editable")

	title := "Renamed"
	prio := "HIGH"
	edited, err := env.Engine.EditTaskFields(env.Ctx, task.ID, engine.TaskEditOptions{
		Title:    &title,
		Priority: &prio,
		ActorID:  director.ID,
	})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.Title != "Renamed" || edited.Status != domain.TaskActive {
		t.Fatalf("edit result: %+v", edited)
	}
	history, _ := env.Engine.ListTaskHistory(env.Ctx, task.ID)
	if len(history) != 2 {
		t.Fatalf("expected 2 diff rows, got %v", history)
	}
	if history[0].Field != "title" || history[0].OldValue != "Editable" || history[0].NewValue != "Renamed" {
		t.Fatalf("title diff: %+v", history[0])
	}
	actions, _ := env.Engine.ListTaskActions(env.Ctx, task.ID)
	if actions[len(actions)-1].ActionType != domain.ActionEdited {
		t.Fatalf("EDITED action missing")
	}
	// manager is below the edit ceiling
	_, err = env.Engine.EditTaskFields(env.Ctx, task.ID, engine.TaskEditOptions{Title: &title, ActorID: manager.ID})
	var authErr engine.AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("manager must not edit, got %v", err)
	}
}

func TestReceiveLifecycle(t *testing.T) {
	env := newTestEnv(t)
	clerk := env.mustCreateUser(t, "clerk", domain.RoleIncharge, "manage_receives", "create_tasks")

	rc, err := env.Engine.CreateReceive(env.Ctx, engine.ReceiveCreateOptions{Subject: "Incoming letter", ActorID: clerk.ID})
	if err != nil {
		t.Fatalf("create receive: %v", err)
	}
	if rc.ReferenceNumber != "RCV-0001" || rc.Status != domain.ReceiveOpen {
		t.Fatalf("new receive: %+v", rc)
	}
	// linking a task derives ASSIGNED
	if _, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "Handle letter", ReceiveID: rc.ID, ActorID: clerk.ID}); err != nil {
		t.Fatalf("create linked task: %v", err)
	}
	rc, err = env.Engine.GetReceive(env.Ctx, rc.ID)
	if err != nil {
		t.Fatalf("get receive: %v", err)
	}
	if rc.Status != domain.ReceiveAssigned || rc.TaskCount != 1 {
		t.Fatalf("derived status: %+v", rc)
	}
	// closing stamps both fields together
	rc, err = env.Engine.SetReceiveStatus(env.Ctx, rc.ID, domain.ReceiveClosed, clerk.ID)
	if err != nil {
		t.Fatalf("close receive: %v", err)
	}
	if rc.ClosedAt == nil || rc.ClosedByID == nil || *rc.ClosedByID != clerk.ID {
		t.Fatalf("closed fields: %+v", rc)
	}
	// reopening clears both in the same write
	rc, err = env.Engine.SetReceiveStatus(env.Ctx, rc.ID, domain.ReceiveOpen, clerk.ID)
	if err != nil {
		t.Fatalf("reopen receive: %v", err)
	}
	if rc.ClosedAt != nil || rc.ClosedByID != nil {
		t.Fatalf("closed fields must clear on reopen: %+v", rc)
	}
	if rc.Status != domain.ReceiveAssigned {
		t.Fatalf("reopened receive with tasks derives ASSIGNED, got %s", rc.Status)
	}
}

func TestReceiveStatusRequiresManagePermission(t *testing.T) {
	env := newTestEnv(t)
	clerk := env.mustCreateUser(t, "clerk", domain.RoleIncharge, "manage_receives")
	rc, err := env.Engine.CreateReceive(env.Ctx, engine.ReceiveCreateOptions{Subject: "Guarded", ActorID: clerk.ID})
	if err != nil {
		t.Fatalf("create receive: %v", err)
	}
	plain := env.mustCreateUser(t, "plain", domain.RoleManager)
	_, err = env.Engine.SetReceiveStatus(env.Ctx, rc.ID, domain.ReceiveClosed, plain.ID)
	var authErr engine.AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("manager without grant must not set receive status, got %v", err)
	}
	// superadmin needs no grant
	if _, err := env.Engine.SetReceiveStatus(env.Ctx, rc.ID, domain.ReceiveClosed, env.Admin.ID); err != nil {
		t.Fatalf("superadmin close: %v", err)
	}
}

func TestNotificationReadScoping(t *testing.T) {
	env := newTestEnv(t)
	manager := env.mustCreateUser(t, "manager", domain.RoleManager)
	worker := env.mustCreateUser(t, "worker", domain.RoleEmployee)
	task := env.mustCreateTask(t, manager.ID, "Notify me")
	_, _ = env.Engine.TransitionTask(env.Ctx, task.ID, engine.EventAssign, manager.ID, engine.TransitionPayload{AssigneeID: worker.ID})

	notes, _ := env.Engine.ListNotifications(env.Ctx, worker.ID, engine.NotificationFilter{UnreadOnly: true})
	if len(notes) != 1 {
		t.Fatalf("expected 1 unread, got %d", len(notes))
	}
	count, _ := env.Engine.UnreadNotificationCount(env.Ctx, worker.ID)
	if count != 1 {
		t.Fatalf("unread count = %d", count)
	}
	// another user cannot mark it read
	err := env.Engine.MarkNotificationRead(env.Ctx, notes[0].ID, manager.ID, true)
	if !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not-found for foreign notification, got %v", err)
	}
	if err := env.Engine.MarkNotificationRead(env.Ctx, notes[0].ID, worker.ID, true); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	count, _ = env.Engine.UnreadNotificationCount(env.Ctx, worker.ID)
	if count != 0 {
		t.Fatalf("unread count after read = %d", count)
	}
	unread, _ := env.Engine.ListNotifications(env.Ctx, worker.ID, engine.NotificationFilter{UnreadOnly: true})
	if len(unread) != 0 {
		t.Fatalf("unreadOnly listing should be empty, got %v", unread)
	}
}

func TestUserAdministration(t *testing.T) {
	env := newTestEnv(t)
	director := env.mustCreateUser(t, "director", domain.RoleDirector)

	// director may create subordinates, not peers
	_, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{
		Name: "peer", Email: "peer@example.org", Role: domain.RoleDirector, ActorID: director.ID,
	})
	var authErr engine.AuthorizationError
	if !errors.As(err, &authErr) {
		t.Fatalf("peer-rank creation must fail, got %v", err)
	}
	worker, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{
		Name: "worker", Email: "worker@example.org", Role: domain.RoleEmployee, ActorID: director.ID,
	})
	if err != nil {
		t.Fatalf("subordinate creation: %v", err)
	}
	// capability mutation requires strictly higher rank
	_, err = env.Engine.SetUserCapabilities(env.Ctx, director.ID, []string{"revert_completions"}, director.ID)
	if !errors.As(err, &authErr) {
		t.Fatalf("self capability grant must fail, got %v", err)
	}
	updated, err := env.Engine.SetUserCapabilities(env.Ctx, worker.ID, []string{"revert_completions"}, director.ID)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	if len(updated.Capabilities) != 1 || updated.Capabilities[0] != "revert_completions" {
		t.Fatalf("capabilities = %v", updated.Capabilities)
	}
	// duplicate email conflicts
	_, err = env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{
		Name: "dup", Email: "worker@example.org", Role: domain.RoleEmployee, ActorID: director.ID,
	})
	var conflict engine.ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected conflict for duplicate email, got %v", err)
	}
	// soft-disable blocks the account from acting
	if _, err := env.Engine.SetUserActive(env.Ctx, worker.ID, false, director.ID); err != nil {
		t.Fatalf("disable: %v", err)
	}
	_, err = env.Engine.ListNotifications(env.Ctx, worker.ID, engine.NotificationFilter{})
	if !errors.As(err, &authErr) {
		t.Fatalf("disabled account must not act, got %v", err)
	}
}

func TestTransitionTableShape(t *testing.T) {
	table := engine.TransitionTable()
	if len(table) != 6 {
		t.Fatalf("expected 6 transition edges, got %d", len(table))
	}
	byEvent := map[engine.Event]engine.TransitionEdge{}
	for _, edge := range table {
		byEvent[edge.Event] = edge
	}
	if e := byEvent[engine.EventForward]; e.From != domain.TaskInProgress || e.To != domain.TaskInProgress {
		t.Fatalf("forward edge: %+v", e)
	}
	if e := byEvent[engine.EventRevert]; e.From != domain.TaskClosed || e.To != domain.TaskInProgress {
		t.Fatalf("revert edge: %+v", e)
	}
}

func TestTaskStatusCounts(t *testing.T) {
	env := newTestEnv(t)
	manager := env.mustCreateUser(t, "manager", domain.RoleManager)
	worker := env.mustCreateUser(t, "worker", domain.RoleEmployee)

	first := env.mustCreateTask(t, manager.ID, "First")
	env.mustCreateTask(t, manager.ID, "Second")
	if _, err := env.Engine.TransitionTask(env.Ctx, first.ID, engine.EventAssign, manager.ID, engine.TransitionPayload{AssigneeID: worker.ID}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	counts, err := env.Engine.TaskStatusCounts(env.Ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts[string(domain.TaskActive)] != 1 {
		t.Fatalf("active = %d, want 1", counts[string(domain.TaskActive)])
	}
	if counts[string(domain.TaskInProgress)] != 1 {
		t.Fatalf("in progress = %d, want 1", counts[string(domain.TaskInProgress)])
	}
	if counts[string(domain.TaskClosed)] != 0 {
		t.Fatalf("closed = %d, want 0", counts[string(domain.TaskClosed)])
	}
}

func TestAttachmentRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	manager := env.mustCreateUser(t, "manager", domain.RoleManager)
	task := env.mustCreateTask(t, manager.ID, "With files")

	a, err := env.Engine.AddAttachment(env.Ctx, task.ID, "scan.pdf", "s3://bucket/scan.pdf", manager.ID)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if a.TaskID != task.ID || a.FileName != "scan.pdf" {
		t.Fatalf("attachment = %+v", a)
	}
	items, err := env.Engine.ListAttachments(env.Ctx, task.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 || items[0].ID != a.ID {
		t.Fatalf("expected the stored attachment, got %v", items)
	}
	if _, err := env.Engine.ListAttachments(env.Ctx, "missing"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected not found for unknown task, got %v", err)
	}
}
