package engine

import (
	"taskdesk/internal/authz"
	"taskdesk/internal/domain"
	"taskdesk/internal/notify"
)

// Event names one task lifecycle transition request.
type Event string

const (
	EventAssign      Event = "assign"
	EventForward     Event = "forward"
	EventSubmit      Event = "submit"
	EventAcknowledge Event = "acknowledge"
	EventReject      Event = "reject"
	EventRevert      Event = "revert"
)

// TransitionPayload carries event-specific input.
type TransitionPayload struct {
	AssigneeID string
	Note       string
}

// transitionSpec is one row of the legal-transition table: required prior
// status, guard, next status, emitted action and notification shape. The
// whole table lives here so the legal set is enumerable in one place.
type transitionSpec struct {
	from          domain.TaskStatus
	to            domain.TaskStatus
	action        domain.ActionType
	needsAssignee bool
	guard         func(a Actor, t domain.Task) bool
	// notifyTarget picks the recipient after the transition applied;
	// next is the task as it will be once committed.
	notifyTarget func(next domain.Task) string
	notifyType   string
}

// manages reports whether the actor created the task or ranks as a manager
// over it.
func manages(a Actor, t domain.Task) bool {
	if t.CreatedByID == a.User.ID {
		return true
	}
	return authz.HasPermission(a.User.Role, domain.RoleManager)
}

func isAssignee(a Actor, t domain.Task) bool {
	return t.AssignedToID != nil && *t.AssignedToID == a.User.ID
}

var transitions = map[Event]transitionSpec{
	EventAssign: {
		from:          domain.TaskActive,
		to:            domain.TaskInProgress,
		action:        domain.ActionAssigned,
		needsAssignee: true,
		guard:         manages,
		notifyTarget:  assignedUser,
		notifyType:    notify.TypeTaskAssigned,
	},
	EventForward: {
		from:          domain.TaskInProgress,
		to:            domain.TaskInProgress,
		action:        domain.ActionForwarded,
		needsAssignee: true,
		guard: func(a Actor, t domain.Task) bool {
			return isAssignee(a, t) || manages(a, t)
		},
		notifyTarget: assignedUser,
		notifyType:   notify.TypeTaskForwarded,
	},
	EventSubmit: {
		from:   domain.TaskInProgress,
		to:     domain.TaskCompleted,
		action: domain.ActionSubmitted,
		guard:  isAssignee,
		notifyTarget: func(next domain.Task) string {
			return next.CreatedByID
		},
		notifyType: notify.TypeTaskSubmitted,
	},
	EventAcknowledge: {
		from:   domain.TaskCompleted,
		to:     domain.TaskClosed,
		action: domain.ActionAcknowledged,
		guard: func(a Actor, t domain.Task) bool {
			return authz.CanAcknowledgeTask(a.User.Role, a.Caps.Has(authz.CapApproveCompletions))
		},
		notifyTarget: assignedUser,
		notifyType:   notify.TypeTaskClosed,
	},
	EventReject: {
		from:   domain.TaskCompleted,
		to:     domain.TaskInProgress,
		action: domain.ActionRejected,
		guard: func(a Actor, t domain.Task) bool {
			return authz.CanAcknowledgeTask(a.User.Role, a.Caps.Has(authz.CapApproveCompletions))
		},
		notifyTarget: assignedUser,
		notifyType:   notify.TypeTaskRejected,
	},
	EventRevert: {
		from:   domain.TaskClosed,
		to:     domain.TaskInProgress,
		action: domain.ActionReverted,
		guard: func(a Actor, t domain.Task) bool {
			return authz.CanRevertTask(a.User.Role, a.Caps.Has(authz.CapRevertCompletions))
		},
		notifyTarget: assignedUser,
		notifyType:   notify.TypeTaskReverted,
	},
}

func assignedUser(next domain.Task) string {
	if next.AssignedToID == nil {
		return ""
	}
	return *next.AssignedToID
}

// Events lists the transition events in table order.
func Events() []Event {
	return []Event{EventAssign, EventForward, EventSubmit, EventAcknowledge, EventReject, EventRevert}
}

// TransitionEdge exposes one table row for enumeration and tests.
type TransitionEdge struct {
	Event  Event
	From   domain.TaskStatus
	To     domain.TaskStatus
	Action domain.ActionType
}

func TransitionTable() []TransitionEdge {
	var out []TransitionEdge
	for _, ev := range Events() {
		spec := transitions[ev]
		out = append(out, TransitionEdge{Event: ev, From: spec.from, To: spec.to, Action: spec.action})
	}
	return out
}
