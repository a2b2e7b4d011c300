package domain

// Role is a position in the fixed six-level authority order. Rank comparisons
// go through authz; role identifiers are never compared lexically.
type Role string

const (
	RoleSuperadmin Role = "SUPERADMIN"
	RoleDirector   Role = "DIRECTOR"
	RoleDyDirector Role = "DY_DIRECTOR"
	RoleManager    Role = "MANAGER"
	RoleIncharge   Role = "INCHARGE"
	RoleEmployee   Role = "EMPLOYEE"
)

// TaskStatus values for the task state machine.
type TaskStatus string

const (
	TaskActive     TaskStatus = "ACTIVE"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskClosed     TaskStatus = "CLOSED"
)

// ReceiveStatus values for the intake-ledger state machine. ASSIGNED is
// derived from the linked-task count and never stored.
type ReceiveStatus string

const (
	ReceiveOpen     ReceiveStatus = "OPEN"
	ReceiveAssigned ReceiveStatus = "ASSIGNED"
	ReceiveClosed   ReceiveStatus = "CLOSED"
)

// ActionType identifies one lifecycle event in the task audit trail.
type ActionType string

const (
	ActionCreated      ActionType = "CREATED"
	ActionAssigned     ActionType = "ASSIGNED"
	ActionForwarded    ActionType = "FORWARDED"
	ActionSubmitted    ActionType = "SUBMITTED"
	ActionAcknowledged ActionType = "ACKNOWLEDGED"
	ActionClosed       ActionType = "CLOSED"
	ActionRejected     ActionType = "REJECTED"
	ActionReverted     ActionType = "REVERTED"
	ActionEdited       ActionType = "EDITED"
)

type User struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Role         Role     `json:"role" enum:"SUPERADMIN,DIRECTOR,DY_DIRECTOR,MANAGER,INCHARGE,EMPLOYEE"`
	Capabilities []string `json:"capabilities,omitempty"`
	Workcenter   *string  `json:"workcenter,omitempty"`
	Active       bool     `json:"active"`
	CreatedAt    string   `json:"created_at" format:"date-time"`
	UpdatedAt    string   `json:"updated_at" format:"date-time"`
}

type Task struct {
	ID           string     `json:"id"`
	RecordNumber string     `json:"record_number"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Status       TaskStatus `json:"status" enum:"ACTIVE,IN_PROGRESS,COMPLETED,CLOSED"`
	Priority     *string    `json:"priority,omitempty"`
	Complexity   *string    `json:"complexity,omitempty"`
	Workcenter   *string    `json:"workcenter,omitempty"`
	AssignedToID *string    `json:"assigned_to_id,omitempty"`
	CreatedByID  string     `json:"created_by_id"`
	ReceiveID    *string    `json:"receive_id,omitempty"`
	Version      int64      `json:"version"`
	CreatedAt    string     `json:"created_at" format:"date-time"`
	UpdatedAt    string     `json:"updated_at" format:"date-time"`
}

// TaskAction is one append-only lifecycle log entry. Rows are never mutated
// or deleted after creation; they are the canonical audit trail.
type TaskAction struct {
	ID          int64      `json:"id"`
	TaskID      string     `json:"task_id"`
	ActionType  ActionType `json:"action_type"`
	ActorID     string     `json:"actor_id"`
	ForwardedTo *string    `json:"forwarded_to,omitempty"`
	Note        string     `json:"note,omitempty"`
	TS          string     `json:"ts" format:"date-time"`
}

// TaskHistory is one append-only field-level diff entry, kept separate from
// the lifecycle log.
type TaskHistory struct {
	ID       int64  `json:"id"`
	TaskID   string `json:"task_id"`
	Field    string `json:"field"`
	OldValue string `json:"old_value"`
	NewValue string `json:"new_value"`
	ActorID  string `json:"actor_id"`
	TS       string `json:"ts" format:"date-time"`
}

type Receive struct {
	ID              string        `json:"id"`
	ReferenceNumber string        `json:"reference_number"`
	Subject         string        `json:"subject"`
	Source          string        `json:"source,omitempty"`
	Status          ReceiveStatus `json:"status" enum:"OPEN,ASSIGNED,CLOSED"`
	CreatedByID     string        `json:"created_by_id"`
	ClosedByID      *string       `json:"closed_by_id,omitempty"`
	ClosedAt        *string       `json:"closed_at,omitempty" format:"date-time"`
	TaskCount       int           `json:"task_count"`
	CreatedAt       string        `json:"created_at" format:"date-time"`
}

type Notification struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	TaskID    *string `json:"task_id,omitempty"`
	Type      string  `json:"type"`
	Message   string  `json:"message"`
	Read      bool    `json:"read"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

// SequenceCounter mirrors one durable counter row. A value is never issued
// twice, even under concurrent callers.
type SequenceCounter struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// Attachment records file metadata only; content storage is external.
type Attachment struct {
	ID        string `json:"id"`
	TaskID    string `json:"task_id"`
	FileName  string `json:"file_name"`
	FileRef   string `json:"file_ref"`
	ActorID   string `json:"actor_id"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
