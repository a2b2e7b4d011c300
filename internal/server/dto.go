package server

import (
	"taskdesk/internal/domain"
	"taskdesk/internal/engine"
)

// Request payloads

type CreateTaskRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Complexity  *string `json:"complexity,omitempty"`
	Workcenter  *string `json:"workcenter,omitempty"`
	ReceiveID   *string `json:"receive_id,omitempty"`
}

type EditTaskRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Complexity  *string `json:"complexity,omitempty"`
	Workcenter  *string `json:"workcenter,omitempty"`
}

type TaskActionRequest struct {
	Event      string  `json:"event" enum:"assign,forward,submit,acknowledge,reject,revert"`
	AssigneeID *string `json:"assignee_id,omitempty"`
	Note       *string `json:"note,omitempty"`
}

type AddAttachmentRequest struct {
	FileName string `json:"file_name"`
	FileRef  string `json:"file_ref"`
}

type CreateReceiveRequest struct {
	Subject string  `json:"subject"`
	Source  *string `json:"source,omitempty"`
}

type SetReceiveStatusRequest struct {
	Status string `json:"status" enum:"OPEN,CLOSED"`
}

type CreateUserRequest struct {
	Name         string   `json:"name"`
	Email        string   `json:"email"`
	Role         string   `json:"role" enum:"DIRECTOR,DY_DIRECTOR,MANAGER,INCHARGE,EMPLOYEE"`
	Capabilities []string `json:"capabilities,omitempty"`
	Workcenter   *string  `json:"workcenter,omitempty"`
}

type SetUserRoleRequest struct {
	Role string `json:"role" enum:"DIRECTOR,DY_DIRECTOR,MANAGER,INCHARGE,EMPLOYEE"`
}

type SetUserCapabilitiesRequest struct {
	Capabilities []string `json:"capabilities"`
}

type SetUserActiveRequest struct {
	Active bool `json:"active"`
}

type MarkNotificationRequest struct {
	Read bool `json:"read"`
}

// Response payloads. Domain structs already carry the wire tags; the list
// and table shapes below are the only extra envelopes the API needs.

type taskList struct {
	Items []domain.Task `json:"items"`
}

type receiveList struct {
	Items []domain.Receive `json:"items"`
}

type userList struct {
	Items []domain.User `json:"items"`
}

type notificationList struct {
	Items []domain.Notification `json:"items"`
}

type actionList struct {
	Items []domain.TaskAction `json:"items"`
}

type historyList struct {
	Items []domain.TaskHistory `json:"items"`
}

type attachmentList struct {
	Items []domain.Attachment `json:"items"`
}

type unreadCountResponse struct {
	Unread int `json:"unread"`
}

type statusResponse struct {
	Tasks map[string]int `json:"tasks"`
}

type transitionEdgeResponse struct {
	Event  string `json:"event"`
	From   string `json:"from"`
	To     string `json:"to"`
	Action string `json:"action"`
}

func transitionTableResponse() []transitionEdgeResponse {
	var out []transitionEdgeResponse
	for _, edge := range engine.TransitionTable() {
		out = append(out, transitionEdgeResponse{
			Event:  string(edge.Event),
			From:   string(edge.From),
			To:     string(edge.To),
			Action: string(edge.Action),
		})
	}
	return out
}

func stringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
