package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"taskdesk/internal/domain"
	"taskdesk/internal/engine"
	"taskdesk/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"conflict"`
	Message string         `json:"message" example:"task is COMPLETED, expected IN_PROGRESS"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope every endpoint returns on failure.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Taskdesk API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope above.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("Taskdesk API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerStatus(group, cfg.Engine)
	registerTransitionTable(group)
	registerTasks(group, cfg.Engine)
	registerReceives(group, cfg.Engine)
	registerUsers(group, cfg.Engine)
	registerNotifications(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps the engine's typed errors onto the HTTP envelope. The
// authorization branch deliberately keeps the uninformative message.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var ve engine.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusBadRequest, "bad_request", ve.Error(), map[string]any{"field": ve.Field})
	}
	if errors.Is(err, engine.ErrUnauthenticated) {
		return newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
	}
	var ae engine.AuthorizationError
	if errors.As(err, &ae) {
		return newAPIError(http.StatusForbidden, "forbidden", ae.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", "not found", nil)
	}
	var ce engine.ConflictError
	if errors.As(err, &ce) {
		return newAPIError(http.StatusConflict, "conflict", ce.Error(), nil)
	}
	var ie engine.InfrastructureError
	if errors.As(err, &ie) {
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil)
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			spec, _ = json.Marshal(api.OpenAPI())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Taskdesk API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerTransitionTable(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "transition-table",
		Method:      http.MethodGet,
		Path:        "/transitions",
		Summary:     "Task transition table",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []transitionEdgeResponse `json:"body"`
	}, error) {
		return &struct {
			Body []transitionEdgeResponse `json:"body"`
		}{Body: transitionTableResponse()}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create task",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Title == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "title is required", nil)
		}
		t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
			Title:       input.Body.Title,
			Description: stringOrEmpty(input.Body.Description),
			Priority:    stringOrEmpty(input.Body.Priority),
			Complexity:  stringOrEmpty(input.Body.Complexity),
			Workcenter:  stringOrEmpty(input.Body.Workcenter),
			ReceiveID:   stringOrEmpty(input.Body.ReceiveID),
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List tasks",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Status     string `query:"status" enum:",ACTIVE,IN_PROGRESS,COMPLETED,CLOSED"`
		AssigneeID string `query:"assignee_id"`
		Workcenter string `query:"workcenter"`
		ReceiveID  string `query:"receive_id"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body taskList `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.ListTasks(ctx, repo.TaskFilters{
			Status:       input.Status,
			AssignedToID: input.AssigneeID,
			Workcenter:   input.Workcenter,
			ReceiveID:    input.ReceiveID,
			Limit:        input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body taskList `json:"body"`
		}{Body: taskList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		t, err := e.GetTask(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "edit-task",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}",
		Summary:     "Edit task fields",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string          `path:"id"`
		Body EditTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := e.EditTaskFields(ctx, input.ID, engine.TaskEditOptions{
			Title:       input.Body.Title,
			Description: input.Body.Description,
			Priority:    input.Body.Priority,
			Complexity:  input.Body.Complexity,
			Workcenter:  input.Body.Workcenter,
			ActorID:     actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-action",
		Method:      http.MethodPost,
		Path:        "/tasks/{id}/actions",
		Summary:     "Apply a lifecycle event",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body TaskActionRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Event == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "event is required", nil)
		}
		t, err := e.TransitionTask(ctx, input.ID, engine.Event(input.Body.Event), actorID, engine.TransitionPayload{
			AssigneeID: stringOrEmpty(input.Body.AssigneeID),
			Note:       stringOrEmpty(input.Body.Note),
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-log",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}/log",
		Summary:     "Task lifecycle log",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body actionList `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		if _, err := e.GetTask(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListTaskActions(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body actionList `json:"body"`
		}{Body: actionList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "task-history",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}/history",
		Summary:     "Task edit history",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body historyList `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		if _, err := e.GetTask(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		items, err := e.ListTaskHistory(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body historyList `json:"body"`
		}{Body: historyList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-task-attachment",
		Method:        http.MethodPost,
		Path:          "/tasks/{id}/attachments",
		Summary:       "Attach file metadata",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body AddAttachmentRequest `json:"body"`
	}) (*struct {
		Body domain.Attachment `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.FileName == "" || input.Body.FileRef == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "file_name and file_ref are required", nil)
		}
		a, err := e.AddAttachment(ctx, input.ID, input.Body.FileName, input.Body.FileRef, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Attachment `json:"body"`
		}{Body: a}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-task-attachments",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}/attachments",
		Summary:     "List attached files",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body attachmentList `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.ListAttachments(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body attachmentList `json:"body"`
		}{Body: attachmentList{Items: items}}, nil
	})
}

func registerStatus(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "status",
		Method:      http.MethodGet,
		Path:        "/status",
		Summary:     "Task counts by lifecycle state",
		Errors:      []int{http.StatusUnauthorized, http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body statusResponse `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		counts, err := e.TaskStatusCounts(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body statusResponse `json:"body"`
		}{Body: statusResponse{Tasks: counts}}, nil
	})
}

func registerReceives(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-receive",
		Method:        http.MethodPost,
		Path:          "/receives",
		Summary:       "Create receive",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateReceiveRequest `json:"body"`
	}) (*struct {
		Body domain.Receive `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if input.Body.Subject == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "subject is required", nil)
		}
		rc, err := e.CreateReceive(ctx, engine.ReceiveCreateOptions{
			Subject: input.Body.Subject,
			Source:  stringOrEmpty(input.Body.Source),
			ActorID: actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Receive `json:"body"`
		}{Body: rc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-receives",
		Method:      http.MethodGet,
		Path:        "/receives",
		Summary:     "List receives",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Status string `query:"status" enum:",OPEN,ASSIGNED,CLOSED"`
		Limit  int    `query:"limit" default:"50"`
	}) (*struct {
		Body receiveList `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		items, err := e.ListReceives(ctx, repo.ReceiveFilters{
			Status: input.Status,
			Limit:  input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body receiveList `json:"body"`
		}{Body: receiveList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-receive",
		Method:      http.MethodGet,
		Path:        "/receives/{id}",
		Summary:     "Get receive",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Receive `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		rc, err := e.GetReceive(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Receive `json:"body"`
		}{Body: rc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-receive-status",
		Method:      http.MethodPatch,
		Path:        "/receives/{id}/status",
		Summary:     "Open or close a receive",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                  `path:"id"`
		Body SetReceiveStatusRequest `json:"body"`
	}) (*struct {
		Body domain.Receive `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rc, err := e.SetReceiveStatus(ctx, input.ID, domain.ReceiveStatus(input.Body.Status), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Receive `json:"body"`
		}{Body: rc}, nil
	})
}

func registerUsers(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Create user",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusConflict,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateUserRequest `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.CreateUser(ctx, engine.UserCreateOptions{
			Name:         input.Body.Name,
			Email:        input.Body.Email,
			Role:         domain.Role(input.Body.Role),
			Capabilities: input.Body.Capabilities,
			Workcenter:   stringOrEmpty(input.Body.Workcenter),
			ActorID:      actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List visible users",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body userList `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListUsers(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body userList `json:"body"`
		}{Body: userList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/users/{id}",
		Summary:     "Get user",
		Errors:      []int{http.StatusUnauthorized, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		if _, authErr := actorIDFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		u, err := e.GetUser(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-user-role",
		Method:      http.MethodPatch,
		Path:        "/users/{id}/role",
		Summary:     "Change a user's role",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string             `path:"id"`
		Body SetUserRoleRequest `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.SetUserRole(ctx, input.ID, domain.Role(input.Body.Role), actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-user-capabilities",
		Method:      http.MethodPatch,
		Path:        "/users/{id}/capabilities",
		Summary:     "Replace a user's capability grants",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                     `path:"id"`
		Body SetUserCapabilitiesRequest `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.SetUserCapabilities(ctx, input.ID, input.Body.Capabilities, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-user-active",
		Method:      http.MethodPatch,
		Path:        "/users/{id}/active",
		Summary:     "Enable or disable an account",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string               `path:"id"`
		Body SetUserActiveRequest `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		u, err := e.SetUserActive(ctx, input.ID, input.Body.Active, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})
}

func registerNotifications(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications",
		Summary:     "List own notifications",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Unread bool `query:"unread"`
		Limit  int  `query:"limit"`
	}) (*struct {
		Body notificationList `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := e.ListNotifications(ctx, actorID, engine.NotificationFilter{
			UnreadOnly: input.Unread,
			Limit:      input.Limit,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body notificationList `json:"body"`
		}{Body: notificationList{Items: items}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "unread-notification-count",
		Method:      http.MethodGet,
		Path:        "/notifications/unread-count",
		Summary:     "Count own unread notifications",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body unreadCountResponse `json:"body"`
	}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := e.UnreadNotificationCount(ctx, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body unreadCountResponse `json:"body"`
		}{Body: unreadCountResponse{Unread: n}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-notification",
		Method:      http.MethodPatch,
		Path:        "/notifications/{id}",
		Summary:     "Mark a notification read or unread",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   string                  `path:"id"`
		Body MarkNotificationRequest `json:"body"`
	}) (*struct{}, error) {
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.MarkNotificationRead(ctx, input.ID, actorID, input.Body.Read); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}
