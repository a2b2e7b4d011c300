package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"

	"taskdesk/internal/app"
	"taskdesk/internal/config"
	"taskdesk/internal/db"
	"taskdesk/internal/domain"
	"taskdesk/internal/engine"
	"taskdesk/internal/migrate"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if _, err := app.EnsureAdmin(context.Background(), conn, "", ""); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	e := engine.New(conn, config.Default())
	handler, err := New(Config{
		Engine:   e,
		BasePath: "/v0",
		Auth:     AuthConfig{AllowLegacyActorHeader: true},
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func asActor(id string) map[string]string {
	return map[string]string{"X-Actor-Id": id}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func createUser(t *testing.T, srv *testServer, name, role string, caps ...string) domain.User {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/users", map[string]any{
		"name":         name,
		"email":        name + "@example.org",
		"role":         role,
		"capabilities": caps,
	}, asActor(app.DefaultAdminID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create user status %d: %s", res.StatusCode, string(data))
	}
	var u domain.User
	if err := json.Unmarshal(data, &u); err != nil {
		t.Fatalf("unmarshal user: %v", err)
	}
	return u
}

func TestHealthNeedsNoAuth(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health status %d: %s", res.StatusCode, string(data))
	}
}

func TestUnauthenticatedRequestRejected(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tasks", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error.Code != "unauthorized" {
		t.Fatalf("error code = %q", envelope.Error.Code)
	}
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	manager := createUser(t, srv, "manager", "MANAGER")
	worker := createUser(t, srv, "worker", "EMPLOYEE")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks", map[string]any{
		"title": "Ship the report",
	}, asActor(manager.ID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create task status %d: %s", res.StatusCode, string(data))
	}
	var task domain.Task
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if task.RecordNumber != "TSK-0001" || task.Status != domain.TaskActive {
		t.Fatalf("created task: %+v", task)
	}

	// submitting an ACTIVE task is a state conflict
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+task.ID+"/actions", map[string]any{
		"event": "submit",
	}, asActor(worker.ID))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("out-of-order submit status %d: %s", res.StatusCode, string(data))
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+task.ID+"/actions", map[string]any{
		"event":       "assign",
		"assignee_id": worker.ID,
	}, asActor(manager.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("assign status %d: %s", res.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if task.Status != domain.TaskInProgress {
		t.Fatalf("status after assign = %s", task.Status)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+task.ID+"/actions", map[string]any{
		"event": "submit",
	}, asActor(worker.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("submit status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v0/tasks/"+task.ID+"/actions", map[string]any{
		"event": "acknowledge",
	}, asActor(app.DefaultAdminID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("acknowledge status %d: %s", res.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, &task); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if task.Status != domain.TaskClosed {
		t.Fatalf("status after acknowledge = %s", task.Status)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks/"+task.ID+"/log", nil, asActor(manager.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("log status %d: %s", res.StatusCode, string(data))
	}
	var log struct {
		Items []domain.TaskAction `json:"items"`
	}
	if err := json.Unmarshal(data, &log); err != nil {
		t.Fatalf("unmarshal log: %v", err)
	}
	if len(log.Items) != 5 {
		t.Fatalf("expected 5 log entries, got %d", len(log.Items))
	}

	// assignee got notified about the assignment
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/notifications/unread-count", nil, asActor(worker.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("unread count status %d: %s", res.StatusCode, string(data))
	}
	var count struct {
		Unread int `json:"unread"`
	}
	if err := json.Unmarshal(data, &count); err != nil {
		t.Fatalf("unmarshal count: %v", err)
	}
	if count.Unread == 0 {
		t.Fatalf("expected unread notifications for assignee")
	}
}

func TestForbiddenMapsTo403(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	worker := createUser(t, srv, "worker", "EMPLOYEE")
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/users", map[string]any{
		"name":  "peer",
		"email": "peer@example.org",
		"role":  "EMPLOYEE",
	}, asActor(worker.ID))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if envelope.Error.Code != "forbidden" {
		t.Fatalf("error code = %q", envelope.Error.Code)
	}
}

func TestUnknownTaskMapsTo404(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tasks/no-such-id", nil, asActor(app.DefaultAdminID))
	if res.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
}

func TestReceiveEndpoints(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	client := srv.Client()
	clerk := createUser(t, srv, "clerk", "INCHARGE", "manage_receives", "create_tasks")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v0/receives", map[string]any{
		"subject": "Budget circular",
		"source":  "head office",
	}, asActor(clerk.ID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create receive status %d: %s", res.StatusCode, string(data))
	}
	var rc domain.Receive
	if err := json.Unmarshal(data, &rc); err != nil {
		t.Fatalf("unmarshal receive: %v", err)
	}
	if rc.ReferenceNumber != "RCV-0001" || rc.Status != domain.ReceiveOpen {
		t.Fatalf("created receive: %+v", rc)
	}

	res, data = doJSON(t, client, http.MethodPatch, srv.URL+"/v0/receives/"+rc.ID+"/status", map[string]any{
		"status": "CLOSED",
	}, asActor(clerk.ID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("close receive status %d: %s", res.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, &rc); err != nil {
		t.Fatalf("unmarshal receive: %v", err)
	}
	if rc.Status != domain.ReceiveClosed || rc.ClosedAt == nil {
		t.Fatalf("closed receive: %+v", rc)
	}
}

func TestTransitionTableEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/transitions", nil, asActor(app.DefaultAdminID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var edges []transitionEdgeResponse
	if err := json.Unmarshal(data, &edges); err != nil {
		t.Fatalf("unmarshal edges: %v", err)
	}
	if len(edges) != 6 {
		t.Fatalf("expected 6 edges, got %d", len(edges))
	}
}

func TestStatusEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t)
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/tasks",
		map[string]string{"title": "Count me"}, asActor(app.DefaultAdminID))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, string(data))
	}
	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/status", nil, asActor(app.DefaultAdminID))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status %d: %s", res.StatusCode, string(data))
	}
	var body statusResponse
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Tasks["ACTIVE"] != 1 {
		t.Fatalf("active = %d, want 1", body.Tasks["ACTIVE"])
	}
	if _, ok := body.Tasks["CLOSED"]; !ok {
		t.Fatalf("expected CLOSED bucket in %v", body.Tasks)
	}
}
