package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tomlord1122/todo-store/internal/database"
	"github.com/Tomlord1122/todo-store/internal/domain"
	"github.com/Tomlord1122/todo-store/internal/events"
	"github.com/Tomlord1122/todo-store/internal/metrics"
	"github.com/Tomlord1122/todo-store/internal/repository"
	"github.com/Tomlord1122/todo-store/internal/service"
)

type testEnv struct {
	srv     *httptest.Server
	hub     *events.Hub
	metrics *metrics.Metrics
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithRepo(t, repository.NewMemoryTodoRepository(), database.Memory{})
}

func newTestEnvWithRepo(t *testing.T, repo repository.TodoRepository, db database.Service) *testEnv {
	t.Helper()
	hub := events.NewHub(8)
	m := metrics.New()
	svc := service.NewTodoService(repo,
		service.WithPublisher(hub),
		service.WithMetrics(m),
		service.WithLogger(zerolog.Nop()),
	)
	s := New(8080, svc, db, hub, m)
	s.logger = zerolog.Nop()

	srv := httptest.NewServer(s.RegisterRoutes())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, hub: hub, metrics: m}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (e *testEnv) add(t *testing.T, text string) string {
	t.Helper()
	resp := e.do(t, http.MethodPost, "/todos", `{"text":"`+text+`"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeBody[service.AddTodoResponse](t, resp).ID
}

func TestRoot(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json; charset=utf-8", resp.Header.Get("Content-Type"))
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "up", body["status"])
}

type downDB struct{}

func (downDB) Health() map[string]string {
	return map[string]string{"status": "down", "error": "db down"}
}
func (downDB) Close() error { return nil }

func TestHealth_Down(t *testing.T) {
	env := newTestEnvWithRepo(t, repository.NewMemoryTodoRepository(), downDB{})

	resp := env.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestListTodos_EmptyArray(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/todos", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[json.RawMessage](t, resp)
	assert.JSONEq(t, `[]`, string(body))
}

func TestAddAndList(t *testing.T) {
	env := newTestEnv(t)

	first := env.add(t, "A")
	second := env.add(t, "B")

	resp := env.do(t, http.MethodGet, "/todos", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	todos := decodeBody[[]service.TodoResponse](t, resp)
	require.Len(t, todos, 2)
	assert.Equal(t, second, todos[0].ID)
	assert.Equal(t, first, todos[1].ID)
	assert.Equal(t, "B", todos[0].Text)
	assert.False(t, todos[0].IsCompleted)
}

func TestAddTodo_BadBodies(t *testing.T) {
	env := newTestEnv(t)

	cases := map[string]string{
		"malformed":     `{"text":`,
		"syntax":        `{"text" "x"}`,
		"wrong type":    `{"text": 5}`,
		"unknown field": `{"title":"x"}`,
		"two objects":   `{"text":"a"}{"text":"b"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/todos", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			errBody := decodeBody[errorResponse](t, resp)
			assert.Equal(t, CodeBadRequest, errBody.Code)
		})
	}

	t.Run("empty", func(t *testing.T) {
		resp := env.do(t, http.MethodPost, "/todos", "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		errBody := decodeBody[errorResponse](t, resp)
		assert.Equal(t, "Request body must not be empty", errBody.Error)
	})
}

func TestAddTodo_EmptyTextAccepted(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/todos", `{"text":""}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestGetTodo(t *testing.T) {
	env := newTestEnv(t)
	id := env.add(t, "A")

	resp := env.do(t, http.MethodGet, "/todos/"+id, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	todo := decodeBody[service.TodoResponse](t, resp)
	assert.Equal(t, id, todo.ID)

	missing, err := domain.NewID()
	require.NoError(t, err)
	resp = env.do(t, http.MethodGet, "/todos/"+missing, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInvalidID(t *testing.T) {
	env := newTestEnv(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/todos/not-an-id"},
		{http.MethodPost, "/todos/not-an-id/toggle"},
		{http.MethodDelete, "/todos/not-an-id"},
	} {
		resp := env.do(t, tc.method, tc.path, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, tc.path)
		assert.Equal(t, CodeInvalidID, decodeBody[errorResponse](t, resp).Code)
	}
}

func TestToggleTodo(t *testing.T) {
	env := newTestEnv(t)
	id := env.add(t, "A")

	resp := env.do(t, http.MethodPost, "/todos/"+id+"/toggle", "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	todo := decodeBody[service.TodoResponse](t, env.do(t, http.MethodGet, "/todos/"+id, ""))
	assert.True(t, todo.IsCompleted)

	missing, err := domain.NewID()
	require.NoError(t, err)
	resp = env.do(t, http.MethodPost, "/todos/"+missing+"/toggle", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, CodeNotFound, decodeBody[errorResponse](t, resp).Code)
}

func TestRenameTodo(t *testing.T) {
	env := newTestEnv(t)
	id := env.add(t, "old")

	resp := env.do(t, http.MethodPatch, "/todos/"+id, `{"text":"new"}`)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	todo := decodeBody[service.TodoResponse](t, env.do(t, http.MethodGet, "/todos/"+id, ""))
	assert.Equal(t, "new", todo.Text)

	missing, err := domain.NewID()
	require.NoError(t, err)
	resp = env.do(t, http.MethodPatch, "/todos/"+missing, `{"text":"x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, CodeRecordMissing, decodeBody[errorResponse](t, resp).Code)
}

func TestDeleteTodo(t *testing.T) {
	env := newTestEnv(t)
	id := env.add(t, "A")

	resp := env.do(t, http.MethodDelete, "/todos/"+id, "")
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	// Deleting again is a silent no-op.
	resp = env.do(t, http.MethodDelete, "/todos/"+id, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	todos := decodeBody[[]service.TodoResponse](t, env.do(t, http.MethodGet, "/todos", ""))
	assert.Empty(t, todos)
}

func TestClearTodos(t *testing.T) {
	env := newTestEnv(t)
	env.add(t, "A")
	env.add(t, "B")

	resp := env.do(t, http.MethodDelete, "/todos", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2, decodeBody[service.ClearAllResponse](t, resp).DeletedCount)

	todos := decodeBody[[]service.TodoResponse](t, env.do(t, http.MethodGet, "/todos", ""))
	assert.Empty(t, todos)
}

type brokenRepo struct {
	*repository.MemoryTodoRepository
}

func (brokenRepo) List(context.Context) ([]domain.Todo, error) {
	return nil, errors.New("connection refused")
}

func TestStoreFailureIs500(t *testing.T) {
	env := newTestEnvWithRepo(t, brokenRepo{repository.NewMemoryTodoRepository()}, database.Memory{})

	resp := env.do(t, http.MethodGet, "/todos", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	errBody := decodeBody[errorResponse](t, resp)
	assert.Equal(t, CodeInternal, errBody.Code)
	assert.NotContains(t, errBody.Error, "connection refused")
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.add(t, "A")

	resp := env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `todo_http_requests_total{method="POST"`)
	assert.Contains(t, string(body), `todo_store_operations_total{operation="add",result="ok"} 1`)
}

func TestWatch_SnapshotOnConnectAndChange(t *testing.T) {
	env := newTestEnv(t)
	env.add(t, "existing")

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/todos/watch"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg WatchMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, WatchSnapshot, msg.Type)
	assert.Nil(t, msg.Change)
	require.Len(t, msg.Todos, 1)
	assert.Equal(t, "existing", msg.Todos[0].Text)

	id := env.add(t, "fresh")

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, WatchSnapshot, msg.Type)
	require.NotNil(t, msg.Change)
	assert.Equal(t, events.KindAdded, msg.Change.Kind)
	assert.Equal(t, id, msg.Change.TodoID)
	require.Len(t, msg.Todos, 2)
	assert.Equal(t, "fresh", msg.Todos[0].Text)

	assert.Eventually(t, func() bool { return env.hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)
}

func TestWatch_DisconnectUnsubscribes(t *testing.T) {
	env := newTestEnv(t)

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/todos/watch"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	var msg WatchMessage
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, 1, env.hub.Subscribers())

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = conn.Close()

	assert.Eventually(t, func() bool { return env.hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatch_HubCloseEndsStream(t *testing.T) {
	env := newTestEnv(t)

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/todos/watch"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var msg WatchMessage
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))

	env.hub.Close()

	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)
}
