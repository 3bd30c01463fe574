// Package client talks to the todo HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tomlord1122/todo-store/internal/domain"
	"github.com/Tomlord1122/todo-store/internal/server"
	"github.com/Tomlord1122/todo-store/internal/service"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("todo api: status %d", e.Status)
	}
	return fmt.Sprintf("todo api: %s (status %d)", e.Message, e.Status)
}

// Is lets errors.Is match the domain errors behind the error code.
func (e *APIError) Is(target error) bool {
	switch e.Code {
	case server.CodeNotFound:
		return target == domain.ErrTodoNotFound
	case server.CodeRecordMissing:
		return target == domain.ErrRecordMissing
	case server.CodeInvalidID:
		return target == domain.ErrInvalidID
	}
	return false
}

type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	dialer     *websocket.Dialer
}

type Option func(*Client)

// WithHTTPClient replaces the default client, which has a 10s timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q must be http or https", baseURL)
	}
	c := &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		dialer:     websocket.DefaultDialer,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the server address the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) List(ctx context.Context) ([]service.TodoResponse, error) {
	var todos []service.TodoResponse
	if err := c.do(ctx, http.MethodGet, "/todos", nil, &todos); err != nil {
		return nil, err
	}
	return todos, nil
}

func (c *Client) Get(ctx context.Context, id string) (*service.TodoResponse, error) {
	var todo service.TodoResponse
	if err := c.do(ctx, http.MethodGet, "/todos/"+url.PathEscape(id), nil, &todo); err != nil {
		return nil, err
	}
	return &todo, nil
}

// Add creates a todo and returns its id.
func (c *Client) Add(ctx context.Context, text string) (string, error) {
	var resp service.AddTodoResponse
	if err := c.do(ctx, http.MethodPost, "/todos", service.AddTodoRequest{Text: text}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

func (c *Client) Toggle(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPost, "/todos/"+url.PathEscape(id)+"/toggle", nil, nil)
}

func (c *Client) Rename(ctx context.Context, id, text string) error {
	return c.do(ctx, http.MethodPatch, "/todos/"+url.PathEscape(id), service.RenameTodoRequest{Text: text}, nil)
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/todos/"+url.PathEscape(id), nil, nil)
}

// ClearAll deletes every todo and returns how many were listed for deletion.
func (c *Client) ClearAll(ctx context.Context) (int, error) {
	var resp service.ClearAllResponse
	if err := c.do(ctx, http.MethodDelete, "/todos", nil, &resp); err != nil {
		return 0, err
	}
	return resp.DeletedCount, nil
}

// Health returns the server's health map. A 503 still decodes the map and
// also returns an *APIError.
func (c *Client) Health(ctx context.Context) (map[string]string, error) {
	health := map[string]string{}
	err := c.do(ctx, http.MethodGet, "/health", nil, &health)
	return health, err
}

// Watch streams list snapshots until ctx is cancelled or the connection
// drops; the channel is closed then.
func (c *Client) Watch(ctx context.Context) (<-chan server.WatchMessage, error) {
	wsURL := *c.baseURL
	if wsURL.Scheme == "https" {
		wsURL.Scheme = "wss"
	} else {
		wsURL.Scheme = "ws"
	}
	wsURL.Path = strings.TrimRight(wsURL.Path, "/") + "/todos/watch"

	conn, resp, err := c.dialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("watch todos: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("watch todos: %w", err)
	}

	out := make(chan server.WatchMessage, 1)
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			_ = conn.Close()
		case <-stop:
		}
	}()
	go func() {
		defer close(out)
		defer close(stop)
		defer conn.Close()
		for {
			var msg server.WatchMessage
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var apiErr error
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr = decodeAPIError(resp.StatusCode, data)
		// Health reports its map even when down.
		if resp.StatusCode != http.StatusServiceUnavailable {
			return apiErr
		}
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return errors.Join(apiErr, fmt.Errorf("decode response: %w", err))
		}
	}
	return apiErr
}

func decodeAPIError(status int, data []byte) *APIError {
	apiErr := &APIError{Status: status}
	var body struct {
		Error string `json:"error"`
		Code  string `json:"code"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
	}
	return apiErr
}
