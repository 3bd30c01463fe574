package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tomlord1122/todo-store/internal/events"
	"github.com/Tomlord1122/todo-store/internal/service"
)

const (
	watchWriteWait  = 10 * time.Second
	watchPongWait   = 60 * time.Second
	watchPingPeriod = (watchPongWait * 9) / 10
	watchReadLimit  = 512
)

// Watch message types.
const (
	WatchSnapshot = "snapshot"
	WatchError    = "error"
)

// WatchMessage is sent to list watchers: once on connect and again after
// every committed change, always carrying the full list.
type WatchMessage struct {
	Type   string                 `json:"type"`
	Change *events.Change         `json:"change,omitempty"`
	Todos  []service.TodoResponse `json:"todos"`
	Error  string                 `json:"error,omitempty"`
}

var watchUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) watchTodosHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := watchUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	changes, cancel := s.hub.Subscribe()
	defer cancel()

	if s.metrics != nil {
		s.metrics.WatchersActive.Inc()
		defer s.metrics.WatchersActive.Dec()
	}

	// The read side only exists to process pongs and notice the peer leaving.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(watchReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(watchPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(watchPongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
					s.logger.Debug().Err(err).Msg("Watcher read error")
				}
				return
			}
		}
	}()

	if !s.sendSnapshot(conn, r, nil) {
		return
	}

	ticker := time.NewTicker(watchPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case change, ok := <-changes:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(watchWriteWait))
				return
			}
			if !s.sendSnapshot(conn, r, &change) {
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) sendSnapshot(conn *websocket.Conn, r *http.Request, change *events.Change) bool {
	msg := WatchMessage{Type: WatchSnapshot, Change: change}
	todos, err := s.todoService.ListTodos(r.Context())
	if err != nil {
		msg = WatchMessage{Type: WatchError, Change: change, Todos: []service.TodoResponse{}, Error: "Failed to retrieve todos"}
	} else {
		msg.Todos = todos
	}

	_ = conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Debug().Err(err).Msg("Watcher write failed")
		return false
	}
	return true
}
