package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/nasirmalek/FamilyCircle/internal/chatview"
	"github.com/nasirmalek/FamilyCircle/internal/models"
	"github.com/nasirmalek/FamilyCircle/pkg/logger"
)

// WebSocket event names
const (
	EventState = "state"
	EventError = "error"
	EventInput = "input"
	EventSend  = "send"
)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// clientEvent is read from the socket. Content is the draft for input and,
// when set, replaces the draft before a send.
type clientEvent struct {
	Event   string `json:"event"`
	Content string `json:"content"`
}

type serverEvent struct {
	Event string          `json:"event"`
	State *chatview.State `json:"state,omitempty"`
	Error string          `json:"error,omitempty"`
}

// socket serializes writes to one connection.
type socket struct {
	mu   sync.Mutex
	conn *websocket.Conn
	log  *logrus.Entry
}

func (s *socket) write(ev serverEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteJSON(ev)
}

// sendError pushes an error event. A failed write means the client is gone
// and the read loop will notice, so it is only logged.
func (s *socket) sendError(msg string) {
	if err := s.write(serverEvent{Event: EventError, Error: msg}); err != nil {
		s.log.WithError(err).Debug("failed to send error event")
	}
}

// handleChatSocket runs one chat detail view for the lifetime of the
// connection.
func (s *Server) handleChatSocket(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	userID := UserID(r.Context())
	log := logger.WithChat(s.logger, chatID, userID)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Error("failed to upgrade to WebSocket")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sock := &socket{conn: conn, log: log}
	view := chatview.New(s.svc, userID, s.logger,
		chatview.WithMetrics(s.metrics),
		chatview.WithPollerOptions(s.pollerOpts...),
	)
	view.OnChange(func(st chatview.State) {
		if err := sock.write(serverEvent{Event: EventState, State: &st}); err != nil {
			log.WithError(err).Debug("failed to push state")
			cancel()
		}
	})

	if err := view.Mount(ctx, chatID); err != nil {
		sock.sendError("failed to open chat")
		return
	}
	defer view.Unmount()
	log.Info("Chat socket connected")

	for {
		var ev clientEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Warn("Chat socket closed unexpectedly")
			}
			break
		}

		switch ev.Event {
		case EventInput:
			view.SetInput(ev.Content)
		case EventSend:
			if ev.Content != "" {
				view.SetInput(ev.Content)
			}
			if _, err := view.Send(ctx); err != nil {
				msg := chatview.SendFailedMessage
				if models.IsValidation(err) {
					msg = err.Error()
				}
				sock.sendError(msg)
			}
		default:
			sock.sendError("unknown event " + ev.Event)
		}
	}

	log.Info("Chat socket disconnected")
}
