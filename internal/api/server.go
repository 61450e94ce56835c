package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nasirmalek/FamilyCircle/internal/chatview"
	"github.com/nasirmalek/FamilyCircle/internal/metrics"
	"github.com/nasirmalek/FamilyCircle/internal/models"
	"github.com/nasirmalek/FamilyCircle/internal/poller"
	"github.com/nasirmalek/FamilyCircle/internal/service"
	"github.com/nasirmalek/FamilyCircle/internal/viewmodel"
)

// Server provides the HTTP API and the WebSocket chat view.
type Server struct {
	svc        *service.Service
	secret     []byte
	logger     *logrus.Logger
	metrics    *metrics.Metrics
	clock      clockwork.Clock
	pollerOpts []poller.Option
	router     chi.Router
}

// Option configures a Server
type Option func(*Server)

// WithMetrics records chat view metrics for WebSocket sessions.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithClock sets the clock used for relative timestamps and polling.
func WithClock(c clockwork.Clock) Option {
	return func(s *Server) {
		s.clock = c
		s.pollerOpts = append(s.pollerOpts, poller.WithClock(c))
	}
}

// NewServer creates a Server, registers all routes, and returns it. Tokens
// are verified with secret.
func NewServer(svc *service.Service, secret []byte, logger *logrus.Logger, opts ...Option) *Server {
	s := &Server{
		svc:    svc,
		secret: secret,
		logger: logger,
		clock:  clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Handler returns the http.Handler that can be passed to http.Server.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "familycircle.http")
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Route("/families/{familyID}", func(r chi.Router) {
			r.Use(s.requireFamilyMember)
			r.Get("/chats", s.handleListChats)
			r.Post("/chats", s.handleCreateChat)
			r.Get("/members", s.handleListMembers)
		})

		r.Route("/chats/{chatID}", func(r chi.Router) {
			r.Use(s.requireParticipant)
			r.Get("/", s.handleGetChat)
			r.Get("/messages", s.handleListMessages)
			r.Post("/messages", s.handleSendMessage)
			r.Get("/ws", s.handleChatSocket)
		})
	})

	s.router = r
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := s.clock.Now()
		next.ServeHTTP(ww, r)
		s.logger.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   s.clock.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("handled request")
	})
}

func (s *Server) requireFamilyMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		familyID := chi.URLParam(r, "familyID")
		ok, err := s.svc.IsFamilyMember(r.Context(), familyID, UserID(r.Context()))
		if err != nil {
			s.logger.WithError(err).WithField("family_id", familyID).Error("failed to check family membership")
			s.respondError(w, http.StatusInternalServerError, "failed to check family membership")
			return
		}
		if !ok {
			s.respondError(w, http.StatusForbidden, "not a member of this family")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireParticipant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		chatID := chi.URLParam(r, "chatID")
		ok, err := s.svc.IsChatParticipant(r.Context(), chatID, UserID(r.Context()))
		if err != nil {
			s.logger.WithError(err).WithField("chat_id", chatID).Error("failed to check chat participation")
			s.respondError(w, http.StatusInternalServerError, "failed to check chat participation")
			return
		}
		if !ok {
			s.respondError(w, http.StatusForbidden, "not a participant of this chat")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			s.logger.WithError(err).Error("failed to encode JSON response")
		}
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

// respondFailure maps a service error to a status. Validation messages are
// shown as is; other write failures get the generic failedMsg.
func (s *Server) respondFailure(w http.ResponseWriter, err error, failedMsg string) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		s.respondError(w, http.StatusBadRequest, ve.Message)
	case models.IsNotFound(err):
		s.respondError(w, http.StatusNotFound, "not found")
	default:
		s.respondError(w, http.StatusInternalServerError, failedMsg)
	}
}

// decodeJSON reads the request body into dst and returns an error message on
// failure.  The caller should return immediately when ok == false.
func (s *Server) decodeJSON(r *http.Request, dst any) (ok bool, errMsg string) {
	if r.Body == nil {
		return false, "request body is empty"
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return false, fmt.Sprintf("invalid JSON: %v", err)
	}
	return true, ""
}

// viewerName is the display name of the requester, used to leave them out
// of direct chat names.
func (s *Server) viewerName(r *http.Request) string {
	profile, err := s.svc.Profiles.GetByID(r.Context(), UserID(r.Context()))
	if err != nil {
		s.logger.WithError(err).Debug("viewer profile not found")
		return ""
	}
	return profile.DisplayName()
}

// ---------------------------------------------------------------------------
// Families
// ---------------------------------------------------------------------------

type createChatRequest struct {
	Type      models.ChatType `json:"type"`
	Name      string          `json:"name"`
	MemberIDs []string        `json:"member_ids"`
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	chats, err := s.svc.ListChats(r.Context(), chi.URLParam(r, "familyID"), UserID(r.Context()))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load chats")
		return
	}
	s.respondJSON(w, http.StatusOK, viewmodel.BuildChatList(chats, s.viewerName(r), s.clock.Now()))
}

func (s *Server) handleCreateChat(w http.ResponseWriter, r *http.Request) {
	var req createChatRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	chat, err := s.svc.CreateChat(r.Context(), service.CreateChatInput{
		Kind:      req.Type,
		Name:      req.Name,
		MemberIDs: req.MemberIDs,
		FamilyID:  chi.URLParam(r, "familyID"),
		CreatorID: UserID(r.Context()),
	})
	if err != nil {
		s.respondFailure(w, err, service.CreateChatFailedMsg)
		return
	}

	s.respondJSON(w, http.StatusCreated, chat)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.svc.ListMembers(r.Context(), chi.URLParam(r, "familyID"))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load members")
		return
	}
	s.respondJSON(w, http.StatusOK, members)
}

// ---------------------------------------------------------------------------
// Chats
// ---------------------------------------------------------------------------

type chatResponse struct {
	Chat   *models.Chat     `json:"chat"`
	Header viewmodel.Header `json:"header"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	chat, err := s.svc.GetChat(r.Context(), chi.URLParam(r, "chatID"))
	if err != nil {
		s.respondFailure(w, err, "failed to load chat")
		return
	}
	s.respondJSON(w, http.StatusOK, chatResponse{Chat: chat, Header: viewmodel.BuildHeader(chat)})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := s.svc.ListMessages(r.Context(), chi.URLParam(r, "chatID"))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	s.respondJSON(w, http.StatusOK, viewmodel.BuildBubbles(messages, UserID(r.Context())))
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if ok, msg := s.decodeJSON(r, &req); !ok {
		s.respondError(w, http.StatusBadRequest, msg)
		return
	}

	msg, err := s.svc.SendMessage(r.Context(), chi.URLParam(r, "chatID"), req.Content, UserID(r.Context()))
	if err != nil {
		s.respondFailure(w, err, chatview.SendFailedMessage)
		return
	}

	s.respondJSON(w, http.StatusCreated, msg)
}
