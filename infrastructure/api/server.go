// Package api exposes the chat over a websocket and a small REST surface.
package api

import (
	"chat-live/auth"
	"chat-live/domain"
	"chat-live/domain/chat"
	"chat-live/errors"
	"chat-live/observability"
	"chat-live/services"
	"context"
	"encoding/json"
	stdErrors "errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/samber/lo"
)

type Server struct {
	log                  *slog.Logger
	service              services.IChatService
	tokens               *auth.TokenManager
	monitoring           *observability.MonitoringManager
	upgrader             websocket.Upgrader
	connectionBufferSize int
	deliveryTimeout      time.Duration
	maxFrameSize         int64
	ctx                  context.Context
}

// NewServer builds the HTTP surface. Connections live until ctx is canceled or the client leaves.
// An empty allowedOrigins accepts same-host origins only.
func NewServer(ctx context.Context, log *slog.Logger, service services.IChatService, tokens *auth.TokenManager,
	monitoring *observability.MonitoringManager, allowedOrigins []string,
	connectionBufferSize int, deliveryTimeout time.Duration, maxFrameSize int64) *Server {
	s := &Server{
		log:                  log,
		service:              service,
		tokens:               tokens,
		monitoring:           monitoring,
		connectionBufferSize: connectionBufferSize,
		deliveryTimeout:      deliveryTimeout,
		maxFrameSize:         maxFrameSize,
		ctx:                  ctx,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(allowedOrigins),
	}
	return s
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(auth.Middleware(s.tokens))
	router.HandleFunc("/health", s.health).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.serveWebsocket).Methods(http.MethodGet)
	router.HandleFunc("/chats", s.listChats).Methods(http.MethodGet)
	router.HandleFunc("/chats", s.createChat).Methods(http.MethodPost)
	router.HandleFunc("/chats/{roomId}/participants", s.addParticipant).Methods(http.MethodPost)
	router.HandleFunc("/rooms/{roomId}/messages", s.getMessages).Methods(http.MethodGet)
	router.HandleFunc("/rooms/{roomId}/search", s.search).Methods(http.MethodGet)
	return router
}

func (s *Server) serveWebsocket(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied
		s.log.Debug("Websocket upgrade failed", "error", err)
		return
	}

	c := newClient(conn, userID, s.service, s.log, s.connectionBufferSize, s.deliveryTimeout, s.maxFrameSize)
	s.monitoring.ConnectionOpened()
	c.log.Debug("Client connected")

	go c.writePump()
	go c.closeOnShutdown(s.ctx)
	go func() {
		defer s.monitoring.ConnectionClosed()
		c.readPump(s.ctx)
	}()
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.service.Stats())
}

type chatResponse struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Participants []string  `json:"participants"`
	CreatedAt    time.Time `json:"createdAt"`
}

func toChatResponse(c domain.ChatRoom) chatResponse {
	return chatResponse{ID: c.ID.String(), Name: c.Name, Participants: c.Participants, CreatedAt: c.CreatedAt}
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	chats, err := s.service.ListChats(r.Context(), userID)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(chats, func(item domain.ChatRoom, _ int) chatResponse {
		return toChatResponse(item)
	}))
}

func (s *Server) createChat(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req services.CreateChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		s.fail(w, errors.ErrInvalidPayload)
		return
	}
	created, err := s.service.CreateChat(r.Context(), userID, req)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChatResponse(created))
}

func (s *Server) addParticipant(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	var req services.AddParticipantRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<10)).Decode(&req); err != nil {
		s.fail(w, errors.ErrInvalidPayload)
		return
	}
	updated, err := s.service.AddParticipant(r.Context(), userID, domain.RoomID(mux.Vars(r)["roomId"]), req)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toChatResponse(updated))
}

// messagesResponse pages the history newest first; cursor fetches the next, older page.
type messagesResponse struct {
	Messages []MessageFrame `json:"messages"`
	Cursor   *string        `json:"cursor,omitempty"`
}

func (s *Server) getMessages(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	cmd := chat.GetMessageCommand{Room: domain.RoomID(mux.Vars(r)["roomId"])}
	if cursor := r.URL.Query().Get("cursor"); cursor != "" {
		cmd.Cursor = &cursor
	}
	messages, cursor, err := s.service.GetMessages(r.Context(), userID, cmd)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, messagesResponse{
		Messages: lo.Map(messages, func(item domain.Message, _ int) MessageFrame { return ToMessageFrame(item) }),
		Cursor:   cursor,
	})
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	roomID := domain.RoomID(mux.Vars(r)["roomId"])
	hits, err := s.service.Search(r.Context(), userID, roomID, r.URL.Query().Get("q"))
	if err != nil {
		s.fail(w, err)
		return
	}
	if hits == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	writeJSON(w, http.StatusOK, hits)
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case stdErrors.Is(err, errors.ErrInvalidPayload):
		status = http.StatusBadRequest
	case stdErrors.Is(err, errors.ErrUnauthorizedRoom):
		status = http.StatusForbidden
	case stdErrors.Is(err, errors.ErrChatNotFound):
		status = http.StatusNotFound
	case stdErrors.Is(err, errors.ErrStopped):
		status = http.StatusServiceUnavailable
	}
	message := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", "error", err)
		message = "internal error"
	}
	writeJSON(w, status, map[string]string{"code": errors.Code(err), "error": message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// checkOrigin accepts listed origins, or same-host requests when the list is empty.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if len(allowed) > 0 {
			return lo.Contains(allowed, origin)
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}
