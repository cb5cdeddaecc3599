package handlers

import (
	"context"
	"net/http"

	"github.com/Pranaya-sht/waste-management-system/internal/chat"
	"github.com/Pranaya-sht/waste-management-system/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ChatHandler serves the chat websocket and message history
type ChatHandler struct {
	chatSvc    *services.ChatService
	hub        *chat.Hub
	upgrader   websocket.Upgrader
	sendBuffer int
	logger     *zap.SugaredLogger
}

// NewChatHandler creates a new chat handler. Origins are checked against
// allowedOrigins; an empty list accepts any origin.
func NewChatHandler(cs *services.ChatService, hub *chat.Hub, allowedOrigins []string, sendBuffer int, logger *zap.SugaredLogger) *ChatHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}

	return &ChatHandler{
		chatSvc:    cs,
		hub:        hub,
		sendBuffer: sendBuffer,
		logger:     logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || len(allowed) == 0 || allowed[origin]
			},
		},
	}
}

// Connect handles GET /api/v1/ws/chat/{room}
func (h *ChatHandler) Connect(w http.ResponseWriter, r *http.Request) {
	room := chi.URLParam(r, "room")
	p := principal(r)

	// Authorize before the upgrade so failures are plain HTTP errors.
	if _, err := h.chatSvc.AuthorizeRoom(r.Context(), p, room); err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("Websocket upgrade failed", "room", room, "error", err)
		return
	}

	h.logger.Infow("Chat client connected", "room", room, "user_id", p.UserID)
	client := chat.NewClient(h.hub, conn, room, p, h.sendBuffer, h.logger)
	client.Run(context.WithoutCancel(r.Context()))
	h.logger.Infow("Chat client disconnected", "room", room, "user_id", p.UserID)
}

// History handles GET /api/v1/complaints/{id}/messages
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id")
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}

	msgs, err := h.chatSvc.History(r.Context(), principal(r), id)
	if err != nil {
		respondAppError(w, h.logger, r, err)
		return
	}
	respondJSON(w, http.StatusOK, msgs)
}
