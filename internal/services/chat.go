package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Pranaya-sht/waste-management-system/internal/apperrors"
	"github.com/Pranaya-sht/waste-management-system/internal/auth"
	"github.com/Pranaya-sht/waste-management-system/internal/chat"
	"github.com/Pranaya-sht/waste-management-system/internal/models"
	"github.com/Pranaya-sht/waste-management-system/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxMessageLength is the longest chat body accepted, in characters
const MaxMessageLength = 2000

// ChatService authorizes room access and persists chat messages
type ChatService struct {
	store  store.Store
	logger *zap.SugaredLogger
	now    func() time.Time
}

// NewChatService creates a new chat service
func NewChatService(st store.Store, logger *zap.SugaredLogger) *ChatService {
	return &ChatService{store: st, logger: logger, now: time.Now}
}

// AuthorizeRoom checks that p may join the named room and returns its complaint
func (s *ChatService) AuthorizeRoom(ctx context.Context, p auth.Principal, room string) (*models.Complaint, error) {
	complaintID, err := chat.ParseRoom(room)
	if err != nil {
		return nil, err
	}
	return s.authorize(ctx, p, complaintID)
}

func (s *ChatService) authorize(ctx context.Context, p auth.Principal, complaintID uuid.UUID) (*models.Complaint, error) {
	c, err := s.store.GetComplaint(ctx, complaintID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperrors.NotFound("complaint %s not found", complaintID)
	}
	if err != nil {
		return nil, apperrors.Internal(err, "failed to load complaint")
	}
	rel := relationTo(p, c)
	if err := auth.Authorize(auth.ActionChat, p, rel); err != nil {
		return nil, err
	}
	if err := workerScope(p, c, rel); err != nil {
		return nil, err
	}
	return c, nil
}

// SaveMessage validates and persists a message sent by sender to room
func (s *ChatService) SaveMessage(ctx context.Context, room string, sender auth.Principal, in chat.Inbound) (*models.ChatMessage, error) {
	complaintID, err := chat.ParseRoom(room)
	if err != nil {
		return nil, err
	}

	body := strings.TrimSpace(in.Message)
	if body == "" {
		return nil, apperrors.Validation("message must not be empty")
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return nil, apperrors.Validation("message exceeds %d characters", MaxMessageLength)
	}

	if in.Receiver != nil {
		if _, err := s.store.GetUser(ctx, *in.Receiver); errors.Is(err, store.ErrNotFound) {
			return nil, apperrors.NotFound("receiver %s not found", *in.Receiver)
		} else if err != nil {
			return nil, apperrors.Internal(err, "failed to load receiver")
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	msg := &models.ChatMessage{
		ID:          id,
		ComplaintID: complaintID,
		SenderID:    sender.UserID,
		ReceiverID:  in.Receiver,
		Body:        body,
		CreatedAt:   s.now(),
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, apperrors.Internal(err, "failed to store message")
	}

	s.logger.Debugw("Chat message stored", "room", room, "message_id", msg.ID, "sender", sender.UserID)
	return msg, nil
}

// History returns a complaint's messages in persistence order
func (s *ChatService) History(ctx context.Context, p auth.Principal, complaintID uuid.UUID) ([]models.ChatMessage, error) {
	if _, err := s.authorize(ctx, p, complaintID); err != nil {
		return nil, err
	}
	msgs, err := s.store.ListMessages(ctx, complaintID)
	if err != nil {
		return nil, apperrors.Internal(err, "failed to load messages")
	}
	if msgs == nil {
		msgs = []models.ChatMessage{}
	}
	return msgs, nil
}
