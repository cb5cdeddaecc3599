// Package chat implements the per-complaint chat rooms: a hub of websocket
// subscribers grouped by room, persistence-before-broadcast sends and an
// optional Redis fan-out for running several server instances.
package chat

import (
	"strings"
	"time"

	"github.com/Pranaya-sht/waste-management-system/internal/apperrors"
	"github.com/Pranaya-sht/waste-management-system/internal/models"
	"github.com/google/uuid"
)

const roomPrefix = "complaint_"

// RoomID returns the chat room name for a complaint
func RoomID(complaintID uuid.UUID) string {
	return roomPrefix + complaintID.String()
}

// ParseRoom extracts the complaint id from a room name
func ParseRoom(room string) (uuid.UUID, error) {
	raw, ok := strings.CutPrefix(room, roomPrefix)
	if !ok {
		return uuid.Nil, apperrors.Validation("room %q is not a complaint room", room)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.Validation("room %q has an invalid complaint id", room)
	}
	return id, nil
}

// Inbound is a frame sent by a client
type Inbound struct {
	Message  string     `json:"message"`
	Receiver *uuid.UUID `json:"receiver,omitempty"`
}

// Outbound is a message frame broadcast to every subscriber of a room
type Outbound struct {
	ID        uuid.UUID  `json:"id"`
	Room      string     `json:"room"`
	Sender    uuid.UUID  `json:"sender"`
	Receiver  *uuid.UUID `json:"receiver"`
	Message   string     `json:"message"`
	User      string     `json:"user"` // sender's username, kept for older clients
	CreatedAt time.Time  `json:"created_at"`
}

// NewOutbound builds the broadcast frame for a persisted message
func NewOutbound(msg *models.ChatMessage, senderName string) Outbound {
	return Outbound{
		ID:        msg.ID,
		Room:      RoomID(msg.ComplaintID),
		Sender:    msg.SenderID,
		Receiver:  msg.ReceiverID,
		Message:   msg.Body,
		User:      senderName,
		CreatedAt: msg.CreatedAt,
	}
}

// ErrorFrame is sent only to the client whose frame failed
type ErrorFrame struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody carries the error kind and message
type ErrorBody struct {
	Kind    apperrors.Kind `json:"kind"`
	Message string         `json:"message"`
}

// NewErrorFrame converts err into a client-facing error frame
func NewErrorFrame(err error) ErrorFrame {
	e := apperrors.From(err)
	return ErrorFrame{Error: ErrorBody{Kind: e.Kind, Message: e.Message}}
}
