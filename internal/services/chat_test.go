package services

import (
	"context"
	"strings"
	"testing"

	"github.com/Pranaya-sht/waste-management-system/internal/apperrors"
	"github.com/Pranaya-sht/waste-management-system/internal/chat"
	"github.com/Pranaya-sht/waste-management-system/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat_SaveMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	citizen := f.user(t, models.RoleCitizen, false)
	worker := f.user(t, models.RoleWorker, true)
	c := f.submit(t, citizen)
	room := chat.RoomID(c.ID)

	msg, err := f.chat.SaveMessage(ctx, room, citizen, chat.Inbound{Message: "  bins are behind the gate ", Receiver: &worker.UserID})
	require.NoError(t, err)
	assert.Equal(t, "bins are behind the gate", msg.Body)
	assert.Equal(t, citizen.UserID, msg.SenderID)
	assert.Equal(t, c.ID, msg.ComplaintID)
	assert.Equal(t, uuid.Version(7), msg.ID.Version())

	_, err = f.chat.SaveMessage(ctx, room, citizen, chat.Inbound{Message: "   "})
	assertKind(t, apperrors.KindValidation, err)

	_, err = f.chat.SaveMessage(ctx, room, citizen, chat.Inbound{Message: strings.Repeat("a", MaxMessageLength+1)})
	assertKind(t, apperrors.KindValidation, err)

	ghost := uuid.New()
	_, err = f.chat.SaveMessage(ctx, room, citizen, chat.Inbound{Message: "hi", Receiver: &ghost})
	assertKind(t, apperrors.KindNotFound, err)

	_, err = f.chat.SaveMessage(ctx, "lobby", citizen, chat.Inbound{Message: "hi"})
	assertKind(t, apperrors.KindValidation, err)

	history, err := f.chat.History(ctx, worker, c.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, msg.ID, history[0].ID)
}

func TestChat_AuthorizeRoom(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	citizen := f.user(t, models.RoleCitizen, false)
	c := f.submit(t, citizen)

	_, err := f.chat.AuthorizeRoom(ctx, citizen, chat.RoomID(c.ID))
	require.NoError(t, err)

	_, err = f.chat.AuthorizeRoom(ctx, f.user(t, models.RoleCitizen, false), chat.RoomID(c.ID))
	assertKind(t, apperrors.KindForbidden, err)

	_, err = f.chat.AuthorizeRoom(ctx, citizen, chat.RoomID(uuid.New()))
	assertKind(t, apperrors.KindNotFound, err)

	_, err = f.chat.History(ctx, f.user(t, models.RoleCitizen, false), c.ID)
	assertKind(t, apperrors.KindForbidden, err)
}

func TestChat_OtherWorkerLosesAccessOnAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	citizen := f.user(t, models.RoleCitizen, false)
	assignee := f.user(t, models.RoleWorker, true)
	other := f.user(t, models.RoleWorker, true)
	c := f.submit(t, citizen)
	room := chat.RoomID(c.ID)

	// Any approved worker may look at a Pending complaint's room.
	_, err := f.chat.AuthorizeRoom(ctx, other, room)
	require.NoError(t, err)

	_, err = f.complaints.Accept(ctx, assignee, c.ID, nil)
	require.NoError(t, err)
	_, err = f.chat.SaveMessage(ctx, room, citizen, chat.Inbound{Message: "gate code 4711"})
	require.NoError(t, err)

	_, err = f.complaints.Get(ctx, other, c.ID)
	assertKind(t, apperrors.KindForbidden, err)
	_, err = f.chat.AuthorizeRoom(ctx, other, room)
	assertKind(t, apperrors.KindForbidden, err)
	_, err = f.chat.History(ctx, other, c.ID)
	assertKind(t, apperrors.KindForbidden, err)

	history, err := f.chat.History(ctx, assignee, c.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}
