package chat

import (
	"context"
	"sync"

	"github.com/Pranaya-sht/waste-management-system/internal/auth"
	"github.com/Pranaya-sht/waste-management-system/internal/models"
	"go.uber.org/zap"
)

// Subscriber receives frames for a room. Deliver must not block; it returns
// false when the subscriber can no longer accept frames.
type Subscriber interface {
	Deliver(frame any) bool
	Close()
}

// MessageStore validates and persists a message before it is broadcast
type MessageStore interface {
	SaveMessage(ctx context.Context, room string, sender auth.Principal, in Inbound) (*models.ChatMessage, error)
}

// Publisher fans a persisted message out to every instance's subscribers
type Publisher interface {
	Publish(ctx context.Context, room string, out Outbound) error
}

type room struct {
	// sendMu serializes persist-then-publish so delivery order matches
	// persistence order.
	sendMu sync.Mutex

	mu   sync.Mutex
	subs map[Subscriber]struct{}

	// refs counts subscribers plus in-flight sends; guarded by Hub.mu
	refs int
}

// Hub tracks the live subscribers of every chat room
type Hub struct {
	mu    sync.Mutex
	rooms map[string]*room

	store     MessageStore
	publisher Publisher
	logger    *zap.SugaredLogger
}

// Option configures a Hub
type Option func(*Hub)

// WithPublisher routes broadcasts through p instead of delivering locally.
// p is expected to call Deliver on every instance, including this one.
func WithPublisher(p Publisher) Option {
	return func(h *Hub) { h.publisher = p }
}

// NewHub creates an empty hub
func NewHub(store MessageStore, logger *zap.SugaredLogger, opts ...Option) *Hub {
	h := &Hub{
		rooms:  make(map[string]*room),
		store:  store,
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) acquire(name string) *room {
	h.mu.Lock()
	defer h.mu.Unlock()

	r, ok := h.rooms[name]
	if !ok {
		r = &room{subs: make(map[Subscriber]struct{})}
		h.rooms[name] = r
	}
	r.refs++
	return r
}

func (h *Hub) release(name string, r *room) {
	h.mu.Lock()
	defer h.mu.Unlock()

	r.refs--
	if r.refs <= 0 && h.rooms[name] == r {
		delete(h.rooms, name)
	}
}

// Join adds s to the room
func (h *Hub) Join(name string, s Subscriber) {
	r := h.acquire(name)

	r.mu.Lock()
	_, already := r.subs[s]
	r.subs[s] = struct{}{}
	r.mu.Unlock()

	if already {
		h.release(name, r)
		return
	}
	h.logger.Debugw("Chat subscriber joined", "room", name)
}

// Leave removes s from the room. Leaving a room s is not in does nothing.
func (h *Hub) Leave(name string, s Subscriber) {
	h.mu.Lock()
	r, ok := h.rooms[name]
	h.mu.Unlock()
	if !ok {
		return
	}

	r.mu.Lock()
	_, present := r.subs[s]
	delete(r.subs, s)
	r.mu.Unlock()

	if present {
		h.release(name, r)
		h.logger.Debugw("Chat subscriber left", "room", name)
	}
}

// Send persists the message and then broadcasts it to the room. A message
// that fails to persist is never broadcast.
func (h *Hub) Send(ctx context.Context, name string, sender auth.Principal, in Inbound) (*Outbound, error) {
	r := h.acquire(name)
	defer h.release(name, r)

	r.sendMu.Lock()
	defer r.sendMu.Unlock()

	msg, err := h.store.SaveMessage(ctx, name, sender, in)
	if err != nil {
		return nil, err
	}
	out := NewOutbound(msg, sender.Username)

	if h.publisher == nil {
		h.deliver(name, r, out)
		return &out, nil
	}
	if err := h.publisher.Publish(ctx, name, out); err != nil {
		// Persisted, so it still shows up in history.
		h.logger.Errorw("Failed to publish chat message", "room", name, "message_id", out.ID, "error", err)
	}
	return &out, nil
}

// Deliver hands a frame to every current subscriber of the room. Subscribers
// that cannot accept it are dropped from the room and closed.
func (h *Hub) Deliver(name string, frame any) {
	h.mu.Lock()
	r, ok := h.rooms[name]
	h.mu.Unlock()
	if !ok {
		return
	}
	h.deliver(name, r, frame)
}

func (h *Hub) deliver(name string, r *room, frame any) {
	var dead []Subscriber

	r.mu.Lock()
	for s := range r.subs {
		if !s.Deliver(frame) {
			delete(r.subs, s)
			dead = append(dead, s)
		}
	}
	r.mu.Unlock()

	for _, s := range dead {
		s.Close()
		h.release(name, r)
		h.logger.Infow("Dropped unresponsive chat subscriber", "room", name)
	}
}

// Subscribers returns the number of live subscribers in the room
func (h *Hub) Subscribers(name string) int {
	h.mu.Lock()
	r, ok := h.rooms[name]
	h.mu.Unlock()
	if !ok {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}
