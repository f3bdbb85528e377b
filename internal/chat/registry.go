package chat

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmlee/bandmate-chat/internal/models"
	"github.com/jmlee/bandmate-chat/internal/transport"
)

// MessageHandler receives one decoded live message.
type MessageHandler func(models.ChatMessage)

// Registry keeps at most one live subscription per room on a given session.
type Registry struct {
	conn Conn

	mu   sync.Mutex
	subs map[int64]*transport.Subscription
}

func NewRegistry(conn Conn) *Registry {
	return &Registry{
		conn: conn,
		subs: make(map[int64]*transport.Subscription),
	}
}

// Subscribe attaches handler to the room's topic. An existing subscription
// for the same room is replaced, so calling it twice is safe; only the
// latest handler sees subsequent deliveries.
func (r *Registry) Subscribe(roomID int64, handler MessageHandler) error {
	r.mu.Lock()
	prev := r.subs[roomID]
	delete(r.subs, roomID)
	r.mu.Unlock()
	if prev != nil {
		if err := prev.Unsubscribe(); err != nil {
			slog.Warn("unsubscribe before replace failed", "room_id", roomID, "error", err)
		}
	}

	sub, err := r.conn.Subscribe(TopicForRoom(roomID))
	if err != nil {
		return fmt.Errorf("subscribe room %d: %w", roomID, err)
	}

	r.mu.Lock()
	r.subs[roomID] = sub
	r.mu.Unlock()

	go pump(roomID, sub, handler)
	return nil
}

// Unsubscribe cancels the room's subscription; no-op when absent.
func (r *Registry) Unsubscribe(roomID int64) {
	r.mu.Lock()
	sub := r.subs[roomID]
	delete(r.subs, roomID)
	r.mu.Unlock()
	if sub == nil {
		return
	}
	if err := sub.Unsubscribe(); err != nil {
		slog.Warn("unsubscribe failed", "room_id", roomID, "error", err)
	}
}

// Close cancels every live subscription.
func (r *Registry) Close() {
	r.mu.Lock()
	subs := r.subs
	r.subs = make(map[int64]*transport.Subscription)
	r.mu.Unlock()

	for roomID, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			slog.Warn("unsubscribe on close failed", "room_id", roomID, "error", err)
		}
	}
}

// pump drains one subscription until its channel closes. A malformed body is
// logged and dropped; it never interrupts later deliveries.
func pump(roomID int64, sub *transport.Subscription, handler MessageHandler) {
	for msg := range sub.C() {
		if msg.Err != nil {
			slog.Warn("subscription delivery error", "room_id", roomID, "error", msg.Err)
			continue
		}
		decoded, err := DecodeMessage(msg.Body)
		if err != nil {
			slog.Warn("dropping malformed message", "room_id", roomID, "error", err)
			continue
		}
		handler(decoded)
	}
}
