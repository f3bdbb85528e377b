package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/jmlee/bandmate-chat/internal/identity"
	"github.com/jmlee/bandmate-chat/internal/models"
	"github.com/jmlee/bandmate-chat/internal/transport"
)

var ErrEmptyMessage = errors.New("chat: empty message")

// HistoryLoader loads a room's prior messages. *api.Client satisfies it.
type HistoryLoader interface {
	RoomMessages(ctx context.Context, id identity.Identity, roomID int64) ([]models.ChatMessage, error)
}

// RoomConfig wires one room view.
type RoomConfig struct {
	RoomID   int64
	Identity identity.Identity
	History  HistoryLoader
	Session  Session

	// OnChange fires after every list mutation with the appended entries
	// and the new total; the view scrolls to the newest entry on it.
	OnChange func(appended []models.ChatMessage, total int)

	// OnState fires with the live-channel indicator value.
	OnState func(connected bool)
}

// Room orchestrates one mounted chat room view: it loads history, opens the
// session, subscribes the room topic, and keeps an append-only message list
// for the lifetime of the mount. Each Room exclusively owns its session;
// nothing here is process-global.
type Room struct {
	cfg      RoomConfig
	registry *Registry
	pub      *Publisher

	mu             sync.Mutex
	messages       []models.ChatMessage
	historyApplied bool
	pending        []models.ChatMessage

	closeOnce sync.Once
	closed    chan struct{}
}

func NewRoom(cfg RoomConfig) *Room {
	return &Room{
		cfg:      cfg,
		registry: NewRegistry(cfg.Session),
		pub:      NewPublisher(cfg.Session),
		closed:   make(chan struct{}),
	}
}

// Open loads history, then brings up the live channel. History is applied
// strictly before any live delivery lands in the list; deliveries that beat
// it are buffered and flushed in receipt order right after it. A history
// failure leaves the list empty and is logged only.
func (r *Room) Open(ctx context.Context) error {
	history, err := r.cfg.History.RoomMessages(ctx, r.cfg.Identity, r.cfg.RoomID)
	if err != nil {
		slog.Warn("history load failed, starting empty", "room_id", r.cfg.RoomID, "error", err)
		history = nil
	}
	r.applyHistory(history)

	return r.cfg.Session.Connect(ctx, r.cfg.Identity, transport.Hooks{
		OnConnected: r.onConnected,
		OnDropped:   r.onDropped,
		OnError: func(err error) {
			slog.Error("chat room connect failed", "room_id", r.cfg.RoomID, "error", err)
			r.notifyState(false)
		},
	})
}

// Send publishes the trimmed draft. The view clears its input before this
// returns: confirmation only ever arrives through the topic rebroadcast.
// While disconnected the message is dropped and ErrNotConnected reported;
// there is no queue and no retry.
func (r *Room) Send(content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}
	return r.pub.Send(r.cfg.RoomID, content, r.cfg.Identity)
}

// Messages returns a snapshot of the displayed list in receipt order.
func (r *Room) Messages() []models.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ChatMessage, len(r.messages))
	copy(out, r.messages)
	return out
}

// Close cancels the room subscription and the session. Idempotent, and safe
// even when the connection never completed.
func (r *Room) Close() {
	r.closeOnce.Do(func() {
		close(r.closed)
		r.registry.Close()
		r.cfg.Session.Disconnect()
		r.notifyState(false)
	})
}

// onConnected fires on every successful negotiation, including after an
// automatic reconnect; resubscribing is idempotent through the registry.
func (r *Room) onConnected() {
	if r.isClosed() {
		return
	}
	if err := r.registry.Subscribe(r.cfg.RoomID, r.appendLive); err != nil {
		slog.Error("room subscribe failed", "room_id", r.cfg.RoomID, "error", err)
		return
	}
	// lost the race with Close: take the subscription back down
	if r.isClosed() {
		r.registry.Unsubscribe(r.cfg.RoomID)
		return
	}
	r.notifyState(true)
}

// onDropped fires when the established session is lost; the indicator goes
// dark until the automatic reconnect renegotiates.
func (r *Room) onDropped() {
	if r.isClosed() {
		return
	}
	slog.Warn("chat room lost its session", "room_id", r.cfg.RoomID)
	r.notifyState(false)
}

func (r *Room) applyHistory(history []models.ChatMessage) {
	r.mu.Lock()
	r.messages = append(r.messages, history...)
	flushed := r.pending
	r.pending = nil
	r.messages = append(r.messages, flushed...)
	r.historyApplied = true
	total := len(r.messages)
	r.mu.Unlock()

	appended := make([]models.ChatMessage, 0, len(history)+len(flushed))
	appended = append(appended, history...)
	appended = append(appended, flushed...)
	if len(appended) > 0 {
		r.notifyChange(appended, total)
	}
}

func (r *Room) appendLive(msg models.ChatMessage) {
	r.mu.Lock()
	if !r.historyApplied {
		r.pending = append(r.pending, msg)
		r.mu.Unlock()
		return
	}
	r.messages = append(r.messages, msg)
	total := len(r.messages)
	r.mu.Unlock()

	r.notifyChange([]models.ChatMessage{msg}, total)
}

func (r *Room) isClosed() bool {
	select {
	case <-r.closed:
		return true
	default:
		return false
	}
}

func (r *Room) notifyChange(appended []models.ChatMessage, total int) {
	if r.cfg.OnChange != nil {
		r.cfg.OnChange(appended, total)
	}
}

func (r *Room) notifyState(connected bool) {
	if r.cfg.OnState != nil {
		r.cfg.OnState(connected)
	}
}
