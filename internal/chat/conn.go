// Package chat is the client's realtime chat layer: the per-room topic
// subscription registry, the outbound message path, and the room controller
// that merges REST-loaded history with live deliveries.
package chat

import (
	"context"

	"github.com/jmlee/bandmate-chat/internal/identity"
	"github.com/jmlee/bandmate-chat/internal/transport"
)

// Conn is the slice of the transport session the registry and publisher use.
type Conn interface {
	Connected() bool
	Subscribe(destination string) (*transport.Subscription, error)
	Send(destination, contentType string, body []byte, headers map[string]string) error
}

// Session is the full transport surface the room controller drives.
type Session interface {
	Conn
	Connect(ctx context.Context, id identity.Identity, hooks transport.Hooks) error
	Disconnect()
}
