package chat

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmlee/bandmate-chat/internal/identity"
	"github.com/jmlee/bandmate-chat/internal/models"
)

var ErrNotConnected = errors.New("chat: transport session not connected")

// Publisher is the outbound message path.
type Publisher struct {
	conn Conn
}

func NewPublisher(conn Conn) *Publisher {
	return &Publisher{conn: conn}
}

// Send publishes one message to the application destination with the
// sender's credentials as per-request headers. Fire and forget: a returned
// error means the frame never left, never that the backend rejected it.
// When the session is not connected the publish primitive is never invoked.
func (p *Publisher) Send(roomID int64, content string, id identity.Identity) error {
	if !p.conn.Connected() {
		return ErrNotConnected
	}

	body, err := json.Marshal(models.SendMessageRequest{RoomID: roomID, Content: content})
	if err != nil {
		return fmt.Errorf("encode send request: %w", err)
	}

	headers := map[string]string{
		"userId":        id.UserIDString(),
		"Authorization": id.BearerHeader(),
	}
	if err := p.conn.Send(SendDestination, "application/json", body, headers); err != nil {
		return fmt.Errorf("publish to %s: %w", SendDestination, err)
	}
	return nil
}
