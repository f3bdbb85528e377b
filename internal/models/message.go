package models

import "time"

const (
	MessageTypeText  = "TEXT"
	MessageTypeImage = "IMAGE"
	MessageTypeFile  = "FILE"
)

// ChatMessage is one message event as the backend emits it, both in history
// responses and on /topic/room.{id}. ID is zero for messages that were sent
// but not yet echoed back by the broker.
type ChatMessage struct {
	ID          int64     `json:"id,omitempty"`
	RoomID      int64     `json:"roomId"`
	SenderID    int64     `json:"senderId"`
	Content     string    `json:"content"`
	MessageType string    `json:"messageType,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SendMessageRequest is the publish body for /app/chat/send.
type SendMessageRequest struct {
	RoomID      int64  `json:"roomId"`
	Content     string `json:"content"`
	MessageType string `json:"messageType,omitempty"`
}
