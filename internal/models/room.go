package models

import "time"

// Room is one chat room as returned by GET /api/chatrooms.
type Room struct {
	RoomID      int64      `json:"roomId"`
	RoomName    string     `json:"roomName"`
	LastMessage string     `json:"lastMessage,omitempty"`
	LastSentAt  *time.Time `json:"lastSentAt,omitempty"`
}

// CreateRoomRequest is the body for POST /api/chatrooms.
type CreateRoomRequest struct {
	Name           string  `json:"name"`
	ParticipantIDs []int64 `json:"participantIds"`
}
