package chat

import "fmt"

// SendDestination is the application destination all outgoing messages are
// published to; the backend rebroadcasts them on the room's topic.
const SendDestination = "/app/chat/send"

// TopicForRoom returns the broker destination carrying a room's messages.
func TopicForRoom(roomID int64) string {
	return fmt.Sprintf("/topic/room.%d", roomID)
}
