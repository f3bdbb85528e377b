package chat

import (
	"encoding/json"
	"fmt"

	"github.com/jmlee/bandmate-chat/internal/models"
)

// DecodeMessage parses one delivered topic payload. Callers drop failures;
// the dispatch path itself never handles raw panics or partial values.
func DecodeMessage(body []byte) (models.ChatMessage, error) {
	var msg models.ChatMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return models.ChatMessage{}, fmt.Errorf("decode message: %w", err)
	}
	return msg, nil
}
