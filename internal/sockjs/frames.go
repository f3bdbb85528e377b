package sockjs

import (
	"encoding/json"
	"fmt"
)

// SockJS websocket transport framing, client side. The server sends one
// frame per websocket message: 'o' (open), 'h' (heartbeat), 'a' followed by
// a JSON array of message strings, or 'c' followed by [code, reason]. The
// client sends a JSON array of message strings with no prefix.

type frameKind byte

const (
	frameOpen      frameKind = 'o'
	frameHeartbeat frameKind = 'h'
	frameMessages  frameKind = 'a'
	frameClose     frameKind = 'c'
)

type closeInfo struct {
	Code   int
	Reason string
}

// decodeFrame splits one server frame into its kind and message payloads.
// Only 'a' frames carry payloads; 'c' frames return the close info through
// the error.
func decodeFrame(raw []byte) (frameKind, []string, error) {
	if len(raw) == 0 {
		return 0, nil, fmt.Errorf("sockjs: empty frame")
	}

	kind := frameKind(raw[0])
	switch kind {
	case frameOpen, frameHeartbeat:
		return kind, nil, nil
	case frameMessages:
		var msgs []string
		if err := json.Unmarshal(raw[1:], &msgs); err != nil {
			return kind, nil, fmt.Errorf("sockjs: malformed message frame: %w", err)
		}
		return kind, msgs, nil
	case frameClose:
		var parts []json.RawMessage
		info := closeInfo{Code: 3000}
		if err := json.Unmarshal(raw[1:], &parts); err == nil {
			if len(parts) > 0 {
				json.Unmarshal(parts[0], &info.Code)
			}
			if len(parts) > 1 {
				json.Unmarshal(parts[1], &info.Reason)
			}
		}
		return kind, nil, &CloseError{Code: info.Code, Reason: info.Reason}
	default:
		return kind, nil, fmt.Errorf("sockjs: unknown frame type %q", raw[0])
	}
}

// encodeSend wraps one outbound payload as a client message frame.
func encodeSend(payload []byte) ([]byte, error) {
	frame, err := json.Marshal([]string{string(payload)})
	if err != nil {
		return nil, fmt.Errorf("sockjs: encode send frame: %w", err)
	}
	return frame, nil
}

// CloseError is a server-initiated close frame.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("sockjs: closed by server: %d %s", e.Code, e.Reason)
}
