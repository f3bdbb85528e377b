package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// testBroker is a minimal STOMP 1.2 broker speaking the SockJS websocket
// transport, just enough surface for the session to negotiate against.
type testBroker struct {
	t   *testing.T
	srv *httptest.Server

	rejectConnect bool

	mu      sync.Mutex
	ws      *websocket.Conn
	subs    map[string]string // destination -> subscription id
	nextMsg int

	connects    chan map[string]string // CONNECT headers
	subscribes  chan string            // destinations
	unsubs      chan string            // subscription ids
	sends       chan stompFrame
	disconnects chan struct{}
}

type stompFrame struct {
	command string
	headers map[string]string
	body    string
}

func newTestBroker(t *testing.T) *testBroker {
	t.Helper()
	b := &testBroker{
		t:           t,
		subs:        make(map[string]string),
		connects:    make(chan map[string]string, 4),
		subscribes:  make(chan string, 4),
		unsubs:      make(chan string, 4),
		sends:       make(chan stompFrame, 4),
		disconnects: make(chan struct{}, 4),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		b.serve(ws)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

// URL is the SockJS endpoint the session should dial.
func (b *testBroker) URL() string {
	return b.srv.URL + "/ws"
}

func (b *testBroker) serve(ws *websocket.Conn) {
	if err := ws.WriteMessage(websocket.TextMessage, []byte("o")); err != nil {
		return
	}
	b.mu.Lock()
	b.ws = ws
	b.subs = make(map[string]string)
	b.mu.Unlock()

	var buf []byte
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		var msgs []string
		if err := json.Unmarshal(raw, &msgs); err != nil {
			b.t.Errorf("broker: malformed transport frame %q", raw)
			return
		}
		for _, m := range msgs {
			buf = append(buf, m...)
		}
		for {
			idx := indexNUL(buf)
			if idx < 0 {
				break
			}
			text := strings.TrimLeft(string(buf[:idx]), "\n")
			buf = buf[idx+1:]
			if text == "" {
				continue // heart-beat
			}
			if !b.handle(ws, parseStompFrame(text)) {
				return
			}
		}
	}
}

func indexNUL(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}

func parseStompFrame(text string) stompFrame {
	head, body, _ := strings.Cut(text, "\n\n")
	lines := strings.Split(head, "\n")
	f := stompFrame{command: lines[0], headers: make(map[string]string), body: body}
	for _, line := range lines[1:] {
		if k, v, ok := strings.Cut(line, ":"); ok {
			if _, dup := f.headers[k]; !dup {
				f.headers[k] = v
			}
		}
	}
	return f
}

func (b *testBroker) handle(ws *websocket.Conn, f stompFrame) bool {
	switch f.command {
	case "CONNECT", "STOMP":
		b.connects <- f.headers
		if b.rejectConnect {
			b.write(ws, "ERROR\nmessage:access denied\n\nconnection rejected\x00")
			return false
		}
		b.write(ws, "CONNECTED\nversion:1.2\n\n\x00")
	case "SUBSCRIBE":
		b.mu.Lock()
		b.subs[f.headers["destination"]] = f.headers["id"]
		b.mu.Unlock()
		b.subscribes <- f.headers["destination"]
	case "UNSUBSCRIBE":
		b.mu.Lock()
		for dest, id := range b.subs {
			if id == f.headers["id"] {
				delete(b.subs, dest)
			}
		}
		b.mu.Unlock()
		if receipt := f.headers["receipt"]; receipt != "" {
			b.write(ws, fmt.Sprintf("RECEIPT\nreceipt-id:%s\n\n\x00", receipt))
		}
		b.unsubs <- f.headers["id"]
	case "SEND":
		b.sends <- f
	case "DISCONNECT":
		if receipt := f.headers["receipt"]; receipt != "" {
			b.write(ws, fmt.Sprintf("RECEIPT\nreceipt-id:%s\n\n\x00", receipt))
		}
		b.disconnects <- struct{}{}
	}
	return true
}

// Push delivers a MESSAGE frame on the destination's active subscription.
func (b *testBroker) Push(destination, body string) {
	b.mu.Lock()
	ws := b.ws
	subID, ok := b.subs[destination]
	b.nextMsg++
	msgID := b.nextMsg
	b.mu.Unlock()
	if !ok {
		b.t.Errorf("broker: push to %s with no subscription", destination)
		return
	}
	b.write(ws, fmt.Sprintf(
		"MESSAGE\nsubscription:%s\nmessage-id:%d\ndestination:%s\ncontent-type:application/json\ncontent-length:%d\n\n%s\x00",
		subID, msgID, destination, len(body), body))
}

// Drop severs the current socket without a close frame.
func (b *testBroker) Drop() {
	b.mu.Lock()
	ws := b.ws
	b.ws = nil
	b.mu.Unlock()
	if ws != nil {
		ws.Close()
	}
}

func (b *testBroker) write(ws *websocket.Conn, frame string) {
	payload, err := json.Marshal([]string{frame})
	if err != nil {
		b.t.Errorf("broker: encode frame: %v", err)
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if ws == nil {
		return
	}
	if err := ws.WriteMessage(websocket.TextMessage, append([]byte{'a'}, payload...)); err != nil {
		b.t.Logf("broker: write failed: %v", err)
	}
}
