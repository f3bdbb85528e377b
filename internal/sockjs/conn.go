// Package sockjs implements the client side of the SockJS websocket
// transport: it dials /{server}/{session}/websocket under the configured
// endpoint and exposes the message stream as an io.ReadWriteCloser so a wire
// protocol can run on top of it.
package sockjs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var ErrClosed = errors.New("sockjs: connection closed")

const openFrameTimeout = 10 * time.Second

// Conn is one SockJS session. Read is only safe from a single goroutine;
// Write may be called concurrently. Each Write becomes one transport frame.
type Conn struct {
	ws *websocket.Conn

	// unconsumed tail of decoded message payloads, owned by the reader
	readBuf []byte

	writeMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}

	errMu    sync.RWMutex
	closeErr error
}

// Dial connects to the SockJS endpoint (an http, https, ws or wss URL) and
// waits for the server's open frame.
func Dial(ctx context.Context, endpoint string) (*Conn, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("sockjs: parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("sockjs: unsupported scheme %q", u.Scheme)
	}
	u.Path = fmt.Sprintf("%s/%03d/%s/websocket",
		strings.TrimRight(u.Path, "/"), rand.Intn(1000), uuid.NewString())

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("sockjs: dial %s: %w", u.String(), err)
	}

	// the server speaks first: a single open frame
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(openFrameTimeout)
	}
	ws.SetReadDeadline(deadline)
	_, raw, err := ws.ReadMessage()
	if err != nil {
		ws.Close()
		return nil, fmt.Errorf("sockjs: read open frame: %w", err)
	}
	if kind, _, err := decodeFrame(raw); err != nil || kind != frameOpen {
		ws.Close()
		return nil, fmt.Errorf("sockjs: unexpected first frame %q", raw)
	}
	ws.SetReadDeadline(time.Time{})

	return &Conn{ws: ws, closed: make(chan struct{})}, nil
}

func (c *Conn) Read(p []byte) (int, error) {
	for len(c.readBuf) == 0 {
		select {
		case <-c.closed:
			return 0, c.readErr()
		default:
		}

		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			c.closeWithError(err)
			return 0, c.readErr()
		}

		kind, msgs, err := decodeFrame(raw)
		if err != nil {
			var closeErr *CloseError
			if errors.As(err, &closeErr) {
				// normal server-side close reads as EOF
				c.closeWithError(nil)
			} else {
				c.closeWithError(err)
			}
			return 0, c.readErr()
		}
		if kind != frameMessages {
			continue
		}
		for _, m := range msgs {
			c.readBuf = append(c.readBuf, m...)
		}
	}

	n := copy(p, c.readBuf)
	c.readBuf = c.readBuf[n:]
	return n, nil
}

func (c *Conn) Write(p []byte) (int, error) {
	select {
	case <-c.closed:
		return 0, ErrClosed
	default:
	}

	frame, err := encodeSend(p)
	if err != nil {
		return 0, err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.closeWithError(err)
		return 0, err
	}
	return len(p), nil
}

// Close terminates the session. Idempotent.
func (c *Conn) Close() error {
	c.closeWithError(nil)
	return nil
}

// Done is closed once the session is fully terminated.
func (c *Conn) Done() <-chan struct{} {
	return c.closed
}

// LastError returns the terminal error, nil for a clean close.
func (c *Conn) LastError() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()
	return c.closeErr
}

func (c *Conn) readErr() error {
	if err := c.LastError(); err != nil {
		return err
	}
	return io.EOF
}

func (c *Conn) closeWithError(err error) {
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		c.closeErr = err
		c.errMu.Unlock()

		c.ws.Close()
		close(c.closed)
	})
}
