// Package transport owns the client's one logical connection to the
// backend's real-time endpoint: a STOMP session carried over the SockJS
// websocket transport.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-stomp/stomp/v3"
	"github.com/go-stomp/stomp/v3/frame"

	"github.com/jmlee/bandmate-chat/internal/identity"
	"github.com/jmlee/bandmate-chat/internal/sockjs"
)

// State is the session lifecycle state.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateFailed       State = "FAILED"
)

var (
	ErrNotConnected  = errors.New("transport: session not connected")
	ErrConnectActive = errors.New("transport: connect already in progress")
)

const (
	defaultReconnectDelay = 5 * time.Second
	defaultHeartBeat      = 10 * time.Second
	dialTimeout           = 10 * time.Second
)

// Options configures a Session.
type Options struct {
	// Endpoint is the SockJS endpoint, e.g. http://host:8080/ws.
	Endpoint string

	// ReconnectDelay is the fixed redial interval after an established
	// session drops. Zero means the default of 5s.
	ReconnectDelay time.Duration

	// HeartBeat is the STOMP heart-beat interval offered at connect time.
	// Zero means the default of 10s.
	HeartBeat time.Duration

	// OnStateChange observes every lifecycle transition.
	OnStateChange func(State)
}

// Hooks carries the lifecycle callbacks for one Connect call.
type Hooks struct {
	// OnConnected fires once per successful negotiation, including
	// renegotiations after an automatic reconnect.
	OnConnected func()

	// OnDropped fires when an established session is lost, before the
	// redial loop starts. An explicit Disconnect does not fire it.
	OnDropped func()

	// OnError fires when the initial handshake fails.
	OnError func(error)
}

// Session maintains one logical connection. A successful Connect negotiates
// the STOMP handshake with the identity's credentials attached; after an
// established session drops, the session redials on a fixed delay until
// Disconnect. A failed initial handshake is terminal for that Connect call.
type Session struct {
	opts Options
	host string

	mu     sync.Mutex
	state  State
	conn   *stomp.Conn
	stream *sockjs.Conn
	ready  chan struct{}
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSession(opts Options) *Session {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = defaultReconnectDelay
	}
	if opts.HeartBeat <= 0 {
		opts.HeartBeat = defaultHeartBeat
	}

	host := "default"
	if u, err := url.Parse(opts.Endpoint); err == nil && u.Host != "" {
		host = u.Hostname()
	}

	return &Session{
		opts:  opts,
		host:  host,
		state: StateDisconnected,
		ready: make(chan struct{}),
	}
}

// Connect opens the transport and negotiates the protocol session with the
// identity's bearer token and user id as connect-time headers. Lifecycle
// events for this connection are delivered through hooks.
func (s *Session) Connect(ctx context.Context, id identity.Identity, hooks Hooks) error {
	s.mu.Lock()
	if s.state == StateConnecting || s.state == StateConnected {
		s.mu.Unlock()
		return ErrConnectActive
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	done := make(chan struct{})
	s.done = done
	s.ready = make(chan struct{})
	s.state = StateConnecting
	s.mu.Unlock()
	s.notify(StateConnecting)

	go s.run(runCtx, done, id, hooks)
	return nil
}

// Disconnect tears down the protocol session and the socket. Idempotent and
// safe to call while a connect is still in flight.
func (s *Session) Disconnect() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	if done != nil {
		<-done
	}
}

// Connected reports whether the session is usable for subscribes and sends.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateConnected
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Ready is closed on the next Connected transition. Callers that need to
// sequence work after the handshake wait on it instead of polling.
func (s *Session) Ready() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// Subscribe opens a broker subscription on destination.
func (s *Session) Subscribe(destination string) (*Subscription, error) {
	s.mu.Lock()
	conn := s.conn
	connected := s.state == StateConnected
	s.mu.Unlock()
	if !connected || conn == nil {
		return nil, ErrNotConnected
	}

	sub, err := conn.Subscribe(destination, stomp.AckAuto)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", destination, err)
	}

	out := make(chan Message, 16)
	go func() {
		defer close(out)
		for msg := range sub.C {
			if msg == nil {
				return
			}
			out <- Message{Destination: msg.Destination, Body: msg.Body, Err: msg.Err}
		}
	}()
	return NewSubscription(destination, out, func() error { return sub.Unsubscribe() }), nil
}

// Send publishes body to destination with per-request headers attached.
func (s *Session) Send(destination, contentType string, body []byte, headers map[string]string) error {
	s.mu.Lock()
	conn := s.conn
	connected := s.state == StateConnected
	s.mu.Unlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}

	opts := make([]func(*frame.Frame) error, 0, len(headers))
	for k, v := range headers {
		opts = append(opts, stomp.SendOpt.Header(k, v))
	}
	if err := conn.Send(destination, contentType, body, opts...); err != nil {
		return fmt.Errorf("send %s: %w", destination, err)
	}
	return nil
}

func (s *Session) run(ctx context.Context, done chan struct{}, id identity.Identity, hooks Hooks) {
	defer close(done)

	conn, stream, err := s.dial(ctx, id)
	if err != nil {
		if ctx.Err() != nil {
			s.transition(StateDisconnected)
			return
		}
		s.transition(StateFailed)
		slog.Error("chat connect failed", "endpoint", s.opts.Endpoint, "error", err)
		if hooks.OnError != nil {
			hooks.OnError(err)
		}
		return
	}

	s.attach(conn, stream)
	s.transition(StateConnected)
	s.signalReady()
	if hooks.OnConnected != nil {
		hooks.OnConnected()
	}

	redial := backoff.NewConstantBackOff(s.opts.ReconnectDelay)
	for {
		select {
		case <-ctx.Done():
			s.detach()
			s.transition(StateDisconnected)
			return
		case <-stream.Done():
		}
		if ctx.Err() != nil {
			s.detach()
			s.transition(StateDisconnected)
			return
		}

		// established session dropped: transport-governed redial
		s.detach()
		s.transition(StateDisconnected)
		slog.Warn("chat session dropped, reconnecting",
			"endpoint", s.opts.Endpoint, "delay", s.opts.ReconnectDelay)
		if hooks.OnDropped != nil {
			hooks.OnDropped()
		}

		for {
			timer := time.NewTimer(redial.NextBackOff())
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			s.transition(StateConnecting)
			conn, stream, err = s.dial(ctx, id)
			if err != nil {
				if ctx.Err() != nil {
					s.transition(StateDisconnected)
					return
				}
				slog.Warn("chat reconnect attempt failed", "error", err)
				s.transition(StateDisconnected)
				continue
			}

			s.attach(conn, stream)
			s.transition(StateConnected)
			s.signalReady()
			if hooks.OnConnected != nil {
				hooks.OnConnected()
			}
			break
		}
	}
}

func (s *Session) dial(ctx context.Context, id identity.Identity) (*stomp.Conn, *sockjs.Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	stream, err := sockjs.Dial(dialCtx, s.opts.Endpoint)
	if err != nil {
		return nil, nil, err
	}

	// unblock the handshake read if the session is torn down mid-connect
	handshakeDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			stream.Close()
		case <-handshakeDone:
		}
	}()

	conn, err := stomp.Connect(stream,
		stomp.ConnOpt.AcceptVersion(stomp.V12),
		stomp.ConnOpt.Host(s.host),
		stomp.ConnOpt.HeartBeat(s.opts.HeartBeat, s.opts.HeartBeat),
		stomp.ConnOpt.Header("Authorization", id.BearerHeader()),
		stomp.ConnOpt.Header("userId", id.UserIDString()),
	)
	close(handshakeDone)
	if err != nil {
		stream.Close()
		return nil, nil, fmt.Errorf("stomp handshake: %w", err)
	}
	return conn, stream, nil
}

func (s *Session) attach(conn *stomp.Conn, stream *sockjs.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.stream = stream
	s.mu.Unlock()
}

func (s *Session) detach() {
	s.mu.Lock()
	conn := s.conn
	stream := s.stream
	s.conn = nil
	s.stream = nil
	s.ready = make(chan struct{})
	s.mu.Unlock()

	if conn != nil {
		conn.MustDisconnect()
	}
	if stream != nil {
		stream.Close()
	}
}

func (s *Session) signalReady() {
	s.mu.Lock()
	select {
	case <-s.ready:
	default:
		close(s.ready)
	}
	s.mu.Unlock()
}

func (s *Session) transition(state State) {
	s.mu.Lock()
	if s.state == state {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.mu.Unlock()
	s.notify(state)
}

func (s *Session) notify(state State) {
	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(state)
	}
}
