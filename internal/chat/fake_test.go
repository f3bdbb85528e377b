package chat

import (
	"context"
	"sync"

	"github.com/jmlee/bandmate-chat/internal/identity"
	"github.com/jmlee/bandmate-chat/internal/transport"
)

type sentFrame struct {
	destination string
	contentType string
	body        []byte
	headers     map[string]string
}

type fakeSub struct {
	destination string
	ch          chan transport.Message
	active      bool
}

// fakeSession is an in-process stand-in for transport.Session.
type fakeSession struct {
	mu          sync.Mutex
	connected   bool
	autoConnect bool
	hooks       transport.Hooks
	subs        []*fakeSub
	sent        []sentFrame
	disconnects int
}

func newFakeSession(connected bool) *fakeSession {
	return &fakeSession{connected: connected}
}

func (f *fakeSession) Connect(ctx context.Context, id identity.Identity, hooks transport.Hooks) error {
	f.mu.Lock()
	f.hooks = hooks
	auto := f.autoConnect
	if auto {
		f.connected = true
	}
	f.mu.Unlock()
	if auto && hooks.OnConnected != nil {
		hooks.OnConnected()
	}
	return nil
}

// resolveConnect completes an in-flight connect, as the broker ack would.
func (f *fakeSession) resolveConnect() {
	f.mu.Lock()
	f.connected = true
	cb := f.hooks.OnConnected
	f.mu.Unlock()
	if cb != nil {
		cb()
	}
}

// dropConnection severs the established session the way a dead socket would:
// subscriptions die, the drop hook fires, and the session waits for a redial.
func (f *fakeSession) dropConnection() {
	f.mu.Lock()
	f.connected = false
	cb := f.hooks.OnDropped
	for _, sub := range f.subs {
		if sub.active {
			sub.active = false
			close(sub.ch)
		}
	}
	f.subs = nil
	f.mu.Unlock()
	if cb != nil {
		cb()
	}
}

func (f *fakeSession) Disconnect() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	f.disconnects++
	for _, sub := range f.subs {
		if sub.active {
			sub.active = false
			close(sub.ch)
		}
	}
	f.subs = nil
}

func (f *fakeSession) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeSession) Subscribe(destination string) (*transport.Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return nil, transport.ErrNotConnected
	}
	sub := &fakeSub{destination: destination, ch: make(chan transport.Message, 16), active: true}
	f.subs = append(f.subs, sub)
	return transport.NewSubscription(destination, sub.ch, func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		if sub.active {
			sub.active = false
			close(sub.ch)
		}
		return nil
	}), nil
}

func (f *fakeSession) Send(destination, contentType string, body []byte, headers map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return transport.ErrNotConnected
	}
	f.sent = append(f.sent, sentFrame{destination: destination, contentType: contentType, body: body, headers: headers})
	return nil
}

// deliver pushes a raw body to every active subscription on destination.
func (f *fakeSession) deliver(destination string, body []byte) {
	f.mu.Lock()
	var targets []*fakeSub
	for _, sub := range f.subs {
		if sub.active && sub.destination == destination {
			targets = append(targets, sub)
		}
	}
	f.mu.Unlock()
	for _, sub := range targets {
		sub.ch <- transport.Message{Destination: destination, Body: body}
	}
}

func (f *fakeSession) activeSubs(destination string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, sub := range f.subs {
		if sub.active && sub.destination == destination {
			n++
		}
	}
	return n
}

func (f *fakeSession) sentFrames() []sentFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentFrame, len(f.sent))
	copy(out, f.sent)
	return out
}
