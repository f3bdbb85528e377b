package transport

import "sync"

// Message is one raw delivery from a topic subscription. Err is set when the
// broker reported an error on the subscription; Body is untouched wire
// payload otherwise.
type Message struct {
	Destination string
	Body        []byte
	Err         error
}

// Subscription is a live topic feed. Its channel closes when the
// subscription is cancelled or the session drops.
type Subscription struct {
	destination string
	c           <-chan Message
	cancel      func() error

	once      sync.Once
	cancelErr error
}

// NewSubscription wraps a message feed with its cancel function. The session
// produces these; exported so in-process fakes can stand in for a broker.
func NewSubscription(destination string, c <-chan Message, cancel func() error) *Subscription {
	return &Subscription{destination: destination, c: c, cancel: cancel}
}

func (s *Subscription) Destination() string {
	return s.destination
}

// C is the delivery channel.
func (s *Subscription) C() <-chan Message {
	return s.c
}

// Unsubscribe cancels the subscription. Idempotent.
func (s *Subscription) Unsubscribe() error {
	s.once.Do(func() {
		if s.cancel != nil {
			s.cancelErr = s.cancel()
		}
	})
	return s.cancelErr
}
