package testutil

import "sync"

// PublishedMessage is one subject/payload pair captured by MockPublisher.
type PublishedMessage struct {
	Subject string
	Data    []byte
}

// MockPublisher is an in-memory broker stand-in. It satisfies the
// publisher contract of the NATS sink and stores everything published.
// Thread-safe for concurrent use.
type MockPublisher struct {
	mu sync.Mutex

	// PublishErr, when set, makes every Publish call fail.
	PublishErr error

	messages []PublishedMessage
}

// Publish records the message.
func (p *MockPublisher) Publish(subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.PublishErr != nil {
		return p.PublishErr
	}
	p.messages = append(p.messages, PublishedMessage{
		Subject: subject,
		Data:    append([]byte(nil), data...),
	})
	return nil
}

// Messages returns a copy of everything published so far.
func (p *MockPublisher) Messages() []PublishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]PublishedMessage, len(p.messages))
	copy(out, p.messages)
	return out
}
