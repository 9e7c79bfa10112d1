// Package events publishes task lifecycle events to external consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"contractbot/internal/logging"

	"github.com/nats-io/nats.go"
)

// TaskCompleted is emitted once a task has been confirmed.
type TaskCompleted struct {
	ID          string            `json:"id"`
	SessionID   string            `json:"sessionId"`
	UserID      string            `json:"userId,omitempty"`
	Kind        string            `json:"kind"`
	Values      map[string]string `json:"values"`
	CompletedAt time.Time         `json:"completedAt"`
}

// Publisher delivers task events. Implementations must be safe for
// concurrent use.
type Publisher interface {
	PublishTaskCompleted(ctx context.Context, ev TaskCompleted) error
	Close() error
}

// NopPublisher drops every event.
type NopPublisher struct{}

// PublishTaskCompleted implements Publisher.
func (NopPublisher) PublishTaskCompleted(context.Context, TaskCompleted) error { return nil }

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }

// conn is the subset of *nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// NATSPublisher publishes events as JSON on a NATS subject.
type NATSPublisher struct {
	nc      conn
	subject string

	mu     sync.Mutex
	closed bool
}

// NewNATSPublisher connects to url and publishes on subject.
func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("contractbot"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	logging.Events("connected to NATS at %s, subject %s", url, subject)
	return newNATSPublisher(nc, subject), nil
}

func newNATSPublisher(nc conn, subject string) *NATSPublisher {
	return &NATSPublisher{nc: nc, subject: subject}
}

// Subject returns the subject events are published on.
func (p *NATSPublisher) Subject() string { return p.subject }

// PublishTaskCompleted implements Publisher. NATS publishes are not
// cancellable, so ctx is only checked before sending.
func (p *NATSPublisher) PublishTaskCompleted(ctx context.Context, ev TaskCompleted) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled before publish: %w", err)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("publisher closed")
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		logging.EventsError("publish %s to %s: %v", ev.ID, p.subject, err)
		return fmt.Errorf("publish to %s: %w", p.subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection. It is safe to
// call more than once.
func (p *NATSPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	err := p.nc.FlushTimeout(2 * time.Second)
	p.nc.Close()
	if err != nil {
		return fmt.Errorf("flush NATS: %w", err)
	}
	return nil
}

// New returns a NATS publisher when url is set, otherwise a NopPublisher.
func New(url, subject string) (Publisher, error) {
	if url == "" {
		return NopPublisher{}, nil
	}
	return NewNATSPublisher(url, subject)
}
