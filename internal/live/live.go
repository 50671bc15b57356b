// Package live opens the per-student average channel and turns every message
// the backend pushes into a Notification. The payload is carried along but
// callers treat each message only as a signal to refetch.
package live

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	TransportSSE       = "sse"
	TransportWebSocket = "websocket"

	defaultBuffer = 16
)

// ErrStreamEnded is reported when the backend closes a stream the client did
// not ask to close.
var ErrStreamEnded = errors.New("live: stream ended by server")

// Logger records stream activity. It matches logging.Logger's signature.
type Logger interface {
	Printf(format string, args ...any)
}

// Notification is one message received on a student's channel.
type Notification struct {
	StudentID int64
	Event     string
	Data      string
	Received  time.Time
}

// Subscriber opens live channels.
type Subscriber interface {
	Subscribe(ctx context.Context, studentID int64) (*Subscription, error)
}

// Subscription is an open channel for one student. Events is closed when the
// stream ends; Err then reports why (nil after Close).
type Subscription struct {
	Events    <-chan Notification
	StudentID int64

	cancel    func()
	closeOnce sync.Once
	closing   chan struct{}

	mu  sync.Mutex
	err error
}

// Close tears the stream down. It is safe to call more than once.
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() {
		close(s.closing)
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// Err returns the reason the stream ended, if it ended on its own.
func (s *Subscription) Err() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Subscription) closed() bool {
	select {
	case <-s.closing:
		return true
	default:
		return false
	}
}

// Option customizes subscriber construction.
type Option func(*options)

type options struct {
	http      *http.Client
	buffer    int
	logger    Logger
	requestID func() string
	clock     func() time.Time
}

// WithHTTPClient shares an http.Client with the REST client. It must not set
// Client.Timeout or long-lived streams are cut.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) {
		if hc != nil {
			o.http = hc
		}
	}
}

// WithBuffer overrides how many undelivered notifications are kept.
func WithBuffer(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.buffer = n
		}
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// New returns the Subscriber for transport. streamURL maps a student id to
// the http(s) stream endpoint.
func New(transport string, streamURL func(studentID int64) string, opts ...Option) (Subscriber, error) {
	if streamURL == nil {
		return nil, errors.New("live: stream url builder is required")
	}
	o := options{
		http:      &http.Client{},
		buffer:    defaultBuffer,
		logger:    nopLogger{},
		requestID: uuid.NewString,
		clock:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	switch strings.ToLower(strings.TrimSpace(transport)) {
	case "", TransportSSE:
		return &sseSubscriber{opts: o, streamURL: streamURL}, nil
	case TransportWebSocket, "ws":
		return &wsSubscriber{opts: o, streamURL: streamURL}, nil
	default:
		return nil, fmt.Errorf("live: unknown transport %q", transport)
	}
}

// pump owns the sending side of a subscription.
type pump struct {
	sub    *Subscription
	ch     chan Notification
	logger Logger
	clock  func() time.Time
}

func newPump(studentID int64, o options, cancel func()) *pump {
	ch := make(chan Notification, o.buffer)
	return &pump{
		sub: &Subscription{
			Events:    ch,
			StudentID: studentID,
			cancel:    cancel,
			closing:   make(chan struct{}),
		},
		ch:     ch,
		logger: o.logger,
		clock:  o.clock,
	}
}

// deliver drops the oldest pending notification when the buffer is full.
func (p *pump) deliver(event, data string) {
	n := Notification{StudentID: p.sub.StudentID, Event: event, Data: data, Received: p.clock()}
	for {
		select {
		case p.ch <- n:
			return
		default:
		}
		select {
		case <-p.ch:
			p.logger.Printf("live: student %d dropped a pending notification", p.sub.StudentID)
		default:
		}
	}
}

// finish records why the stream ended and closes Events. A stream ended by
// Close reports no error.
func (p *pump) finish(err error) {
	if p.sub.closed() {
		err = nil
	} else if err == nil {
		err = ErrStreamEnded
	}
	p.sub.mu.Lock()
	p.sub.err = err
	p.sub.mu.Unlock()
	if err != nil {
		p.logger.Printf("live: student %d stream ended: %v", p.sub.StudentID, err)
	} else {
		p.logger.Printf("live: student %d stream closed", p.sub.StudentID)
	}
	close(p.ch)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}
