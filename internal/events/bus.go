package events

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"foodmed/internal/models"

	"go.uber.org/zap"
)

type Kind string

const (
	KindPresence Kind = "presence"
	KindMessage  Kind = "message"
)

// Event is a committed change that downstream systems may want to hear about.
type Event struct {
	Kind    Kind
	UserID  string
	Online  bool
	Message *models.Message
	At      time.Time
}

// Sink consumes events off the bus worker. Errors are logged, never retried.
type Sink interface {
	Name() string
	Handle(ctx context.Context, ev Event) error
}

const sinkTimeout = 3 * time.Second

// Bus decouples the hub from slow side effects. Publishing never blocks: when
// the queue is full the event is dropped and counted.
type Bus struct {
	sinks []Sink
	log   *zap.Logger
	queue chan Event

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
	wg      sync.WaitGroup
}

func NewBus(size int, log *zap.Logger, sinks ...Sink) *Bus {
	if size <= 0 {
		size = 1024
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		sinks: sinks,
		log:   log,
		queue: make(chan Event, size),
	}
}

// Start launches the worker. It stops once Close has drained the queue.
func (b *Bus) Start(ctx context.Context) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		for ev := range b.queue {
			b.dispatch(ctx, ev)
		}
	}()
}

func (b *Bus) dispatch(ctx context.Context, ev Event) {
	for _, s := range b.sinks {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
		if err := s.Handle(sctx, ev); err != nil {
			b.log.Warn("event sink failed",
				zap.String("sink", s.Name()),
				zap.String("kind", string(ev.Kind)),
				zap.Error(err))
		}
		cancel()
	}
}

// PresenceChanged implements ws.Publisher.
func (b *Bus) PresenceChanged(userID string, online bool) {
	b.publish(Event{Kind: KindPresence, UserID: userID, Online: online, At: time.Now().UTC()})
}

// MessageSaved implements ws.Publisher.
func (b *Bus) MessageSaved(m *models.Message) {
	b.publish(Event{Kind: KindMessage, UserID: m.Sender, Message: m, At: m.CreatedAt})
}

func (b *Bus) publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.queue <- ev:
	default:
		b.dropped.Add(1)
		b.log.Warn("event queue full, dropping event", zap.String("kind", string(ev.Kind)), zap.String("user", ev.UserID))
	}
}

// Dropped reports how many events were discarded on a full queue.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Close stops accepting events and waits for queued ones to be handled.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.queue)
	b.mu.Unlock()
	b.wg.Wait()
}

// SinkFunc adapts a function to Sink.
type SinkFunc struct {
	Label string
	Fn    func(ctx context.Context, ev Event) error
}

func (f SinkFunc) Name() string { return f.Label }

func (f SinkFunc) Handle(ctx context.Context, ev Event) error { return f.Fn(ctx, ev) }
