package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"foodmed/internal/models"

	"go.uber.org/zap/zaptest"
)

type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) sink() Sink {
	return SinkFunc{Label: "collector", Fn: func(_ context.Context, ev Event) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.events = append(c.events, ev)
		return nil
	}}
}

func TestBus_DeliversInOrder(t *testing.T) {
	col := &collector{}
	failing := SinkFunc{Label: "failing", Fn: func(context.Context, Event) error { return errors.New("down") }}
	b := NewBus(16, zaptest.NewLogger(t), failing, col.sink())
	b.Start(context.Background())

	b.PresenceChanged("alice", true)
	b.MessageSaved(&models.Message{ID: "m1", Sender: "alice", Receiver: "bob", CreatedAt: time.Now()})
	b.PresenceChanged("alice", false)
	b.Close()

	if len(col.events) != 3 {
		t.Fatalf("got %d events, want 3", len(col.events))
	}
	if ev := col.events[0]; ev.Kind != KindPresence || ev.UserID != "alice" || !ev.Online {
		t.Errorf("events[0] = %+v", ev)
	}
	if ev := col.events[1]; ev.Kind != KindMessage || ev.Message.ID != "m1" {
		t.Errorf("events[1] = %+v", ev)
	}
	if ev := col.events[2]; ev.Online {
		t.Errorf("events[2] = %+v, want offline", ev)
	}
}

func TestBus_DropsWhenFull(t *testing.T) {
	col := &collector{}
	b := NewBus(1, zaptest.NewLogger(t), col.sink())

	b.PresenceChanged("a", true)
	b.PresenceChanged("b", true)
	b.PresenceChanged("c", true)
	if got := b.Dropped(); got != 2 {
		t.Errorf("Dropped = %d, want 2", got)
	}

	b.Start(context.Background())
	b.Close()
	if len(col.events) != 1 || col.events[0].UserID != "a" {
		t.Errorf("events = %+v", col.events)
	}
}

func TestBus_PublishAfterClose(t *testing.T) {
	b := NewBus(4, zaptest.NewLogger(t))
	b.Start(context.Background())
	b.Close()
	b.Close()
	b.PresenceChanged("alice", true)
	if b.Dropped() != 0 {
		t.Errorf("Dropped = %d, want 0", b.Dropped())
	}
}
