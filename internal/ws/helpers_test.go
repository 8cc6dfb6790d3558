package ws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"foodmed/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"
)

type memStore struct {
	mu   sync.Mutex
	msgs []*models.Message
	err  error
	now  time.Time
}

func newMemStore() *memStore {
	return &memStore{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (s *memStore) Save(ctx context.Context, sender, recipient, text string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.now = s.now.Add(time.Millisecond)
	m := &models.Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Receiver:  recipient,
		Content:   text,
		CreatedAt: s.now,
		UpdatedAt: s.now,
	}
	s.msgs = append(s.msgs, m)
	return m, nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.msgs)
}

type recordingPublisher struct {
	mu       sync.Mutex
	presence []string
	messages []string
}

func (p *recordingPublisher) PresenceChanged(userID string, online bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	state := "offline"
	if online {
		state = "online"
	}
	p.presence = append(p.presence, userID+":"+state)
}

func (p *recordingPublisher) MessageSaved(m *models.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, m.ID)
}

type frameOut struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// drain returns every frame queued on c without blocking.
func drain(t *testing.T, c *Client) []frameOut {
	t.Helper()
	var out []frameOut
	for {
		select {
		case raw, ok := <-c.Outbound():
			if !ok {
				return out
			}
			var f frameOut
			if err := json.Unmarshal(raw, &f); err != nil {
				t.Fatalf("bad frame %s: %v", raw, err)
			}
			out = append(out, f)
		default:
			return out
		}
	}
}

func only(frames []frameOut, event string) []frameOut {
	var out []frameOut
	for _, f := range frames {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

func newTestHub(t *testing.T, pub Publisher) *Hub {
	return NewHub(NewRegistry(), pub, zaptest.NewLogger(t))
}

func newTestSession(t *testing.T, hub *Hub, store MessageStore, id string, opts SessionOptions) *Session {
	return NewSession(NewClient(id, 16), hub, store, opts, zaptest.NewLogger(t))
}

func frame(t *testing.T, event string, data interface{}) Frame {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return Frame{Event: event, Data: raw}
}
