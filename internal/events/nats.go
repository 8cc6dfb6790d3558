package events

import (
	"context"
	"encoding/json"
	"time"

	"foodmed/config"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

// Connect dials the NATS server with reconnects enabled.
func Connect(cfg *config.NATSConfig, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.URL,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
		nats.ReconnectJitter(100*time.Millisecond, 500*time.Millisecond),
		nats.Timeout(3*time.Second),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "connect nats %s", cfg.URL)
	}
	return nc, nil
}

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes presence transitions on <subject>.presence and stored
// messages on <subject>.message.
type NATSSink struct {
	pub     publisher
	subject string
}

func NewNATSSink(nc *nats.Conn, subject string) *NATSSink {
	return &NATSSink{pub: nc, subject: subject}
}

type presencePayload struct {
	UserID string    `json:"userId"`
	Online bool      `json:"online"`
	At     time.Time `json:"at"`
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Handle(_ context.Context, ev Event) error {
	var (
		subject string
		body    interface{}
	)
	switch ev.Kind {
	case KindPresence:
		subject = s.subject + ".presence"
		body = presencePayload{UserID: ev.UserID, Online: ev.Online, At: ev.At}
	case KindMessage:
		if ev.Message == nil {
			return nil
		}
		subject = s.subject + ".message"
		body = ev.Message
	default:
		return nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encode event")
	}
	if err := s.pub.Publish(subject, data); err != nil {
		return errors.Wrapf(err, "publish %s", subject)
	}
	return nil
}
