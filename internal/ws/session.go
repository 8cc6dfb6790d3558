package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"foodmed/internal/domain"
	"foodmed/internal/models"

	"go.uber.org/zap"
)

// MessageStore persists chat messages before they are delivered live.
type MessageStore interface {
	Save(ctx context.Context, sender, recipient, text string) (*models.Message, error)
}

// State is the lifecycle of one connection.
type State int

const (
	StateConnected State = iota
	StateIdentified
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateIdentified:
		return "identified"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

var errSessionClosed = errors.New("ws: session is closed")

type actionKind int

const (
	actIdentify actionKind = iota + 1
	actJoin
	actSend
)

type action struct {
	kind   actionKind
	userID string
	rooms  []string
	send   SendPayload
}

// next computes the transition for one inbound event. It has no side effects;
// the session applies the returned action and commits the state only if the
// action succeeds.
func next(st State, f Frame, maxText int) (State, action, error) {
	if st == StateClosed {
		return st, action{}, errSessionClosed
	}
	switch f.Event {
	case domain.EventIdentify, domain.EventOnline, domain.EventRegister:
		p, err := parseIdentify(f.Data)
		if err != nil {
			return st, action{}, err
		}
		return StateIdentified, action{kind: actIdentify, userID: p.UserID}, nil
	case domain.EventJoinRoom:
		p, err := parseJoinRoom(f.Data)
		if err != nil {
			return st, action{}, err
		}
		return st, action{kind: actJoin, userID: p.SenderID, rooms: []string{p.SenderID, p.RecipientID}}, nil
	case domain.EventSendMessage, domain.EventPrivateMsg:
		p, err := parseSend(f.Data, maxText)
		if err != nil {
			return st, action{}, err
		}
		return st, action{kind: actSend, userID: p.SenderID, send: p}, nil
	}
	return st, action{}, validationErr("unknown event %q", f.Event)
}

// SessionOptions configure a Session.
type SessionOptions struct {
	// MaxTextLen bounds message text in characters; zero means unbounded.
	MaxTextLen int
	// AuthUser, when set, is the only identity the connection may act as.
	AuthUser string
}

// Session routes the events of one connection to the hub and the store.
// Handle must be called from a single goroutine.
type Session struct {
	client *Client
	hub    *Hub
	store  MessageStore
	opts   SessionOptions
	log    *zap.Logger

	mu     sync.Mutex
	state  State
	userID string
}

// NewSession attaches c to the hub in the Connected state. log is expected to
// carry the connection id already.
func NewSession(c *Client, hub *Hub, store MessageStore, opts SessionOptions, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{
		client: c,
		hub:    hub,
		store:  store,
		opts:   opts,
		log:    log,
		state:  StateConnected,
	}
	hub.Attach(c)
	return s
}

func (s *Session) Client() *Client {
	return s.client
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// UserID is the identity bound by the last successful identify event.
func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// HandleRaw decodes and handles one websocket message.
func (s *Session) HandleRaw(ctx context.Context, raw []byte) error {
	f, err := ParseFrame(raw)
	if err != nil {
		s.reject("", err)
		return err
	}
	return s.Handle(ctx, f)
}

// Handle dispatches one event. Failures are reported to this connection as an
// error frame and returned; they never close the connection.
func (s *Session) Handle(ctx context.Context, f Frame) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in event handler", zap.String("event", f.Event), zap.Any("panic", r))
			err = fmt.Errorf("internal error handling %q", f.Event)
			s.reject(f.Event, err)
		}
	}()

	nextState, act, err := next(s.State(), f, s.opts.MaxTextLen)
	if err != nil {
		if !errors.Is(err, errSessionClosed) {
			s.reject(f.Event, err)
		}
		return err
	}
	if d, ok := DialectOf(f.Event); ok && d == DialectLegacy {
		s.client.SetDialect(DialectLegacy)
	}
	if s.opts.AuthUser != "" && act.userID != s.opts.AuthUser {
		err = validationErr("%s may only act as %q", f.Event, s.opts.AuthUser)
		s.reject(f.Event, err)
		return err
	}

	switch act.kind {
	case actIdentify:
		err = s.identify(act.userID, nextState)
	case actJoin:
		err = s.hub.Join(s.client, s.opts.AuthUser, act.rooms...)
	case actSend:
		err = s.send(ctx, act.send)
	}
	if err != nil {
		if errors.Is(err, ErrNotAttached) {
			return err
		}
		s.reject(f.Event, err)
	}
	return err
}

func (s *Session) identify(userID string, nextState State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return errSessionClosed
	}
	if err := s.hub.Identify(s.client, userID); err != nil {
		return err
	}
	s.state = nextState
	s.userID = userID
	s.log.Debug("identified", zap.String("user", userID))
	return nil
}

func (s *Session) send(ctx context.Context, p SendPayload) error {
	m, err := s.store.Save(ctx, p.SenderID, p.RecipientID, p.Text)
	if err != nil {
		if !errors.Is(err, domain.ErrPersistence) {
			err = fmt.Errorf("%w: %w", domain.ErrPersistence, err)
		}
		s.log.Warn("message not stored", zap.String("sender", p.SenderID), zap.String("recipient", p.RecipientID), zap.Error(err))
		return err
	}
	n := s.hub.Deliver(s.client, m)
	s.log.Debug("message delivered", zap.String("id", m.ID), zap.Int("connections", n))
	return nil
}

func (s *Session) reject(event string, err error) {
	s.hub.Reject(s.client, event, err)
}

// Close moves the session to Closed and releases its presence. It is
// idempotent and must run on every disconnect, graceful or not.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateClosed {
		return
	}
	s.state = StateClosed
	s.hub.Detach(s.client)
}
