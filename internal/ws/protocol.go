package ws

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"foodmed/internal/domain"
	"foodmed/internal/models"
)

// Frame is the envelope of every websocket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Dialect selects the outbound event names and payload shapes of a connection.
// Legacy clients speak register / private message / user-list.
type Dialect int32

const (
	DialectStandard Dialect = iota
	DialectLegacy
)

// DialectOf reports which dialect an inbound event name belongs to.
func DialectOf(event string) (Dialect, bool) {
	switch event {
	case domain.EventRegister, domain.EventPrivateMsg:
		return DialectLegacy, true
	case domain.EventIdentify, domain.EventOnline, domain.EventSendMessage, domain.EventJoinRoom:
		return DialectStandard, true
	}
	return DialectStandard, false
}

func validationErr(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", domain.ErrValidation, fmt.Sprintf(format, args...))
}

// ParseFrame decodes one inbound websocket message.
func ParseFrame(raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, validationErr("malformed frame")
	}
	f.Event = strings.TrimSpace(f.Event)
	if f.Event == "" {
		return Frame{}, validationErr("event is required")
	}
	return f, nil
}

// IdentifyPayload is either a bare JSON string or {"userId": "..."}.
type IdentifyPayload struct {
	UserID string
}

func parseIdentify(data json.RawMessage) (IdentifyPayload, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return IdentifyPayload{}, validationErr("user id is required")
	}
	var id string
	if data[0] == '"' {
		if err := json.Unmarshal(data, &id); err != nil {
			return IdentifyPayload{}, validationErr("malformed identify payload")
		}
	} else {
		var obj struct {
			UserID   string `json:"userId"`
			Username string `json:"username"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return IdentifyPayload{}, validationErr("malformed identify payload")
		}
		id = firstNonEmpty(obj.UserID, obj.Username)
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return IdentifyPayload{}, validationErr("user id is required")
	}
	return IdentifyPayload{UserID: id}, nil
}

// JoinRoomPayload names the two identifiers a connection wants to address.
type JoinRoomPayload struct {
	SenderID    string
	RecipientID string
}

func parseJoinRoom(data json.RawMessage) (JoinRoomPayload, error) {
	var obj struct {
		SenderID    string `json:"senderId"`
		Sender      string `json:"sender"`
		RecipientID string `json:"recipientId"`
		Receiver    string `json:"receiver"`
	}
	if len(bytes.TrimSpace(data)) == 0 || json.Unmarshal(data, &obj) != nil {
		return JoinRoomPayload{}, validationErr("malformed joinRoom payload")
	}
	p := JoinRoomPayload{
		SenderID:    strings.TrimSpace(firstNonEmpty(obj.SenderID, obj.Sender)),
		RecipientID: strings.TrimSpace(firstNonEmpty(obj.RecipientID, obj.Receiver)),
	}
	if p.SenderID == "" || p.RecipientID == "" {
		return JoinRoomPayload{}, validationErr("senderId and recipientId are required")
	}
	return p, nil
}

// SendPayload is a chat message as submitted by a client.
type SendPayload struct {
	SenderID    string
	RecipientID string
	Text        string
}

func parseSend(data json.RawMessage, maxText int) (SendPayload, error) {
	var obj struct {
		SenderID    string `json:"senderId"`
		Sender      string `json:"sender"`
		RecipientID string `json:"recipientId"`
		Receiver    string `json:"receiver"`
		Text        string `json:"text"`
		Content     string `json:"content"`
	}
	if len(bytes.TrimSpace(data)) == 0 || json.Unmarshal(data, &obj) != nil {
		return SendPayload{}, validationErr("malformed message payload")
	}
	p := SendPayload{
		SenderID:    strings.TrimSpace(firstNonEmpty(obj.SenderID, obj.Sender)),
		RecipientID: strings.TrimSpace(firstNonEmpty(obj.RecipientID, obj.Receiver)),
		Text:        firstNonEmpty(obj.Text, obj.Content),
	}
	switch {
	case p.SenderID == "":
		return SendPayload{}, validationErr("senderId is required")
	case p.RecipientID == "":
		return SendPayload{}, validationErr("recipientId is required")
	case strings.TrimSpace(p.Text) == "":
		return SendPayload{}, validationErr("text must not be empty")
	case maxText > 0 && len([]rune(p.Text)) > maxText:
		return SendPayload{}, validationErr("text exceeds %d characters", maxText)
	}
	return p, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Snapshot is one version of the online set.
type Snapshot struct {
	Users   []string `json:"users"`
	Version uint64   `json:"version"`
}

// legacyMessage is the document shape older clients render.
type legacyMessage struct {
	ID        string    `json:"_id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ErrorPayload is sent to the originating connection only.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

func encodeSnapshot(d Dialect, s Snapshot) []byte {
	if d == DialectLegacy {
		return mustEncode(domain.EventUserList, s.Users)
	}
	return mustEncode(domain.EventOnlineUsers, s)
}

func encodeMessage(d Dialect, m *models.Message) []byte {
	if d == DialectLegacy {
		return mustEncode(domain.EventPrivateMsg, legacyMessage{
			ID:        m.ID,
			Sender:    m.Sender,
			Receiver:  m.Receiver,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		})
	}
	return mustEncode(domain.EventReceiveMessage, m)
}

// encodeError keeps store and internal failure details out of client frames.
func encodeError(event string, err error) []byte {
	code := domain.ErrorCode(err)
	msg := err.Error()
	switch code {
	case domain.ErrorCodePersistence:
		msg = "message could not be stored"
	case domain.ErrorCodeInternal:
		msg = "internal error"
	}
	return mustEncode(domain.EventError, ErrorPayload{
		Code:    code,
		Message: msg,
		Event:   event,
	})
}

// mustEncode marshals frames built from plain structs, which cannot fail.
func mustEncode(event string, data interface{}) []byte {
	b, err := json.Marshal(outFrame{Event: event, Data: data})
	if err != nil {
		panic(fmt.Sprintf("ws: encode %s: %v", event, err))
	}
	return b
}
