package router

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"foodmed/config"
	"foodmed/internal/auth"
	"foodmed/internal/models"
	"foodmed/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"
)

type memStore struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (s *memStore) Save(_ context.Context, sender, recipient, text string) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := models.Message{ID: uuid.NewString(), Sender: sender, Receiver: recipient, Content: text, CreatedAt: time.Now().UTC()}
	s.msgs = append(s.msgs, m)
	return &m, nil
}

func (s *memStore) Query(_ context.Context, q repository.HistoryQuery) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Message(nil), s.msgs...), nil
}

func testConfig(required bool) *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Env: "test", CORSOrigin: "*"},
		JWT:       config.JWTConfig{AccessSecret: "s3cret", Issuer: "foodmed", Required: required},
		Chat:      config.ChatConfig{SendBuffer: 16, MaxFrameBytes: 4096, MaxTextLen: 100, HistoryLimit: 50, WriteWait: time.Second, PongWait: 5 * time.Second},
		RateLimit: config.RateLimitConfig{Requests: 100, Window: time.Minute},
	}
}

func newServer(t *testing.T, cfg *config.Config, store Store) *httptest.Server {
	gin.SetMode(gin.TestMode)
	ctx, cancel := context.WithCancel(context.Background())
	engine, hub := Setup(ctx, cfg, Deps{Store: store}, zaptest.NewLogger(t))
	srv := httptest.NewServer(engine)
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
		cancel()
	})
	return srv
}

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dial(t *testing.T, srv *httptest.Server, token string) (*websocket.Conn, *http.Response, error) {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	if token != "" {
		url += "?token=" + token
	}
	return websocket.DefaultDialer.Dial(url, nil)
}

func await(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var f frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if f.Event == event {
			return f.Data
		}
	}
}

func TestSetup_Health(t *testing.T) {
	srv := newServer(t, testConfig(false), &memStore{})
	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestSetup_WebsocketRequiresToken(t *testing.T) {
	srv := newServer(t, testConfig(true), &memStore{})
	_, resp, err := dial(t, srv, "")
	if err == nil {
		t.Fatal("dial without token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v, want 401", resp)
	}
}

func TestSetup_TokenBindsIdentity(t *testing.T) {
	cfg := testConfig(true)
	store := &memStore{}
	srv := newServer(t, cfg, store)
	token, _ := auth.GenerateAccessToken(&cfg.JWT, "alice", "donor", time.Minute)

	conn, _, err := dial(t, srv, token)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	conn.WriteJSON(map[string]interface{}{"event": "identify", "data": "mallory"})
	var e struct {
		Code string `json:"code"`
	}
	json.Unmarshal(await(t, conn, "error"), &e)
	if e.Code != "validation" {
		t.Errorf("code = %q, want validation", e.Code)
	}

	conn.WriteJSON(map[string]interface{}{"event": "identify", "data": "alice"})
	conn.WriteJSON(map[string]interface{}{"event": "sendMessage", "data": map[string]string{"senderId": "alice", "recipientId": "bob", "text": "pickup at 5?"}})
	var m struct {
		Sender string `json:"sender"`
		Text   string `json:"text"`
	}
	json.Unmarshal(await(t, conn, "receiveMessage"), &m)
	if m.Sender != "alice" || m.Text != "pickup at 5?" {
		t.Errorf("echo = %+v", m)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/api/v1/messages", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	defer resp.Body.Close()
	var list []json.RawMessage
	json.NewDecoder(resp.Body).Decode(&list)
	if resp.StatusCode != http.StatusOK || len(list) != 1 {
		t.Errorf("history = %d with %d messages", resp.StatusCode, len(list))
	}
}
