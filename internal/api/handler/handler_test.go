package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Ephemera/internal/api/dto"
	"Ephemera/internal/api/middleware"
	"Ephemera/internal/model"
	"Ephemera/internal/pkg/redis"
	"Ephemera/internal/pkg/security"
	"Ephemera/internal/service"
)

type stubMessageService struct {
	created  *dto.CreateMessageReq
	senderID uint64
	amendErr error
	since    time.Time
}

func (s *stubMessageService) Create(_ context.Context, senderID uint64, req *dto.CreateMessageReq) (*model.Message, error) {
	s.senderID = senderID
	s.created = req
	return &model.Message{ID: "m1", SenderID: senderID, ReceiverID: req.ReceiverID, Kind: model.MessageKind(req.Kind), Content: req.Content}, nil
}

func (s *stubMessageService) Amend(_ context.Context, _ uint64, id string, req *dto.AmendMessageReq) (*model.Message, error) {
	if s.amendErr != nil {
		return nil, s.amendErr
	}
	return &model.Message{ID: id, Content: req.Content}, nil
}

func (s *stubMessageService) Delete(_ context.Context, _ uint64, id string) (*model.Message, error) {
	return &model.Message{ID: id, IsDeleted: true}, nil
}

func (s *stubMessageService) List(_ context.Context, _, _ uint64, since time.Time) ([]model.Message, error) {
	s.since = since
	return []model.Message{{ID: "a"}, {ID: "b"}}, nil
}

func (s *stubMessageService) Stats(_ context.Context, callerID, peerID uint64) (*model.ConversationStats, error) {
	return &model.ConversationStats{PairKey: model.PairKey(callerID, peerID), MessageCount: 57}, nil
}

type envelope struct {
	Code    int
	Message string
	Data    json.RawMessage
}

func newRouter(svc service.MessageService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	security.Configure("handler-test", "Ephemera", time.Hour)

	h := NewMessageHandler(svc)
	r := gin.New()
	g := r.Group("/api", middleware.AuthMiddleware())
	g.POST("/messages", h.Create)
	g.GET("/messages", h.List)
	g.PUT("/messages/:id", h.Amend)
	g.DELETE("/messages/:id", h.Delete)
	g.GET("/conversations/:peer_id/stats", h.Stats)
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any, userID uint64) envelope {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != 0 {
		token, err := security.GenerateToken(userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestCreate_UsesTokenIdentity(t *testing.T) {
	svc := &stubMessageService{}
	r := newRouter(svc)

	env := do(t, r, http.MethodPost, "/api/messages", map[string]any{"receiver_id": 2, "kind": "text", "content": "hi"}, 1)
	require.Equal(t, 200, env.Code)
	assert.Equal(t, uint64(1), svc.senderID)

	var m model.Message
	require.NoError(t, json.Unmarshal(env.Data, &m))
	assert.Equal(t, "m1", m.ID)
	assert.Equal(t, "hi", m.Content)
}

func TestCreate_RejectsBadInput(t *testing.T) {
	r := newRouter(&stubMessageService{})

	env := do(t, r, http.MethodPost, "/api/messages", map[string]any{"receiver_id": 2, "kind": "image", "content": "x"}, 1)
	assert.Equal(t, 400, env.Code)

	env = do(t, r, http.MethodPost, "/api/messages", map[string]any{"receiver_id": 2, "kind": "text", "content": "x"}, 0)
	assert.Equal(t, 401, env.Code)
}

func TestAmend_StaleMapsToConflict(t *testing.T) {
	r := newRouter(&stubMessageService{amendErr: service.ErrStaleAmend})

	env := do(t, r, http.MethodPut, "/api/messages/m1", map[string]any{"content": "hi there"}, 1)
	assert.Equal(t, 409, env.Code)
	assert.Equal(t, service.ErrStaleAmend.Error(), env.Message)
}

func TestList_ParsesSince(t *testing.T) {
	svc := &stubMessageService{}
	r := newRouter(svc)

	env := do(t, r, http.MethodGet, "/api/messages?peer_id=2&since=2026-03-01T12:00:00.250Z", nil, 1)
	require.Equal(t, 200, env.Code)
	assert.True(t, svc.since.Equal(time.Date(2026, 3, 1, 12, 0, 0, 250e6, time.UTC)))

	var msgs []model.Message
	require.NoError(t, json.Unmarshal(env.Data, &msgs))
	assert.Len(t, msgs, 2)

	env = do(t, r, http.MethodGet, "/api/messages", nil, 1)
	assert.Equal(t, 400, env.Code)
}

func TestStats(t *testing.T) {
	r := newRouter(&stubMessageService{})

	env := do(t, r, http.MethodGet, "/api/conversations/2/stats", nil, 1)
	require.Equal(t, 200, env.Code)
	var stats model.ConversationStats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(57), stats.MessageCount)

	env = do(t, r, http.MethodGet, "/api/conversations/abc/stats", nil, 1)
	assert.Equal(t, 400, env.Code)
}

type stubStream struct {
	ch     chan string
	closed chan struct{}
}

func (s *stubStream) Payloads() <-chan string { return s.ch }

func (s *stubStream) Close() error {
	close(s.closed)
	return nil
}

type stubSubscriber struct {
	pairKey string
	stream  *stubStream
}

func (s *stubSubscriber) SubscribePair(_ context.Context, pairKey string) (redis.EventStream, error) {
	s.pairKey = pairKey
	return s.stream, nil
}

func TestWsConnect_RelaysPairEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	security.Configure("handler-test", "Ephemera", time.Hour)

	sub := &stubSubscriber{stream: &stubStream{ch: make(chan string, 1), closed: make(chan struct{})}}
	r := gin.New()
	r.GET("/api/ws", NewWsHandler(sub).Connect)
	srv := httptest.NewServer(r)
	defer srv.Close()

	token, err := security.GenerateToken(7)
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws?peer_id=3&token=" + token

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	assert.Equal(t, "3_7", sub.pairKey)

	sub.stream.ch <- `{"event_type":"insert"}`
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event_type":"insert"}`, string(data))

	require.NoError(t, conn.Close())
	select {
	case <-sub.stream.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed after client disconnect")
	}
}

func TestWsConnect_RejectsBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/api/ws", NewWsHandler(&stubSubscriber{}).Connect)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/ws?peer_id=3&token=bogus", nil))

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, 401, env.Code)
}
