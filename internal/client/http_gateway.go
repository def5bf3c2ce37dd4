package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"Ephemera/internal/api/config"
	"Ephemera/internal/chat"
	"Ephemera/internal/model"
	"Ephemera/internal/pkg/logger"
)

const (
	codeOK       = 200
	codeConflict = 409
)

// APIError 网关返回的业务错误
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway code %d: %s", e.Code, e.Message)
}

// Unwrap 业务错误都是确定性的拒绝，重发同样的请求不会成功
func (e *APIError) Unwrap() error { return chat.ErrRejectedWrite }

type envelope struct {
	Code    int             `json:"Code"`
	Message string          `json:"Message"`
	Data    json.RawMessage `json:"Data"`
}

// HTTPGateway 通过 HTTP + websocket 访问同步网关
type HTTPGateway struct {
	client  *resty.Client
	baseURL string
	token   string
	dialer  *websocket.Dialer
}

var _ chat.Gateway = (*HTTPGateway)(nil)

func NewHTTPGateway(cfg config.GatewayConfig) *HTTPGateway {
	timeout := time.Duration(cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	client := resty.New().
		SetTransport(logger.NewHTTPTransport(nil)).
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(cfg.Token).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)

	return &HTTPGateway{
		client:  client,
		baseURL: baseURL,
		token:   cfg.Token,
		dialer:  &websocket.Dialer{HandshakeTimeout: timeout},
	}
}

func (g *HTTPGateway) CreateMessage(ctx context.Context, receiverID uint64, kind model.MessageKind, content string) (*model.Message, error) {
	var m model.Message
	req := g.client.R().SetContext(ctx).SetBody(map[string]any{
		"receiver_id": receiverID,
		"kind":        kind,
		"content":     content,
	})
	if err := g.do(req, http.MethodPost, "/api/messages", &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (g *HTTPGateway) AmendMessage(ctx context.Context, id, newContent string, newUpdatedAt time.Time) (*model.Message, error) {
	var m model.Message
	req := g.client.R().SetContext(ctx).
		SetPathParam("id", id).
		SetBody(map[string]any{
			"content":    newContent,
			"updated_at": newUpdatedAt.UTC(),
		})
	if err := g.do(req, http.MethodPut, "/api/messages/{id}", &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (g *HTTPGateway) ListMessages(ctx context.Context, peerID uint64, since time.Time) ([]model.Message, error) {
	var msgs []model.Message
	req := g.client.R().SetContext(ctx).SetQueryParams(map[string]string{
		"peer_id": strconv.FormatUint(peerID, 10),
		"since":   since.UTC().Format(time.RFC3339Nano),
	})
	if err := g.do(req, http.MethodGet, "/api/messages", &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

func (g *HTTPGateway) Stats(ctx context.Context, peerID uint64) (*model.ConversationStats, error) {
	var stats model.ConversationStats
	req := g.client.R().SetContext(ctx).SetPathParam("peer_id", strconv.FormatUint(peerID, 10))
	if err := g.do(req, http.MethodGet, "/api/conversations/{peer_id}/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// RegisterPushToken 上报本设备的推送 token
func (g *HTTPGateway) RegisterPushToken(ctx context.Context, token string) error {
	req := g.client.R().SetContext(ctx).SetBody(map[string]string{"token": token})
	return g.do(req, http.MethodPut, "/api/push-token", nil)
}

func (g *HTTPGateway) Subscribe(ctx context.Context, peerID uint64) (chat.Subscription, error) {
	u, err := url.Parse(g.baseURL + "/api/ws")
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("peer_id", strconv.FormatUint(peerID, 10))
	q.Set("token", g.token)
	u.RawQuery = q.Encode()

	conn, _, err := g.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial event stream: %v", chat.ErrTransientWrite, err)
	}
	return newWSSubscription(conn), nil
}

// do 发送请求并解析统一响应体
func (g *HTTPGateway) do(req *resty.Request, method, path string, out any) error {
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%w: %v", chat.ErrTransientWrite, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("%w: http status %d", chat.ErrTransientWrite, resp.StatusCode())
	}

	var env envelope
	if err = json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("%w: decode envelope: %v", chat.ErrTransientWrite, err)
	}

	switch {
	case env.Code == codeOK:
	case env.Code == codeConflict:
		return fmt.Errorf("%w: %s", chat.ErrStaleAmend, env.Message)
	case env.Code >= 500:
		return fmt.Errorf("%w: %s", chat.ErrTransientWrite, (&APIError{Code: env.Code, Message: env.Message}).Error())
	default:
		return &APIError{Code: env.Code, Message: env.Message}
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err = json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decode data: %v", chat.ErrTransientWrite, err)
	}
	return nil
}
