package handler

import (
	"context"
	log "log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"Ephemera/internal/api/dto"
	"Ephemera/internal/model"
	"Ephemera/internal/pkg/redis"
	"Ephemera/internal/pkg/response"
	"Ephemera/internal/pkg/security"
	"Ephemera/internal/service"
)

const (
	// 写超时
	writeWait = 10 * time.Second
	// 必须小于 pongWait
	pingPeriod = 20 * time.Second
	pongWait   = 30 * time.Second
	readLimit  = 1024
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// EventSubscriber 会话事件来源
type EventSubscriber interface {
	SubscribePair(ctx context.Context, pairKey string) (redis.EventStream, error)
}

type WsHandler struct {
	subscriber EventSubscriber
}

func NewWsHandler(subscriber EventSubscriber) *WsHandler {
	return &WsHandler{subscriber: subscriber}
}

// Connect 建立单个会话的事件流，只推送不接收
func (s *WsHandler) Connect(c *gin.Context) {
	var req dto.WSConnectReq
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	// 鉴权
	claims, err := security.ValidateToken(req.Token)
	if err != nil {
		log.WarnContext(c.Request.Context(), "WS 鉴权失败", "err", err)
		response.Error(c, service.UnauthorizedError)
		return
	}
	userID := claims.UserID
	if req.PeerID == userID {
		response.Error(c, service.ErrTargetUserInvalid)
		return
	}
	pairKey := model.PairKey(userID, req.PeerID)

	// 先确认订阅，再升级协议，握手完成后不会漏掉事件
	stream, err := s.subscriber.SubscribePair(c.Request.Context(), pairKey)
	if err != nil {
		log.ErrorContext(c.Request.Context(), "订阅会话频道失败", "pair_key", pairKey, "err", err)
		response.Error(c, err)
		return
	}
	defer func() {
		_ = stream.Close()
	}()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WS 协议升级失败", "err", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	log.Info("用户 WS 连接已建立", "userID", userID, "pair_key", pairKey)

	stopChan := make(chan struct{})

	// 读循环：处理 pong，监听客户端主动断开
	go func() {
		defer close(stopChan)
		conn.SetReadLimit(readLimit)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingTicker := time.NewTicker(pingPeriod)
	defer pingTicker.Stop()

	// 写循环：监听 Redis 并推送至客户端
	payloads := stream.Payloads()
	for {
		select {
		case payload, ok := <-payloads:
			if !ok {
				log.Warn("会话频道已关闭", "pair_key", pairKey)
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
				log.Error("WS 推送失败", "userID", userID, "err", err)
				return
			}
		case <-pingTicker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn("WS ping 失败", "userID", userID, "err", err)
				return
			}
		case <-stopChan:
			log.Info("用户 WS 连接已断开", "userID", userID)
			return
		}
	}
}
