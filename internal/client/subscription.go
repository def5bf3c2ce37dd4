package client

import (
	log "log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"Ephemera/internal/model"
)

const (
	// 服务端每 20s ping 一次
	readWait  = 45 * time.Second
	writeWait = 5 * time.Second
)

// wsSubscription 单个会话的 websocket 事件流
type wsSubscription struct {
	conn   *websocket.Conn
	events chan model.ChangeEvent
	done   chan struct{}
	once   sync.Once
}

func newWSSubscription(conn *websocket.Conn) *wsSubscription {
	s := &wsSubscription{
		conn:   conn,
		events: make(chan model.ChangeEvent, 64),
		done:   make(chan struct{}),
	}
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readWait))
		err := conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(writeWait))
		if err == websocket.ErrCloseSent {
			return nil
		}
		return err
	})
	go s.readLoop()
	return s
}

func (s *wsSubscription) readLoop() {
	defer close(s.events)
	for {
		_ = s.conn.SetReadDeadline(time.Now().Add(readWait))
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				log.Warn("event stream closed", "err", err)
			}
			return
		}

		var ev model.ChangeEvent
		if err = json.Unmarshal(data, &ev); err != nil {
			log.Warn("drop malformed change event", "err", err)
			continue
		}

		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *wsSubscription) Events() <-chan model.ChangeEvent { return s.events }

// Close 不等待读循环退出
func (s *wsSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.conn.Close()
	})
	return err
}
