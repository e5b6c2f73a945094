package handler

import (
	"sync"
	"time"

	"classroom_chat/internal/config"
	"classroom_chat/internal/domain"
	"classroom_chat/internal/protocol"
	"classroom_chat/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const maxFrameSize = 64 * 1024

// wsClient - одно WebSocket-соединение. Пишет в сокет только writePump
type wsClient struct {
	id   string
	user *domain.User
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
	cfg       config.MessagingConfig
	log       logger.Logger
}

func newWSClient(conn *websocket.Conn, user *domain.User, cfg config.MessagingConfig, log logger.Logger) *wsClient {
	id := uuid.NewString()
	return &wsClient{
		id:   id,
		user: user,
		conn: conn,
		send: make(chan []byte, cfg.SendBuffer),
		done: make(chan struct{}),
		cfg:  cfg,
		log:  log.With("conn_id", id, "user_id", user.ID),
	}
}

func (c *wsClient) ID() string    { return c.id }
func (c *wsClient) UserID() int64 { return c.user.ID }

// Enqueue не блокирует. Переполненная очередь значит медленного клиента: соединение закрывается,
// клиент переподключится и доберет пропущенное из истории
func (c *wsClient) Enqueue(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- frame:
		return true
	default:
		c.log.Warn("Send buffer is full, closing slow connection")
		c.close()
		return false
	}
}

// sendEvent отвечает только этому соединению
func (c *wsClient) sendEvent(ev protocol.Event) {
	frame, err := protocol.EncodeEvent(ev)
	if err != nil {
		c.log.Error("Failed to encode event", "error", err, "event", ev.EventType())
		return
	}
	c.Enqueue(frame)
}

// close только сигнализирует; сокет закрывает writePump, поэтому вызов не блокируется
func (c *wsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// readPump читает кадры до ошибки чтения; handle вызывается последовательно
func (c *wsClient) readPump(handle func(frame []byte)) {
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("WebSocket read error", "error", err)
			}
			return
		}
		handle(frame)
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("WebSocket write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.cfg.WriteWait))
			return
		}
	}
}
