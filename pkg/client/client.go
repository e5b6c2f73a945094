package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"classroom_chat/internal/protocol"
	apperrors "classroom_chat/pkg/errors"
	"classroom_chat/pkg/logger"

	"github.com/gorilla/websocket"
)

type Options struct {
	URL   string // ws://host/ws
	Token string

	// повторы касаются только первого рукопожатия
	MaxAttempts int
	MinBackoff  time.Duration
	MaxBackoff  time.Duration

	Dialer *websocket.Dialer
	Log    logger.Logger
}

func (o *Options) setDefaults() {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.MinBackoff <= 0 {
		o.MinBackoff = 500 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 8 * time.Second
	}
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	if o.Log == nil {
		o.Log = logger.Nop()
	}
}

// Client - соединение с мессенджером и реестр подписок на его события
type Client struct {
	*Registry

	conn    *websocket.Conn
	writeMu sync.Mutex
	log     logger.Logger
}

// Dial подключается, повторяя рукопожатие с экспоненциальной задержкой.
// Отказ по учетным данным (401) не повторяется
func Dial(ctx context.Context, opts Options) (*Client, error) {
	opts.setDefaults()

	header := http.Header{}
	header.Set("Authorization", "Bearer "+opts.Token)

	backoff := opts.MinBackoff
	var lastErr error
	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		conn, resp, err := opts.Dialer.DialContext(ctx, opts.URL, header)
		if err == nil {
			return &Client{Registry: NewRegistry(), conn: conn, log: opts.Log}, nil
		}

		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: server refused credential", apperrors.ErrUnauthorized)
		}
		lastErr = err
		opts.Log.Warn("Connect attempt failed", "attempt", attempt, "error", err, "retry_in", backoff.String())

		if attempt == opts.MaxAttempts {
			break
		}
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
		if backoff > opts.MaxBackoff {
			backoff = opts.MaxBackoff
		}
	}

	return nil, fmt.Errorf("connect failed after %d attempts: %w", opts.MaxAttempts, lastErr)
}

// Send отправляет намерение серверу
func (c *Client) Send(in protocol.Intent) error {
	frame, err := protocol.EncodeIntent(in)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// Run читает события и раздает их подписчикам до закрытия соединения или отмены ctx.
// Нормальное закрытие возвращает nil
func (c *Client) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = c.conn.Close() })
	defer stop()

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}

		ev, err := protocol.DecodeEvent(frame)
		if err != nil {
			c.log.Warn("Skipping unknown event", "error", err)
			continue
		}
		c.Emit(ev)
	}
}

func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	if err := c.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
