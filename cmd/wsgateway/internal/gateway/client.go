package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"github.com/georgij-terleckij/binance-bot.0.1/cmd/wsgateway/internal/hub"
	"github.com/georgij-terleckij/binance-bot.0.1/cmd/wsgateway/internal/protocol"
	"github.com/georgij-terleckij/binance-bot.0.1/pkg/config"
)

const (
	maxMessageSize = 512 * 1024
)

// ClientAdapter pumps frames between one raw connection and the hub.
// An idle read triggers a keepalive ping, never a disconnect; only
// peer close or a failed write ends the connection.
type ClientAdapter struct {
	conn    net.Conn
	manager *hub.Manager
	send    chan []byte
	logger  *zap.Logger

	writeWait   time.Duration
	idleTimeout time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

func NewClient(conn net.Conn, manager *hub.Manager, cfg config.GatewayConfig, logger *zap.Logger) *ClientAdapter {
	return &ClientAdapter{
		conn:        conn,
		manager:     manager,
		send:        make(chan []byte, 256),
		logger:      logger,
		writeWait:   cfg.WriteWait,
		idleTimeout: cfg.IdleTimeout,
		done:        make(chan struct{}),
	}
}

func (c *ClientAdapter) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *ClientAdapter) ID() string { return c.conn.RemoteAddr().String() }

func (c *ClientAdapter) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *ClientAdapter) SendJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.enqueue(b)
}

func (c *ClientAdapter) SendText(text string) error {
	return c.enqueue([]byte(text))
}

func (c *ClientAdapter) enqueue(b []byte) error {
	select {
	case <-c.done:
		return net.ErrClosed
	default:
	}

	select {
	case c.send <- b:
		return nil
	case <-c.done:
		return net.ErrClosed
	default:
		// Buffer full: drop the connection rather than block a broadcast
		return errors.New("send buffer full")
	}
}

func (c *ClientAdapter) readPump() {
	defer func() {
		c.manager.Unregister(c)
		c.Close()
		c.conn.Close()
	}()

	for {
		c.conn.SetReadDeadline(time.Now().Add(c.idleTimeout))

		header, err := ws.ReadHeader(c.conn)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				// Idle connection: keepalive instead of disconnect
				if err := c.SendJSON(protocol.Ping{Type: "ping", Timestamp: float64(time.Now().UnixNano()) / 1e9}); err != nil {
					return
				}
				continue
			}
			return
		}

		if header.Length > int64(maxMessageSize) {
			c.logger.Warn("Msg too big", zap.Int64("size", header.Length))
			return
		}

		if !header.Fin {
			c.logger.Warn("Client sent fragmented message (not supported)")
			return
		}

		payload := make([]byte, header.Length)
		if _, err := io.ReadFull(c.conn, payload); err != nil {
			return
		}

		if header.Masked {
			ws.Cipher(payload, header.Mask, 0)
		}

		switch header.OpCode {
		case ws.OpClose:
			return
		case ws.OpPing, ws.OpPong:
			continue
		case ws.OpText:
			c.manager.HandleMessage(c, payload)
		}
	}
}

func (c *ClientAdapter) writePump() {
	defer c.conn.Close()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			c.conn.Write(ws.CompiledClose)
			return

		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := wsutil.WriteServerText(c.conn, msg); err != nil {
				c.Close()
				return
			}
		}
	}
}
