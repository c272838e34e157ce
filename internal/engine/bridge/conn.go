package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 64 << 10
	sendBuffer     = 32
	eventBuffer    = 64
)

var errPageGone = errors.New("player page disconnected")

// pageConn is one websocket connection to a player page.
type pageConn struct {
	ws     *websocket.Conn
	logger *log.Logger

	send   chan []byte
	events chan message
	done   chan struct{}
	once   sync.Once

	nextID  atomic.Uint64
	mu      sync.Mutex
	pending map[uint64]chan message
}

func newPageConn(ws *websocket.Conn, logger *log.Logger) *pageConn {
	return &pageConn{
		ws:      ws,
		logger:  logger,
		send:    make(chan []byte, sendBuffer),
		events:  make(chan message, eventBuffer),
		done:    make(chan struct{}),
		pending: make(map[uint64]chan message),
	}
}

// close tears the connection down and fails every pending call.
func (c *pageConn) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

func (c *pageConn) write(m message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errPageGone
	}
}

// call sends a method call and waits for its result.
func (c *pageConn) call(ctx context.Context, method string, args any) (json.RawMessage, error) {
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	id := c.nextID.Add(1)
	reply := make(chan message, 1)
	c.mu.Lock()
	c.pending[id] = reply
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(message{Type: msgCall, ID: id, Method: method, Args: raw}); err != nil {
		return nil, err
	}

	select {
	case m := <-reply:
		if m.Error != "" {
			return nil, errors.New(m.Error)
		}
		return m.Data, nil
	case <-c.done:
		return nil, errPageGone
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *pageConn) resolve(m message) {
	c.mu.Lock()
	reply, ok := c.pending[m.ID]
	c.mu.Unlock()
	if !ok {
		c.logger.Debug("result for unknown call", "id", m.ID)
		return
	}
	select {
	case reply <- m:
	default:
		c.logger.Debug("duplicate result", "id", m.ID)
	}
}

// readPump reads frames until the connection fails. Results resolve
// pending calls; everything else goes to handle. Events are queued in
// arrival order.
func (c *pageConn) readPump(handle func(message)) {
	defer func() {
		c.close()
		close(c.events)
	}()

	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var m message
		if err := c.ws.ReadJSON(&m); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("player page read error", "err", err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		switch m.Type {
		case msgResult:
			c.resolve(m)
		case msgEvent:
			select {
			case c.events <- m:
			case <-c.done:
				return
			}
		default:
			handle(m)
		}
	}
}

// writePump owns all writes to the socket.
func (c *pageConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}
