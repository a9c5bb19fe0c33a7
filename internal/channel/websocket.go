package channel

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMessageSize = 1 << 20
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Upgrade promotes an HTTP request to a websocket-backed Channel.
func Upgrade(w http.ResponseWriter, r *http.Request) (Channel, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newWSChannel(conn), nil
}

// wsChannel wraps a gorilla websocket connection. Writes are serialized
// through a mutex (a connection supports only one writer at a time); reads
// run on a dedicated goroutine feeding the registered onMessage callback.
type wsChannel struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool

	onMessage func([]byte)
	onClose   func()

	send chan []byte
	done chan struct{}
}

func newWSChannel(conn *websocket.Conn) *wsChannel {
	c := &wsChannel{
		conn: conn,
		send: make(chan []byte, 64),
		done: make(chan struct{}),
	}
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.writePump()
	go c.readPump()

	return c
}

func (c *wsChannel) OnMessage(cb func([]byte)) { c.onMessage = cb }
func (c *wsChannel) OnClose(cb func())         { c.onClose = cb }

func (c *wsChannel) Send(data []byte) error {
	c.closeMu.Lock()
	closed := c.closed
	c.closeMu.Unlock()
	if closed {
		return ErrClosed
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

func (c *wsChannel) Close() error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	c.closeMu.Unlock()

	close(c.done)
	err := c.conn.Close()
	if c.onClose != nil {
		c.onClose()
	}
	return err
}

func (c *wsChannel) readPump() {
	defer c.Close()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if c.onMessage != nil {
			c.onMessage(data)
		}
	}
}

func (c *wsChannel) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.Close()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				return
			}
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.TextMessage, data)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
