package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// pongWait is how long a peer may stay silent, pongs included
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 128
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrBufferExceeded   = errors.New("connection buffer exceeded")
)

// Connection wraps a websocket and serializes outbound writes through a
// buffered queue drained by a single writer goroutine.
type Connection struct {
	id       string
	UserID   int64
	TenantID int64

	ws        *websocket.Conn
	send      chan []byte
	done      chan struct{}
	once      sync.Once
	start     sync.Once
	readWait  time.Duration
	pingEvery time.Duration
}

func NewConnection(userID, tenantID int64, ws *websocket.Conn) *Connection {
	c := &Connection{
		id:        uuid.NewString(),
		UserID:    userID,
		TenantID:  tenantID,
		ws:        ws,
		send:      make(chan []byte, sendBuffer),
		done:      make(chan struct{}),
		readWait:  pongWait,
		pingEvery: pingPeriod,
	}
	ws.SetPongHandler(func(string) error {
		return c.extendRead()
	})
	return c
}

func (c *Connection) extendRead() error {
	return c.ws.SetReadDeadline(time.Now().Add(c.readWait))
}

// ReadFrame blocks for the next inbound message. A peer that sends neither
// frames nor pongs within the read window gets a timeout error.
func (c *Connection) ReadFrame() (int, []byte, error) {
	if err := c.extendRead(); err != nil {
		return 0, nil, err
	}
	return c.ws.ReadMessage()
}

func (c *Connection) ID() string {
	return c.id
}

// Start launches the write loop; extra calls are ignored
func (c *Connection) Start() {
	c.start.Do(func() {
		go c.writeLoop()
	})
}

// Send enqueues payload. A client that cannot keep up is disconnected so
// memory stays bounded.
func (c *Connection) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}
	select {
	case <-c.done:
		return ErrConnectionClosed
	case c.send <- payload:
		return nil
	default:
		c.Close(websocket.CloseGoingAway, "send buffer full")
		return ErrBufferExceeded
	}
}

// Close terminates the connection and stops the write loop
func (c *Connection) Close(code int, reason string) {
	c.once.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
		_ = c.ws.Close()
	})
}

// Done is closed once the connection is shut down
func (c *Connection) Done() <-chan struct{} {
	return c.done
}

func (c *Connection) writeLoop() {
	ticker := time.NewTicker(c.pingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "write failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close(websocket.CloseAbnormalClosure, "ping failed")
				return
			}
		}
	}
}

func (c *Connection) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}
