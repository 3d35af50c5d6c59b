package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxFrame   = 1 << 20
)

// Conn is a Transport over a websocket. The frame codec follows the
// negotiated subprotocol.
type Conn struct {
	ws    *websocket.Conn
	codec Codec

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// NewConn wraps an established websocket.
func NewConn(ws *websocket.Conn) (*Conn, error) {
	codec, err := CodecFor(ws.Subprotocol())
	if err != nil {
		return nil, err
	}
	return &Conn{ws: ws, codec: codec, closed: make(chan struct{})}, nil
}

// Codec returns the negotiated codec.
func (c *Conn) Codec() Codec {
	return c.codec
}

// Write encodes msg as one frame.
func (c *Conn) Write(msg Message) error {
	data, err := c.codec.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	frame := websocket.TextMessage
	if c.codec.Binary() {
		frame = websocket.BinaryMessage
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(frame, data)
}

// Close sends a close frame and closes the socket.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		close(c.closed)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.writeMu.Unlock()
		err = c.ws.Close()
	})
	return err
}

// Serve binds c to ep and reads frames into ep until the socket fails or ctx
// ends. The endpoint is closed on return. A normal close returns nil.
func (c *Conn) Serve(ctx context.Context, ep *Endpoint) error {
	ep.Bind(c)
	defer ep.Close()

	c.ws.SetReadLimit(maxFrame)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	stop := make(chan struct{})
	defer close(stop)
	go c.keepalive(ctx, stop)

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
				errors.Is(err, websocket.ErrCloseSent) {
				return nil
			}
			select {
			case <-c.closed:
				return nil
			default:
			}
			return err
		}

		var msg Message
		if err := c.codec.Unmarshal(data, &msg); err != nil {
			ep.log.Warn("dropping undecodable frame")
			continue
		}
		ep.Deliver(msg)
	}
}

func (c *Conn) keepalive(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			_ = c.Close()
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
