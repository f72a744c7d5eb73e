package gateway

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/linguaflow/lingua-core/internal/protocol"
)

// client is one connected browser. Writes are serialized under writeMu
// because gorilla connections allow a single concurrent writer.
type client struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration
	writeMu      sync.Mutex
	done         chan struct{}
}

func (c *client) send(ev protocol.ServerEvent) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	_ = c.conn.WriteJSON(ev)
}

func (c *client) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// wsEmitter adapts the per-client websocket to the session event boundary.
type wsEmitter struct {
	c *client
}

func (e *wsEmitter) Status(message string) {
	e.c.send(protocol.ServerEvent{Type: protocol.EventStatus, Message: message})
}

func (e *wsEmitter) Translation(text, language string) {
	e.c.send(protocol.ServerEvent{
		Type:     protocol.EventTranslation,
		Text:     text,
		Language: language,
	})
}

func (e *wsEmitter) Error(message string) {
	e.c.send(protocol.ServerEvent{Type: protocol.EventError, Message: message})
}
