package ws

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
	"chatrelay-backend/internal/auth"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
	sendBufSize  = 256
)

// Client is one authenticated websocket connection. Its identity is fixed at
// handshake time; its subscription set lives in the Gateway and is rebuilt
// from scratch on every connection.
type Client struct {
	id       uuid.UUID
	identity auth.Identity

	gateway *Gateway
	conn    *websocket.Conn

	// send is never closed; done signals WritePump to stop. Closing send
	// would race with the gateway's lock-free broadcast sends.
	send chan []byte
	done chan struct{}
}

func NewClient(gateway *Gateway, conn *websocket.Conn, identity auth.Identity) *Client {
	return &Client{
		id:       uuid.New(),
		identity: identity,
		gateway:  gateway,
		conn:     conn,
		send:     make(chan []byte, sendBufSize),
		done:     make(chan struct{}),
	}
}

func (c *Client) ID() uuid.UUID { return c.id }

// ReadPump reads client events until the connection drops, then releases all
// gateway state held by this connection.
func (c *Client) ReadPump() {
	defer func() {
		c.gateway.unregister(c)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		var event Event
		if err := wsjson.Read(context.Background(), c.conn, &event); err != nil {
			if websocket.CloseStatus(err) != -1 {
				c.gateway.log.Debugw("client disconnected", "conn", c.id)
			} else {
				c.gateway.log.Debugw("read error", "conn", c.id, "err", err)
			}
			return
		}

		c.handleEvent(&event)
	}
}

// WritePump drains the send buffer onto the wire and keeps the connection
// alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		select {
		case <-c.done:
			return

		case message := <-c.send:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.gateway.log.Debugw("write error", "conn", c.id, "err", err)
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// handleEvent routes one client event. Failures are reported back to this
// connection only; nothing here may take down the gateway or touch other
// connections.
func (c *Client) handleEvent(event *Event) {
	switch event.Type {
	case EventJoinChannel:
		var p ChannelPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil || p.ChannelID == uuid.Nil {
			c.sendError("invalid joinChannel payload")
			return
		}
		c.gateway.Subscribe(c.id, p.ChannelID)
		c.sendEvent(EventJoinedChannel, ChannelPayload{ChannelID: p.ChannelID})

	case EventLeaveChannel:
		var p ChannelPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil || p.ChannelID == uuid.Nil {
			c.sendError("invalid leaveChannel payload")
			return
		}
		c.gateway.Unsubscribe(c.id, p.ChannelID)
		c.sendEvent(EventLeftChannel, ChannelPayload{ChannelID: p.ChannelID})

	default:
		c.sendError("unknown event type: " + event.Type)
	}
}

func (c *Client) sendEvent(eventType string, payload any) {
	evt, err := NewEvent(eventType, payload)
	if err != nil {
		return
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) sendError(message string) {
	c.sendEvent(EventError, ErrorPayload{Message: message})
}
