package ws

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Gateway owns the ephemeral subscription state: which connections exist and
// which channels each one listens to. It is constructed once at startup and
// shared by the websocket handler and the message service.
//
// Subscriptions are client-declared; the gateway does not re-check persisted
// membership at subscribe time. Write authorization is enforced by the
// message service before anything reaches a broadcast.
type Gateway struct {
	log *zap.SugaredLogger

	mu sync.RWMutex
	// conns maps connection id → client. One user may hold many connections.
	conns map[uuid.UUID]*Client
	// subscriptions maps connection id → set of channel ids.
	subscriptions map[uuid.UUID]map[uuid.UUID]struct{}
	// subscribers is the reverse index, channel id → set of connection ids.
	subscribers map[uuid.UUID]map[uuid.UUID]struct{}
}

func NewGateway(log *zap.SugaredLogger) *Gateway {
	return &Gateway{
		log:           log,
		conns:         make(map[uuid.UUID]*Client),
		subscriptions: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		subscribers:   make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

func (g *Gateway) register(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.conns[c.id] = c
	g.log.Debugw("connection registered", "conn", c.id, "user", c.identity.UserID, "total", len(g.conns))
}

// unregister removes the connection from the registry and from every
// channel's subscriber set. Idempotent; safe to call from both pumps.
//
// The send channel stays open: broadcast holds only an RLock while sending,
// so a concurrent close here would be a send-on-closed-channel crash. A
// late event to an unregistered connection just sits in the buffer and is
// collected with the client. WritePump is told to stop via done instead.
func (g *Gateway) unregister(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.conns[c.id]; !ok {
		return
	}
	delete(g.conns, c.id)

	for channelID := range g.subscriptions[c.id] {
		g.dropSubscriber(channelID, c.id)
	}
	delete(g.subscriptions, c.id)

	close(c.done)
	g.log.Debugw("connection unregistered", "conn", c.id, "user", c.identity.UserID, "total", len(g.conns))
}

// Subscribe idempotently adds the channel to the connection's subscription
// set and the connection to the channel's subscriber set.
func (g *Gateway) Subscribe(connID, channelID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.conns[connID]; !ok {
		return
	}

	if g.subscriptions[connID] == nil {
		g.subscriptions[connID] = make(map[uuid.UUID]struct{})
	}
	g.subscriptions[connID][channelID] = struct{}{}

	if g.subscribers[channelID] == nil {
		g.subscribers[channelID] = make(map[uuid.UUID]struct{})
	}
	g.subscribers[channelID][connID] = struct{}{}
}

// Unsubscribe is tolerant: removing a channel that was never subscribed is a
// no-op, unlike the strict persisted leave.
func (g *Gateway) Unsubscribe(connID, channelID uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if subs, ok := g.subscriptions[connID]; ok {
		delete(subs, channelID)
		if len(subs) == 0 {
			delete(g.subscriptions, connID)
		}
	}
	g.dropSubscriber(channelID, connID)
}

// dropSubscriber removes connID from a channel's subscriber set and deletes
// the set once empty. Caller holds g.mu.
func (g *Gateway) dropSubscriber(channelID, connID uuid.UUID) {
	if subs, ok := g.subscribers[channelID]; ok {
		delete(subs, connID)
		if len(subs) == 0 {
			delete(g.subscribers, channelID)
		}
	}
}

// broadcast delivers raw bytes to every subscriber of the channel,
// best-effort. A connection whose buffer is full misses the event; it never
// stalls delivery to the others.
func (g *Gateway) broadcast(channelID uuid.UUID, data []byte) {
	g.mu.RLock()
	targets := make([]*Client, 0, len(g.subscribers[channelID]))
	for connID := range g.subscribers[channelID] {
		if c, ok := g.conns[connID]; ok {
			targets = append(targets, c)
		}
	}
	g.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- data:
		default:
			g.log.Warnw("dropping event for slow connection", "conn", c.id, "channel", channelID)
		}
	}
}

func (g *Gateway) broadcastEvent(channelID uuid.UUID, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		g.log.Errorw("marshal broadcast event", "err", err)
		return
	}
	g.broadcast(channelID, data)
}

// SubscriberCount reports how many connections currently listen to a channel.
func (g *Gateway) SubscriberCount(channelID uuid.UUID) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.subscribers[channelID])
}

// ConnectionCount reports the number of live connections.
func (g *Gateway) ConnectionCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.conns)
}

// Subscriptions returns the channels a connection is subscribed to.
func (g *Gateway) Subscriptions(connID uuid.UUID) []uuid.UUID {
	g.mu.RLock()
	defer g.mu.RUnlock()

	channels := make([]uuid.UUID, 0, len(g.subscriptions[connID]))
	for channelID := range g.subscriptions[connID] {
		channels = append(channels, channelID)
	}
	return channels
}
