package transport

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/townsquare-live/townsquare/backend/go/internal/v1/logging"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/metrics"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/town"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/types"
)

// wsConnection defines the interface for WebSocket connection operations.
// In production it is satisfied by *websocket.Conn; tests substitute mocks
// that simulate errors and disconnections.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error) // Read the next message from the connection
	WriteMessage(messageType int, data []byte) error     // Write a message to the connection
	Close() error                                        // Close the connection
	SetWriteDeadline(t time.Time) error
}

// Client is the per-socket bridge for one subscribed session. It implements
// town.TownListener, translating controller events into outbound frames, and
// relays inbound playerMovement frames into the controller.
//
// Two goroutines serve the socket: readPump consumes inbound frames until the
// connection errors, then runs teardown; writePump drains the buffered send
// channel. Teardown is guarded by a sync.Once so a second disconnect is a
// no-op.
type Client struct {
	conn       wsConnection
	controller *town.Controller
	session    *town.PlayerSession

	mu     sync.RWMutex // Protects closed
	closed bool

	send         chan []byte // Buffered channel for outgoing frames
	teardownOnce sync.Once
}

func newClient(conn wsConnection, controller *town.Controller, session *town.PlayerSession) *Client {
	return &Client{
		conn:       conn,
		controller: controller,
		session:    session,
		send:       make(chan []byte, 256),
	}
}

// --- town.TownListener ---

func (c *Client) OnPlayerJoined(player *town.Player) {
	c.sendEvent(EventNewPlayer, player)
}

func (c *Client) OnPlayerMoved(player *town.Player) {
	c.sendEvent(EventPlayerMoved, player)
}

func (c *Client) OnPlayerDisconnected(player *town.Player) {
	c.sendEvent(EventPlayerDisconnect, player)
}

func (c *Client) OnConversationAreaUpdated(area *town.ConversationArea) {
	c.sendEvent(EventConversationUpdated, area)
}

func (c *Client) OnConversationAreaDestroyed(area *town.ConversationArea) {
	c.sendEvent(EventConversationDestroyed, area)
}

// OnTownDestroyed announces the closure and severs the connection; the read
// pump notices the closed socket and runs the ordinary teardown path.
func (c *Client) OnTownDestroyed() {
	c.sendEvent(EventTownClosing, nil)
	c.Disconnect()
}

// Disconnect forcefully closes the underlying connection.
func (c *Client) Disconnect() {
	c.conn.Close()
}

// teardown detaches the bridge from its controller and destroys the backing
// session. Safe to run more than once; only the first run has any effect.
func (c *Client) teardown() {
	c.teardownOnce.Do(func() {
		c.controller.RemoveTownListener(c)
		c.controller.DestroySession(c.session)

		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.send)

		metrics.DecConnection()
	})
}

// readPump continuously processes inbound frames until the connection drops.
func (c *Client) readPump() {
	defer func() {
		c.teardown()
		c.conn.Close()
	}()

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			break
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			logging.Warn(context.Background(), "Failed to decode socket frame",
				zap.String("player_id", string(c.session.Player().ID())), zap.Error(err))
			metrics.WebsocketEvents.WithLabelValues("unknown", "invalid").Inc()
			continue
		}

		c.route(env)
	}
}

func (c *Client) route(env Envelope) {
	switch env.Event {
	case EventPlayerMovement:
		var location types.UserLocation
		if err := json.Unmarshal(env.Payload, &location); err != nil {
			logging.Warn(context.Background(), "Malformed playerMovement payload",
				zap.String("player_id", string(c.session.Player().ID())), zap.Error(err))
			metrics.WebsocketEvents.WithLabelValues(EventPlayerMovement, "invalid").Inc()
			return
		}
		c.controller.UpdatePlayerLocation(c.session.Player(), location)
		metrics.WebsocketEvents.WithLabelValues(EventPlayerMovement, "ok").Inc()
	default:
		logging.Warn(context.Background(), "Unknown socket event",
			zap.String("event", env.Event))
		metrics.WebsocketEvents.WithLabelValues(env.Event, "unknown").Inc()
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	writeWait := 10 * time.Second

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			logging.Error(context.Background(), "Error writing socket frame", zap.Error(err))
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// sendEvent queues one outbound frame without blocking the dispatching
// controller; a full buffer drops the frame.
func (c *Client) sendEvent(event string, payload any) {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return
	}
	c.mu.RUnlock()

	data, err := encodeEvent(event, payload)
	if err != nil {
		logging.Error(context.Background(), "Failed to encode socket event",
			zap.String("event", event), zap.Error(err))
		return
	}

	// The closed check above races with teardown closing the channel.
	defer func() {
		if r := recover(); r != nil {
			logging.Warn(context.Background(), "Dropped event for closing client",
				zap.String("event", event))
		}
	}()

	select {
	case c.send <- data:
		metrics.WebsocketEvents.WithLabelValues(event, "sent").Inc()
	default:
		logging.Warn(context.Background(), "Client send channel full - dropping event",
			zap.String("event", event),
			zap.String("player_id", string(c.session.Player().ID())))
		metrics.WebsocketEvents.WithLabelValues(event, "dropped").Inc()
	}
}
