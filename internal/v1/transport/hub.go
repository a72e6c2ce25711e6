// Package transport binds authenticated WebSocket connections to town
// controllers. The Hub authenticates each handshake against the towns store
// ((townID, sessionToken) pairs), upgrades the connection, and installs a
// per-socket bridge listener that relays events in both directions.
package transport

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/townsquare-live/townsquare/backend/go/internal/v1/auth"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/logging"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/metrics"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/ratelimit"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/town"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/types"
)

// Hub subscribes sockets to town controllers. It holds no per-connection
// state itself; each accepted socket becomes a Client registered as a
// listener on its controller.
type Hub struct {
	store   *town.TownsStore
	limiter *ratelimit.RateLimiter // Optional; nil disables connection limits
}

// NewHub creates a Hub backed by store. limiter may be nil.
func NewHub(store *town.TownsStore, limiter *ratelimit.RateLimiter) *Hub {
	return &Hub{store: store, limiter: limiter}
}

// ServeWs authenticates the handshake and, on success, upgrades the request
// and starts the client's pumps.
//
// Responses:
//   - 401 Unauthorized for an unknown town or session token.
//   - 429 Too Many Requests when the connection limit is exceeded.
//   - Upgrades to WebSocket on success.
func (h *Hub) ServeWs(c *gin.Context) {
	townID := types.TownIDType(c.Param("townID"))
	sessionToken := c.Query("sessionToken")
	if sessionToken == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "session token not provided"})
		return
	}

	controller := h.store.ControllerForTown(townID)
	if controller == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown town"})
		return
	}

	session := controller.SessionByToken(sessionToken)
	if session == nil {
		logging.Warn(c.Request.Context(), "Rejected subscription with invalid session token",
			zap.String("town_id", string(townID)),
			zap.String("session_token", logging.RedactToken(sessionToken)))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
		return
	}

	if h.limiter != nil && !h.limiter.CheckWebSocket(c) {
		return
	}

	allowedOrigins := auth.GetAllowedOriginsFromEnv("TOWNS_ALLOWED_ORIGINS", []string{"http://localhost:3000"})
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // Allow non-browser clients (e.g., for testing)
			}
			originURL, err := url.Parse(origin)
			if err != nil {
				return false
			}

			for _, allowed := range allowedOrigins {
				allowedURL, err := url.Parse(allowed)
				if err != nil {
					continue
				}
				if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
					return true
				}
			}
			return false
		},
		WriteBufferPool: &sync.Pool{
			New: func() any {
				return make([]byte, 4096)
			},
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logging.Error(c.Request.Context(), "Failed to upgrade connection", zap.Error(err))
		return
	}

	h.HandleConnection(conn, controller, session)
}

// HandleConnection wires an established connection to its controller and
// starts the message pumps. Split from ServeWs so tests can drive it with a
// mock connection.
func (h *Hub) HandleConnection(conn wsConnection, controller *town.Controller, session *town.PlayerSession) {
	client := newClient(conn, controller, session)
	controller.AddTownListener(client)
	metrics.IncConnection()

	logging.Info(context.Background(), "Socket subscribed to town",
		zap.String("town_id", string(controller.TownID())),
		zap.String("player_id", string(session.Player().ID())))

	go client.writePump()
	go client.readPump()
}
