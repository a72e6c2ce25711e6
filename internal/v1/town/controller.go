// Package town implements the authoritative state of one multiplayer town:
// its players, sessions, conversation areas, and the listener fan-out that
// keeps observers (sockets, UI hooks) in sync. The Controller is the
// serialization domain for a single town; the TownsStore owns the set of
// controllers in the process.
package town

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/townsquare-live/townsquare/backend/go/internal/v1/auth"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/logging"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/metrics"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/types"
)

// DefaultCapacity is the maximum occupancy of a town unless the store is
// configured otherwise.
const DefaultCapacity = 50

// ErrTownFull is returned by AddPlayer when the town is at capacity.
var ErrTownFull = errors.New("town is at capacity")

// VideoTokenSource mints a video-chat capability token bound to a
// (town, player) pair. Implementations live in pkg/videotoken; the controller
// only needs this one call.
type VideoTokenSource interface {
	GetTokenForTown(ctx context.Context, townID types.TownIDType, playerID types.PlayerIDType) (string, error)
}

// Controller holds the live state of one town and implements its state
// machine. All mutating operations serialize on a single lock which is held
// through listener dispatch, so listeners observe events in commit order and
// never see a torn state. The one suspension point is video-token minting in
// AddPlayer, which runs before the lock is taken; until commit the joining
// player is invisible to every other operation and listener.
type Controller struct {
	townID             types.TownIDType
	townUpdatePassword string
	capacity           int

	mu             sync.Mutex
	friendlyName   string
	publiclyListed bool
	players        []*Player
	sessions       []*PlayerSession
	areas          []*ConversationArea

	listeners listenerList
	tokens    VideoTokenSource
}

// NewController creates an empty town with a fresh ID and update password.
func NewController(friendlyName string, publiclyListed bool, tokens VideoTokenSource, capacity int) *Controller {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Controller{
		townID:             types.TownIDType(uuid.NewString()),
		townUpdatePassword: auth.NewTownPassword(),
		capacity:           capacity,
		friendlyName:       friendlyName,
		publiclyListed:     publiclyListed,
		tokens:             tokens,
	}
}

func (c *Controller) TownID() types.TownIDType { return c.townID }

func (c *Controller) Capacity() int { return c.capacity }

// townUpdatePasswordMatches is how the store gates mutation; the password is
// never exposed through a read operation.
func (c *Controller) townUpdatePasswordMatches(candidate string) bool {
	return auth.SecureCompare(c.townUpdatePassword, candidate)
}

// UpdatePassword returns the admin password. It is handed out exactly once,
// in the create-town response.
func (c *Controller) UpdatePassword() string { return c.townUpdatePassword }

func (c *Controller) FriendlyName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.friendlyName
}

func (c *Controller) IsPubliclyListed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.publiclyListed
}

func (c *Controller) setSettings(friendlyName *string, publiclyListed *bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if friendlyName != nil {
		c.friendlyName = *friendlyName
	}
	if publiclyListed != nil {
		c.publiclyListed = *publiclyListed
	}
}

// Players returns a snapshot of the town's players in join order.
func (c *Controller) Players() []*Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Player, len(c.players))
	copy(out, c.players)
	return out
}

// ConversationAreas returns a snapshot of the live areas in creation order.
func (c *Controller) ConversationAreas() []*ConversationArea {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ConversationArea, len(c.areas))
	copy(out, c.areas)
	return out
}

// Occupancy returns the current player count.
func (c *Controller) Occupancy() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.players)
}

// SessionByToken returns the session authenticated by token, or nil.
func (c *Controller) SessionByToken(token string) *PlayerSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.sessions {
		if auth.SecureCompare(s.sessionToken, token) {
			return s
		}
	}
	return nil
}

// AddTownListener registers l for town events. Idempotent.
func (c *Controller) AddTownListener(l TownListener) {
	c.listeners.add(l)
}

// RemoveTownListener unregisters l, matching by identity.
func (c *Controller) RemoveTownListener(l TownListener) {
	c.listeners.remove(l)
}

func (c *Controller) notify(fn func(TownListener)) {
	c.listeners.notify(string(c.townID), fn)
}

// AddPlayer admits player into the town: it mints a video token, registers
// the player and a fresh session, and announces the join. Token minting may
// block; during it other operations on the controller proceed and the player
// is not yet observable. On mint failure no state changes and no events fire.
func (c *Controller) AddPlayer(ctx context.Context, player *Player) (*PlayerSession, error) {
	c.mu.Lock()
	if len(c.players) >= c.capacity {
		c.mu.Unlock()
		return nil, ErrTownFull
	}
	c.mu.Unlock()

	videoToken, err := c.tokens.GetTokenForTown(ctx, c.townID, player.ID())
	if err != nil {
		return nil, err
	}
	session := newPlayerSession(player, videoToken)

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.players) >= c.capacity {
		return nil, ErrTownFull
	}
	c.players = append(c.players, player)
	c.sessions = append(c.sessions, session)
	metrics.TownPlayers.WithLabelValues(string(c.townID)).Set(float64(len(c.players)))

	logging.Info(ctx, "Player joined town",
		zap.String("town_id", string(c.townID)),
		zap.String("player_id", string(player.ID())))
	c.notify(func(l TownListener) { l.OnPlayerJoined(player) })
	return session, nil
}

// DestroySession removes the session and its player from the town. If the
// player occupied a conversation area, the occupant-removal runs the area's
// occupant-change path first, which may destroy the area. Destroying an
// unknown or already-destroyed session is a no-op.
func (c *Controller) DestroySession(session *PlayerSession) {
	if session == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	found := false
	for i, s := range c.sessions {
		if s == session {
			c.sessions = append(c.sessions[:i], c.sessions[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return
	}

	player := session.player
	for i, p := range c.players {
		if p == player {
			c.players = append(c.players[:i], c.players[i+1:]...)
			break
		}
	}

	if area := player.ActiveConversationArea(); area != nil {
		c.removePlayerFromAreaLocked(player, area)
	}

	if len(c.players) > 0 {
		metrics.TownPlayers.WithLabelValues(string(c.townID)).Set(float64(len(c.players)))
	} else {
		metrics.TownPlayers.DeleteLabelValues(string(c.townID))
	}

	c.notify(func(l TownListener) { l.OnPlayerDisconnected(player) })
}

// UpdatePlayerLocation is the central state machine for player motion. The
// intended conversation area is resolved purely from the reported
// ConversationLabel: a label naming a live area wins regardless of the
// coordinates, and an absent or stale label means no area. Area transitions
// fire their events before the location commit fires OnPlayerMoved.
func (c *Controller) UpdatePlayerLocation(player *Player, location types.UserLocation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	intended := c.areaByLabelLocked(location.ConversationLabel)
	current := player.ActiveConversationArea()

	if intended != current {
		if current != nil {
			c.removePlayerFromAreaLocked(player, current)
		}
		if intended != nil {
			intended.addOccupant(player.ID())
			player.setActiveConversationArea(intended)
			c.notify(func(l TownListener) { l.OnConversationAreaUpdated(intended) })
			intended.notifyOccupantsChange(intended.Occupants())
		}
	}

	player.setLocation(location)
	c.notify(func(l TownListener) { l.OnPlayerMoved(player) })
}

// AddConversationArea installs area if it is admissible: an active topic, a
// label no live area carries, and a bounding box that overlaps no live area's
// open rectangle. On success every player standing strictly inside the box
// and not already in an area is enrolled, and a single
// OnConversationAreaUpdated announces the creation. Rejection changes no
// state and fires no events.
func (c *Controller) AddConversationArea(area *ConversationArea) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if area.Topic() == types.NoTopic {
		return false
	}
	for _, existing := range c.areas {
		if existing.Label() == area.Label() {
			return false
		}
		if existing.BoundingBox().Overlaps(area.BoundingBox()) {
			return false
		}
	}

	c.areas = append(c.areas, area)
	metrics.ConversationAreas.WithLabelValues(string(c.townID)).Set(float64(len(c.areas)))

	box := area.BoundingBox()
	for _, p := range c.players {
		if p.ActiveConversationArea() == nil && box.ContainsLocation(p.Location()) {
			area.addOccupant(p.ID())
			p.setActiveConversationArea(area)
		}
	}

	logging.Info(context.Background(), "Conversation area created",
		zap.String("town_id", string(c.townID)),
		zap.String("label", area.Label()),
		zap.Int("occupants", len(area.Occupants())))
	c.notify(func(l TownListener) { l.OnConversationAreaUpdated(area) })
	return true
}

// DisconnectAllPlayers announces the town's destruction and empties it.
// Socket bridges react to OnTownDestroyed by closing their connections; the
// state is cleared here so the controller ends with zero players, sessions,
// and areas even before those teardowns land.
func (c *Controller) DisconnectAllPlayers() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.notify(func(l TownListener) { l.OnTownDestroyed() })

	for _, area := range c.areas {
		area.notifyOccupantsChange(nil)
	}
	for _, p := range c.players {
		p.setActiveConversationArea(nil)
	}
	c.players = nil
	c.sessions = nil
	c.areas = nil
	metrics.TownPlayers.DeleteLabelValues(string(c.townID))
	metrics.ConversationAreas.DeleteLabelValues(string(c.townID))
}

// areaByLabelLocked resolves a reported conversation label to a live area.
// Empty labels and labels of destroyed areas resolve to nil.
func (c *Controller) areaByLabelLocked(label string) *ConversationArea {
	if label == "" {
		return nil
	}
	for _, a := range c.areas {
		if a.Label() == label {
			return a
		}
	}
	return nil
}

// removePlayerFromAreaLocked deletes the player from area and runs the
// occupant-change path: a newly empty area is destroyed (removed from the
// controller, OnConversationAreaDestroyed to town listeners, nil occupants to
// area listeners); otherwise the shrink is announced as an update.
func (c *Controller) removePlayerFromAreaLocked(player *Player, area *ConversationArea) {
	area.removeOccupant(player.ID())
	player.setActiveConversationArea(nil)

	if area.isEmpty() {
		for i, a := range c.areas {
			if a == area {
				c.areas = append(c.areas[:i], c.areas[i+1:]...)
				break
			}
		}
		if len(c.areas) > 0 {
			metrics.ConversationAreas.WithLabelValues(string(c.townID)).Set(float64(len(c.areas)))
		} else {
			metrics.ConversationAreas.DeleteLabelValues(string(c.townID))
		}
		c.notify(func(l TownListener) { l.OnConversationAreaDestroyed(area) })
		area.notifyOccupantsChange(nil)
		return
	}

	c.notify(func(l TownListener) { l.OnConversationAreaUpdated(area) })
	area.notifyOccupantsChange(area.Occupants())
}
