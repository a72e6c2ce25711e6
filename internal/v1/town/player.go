package town

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/townsquare-live/townsquare/backend/go/internal/v1/types"
)

// Player is one user inside a town: an immutable identity plus the mutable
// location and conversation-area membership the controller maintains for it.
// A Player belongs to exactly one controller and must not be shared between
// towns.
type Player struct {
	id       types.PlayerIDType
	userName string

	mu         sync.RWMutex
	location   types.UserLocation
	activeArea *ConversationArea
}

// NewPlayer creates a player with a fresh ID at the spawn location.
func NewPlayer(userName string) *Player {
	return &Player{
		id:       types.PlayerIDType(uuid.NewString()),
		userName: userName,
		location: types.UserLocation{Rotation: types.DirectionFront},
	}
}

func (p *Player) ID() types.PlayerIDType { return p.id }

func (p *Player) UserName() string { return p.userName }

// Thread-safe reader
func (p *Player) Location() types.UserLocation {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.location
}

func (p *Player) setLocation(loc types.UserLocation) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.location = loc
}

// ActiveConversationArea returns the area this player currently occupies,
// or nil when the player is not in one.
func (p *Player) ActiveConversationArea() *ConversationArea {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.activeArea
}

func (p *Player) setActiveConversationArea(area *ConversationArea) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.activeArea = area
}

// MarshalJSON emits the wire form consumed by clients.
func (p *Player) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID       types.PlayerIDType `json:"id"`
		UserName string             `json:"userName"`
		Location types.UserLocation `json:"location"`
	}{
		ID:       p.ID(),
		UserName: p.UserName(),
		Location: p.Location(),
	})
}
