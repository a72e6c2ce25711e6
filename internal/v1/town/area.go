package town

import (
	"encoding/json"
	"sync"

	"github.com/townsquare-live/townsquare/backend/go/internal/v1/logging"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/metrics"
	"github.com/townsquare-live/townsquare/backend/go/internal/v1/types"
	"go.uber.org/zap"
)

// AreaListener observes occupancy changes of a single conversation area.
// OnOccupantsChange receives the new occupant list after each change, or nil
// when the area has been destroyed. It is distinct from TownListener so UI
// observers of one area can subscribe without seeing town-wide traffic.
type AreaListener interface {
	OnOccupantsChange(occupants []types.PlayerIDType)
}

// ConversationArea is a labelled rectangle inside a town together with the
// insertion-ordered list of player IDs currently inside it. The label is
// immutable and unique within a controller; occupants hold IDs rather than
// player references so the area never keeps a player alive on its own.
//
// Mutation happens only inside the owning controller's serialization domain;
// the area's own lock makes reads safe for handlers and listeners.
type ConversationArea struct {
	label       string
	boundingBox types.BoundingBox

	mu        sync.RWMutex
	topic     string
	occupants []types.PlayerIDType

	listenersMu sync.Mutex
	listeners   []AreaListener
}

// NewConversationArea creates an area with no occupants.
func NewConversationArea(label, topic string, box types.BoundingBox) *ConversationArea {
	return &ConversationArea{
		label:       label,
		topic:       topic,
		boundingBox: box,
	}
}

func (a *ConversationArea) Label() string { return a.label }

func (a *ConversationArea) BoundingBox() types.BoundingBox { return a.boundingBox }

func (a *ConversationArea) Topic() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.topic
}

// Occupants returns a copy of the occupant IDs in insertion order.
func (a *ConversationArea) Occupants() []types.PlayerIDType {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]types.PlayerIDType, len(a.occupants))
	copy(out, a.occupants)
	return out
}

func (a *ConversationArea) isEmpty() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.occupants) == 0
}

// addOccupant appends id unless it is already present.
func (a *ConversationArea) addOccupant(id types.PlayerIDType) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, existing := range a.occupants {
		if existing == id {
			return
		}
	}
	a.occupants = append(a.occupants, id)
}

func (a *ConversationArea) removeOccupant(id types.PlayerIDType) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, existing := range a.occupants {
		if existing == id {
			a.occupants = append(a.occupants[:i], a.occupants[i+1:]...)
			return
		}
	}
}

// AddListener registers l for occupancy notifications. Registration is
// idempotent: a listener already present is not added twice.
func (a *ConversationArea) AddListener(l AreaListener) {
	a.listenersMu.Lock()
	defer a.listenersMu.Unlock()
	for _, existing := range a.listeners {
		if existing == l {
			return
		}
	}
	a.listeners = append(a.listeners, l)
}

// RemoveListener unregisters l, matching by identity.
func (a *ConversationArea) RemoveListener(l AreaListener) {
	a.listenersMu.Lock()
	defer a.listenersMu.Unlock()
	for i, existing := range a.listeners {
		if existing == l {
			a.listeners = append(a.listeners[:i], a.listeners[i+1:]...)
			return
		}
	}
}

// notifyOccupantsChange dispatches to a snapshot of the listener list so a
// listener may remove itself mid-dispatch. A panicking listener is logged and
// skipped; the rest still run.
func (a *ConversationArea) notifyOccupantsChange(occupants []types.PlayerIDType) {
	a.listenersMu.Lock()
	snapshot := make([]AreaListener, len(a.listeners))
	copy(snapshot, a.listeners)
	a.listenersMu.Unlock()

	for _, l := range snapshot {
		func() {
			defer func() {
				if r := recover(); r != nil {
					metrics.ListenerFailures.Inc()
					logging.GetLogger().Error("Area listener panicked",
						zap.String("label", a.label), zap.Any("panic", r))
				}
			}()
			l.OnOccupantsChange(occupants)
		}()
	}
}

// MarshalJSON emits the wire form consumed by clients.
func (a *ConversationArea) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Label         string               `json:"label"`
		Topic         string               `json:"topic"`
		OccupantsByID []types.PlayerIDType `json:"occupantsByID"`
		BoundingBox   types.BoundingBox    `json:"boundingBox"`
	}{
		Label:         a.Label(),
		Topic:         a.Topic(),
		OccupantsByID: a.Occupants(),
		BoundingBox:   a.BoundingBox(),
	})
}
